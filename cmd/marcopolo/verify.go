package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/marcopolo/internal/pipeline"
)

func newVerifyCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify MARCO POLO",
		Short: "Verify a POLO document against its MARCO source",
		Long: `Admit both documents, extract MARCO spans and POLO units, link every
unit to its best supporting span and score the result.

Artifacts written to the output directory:
  marco_spans.jsonl, polo_units.jsonl, trace_edges.jsonl,
  verify_report.json, verify_report.md

When admission fails only airlock_report.json is written and the command
exits 2.

Examples:
  marcopolo verify marco.txt polo.md
  marcopolo verify --out build/trace --require-typed marco.txt polo.md`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.newSession(cmd, pipeline.OpVerify)
			if err != nil {
				return err
			}
			defer s.close()
			return s.verifyFiles(s.ctx, args[0], args[1])
		},
	}
	cmd.Flags().BoolVar(&opts.requireTyped, "require-typed", false, "exit 3 when POLO contains no SRC, OPEN or PROP units")
	cmd.Flags().BoolVar(&opts.render, "render", false, "render the Markdown report to the terminal")
	return cmd
}

// verifyFiles runs one verification and writes its artifacts.
func (s *session) verifyFiles(ctx context.Context, marcoPath, poloPath string) error {
	texts, err := readFiles(ctx, marcoPath, poloPath)
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := s.engine.Verify(ctx, texts[0], texts[1])
	s.observe(start, res, err)
	return s.finish(ctx, res, err)
}

// finish writes artifacts for a verify or draft result. Admission failures
// produce only the airlock report.
func (s *session) finish(ctx context.Context, res *pipeline.Result, err error) error {
	var admErr *pipeline.AdmissionError
	if errors.As(err, &admErr) {
		path, werr := s.writer.WriteAirlock(admErr.Reports)
		if werr != nil {
			return werr
		}
		s.print(renderRejection(admErr, path))
		return classify(err)
	}
	if res == nil {
		return err
	}

	written, werr := s.writer.WriteResult(res)
	if werr != nil {
		return werr
	}
	s.logger.Debug(ctx, "artifacts written", zap.Strings("files", written))
	s.print(renderSummary(res, s.writer.Dir()))
	if s.render {
		md, rerr := renderMarkdown(res.Markdown)
		if rerr != nil {
			return rerr
		}
		s.print(md)
	}
	return classify(err)
}
