package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/marcopolo/internal/pipeline"
)

func newAirlockCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "airlock FILE...",
		Short: "Check that files are pure ASCII",
		Long: `Run each file through the ASCII admission gate and write
airlock_report.json to the output directory. Exits 2 when any file is
rejected.

Examples:
  marcopolo airlock marco.txt polo.md
  marcopolo airlock --repair-common-punct notes.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAirlock(cmd, opts, args)
		},
	}
}

func runAirlock(cmd *cobra.Command, opts *options, paths []string) error {
	s, err := opts.newSession(cmd, pipeline.OpAirlock)
	if err != nil {
		return err
	}
	defer s.close()

	texts, err := readFiles(s.ctx, paths...)
	if err != nil {
		return err
	}
	docs := make([]pipeline.Document, len(paths))
	for i, p := range paths {
		docs[i] = pipeline.Document{Name: p, Text: texts[i]}
	}

	start := time.Now()
	res, err := s.engine.Airlock(s.ctx, docs)
	s.observe(start, nil, err)
	if err != nil && !errors.Is(err, pipeline.ErrAdmission) {
		return err
	}

	out, werr := s.writer.WriteAirlock(res)
	if werr != nil {
		return werr
	}
	s.print(renderAirlock(res, out))
	return classify(err)
}
