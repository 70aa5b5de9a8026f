package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/marcopolo/internal/pipeline"
)

func newDraftCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft MARCO",
		Short: "Generate a traceable POLO draft from MARCO",
		Long: `Bucket MARCO spans into topic threads, write polo_draft.md and verify
the draft against its source. Every SRC line carries a [trace:<span id>]
reference.

Topic rules come from --rules or draft.rules_path (TOML); the built-in
rules are used when neither is set.

Examples:
  marcopolo draft marco.txt
  marcopolo draft --rules topics.toml --out build marco.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.newSession(cmd, pipeline.OpDraft)
			if err != nil {
				return err
			}
			defer s.close()

			marco, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading MARCO: %w", err)
			}

			start := time.Now()
			res, err := s.engine.Draft(s.ctx, string(marco))
			s.observe(start, res, err)
			return s.finish(s.ctx, res, err)
		},
	}
	cmd.Flags().StringVar(&opts.rulesPath, "rules", "", "TOML topic rules file")
	cmd.Flags().BoolVar(&opts.requireTyped, "require-typed", false, "exit 3 when the draft contains no typed units")
	cmd.Flags().BoolVar(&opts.render, "render", false, "render the Markdown report to the terminal")
	return cmd
}
