package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/marcopolo/internal/pipeline"
	"github.com/fyrsmithlabs/marcopolo/internal/watch"
)

func newWatchCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch MARCO POLO",
		Short: "Re-verify whenever MARCO or POLO changes",
		Long: `Run verify once, then again each time either file is saved. Bursts of
writes are coalesced by the debounce period (watch.debounce, default 200ms).
Admission failures are reported and watching continues. Stop with Ctrl-C.

Examples:
  marcopolo watch marco.txt polo.md
  marcopolo watch --debounce 1s --metrics-textfile /var/lib/node_exporter/marcopolo.prom marco.txt polo.md`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts, args[0], args[1])
		},
	}
	cmd.Flags().DurationVar(&opts.debounce, "debounce", 0, "quiet period before re-verifying (overrides watch.debounce)")
	cmd.Flags().BoolVar(&opts.requireTyped, "require-typed", false, "report POLO documents without typed units as failures")
	return cmd
}

func runWatch(cmd *cobra.Command, opts *options, marcoPath, poloPath string) error {
	s, err := opts.newSession(cmd, "watch")
	if err != nil {
		return err
	}
	defer s.close()

	ctx, stop := signal.NotifyContext(s.ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := watch.New([]string{marcoPath, poloPath}, s.cfg.Watch.Debounce.Duration(), s.logger)
	if err != nil {
		return err
	}
	defer w.Close()

	verifyOnce := func(ctx context.Context) {
		err := s.verifyFiles(ctx, marcoPath, poloPath)
		switch {
		case err == nil:
		case errors.Is(err, pipeline.ErrAdmission), errors.Is(err, pipeline.ErrNoTypedUnits):
			s.logger.Warn(ctx, "verification did not pass", zap.Error(err))
		default:
			s.logger.Error(ctx, "verification failed", zap.Error(err))
		}
	}

	s.logger.Info(ctx, "watching for changes",
		zap.String("marco", marcoPath),
		zap.String("polo", poloPath),
		zap.Duration("debounce", s.cfg.Watch.Debounce.Duration()),
	)
	verifyOnce(ctx)

	return w.Run(ctx, func(ctx context.Context, changed []string) {
		s.logger.Info(ctx, "re-verifying", zap.Strings("changed", changed))
		verifyOnce(ctx)
	})
}
