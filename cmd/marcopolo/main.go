// Package main implements the marcopolo CLI: ASCII admission checks,
// MARCO/POLO trace verification and conservative POLO drafting.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/marcopolo/internal/artifact"
	"github.com/fyrsmithlabs/marcopolo/internal/config"
	"github.com/fyrsmithlabs/marcopolo/internal/logging"
	"github.com/fyrsmithlabs/marcopolo/internal/metrics"
	"github.com/fyrsmithlabs/marcopolo/internal/pipeline"
	"github.com/fyrsmithlabs/marcopolo/internal/telemetry"
)

// version information
var version = "dev"

// Exit codes beyond the generic failure code 1.
const (
	exitAdmission    = 2
	exitNoTypedUnits = 3
)

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI and maps the result to a process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

// exitError attaches a process exit code to an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

// classify wraps pipeline errors with their exit codes.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pipeline.ErrAdmission):
		return &exitError{code: exitAdmission, err: err}
	case errors.Is(err, pipeline.ErrNoTypedUnits):
		return &exitError{code: exitNoTypedUnits, err: err}
	default:
		return err
	}
}

// options holds flag values shared by all commands.
type options struct {
	configPath        string
	outDir            string
	repairCommonPunct bool
	metricsTextfile   string
	logLevel          string
	logFormat         string
	quiet             bool

	requireTyped bool
	render       bool
	rulesPath    string
	debounce     time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "marcopolo",
		Short: "Verify that a POLO document is traceable to its MARCO source",
		Long: `marcopolo checks a structured POLO document (threads of SRC, OPEN and
PROP claims) against the free-form MARCO text it was derived from. It
segments both, links every claim to its most similar source span and grades
the result with a confidence score.

Both documents must be ASCII; --repair-common-punct rewrites smart quotes,
dashes and similar punctuation before the check.

Exit codes: 0 success, 1 error, 2 admission failure, 3 no typed units
(with --require-typed).`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (YAML or JSON; default ~/.config/marcopolo/config.yaml if present)")
	pf.StringVar(&opts.outDir, "out", "out", "output directory for artifacts")
	pf.BoolVar(&opts.repairCommonPunct, "repair-common-punct", false, "repair common typographic punctuation before the ASCII check")
	pf.StringVar(&opts.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this node_exporter textfile")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	pf.StringVar(&opts.logFormat, "log-format", "", "log format (console or json)")
	pf.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress the summary on stdout")

	root.AddCommand(
		newAirlockCmd(opts),
		newVerifyCmd(opts),
		newDraftCmd(opts),
		newWatchCmd(opts),
		newConfigCmd(opts),
	)
	return root
}

// loadConfig loads the config file and applies flag overrides.
func (o *options) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadWithFile(o.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("repair-common-punct") {
		cfg.Airlock.RepairCommonPunct = o.repairCommonPunct
	}
	if flags.Changed("metrics-textfile") {
		cfg.Metrics.Textfile = o.metricsTextfile
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = o.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = o.logFormat
	}
	if flags.Changed("rules") {
		cfg.Draft.RulesPath = o.rulesPath
	}
	if flags.Changed("debounce") {
		cfg.Watch.Debounce = config.Duration(o.debounce)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// session is the per-invocation state shared by commands.
type session struct {
	ctx      context.Context
	command  string
	cfg      *config.Config
	logger   *logging.Logger
	recorder *metrics.Recorder
	engine   *pipeline.Engine
	exporter *telemetry.Provider
	writer   *artifact.Writer
	stdout   io.Writer
	quiet    bool
	render   bool
}

func (o *options) newSession(cmd *cobra.Command, command string) (*session, error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(&cfg.Logging, zapcore.AddSync(cmd.ErrOrStderr()))
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger = logger.Named(command)

	runID := uuid.NewString()
	ctx := logging.WithRunID(cmd.Context(), runID)
	ctx = logging.WithLogger(ctx, logger)

	prov, err := telemetry.New(ctx, &cfg.Telemetry, telemetry.WithVersion(version))
	if err != nil {
		return nil, err
	}
	tel, err := pipeline.NewTelemetry(
		prov.Meter(pipeline.InstrumentationName),
		prov.Tracer(pipeline.InstrumentationName),
	)
	if err != nil {
		_ = prov.Shutdown(ctx)
		return nil, fmt.Errorf("creating pipeline telemetry: %w", err)
	}

	engine, err := pipeline.New(cfg,
		pipeline.WithLogger(logger),
		pipeline.WithTelemetry(tel),
		pipeline.WithRequireTyped(o.requireTyped),
	)
	if err != nil {
		_ = prov.Shutdown(ctx)
		return nil, err
	}

	logger.Debug(ctx, "session started", zap.String("version", version), zap.String("out", o.outDir))

	return &session{
		ctx:      ctx,
		command:  command,
		cfg:      cfg,
		logger:   logger,
		recorder: metrics.NewRecorder(),
		engine:   engine,
		exporter: prov,
		writer:   artifact.NewWriter(o.outDir),
		stdout:   cmd.OutOrStdout(),
		quiet:    o.quiet,
		render:   o.render,
	}, nil
}

// observe records one run in the Prometheus recorder and refreshes the
// textfile when configured.
func (s *session) observe(start time.Time, res *pipeline.Result, err error) {
	s.recorder.ObserveRun(s.command, pipeline.Outcome(err), time.Since(start))

	var admErr *pipeline.AdmissionError
	if errors.As(err, &admErr) {
		for _, name := range admErr.Rejected() {
			s.recorder.ObserveAdmissionFailure(pipeline.DocumentClass(name))
		}
	}
	if res != nil {
		report := res.Report()
		s.recorder.ObserveVerification(report.Confidence, report.Coverage, len(res.Edges))
	}

	if path := s.cfg.Metrics.Textfile; path != "" {
		if werr := s.recorder.WriteTextfile(path); werr != nil {
			s.logger.Warn(s.ctx, "failed to write metrics textfile", zap.Error(werr))
		}
	}
}

func (s *session) close() {
	if err := s.exporter.Shutdown(context.WithoutCancel(s.ctx)); err != nil {
		s.logger.Warn(s.ctx, "failed to flush telemetry", zap.Error(err))
	}
	_ = s.logger.Sync()
}

func (s *session) print(text string) {
	if !s.quiet {
		fmt.Fprint(s.stdout, text)
	}
}
