package logging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger emits structured entries carrying the run, document and trace
// fields found on the context passed to each call.
type Logger struct {
	zap *zap.Logger
}

// NewLogger builds a logger for one marcopolo command. A nil out writes to
// stderr so stdout stays reserved for reports and summaries.
func NewLogger(cfg *Config, out zapcore.WriteSyncer) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}
	level, err := LevelFromString(cfg.Level)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = zapcore.Lock(os.Stderr)
	}

	opts := []zap.Option{zap.AddStacktrace(zapcore.DPanicLevel)}
	if cfg.Caller {
		// Skip the wrapper frame so callers point at the pipeline stage.
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(2))
	}
	zl := zap.New(zapcore.NewCore(newEncoder(cfg.Format), out, level), opts...)
	if fields := staticFields(cfg.Fields); len(fields) > 0 {
		zl = zl.With(fields...)
	}
	return &Logger{zap: zl}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

func newEncoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "ts"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == "console" {
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

// staticFields turns configured fields into zap fields in key order.
func staticFields(m map[string]string) []zap.Field {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, zap.String(k, m[k]))
	}
	return fields
}

func (l *Logger) log(ctx context.Context, level zapcore.Level, msg string, fields []zap.Field) {
	if ce := l.zap.Check(level, msg); ce != nil {
		ce.Write(append(ContextFields(ctx), fields...)...)
	}
}

// Trace logs per-event detail such as individual file notifications.
func (l *Logger) Trace(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, TraceLevel, msg, fields)
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.DebugLevel, msg, fields)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.InfoLevel, msg, fields)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.WarnLevel, msg, fields)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.ErrorLevel, msg, fields)
}

// Named returns a child logger scoped to a command or component.
func (l *Logger) Named(name string) *Logger {
	return &Logger{zap: l.zap.Named(name)}
}

// Enabled reports whether entries at level would be written.
func (l *Logger) Enabled(level zapcore.Level) bool {
	return l.zap.Core().Enabled(level)
}

// Sync flushes buffered entries. Syncing a terminal stderr returns EINVAL
// or ENOTTY on Linux; those are not failures.
func (l *Logger) Sync() error {
	err := l.zap.Sync()
	var errno syscall.Errno
	if errors.As(err, &errno) && (errno == syscall.EINVAL || errno == syscall.ENOTTY) {
		return nil
	}
	return err
}
