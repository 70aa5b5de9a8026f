package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 5)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}

	if runID := RunIDFromContext(ctx); runID != "" {
		fields = append(fields, zap.String("run.id", runID))
	}

	if doc := DocumentFromContext(ctx); doc != "" {
		fields = append(fields, zap.String("document", doc))
	}

	return fields
}

type runCtxKey struct{}
type documentCtxKey struct{}
type loggerCtxKey struct{}

// WithRunID tags the context with the id of one command invocation.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runCtxKey{}, runID)
}

// RunIDFromContext extracts the run id from context.
func RunIDFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(runCtxKey{}).(string); ok {
		return r
	}
	return ""
}

// WithDocument tags the context with the document being processed
// ("marco", "polo" or a file path).
func WithDocument(ctx context.Context, doc string) context.Context {
	return context.WithValue(ctx, documentCtxKey{}, doc)
}

// DocumentFromContext extracts the document tag from context.
func DocumentFromContext(ctx context.Context) string {
	if d, ok := ctx.Value(documentCtxKey{}).(string); ok {
		return d
	}
	return ""
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
