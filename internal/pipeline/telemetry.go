package pipeline

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	// InstrumentationName is the name used for OTEL instrumentation.
	InstrumentationName = "github.com/fyrsmithlabs/marcopolo/internal/pipeline"
)

// Telemetry provides OpenTelemetry spans and metrics for pipeline stages.
type Telemetry struct {
	tracer trace.Tracer

	runsTotal       metric.Int64Counter
	rejectionsTotal metric.Int64Counter
	nearMissesTotal metric.Int64Counter
	edgesTotal      metric.Int64Counter
	confidence      metric.Float64Histogram
}

// NewTelemetry creates pipeline instrumentation.
// A nil meter or tracer uses the global provider.
func NewTelemetry(meter metric.Meter, tracer trace.Tracer) (*Telemetry, error) {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}
	if tracer == nil {
		tracer = otel.Tracer(InstrumentationName)
	}

	t := &Telemetry{tracer: tracer}
	var err error

	t.runsTotal, err = meter.Int64Counter(
		"marcopolo.runs.total",
		metric.WithDescription("Total number of pipeline runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	t.rejectionsTotal, err = meter.Int64Counter(
		"marcopolo.admission.rejections.total",
		metric.WithDescription("Total number of documents rejected by the admission gate"),
		metric.WithUnit("{document}"),
	)
	if err != nil {
		return nil, err
	}

	t.nearMissesTotal, err = meter.Int64Counter(
		"marcopolo.units.near_misses.total",
		metric.WithDescription("Total number of ignored POLO lines resembling directives"),
		metric.WithUnit("{line}"),
	)
	if err != nil {
		return nil, err
	}

	t.edgesTotal, err = meter.Int64Counter(
		"marcopolo.edges.total",
		metric.WithDescription("Total number of trace edges emitted"),
		metric.WithUnit("{edge}"),
	)
	if err != nil {
		return nil, err
	}

	t.confidence, err = meter.Float64Histogram(
		"marcopolo.confidence",
		metric.WithDescription("Verification confidence per run"),
		metric.WithUnit("1"),
		metric.WithExplicitBucketBoundaries(0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0),
	)
	if err != nil {
		return nil, err
	}

	return t, nil
}

// startStage opens a span for one pipeline stage.
func (t *Telemetry) startStage(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if t == nil {
		return ctx, noop.Span{}
	}
	return t.tracer.Start(ctx, "marcopolo."+name, trace.WithAttributes(attrs...))
}

// endStage ends a span, marking it failed when err is non-nil.
func endStage(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (t *Telemetry) recordRun(ctx context.Context, operation, outcome string) {
	if t == nil {
		return
	}
	t.runsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

func (t *Telemetry) recordRejection(ctx context.Context, document string) {
	if t == nil {
		return
	}
	t.rejectionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("document", document)))
}

func (t *Telemetry) recordNearMisses(ctx context.Context, n int) {
	if t == nil || n == 0 {
		return
	}
	t.nearMissesTotal.Add(ctx, int64(n))
}

func (t *Telemetry) recordVerification(ctx context.Context, operation string, confidence float64, edges int) {
	if t == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("operation", operation))
	t.edgesTotal.Add(ctx, int64(edges), attrs)
	t.confidence.Record(ctx, confidence, attrs)
}
