package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Provider owns the trace and meter providers of one process.
//
// A disabled Provider hands out the global (no-op by default) tracer and
// meter, and every method is safe on a nil receiver.
type Provider struct {
	cfg Config
	tp  *sdktrace.TracerProvider
	mp  *sdkmetric.MeterProvider
}

// Option configures New.
type Option func(*options)

type options struct {
	version    string
	spanExp    sdktrace.SpanExporter
	metricRead sdkmetric.Reader
}

// WithVersion sets the service.version resource attribute.
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// WithSpanExporter replaces the OTLP trace exporter.
func WithSpanExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) { o.spanExp = exp }
}

// WithMetricReader replaces the periodic OTLP metric reader.
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(o *options) { o.metricRead = r }
}

// New builds providers from cfg. It does not install them globally.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}
	p := &Provider{cfg: *cfg}
	if !cfg.Enabled {
		return p, nil
	}

	o := options{version: "dev"}
	for _, opt := range opts {
		opt(&o)
	}
	res := newResource(cfg, o.version)

	spanExp := o.spanExp
	if spanExp == nil {
		exp, err := newTraceExporter(ctx, cfg)
		if err != nil {
			return nil, err
		}
		spanExp = exp
	}
	p.tp = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(cfg.SampleRate)),
	)

	reader := o.metricRead
	if reader == nil {
		r, err := newMetricReader(ctx, cfg)
		if err != nil {
			_ = p.tp.Shutdown(ctx)
			return nil, err
		}
		reader = r
	}
	p.mp = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	return p, nil
}

// Enabled reports whether telemetry is exported.
func (p *Provider) Enabled() bool {
	return p != nil && p.tp != nil
}

// Tracer returns a tracer for the given instrumentation scope.
func (p *Provider) Tracer(name string) trace.Tracer {
	if !p.Enabled() {
		return otel.Tracer(name)
	}
	return p.tp.Tracer(name)
}

// Meter returns a meter for the given instrumentation scope.
func (p *Provider) Meter(name string) metric.Meter {
	if !p.Enabled() {
		return otel.Meter(name)
	}
	return p.mp.Meter(name)
}

// ForceFlush exports all pending spans and metrics.
func (p *Provider) ForceFlush(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	return errors.Join(p.tp.ForceFlush(ctx), p.mp.ForceFlush(ctx))
}

// Shutdown flushes and stops both providers, bounded by the configured
// shutdown timeout when ctx has no deadline.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.ShutdownTimeout)
		defer cancel()
	}

	var errs []error
	if err := p.tp.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("trace provider shutdown: %w", err))
	}
	if err := p.mp.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
	}
	return errors.Join(errs...)
}
