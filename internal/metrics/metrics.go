// Package metrics records per-run verification metrics in a private
// Prometheus registry and exports them in the node_exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for marcopolo_runs_total.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeNoTyped  = "no_typed_units"
	OutcomeError    = "error"
)

// Recorder holds Prometheus metrics for marcopolo runs.
type Recorder struct {
	registry *prometheus.Registry

	RunsTotal              *prometheus.CounterVec
	AdmissionFailuresTotal *prometheus.CounterVec
	RunDuration            *prometheus.HistogramVec

	Confidence prometheus.Gauge
	Coverage   prometheus.Gauge
	Edges      prometheus.Gauge
}

// NewRecorder creates a recorder with its own registry, so several
// recorders can coexist in one process.
//
// Metrics:
//   - marcopolo_runs_total{command,outcome} - Count of command runs
//   - marcopolo_admission_failures_total{document} - Count of rejected documents (marco, polo or file)
//   - marcopolo_run_duration_seconds{command} - Histogram of run durations
//   - marcopolo_confidence - Confidence of the last verification
//   - marcopolo_coverage - Coverage of the last verification
//   - marcopolo_edges - Trace edges of the last verification
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marcopolo_runs_total",
				Help: "Total number of command runs",
			},
			[]string{"command", "outcome"},
		),
		AdmissionFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marcopolo_admission_failures_total",
				Help: "Total number of documents rejected by the admission gate",
			},
			[]string{"document"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marcopolo_run_duration_seconds",
				Help:    "Duration of command runs in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"command"},
		),
		Confidence: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marcopolo_confidence",
			Help: "Confidence score of the last verification",
		}),
		Coverage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marcopolo_coverage",
			Help: "Fraction of MARCO spans referenced by the last verification",
		}),
		Edges: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marcopolo_edges",
			Help: "Number of trace edges in the last verification",
		}),
	}

	r.registry.MustRegister(
		r.RunsTotal,
		r.AdmissionFailuresTotal,
		r.RunDuration,
		r.Confidence,
		r.Coverage,
		r.Edges,
	)
	return r
}

// ObserveRun counts a finished command run and its duration.
func (r *Recorder) ObserveRun(command, outcome string, d time.Duration) {
	r.RunsTotal.WithLabelValues(command, outcome).Inc()
	r.RunDuration.WithLabelValues(command).Observe(d.Seconds())
}

// ObserveAdmissionFailure counts one rejected document. document must be a
// document class, never a file path.
func (r *Recorder) ObserveAdmissionFailure(document string) {
	r.AdmissionFailuresTotal.WithLabelValues(document).Inc()
}

// ObserveVerification records the headline numbers of a report.
func (r *Recorder) ObserveVerification(confidence, coverage float64, edges int) {
	r.Confidence.Set(confidence)
	r.Coverage.Set(coverage)
	r.Edges.Set(float64(edges))
}

// Gatherer exposes the private registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile atomically writes all metrics to path in the text
// exposition format read by node_exporter's textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics textfile %s: %w", path, err)
	}
	return nil
}
