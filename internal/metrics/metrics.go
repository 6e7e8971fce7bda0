// Package metrics exposes Prometheus counters for document ingestion and analysis requests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
	"time"
)

const namespace = "fsvalidator"

const (
	OutcomeOK           = "ok"
	OutcomeFailed       = "failed"
	OutcomeUnconfigured = "unconfigured"
)

type Recorder struct {
	registry         *prometheus.Registry
	ingestions       *prometheus.CounterVec
	analyses         *prometheus.CounterVec
	analysisDuration prometheus.Histogram
}

// NewRecorder registers the collectors on a fresh registry so that several recorders can coexist in tests.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		ingestions: prometheus.NewCounterVec(prometheus.CounterOpts{ //nolint:exhaustruct // defaults suffice
			Namespace: namespace,
			Name:      "ingestions_total",
			Help:      "Uploaded documents by text extraction outcome.",
		}, []string{"outcome"}),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{ //nolint:exhaustruct // defaults suffice
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Checklist questions asked by outcome.",
		}, []string{"outcome"}),
		analysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{ //nolint:exhaustruct // defaults suffice
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Time spent waiting for the model to answer.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}),
	}
	r.registry.MustRegister(
		r.ingestions,
		r.analyses,
		r.analysisDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), //nolint:exhaustruct // defaults suffice
	)
	return r
}

func (r *Recorder) Ingestion(outcome string) {
	r.ingestions.WithLabelValues(outcome).Inc()
}

func (r *Recorder) Analysis(outcome string, duration time.Duration) {
	r.analyses.WithLabelValues(outcome).Inc()
	if outcome != OutcomeUnconfigured {
		r.analysisDuration.Observe(duration.Seconds())
	}
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}) //nolint:exhaustruct // defaults suffice
}

// Ingestions returns the counter for outcome. Useful for tests.
func (r *Recorder) Ingestions(outcome string) prometheus.Counter {
	return r.ingestions.WithLabelValues(outcome)
}

// Analyses returns the counter for outcome. Useful for tests.
func (r *Recorder) Analyses(outcome string) prometheus.Counter {
	return r.analyses.WithLabelValues(outcome)
}
