// Package metrics exposes ingestion and retrieval counters over Prometheus.
//
// All methods are safe on a nil *Metrics, so components can take one optionally.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docqa"

// Metrics holds the registry and the series recorded by the pipeline.
type Metrics struct {
	registry *prometheus.Registry

	documentsProcessed *prometheus.CounterVec
	ingestDuration     prometheus.Histogram
	retrievals         *prometheus.CounterVec
	grounding          *prometheus.CounterVec
}

// New creates a registry with Go and process collectors plus the docqa series.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		documentsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_processed_total",
			Help:      "Documents submitted for processing, by outcome.",
		}, []string{"status"}),
		ingestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Time to extract, chunk and persist one document.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		retrievals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_total",
			Help:      "Retrieval calls, by the strategy that produced the result.",
		}, []string{"strategy"}),
		grounding: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grounding_total",
			Help:      "Context assembly outcomes, by terminal state.",
		}, []string{"state"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.documentsProcessed,
		m.ingestDuration,
		m.retrievals,
		m.grounding,
	)
	return m
}

// DocumentProcessed counts one Process call by status.
func (m *Metrics) DocumentProcessed(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.documentsProcessed.WithLabelValues(status).Inc()
	m.ingestDuration.Observe(elapsed.Seconds())
}

// Retrieval counts one retrieval by strategy.
func (m *Metrics) Retrieval(strategy string) {
	if m == nil {
		return
	}
	m.retrievals.WithLabelValues(strategy).Inc()
}

// Grounding counts one assembled context by state.
func (m *Metrics) Grounding(state string) {
	if m == nil {
		return
	}
	m.grounding.WithLabelValues(state).Inc()
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
