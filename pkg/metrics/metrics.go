// Package metrics provides Prometheus metrics for the questionnaire service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "questionnaire"

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Ingestion metrics
	DocumentsIngested *prometheus.CounterVec

	// Generation metrics
	GenerationCalls    *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	GenerationJobs     *prometheus.CounterVec
	ActiveJobs         prometheus.Gauge
}

// New creates a Metrics instance on its own registry, including the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newWithRegistry(reg)
}

func newWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{registry: reg}

	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	m.DocumentsIngested = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_ingested_total",
			Help:      "Total number of uploaded documents by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	m.GenerationCalls = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_calls_total",
			Help:      "Total number of answer generation calls by outcome",
		},
		[]string{"outcome"},
	)

	m.GenerationDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Duration of a single answer generation including retries",
			Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 20, 40, 80},
		},
	)

	m.GenerationJobs = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_jobs_total",
			Help:      "Total number of finished generation jobs by final status",
		},
		[]string{"status"},
	)

	m.ActiveJobs = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "generation_jobs_active",
			Help:      "Number of generation jobs currently running in this process",
		},
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
