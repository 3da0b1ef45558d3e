package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry      *prometheus.Registry
	ListingWrites *prometheus.CounterVec
	FileCleanups  *prometheus.CounterVec
	HTTPLatency   *prometheus.HistogramVec
}

func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	listingWrites := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "listing_writes_total",
		Help:      "Aggregate writes by operation and outcome.",
	}, []string{"operation", "outcome"})

	fileCleanups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "photo_file_cleanups_total",
		Help:      "Photo file removals by phase (compensate, post_commit) and result.",
	}, []string{"phase", "result"})

	httpLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	registry.MustRegister(
		listingWrites,
		fileCleanups,
		httpLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		Registry:      registry,
		ListingWrites: listingWrites,
		FileCleanups:  fileCleanups,
		HTTPLatency:   httpLatency,
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveWrite(operation, outcome string) {
	if m == nil {
		return
	}
	m.ListingWrites.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveCleanup(phase string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.FileCleanups.WithLabelValues(phase, result).Inc()
}

func (m *Metrics) ObserveRequest(method, route, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPLatency.WithLabelValues(method, route, status).Observe(elapsed.Seconds())
}
