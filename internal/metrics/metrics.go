// Package metrics registers the Prometheus collectors exposed by the
// API server and the background worker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application collectors.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	PermissionChecks    *prometheus.CounterVec
	RoleCacheHits       prometheus.Counter
	RoleCacheMisses     prometheus.Counter
	CollectionRefreshes *prometheus.CounterVec
	DatasetStateChanges *prometheus.CounterVec
	JobsProcessed       *prometheus.CounterVec
	JobDuration         *prometheus.HistogramVec
}

// New creates and registers the application collectors on a fresh
// registry alongside the standard Go runtime and process collectors.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		PermissionChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "permission_checks_total",
			Help:      "Permission checks by action and outcome.",
		}, []string{"action", "outcome"}),
		RoleCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "role_cache_hits_total",
			Help:      "Effective-role cache hits.",
		}),
		RoleCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "role_cache_misses_total",
			Help:      "Effective-role cache misses.",
		}),
		CollectionRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collection_refreshes_total",
			Help:      "Collection populated-state refreshes by resulting state.",
		}, []string{"state"}),
		DatasetStateChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_state_changes_total",
			Help:      "Dataset state transitions by new state.",
		}, []string{"state"}),
		JobsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_processed_total",
			Help:      "Background jobs processed by type and outcome.",
		}, []string{"type", "outcome"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Background job duration by type.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PermissionChecks,
		m.RoleCacheHits,
		m.RoleCacheMisses,
		m.CollectionRefreshes,
		m.DatasetStateChanges,
		m.JobsProcessed,
		m.JobDuration,
	)
	return m
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
