package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// latencyBuckets are the histogram buckets (seconds) for request and pipeline durations.
var latencyBuckets = []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10}

// HTTPMetrics records HTTP server metrics with bounded cardinality (route template, status class).
type HTTPMetrics interface {
	RecordRequest(ctx context.Context, method, route, statusClass string, duration time.Duration)
}

// PipelineMetrics records enrichment pipeline outcomes and durations.
// Outcomes: success, load_failed, persist_failed, embedding_failed.
type PipelineMetrics interface {
	RecordPipelineOutcome(ctx context.Context, outcome string)
	RecordPipelineDuration(ctx context.Context, duration time.Duration, outcome string)
}

// CacheMetrics records cache hit/miss metrics with bounded cardinality (cache name).
type CacheMetrics interface {
	RecordHit(ctx context.Context, cacheName string)
	RecordMiss(ctx context.Context, cacheName string)
}

// Metrics bundles all Prometheus instruments behind one registry.
// A nil *Metrics is valid everywhere metrics are optional.
type Metrics struct {
	registry *prometheus.Registry

	requestCount     *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	pipelineOutcomes *prometheus.CounterVec
	pipelineDuration *prometheus.HistogramVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
}

// NewMetrics creates the instruments on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requestCount: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route template, and status class.",
		}, []string{"method", "route", "status_class"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: latencyBuckets,
		}, []string{"method", "route"}),
		pipelineOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Enrichment pipeline outcomes (success, load_failed, persist_failed, embedding_failed).",
		}, []string{"outcome"}),
		pipelineDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_duration_seconds",
			Help:    "Enrichment pipeline duration in seconds per outcome.",
			Buckets: latencyBuckets,
		}, []string{"outcome"}),
		cacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Cache lookups that returned a cached value. Label cache: search_query_embedding.",
		}, []string{"cache"}),
		cacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Cache lookups that missed and triggered a load from the backing store.",
		}, []string{"cache"}),
	}
}

// Handler returns the /metrics HTTP handler for the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest implements HTTPMetrics.
func (m *Metrics) RecordRequest(_ context.Context, method, route, statusClass string, duration time.Duration) {
	m.requestCount.WithLabelValues(method, route, statusClass).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordPipelineOutcome implements PipelineMetrics.
func (m *Metrics) RecordPipelineOutcome(_ context.Context, outcome string) {
	m.pipelineOutcomes.WithLabelValues(normalizePipelineOutcome(outcome)).Inc()
}

// RecordPipelineDuration implements PipelineMetrics.
func (m *Metrics) RecordPipelineDuration(_ context.Context, duration time.Duration, outcome string) {
	m.pipelineDuration.WithLabelValues(normalizePipelineOutcome(outcome)).Observe(duration.Seconds())
}

// RecordHit implements CacheMetrics.
func (m *Metrics) RecordHit(_ context.Context, cacheName string) {
	m.cacheHits.WithLabelValues(normalizeCacheName(cacheName)).Inc()
}

// RecordMiss implements CacheMetrics.
func (m *Metrics) RecordMiss(_ context.Context, cacheName string) {
	m.cacheMisses.WithLabelValues(normalizeCacheName(cacheName)).Inc()
}

// normalizePipelineOutcome maps outcome to a bounded set for cardinality control.
func normalizePipelineOutcome(s string) string {
	switch s {
	case "success", "load_failed", "persist_failed", "embedding_failed":
		return s
	default:
		return "unknown"
	}
}

// normalizeCacheName maps cache name to a bounded set.
func normalizeCacheName(s string) string {
	switch s {
	case "search_query_embedding":
		return s
	default:
		return "unknown"
	}
}
