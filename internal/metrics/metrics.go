// Package metrics exposes Prometheus counters for the fetch pipeline, the
// result cache and query runs. A nil *Metrics records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "narrative"

// Metrics owns a private registry so tests and multiple instances never
// collide on the global one.
type Metrics struct {
	reg *prometheus.Registry

	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	mentions      *prometheus.CounterVec
	cache         *prometheus.CounterVec
	queries       *prometheus.CounterVec
	queryDuration prometheus.Histogram
	breakerOpen   *prometheus.GaugeVec
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{reg: prometheus.NewRegistry()}

	m.fetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adapter_fetches_total",
			Help:      "Adapter calls by stage and outcome (ok, error, skipped)",
		},
		[]string{"stage", "adapter", "outcome"},
	)
	m.fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "adapter_fetch_duration_seconds",
			Help:      "Adapter call duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"adapter"},
	)
	m.mentions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adapter_mentions_total",
			Help:      "Mentions returned per adapter before deduplication",
		},
		[]string{"adapter"},
	)
	m.cache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by result (hit, miss)",
		},
		[]string{"result"},
	)
	m.queries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Queries by outcome (ok, invalid)",
		},
		[]string{"outcome"},
	)
	m.queryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "End-to-end query duration in seconds",
			Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 20, 30, 60},
		},
	)
	m.breakerOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "adapter_circuit_open",
			Help:      "1 while an adapter's circuit breaker is open",
		},
		[]string{"adapter"},
	)

	m.reg.MustRegister(
		m.fetches, m.fetchDuration, m.mentions, m.cache,
		m.queries, m.queryDuration, m.breakerOpen,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ObserveFetch records one adapter call.
func (m *Metrics) ObserveFetch(stage, adapter string, n int, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.fetches.WithLabelValues(stage, adapter, outcome).Inc()
	m.fetchDuration.WithLabelValues(adapter).Observe(d.Seconds())
	m.mentions.WithLabelValues(adapter).Add(float64(n))
}

// ObserveSkip records a fallback adapter that did not need to run.
func (m *Metrics) ObserveSkip(stage, adapter string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(stage, adapter, "skipped").Inc()
}

// ObserveCache records a cache lookup.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cache.WithLabelValues(result).Inc()
}

// ObserveQuery records a finished query. Invalid queries have no duration.
func (m *Metrics) ObserveQuery(d time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.queries.WithLabelValues("invalid").Inc()
		return
	}
	m.queries.WithLabelValues("ok").Inc()
	m.queryDuration.Observe(d.Seconds())
}

// SetBreaker records whether an adapter's circuit is open.
func (m *Metrics) SetBreaker(adapter string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.breakerOpen.WithLabelValues(adapter).Set(v)
}
