// Package telemetry exposes process metrics over Prometheus. One Metrics
// value is created at boot and threaded into the layers that record.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the service records into.
type Metrics struct {
	registry *prometheus.Registry

	searchTotal    *prometheus.CounterVec
	searchLatency  *prometheus.HistogramVec
	searchFailures *prometheus.CounterVec
	zeroResults    prometheus.Counter

	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter

	breakerState *prometheus.GaugeVec

	sessionsLive   prometheus.Gauge
	sessionsEvicted prometheus.Counter

	catalogVariables prometheus.Gauge
	catalogReloads   prometheus.Counter
}

// New builds the metrics set on a fresh registry. Tests get isolated
// registries for free; the HTTP layer serves the registry at /metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		searchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "segmenta",
			Name:      "search_total",
			Help:      "Search requests by retrieval method.",
		}, []string{"method"}),
		searchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "segmenta",
			Name:      "search_duration_seconds",
			Help:      "End-to-end search latency.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method"}),
		searchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "segmenta",
			Name:      "search_failures_total",
			Help:      "Failed search requests by error code.",
		}, []string{"code"}),
		zeroResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "segmenta",
			Name:      "search_zero_results_total",
			Help:      "Searches that returned no candidates.",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "segmenta",
			Name:      "result_cache_hits_total",
			Help:      "Result cache hits.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "segmenta",
			Name:      "result_cache_misses_total",
			Help:      "Result cache misses.",
		}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "segmenta",
			Name:      "breaker_open",
			Help:      "Circuit breaker state (1 open, 0 closed).",
		}, []string{"name"}),
		sessionsLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "segmenta",
			Name:      "sessions_live",
			Help:      "Currently live conversational sessions.",
		}),
		sessionsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "segmenta",
			Name:      "sessions_evicted_total",
			Help:      "Sessions evicted by the idle TTL janitor.",
		}),
		catalogVariables: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "segmenta",
			Name:      "catalog_variables",
			Help:      "Variables in the current catalog snapshot.",
		}),
		catalogReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "segmenta",
			Name:      "catalog_reloads_total",
			Help:      "Completed catalog snapshot swaps.",
		}),
	}

	reg.MustRegister(
		m.searchTotal, m.searchLatency, m.searchFailures, m.zeroResults,
		m.cacheHits, m.cacheMisses,
		m.breakerState,
		m.sessionsLive, m.sessionsEvicted,
		m.catalogVariables, m.catalogReloads,
	)
	return m
}

// Registry returns the backing registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveSearch records one completed search. method is the dominant
// retrieval method ("hybrid", "keyword", "semantic").
func (m *Metrics) ObserveSearch(method string, elapsed time.Duration, resultCount int) {
	if m == nil {
		return
	}
	m.searchTotal.WithLabelValues(method).Inc()
	m.searchLatency.WithLabelValues(method).Observe(elapsed.Seconds())
	if resultCount == 0 {
		m.zeroResults.Inc()
	}
}

// ObserveSearchFailure records one failed search by error code.
func (m *Metrics) ObserveSearchFailure(code string) {
	if m == nil {
		return
	}
	m.searchFailures.WithLabelValues(code).Inc()
}

// ObserveCache records a cache lookup outcome.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// SetBreakerOpen publishes a breaker's state.
func (m *Metrics) SetBreakerOpen(name string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1.0
	}
	m.breakerState.WithLabelValues(name).Set(v)
}

// SetLiveSessions publishes the live session count.
func (m *Metrics) SetLiveSessions(n int) {
	if m == nil {
		return
	}
	m.sessionsLive.Set(float64(n))
}

// AddEvictedSessions counts janitor evictions.
func (m *Metrics) AddEvictedSessions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsEvicted.Add(float64(n))
}

// ObserveCatalogSwap records a completed snapshot swap.
func (m *Metrics) ObserveCatalogSwap(variables int) {
	if m == nil {
		return
	}
	m.catalogVariables.Set(float64(variables))
	m.catalogReloads.Inc()
}
