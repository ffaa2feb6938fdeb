package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Call outcomes
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeRejected = "rejected"
	OutcomeCached   = "cached"
)

// Metrics collects ingestion metrics.
type Metrics interface {
	RecordProviderCall(provider, operation, outcome string)
	RecordCacheLookup(provider, operation string, hit bool)
	RecordFallback(provider, reason string)
	RecordRateWait(provider string, wait time.Duration)
	SetBudgetTotal(total float64)
}

// NopMetrics discards everything
type NopMetrics struct{}

func (NopMetrics) RecordProviderCall(string, string, string) {}
func (NopMetrics) RecordCacheLookup(string, string, bool)    {}
func (NopMetrics) RecordFallback(string, string)             {}
func (NopMetrics) RecordRateWait(string, time.Duration)      {}
func (NopMetrics) SetBudgetTotal(float64)                    {}

// PrometheusMetrics implements Metrics on a private registry
type PrometheusMetrics struct {
	registry     *prometheus.Registry
	calls        *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	fallbacks    *prometheus.CounterVec
	rateWait     *prometheus.HistogramVec
	budgetTotal  prometheus.Gauge
}

// NewPrometheusMetrics creates and registers the collectors
func NewPrometheusMetrics() *PrometheusMetrics {
	m := &PrometheusMetrics{registry: prometheus.NewRegistry()}

	m.calls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ingestion",
		Name:      "provider_calls_total",
		Help:      "Governed provider calls by outcome",
	}, []string{"provider", "operation", "outcome"})
	m.cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ingestion",
		Name:      "cache_lookups_total",
		Help:      "Response cache lookups by result",
	}, []string{"provider", "operation", "result"})
	m.fallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ingestion",
		Name:      "fallbacks_total",
		Help:      "Requests served by the mock provider after a primary failure",
	}, []string{"provider", "reason"})
	m.rateWait = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ingestion",
		Name:      "rate_wait_seconds",
		Help:      "Time spent suspended by the sliding-window rate governor",
		Buckets:   []float64{0, 0.5, 1, 5, 15, 30, 60},
	}, []string{"provider"})
	m.budgetTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ingestion",
		Name:      "budget_total_cost_dollars",
		Help:      "Cumulative tracked upstream API spend",
	})

	m.registry.MustRegister(m.calls, m.cacheLookups, m.fallbacks, m.rateWait, m.budgetTotal)
	return m
}

// Registry exposes the underlying registry for tests and extra collectors
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PrometheusMetrics) RecordProviderCall(provider, operation, outcome string) {
	m.calls.WithLabelValues(provider, operation, outcome).Inc()
}

func (m *PrometheusMetrics) RecordCacheLookup(provider, operation string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(provider, operation, result).Inc()
}

func (m *PrometheusMetrics) RecordFallback(provider, reason string) {
	m.fallbacks.WithLabelValues(provider, reason).Inc()
}

func (m *PrometheusMetrics) RecordRateWait(provider string, wait time.Duration) {
	m.rateWait.WithLabelValues(provider).Observe(wait.Seconds())
}

func (m *PrometheusMetrics) SetBudgetTotal(total float64) {
	m.budgetTotal.Set(total)
}
