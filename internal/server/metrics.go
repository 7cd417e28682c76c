package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tjfontaine/promptgate/internal/dispatch"
)

var _ dispatch.Observer = (*Metrics)(nil)

// Metrics is a dispatch.Observer backed by Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	requests     *prometheus.CounterVec
	fallbacks    *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	sideEffects  *prometheus.CounterVec
	attempts     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// NewMetrics registers the gateway collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "promptgate_requests_total",
			Help: "Chat requests by provider family and outcome.",
		}, []string{"family", "outcome"}),
		fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "promptgate_fallbacks_total",
			Help: "Chat requests served by the family fallback model.",
		}, []string{"family"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "promptgate_cache_lookups_total",
			Help: "Response cache lookups by result (hit, miss, error).",
		}, []string{"result"}),
		sideEffects: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "promptgate_side_effect_failures_total",
			Help: "Cache or log operations that failed without failing the request.",
		}, []string{"kind"}),
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "promptgate_provider_attempts_total",
			Help: "Provider calls by model and result.",
		}, []string{"family", "model", "result"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "promptgate_provider_latency_seconds",
			Help:    "Provider call latency by model.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}, []string{"family", "model"}),
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RequestCompleted(family, outcome string) {
	m.requests.WithLabelValues(family, outcome).Inc()
}

func (m *Metrics) AttemptCompleted(family, model string, latency time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.attempts.WithLabelValues(family, model, result).Inc()
	m.latency.WithLabelValues(family, model).Observe(latency.Seconds())
}

func (m *Metrics) FallbackUsed(family string) {
	m.fallbacks.WithLabelValues(family).Inc()
}

func (m *Metrics) CacheLookup(result string) {
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) SideEffectFailed(kind string) {
	m.sideEffects.WithLabelValues(kind).Inc()
}
