package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics implements Metrics on a private registry.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	actions            *prometheus.CounterVec
	sponsoredFallbacks *prometheus.CounterVec
	capabilityProbes   *prometheus.CounterVec
	notifications      *prometheus.CounterVec

	readErrors  *prometheus.CounterVec
	readLatency *prometheus.HistogramVec

	cooldownRemaining prometheus.Gauge
	wsClients         prometheus.Gauge
}

func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	m := &PrometheusMetrics{
		registry: registry,

		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Contract actions by kind and result",
			},
			[]string{"kind", "result"},
		),
		sponsoredFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sponsored_fallbacks_total",
				Help:      "Sponsored hatches that fell back to a plain hatch",
			},
			[]string{"reason"},
		),
		capabilityProbes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "capability_probes_total",
				Help:      "wallet_getCapabilities probes by outcome",
			},
			[]string{"outcome"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Cooldown notifications by delivery result",
			},
			[]string{"result"},
		),
		readErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "read_errors_total",
				Help:      "Failed contract reads after retries",
			},
			[]string{"query"},
		),
		readLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "read_latency_seconds",
				Help:      "Contract read latency including retries",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20},
			},
			[]string{"query"},
		),
		cooldownRemaining: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cooldown_remaining_seconds",
				Help:      "Seconds until the bound account can hatch again",
			},
		),
		wsClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ws_clients",
				Help:      "Connected websocket state subscribers",
			},
		),
	}

	m.registry.MustRegister(
		m.actions,
		m.sponsoredFallbacks,
		m.capabilityProbes,
		m.notifications,
		m.readErrors,
		m.readLatency,
		m.cooldownRemaining,
		m.wsClients,
	)
	return m
}

func (m *PrometheusMetrics) IncAction(kind, result string) {
	m.actions.WithLabelValues(kind, result).Inc()
}

func (m *PrometheusMetrics) IncSponsoredFallback(reason string) {
	m.sponsoredFallbacks.WithLabelValues(reason).Inc()
}

func (m *PrometheusMetrics) IncCapabilityProbe(outcome string) {
	m.capabilityProbes.WithLabelValues(outcome).Inc()
}

func (m *PrometheusMetrics) IncNotification(result string) {
	m.notifications.WithLabelValues(result).Inc()
}

func (m *PrometheusMetrics) IncReadError(query string) {
	m.readErrors.WithLabelValues(query).Inc()
}

func (m *PrometheusMetrics) ObserveReadLatency(query string, d time.Duration) {
	m.readLatency.WithLabelValues(query).Observe(d.Seconds())
}

func (m *PrometheusMetrics) SetCooldownRemaining(d time.Duration) {
	m.cooldownRemaining.Set(d.Seconds())
}

func (m *PrometheusMetrics) SetWSClients(n int) { m.wsClients.Set(float64(n)) }

// Registry returns the underlying registry.
func (m *PrometheusMetrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry: m.registry,
	})
}
