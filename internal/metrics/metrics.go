// Package metrics holds the Prometheus collectors of the gateway.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ozone"

// Metrics contains the gateway collectors registered on their own registry.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	StageErrors     *prometheus.CounterVec
	PluginsLoaded   prometheus.Gauge
	PluginsFailed   prometheus.Gauge
	Ready           prometheus.Gauge
}

// New creates and registers every collector, plus the Go and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "requests",
				Name:      "total",
				Help:      "Gateway requests by plugin, method and status code",
			},
			[]string{"plugin", "method", "code"},
		),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "requests",
				Name:      "duration_seconds",
				Help:      "Gateway request round trip in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"plugin", "method"},
		),

		StageErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "errors_total",
				Help:      "Pipeline failures by stage",
			},
			[]string{"stage"},
		),

		PluginsLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "plugins",
				Name:      "loaded",
				Help:      "Plugins whose routes are registered",
			},
		),

		PluginsFailed: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "plugins",
				Name:      "failed",
				Help:      "Plugins that failed to load or register",
			},
		),

		Ready: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ready",
				Help:      "Gateway readiness (0=booting, 1=ready)",
			},
		),
	}

	m.registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.StageErrors,
		m.PluginsLoaded,
		m.PluginsFailed,
		m.Ready,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, e.g. for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text or OpenMetrics format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// ObserveRequest records one finished gateway request. A nil Metrics is a
// no-op.
func (m *Metrics) ObserveRequest(plugin, method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(plugin, method, strconv.Itoa(code)).Inc()
	m.RequestDuration.WithLabelValues(plugin, method).Observe(d.Seconds())
}

// StageError counts a pipeline failure.
func (m *Metrics) StageError(stage string) {
	if m == nil {
		return
	}
	m.StageErrors.WithLabelValues(stage).Inc()
}

// SetPlugins publishes the settle counts.
func (m *Metrics) SetPlugins(loaded, failed int, ready bool) {
	if m == nil {
		return
	}
	m.PluginsLoaded.Set(float64(loaded))
	m.PluginsFailed.Set(float64(failed))
	if ready {
		m.Ready.Set(1)
	} else {
		m.Ready.Set(0)
	}
}
