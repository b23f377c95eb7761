// Package metrics exposes the Prometheus series documented in §6: a
// private registry (not the global default) so a process hosting
// several runtimes in tests never collides on double-registration.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every series the runtime updates.
type Metrics struct {
	Registry *prometheus.Registry

	EventsRouted     *prometheus.CounterVec
	ProcessingTime   *prometheus.HistogramVec
	ConnectorErrors  *prometheus.CounterVec
	Uptime           prometheus.Gauge
	ConnectedSources prometheus.Gauge
}

// New registers every orgloop_* series on a fresh registry and returns
// the bundle.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		EventsRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orgloop_events_routed_total",
			Help: "Total events routed, by route and connector.",
		}, []string{"route", "connector"}),
		ProcessingTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "orgloop_event_processing_seconds",
			Help: "End-to-end processing latency per route.",
		}, []string{"route"}),
		ConnectorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orgloop_connector_errors_total",
			Help: "Total connector errors, by connector.",
		}, []string{"connector"}),
		Uptime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orgloop_uptime_seconds",
			Help: "Seconds since the runtime started.",
		}),
		ConnectedSources: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orgloop_connected_sources",
			Help: "Number of currently registered source instances.",
		}),
	}
	reg.MustRegister(m.EventsRouted, m.ProcessingTime, m.ConnectorErrors, m.Uptime, m.ConnectedSources)
	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
