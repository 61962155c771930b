// Package metrics exposes server telemetry through a private Prometheus
// registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's collectors.
type Metrics struct {
	registry *prometheus.Registry

	ClientsConnected  prometheus.Gauge
	LobbiesOpen       prometheus.Gauge
	MessagesTotal     *prometheus.CounterVec
	ProtocolErrors    prometheus.Counter
	EvictionsTotal    prometheus.Counter
	MatchesStarted    prometheus.Counter
	RendezvousReports prometheus.Counter
}

// New builds the collector set on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ClientsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "matchpoint_clients_connected",
			Help: "Number of currently registered clients.",
		}),
		LobbiesOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "matchpoint_lobbies_open",
			Help: "Number of lobbies currently registered.",
		}),
		MessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matchpoint_messages_total",
			Help: "Control messages handled, by payload tag.",
		}, []string{"tag"}),
		ProtocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchpoint_protocol_errors_total",
			Help: "Frames or payloads rejected as malformed or undecryptable.",
		}),
		EvictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchpoint_evictions_total",
			Help: "Clients removed by the liveness monitor.",
		}),
		MatchesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchpoint_matches_started_total",
			Help: "Lobby starts handed to the rendezvous coordinator.",
		}),
		RendezvousReports: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchpoint_rendezvous_reports_total",
			Help: "Rendezvous address reports received over UDP.",
		}),
	}

	m.registry.MustRegister(
		m.ClientsConnected,
		m.LobbiesOpen,
		m.MessagesTotal,
		m.ProtocolErrors,
		m.EvictionsTotal,
		m.MatchesStarted,
		m.RendezvousReports,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
