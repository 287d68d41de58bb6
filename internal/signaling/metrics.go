package signaling

import "github.com/prometheus/client_golang/prometheus"

// Metrics is an additive observability surface: Prometheus gauges/counters
// for connected peers, active lobbies, and per-opcode command counts. It
// augments, and never substitutes for, the logging-only memory report the
// memory-stats ticker already produces.
type Metrics struct {
	peersConnected prometheus.Gauge
	lobbiesActive  prometheus.Gauge
	commandsTotal  *prometheus.CounterVec
}

// NewMetrics registers the signaling server's counters/gauges on reg and
// returns a Metrics ready to pass to NewHub. Pass nil to NewHub to disable
// metrics entirely (used by tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		peersConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signaling_peers_connected",
			Help: "Number of currently connected peers.",
		}),
		lobbiesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signaling_lobbies_active",
			Help: "Number of lobbies currently in the directory.",
		}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signaling_commands_total",
			Help: "Number of inbound command frames handled, by opcode.",
		}, []string{"call"}),
	}
	reg.MustRegister(m.peersConnected, m.lobbiesActive, m.commandsTotal)
	return m
}

// nopMetrics is used when the caller passes a nil Metrics to NewHub, so Hub
// never needs a nil check at each call site.
func nopMetrics() *Metrics {
	return &Metrics{
		peersConnected: prometheus.NewGauge(prometheus.GaugeOpts{Name: "signaling_peers_connected_noop"}),
		lobbiesActive:  prometheus.NewGauge(prometheus.GaugeOpts{Name: "signaling_lobbies_active_noop"}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signaling_commands_total_noop",
		}, []string{"call"}),
	}
}
