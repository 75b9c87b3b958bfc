package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the tournament's collectors. A nil *Metrics is valid and
// records nothing, so tests can leave it out.
type Metrics struct {
	connections      prometheus.Gauge
	identifications  *prometheus.CounterVec
	scores           prometheus.Counter
	openRings        prometheus.Gauge
	matchTransitions *prometheus.CounterVec
	storeErrors      *prometheus.CounterVec
	droppedClients   prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "taekwon",
			Name:      "connections",
			Help:      "Websocket channels currently bound to the tournament.",
		}),
		identifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taekwon",
			Name:      "identifications_total",
			Help:      "Identification attempts by role and outcome.",
		}, []string{"role", "outcome"}),
		scores: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taekwon",
			Name:      "scores_total",
			Help:      "Scores accepted from corner judges.",
		}),
		openRings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "taekwon",
			Name:      "open_rings",
			Help:      "Rings with a jury president.",
		}),
		matchTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taekwon",
			Name:      "match_transitions_total",
			Help:      "Match state changes by target state.",
		}, []string{"to"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taekwon",
			Name:      "store_errors_total",
			Help:      "Failed store operations by operation.",
		}, []string{"op"}),
		droppedClients: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taekwon",
			Name:      "dropped_clients_total",
			Help:      "Channels dropped because their outbox was full.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.connections,
			m.identifications,
			m.scores,
			m.openRings,
			m.matchTransitions,
			m.storeErrors,
			m.droppedClients,
		)
	}
	return m
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *Metrics) Identified(role, outcome string) {
	if m != nil {
		m.identifications.WithLabelValues(role, outcome).Inc()
	}
}

func (m *Metrics) Scored() {
	if m != nil {
		m.scores.Inc()
	}
}

func (m *Metrics) SetOpenRings(n int) {
	if m != nil {
		m.openRings.Set(float64(n))
	}
}

func (m *Metrics) MatchTransition(to string) {
	if m != nil {
		m.matchTransitions.WithLabelValues(to).Inc()
	}
}

func (m *Metrics) StoreError(op string) {
	if m != nil {
		m.storeErrors.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) ClientDropped() {
	if m != nil {
		m.droppedClients.Inc()
	}
}
