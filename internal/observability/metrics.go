package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's collectors on a private registry so tests can
// build isolated instances without collector name collisions.
type Metrics struct {
	Registry *prometheus.Registry

	SessionsCreated prometheus.Counter
	SessionsExpired prometheus.Counter
	JoinAttempts    *prometheus.CounterVec
	MessagesRelayed *prometheus.CounterVec
	MalformedInput  prometheus.Counter
}

// New builds the collector set. activeSessions is polled on scrape, keeping
// the gauge exact without threading metrics through the registry.
func New(activeSessions func() float64) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coview_sessions_created_total",
			Help: "Sessions created by presenters.",
		}),
		SessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coview_sessions_expired_total",
			Help: "Sessions evicted by the expiry sweeper.",
		}),
		JoinAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coview_join_attempts_total",
			Help: "Join attempts by outcome.",
		}, []string{"outcome"}),
		MessagesRelayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coview_messages_relayed_total",
			Help: "Inbound messages accepted by the router, by type.",
		}, []string{"type"}),
		MalformedInput: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coview_malformed_messages_total",
			Help: "Inbound payloads dropped as unparseable.",
		}),
	}

	reg.MustRegister(
		m.SessionsCreated,
		m.SessionsExpired,
		m.JoinAttempts,
		m.MessagesRelayed,
		m.MalformedInput,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "coview_active_sessions",
			Help: "Currently live sessions.",
		}, activeSessions),
	)

	return m
}
