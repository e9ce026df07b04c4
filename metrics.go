package admin

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments for the admin core. A nil
// *Metrics is valid everywhere it is accepted; instrumentation is opt-in.
type Metrics struct {
	sessionsCreated     prometheus.Counter
	sessionsInvalidated prometheus.Counter
	sessionsSwept       prometheus.Counter
	lifecycleActions    *prometheus.CounterVec
	gateDecisions       *prometheus.CounterVec
}

// NewMetrics registers the admin instruments against reg, or against the
// default registerer when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "admin_sessions_created_total",
			Help: "Total number of sessions created.",
		}),
		sessionsInvalidated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "admin_sessions_invalidated_total",
			Help: "Total number of sessions removed by invalidation.",
		}),
		sessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "admin_sessions_swept_total",
			Help: "Total number of expired sessions removed by the sweeper.",
		}),
		lifecycleActions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admin_lifecycle_actions_total",
				Help: "Applied lifecycle actions by kind.",
			},
			[]string{"action"},
		),
		gateDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admin_gate_decisions_total",
				Help: "Authorization gate outcomes by decision.",
			},
			[]string{"decision"},
		),
	}

	reg.MustRegister(
		m.sessionsCreated,
		m.sessionsInvalidated,
		m.sessionsSwept,
		m.lifecycleActions,
		m.gateDecisions,
	)

	return m
}

// MetricsHandler exposes the default registry for scraping.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}

func (m *Metrics) SessionsInvalidated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsInvalidated.Add(float64(n))
}

func (m *Metrics) SessionsSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsSwept.Add(float64(n))
}

func (m *Metrics) LifecycleAction(action string) {
	if m == nil {
		return
	}
	m.lifecycleActions.WithLabelValues(action).Inc()
}

func (m *Metrics) GateDecision(decision string) {
	if m == nil {
		return
	}
	m.gateDecisions.WithLabelValues(decision).Inc()
}
