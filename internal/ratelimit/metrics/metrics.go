package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records rate limit decisions. All collectors register on the
// injected registerer so tests can use a private registry.
type Metrics struct {
	Decisions         *prometheus.CounterVec
	StoreErrors       prometheus.Counter
	Degraded          prometheus.Counter
	BreakerOpen       prometheus.Gauge
	AuthFailures      prometheus.Counter
	AuthLockoutsTotal prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "medgate_ratelimit_decisions_total",
			Help: "Rate limit decisions by endpoint category and outcome",
		}, []string{"category", "outcome"}),
		StoreErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "medgate_ratelimit_store_errors_total",
			Help: "Counter store failures that let a request through unchecked",
		}),
		Degraded: f.NewCounter(prometheus.CounterOpts{
			Name: "medgate_ratelimit_degraded_decisions_total",
			Help: "Decisions served by the in-memory fallback store",
		}),
		BreakerOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "medgate_ratelimit_breaker_open",
			Help: "1 while the counter store circuit breaker is open",
		}),
		AuthFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "medgate_ratelimit_auth_failures_recorded_total",
			Help: "Total number of auth failures recorded for lockout",
		}),
		AuthLockoutsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "medgate_ratelimit_auth_lockouts_total",
			Help: "Total number of credential identifiers locked out",
		}),
	}
}

func (m *Metrics) ObserveDecision(category string, allowed bool) {
	if m == nil {
		return
	}
	outcome := "allowed"
	if !allowed {
		outcome = "rejected"
	}
	m.Decisions.WithLabelValues(category, outcome).Inc()
}

func (m *Metrics) IncrementStoreErrors() {
	if m == nil {
		return
	}
	m.StoreErrors.Inc()
}

func (m *Metrics) IncrementDegraded() {
	if m == nil {
		return
	}
	m.Degraded.Inc()
}

func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerOpen.Set(1)
		return
	}
	m.BreakerOpen.Set(0)
}

func (m *Metrics) IncrementAuthFailures() {
	if m == nil {
		return
	}
	m.AuthFailures.Inc()
}

func (m *Metrics) IncrementAuthLockouts() {
	if m == nil {
		return
	}
	m.AuthLockoutsTotal.Inc()
}
