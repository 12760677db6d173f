package failsafe

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	audit "medgate/pkg/platform/audit"
)

// Metrics counts classified errors. A nil *Metrics records nothing.
type Metrics struct {
	Classified      *prometheus.CounterVec
	PersistFailures prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Classified: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "medgate_failsafe_errors_total",
			Help: "Handler errors by classified type and severity",
		}, []string{"type", "severity"}),
		PersistFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "medgate_failsafe_persist_failures_total",
			Help: "System error records that could not be scheduled",
		}),
	}
}

func (m *Metrics) ObserveClassified(errorType string, severity audit.Severity) {
	if m == nil {
		return
	}
	m.Classified.WithLabelValues(errorType, string(severity)).Inc()
}

func (m *Metrics) IncrementPersistFailures() {
	if m == nil {
		return
	}
	m.PersistFailures.Inc()
}
