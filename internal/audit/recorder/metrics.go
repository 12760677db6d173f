package recorder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	kindAudit     = "audit"
	kindPHIAccess = "phi_access"
)

// Metrics counts recorder decisions. A nil *Metrics records nothing.
type Metrics struct {
	Scheduled *prometheus.CounterVec
	Rejected  *prometheus.CounterVec
	Skipped   prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Scheduled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "medgate_audit_records_scheduled_total",
			Help: "Audit and PHI access records handed to the dispatcher",
		}, []string{"kind"}),
		Rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "medgate_audit_records_rejected_total",
			Help: "Audit and PHI access records the dispatcher refused",
		}, []string{"kind"}),
		Skipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "medgate_audit_requests_skipped_total",
			Help: "Requests that did not qualify for auditing",
		}),
	}
}

func (m *Metrics) IncrementAudited(kind string) {
	if m == nil {
		return
	}
	m.Scheduled.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementRejected(kind string) {
	if m == nil {
		return
	}
	m.Rejected.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementSkipped() {
	if m == nil {
		return
	}
	m.Skipped.Inc()
}
