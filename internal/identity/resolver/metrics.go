package resolver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	dErrors "medgate/pkg/domain-errors"
)

// Metrics counts resolution outcomes. A nil *Metrics records nothing.
type Metrics struct {
	Resolutions *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Resolutions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "medgate_identity_resolutions_total",
			Help: "Principal resolutions by outcome",
		}, []string{"outcome"}),
	}
}

// ObserveOutcome records code, or "resolved" for the empty code.
func (m *Metrics) ObserveOutcome(code dErrors.Code) {
	if m == nil {
		return
	}
	outcome := string(code)
	if outcome == "" {
		outcome = "resolved"
	}
	m.Resolutions.WithLabelValues(outcome).Inc()
}
