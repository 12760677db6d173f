package publisher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics implements Observer with Prometheus counters labelled by task kind.
type Metrics struct {
	Written *prometheus.CounterVec
	Failed  *prometheus.CounterVec
	Dropped *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Written: f.NewCounterVec(prometheus.CounterOpts{
			Name: "medgate_records_written_total",
			Help: "Audit, PHI access and system error records persisted",
		}, []string{"kind"}),
		Failed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "medgate_records_failed_total",
			Help: "Record writes that failed and were discarded",
		}, []string{"kind"}),
		Dropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "medgate_records_dropped_total",
			Help: "Record writes dropped because the dispatcher queue was full or closed",
		}, []string{"kind"}),
	}
}

func (m *Metrics) TaskSucceeded(kind string) { m.Written.WithLabelValues(kind).Inc() }
func (m *Metrics) TaskFailed(kind string)    { m.Failed.WithLabelValues(kind).Inc() }
func (m *Metrics) TaskDropped(kind string)   { m.Dropped.WithLabelValues(kind).Inc() }
