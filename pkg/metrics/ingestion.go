package metrics

import "github.com/prometheus/client_golang/prometheus"

// IngestionMetrics counts webhook orders by outcome.
type IngestionMetrics struct {
	total *prometheus.CounterVec
}

func NewIngestionMetrics(reg prometheus.Registerer) *IngestionMetrics {
	if reg == nil {
		return &IngestionMetrics{}
	}
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingestion_total",
		Help:      "Ingested order webhooks by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(total)
	return &IngestionMetrics{total: total}
}

// Observe increments the counter for outcome, e.g. recorded or ignored_unknown_merchant.
func (m *IngestionMetrics) Observe(outcome string) {
	if m == nil || m.total == nil {
		return
	}
	m.total.WithLabelValues(normalizeLabel(outcome)).Inc()
}
