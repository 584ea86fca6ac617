package metrics

import "github.com/prometheus/client_golang/prometheus"

type PayoutMetrics struct {
	submitted prometheus.Counter
	failed    prometheus.Counter
}

func NewPayoutMetrics(reg prometheus.Registerer) *PayoutMetrics {
	if reg == nil {
		return &PayoutMetrics{}
	}
	submitted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payouts_submitted_total",
		Help:      "Orders handed to the payout executor.",
	})
	failed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payouts_failed_total",
		Help:      "Orders the payout executor rejected.",
	})
	reg.MustRegister(submitted, failed)
	return &PayoutMetrics{submitted: submitted, failed: failed}
}

func (m *PayoutMetrics) AddSubmitted(n int) {
	if m == nil || m.submitted == nil || n <= 0 {
		return
	}
	m.submitted.Add(float64(n))
}

func (m *PayoutMetrics) AddFailed(n int) {
	if m == nil || m.failed == nil || n <= 0 {
		return
	}
	m.failed.Add(float64(n))
}
