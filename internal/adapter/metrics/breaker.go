package metrics

import "github.com/prometheus/client_golang/prometheus"

// BreakerMetrics exposes circuit breaker state: 0 closed, 1 half-open, 2 open.
type BreakerMetrics struct {
	State       *prometheus.GaugeVec
	Transitions *prometheus.CounterVec
}

func NewBreakerMetrics(reg prometheus.Registerer) *BreakerMetrics {
	m := &BreakerMetrics{
		State: gaugeVec("circuit_breaker", "state",
			"Current breaker state (0 closed, 1 half-open, 2 open).", "name"),
		Transitions: counterVec("circuit_breaker", "transitions_total",
			"Breaker state changes, by target state.", "name", "to"),
	}
	reg.MustRegister(m.State, m.Transitions)
	return m
}
