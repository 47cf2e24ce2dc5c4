package metrics

import "github.com/prometheus/client_golang/prometheus"

// EventMetrics tracks client events handled by room sessions.
type EventMetrics struct {
	Handled  *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

func NewEventMetrics(reg prometheus.Registerer) *EventMetrics {
	m := &EventMetrics{
		Handled: counterVec("room", "events_handled_total",
			"Client events handled, by event and result.", "event", "result"),
		Duration: histogramVec("room", "event_duration_seconds",
			"Time spent handling a client event.", latencyBuckets, "event"),
	}
	reg.MustRegister(m.Handled, m.Duration)
	return m
}
