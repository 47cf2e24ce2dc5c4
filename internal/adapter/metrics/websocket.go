package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebSocketMetrics covers the realtime side: open connections, refused
// connects and channel publications.
type WebSocketMetrics struct {
	ActiveConnections   prometheus.Gauge
	RejectedConnections *prometheus.CounterVec
	MessagesPublished   *prometheus.CounterVec
	PublishErrors       prometheus.Counter
}

func NewWebSocketMetrics(reg prometheus.Registerer) *WebSocketMetrics {
	const sub = "websocket"
	m := &WebSocketMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: sub,
			Name:      "active_connections",
			Help:      "Client connections currently open.",
		}),
		RejectedConnections: counterVec(sub, "rejected_connections_total",
			"Connection attempts refused, by reason.", "reason"),
		MessagesPublished: counterVec(sub, "messages_published_total",
			"Envelopes published, by audience channel.", "role"),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: sub,
			Name:      "publish_errors_total",
			Help:      "Envelopes the node failed to publish.",
		}),
	}
	reg.MustRegister(m.ActiveConnections, m.RejectedConnections, m.MessagesPublished, m.PublishErrors)
	return m
}

// Rejected counts one refused connection.
func (m *WebSocketMetrics) Rejected(reason string) {
	m.RejectedConnections.WithLabelValues(reason).Inc()
}
