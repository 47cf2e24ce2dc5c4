package metrics

import "github.com/prometheus/client_golang/prometheus"

// DatabaseMetrics tracks query latency and failures by statement kind.
type DatabaseMetrics struct {
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
}

func NewDatabaseMetrics(reg prometheus.Registerer) *DatabaseMetrics {
	m := &DatabaseMetrics{
		QueryDuration: histogramVec("db", "query_duration_seconds",
			"Database query latency, by statement kind.", latencyBuckets, "query"),
		QueryErrors: counterVec("db", "query_errors_total",
			"Failed database queries, by statement kind.", "query"),
	}
	reg.MustRegister(m.QueryDuration, m.QueryErrors)
	return m
}
