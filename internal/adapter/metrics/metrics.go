// Package metrics defines the Prometheus collectors of the broker. Every
// collector lives under the crowdroom namespace.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "crowdroom"

// latencyBuckets suit in-process and single round-trip work (0.5ms to 1s).
var latencyBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0}

// Set bundles every collector group on one registry.
type Set struct {
	Registry  *prometheus.Registry
	HTTP      *HTTPMetrics
	WebSocket *WebSocketMetrics
	Events    *EventMetrics
	Database  *DatabaseMetrics
	Breaker   *BreakerMetrics
	Cache     *CacheMetrics
}

func NewSet() *Set {
	reg := NewRegistry()
	return &Set{
		Registry:  reg,
		HTTP:      NewHTTPMetrics(reg),
		WebSocket: NewWebSocketMetrics(reg),
		Events:    NewEventMetrics(reg),
		Database:  NewDatabaseMetrics(reg),
		Breaker:   NewBreakerMetrics(reg),
		Cache:     NewCacheMetrics(reg),
	}
}

// Handler serves the scrape endpoint for the set's registry.
func (s *Set) Handler() http.Handler {
	return promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{Registry: s.Registry})
}

// NewRegistry returns a registry preloaded with runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func counterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
	}, labels)
}

func gaugeVec(subsystem, name, help string, labels ...string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
	}, labels)
}

func histogramVec(subsystem, name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help, Buckets: buckets,
	}, labels)
}
