package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics records the REST surface: latency and volume per route, plus
// error responses per error type.
type HTTPMetrics struct {
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
	InFlightGauge   prometheus.Gauge
	ErrorsTotal     *prometheus.CounterVec
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	const sub = "http"
	labels := []string{"method", "route", "status_code"}
	m := &HTTPMetrics{
		RequestDuration: histogramVec(sub, "request_duration_seconds",
			"REST request latency.", prometheus.DefBuckets, labels...),
		RequestsTotal: counterVec(sub, "requests_total", "REST requests served.", labels...),
		InFlightGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: sub,
			Name:      "in_flight_requests",
			Help:      "REST requests being served right now.",
		}),
		ErrorsTotal: counterVec(sub, "errors_total", "Error responses, by error type.", "type"),
	}
	reg.MustRegister(m.RequestDuration, m.RequestsTotal, m.InFlightGauge, m.ErrorsTotal)
	return m
}

// unrouted labels requests that matched no route, keeping cardinality bounded.
const unrouted = "unmatched"

// Middleware observes every request except scrapes, probes and the
// websocket upgrade, whose duration is the connection lifetime.
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if untracked(route) {
				return next(c)
			}
			if route == "" {
				route = unrouted
			}

			m.InFlightGauge.Inc()
			start := time.Now()
			defer func() {
				m.InFlightGauge.Dec()
				m.observe(c.Request().Method, route, c.Response().Status, time.Since(start))
			}()

			// Resolve the error here so the recorded status is the final one.
			if err := next(c); err != nil {
				c.Error(err)
			}
			return nil
		}
	}
}

func (m *HTTPMetrics) observe(method, route string, status int, took time.Duration) {
	code := strconv.Itoa(status)
	m.RequestDuration.WithLabelValues(method, route, code).Observe(took.Seconds())
	m.RequestsTotal.WithLabelValues(method, route, code).Inc()
}

// ObserveError counts one error response of the given type.
func (m *HTTPMetrics) ObserveError(errType string) {
	m.ErrorsTotal.WithLabelValues(errType).Inc()
}

func untracked(route string) bool {
	switch {
	case route == "/metrics", route == "/version", route == "/connection/websocket":
		return true
	default:
		return strings.HasPrefix(route, "/health/")
	}
}
