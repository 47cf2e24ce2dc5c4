package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMetrics_Middleware(t *testing.T) {
	reg := NewRegistry()
	m := NewHTTPMetrics(reg)

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/rooms/:publicId", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "no room")
	})
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for _, path := range []string{"/api/rooms/abc", "/api/rooms/def", "/health/live"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/api/rooms/:publicId", "404")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestsTotal), "health probes are not recorded")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InFlightGauge))
}

func TestNewSet_ServesEveryGroup(t *testing.T) {
	var set *Set
	require.NotPanics(t, func() { set = NewSet() })

	set.HTTP.ObserveError("validation")
	set.WebSocket.Rejected("rate_limit")
	set.Events.Handled.WithLabelValues("PollLaunch", "ok").Inc()
	set.Database.QueryErrors.WithLabelValues("insert_poll").Inc()
	set.Breaker.State.WithLabelValues("redis").Set(2)
	set.Cache.Hits.WithLabelValues("l1").Inc()

	rec := httptest.NewRecorder()
	set.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	for _, name := range []string{
		"go_goroutines",
		"crowdroom_http_errors_total",
		"crowdroom_websocket_rejected_connections_total",
		"crowdroom_room_events_handled_total",
		"crowdroom_db_query_errors_total",
		"crowdroom_circuit_breaker_state",
		"crowdroom_room_cache_hits_total",
	} {
		assert.Contains(t, body, name)
	}
}

func TestWebSocketMetrics_Rejected(t *testing.T) {
	m := NewWebSocketMetrics(NewRegistry())

	m.Rejected("per_ip_limit")
	m.Rejected("per_ip_limit")
	m.Rejected("global_limit")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RejectedConnections.WithLabelValues("per_ip_limit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RejectedConnections.WithLabelValues("global_limit")))
}
