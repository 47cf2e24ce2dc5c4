package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	apperrors "github.com/pscheid92/crowdroom/internal/platform/errors"
)

// securityHeaders suit a JSON API; the HSTS header is only sent over TLS.
var securityHeaders = middleware.SecureConfig{
	ContentTypeNosniff:    "nosniff",
	XFrameOptions:         "DENY",
	HSTSMaxAge:            int((365 * 24 * time.Hour).Seconds()),
	ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
	ReferrerPolicy:        "no-referrer",
}

func (s *Server) registerRoutes() {
	s.echo.HTTPErrorHandler = apperrors.HTTPErrorHandler(s.observeError, s.echo.DefaultHTTPErrorHandler)

	s.echo.Use(correlationMiddleware)
	s.echo.Use(requestLogger())
	if s.httpMetrics != nil {
		s.echo.Use(s.httpMetrics.Middleware())
	}
	s.echo.Use(middleware.Recover())
	s.echo.Use(apperrors.Middleware(s.observeError))
	s.echo.Use(middleware.SecureWithConfig(securityHeaders))

	s.registerHealthRoutes()
	s.registerRoomRoutes()
	s.registerWebsocketRoutes()

	if s.metricsHandler != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metricsHandler))
	}
}

func (s *Server) observeError(t apperrors.ErrorType) {
	if s.httpMetrics != nil {
		s.httpMetrics.ObserveError(string(t))
	}
}

// requestLogger writes one line per request, at warn level for server errors.
// Metric scrapes are skipped.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper:      func(c echo.Context) bool { return c.Path() == "/metrics" },
		LogMethod:    true,
		LogURI:       true,
		LogRoutePath: true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.String("route", v.RoutePath),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.Any("error", v.Error))
			}
			slog.LogAttrs(c.Request().Context(), level, "Request", attrs...)
			return nil
		},
	})
}

// apiCORS lets the audience frontends call the REST API cross-origin.
func (s *Server) apiCORS() echo.MiddlewareFunc {
	origins := append([]string{s.config.AppURL}, s.config.Origins()...)
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
	})
}
