package httpserver

import (
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/crowdroom/internal/platform/correlation"
)

// correlationHeader carries a caller-supplied request id through to the logs.
const correlationHeader = echo.HeaderXRequestID

func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(correlationHeader)
		if id == "" || len(id) > 64 {
			id = correlation.NewID()
		}
		c.Response().Header().Set(correlationHeader, id)

		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}
