package httpserver

import (
	"github.com/centrifugal/centrifuge"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/crowdroom/internal/adapter/websocket"
	apperrors "github.com/pscheid92/crowdroom/internal/platform/errors"
)

func (s *Server) registerWebsocketRoutes() {
	s.echo.GET("/connection/websocket", s.handleWebsocket)
}

// handleWebsocket hands the upgrade to centrifuge with the requested room
// channel, the client address and an anonymous identity on the context.
// Authorization happens when centrifuge processes the connect command.
func (s *Server) handleWebsocket(c echo.Context) error {
	channel := c.QueryParam("channel")
	if channel == "" {
		return apperrors.Validation("missing channel parameter")
	}

	ctx := websocket.WithChannel(c.Request().Context(), channel)
	ctx = websocket.WithClientIP(ctx, c.RealIP())
	ctx = centrifuge.SetCredentials(ctx, &centrifuge.Credentials{UserID: uuid.NewString()})

	s.websocketHandler.ServeHTTP(c.Response(), c.Request().WithContext(ctx))
	return nil
}
