package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/crowdroom/internal/domain"
	apperrors "github.com/pscheid92/crowdroom/internal/platform/errors"
)

type roomResponse struct {
	ID            string    `json:"id"`
	PublicID      string    `json:"publicId"`
	ViewerChannel string    `json:"viewerChannel"`
	AdminChannel  string    `json:"adminChannel"`
	CreatedAt     time.Time `json:"createdAt"`
}

func newRoomResponse(r *domain.Room) roomResponse {
	return roomResponse{
		ID:            r.ID.String(),
		PublicID:      r.PublicID,
		ViewerChannel: domain.ViewerChannel(r.PublicID),
		AdminChannel:  domain.AdminChannel(r.PublicID),
		CreatedAt:     r.CreatedAt,
	}
}

func (s *Server) registerRoomRoutes() {
	api := s.echo.Group("/api", s.apiCORS())
	api.POST("/rooms", s.handleCreateRoom, s.createRoomLimit())
	api.GET("/rooms/:publicId", s.handleGetRoom)
}

func (s *Server) handleCreateRoom(c echo.Context) error {
	room, err := s.rooms.Create(c.Request().Context())
	if err != nil {
		return apperrors.Internal("failed to create room", err)
	}

	if err := c.JSON(http.StatusCreated, newRoomResponse(room)); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetRoom(c echo.Context) error {
	publicID := c.Param("publicId")

	room, err := s.rooms.Get(c.Request().Context(), publicID)
	if errors.Is(err, domain.ErrRoomNotFound) {
		return apperrors.NotFound("room not found").With("public_id", publicID)
	}
	if err != nil {
		return apperrors.Internal("failed to load room", err).With("public_id", publicID)
	}

	if err := c.JSON(http.StatusOK, newRoomResponse(room)); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) createRoomLimit() echo.MiddlewareFunc {
	return rateLimitPolicy{perSecond: s.config.APIRateLimit, burst: s.config.APIRateBurst}.middleware()
}
