package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/movie-ticket-booking/internal/pkg/logger"
)

type HealthHandler struct {
	db Pinger
}

// NewHealthHandler pings db on every check; a nil db only reports liveness.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

type HealthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (h *HealthHandler) Check(c echo.Context) error {
	resp := HealthResponse{Status: "ok", Timestamp: time.Now().UTC().Format(time.RFC3339)}
	if h.db == nil {
		return c.JSON(http.StatusOK, resp)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		logger.Warn("health check: database unreachable", zap.Error(err))
		resp.Status, resp.Database = "degraded", "down"
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	resp.Database = "up"
	return c.JSON(http.StatusOK, resp)
}
