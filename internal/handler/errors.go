package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/movie-ticket-booking/internal/pkg/logger"
	"github.com/iliyamo/movie-ticket-booking/internal/service"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Seats   []int  `json:"seats,omitempty"`
}

func statusOf(k service.Kind) int {
	switch k {
	case service.KindInvalidArgument, service.KindInvalidState:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindConflict:
		return http.StatusConflict
	case service.KindUnauthorized:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// fail writes err in the error envelope. Messages of internal errors are
// replaced when the error did not come from the service.
func fail(c echo.Context, err error) error {
	var se *service.Error
	if !errors.As(err, &se) {
		se = service.Internal("internal server error", err)
	}
	code := statusOf(se.Kind)
	if code >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}
	return c.JSON(code, ErrorResponse{
		Success: false,
		Message: se.Message,
		Kind:    se.Kind.String(),
		Seats:   se.Seats,
	})
}

// HTTPErrorHandler renders errors that escape handlers (unknown routes,
// panics recovered by middleware, HTTPErrors) in the same envelope.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var se *service.Error
	if errors.As(err, &se) {
		_ = fail(c, se)
		return
	}

	code := http.StatusInternalServerError
	message := "internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	}
	if code >= http.StatusInternalServerError {
		logger.Error("server error",
			zap.Int("status", code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, ErrorResponse{Success: false, Message: message})
	}
	if err != nil {
		logger.Error("error response not sent", zap.Error(err))
	}
}
