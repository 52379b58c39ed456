package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// Context keys set by JWTAuth.
const (
	CtxUserID = "user_id"
	CtxRole   = "role"
)

// UserID returns the authenticated user id, or "" when the request carries
// no verified token.
func UserID(c echo.Context) string {
	if s, ok := c.Get(CtxUserID).(string); ok {
		return s
	}
	return ""
}

// Principal returns the caller as the service sees it.
func Principal(c echo.Context) model.Principal {
	role, _ := c.Get(CtxRole).(model.Role)
	return model.Principal{UserID: UserID(c), Role: role}
}

// rateUserID is the user part of rate limit keys.
func rateUserID(c echo.Context) string {
	if id := UserID(c); id != "" {
		return id
	}
	return "anon"
}

func deny(c echo.Context, code int, msg string) error {
	return c.JSON(code, echo.Map{"success": false, "message": msg})
}
