package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// RequireRole lets the request through only when JWTAuth stored one of
// roles in the context. It must be registered after JWTAuth; on its own it
// rejects every request.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	// Build the allow set once, when the route is registered.
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// JWTAuth stores a typed model.Role. A missing value or a
			// plain string set by anything else does not count.
			role, ok := c.Get(CtxRole).(model.Role)
			// Authenticated but not allowed here: 403, not 401.
			if !ok || !allowed[role] {
				return deny(c, http.StatusForbidden, "forbidden")
			}
			return next(c)
		}
	}
}
