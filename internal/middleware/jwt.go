package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and stores the token's subject and role under CtxUserID and CtxRole.
// Tokens are issued elsewhere (see cmd/token); the secret must match the
// one they were signed with. Handlers read the caller through UserID and
// Principal rather than c.Get.
func JWTAuth(secret string) echo.MiddlewareFunc {
	// One parser for the lifetime of the middleware. Only HS256 is
	// accepted and every token must carry an exp claim.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// The header must read "Bearer <token>". Anything else is
			// answered with 401 before the token is looked at.
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return deny(c, http.StatusUnauthorized, "missing bearer token")
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			// Parse and verify signature, algorithm and expiry in one go.
			claims := jwt.MapClaims{}
			tok, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return deny(c, http.StatusUnauthorized, "invalid token")
			}

			// sub is the user id; an empty one cannot own bookings.
			sub, err := claims.GetSubject()
			if err != nil || sub == "" {
				return deny(c, http.StatusUnauthorized, "invalid claims")
			}
			// role must be one of the known roles, compared case-insensitively.
			roleClaim, _ := claims["role"].(string)
			role, ok := model.ParseRole(roleClaim)
			if !ok {
				return deny(c, http.StatusUnauthorized, "invalid claims")
			}

			// Typed values go into the context: sub as string, role as
			// model.Role.
			c.Set(CtxUserID, sub)
			c.Set(CtxRole, role)
			return next(c)
		}
	}
}
