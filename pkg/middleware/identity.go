package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// UserIDKey is the context key the upstream gateway's identity lands in.
const UserIDKey = "user_id"

// RequireUser extracts the authenticated user id set by the gateway in the
// X-User-ID header. Session mechanics live upstream; requests without an
// identity are rejected here.
func RequireUser() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID := c.Request().Header.Get("X-User-ID")
			if userID == "" {
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{
					"error":   "unauthorized",
					"message": "Missing user identity.",
				})
			}
			c.Set(UserIDKey, userID)
			return next(c)
		}
	}
}
