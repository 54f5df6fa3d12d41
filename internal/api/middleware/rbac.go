package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lazyrag/authplane/internal/api/authctx"
)

// RequireRole restricts a route to callers whose current role is one of
// allowedRoles. It must run after Authorization.
func RequireRole(allowedRoles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := authctx.FromEcho(c)
			if id == nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			}
			if _, ok := allowed[id.Role]; !ok {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
