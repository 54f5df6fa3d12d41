package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/lazyrag/authplane/internal/api/authctx"
	"github.com/lazyrag/authplane/internal/api/metrics"
	"github.com/lazyrag/authplane/internal/core/domain"
	"github.com/lazyrag/authplane/internal/core/ports"
)

const defaultUpstreamTimeout = 5 * time.Second

// Config wires the authorization middleware to its collaborators.
type Config struct {
	// Validator resolves the bearer token. Required.
	Validator ports.IdentityValidator
	// Permissions, when set, is consulted for every non-admin caller instead
	// of trusting the permissions reported by the validator.
	Permissions ports.PermissionResolver
	// Requirements maps a request to the permission groups it needs. Required.
	Requirements ports.RequirementSource
	// Timeout bounds the upstream calls made for one request. Defaults to 5s.
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Static is a RequirementSource that requires the same groups for every
// request it guards. It backs routes mounted from the route registry.
type Static []string

func (s Static) Required(_, _ string) ([]string, bool) {
	return s, len(s) > 0
}

// BearerToken extracts the credential from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", fmt.Errorf("%w: missing authorization header", domain.ErrUnauthorized)
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", fmt.Errorf("%w: invalid authorization header", domain.ErrUnauthorized)
	}
	return strings.TrimSpace(parts[1]), nil
}

// Authorization enforces the route's permission requirement. Routes without
// a requirement pass through without any upstream call. On allow the
// resolved identity is attached with authctx.Attach before next runs.
func Authorization(cfg Config) echo.MiddlewareFunc {
	if cfg.Validator == nil || cfg.Requirements == nil {
		panic("middleware: Authorization needs a Validator and Requirements")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultUpstreamTimeout
	}
	log := cfg.Logger

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			required, found := cfg.Requirements.Required(req.Method, req.URL.Path)
			if !found || len(required) == 0 {
				metrics.AuthzDecisionsTotal.WithLabelValues("public").Inc()
				return next(c)
			}

			token, err := BearerToken(req.Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return reject(c, err)
			}

			ctx, cancel := context.WithTimeout(req.Context(), timeout)
			defer cancel()
			ctx = authctx.WithRequestID(ctx, requestID(c))

			id, err := cfg.Validator.ValidateToken(ctx, token)
			if err != nil {
				log.Debug().Err(err).Str("path", req.URL.Path).Msg("token validation failed")
				return reject(c, err)
			}

			if cfg.Permissions != nil && !id.IsAdmin() && !id.AllPermissions {
				perms, err := cfg.Permissions.PermissionsForRole(ctx, id.Role)
				if err != nil {
					log.Warn().Err(err).Str("role", id.Role).Msg("permission lookup failed")
					return reject(c, err)
				}
				id.Permissions = perms
			}

			if !domain.Authorize(*id, required) {
				metrics.AuthzDecisionsTotal.WithLabelValues("deny").Inc()
				log.Info().
					Int64("user_id", id.UserID).
					Str("role", id.Role).
					Strs("required", required).
					Str("method", req.Method).
					Str("path", req.URL.Path).
					Msg("access denied")
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}

			metrics.AuthzDecisionsTotal.WithLabelValues("allow").Inc()
			authctx.Attach(c, id)
			return next(c)
		}
	}
}

// reject answers 401 for rejected credentials and 503 when the decision could
// not be made. Nothing else ever reaches the wrapped handler.
func reject(c echo.Context, err error) error {
	if errors.Is(err, domain.ErrUnauthorized) {
		metrics.AuthzDecisionsTotal.WithLabelValues("unauthorized").Inc()
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	metrics.AuthzDecisionsTotal.WithLabelValues("unavailable").Inc()
	return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "authorization service unavailable"})
}

func requestID(c echo.Context) string {
	if rid := c.Request().Header.Get(echo.HeaderXRequestID); rid != "" {
		return rid
	}
	return c.Response().Header().Get(echo.HeaderXRequestID)
}
