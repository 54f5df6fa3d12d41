// Package authctx carries the authenticated identity and the request id
// through a request, both on context.Context and on echo.Context.
package authctx

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lazyrag/authplane/internal/core/domain"
)

// EchoKey is the echo.Context key holding the *domain.Identity.
const EchoKey = "identity"

type identityKey struct{}

type requestIDKey struct{}

// WithIdentity returns a new context with id attached.
func WithIdentity(ctx context.Context, id *domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity attached to ctx, or nil.
func FromContext(ctx context.Context) *domain.Identity {
	id, _ := ctx.Value(identityKey{}).(*domain.Identity)
	return id
}

// FromEcho returns the identity stored by the authorization middleware, or nil.
func FromEcho(c echo.Context) *domain.Identity {
	if id, ok := c.Get(EchoKey).(*domain.Identity); ok {
		return id
	}
	return FromContext(c.Request().Context())
}

// Attach stores id on both the echo context and the request context.
func Attach(c echo.Context, id *domain.Identity) {
	c.Set(EchoKey, id)
	req := c.Request()
	c.SetRequest(req.WithContext(WithIdentity(req.Context(), id)))
}

// WithRequestID stores the inbound request id so outbound calls carry it.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id stored in ctx, or a fresh one.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}
