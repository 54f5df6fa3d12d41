package ports

import (
	"context"

	"github.com/lazyrag/authplane/internal/core/domain"
)

// IdentityValidator resolves a bearer token to an identity. Implementations
// return errors wrapping domain.ErrUnauthorized for rejected tokens and
// domain.ErrUpstreamUnavailable when the answer could not be obtained.
type IdentityValidator interface {
	ValidateToken(ctx context.Context, token string) (*domain.Identity, error)
}

// PermissionResolver returns the permission groups granted to a role name.
// An unknown role resolves to an empty set.
type PermissionResolver interface {
	PermissionsForRole(ctx context.Context, role string) ([]string, error)
}
