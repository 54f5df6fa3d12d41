package ports

import (
	"context"

	"github.com/lazyrag/authplane/internal/core/domain"
)

// RoleRepository persists roles and the role to permission-group mapping.
type RoleRepository interface {
	// Create inserts a role; a taken name yields domain.ErrRoleExists.
	Create(ctx context.Context, name string, builtIn bool) (*domain.Role, error)
	FindByID(ctx context.Context, id int64) (*domain.Role, error)
	FindByName(ctx context.Context, name string) (*domain.Role, error)
	List(ctx context.Context) ([]*domain.Role, error)
	Delete(ctx context.Context, id int64) error
	// Permissions returns the sorted group names granted to the role.
	Permissions(ctx context.Context, roleID int64) ([]string, error)
	// SetPermissions replaces the role's groups. Names that are not known
	// permission groups are ignored.
	SetPermissions(ctx context.Context, roleID int64, groups []string) error
	// Grant adds groups to the role without removing existing ones.
	Grant(ctx context.Context, roleID int64, groups []string) error
	Count(ctx context.Context) (int64, error)
}

// PermissionGroupRepository persists the flat permission-group namespace.
type PermissionGroupRepository interface {
	List(ctx context.Context) ([]*domain.PermissionGroup, error)
	Ensure(ctx context.Context, name string) (*domain.PermissionGroup, error)
}

// PermissionCache is an optional read-through cache of role → groups.
type PermissionCache interface {
	Get(ctx context.Context, role string) ([]string, bool, error)
	Set(ctx context.Context, role string, groups []string) error
	Invalidate(ctx context.Context, role string) error
}
