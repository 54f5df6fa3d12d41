package ports

import (
	"context"

	"github.com/lazyrag/authplane/internal/core/domain"
)

type AuthService interface {
	Register(ctx context.Context, username, password string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (*domain.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Validate(ctx context.Context, accessToken string) (*domain.Identity, error)
	Authorize(ctx context.Context, accessToken, method, path string) (*domain.Decision, error)
}

type AdminService interface {
	ListUsers(ctx context.Context) ([]*domain.User, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	SetUserRole(ctx context.Context, userID, roleID int64) error
}

type PermissionService interface {
	ListPermissionGroups(ctx context.Context) ([]*domain.PermissionGroup, error)
	ListRoles(ctx context.Context) ([]*domain.Role, error)
	CreateRole(ctx context.Context, name string, groups []string) (*domain.Role, error)
	DeleteRole(ctx context.Context, id int64) error
	RolePermissions(ctx context.Context, id int64) ([]string, error)
	SetRolePermissions(ctx context.Context, id int64, groups []string) error
	PermissionsForRole(ctx context.Context, roleName string) ([]string, error)
}

// PasswordHasher is the opaque hash/verify capability used for credentials.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) bool
}
