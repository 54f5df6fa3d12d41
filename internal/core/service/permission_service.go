package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lazyrag/authplane/internal/core/domain"
	"github.com/lazyrag/authplane/internal/core/ports"
)

// PermissionService administers roles and permission groups and answers
// role-name lookups for other services.
type PermissionService struct {
	roles  ports.RoleRepository
	groups ports.PermissionGroupRepository
	users  ports.UserRepository
	cache  ports.PermissionCache
	log    zerolog.Logger
}

// NewPermissionService returns a PermissionService. cache may be nil.
func NewPermissionService(
	roles ports.RoleRepository,
	groups ports.PermissionGroupRepository,
	users ports.UserRepository,
	cache ports.PermissionCache,
	log zerolog.Logger,
) *PermissionService {
	return &PermissionService{roles: roles, groups: groups, users: users, cache: cache, log: log}
}

func (s *PermissionService) ListPermissionGroups(ctx context.Context) ([]*domain.PermissionGroup, error) {
	return s.groups.List(ctx)
}

// ListRoles returns every role with its permission groups.
func (s *PermissionService) ListRoles(ctx context.Context) ([]*domain.Role, error) {
	return s.roles.List(ctx)
}

// CreateRole adds an operator role, optionally granting groups.
func (s *PermissionService) CreateRole(ctx context.Context, name string, groups []string) (*domain.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name required", domain.ErrInvalidInput)
	}

	role, err := s.roles.Create(ctx, name, false)
	if err != nil {
		return nil, err
	}
	// lookups made before the role existed cached an empty list
	defer s.invalidate(ctx, role.Name)

	if len(groups) > 0 {
		if err := s.roles.SetPermissions(ctx, role.ID, groups); err != nil {
			return nil, err
		}
	}
	role.Permissions, err = s.roles.Permissions(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	return role, nil
}

// DeleteRole removes an operator role. Built-in roles and roles still held by
// users are refused.
func (s *PermissionService) DeleteRole(ctx context.Context, id int64) error {
	role, err := s.findRole(ctx, id)
	if err != nil {
		return err
	}
	if role.BuiltIn {
		return domain.ErrBuiltInRole
	}

	holders, err := s.users.CountByRole(ctx, role.ID)
	if err != nil {
		return err
	}
	if holders > 0 {
		return domain.ErrRoleInUse
	}

	if err := s.roles.Delete(ctx, role.ID); err != nil {
		return err
	}
	s.invalidate(ctx, role.Name)
	return nil
}

func (s *PermissionService) RolePermissions(ctx context.Context, id int64) ([]string, error) {
	role, err := s.findRole(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.roles.Permissions(ctx, role.ID)
}

// SetRolePermissions replaces a role's groups. Unknown group names are
// ignored. The admin role is immutable since it implicitly holds everything.
func (s *PermissionService) SetRolePermissions(ctx context.Context, id int64, groups []string) error {
	role, err := s.findRole(ctx, id)
	if err != nil {
		return err
	}
	if role.IsAdmin() {
		return domain.ErrAdminRoleImmutable
	}

	if err := s.roles.SetPermissions(ctx, role.ID, groups); err != nil {
		return err
	}
	s.invalidate(ctx, role.Name)
	return nil
}

// PermissionsForRole returns the groups of the named role, or an empty list
// when no such role exists.
func (s *PermissionService) PermissionsForRole(ctx context.Context, roleName string) ([]string, error) {
	if s.cache != nil {
		perms, ok, err := s.cache.Get(ctx, roleName)
		if err != nil {
			s.log.Warn().Err(err).Str("role", roleName).Msg("permission cache read failed")
		} else if ok {
			return perms, nil
		}
	}

	perms := []string{}
	role, err := s.roles.FindByName(ctx, roleName)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		perms, err = s.roles.Permissions(ctx, role.ID)
		if err != nil {
			return nil, err
		}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, roleName, perms); err != nil {
			s.log.Warn().Err(err).Str("role", roleName).Msg("permission cache write failed")
		}
	}
	return perms, nil
}

func (s *PermissionService) findRole(ctx context.Context, id int64) (*domain.Role, error) {
	role, err := s.roles.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrRoleNotFound
		}
		return nil, err
	}
	return role, nil
}

func (s *PermissionService) invalidate(ctx context.Context, role string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, role); err != nil {
		s.log.Warn().Err(err).Str("role", role).Msg("permission cache invalidation failed")
	}
}
