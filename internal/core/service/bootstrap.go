package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/lazyrag/authplane/internal/core/domain"
	"github.com/lazyrag/authplane/internal/core/ports"
)

// BootstrapOptions configures the one-time seed.
type BootstrapOptions struct {
	// PermissionGroupsFile is a YAML document with a permission_groups list.
	PermissionGroupsFile string
	AdminUsername        string
	AdminPassword        string
}

// Bootstrapper seeds permission groups, the built-in roles and an optional
// admin account. Every step is idempotent so several replicas may run it.
type Bootstrapper struct {
	roles  ports.RoleRepository
	groups ports.PermissionGroupRepository
	users  ports.UserRepository
	hasher ports.PasswordHasher
	opts   BootstrapOptions
	log    zerolog.Logger
}

func NewBootstrapper(
	roles ports.RoleRepository,
	groups ports.PermissionGroupRepository,
	users ports.UserRepository,
	hasher ports.PasswordHasher,
	opts BootstrapOptions,
	log zerolog.Logger,
) *Bootstrapper {
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	return &Bootstrapper{roles: roles, groups: groups, users: users, hasher: hasher, opts: opts, log: log}
}

type permissionGroupsDoc struct {
	PermissionGroups []string `yaml:"permission_groups"`
}

// LoadPermissionGroups reads group names from a YAML file. An empty path or an
// empty list yields the default groups.
func LoadPermissionGroups(path string) ([]string, error) {
	if path == "" {
		return domain.DefaultPermissionGroups, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read permission groups: %w", err)
	}

	var doc permissionGroupsDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse permission groups %s: %w", path, err)
	}

	names := make([]string, 0, len(doc.PermissionGroups))
	for _, n := range doc.PermissionGroups {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return domain.DefaultPermissionGroups, nil
	}
	return names, nil
}

// SeedPermissions creates permission groups and the built-in roles. The admin
// role is granted every group and the user role the default read groups.
func (b *Bootstrapper) SeedPermissions(ctx context.Context) error {
	names, err := LoadPermissionGroups(b.opts.PermissionGroupsFile)
	if err != nil {
		b.log.Warn().Err(err).Msg("falling back to default permission groups")
		names = domain.DefaultPermissionGroups
	}
	for _, n := range names {
		if _, err := b.groups.Ensure(ctx, n); err != nil {
			return fmt.Errorf("ensure permission group %q: %w", n, err)
		}
	}

	all, err := b.groups.List(ctx)
	if err != nil {
		return err
	}
	allNames := make([]string, 0, len(all))
	for _, g := range all {
		allNames = append(allNames, g.Name)
	}

	admin, err := b.ensureRole(ctx, domain.RoleAdmin)
	if err != nil {
		return err
	}
	user, err := b.ensureRole(ctx, domain.RoleUser)
	if err != nil {
		return err
	}

	if err := b.roles.Grant(ctx, admin.ID, allNames); err != nil {
		return fmt.Errorf("grant admin: %w", err)
	}
	if err := b.roles.Grant(ctx, user.ID, domain.DefaultUserPermissions); err != nil {
		return fmt.Errorf("grant user: %w", err)
	}
	return nil
}

// SeedAdmin creates the bootstrap admin account when credentials are set and
// the username is free.
func (b *Bootstrapper) SeedAdmin(ctx context.Context) error {
	username := strings.TrimSpace(b.opts.AdminUsername)
	if username == "" || b.opts.AdminPassword == "" {
		return nil
	}

	_, err := b.users.FindByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return err
	}

	admin, err := b.roles.FindByName(ctx, domain.RoleAdmin)
	if err != nil {
		return fmt.Errorf("admin role: %w", err)
	}
	hash, err := b.hasher.Hash(b.opts.AdminPassword)
	if err != nil {
		return err
	}

	_, err = b.users.Create(ctx, &domain.User{
		Username:     username,
		PasswordHash: hash,
		RoleID:       admin.ID,
		CreatedAt:    time.Now().UTC(),
	})
	if errors.Is(err, domain.ErrUserExists) {
		return nil
	}
	if err != nil {
		return err
	}
	b.log.Info().Str("username", username).Msg("bootstrap admin created")
	return nil
}

// Run performs the full seed.
func (b *Bootstrapper) Run(ctx context.Context) error {
	if err := b.SeedPermissions(ctx); err != nil {
		return err
	}
	return b.SeedAdmin(ctx)
}

// BootstrapStatus summarises the seeded state.
type BootstrapStatus struct {
	RolesCount  int64 `json:"roles_count"`
	UsersCount  int64 `json:"users_count"`
	BootstrapOK bool  `json:"bootstrap_ok"`
}

// Status reports role and user counts and whether both built-in roles exist.
func (b *Bootstrapper) Status(ctx context.Context) (*BootstrapStatus, error) {
	roles, err := b.roles.Count(ctx)
	if err != nil {
		return nil, err
	}
	users, err := b.users.Count(ctx)
	if err != nil {
		return nil, err
	}

	ok := true
	for _, name := range []string{domain.RoleAdmin, domain.RoleUser} {
		if _, err := b.roles.FindByName(ctx, name); err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				return nil, err
			}
			ok = false
		}
	}
	return &BootstrapStatus{RolesCount: roles, UsersCount: users, BootstrapOK: ok}, nil
}

func (b *Bootstrapper) ensureRole(ctx context.Context, name string) (*domain.Role, error) {
	role, err := b.roles.FindByName(ctx, name)
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	role, err = b.roles.Create(ctx, name, true)
	if errors.Is(err, domain.ErrRoleExists) {
		return b.roles.FindByName(ctx, name)
	}
	return role, err
}
