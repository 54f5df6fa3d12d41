package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lazyrag/authplane/internal/core/domain"
	"github.com/lazyrag/authplane/internal/core/ports"
)

// AdminService manages user role assignments.
type AdminService struct {
	users             ports.UserRepository
	roles             ports.RoleRepository
	bootstrapUsername string
	log               zerolog.Logger
}

// NewAdminService returns an AdminService. bootstrapUsername names the seeded
// admin account whose role cannot be changed; empty disables the guard.
func NewAdminService(users ports.UserRepository, roles ports.RoleRepository, bootstrapUsername string, log zerolog.Logger) *AdminService {
	return &AdminService{
		users:             users,
		roles:             roles,
		bootstrapUsername: strings.TrimSpace(bootstrapUsername),
		log:               log,
	}
}

func (s *AdminService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.users.List(ctx)
}

func (s *AdminService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return s.users.FindByID(ctx, id)
}

// SetUserRole reassigns a user's role. The new role takes effect on the
// user's next refresh or validate call.
func (s *AdminService) SetUserRole(ctx context.Context, userID, roleID int64) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if s.bootstrapUsername != "" && user.Username == s.bootstrapUsername {
		return domain.ErrBootstrapAdminImmutable
	}

	role, err := s.roles.FindByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrRoleNotFound
		}
		return err
	}

	if err := s.users.UpdateRole(ctx, user.ID, role.ID); err != nil {
		return err
	}
	s.log.Info().Int64("user_id", user.ID).Str("role", role.Name).Msg("user role changed")
	return nil
}
