package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lazyrag/authplane/internal/core/domain"
	"github.com/lazyrag/authplane/internal/core/ports"
	"github.com/lazyrag/authplane/internal/manifest"
	"github.com/lazyrag/authplane/internal/token"
)

// AuthOptions holds the AuthService collaborators that are not repositories.
type AuthOptions struct {
	Engine *token.Engine
	Hasher ports.PasswordHasher
	// Requirements resolves routes for Authorize. Nil means no route is restricted.
	Requirements ports.RequirementSource
	// DenyUnlisted makes Authorize reject routes without a declared requirement.
	DenyUnlisted bool
	Log          zerolog.Logger
}

// AuthService implements registration, login, refresh rotation, token
// validation and manifest-driven authorization.
type AuthService struct {
	users  ports.UserRepository
	roles  ports.RoleRepository
	tokens ports.RefreshTokenRepository
	tx     ports.Transactor

	engine       *token.Engine
	hasher       ports.PasswordHasher
	requirements ports.RequirementSource
	denyUnlisted bool
	log          zerolog.Logger
}

func NewAuthService(
	users ports.UserRepository,
	roles ports.RoleRepository,
	tokens ports.RefreshTokenRepository,
	tx ports.Transactor,
	opts AuthOptions,
) *AuthService {
	if opts.Hasher == nil {
		opts.Hasher = BcryptHasher{}
	}
	return &AuthService{
		users:        users,
		roles:        roles,
		tokens:       tokens,
		tx:           tx,
		engine:       opts.Engine,
		hasher:       opts.Hasher,
		requirements: opts.Requirements,
		denyUnlisted: opts.DenyUnlisted,
		log:          opts.Log,
	}
}

// Register creates a user holding the default role. Duplicate usernames are
// detected by the store's unique constraint.
func (s *AuthService) Register(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", domain.ErrInvalidInput)
	}

	role, err := s.roles.FindByName(ctx, domain.RoleUser)
	if err != nil {
		return nil, fmt.Errorf("default role %q: %w", domain.RoleUser, required(err))
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.users.Create(ctx, &domain.User{
		Username:     username,
		PasswordHash: hash,
		RoleID:       role.ID,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	created.RoleName = role.Name
	return created, nil
}

// Login verifies credentials and issues an access/refresh pair. Unknown users
// and wrong passwords produce the same error.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.TokenPair, error) {
	if username == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	refresh, err := s.issueRefresh(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return s.pair(user, refresh)
}

// Refresh exchanges a live refresh token for a new pair. The old token is
// consumed and the replacement stored in one transaction, so a token can be
// exchanged once.
func (s *AuthService) Refresh(ctx context.Context, raw string) (*domain.TokenPair, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, domain.ErrInvalidRefreshToken
	}
	digest := token.HashRefreshToken(raw)

	var (
		user         *domain.User
		next         string
		ownerID      int64
		missingOwner bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		row, err := s.tokens.Consume(ctx, digest, s.engine.Now())
		if err != nil {
			return err
		}

		u, err := s.users.FindByID(ctx, row.UserID)
		if errors.Is(err, domain.ErrUserNotFound) {
			// commit the deletion of the stale row, then reject
			missingOwner, ownerID = true, row.UserID
			return nil
		}
		if err != nil {
			return err
		}

		next, err = s.issueRefresh(ctx, u.ID)
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	if missingOwner {
		s.log.Warn().Int64("user_id", ownerID).Msg("refresh token owner missing, stale row removed")
		return nil, fmt.Errorf("%w: user not found", domain.ErrUnauthorized)
	}

	return s.pair(user, next)
}

// Logout revokes a refresh token. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	return s.tokens.Delete(ctx, token.HashRefreshToken(raw))
}

// Validate checks the access token and re-reads the caller's current role and
// permission groups from the store.
func (s *AuthService) Validate(ctx context.Context, accessToken string) (*domain.Identity, error) {
	if accessToken == "" {
		return nil, domain.ErrInvalidToken
	}
	claims, err := s.engine.ValidateAccessToken(accessToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: user not found", domain.ErrUnauthorized)
		}
		return nil, err
	}

	role, err := s.roles.FindByID(ctx, user.RoleID)
	if err != nil {
		return nil, fmt.Errorf("role of user %d: %w", user.ID, required(err))
	}

	id := &domain.Identity{UserID: user.ID, Username: user.Username, Role: role.Name}
	if role.IsAdmin() {
		id.AllPermissions = true
		return id, nil
	}

	id.Permissions, err = s.roles.Permissions(ctx, role.ID)
	if err != nil {
		return nil, fmt.Errorf("permissions of role %q: %w", role.Name, required(err))
	}
	return id, nil
}

// ValidateToken lets the service act as the in-process IdentityValidator.
func (s *AuthService) ValidateToken(ctx context.Context, accessToken string) (*domain.Identity, error) {
	return s.Validate(ctx, accessToken)
}

// Authorize decides whether the bearer may call method+path according to the
// loaded permission manifest. Routes without a requirement are allowed without
// looking at the token unless DenyUnlisted is set.
func (s *AuthService) Authorize(ctx context.Context, accessToken, method, path string) (*domain.Decision, error) {
	method = manifest.NormalizeMethod(method)
	path = manifest.NormalizePath(path)

	var (
		required []string
		found    bool
	)
	if s.requirements != nil {
		required, found = s.requirements.Required(method, path)
	}
	if len(required) == 0 {
		if !found && s.denyUnlisted {
			return &domain.Decision{Allowed: false}, nil
		}
		return &domain.Decision{Allowed: true}, nil
	}

	id, err := s.Validate(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return &domain.Decision{Allowed: domain.Authorize(*id, required), Required: required}, nil
}

func (s *AuthService) issueRefresh(ctx context.Context, userID int64) (string, error) {
	raw, err := token.GenerateRefreshToken()
	if err != nil {
		return "", err
	}
	now := s.engine.Now().UTC()
	err = s.tokens.Create(ctx, &domain.RefreshToken{
		UserID:    userID,
		TokenHash: token.HashRefreshToken(raw),
		ExpiresAt: s.engine.RefreshExpiry(now),
		CreatedAt: now,
	})
	if err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	return raw, nil
}

func (s *AuthService) pair(user *domain.User, refresh string) (*domain.TokenPair, error) {
	access, err := s.engine.MintAccessToken(user.ID, user.RoleName)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    domain.TokenTypeBearer,
		Role:         user.RoleName,
		ExpiresIn:    int64(s.engine.AccessTTL() / time.Second),
	}, nil
}

// required drops the not-found class from lookups of records that must
// exist, such as a user's role. A miss there is broken state, not a client
// error.
func required(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("missing record (%v)", err)
	}
	return err
}
