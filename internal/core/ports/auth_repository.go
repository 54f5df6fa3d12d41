package ports

import (
	"context"
	"time"

	"github.com/lazyrag/authplane/internal/core/domain"
)

// UserRepository persists credentials and role assignments. Returned users
// carry RoleName resolved from their role.
type UserRepository interface {
	// Create inserts the user; a taken username yields domain.ErrUserExists.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	UpdateRole(ctx context.Context, userID, roleID int64) error
	Count(ctx context.Context) (int64, error)
	CountByRole(ctx context.Context, roleID int64) (int64, error)
}

// RefreshTokenRepository stores refresh-token digests.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	// Consume deletes and returns the row with the given digest if it is still
	// live at now. Concurrent consumers of one digest see at most one success;
	// every other caller gets domain.ErrInvalidRefreshToken.
	Consume(ctx context.Context, digest string, now time.Time) (*domain.RefreshToken, error)
	Delete(ctx context.Context, digest string) error
}

// Transactor runs fn inside one transaction. Repositories called with the
// ctx handed to fn participate in it.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
