package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lazyrag/authplane/internal/core/domain"
)

type RefreshTokenRepository struct {
	pool *pgxpool.Pool
}

func NewRefreshTokenRepository(pool *pgxpool.Pool) *RefreshTokenRepository {
	return &RefreshTokenRepository{pool: pool}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	err := conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		t.UserID, t.TokenHash, t.ExpiresAt, t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		switch pgCode(err) {
		case codeUniqueViolation:
			return fmt.Errorf("%w: refresh token digest collision", domain.ErrConflict)
		case codeForeignKeyViolation:
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// Consume deletes the live row and returns it. A concurrent consumer blocks on
// the row lock and then finds nothing to delete.
func (r *RefreshTokenRepository) Consume(ctx context.Context, digest string, now time.Time) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := conn(ctx, r.pool).QueryRow(ctx, `
		DELETE FROM refresh_tokens
		WHERE token_hash = $1 AND expires_at > $2
		RETURNING id, user_id, token_hash, expires_at, created_at`,
		digest, now,
	).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if noRows(err) {
			return nil, domain.ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("consume refresh token: %w", err)
	}
	return &t, nil
}

func (r *RefreshTokenRepository) Delete(ctx context.Context, digest string) error {
	if _, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, digest); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

// PurgeExpired removes rows that can no longer be redeemed.
func (r *RefreshTokenRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
