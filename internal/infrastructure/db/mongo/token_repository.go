package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/lazyrag/authplane/internal/core/domain"
)

type RefreshTokenRepository struct {
	coll *mongo.Collection
	ids  counters
}

func NewRefreshTokenRepository(db *mongo.Database) *RefreshTokenRepository {
	return &RefreshTokenRepository{coll: db.Collection(tokensCollection), ids: newCounters(db)}
}

// expires_at is stored as a BSON date so the TTL index can reap it.
type tokenDoc struct {
	ID        int64     `bson:"_id"`
	UserID    int64     `bson:"user_id"`
	TokenHash string    `bson:"token_hash"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt int64     `bson:"created_at"`
}

func (r *RefreshTokenRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	id, err := r.ids.next(ctx, tokensCollection)
	if err != nil {
		return err
	}
	doc := tokenDoc{
		ID:        id,
		UserID:    t.UserID,
		TokenHash: t.TokenHash,
		ExpiresAt: t.ExpiresAt.UTC(),
		CreatedAt: t.CreatedAt.Unix(),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: refresh token digest collision", domain.ErrConflict)
		}
		return fmt.Errorf("insert refresh token: %w", err)
	}
	t.ID = id
	return nil
}

// Consume relies on FindOneAndDelete being atomic per document: of several
// concurrent callers only one gets the row back.
func (r *RefreshTokenRepository) Consume(ctx context.Context, digest string, now time.Time) (*domain.RefreshToken, error) {
	filter := bson.M{
		"token_hash": digest,
		"expires_at": bson.M{"$gt": now.UTC()},
	}
	var doc tokenDoc
	if err := r.coll.FindOneAndDelete(ctx, filter).Decode(&doc); err != nil {
		if notFound(err) {
			return nil, domain.ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("consume refresh token: %w", err)
	}
	return &domain.RefreshToken{
		ID:        doc.ID,
		UserID:    doc.UserID,
		TokenHash: doc.TokenHash,
		ExpiresAt: doc.ExpiresAt,
		CreatedAt: unixToTime(doc.CreatedAt),
	}, nil
}

func (r *RefreshTokenRepository) Delete(ctx context.Context, digest string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"token_hash": digest}); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}
