// Package db opens the configured persistence backend and exposes it
// through the core ports.
package db

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lazyrag/authplane/internal/core/ports"
	"github.com/lazyrag/authplane/internal/infrastructure/config"
	mongostore "github.com/lazyrag/authplane/internal/infrastructure/db/mongo"
	pgstore "github.com/lazyrag/authplane/internal/infrastructure/db/postgres"
	redisstore "github.com/lazyrag/authplane/internal/infrastructure/db/redis"
	"github.com/lazyrag/authplane/internal/infrastructure/http/handlers"
)

// Store bundles the repositories of one backend.
type Store struct {
	Driver string
	Users  ports.UserRepository
	Roles  ports.RoleRepository
	Groups ports.PermissionGroupRepository
	Tokens ports.RefreshTokenRepository
	Tx     ports.Transactor
	// Check is the readiness probe for the backend.
	Check handlers.Check
	// purge deletes expired refresh tokens; nil when the backend expires
	// them itself.
	purge func(ctx context.Context, now time.Time) (int64, error)
	close func(ctx context.Context) error
}

// Open connects to the backend selected by cfg.Driver and prepares its
// indexes or schema.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	switch cfg.Driver {
	case config.DriverMongo:
		return openMongo(ctx, cfg)
	case config.DriverPostgres:
		return openPostgres(ctx, cfg)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

func openMongo(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	client, database, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.MongoURI, Database: cfg.MongoDB})
	if err != nil {
		return nil, err
	}
	if err := mongostore.EnsureIndexes(ctx, database); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return &Store{
		Driver: config.DriverMongo,
		Users:  mongostore.NewUserRepository(database),
		Roles:  mongostore.NewRoleRepository(database),
		Groups: mongostore.NewPermissionGroupRepository(database),
		Tokens: mongostore.NewRefreshTokenRepository(database),
		Tx:     mongostore.NewTransactor(client),
		Check:  handlers.MongoCheck(database),
		close:  client.Disconnect,
	}, nil
}

func openPostgres(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	pool, err := pgstore.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if err := pgstore.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	tokens := pgstore.NewRefreshTokenRepository(pool)
	return &Store{
		Driver: config.DriverPostgres,
		Users:  pgstore.NewUserRepository(pool),
		Roles:  pgstore.NewRoleRepository(pool),
		Groups: pgstore.NewPermissionGroupRepository(pool),
		Tokens: tokens,
		Tx:     pgstore.NewTransactor(pool),
		Check:  handlers.PostgresCheck(pool),
		purge:  tokens.PurgeExpired,
		close: func(context.Context) error {
			pool.Close()
			return nil
		},
	}, nil
}

// Close releases the backend connection.
func (s *Store) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// RunJanitor deletes expired refresh tokens every interval until ctx ends.
// It returns at once for backends that expire tokens on their own.
func (s *Store) RunJanitor(ctx context.Context, interval time.Duration, log zerolog.Logger) {
	if s.purge == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := s.purge(ctx, now)
			if err != nil {
				log.Warn().Err(err).Msg("refresh token cleanup failed")
				continue
			}
			if n > 0 {
				log.Info().Int64("deleted", n).Msg("expired refresh tokens removed")
			}
		}
	}
}

// OpenCache connects the Redis permission cache on behalf of the named
// service. It returns a nil interface when no address is configured so
// callers can pass it straight through.
func OpenCache(ctx context.Context, cfg config.RedisConfig, service string) (ports.PermissionCache, *goredis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil, nil
	}
	client, err := redisstore.Connect(ctx, redisstore.Config{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB, ClientName: service})
	if err != nil {
		return nil, nil, err
	}
	return redisstore.NewPermissionCache(client, cfg.CacheTTL), client, nil
}
