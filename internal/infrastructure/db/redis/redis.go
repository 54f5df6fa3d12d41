// Package redis holds the shared permission cache. Redis is optional: every
// caller falls back to the permission store when it is absent or slow.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	dialTimeout = 5 * time.Second
	// cache operations sit on the authorization path; a slow Redis must not
	// cost more than a direct lookup would.
	opTimeout = 300 * time.Millisecond
)

// Config selects the Redis instance backing the permission cache.
type Config struct {
	Addr     string
	Password string
	DB       int
	// ClientName shows up in CLIENT LIST, e.g. "auth-core".
	ClientName string
}

// Connect opens the cache client and fails fast when the server is unreachable.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ClientName:   cfg.ClientName,
		DialTimeout:  dialTimeout,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
		MaxRetries:   1,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect permission cache at %s: %w", cfg.Addr, err)
	}
	return client, nil
}
