package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 30 * time.Second

// PermissionCache keeps role → permission-group lists in Redis so every
// replica of a service shares one short-lived view.
// Key format: perm:role:<role_name>
type PermissionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPermissionCache wraps client. A non-positive ttl falls back to 30s.
func NewPermissionCache(client *redis.Client, ttl time.Duration) *PermissionCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &PermissionCache{client: client, ttl: ttl}
}

// Get reports ok=false on a miss.
func (c *PermissionCache) Get(ctx context.Context, role string) ([]string, bool, error) {
	raw, err := c.client.Get(ctx, c.key(role)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("permission cache get: %w", err)
	}

	var groups []string
	if err := json.Unmarshal(raw, &groups); err != nil {
		return nil, false, fmt.Errorf("permission cache decode: %w", err)
	}
	if groups == nil {
		groups = []string{}
	}
	return groups, true, nil
}

func (c *PermissionCache) Set(ctx context.Context, role string, groups []string) error {
	if groups == nil {
		groups = []string{}
	}
	raw, err := json.Marshal(groups)
	if err != nil {
		return fmt.Errorf("permission cache encode: %w", err)
	}
	return c.client.Set(ctx, c.key(role), raw, c.ttl).Err()
}

func (c *PermissionCache) Invalidate(ctx context.Context, role string) error {
	return c.client.Del(ctx, c.key(role)).Err()
}

func (c *PermissionCache) key(role string) string {
	return "perm:role:" + role
}
