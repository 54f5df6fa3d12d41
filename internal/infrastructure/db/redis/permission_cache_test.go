package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazyrag/authplane/internal/core/ports"
)

var _ ports.PermissionCache = (*PermissionCache)(nil)

func newTestCache(t *testing.T, ttl time.Duration) (*PermissionCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewPermissionCache(client, ttl), mr
}

func TestPermissionCache_RoundTrip(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "editor")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "editor", []string{"document.read", "document.write"}))
	assert.True(t, mr.Exists("perm:role:editor"))

	groups, ok, err := cache.Get(ctx, "editor")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"document.read", "document.write"}, groups)

	require.NoError(t, cache.Invalidate(ctx, "editor"))
	_, ok, err = cache.Get(ctx, "editor")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPermissionCache_EmptyListIsAHit(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "ghost", nil))
	groups, ok, err := cache.Get(ctx, "ghost")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{}, groups)
}

func TestPermissionCache_Expires(t *testing.T) {
	cache, mr := newTestCache(t, 10*time.Second)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "user", []string{"user.read"}))
	mr.FastForward(11 * time.Second)

	_, ok, err := cache.Get(ctx, "user")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPermissionCache_ServerDown(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	mr.Close()

	_, _, err := cache.Get(context.Background(), "user")
	assert.Error(t, err)
}
