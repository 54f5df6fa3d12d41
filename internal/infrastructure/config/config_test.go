package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazyrag/authplane/internal/core/domain"
)

func load(t *testing.T, env map[string]string) (*Config, error) {
	t.Helper()
	return LoadWith(context.Background(), envconfig.MapLookuper(env))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(t, map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverMongo, cfg.Store.Driver)
	assert.Equal(t, time.Hour, cfg.Token.AccessTTL())
	assert.Equal(t, 7*24*time.Hour, cfg.Token.RefreshTTL())
	assert.Equal(t, 5*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL)
	assert.Equal(t, "api_permissions.json", cfg.Manifest.Path)
	assert.False(t, cfg.Manifest.DenyUnlisted)
	assert.True(t, cfg.Development())
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := load(t, map[string]string{
		"JWT_SECRET":           "s3cret",
		"JWT_TTL_MINUTES":      "15",
		"JWT_REFRESH_TTL_DAYS": "1",
		"STORE_DRIVER":         "postgres",
		"UPSTREAM_TIMEOUT":     "2s",
		"AUTHZ_DENY_UNLISTED":  "true",
		"ENV":                  "production",
	})
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.Token.AccessTTL())
	assert.Equal(t, 24*time.Hour, cfg.Token.RefreshTTL())
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, 2*time.Second, cfg.Upstream.Timeout)
	assert.True(t, cfg.Manifest.DenyUnlisted)
	assert.False(t, cfg.Development())
	assert.NoError(t, cfg.ValidateAuthCore())
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown driver":   {"STORE_DRIVER": "sqlite"},
		"zero ttl":         {"JWT_TTL_MINUTES": "0"},
		"unparsable ttl":   {"JWT_TTL_MINUTES": "soon"},
		"negative timeout": {"UPSTREAM_TIMEOUT": "-1s"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := load(t, env)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrConfiguration))
		})
	}
}

func TestValidate_RequiredPerBinary(t *testing.T) {
	cfg, err := load(t, map[string]string{})
	require.NoError(t, err)

	assert.True(t, errors.Is(cfg.ValidateAuthCore(), domain.ErrConfiguration))
	assert.True(t, errors.Is(cfg.ValidatePermissionStore(), domain.ErrConfiguration))

	cfg.Upstream.AuthServiceURL = "http://auth:8000"
	assert.NoError(t, cfg.ValidatePermissionStore())
	assert.True(t, errors.Is(cfg.ValidateProtectedService(), domain.ErrConfiguration))

	cfg.Upstream.PermissionServiceURL = "http://perm:8000"
	assert.NoError(t, cfg.ValidateProtectedService())
}
