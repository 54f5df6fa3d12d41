package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/lazyrag/authplane/internal/core/domain"
)

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Token     TokenConfig
	Store     StoreConfig
	Redis     RedisConfig
	Upstream  UpstreamConfig
	Manifest  ManifestConfig
	Bootstrap BootstrapConfig
}

type TokenConfig struct {
	Secret         string `env:"JWT_SECRET"`
	TTLMinutes     int    `env:"JWT_TTL_MINUTES,      default=60"`
	RefreshTTLDays int    `env:"JWT_REFRESH_TTL_DAYS, default=7"`
}

func (t TokenConfig) AccessTTL() time.Duration {
	return time.Duration(t.TTLMinutes) * time.Minute
}

func (t TokenConfig) RefreshTTL() time.Duration {
	return time.Duration(t.RefreshTTLDays) * 24 * time.Hour
}

type StoreConfig struct {
	Driver      string `env:"STORE_DRIVER, default=mongo"`
	MongoURI    string `env:"MONGO_URI,    default=mongodb://localhost:27017"`
	MongoDB     string `env:"MONGO_DB,     default=authplane"`
	PostgresDSN string `env:"POSTGRES_DSN, default=postgres://localhost:5432/authplane?sslmode=disable"`
}

// RedisConfig enables the permission cache when Addr is set.
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB,             default=0"`
	CacheTTL time.Duration `env:"PERMISSION_CACHE_TTL, default=30s"`
}

type UpstreamConfig struct {
	AuthServiceURL       string        `env:"AUTH_SERVICE_URL"`
	PermissionServiceURL string        `env:"PERMISSION_SERVICE_URL"`
	Timeout              time.Duration `env:"UPSTREAM_TIMEOUT, default=5s"`
}

type ManifestConfig struct {
	Path         string `env:"API_PERMISSIONS_FILE,  default=api_permissions.json"`
	Watch        bool   `env:"API_PERMISSIONS_WATCH, default=false"`
	DenyUnlisted bool   `env:"AUTHZ_DENY_UNLISTED,   default=false"`
}

type BootstrapConfig struct {
	AdminUsername        string `env:"BOOTSTRAP_ADMIN_USERNAME"`
	AdminPassword        string `env:"BOOTSTRAP_ADMIN_PASSWORD"`
	PermissionGroupsFile string `env:"PERMISSION_GROUPS_FILE"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration through l.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	if err := cfg.validateCommon(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Development() bool {
	return strings.EqualFold(c.Env, "development")
}

func (c *Config) validateCommon() error {
	switch c.Store.Driver {
	case DriverMongo, DriverPostgres:
	default:
		return fmt.Errorf("%w: STORE_DRIVER must be %q or %q, got %q", domain.ErrConfiguration, DriverMongo, DriverPostgres, c.Store.Driver)
	}
	if c.Token.TTLMinutes <= 0 || c.Token.RefreshTTLDays <= 0 {
		return fmt.Errorf("%w: token TTLs must be positive", domain.ErrConfiguration)
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("%w: UPSTREAM_TIMEOUT must be positive", domain.ErrConfiguration)
	}
	return nil
}

// ValidateAuthCore checks the settings auth-core cannot start without.
func (c *Config) ValidateAuthCore() error {
	if c.Token.Secret == "" {
		return fmt.Errorf("%w: JWT_SECRET is required", domain.ErrConfiguration)
	}
	return nil
}

// ValidatePermissionStore checks the settings the permission store needs to
// authenticate its admin callers.
func (c *Config) ValidatePermissionStore() error {
	if c.Upstream.AuthServiceURL == "" {
		return fmt.Errorf("%w: AUTH_SERVICE_URL is required", domain.ErrConfiguration)
	}
	return nil
}

// ValidateProtectedService checks the settings any service embedding the
// authorization middleware over HTTP needs.
func (c *Config) ValidateProtectedService() error {
	if err := c.ValidatePermissionStore(); err != nil {
		return err
	}
	if c.Upstream.PermissionServiceURL == "" {
		return fmt.Errorf("%w: PERMISSION_SERVICE_URL is required", domain.ErrConfiguration)
	}
	return nil
}
