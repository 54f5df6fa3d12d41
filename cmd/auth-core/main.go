// Command auth-core owns user credentials, issues access and refresh tokens
// and answers validate/authorize calls for the other services.
//
// @title                       authplane API
// @version                     1.0
// @description                 Authentication, refresh-token rotation and role/permission-group authorization.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	_ "github.com/lazyrag/authplane/docs"
	"github.com/lazyrag/authplane/internal/api"
	"github.com/lazyrag/authplane/internal/api/metrics"
	"github.com/lazyrag/authplane/internal/core/service"
	"github.com/lazyrag/authplane/internal/infrastructure/config"
	"github.com/lazyrag/authplane/internal/infrastructure/db"
	httpserver "github.com/lazyrag/authplane/internal/infrastructure/http"
	"github.com/lazyrag/authplane/internal/infrastructure/http/handlers"
	"github.com/lazyrag/authplane/internal/manifest"
	"github.com/lazyrag/authplane/internal/token"
	"github.com/lazyrag/authplane/pkg/logger"
)

const janitorInterval = time.Hour

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err == nil {
		err = cfg.ValidateAuthCore()
	}
	if err != nil {
		logger.Init(logger.Options{Service: "auth-core"}).Fatal().Err(err).Msg("load config")
	}

	log := logger.Init(logger.Options{Service: "auth-core", Level: cfg.LogLevel, Pretty: cfg.Development()})
	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("auth-core stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	store, err := db.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			log.Warn().Err(err).Msg("store close")
		}
	}()
	log.Info().Str("driver", store.Driver).Msg("store ready")

	checks := map[string]handlers.Check{store.Driver: store.Check}
	cache, rdb, err := db.OpenCache(ctx, cfg.Redis, "auth-core")
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		checks["redis"] = handlers.RedisCheck(rdb)
	}

	engine, err := token.NewEngine(token.Options{
		Secret:     cfg.Token.Secret,
		AccessTTL:  cfg.Token.AccessTTL(),
		RefreshTTL: cfg.Token.RefreshTTL(),
	})
	if err != nil {
		return err
	}

	requirements := manifest.NewStore(cfg.Manifest.Path, logger.Component("manifest"), manifest.WithLoadHook(metrics.ManifestLoaded))
	if err := requirements.Load(); err != nil {
		return err
	}
	if cfg.Manifest.Watch {
		go func() {
			if err := requirements.Watch(ctx); err != nil {
				log.Warn().Err(err).Msg("manifest watch stopped")
			}
		}()
	}

	permissions := service.NewPermissionService(store.Roles, store.Groups, store.Users, cache, logger.Component("permissions"))
	auth := service.NewAuthService(store.Users, store.Roles, store.Tokens, store.Tx, service.AuthOptions{
		Engine:       engine,
		Requirements: requirements,
		DenyUnlisted: cfg.Manifest.DenyUnlisted,
		Log:          logger.Component("auth"),
	})
	admin := service.NewAdminService(store.Users, store.Roles, cfg.Bootstrap.AdminUsername, logger.Component("admin"))

	boot := service.NewBootstrapper(store.Roles, store.Groups, store.Users, nil, service.BootstrapOptions{
		PermissionGroupsFile: cfg.Bootstrap.PermissionGroupsFile,
		AdminUsername:        cfg.Bootstrap.AdminUsername,
		AdminPassword:        cfg.Bootstrap.AdminPassword,
	}, logger.Component("bootstrap"))
	if err := boot.Run(ctx); err != nil {
		return err
	}

	go store.RunJanitor(ctx, janitorInterval, log)

	e, err := api.NewAuthCoreRouter(httpserver.ServerOptions{
		Subsystem: "auth_core",
		Logger:    log,
		Health:    handlers.NewHealthHandler(bootstrapStatus(boot)),
		Ready:     handlers.NewHealthDependenciesHandler(checks),
		Swagger:   true,
	}, api.AuthCoreDeps{
		Auth:        auth,
		Admin:       admin,
		Permissions: permissions,
		Validator:   auth,
		Timeout:     cfg.Upstream.Timeout,
	})
	if err != nil {
		return err
	}

	return httpserver.Serve(ctx, e, ":"+cfg.Port, log)
}

func bootstrapStatus(b *service.Bootstrapper) func(ctx context.Context) (map[string]any, error) {
	return func(ctx context.Context) (map[string]any, error) {
		st, err := b.Status(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"roles_count":  st.RolesCount,
			"users_count":  st.UsersCount,
			"bootstrap_ok": st.BootstrapOK,
		}, nil
	}
}
