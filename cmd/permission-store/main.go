// Command permission-store owns the role to permission-group mapping and
// serves the by-role lookup the authorization middleware depends on.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	_ "github.com/lazyrag/authplane/docs"
	"github.com/lazyrag/authplane/internal/api"
	"github.com/lazyrag/authplane/internal/core/service"
	"github.com/lazyrag/authplane/internal/infrastructure/clients"
	"github.com/lazyrag/authplane/internal/infrastructure/config"
	"github.com/lazyrag/authplane/internal/infrastructure/db"
	httpserver "github.com/lazyrag/authplane/internal/infrastructure/http"
	"github.com/lazyrag/authplane/internal/infrastructure/http/handlers"
	"github.com/lazyrag/authplane/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err == nil {
		err = cfg.ValidatePermissionStore()
	}
	if err != nil {
		logger.Init(logger.Options{Service: "permission-store"}).Fatal().Err(err).Msg("load config")
	}

	log := logger.Init(logger.Options{Service: "permission-store", Level: cfg.LogLevel, Pretty: cfg.Development()})
	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("permission-store stopped")
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

	checks := map[string]handlers.Check{store.Driver: store.Check}
	cache, rdb, err := db.OpenCache(ctx, cfg.Redis, "permission-store")
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		checks["redis"] = handlers.RedisCheck(rdb)
	}

	// groups and built-in roles only; user accounts belong to auth-core
	boot := service.NewBootstrapper(store.Roles, store.Groups, store.Users, nil, service.BootstrapOptions{
		PermissionGroupsFile: cfg.Bootstrap.PermissionGroupsFile,
	}, logger.Component("bootstrap"))
	if err := boot.SeedPermissions(ctx); err != nil {
		return err
	}

	permissions := service.NewPermissionService(store.Roles, store.Groups, store.Users, cache, logger.Component("permissions"))

	e, err := api.NewPermissionStoreRouter(httpserver.ServerOptions{
		Subsystem: "permission_store",
		Logger:    log,
		Ready:     handlers.NewHealthDependenciesHandler(checks),
		Swagger:   true,
	}, api.PermissionStoreDeps{
		Permissions: permissions,
		Validator:   clients.NewAuthCoreClient(cfg.Upstream.AuthServiceURL, cfg.Upstream.Timeout),
		Resolver:    permissions,
		Timeout:     cfg.Upstream.Timeout,
	})
	if err != nil {
		return err
	}

	return httpserver.Serve(ctx, e, ":"+cfg.Port, log)
}
