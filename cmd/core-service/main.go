// Command core-service is a business service protected by the authorization
// middleware. Its route requirements come from the permission manifest and
// every decision is delegated to auth-core and the permission store.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/lazyrag/authplane/internal/api"
	"github.com/lazyrag/authplane/internal/api/metrics"
	"github.com/lazyrag/authplane/internal/api/middleware"
	"github.com/lazyrag/authplane/internal/core/ports"
	"github.com/lazyrag/authplane/internal/infrastructure/clients"
	"github.com/lazyrag/authplane/internal/infrastructure/config"
	"github.com/lazyrag/authplane/internal/infrastructure/db"
	httpserver "github.com/lazyrag/authplane/internal/infrastructure/http"
	"github.com/lazyrag/authplane/internal/infrastructure/http/handlers"
	"github.com/lazyrag/authplane/internal/manifest"
	"github.com/lazyrag/authplane/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err == nil {
		err = cfg.ValidateProtectedService()
	}
	if err != nil {
		logger.Init(logger.Options{Service: "core-service"}).Fatal().Err(err).Msg("load config")
	}

	log := logger.Init(logger.Options{Service: "core-service", Level: cfg.LogLevel, Pretty: cfg.Development()})
	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("core-service stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
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

	checks := map[string]handlers.Check{}
	var storeOpts []clients.PermissionStoreOption
	cache, rdb, err := db.OpenCache(ctx, cfg.Redis, "core-service")
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		checks["redis"] = handlers.RedisCheck(rdb)
		storeOpts = append(storeOpts, clients.WithCache(cache))
	}

	var resolver ports.PermissionResolver = clients.NewPermissionStoreClient(cfg.Upstream.PermissionServiceURL, cfg.Upstream.Timeout, storeOpts...)

	e, err := httpserver.NewServer(httpserver.ServerOptions{
		Subsystem:    "core_service",
		Logger:       log,
		ErrorHandler: api.NewHTTPErrorHandler(log),
		Ready:        handlers.NewHealthDependenciesHandler(checks),
	})
	if err != nil {
		return err
	}

	serviceRoutes().MountGuarded(e, middleware.Config{
		Validator:    clients.NewAuthCoreClient(cfg.Upstream.AuthServiceURL, cfg.Upstream.Timeout),
		Permissions:  resolver,
		Requirements: requirements,
		Timeout:      cfg.Upstream.Timeout,
		Logger:       logger.Component("authz"),
	})

	return httpserver.Serve(ctx, e, ":"+cfg.Port, log)
}
