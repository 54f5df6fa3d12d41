package http

import (
	"fmt"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/lazyrag/authplane/internal/infrastructure/http/handlers"
)

// ServerOptions configures the shared echo instance every binary starts from.
type ServerOptions struct {
	// Subsystem labels the echoprometheus request metrics, e.g. "auth_core".
	Subsystem    string
	Logger       zerolog.Logger
	ErrorHandler echo.HTTPErrorHandler
	Validator    echo.Validator
	Health       *handlers.HealthHandler
	Ready        *handlers.HealthDependenciesHandler
	// Registerer and Gatherer default to the prometheus globals.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	// Swagger serves the registered swag document under /swagger/*.
	Swagger bool
}

// NewServer builds the Echo instance with global middleware, health probes
// and /metrics registered. Service routes are mounted by the caller.
func NewServer(opts ServerOptions) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	if opts.ErrorHandler != nil {
		e.HTTPErrorHandler = opts.ErrorHandler
	}
	if opts.Validator != nil {
		e.Validator = opts.Validator
	}

	prom, err := echoprometheus.MiddlewareConfig{
		Namespace:  "authplane",
		Subsystem:  opts.Subsystem,
		Registerer: opts.Registerer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}.ToMiddleware()
	if err != nil {
		return nil, fmt.Errorf("register http metrics: %w", err)
	}

	// --- Global middleware ---
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(opts.Logger))
	e.Use(prom)

	// --- Health probes (no auth required) ---
	health := opts.Health
	if health == nil {
		health = handlers.NewHealthHandler(nil)
	}
	e.GET("/health", health.Liveness)
	if opts.Ready != nil {
		e.GET("/health/ready", opts.Ready.Readiness)
	}

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))

	if opts.Swagger {
		e.GET("/swagger/*", echoSwagger.WrapHandler)
	}

	return e, nil
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
