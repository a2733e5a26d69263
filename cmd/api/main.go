// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/ammerola/household-be/internal/app"
	"github.com/ammerola/household-be/internal/handlers"
	"github.com/ammerola/household-be/internal/handlers/middleware"
	"github.com/ammerola/household-be/internal/pkg/config"
	"github.com/ammerola/household-be/internal/pkg/logger"
	"github.com/ammerola/household-be/internal/pkg/metrics"
	"github.com/ammerola/household-be/internal/workers"
)

// Build information injected at compile time
var (
	Version   = "dev"
	BuildTime = "unknown"
	GoVersion = "unknown"
)

func main() {
	slogger := logger.SetupLogger("debug", "json")

	slogger.Info("starting household inventory service",
		slog.String("version", Version),
		slog.String("build_time", BuildTime),
		slog.String("go_version", GoVersion),
	)

	cfg, err := config.Load(slogger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.App.Version == "" {
		cfg.App.Version = Version
	}

	// Reconfigure logger with loaded settings
	slogger = logger.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	slog.SetDefault(slogger)
	slogger.Info("configuration loaded",
		slog.String("environment", cfg.App.Environment),
		slog.String("log_level", cfg.App.LogLevel),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	deps, err := initializeDependencies(ctx, cfg, slogger)
	if err != nil {
		slogger.Error("failed to initialize dependencies", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var limiter *middleware.RateLimiter
	if cfg.Security.RateLimitRequests > 0 {
		limiter = middleware.NewRateLimiter(cfg.Security.RateLimitRequests, cfg.Security.RateLimitDuration, cfg.Security.TrustedProxies)
		go limiter.Run(ctx)
	}

	server := setupHTTPServer(cfg, deps, limiter, slogger)

	serverErrors := make(chan error, 1)
	go func() {
		slogger.Info("starting HTTP server",
			slog.String("address", cfg.GetServerAddress()),
			slog.Bool("tls", cfg.Server.TLSEnabled),
		)

		if cfg.Server.TLSEnabled {
			serverErrors <- server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			serverErrors <- server.ListenAndServe()
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogger.Error("server error", slog.String("error", err.Error()))
		}
	case sig := <-shutdown:
		slogger.Info("shutdown signal received",
			slog.String("signal", sig.String()),
		)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slogger.Error("failed to gracefully shutdown server", slog.String("error", err.Error()))
			server.Close()
		}
	}

	stop()
	deps.cleanup(context.Background())
	slogger.Info("server shutdown complete")
}

// dependencies holds all application dependencies
type dependencies struct {
	container      *app.Container
	asynqClient    *asynq.Client
	asynqInspector *asynq.Inspector
	routes         *handlers.Routes
}

// cleanup drains pending syncs before closing the connections they use
func (d *dependencies) cleanup(ctx context.Context) {
	d.container.Close(ctx)
	if d.asynqInspector != nil {
		_ = d.asynqInspector.Close()
	}
	if d.asynqClient != nil {
		if err := d.asynqClient.Close(); err != nil {
			d.container.Logger.Error("failed to close Asynq client", slog.String("error", err.Error()))
		}
	}
}

func initializeDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dependencies, error) {
	container, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	deps := &dependencies{container: container}

	// the job endpoints answer 503 without a queue
	var enqueuer workers.Enqueuer
	if cfg.Asynq.RedisAddr != "" {
		logger.Info("initializing Asynq client", slog.String("redis_addr", cfg.Asynq.RedisAddr))
		deps.asynqClient = asynq.NewClient(container.AsynqRedisOpt())
		deps.asynqInspector = asynq.NewInspector(container.AsynqRedisOpt())
		enqueuer = deps.asynqClient
	}

	svc := container.Service
	deps.routes = &handlers.Routes{
		Movements: handlers.NewMovementHandler(svc, logger),
		Items:     handlers.NewItemHandler(svc, logger),
		Locations: handlers.NewLocationHandler(svc, logger),
		Admin:     handlers.NewAdminHandler(svc, enqueuer, container.Archive, cfg.Asynq.RetryMax, logger),
	}
	if cfg.Server.EnableHealthCheck {
		deps.routes.Health = handlers.NewHealthHandler(
			container.HealthChecks(),
			deps.asynqInspector,
			container.Breakers.Snapshots,
			cfg,
			logger,
		)
	}
	if cfg.Server.EnableMetrics {
		deps.routes.Metrics = metrics.Handler()
	}

	return deps, nil
}

func setupHTTPServer(cfg *config.Config, deps *dependencies, limiter *middleware.RateLimiter, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	deps.routes.Register(mux, middleware.AdminToken(cfg.Security.AdminToken))

	if cfg.Server.EnablePprof && cfg.IsDevelopment() {
		mux.HandleFunc("GET /debug/pprof/", pprof.Index)
		mux.HandleFunc("GET /debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("GET /debug/pprof/trace", pprof.Trace)
	}

	route := func(r *http.Request) string {
		_, pattern := mux.Handler(r)
		return pattern
	}

	mws := []func(http.Handler) http.Handler{
		middleware.Recovery(logger),
		middleware.RequestID(cfg.Security.RequestIDHeader),
		middleware.Logger(logger, cfg.Security.TrustedProxies),
		middleware.Metrics(route),
	}
	if len(cfg.Security.AllowedOrigins) > 0 {
		mws = append(mws, middleware.CORS(cfg.Security.AllowedOrigins))
	}
	if cfg.Security.SecureHeaders {
		mws = append(mws, middleware.SecureHeaders)
	}
	if limiter != nil {
		mws = append(mws, limiter.Middleware)
	}

	var handler http.Handler = mux
	if cfg.Server.MaxBodyBytes > 0 {
		handler = http.MaxBytesHandler(handler, cfg.Server.MaxBodyBytes)
	}

	return &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        middleware.Chain(handler, mws...),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
}
