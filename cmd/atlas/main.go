package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"atlas/internal/auth"
	"atlas/internal/backend"
	"atlas/internal/cache"
	"atlas/internal/cli"
	apphttp "atlas/internal/http"
	applog "atlas/internal/log"
	"atlas/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendConfig)
	if err != nil {
		logger.Error("Failed to create backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	repo := result.Backend.Repository

	snapshots := cache.NewLRUCache[services.Snapshot](512, cfg.SnapshotCacheTTL)
	cacheManager := cache.NewManager(logger)
	cacheManager.Register(snapshots)
	cacheManager.StartCleanup(time.Minute)

	opts := []services.Option{
		services.WithSnapshotCache(snapshots),
		services.WithLogger(logger.WithComponent(applog.ComponentLedger)),
	}
	// A nil *amqp.Client must not become a non-nil Publisher.
	if result.Backend.Changes != nil {
		opts = append(opts, services.WithPublisher(result.Backend.Changes))
	}
	finance := services.NewFinanceService(repo, opts...)

	if cfg.LogResetTokens {
		logger.Warn("Password reset tokens will be written to the log", "env", "DEV_LOG_RESET_TOKENS")
	}
	authSvc, err := auth.NewService(repo, cfg.JWTSecret,
		auth.WithSessionTTL(cfg.SessionTTL),
		auth.WithNotifier(auth.LogNotifier{
			Logger:      logger.WithComponent(applog.ComponentAuth),
			ExposeToken: cfg.LogResetTokens,
		}))
	if err != nil {
		logger.Error("Failed to initialize auth", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Registry:           registry,
		Ready:              repo.Ping,
	}, finance, authSvc, logger)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting atlas server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"change_events", result.Backend.Changes != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
