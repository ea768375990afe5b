package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"atlas/internal/backend"
	"atlas/internal/cli"
	applog "atlas/internal/log"
	"atlas/internal/services"
	"atlas/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting atlas-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	factory := backend.NewFactory(logger)
	result, err := factory.CreateBackend(context.Background(), backendConfig)
	if err != nil {
		logger.Error("Failed to create backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	mirror, err := factory.CreateMirror(context.Background(), backendConfig)
	if err != nil {
		logger.Error("Failed to create mirror", "error", err)
		_ = result.Cleanup()
		os.Exit(1)
	}

	mirrorWorker := worker.NewMirrorWorker(result.Backend.Repository, mirror, cfg.MirrorBatchSize)
	processor := services.NewMirrorProcessor(mirrorWorker, services.MirrorProcessorConfig{
		PollInterval: cfg.MirrorInterval,
		BatchSize:    cfg.MirrorBatchSize,
		MaxBackoff:   5 * time.Minute,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Warn("Mirror processor stop error", "error", err)
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	// Entries written while the worker was down are mirrored first.
	logger.Info("Performing startup sync check...")
	if err := mirrorWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
	}

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start mirror processor", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if changes := result.Backend.Changes; changes != nil {
		g.Go(func() error {
			err := changes.ConsumeChanges(gctx, mirrorWorker.HandleChange)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("No broker available, relying on periodic mirroring only")
	}

	if err := g.Wait(); err != nil {
		logger.Error("Change consumption stopped, continuing with periodic mirroring", "error", err)
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
