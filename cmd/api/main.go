package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"finhealth/internal/infrastructure/postgres"
	"finhealth/internal/shared/config"
	"finhealth/internal/shared/logger"
	"finhealth/internal/shared/telemetry"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName:  cfg.Telemetry.ServiceName,
			Environment:  cfg.Telemetry.Environment,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			MetricsPort:  cfg.Telemetry.MetricsPort,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer flushTelemetry(shutdown, log)
	}

	if cfg.Database.MigrateOnBoot {
		if err := postgres.RunMigrations(cfg.Database.URL(), postgres.MigrateUp); err != nil {
			return err
		}
		log.Info().Msg("Database migrations applied")
	}

	deps, err := NewDependencies(cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	if cfg.Webhook.ReplayOnStartup && cfg.Aggregator.Enabled {
		go deps.ReplayPending(ctx, cfg.Webhook.ReplayBatch, log)
	}

	handler := SetupRoutes(deps, cfg, log)
	srv, redirectSrv, errc := StartServers(NewServerConfigFromConfig(handler, cfg), log)

	select {
	case <-ctx.Done():
	case err := <-errc:
		GracefulShutdown(srv, redirectSrv, deps, shutdownTimeout, log)
		return fmt.Errorf("server error: %w", err)
	}

	GracefulShutdown(srv, redirectSrv, deps, shutdownTimeout, log)
	return nil
}

func flushTelemetry(shutdown func(context.Context) error, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Telemetry shutdown failed")
	}
}
