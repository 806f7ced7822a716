// Command worker applies webhook events recorded by the API when
// WEBHOOK_DISPATCHER is "amqp" or "notify".
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"finhealth/internal/app"
	"finhealth/internal/infrastructure/amqp"
	"finhealth/internal/infrastructure/postgres/listener"
	"finhealth/internal/interfaces/scheduler"
	"finhealth/internal/shared/config"
	"finhealth/internal/shared/logger"
	"finhealth/internal/shared/telemetry"
)

const drainTimeout = 30 * time.Second

func main() {
	_ = godotenv.Load()

	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Worker error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}).
		With().Str("service", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName:  cfg.Telemetry.ServiceName + "-worker",
			Environment:  cfg.Telemetry.Environment,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			MetricsPort:  cfg.Telemetry.MetricsPort,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(sctx)
		}()
	}

	svcs, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer svcs.Close()

	if cfg.Webhook.ReplayOnStartup {
		res, err := svcs.BankSync.ReplayPending(ctx, cfg.Webhook.ReplayBatch)
		if err != nil {
			log.Error().Err(err).Msg("Webhook replay failed")
		} else {
			log.Info().Int("processed", res.Processed).Int("failed", res.Failed).Msg("Replayed pending webhook events")
		}
	}

	switch cfg.Webhook.Dispatcher {
	case config.DispatcherAMQP:
		return consumeBroker(ctx, cfg, svcs, log)
	case config.DispatcherNotify:
		return listenNotify(ctx, cfg, svcs, log)
	default:
		return fmt.Errorf("WEBHOOK_DISPATCHER=%q is handled inside the API process", cfg.Webhook.Dispatcher)
	}
}

func consumeBroker(ctx context.Context, cfg *config.Config, svcs *app.Services, log zerolog.Logger) error {
	client, err := amqp.NewClient(cfg.Webhook.AMQPURL, cfg.Webhook.AMQPExchange, cfg.Webhook.AMQPQueue, log)
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer client.Close()

	return client.ConsumeWebhooks(ctx, func(ctx context.Context, msg *amqp.WebhookMessage) error {
		return svcs.BankSync.ProcessEvent(ctx, msg.EventID)
	})
}

// listenNotify feeds events announced by the insert trigger into a worker
// pool. Events dropped on a full queue stay unprocessed until the next
// replay.
func listenNotify(ctx context.Context, cfg *config.Config, svcs *app.Services, log zerolog.Logger) error {
	pool := scheduler.NewWorkerPool(cfg.Webhook.WorkerCount, cfg.Webhook.QueueSize, log)
	pool.Start()
	dispatcher := scheduler.NewPoolDispatcher(pool, svcs.BankSync)

	l := listener.NewWebhookListener(cfg.Database.ConnectionString(), func(ctx context.Context, n listener.Notification) {
		if err := dispatcher.Dispatch(ctx, n.EventID, n.ItemID); err != nil {
			log.Warn().Err(err).Str("event_id", n.EventID).Msg("Event left for replay")
		}
	}, log)
	l.Start(ctx)

	<-ctx.Done()
	l.Stop()
	pool.Shutdown(drainTimeout)
	return nil
}
