package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"finhealth/internal/app"
	"finhealth/internal/infrastructure/amqp"
	httphandlers "finhealth/internal/interfaces/http"
	"finhealth/internal/interfaces/scheduler"
	"finhealth/internal/shared/auth"
	"finhealth/internal/shared/config"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	Services *app.Services
	JWT      *auth.JWT

	HealthHandler      *httphandlers.HealthHandler
	TransactionHandler *httphandlers.TransactionHandler
	CategoryHandler    *httphandlers.CategoryHandler
	GoalHandler        *httphandlers.GoalHandler
	ScoreHandler       *httphandlers.ScoreHandler
	LinkHandler        *httphandlers.LinkHandler
	WebhookHandler     *httphandlers.WebhookHandler

	// Pool is nil unless webhooks are processed in-process.
	Pool   *scheduler.WorkerPool
	Broker *amqp.Client
}

func NewDependencies(cfg *config.Config, log zerolog.Logger) (*Dependencies, error) {
	svcs, err := app.New(cfg, log)
	if err != nil {
		return nil, err
	}
	log.Info().Msg("Connected to database")

	deps := &Dependencies{
		Services:           svcs,
		JWT:                auth.NewJWT(cfg.JWT.Secret),
		HealthHandler:      httphandlers.NewHealthHandler(svcs.DB),
		TransactionHandler: httphandlers.NewTransactionHandler(svcs.Ledger),
		CategoryHandler:    httphandlers.NewCategoryHandler(svcs.Ledger),
		GoalHandler:        httphandlers.NewGoalHandler(svcs.Ledger),
		ScoreHandler:       httphandlers.NewScoreHandler(svcs.Scores),
		LinkHandler:        httphandlers.NewLinkHandler(svcs.BankSync),
	}

	dispatcher, err := deps.newDispatcher(cfg, log)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.WebhookHandler = httphandlers.NewWebhookHandler(svcs.BankSync, dispatcher)

	return deps, nil
}

func (d *Dependencies) newDispatcher(cfg *config.Config, log zerolog.Logger) (httphandlers.Dispatcher, error) {
	switch cfg.Webhook.Dispatcher {
	case config.DispatcherAMQP:
		client, err := amqp.NewClient(cfg.Webhook.AMQPURL, cfg.Webhook.AMQPExchange, cfg.Webhook.AMQPQueue, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to broker: %w", err)
		}
		d.Broker = client
		log.Info().Str("exchange", cfg.Webhook.AMQPExchange).Msg("Webhook events published to broker")
		return scheduler.NewBrokerDispatcher(client), nil
	case config.DispatcherNotify:
		log.Info().Msg("Webhook events left for the notify listener")
		return scheduler.NewNotifyDispatcher(log), nil
	default:
		d.Pool = scheduler.NewWorkerPool(cfg.Webhook.WorkerCount, cfg.Webhook.QueueSize, log)
		d.Pool.Start()
		return scheduler.NewPoolDispatcher(d.Pool, d.Services.BankSync), nil
	}
}

// ReplayPending applies events that were recorded but never processed,
// e.g. because the process stopped before its worker got to them.
func (d *Dependencies) ReplayPending(ctx context.Context, batch int, log zerolog.Logger) {
	res, err := d.Services.BankSync.ReplayPending(ctx, batch)
	if err != nil {
		log.Error().Err(err).Msg("Webhook replay failed")
		return
	}
	if res.Processed > 0 || res.Failed > 0 {
		log.Info().Int("processed", res.Processed).Int("failed", res.Failed).Msg("Replayed pending webhook events")
	}
}

func (d *Dependencies) Close() {
	if d.Broker != nil {
		d.Broker.Close()
	}
	if d.Services != nil {
		d.Services.Close()
	}
}
