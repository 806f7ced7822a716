package scheduler

import (
	"context"

	"github.com/rs/zerolog"
)

// PoolDispatcher processes webhook events on the in-process worker pool.
type PoolDispatcher struct {
	pool      *WorkerPool
	processor EventProcessor
}

func NewPoolDispatcher(pool *WorkerPool, processor EventProcessor) *PoolDispatcher {
	return &PoolDispatcher{pool: pool, processor: processor}
}

func (d *PoolDispatcher) Dispatch(ctx context.Context, eventID, itemID string) error {
	return d.pool.Submit(NewWebhookJob(eventID, itemID, d.processor))
}

// Publisher hands an event id to an out-of-process worker.
type Publisher interface {
	PublishWebhook(ctx context.Context, eventID, itemID string) error
}

type BrokerDispatcher struct {
	publisher Publisher
}

func NewBrokerDispatcher(p Publisher) *BrokerDispatcher {
	return &BrokerDispatcher{publisher: p}
}

func (d *BrokerDispatcher) Dispatch(ctx context.Context, eventID, itemID string) error {
	return d.publisher.PublishWebhook(ctx, eventID, itemID)
}

// NotifyDispatcher relies on the database trigger to wake cmd/worker; it
// only records that the event is waiting.
type NotifyDispatcher struct {
	log zerolog.Logger
}

func NewNotifyDispatcher(log zerolog.Logger) *NotifyDispatcher {
	return &NotifyDispatcher{log: log}
}

func (d *NotifyDispatcher) Dispatch(ctx context.Context, eventID, itemID string) error {
	d.log.Debug().Str("event_id", eventID).Str("item_id", itemID).Msg("Webhook event left for listener")
	return nil
}
