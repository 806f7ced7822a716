package scheduler

import (
	"context"
	"fmt"
)

// EventProcessor applies a recorded webhook event.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, eventID string) error
}

type WebhookJob struct {
	eventID   string
	itemID    string
	processor EventProcessor
}

func NewWebhookJob(eventID, itemID string, processor EventProcessor) *WebhookJob {
	return &WebhookJob{eventID: eventID, itemID: itemID, processor: processor}
}

func (j *WebhookJob) Execute(ctx context.Context) error {
	if err := j.processor.ProcessEvent(ctx, j.eventID); err != nil {
		return fmt.Errorf("process webhook event %s: %w", j.eventID, err)
	}
	return nil
}

func (j *WebhookJob) Key() string { return j.itemID }

func (j *WebhookJob) Description() string {
	return "webhook event " + j.eventID
}
