package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// WebhookMessage points a worker at a recorded webhook event. The payload
// itself stays in the database.
type WebhookMessage struct {
	EventID   string    `json:"eventId"`
	ItemID    string    `json:"itemId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewWebhookMessage(eventID, itemID string) *WebhookMessage {
	return &WebhookMessage{
		EventID:   eventID,
		ItemID:    itemID,
		Timestamp: time.Now().UTC(),
	}
}

func (m *WebhookMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func WebhookMessageFromJSON(data []byte) (*WebhookMessage, error) {
	var msg WebhookMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.EventID == "" {
		return nil, errors.New("webhook message missing eventId")
	}
	return &msg, nil
}
