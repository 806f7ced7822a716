package banksync

import (
	"encoding/json"
	"time"

	"finhealth/internal/infrastructure/aggregator"
	"finhealth/internal/shared/apperr"
)

// Event is a recorded inbound webhook. Only Processed and ProcessedAt
// change after it is stored.
type Event struct {
	ID          string     `json:"id"`
	ItemID      string     `json:"itemId"`
	WebhookType string     `json:"webhookType"`
	WebhookCode string     `json:"webhookCode"`
	Payload     []byte     `json:"-"`
	Processed   bool       `json:"processed"`
	ReceivedAt  time.Time  `json:"receivedAt"`
	ProcessedAt *time.Time `json:"processedAt,omitempty"`
}

// Payload is the aggregator's webhook body.
type Payload struct {
	WebhookType           string                `json:"webhook_type"`
	WebhookCode           string                `json:"webhook_code"`
	ItemID                string                `json:"item_id"`
	AccountID             *string               `json:"account_id,omitempty"`
	Error                 *aggregator.ErrorBody `json:"error,omitempty"`
	NewTransactions       int                   `json:"new_transactions,omitempty"`
	RemovedTransactions   []string              `json:"removed_transactions,omitempty"`
	ConsentExpirationTime *time.Time            `json:"consent_expiration_time,omitempty"`
}

// peekHeader reads whatever identifying fields it can from raw. It never
// fails; fields it cannot read stay empty.
func peekHeader(raw []byte) (itemID, webhookType, webhookCode string) {
	var h struct {
		WebhookType string `json:"webhook_type"`
		WebhookCode string `json:"webhook_code"`
		ItemID      string `json:"item_id"`
	}
	_ = json.Unmarshal(raw, &h)
	return h.ItemID, h.WebhookType, h.WebhookCode
}

func ParsePayload(raw []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperr.Validation("malformed webhook payload: %v", err)
	}
	if p.WebhookType == "" || p.WebhookCode == "" {
		return nil, apperr.Validation("webhook_type and webhook_code are required")
	}
	return &p, nil
}

// Notice is the classified form of a webhook. Exactly one of the types
// below implements it.
type Notice interface {
	Item() string
}

type TransactionsAvailable struct {
	ItemID          string
	NewTransactions int
}

type TransactionsRemoved struct {
	ItemID         string
	TransactionIDs []string
}

type ItemError struct {
	ItemID    string
	ErrorCode string
}

type PermissionRevoked struct {
	ItemID string
}

type PendingExpiration struct {
	ItemID    string
	ExpiresAt *time.Time
}

type LoginRepaired struct {
	ItemID string
}

type Unhandled struct {
	ItemID      string
	WebhookType string
	WebhookCode string
}

func (n TransactionsAvailable) Item() string { return n.ItemID }
func (n TransactionsRemoved) Item() string   { return n.ItemID }
func (n ItemError) Item() string             { return n.ItemID }
func (n PermissionRevoked) Item() string     { return n.ItemID }
func (n PendingExpiration) Item() string     { return n.ItemID }
func (n LoginRepaired) Item() string         { return n.ItemID }
func (n Unhandled) Item() string             { return n.ItemID }

// Classify maps (webhook_type, webhook_code) to a Notice.
func Classify(p *Payload) Notice {
	switch p.WebhookType {
	case "TRANSACTIONS":
		switch p.WebhookCode {
		case "INITIAL_UPDATE", "HISTORICAL_UPDATE", "DEFAULT_UPDATE", "SYNC_UPDATES_AVAILABLE":
			return TransactionsAvailable{ItemID: p.ItemID, NewTransactions: p.NewTransactions}
		case "TRANSACTIONS_REMOVED":
			return TransactionsRemoved{ItemID: p.ItemID, TransactionIDs: p.RemovedTransactions}
		}
	case "ITEM":
		switch p.WebhookCode {
		case "ERROR":
			code := "UNKNOWN"
			if p.Error != nil && p.Error.ErrorCode != "" {
				code = p.Error.ErrorCode
			}
			return ItemError{ItemID: p.ItemID, ErrorCode: code}
		case "USER_PERMISSION_REVOKED", "USER_ACCOUNT_REVOKED":
			return PermissionRevoked{ItemID: p.ItemID}
		case "PENDING_EXPIRATION", "PENDING_DISCONNECT":
			return PendingExpiration{ItemID: p.ItemID, ExpiresAt: p.ConsentExpirationTime}
		case "LOGIN_REPAIRED":
			return LoginRepaired{ItemID: p.ItemID}
		}
	}
	return Unhandled{ItemID: p.ItemID, WebhookType: p.WebhookType, WebhookCode: p.WebhookCode}
}
