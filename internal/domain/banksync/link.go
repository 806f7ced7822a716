// Package banksync reconciles the ledger with a bank-data aggregator:
// account linking, the link lifecycle and webhook-driven transaction sync.
package banksync

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive            Status = "active"
	StatusError             Status = "error"
	StatusPendingExpiration Status = "pending_expiration"
	StatusDisconnected      Status = "disconnected"
)

var transitions = map[Status][]Status{
	StatusActive:            {StatusError, StatusDisconnected, StatusPendingExpiration},
	StatusPendingExpiration: {StatusActive, StatusDisconnected},
	StatusError:             {StatusActive, StatusDisconnected},
}

// CanTransition reports whether a link may move from s to next.
// Disconnected is terminal.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Link is one user's connection to an institution through the aggregator.
// AccessToken holds the sealed credential and is never serialized.
type Link struct {
	ID               string     `json:"id"`
	UserID           string     `json:"userId"`
	ItemID           string     `json:"itemId"`
	AccessToken      string     `json:"-"`
	TokenFingerprint string     `json:"-"`
	InstitutionID    string     `json:"institutionId"`
	InstitutionName  string     `json:"institutionName,omitempty"`
	Status           Status     `json:"status"`
	ErrorCode        *string    `json:"errorCode,omitempty"`
	LastSyncedAt     *time.Time `json:"lastSyncedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

type CreateLinkParams struct {
	UserID           string
	ItemID           string
	AccessToken      string
	TokenFingerprint string
	InstitutionID    string
	InstitutionName  string
}

// Account mirrors one aggregator account under a link.
type Account struct {
	ID                string           `json:"id"`
	LinkID            string           `json:"linkId"`
	UserID            string           `json:"userId"`
	ExternalAccountID string           `json:"externalAccountId"`
	Name              string           `json:"name"`
	OfficialName      *string          `json:"officialName,omitempty"`
	Type              string           `json:"type"`
	Subtype           *string          `json:"subtype,omitempty"`
	Mask              *string          `json:"mask,omitempty"`
	AvailableBalance  *decimal.Decimal `json:"availableBalance,omitempty"`
	CurrentBalance    *decimal.Decimal `json:"currentBalance,omitempty"`
	Currency          *string          `json:"currency,omitempty"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}
