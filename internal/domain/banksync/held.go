package banksync

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"finhealth/internal/domain/ledger"
	"finhealth/internal/domain/transaction"
	"finhealth/internal/shared/apperr"
)

type HeldStatus string

const (
	HeldPending   HeldStatus = "pending"
	HeldAccepted  HeldStatus = "accepted"
	HeldDismissed HeldStatus = "dismissed"
)

// HeldTransaction is a synced transaction the duplicate detector kept out
// of the ledger. It waits for the user to accept or dismiss it.
type HeldTransaction struct {
	ID                   string                `json:"id"`
	UserID               string                `json:"userId"`
	LinkID               string                `json:"linkId"`
	ExternalID           string                `json:"externalId"`
	Amount               decimal.Decimal       `json:"amount"`
	Direction            transaction.Direction `json:"direction"`
	Category             string                `json:"category"`
	SubCategory          *string               `json:"subCategory,omitempty"`
	Description          string                `json:"description"`
	Account              string                `json:"account"`
	Date                 string                `json:"date"`
	MatchedTransactionID *string               `json:"matchedTransactionId,omitempty"`
	Status               HeldStatus            `json:"status"`
	CreatedAt            time.Time             `json:"createdAt"`
	ResolvedAt           *time.Time            `json:"resolvedAt,omitempty"`
}

func heldFrom(link *Link, res *ledger.IngestResult) *HeldTransaction {
	c := res.Transaction
	h := &HeldTransaction{
		UserID:      link.UserID,
		LinkID:      link.ID,
		Amount:      c.Amount,
		Direction:   c.Direction,
		Category:    c.Category,
		SubCategory: c.SubCategory,
		Description: c.Description,
		Account:     c.Account,
		Date:        c.Date,
		Status:      HeldPending,
	}
	if c.ExternalID != nil {
		h.ExternalID = *c.ExternalID
	}
	if res.Match != nil {
		id := res.Match.ID
		h.MatchedTransactionID = &id
	}
	return h
}

func (h *HeldTransaction) createParams() transaction.CreateParams {
	extID := h.ExternalID
	return transaction.CreateParams{
		Amount:      h.Amount,
		Direction:   h.Direction,
		Category:    h.Category,
		SubCategory: h.SubCategory,
		Description: h.Description,
		Account:     h.Account,
		Date:        h.Date,
		Origin:      transaction.OriginBankSync,
		ExternalID:  &extID,
	}
}

// hold parks a flagged candidate. It returns nil when the same aggregator
// transaction was already resolved by the user.
func (s *Service) hold(ctx context.Context, link *Link, res *ledger.IngestResult) (*HeldTransaction, error) {
	h := heldFrom(link, res)
	stored, err := s.held.Hold(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("failed to hold %s: %w", h.ExternalID, err)
	}

	if stored.Status != HeldPending {
		s.log.Debug().Str("external_id", h.ExternalID).Str("status", string(stored.Status)).Msg("Held transaction already resolved")
		return nil, nil
	}

	ev := s.log.Warn().
		Str("user_id", link.UserID).
		Str("link_id", link.ID).
		Str("external_id", h.ExternalID).
		Str("held_id", stored.ID)
	if h.MatchedTransactionID != nil {
		ev = ev.Str("matched_transaction_id", *h.MatchedTransactionID)
	}
	ev.Msg("Synced transaction held as possible duplicate")
	return stored, nil
}

func (s *Service) ListHeld(ctx context.Context, userID string) ([]*HeldTransaction, error) {
	return s.held.ListPending(ctx, userID)
}

type AcceptResult struct {
	Held        *HeldTransaction         `json:"held"`
	Transaction *transaction.Transaction `json:"transaction"`
}

// AcceptHeld appends a held candidate to the ledger. Accepting twice is a
// conflict, as is accepting a dismissed candidate.
func (s *Service) AcceptHeld(ctx context.Context, userID, id string) (*AcceptResult, error) {
	h, err := s.pendingHeld(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	res, err := s.ledger.AcceptIngest(ctx, userID, h.createParams())
	if err != nil {
		return nil, err
	}

	resolved, err := s.held.Resolve(ctx, userID, id, HeldAccepted, s.now())
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", userID).Str("held_id", id).Str("transaction_id", res.Transaction.ID).Msg("Held transaction accepted")
	return &AcceptResult{Held: resolved, Transaction: res.Transaction}, nil
}

// DismissHeld discards a held candidate. Later syncs of the same
// aggregator transaction stay out of the ledger.
func (s *Service) DismissHeld(ctx context.Context, userID, id string) (*HeldTransaction, error) {
	if _, err := s.pendingHeld(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.held.Resolve(ctx, userID, id, HeldDismissed, s.now())
}

func (s *Service) pendingHeld(ctx context.Context, userID, id string) (*HeldTransaction, error) {
	h, err := s.held.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if h.Status != HeldPending {
		return nil, apperr.Conflict(apperr.CodeConflict, "held transaction is already "+string(h.Status))
	}
	return h, nil
}
