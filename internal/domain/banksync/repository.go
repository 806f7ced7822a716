package banksync

import (
	"context"
	"time"
)

type LinkRepository interface {
	// Create fails with a conflict when the item id is already stored or the
	// user already has a non-disconnected link to the institution.
	Create(ctx context.Context, params CreateLinkParams) (*Link, error)
	GetByID(ctx context.Context, userID, id string) (*Link, error)
	GetByItemID(ctx context.Context, itemID string) (*Link, error)
	// FindActiveByInstitution returns the user's non-disconnected link for
	// the institution, or nil.
	FindActiveByInstitution(ctx context.Context, userID, institutionID string) (*Link, error)
	ListByUser(ctx context.Context, userID string) ([]*Link, error)
	UpdateStatus(ctx context.Context, id string, status Status, errorCode *string) error
	MarkSynced(ctx context.Context, id string, at time.Time) error
}

type AccountRepository interface {
	// Upsert keys on the aggregator account id.
	Upsert(ctx context.Context, a *Account) (*Account, error)
	ListByLink(ctx context.Context, userID, linkID string) ([]*Account, error)
}

type EventRepository interface {
	Record(ctx context.Context, e *Event) (*Event, error)
	GetByID(ctx context.Context, id string) (*Event, error)
	MarkProcessed(ctx context.Context, id string, at time.Time) error
	ListUnprocessed(ctx context.Context, limit int) ([]*Event, error)
}

type HeldRepository interface {
	// Hold stores h unless the user already has a row for its external id,
	// and returns whichever row is stored.
	Hold(ctx context.Context, h *HeldTransaction) (*HeldTransaction, error)
	GetByID(ctx context.Context, userID, id string) (*HeldTransaction, error)
	// ListPending returns the user's unresolved rows, oldest first.
	ListPending(ctx context.Context, userID string) ([]*HeldTransaction, error)
	// Resolve moves a pending row to status. A row that is no longer pending
	// is a conflict.
	Resolve(ctx context.Context, userID, id string, status HeldStatus, at time.Time) (*HeldTransaction, error)
}
