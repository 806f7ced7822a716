package transaction

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Repository defines ledger storage. Every method is scoped to the owning
// user; records owned by someone else behave as if they do not exist.
type Repository interface {
	Create(ctx context.Context, userID string, params CreateParams) (*Transaction, error)
	GetByID(ctx context.Context, userID, id string) (*Transaction, error)
	// GetByExternalID returns nil, nil when no row carries the aggregator id.
	GetByExternalID(ctx context.Context, userID, externalID string) (*Transaction, error)
	List(ctx context.Context, userID string, filter ListFilter) ([]*Transaction, error)
	ListInDateRange(ctx context.Context, userID, from, to string) ([]*Transaction, error)
	Update(ctx context.Context, t *Transaction) (*Transaction, error)
	Delete(ctx context.Context, userID, id string) error
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
	// SumExpenses totals the user's expense amounts filed under category and
	// dated in period (YYYY-MM). An empty period totals every month.
	SumExpenses(ctx context.Context, userID, category, period string) (decimal.Decimal, error)
	SetPossibleDuplicate(ctx context.Context, userID, id string) error
	DismissDuplicate(ctx context.Context, userID, id string, at time.Time) (*Transaction, error)
	ListUserIDs(ctx context.Context) ([]string, error)
}
