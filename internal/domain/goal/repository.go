package goal

import (
	"context"

	"github.com/shopspring/decimal"
)

type Repository interface {
	Create(ctx context.Context, userID string, params CreateParams) (*Goal, error)
	GetByID(ctx context.Context, userID, id string) (*Goal, error)
	List(ctx context.Context, userID string) ([]*Goal, error)
	Update(ctx context.Context, userID, id string, params UpdateParams) (*Goal, error)
	Delete(ctx context.Context, userID, id string) error
	// AddContribution atomically increments the saved amount and merges
	// amount into the history entry for month.
	AddContribution(ctx context.Context, userID, id, month string, amount decimal.Decimal) (*Goal, error)
}
