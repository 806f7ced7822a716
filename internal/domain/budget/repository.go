package budget

import (
	"context"

	"github.com/shopspring/decimal"
)

type Repository interface {
	Create(ctx context.Context, userID string, params CreateParams, spent decimal.Decimal) (*Category, error)
	GetByID(ctx context.Context, userID, id string) (*Category, error)
	List(ctx context.Context, userID string) ([]*Category, error)
	Update(ctx context.Context, userID, id string, params UpdateParams) (*Category, error)
	Delete(ctx context.Context, userID, id string) error
	// AddSpent atomically adds delta to the spent total of the category
	// named name when that category covers month. It reports false when no
	// category was changed.
	AddSpent(ctx context.Context, userID, name, month string, delta decimal.Decimal) (bool, error)
	SetSpent(ctx context.Context, userID, id string, spent decimal.Decimal) error
	ResetSpent(ctx context.Context, userID string) error
}
