package ledger

import (
	"context"
	"fmt"

	"finhealth/internal/domain/budget"
	"finhealth/internal/shared/apperr"
)

func (s *Service) GetCategory(ctx context.Context, userID, id string) (*budget.Category, error) {
	return s.budgets.GetByID(ctx, userID, id)
}

func (s *Service) ListCategories(ctx context.Context, userID string) ([]*budget.Category, error) {
	return s.budgets.List(ctx, userID)
}

// CreateCategory starts the category's spending at the total of any expense
// transactions already filed under its name within its period.
func (s *Service) CreateCategory(ctx context.Context, userID string, params budget.CreateParams) (*budget.Category, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	var created *budget.Category
	err := s.mutate(ctx, userID, "create category", func(ctx context.Context) error {
		spent, err := s.txns.SumExpenses(ctx, userID, params.Name, params.Period)
		if err != nil {
			return fmt.Errorf("failed to total existing spending: %w", err)
		}
		created, err = s.budgets.Create(ctx, userID, params, spent)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateCategory edits a category. Changing the name or the period re-totals
// spending.
func (s *Service) UpdateCategory(ctx context.Context, userID, id string, params budget.UpdateParams) (*budget.Category, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	var updated *budget.Category
	err := s.mutate(ctx, userID, "update category", func(ctx context.Context) error {
		var err error
		updated, err = s.budgets.Update(ctx, userID, id, params)
		if err != nil {
			return err
		}
		if params.Name == nil && params.Period == nil {
			return nil
		}
		spent, err := s.txns.SumExpenses(ctx, userID, updated.Name, updated.Period)
		if err != nil {
			return fmt.Errorf("failed to total spending: %w", err)
		}
		if err := s.budgets.SetSpent(ctx, userID, updated.ID, spent); err != nil {
			return err
		}
		updated.AmountSpent = spent
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) DeleteCategory(ctx context.Context, userID, id string) error {
	return s.mutate(ctx, userID, "delete category", func(ctx context.Context) error {
		return s.budgets.Delete(ctx, userID, id)
	})
}

type ReconcileResult struct {
	Checked  int
	Repaired int
}

// ReconcileAggregates recomputes every category's spending from the ledger
// and repairs any drift, logging each repair as a consistency warning.
func (s *Service) ReconcileAggregates(ctx context.Context, userID string) (*ReconcileResult, error) {
	result := &ReconcileResult{}
	err := s.mutate(ctx, userID, "reconcile aggregates", func(ctx context.Context) error {
		cats, err := s.budgets.List(ctx, userID)
		if err != nil {
			return err
		}
		for _, c := range cats {
			result.Checked++
			sum, err := s.txns.SumExpenses(ctx, userID, c.Name, c.Period)
			if err != nil {
				return err
			}
			if sum.Equal(c.AmountSpent) {
				continue
			}
			w := &apperr.ConsistencyWarning{
				Operation: "reconcile category " + c.Name,
				UserID:    userID,
				Err:       fmt.Errorf("stored spent %s, ledger total %s", c.AmountSpent, sum),
			}
			s.log.Warn().Err(w).Str("category_id", c.ID).Msg("repairing category spending")
			if err := s.budgets.SetSpent(ctx, userID, c.ID, sum); err != nil {
				return err
			}
			result.Repaired++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
