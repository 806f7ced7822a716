package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finhealth/internal/domain/budget"
	"finhealth/internal/shared/apperr"
)

const categoryColumns = `id, user_id, name, budgeted, amount_spent, period, created_at, updated_at`

type BudgetRepository struct {
	db *DB
}

var _ budget.Repository = (*BudgetRepository)(nil)

func NewBudgetRepository(db *DB) *BudgetRepository {
	return &BudgetRepository{db: db}
}

func scanCategory(row rowScanner) (*budget.Category, error) {
	var c budget.Category
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Budgeted, &c.AmountSpent, &c.Period, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func duplicateCategory() error {
	return apperr.Conflict(apperr.CodeDuplicateCategory, "a category with this name already exists")
}

func (r *BudgetRepository) Create(ctx context.Context, userID string, params budget.CreateParams, spent decimal.Decimal) (*budget.Category, error) {
	query := `
		INSERT INTO budget_categories (id, user_id, name, budgeted, amount_spent, period)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + categoryColumns

	c, err := scanCategory(r.db.QueryRowContext(ctx, query,
		uuid.NewString(), userID, params.Name, params.Budgeted, spent, params.Period))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, duplicateCategory()
		}
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return c, nil
}

func (r *BudgetRepository) GetByID(ctx context.Context, userID, id string) (*budget.Category, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.NotFound("category")
	}

	c, err := scanCategory(r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM budget_categories WHERE id = $1 AND user_id = $2`, id, userID))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("category")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return c, nil
}

func (r *BudgetRepository) List(ctx context.Context, userID string) ([]*budget.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM budget_categories WHERE user_id = $1 ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	cats := []*budget.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return cats, nil
}

func (r *BudgetRepository) Update(ctx context.Context, userID, id string, params budget.UpdateParams) (*budget.Category, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.NotFound("category")
	}

	query := `
		UPDATE budget_categories
		SET name = COALESCE($3, name),
		    budgeted = COALESCE($4, budgeted),
		    period = COALESCE($5, period),
		    updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + categoryColumns

	var budgeted any
	if params.Budgeted != nil {
		budgeted = *params.Budgeted
	}

	c, err := scanCategory(r.db.QueryRowContext(ctx, query, id, userID, params.Name, budgeted, params.Period))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("category")
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, duplicateCategory()
		}
		return nil, fmt.Errorf("failed to update category: %w", err)
	}
	return c, nil
}

func (r *BudgetRepository) Delete(ctx context.Context, userID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.NotFound("category")
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM budget_categories WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.NotFound("category")
	}
	return nil
}

// AddSpent is a single UPDATE so concurrent writers never lose an
// increment.
func (r *BudgetRepository) AddSpent(ctx context.Context, userID, name, month string, delta decimal.Decimal) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE budget_categories
		SET amount_spent = amount_spent + $3, updated_at = NOW()
		WHERE user_id = $1 AND name = $2 AND (period = '' OR period = $4)`,
		userID, name, delta, month)
	if err != nil {
		return false, fmt.Errorf("failed to adjust spending: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *BudgetRepository) SetSpent(ctx context.Context, userID, id string, spent decimal.Decimal) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE budget_categories SET amount_spent = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2`,
		id, userID, spent)
	if err != nil {
		return fmt.Errorf("failed to set spending: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.NotFound("category")
	}
	return nil
}

func (r *BudgetRepository) ResetSpent(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE budget_categories SET amount_spent = 0, updated_at = NOW()
		WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to reset spending: %w", err)
	}
	return nil
}
