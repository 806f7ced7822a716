package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"finhealth/internal/domain/goal"
	"finhealth/internal/shared/apperr"
)

const goalColumns = `id, user_id, name, target_amount, current_amount,
	to_char(target_date, 'YYYY-MM-DD'), created_at, updated_at`

type GoalRepository struct {
	db *DB
}

var _ goal.Repository = (*GoalRepository)(nil)

func NewGoalRepository(db *DB) *GoalRepository {
	return &GoalRepository{db: db}
}

func scanGoal(row rowScanner) (*goal.Goal, error) {
	var g goal.Goal
	var targetDate sql.NullString
	if err := row.Scan(&g.ID, &g.UserID, &g.Name, &g.TargetAmount, &g.CurrentAmount, &targetDate, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	if targetDate.Valid {
		g.TargetDate = &targetDate.String
	}
	g.History = []goal.Contribution{}
	return &g, nil
}

func nullableDate(d *string) any {
	if d == nil || *d == "" {
		return nil
	}
	return *d
}

func (r *GoalRepository) loadHistory(ctx context.Context, goals ...*goal.Goal) error {
	if len(goals) == 0 {
		return nil
	}
	byID := make(map[string]*goal.Goal, len(goals))
	ids := make([]string, 0, len(goals))
	for _, g := range goals {
		byID[g.ID] = g
		ids = append(ids, g.ID)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT goal_id, month, amount FROM goal_contributions
		WHERE goal_id = ANY($1::uuid[])
		ORDER BY goal_id, month`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load contributions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var goalID string
		var c goal.Contribution
		if err := rows.Scan(&goalID, &c.Month, &c.Amount); err != nil {
			return fmt.Errorf("failed to scan contribution: %w", err)
		}
		if g, ok := byID[goalID]; ok {
			g.History = append(g.History, c)
		}
	}
	return rows.Err()
}

func (r *GoalRepository) Create(ctx context.Context, userID string, params goal.CreateParams) (*goal.Goal, error) {
	query := `
		INSERT INTO goals (id, user_id, name, target_amount, current_amount, target_date)
		VALUES ($1, $2, $3, $4, $5, $6::date)
		RETURNING ` + goalColumns

	g, err := scanGoal(r.db.QueryRowContext(ctx, query,
		uuid.NewString(), userID, params.Name, params.TargetAmount, params.CurrentAmount, nullableDate(params.TargetDate)))
	if err != nil {
		return nil, fmt.Errorf("failed to create goal: %w", err)
	}
	return g, nil
}

func (r *GoalRepository) GetByID(ctx context.Context, userID, id string) (*goal.Goal, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.NotFound("goal")
	}

	g, err := scanGoal(r.db.QueryRowContext(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE id = $1 AND user_id = $2`, id, userID))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("goal")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}
	if err := r.loadHistory(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (r *GoalRepository) List(ctx context.Context, userID string) ([]*goal.Goal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}

	goals := []*goal.Goal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		goals = append(goals, g)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("error iterating goals: %w", err)
	}

	if err := r.loadHistory(ctx, goals...); err != nil {
		return nil, err
	}
	return goals, nil
}

func (r *GoalRepository) Update(ctx context.Context, userID, id string, params goal.UpdateParams) (*goal.Goal, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.NotFound("goal")
	}

	var target, current any
	if params.TargetAmount != nil {
		target = *params.TargetAmount
	}
	if params.CurrentAmount != nil {
		current = *params.CurrentAmount
	}
	clearDate := params.TargetDate != nil && *params.TargetDate == ""

	query := `
		UPDATE goals
		SET name = COALESCE($3, name),
		    target_amount = COALESCE($4, target_amount),
		    current_amount = COALESCE($5, current_amount),
		    target_date = CASE WHEN $7 THEN NULL ELSE COALESCE($6::date, target_date) END,
		    updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + goalColumns

	g, err := scanGoal(r.db.QueryRowContext(ctx, query, id, userID, params.Name, target, current, nullableDate(params.TargetDate), clearDate))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("goal")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update goal: %w", err)
	}
	if err := r.loadHistory(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (r *GoalRepository) Delete(ctx context.Context, userID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.NotFound("goal")
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM goals WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete goal: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.NotFound("goal")
	}
	return nil
}

// AddContribution increments the goal and upserts the month's history row
// with atomic additions, so same-month contributions merge.
func (r *GoalRepository) AddContribution(ctx context.Context, userID, id, month string, amount decimal.Decimal) (*goal.Goal, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.NotFound("goal")
	}

	g, err := scanGoal(r.db.QueryRowContext(ctx, `
		UPDATE goals SET current_amount = current_amount + $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING `+goalColumns, id, userID, amount))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("goal")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add contribution: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO goal_contributions (goal_id, month, amount) VALUES ($1, $2, $3)
		ON CONFLICT (goal_id, month) DO UPDATE SET amount = goal_contributions.amount + EXCLUDED.amount`,
		id, month, amount); err != nil {
		return nil, fmt.Errorf("failed to record contribution: %w", err)
	}

	if err := r.loadHistory(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}
