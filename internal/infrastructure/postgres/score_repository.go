package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"finhealth/internal/domain/score"
)

type ScoreRepository struct {
	db *DB
}

var _ score.Repository = (*ScoreRepository)(nil)

func NewScoreRepository(db *DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

func (r *ScoreRepository) Get(ctx context.Context, userID string) (*score.Score, error) {
	var s score.Score
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, value, budget_adherence, savings_progress, engagement, goals_completed, cash_flow, computed_at
		FROM scores WHERE user_id = $1`, userID,
	).Scan(
		&s.UserID, &s.Value,
		&s.Factors.BudgetAdherence, &s.Factors.SavingsProgress, &s.Factors.Engagement,
		&s.Factors.GoalsCompleted, &s.Factors.CashFlow, &s.ComputedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get score: %w", err)
	}
	return &s, nil
}

func (r *ScoreRepository) Generation(ctx context.Context, userID string) (int64, error) {
	var gen int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE((SELECT generation FROM score_invalidations WHERE user_id = $1), 0)`, userID,
	).Scan(&gen)
	if err != nil {
		return 0, fmt.Errorf("failed to get score generation: %w", err)
	}
	return gen, nil
}

// Save replaces the user's row wholesale unless an Invalidate advanced the
// generation after the caller read it. The generation row is locked for the
// duration so a concurrent Invalidate waits for the write or wins outright.
func (r *ScoreRepository) Save(ctx context.Context, s *score.Score, generation int64) (bool, error) {
	saved := false
	err := r.db.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO score_invalidations (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, s.UserID); err != nil {
			return err
		}
		var current int64
		if err := r.db.QueryRowContext(ctx,
			`SELECT generation FROM score_invalidations WHERE user_id = $1 FOR UPDATE`, s.UserID,
		).Scan(&current); err != nil {
			return err
		}
		if current != generation {
			return nil
		}

		_, err := r.db.ExecContext(ctx, `
			INSERT INTO scores (user_id, value, budget_adherence, savings_progress, engagement, goals_completed, cash_flow, computed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (user_id) DO UPDATE SET
				value = EXCLUDED.value,
				budget_adherence = EXCLUDED.budget_adherence,
				savings_progress = EXCLUDED.savings_progress,
				engagement = EXCLUDED.engagement,
				goals_completed = EXCLUDED.goals_completed,
				cash_flow = EXCLUDED.cash_flow,
				computed_at = EXCLUDED.computed_at
			WHERE scores.computed_at <= EXCLUDED.computed_at`,
			s.UserID, s.Value,
			s.Factors.BudgetAdherence, s.Factors.SavingsProgress, s.Factors.Engagement,
			s.Factors.GoalsCompleted, s.Factors.CashFlow, s.ComputedAt,
		)
		if err != nil {
			return err
		}
		saved = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to save score: %w", err)
	}
	return saved, nil
}

func (r *ScoreRepository) Invalidate(ctx context.Context, userID string) error {
	err := r.db.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := r.db.ExecContext(ctx, `
			INSERT INTO score_invalidations (user_id, generation, invalidated_at) VALUES ($1, 1, NOW())
			ON CONFLICT (user_id) DO UPDATE SET
				generation = score_invalidations.generation + 1,
				invalidated_at = NOW()`, userID); err != nil {
			return err
		}
		_, err := r.db.ExecContext(ctx, `DELETE FROM scores WHERE user_id = $1`, userID)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate score: %w", err)
	}
	return nil
}
