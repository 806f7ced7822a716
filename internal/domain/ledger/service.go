// Package ledger keeps budget spending and goal savings consistent with the
// transaction ledger. Every ledger write and the aggregate change it implies
// commit in one storage transaction.
package ledger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"finhealth/internal/domain/budget"
	"finhealth/internal/domain/goal"
	"finhealth/internal/domain/transaction"
	"finhealth/internal/shared/apperr"
)

// TxManager runs fn inside a storage transaction carried by the context.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ScoreInvalidator drops a user's cached score.
type ScoreInvalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

type Service struct {
	tx      TxManager
	txns    transaction.Repository
	budgets budget.Repository
	goals   goal.Repository
	scores  ScoreInvalidator
	locks   *userLocks
	now     func() time.Time
	log     zerolog.Logger
}

func NewService(
	tx TxManager,
	txns transaction.Repository,
	budgets budget.Repository,
	goals goal.Repository,
	scores ScoreInvalidator,
	log zerolog.Logger,
) *Service {
	return &Service{
		tx:      tx,
		txns:    txns,
		budgets: budgets,
		goals:   goals,
		scores:  scores,
		locks:   newUserLocks(),
		now:     time.Now,
		log:     log,
	}
}

// mutate serializes fn with the user's other mutations, runs it in one
// storage transaction and invalidates the score once it has committed.
func (s *Service) mutate(ctx context.Context, userID, op string, fn func(ctx context.Context) error) error {
	unlock := s.locks.lock(userID)
	err := s.tx.WithinTx(ctx, fn)
	unlock()
	if err != nil {
		return err
	}
	s.invalidateScore(ctx, userID, op)
	return nil
}

func (s *Service) invalidateScore(ctx context.Context, userID, op string) {
	if s.scores == nil {
		return
	}
	if err := s.scores.Invalidate(ctx, userID); err != nil {
		w := &apperr.ConsistencyWarning{Operation: op + ": score invalidation", UserID: userID, Err: err}
		s.log.Warn().Err(w).Str("user_id", userID).Msg("score may be stale")
	}
}

// applySpentChange moves budget spending from the contribution of before to
// that of after. Either side may be nil. An edit that keeps category and
// month applies a single delta; any other edit subtracts then adds, so a
// date moved out of a category's period leaves that period's total.
func (s *Service) applySpentChange(ctx context.Context, userID string, before, after *transaction.Transaction) error {
	var (
		old, cur     transaction.Spend
		oldOK, newOK bool
	)
	if before != nil {
		old, oldOK = before.SpentContribution()
	}
	if after != nil {
		cur, newOK = after.SpentContribution()
	}

	if oldOK && newOK && old.Category == cur.Category && old.Month == cur.Month {
		return s.addSpent(ctx, userID, old.Category, old.Month, cur.Amount.Sub(old.Amount))
	}
	if oldOK {
		if err := s.addSpent(ctx, userID, old.Category, old.Month, old.Amount.Neg()); err != nil {
			return err
		}
	}
	if newOK {
		return s.addSpent(ctx, userID, cur.Category, cur.Month, cur.Amount)
	}
	return nil
}

func (s *Service) addSpent(ctx context.Context, userID, category, month string, delta decimal.Decimal) error {
	if delta.IsZero() {
		return nil
	}
	// No category, or one budgeting another month, has nothing to maintain.
	_, err := s.budgets.AddSpent(ctx, userID, category, month, delta)
	return err
}
