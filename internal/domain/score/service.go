package score

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"finhealth/internal/domain/budget"
	"finhealth/internal/domain/goal"
	"finhealth/internal/domain/transaction"
)

type CategoryLister interface {
	List(ctx context.Context, userID string) ([]*budget.Category, error)
}

type GoalLister interface {
	List(ctx context.Context, userID string) ([]*goal.Goal, error)
}

type TransactionLister interface {
	List(ctx context.Context, userID string, filter transaction.ListFilter) ([]*transaction.Transaction, error)
}

// Service serves cached scores and recomputes them on demand. Concurrent
// requests for the same user share one computation.
type Service struct {
	repo    Repository
	cats    CategoryLister
	goals   GoalLister
	txns    TransactionLister
	weights Weights
	group   singleflight.Group
	now     func() time.Time
	log     zerolog.Logger
}

func NewService(repo Repository, cats CategoryLister, goals GoalLister, txns TransactionLister, log zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		cats:    cats,
		goals:   goals,
		txns:    txns,
		weights: DefaultWeights,
		now:     time.Now,
		log:     log,
	}
}

// Get returns the cached score, computing and storing one when absent.
func (s *Service) Get(ctx context.Context, userID string) (*Score, error) {
	cached, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load score: %w", err)
	}
	if cached != nil {
		return cached, nil
	}
	return s.Recompute(ctx, userID)
}

// Recompute always computes a fresh score and overwrites the cached one.
func (s *Service) Recompute(ctx context.Context, userID string) (*Score, error) {
	v, err, _ := s.group.Do(userID, func() (any, error) {
		return s.compute(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Score), nil
}

func (s *Service) Invalidate(ctx context.Context, userID string) error {
	return s.repo.Invalidate(ctx, userID)
}

// maxComputeAttempts bounds how often a computation restarts because the
// user was invalidated while it ran.
const maxComputeAttempts = 3

// compute stores a score only if no Invalidate landed between reading the
// generation and saving. Otherwise the inputs are reloaded and it tries again.
func (s *Service) compute(ctx context.Context, userID string) (*Score, error) {
	for attempt := 1; ; attempt++ {
		gen, err := s.repo.Generation(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to load score generation: %w", err)
		}

		sc, err := s.build(ctx, userID)
		if err != nil {
			return nil, err
		}

		saved, err := s.repo.Save(ctx, sc, gen)
		if err != nil {
			return nil, fmt.Errorf("failed to save score: %w", err)
		}
		if saved {
			s.log.Debug().Str("user_id", userID).Int("score", sc.Value).Msg("score recomputed")
			return sc, nil
		}
		if attempt == maxComputeAttempts {
			s.log.Warn().Str("user_id", userID).Int("attempts", attempt).
				Msg("score kept changing during recompute, returning uncached result")
			return sc, nil
		}
	}
}

func (s *Service) build(ctx context.Context, userID string) (*Score, error) {
	now := s.now().UTC()
	today := civil.DateOf(now)
	first, last := transaction.MonthBounds(today)

	var in Inputs
	in.Today = today

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		in.Categories, err = s.cats.List(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		in.Goals, err = s.goals.List(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		in.Transactions, err = s.txns.List(gctx, userID, transaction.ListFilter{
			From: first.String(),
			To:   last.String(),
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load score inputs: %w", err)
	}

	factors := ComputeFactors(in)
	return &Score{
		UserID:     userID,
		Value:      Composite(factors, s.weights),
		Factors:    factors,
		ComputedAt: now,
	}, nil
}
