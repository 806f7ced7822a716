package ledger

import (
	"context"

	"finhealth/internal/domain/goal"
)

func (s *Service) GetGoal(ctx context.Context, userID, id string) (*goal.Goal, error) {
	return s.goals.GetByID(ctx, userID, id)
}

func (s *Service) ListGoals(ctx context.Context, userID string) ([]*goal.Goal, error) {
	return s.goals.List(ctx, userID)
}

func (s *Service) CreateGoal(ctx context.Context, userID string, params goal.CreateParams) (*goal.Goal, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	var g *goal.Goal
	err := s.mutate(ctx, userID, "create goal", func(ctx context.Context) error {
		var err error
		g, err = s.goals.Create(ctx, userID, params)
		return err
	})
	return g, err
}

func (s *Service) UpdateGoal(ctx context.Context, userID, id string, params goal.UpdateParams) (*goal.Goal, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	var g *goal.Goal
	err := s.mutate(ctx, userID, "update goal", func(ctx context.Context) error {
		var err error
		g, err = s.goals.Update(ctx, userID, id, params)
		return err
	})
	return g, err
}

func (s *Service) DeleteGoal(ctx context.Context, userID, id string) error {
	return s.mutate(ctx, userID, "delete goal", func(ctx context.Context) error {
		return s.goals.Delete(ctx, userID, id)
	})
}

// Contribute adds a positive amount to a goal and to its history entry for
// the month, which defaults to the current one.
func (s *Service) Contribute(ctx context.Context, userID, id string, params goal.ContributeParams) (*goal.Goal, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	month := params.Month
	if month == "" {
		month = s.now().UTC().Format("2006-01")
	}

	var g *goal.Goal
	err := s.mutate(ctx, userID, "contribute to goal", func(ctx context.Context) error {
		var err error
		g, err = s.goals.AddContribution(ctx, userID, id, month, params.Amount)
		return err
	})
	return g, err
}
