package goal

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finhealth/internal/shared/apperr"
)

// Contribution is the total saved toward a goal in one month.
type Contribution struct {
	Month  string          `json:"month"`
	Amount decimal.Decimal `json:"amount"`
}

type Goal struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"targetAmount"`
	CurrentAmount decimal.Decimal `json:"currentAmount"`
	TargetDate    *string         `json:"targetDate,omitempty"`
	History       []Contribution  `json:"history"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Progress is current/target as a percentage. It is not capped at 100.
func (g *Goal) Progress() float64 {
	if !g.TargetAmount.IsPositive() {
		return 0
	}
	p, _ := g.CurrentAmount.Div(g.TargetAmount).Mul(decimal.NewFromInt(100)).Float64()
	return p
}

func (g *Goal) Completed() bool {
	return g.TargetAmount.IsPositive() && g.CurrentAmount.GreaterThanOrEqual(g.TargetAmount)
}

// CompletionRatio is current/target capped at 1.
func (g *Goal) CompletionRatio() float64 {
	if !g.TargetAmount.IsPositive() {
		return 0
	}
	r, _ := g.CurrentAmount.Div(g.TargetAmount).Float64()
	if r > 1 {
		return 1
	}
	if r < 0 {
		return 0
	}
	return r
}

type CreateParams struct {
	Name          string
	TargetAmount  decimal.Decimal
	CurrentAmount decimal.Decimal
	TargetDate    *string
}

func (p *CreateParams) Validate() error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return apperr.Validation("goal name is required")
	}
	if !p.TargetAmount.IsPositive() {
		return apperr.Validation("target amount must be greater than zero")
	}
	if p.CurrentAmount.IsNegative() {
		return apperr.Validation("current amount cannot be negative")
	}
	return validateTargetDate(p.TargetDate)
}

// UpdateParams edits a goal. Setting CurrentAmount here is an explicit
// correction and may lower the saved amount; contributions never do.
type UpdateParams struct {
	Name          *string
	TargetAmount  *decimal.Decimal
	CurrentAmount *decimal.Decimal
	TargetDate    *string
}

func (p *UpdateParams) Validate() error {
	if p.Name != nil {
		trimmed := strings.TrimSpace(*p.Name)
		if trimmed == "" {
			return apperr.Validation("goal name cannot be empty")
		}
		p.Name = &trimmed
	}
	if p.TargetAmount != nil && !p.TargetAmount.IsPositive() {
		return apperr.Validation("target amount must be greater than zero")
	}
	if p.CurrentAmount != nil && p.CurrentAmount.IsNegative() {
		return apperr.Validation("current amount cannot be negative")
	}
	return validateTargetDate(p.TargetDate)
}

type ContributeParams struct {
	Amount decimal.Decimal
	// Month defaults to the current month when empty.
	Month string
}

func (p *ContributeParams) Validate() error {
	if !p.Amount.IsPositive() {
		return apperr.Validation("contribution must be greater than zero")
	}
	if p.Month != "" {
		if _, err := time.Parse("2006-01", p.Month); err != nil {
			return apperr.Validation("month %q must be in YYYY-MM form", p.Month)
		}
	}
	return nil
}

func validateTargetDate(d *string) error {
	if d == nil || *d == "" {
		return nil
	}
	if _, err := time.Parse(time.DateOnly, *d); err != nil {
		return apperr.Validation("target date %q must be in YYYY-MM-DD form", *d)
	}
	return nil
}
