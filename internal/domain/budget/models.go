package budget

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finhealth/internal/shared/apperr"
)

// Category is a user's budget line. Name is the label transactions are
// filed under and is unique per user. Period is the YYYY-MM month the budget
// applies to, or empty for a standing budget. AmountSpent always equals the
// sum of the user's expense transactions carrying that label and dated in
// Period.
type Category struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Name        string          `json:"name"`
	Budgeted    decimal.Decimal `json:"budgeted"`
	AmountSpent decimal.Decimal `json:"amountSpent"`
	Period      string          `json:"period"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Remaining is budgeted minus spent; negative when over budget.
func (c *Category) Remaining() decimal.Decimal {
	return c.Budgeted.Sub(c.AmountSpent)
}

func (c *Category) WithinBudget() bool {
	return c.AmountSpent.LessThanOrEqual(c.Budgeted)
}

// Covers reports whether expenses dated in month count toward the category.
func (c *Category) Covers(month string) bool {
	return c.Period == "" || c.Period == month
}

type CreateParams struct {
	Name     string
	Budgeted decimal.Decimal
	Period   string
}

func (p *CreateParams) Validate() error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return apperr.Validation("category name is required")
	}
	if p.Budgeted.IsNegative() {
		return apperr.Validation("budgeted amount cannot be negative")
	}
	return validatePeriod(p.Period)
}

type UpdateParams struct {
	Name     *string
	Budgeted *decimal.Decimal
	Period   *string
}

func (p *UpdateParams) Validate() error {
	if p.Name != nil {
		trimmed := strings.TrimSpace(*p.Name)
		if trimmed == "" {
			return apperr.Validation("category name cannot be empty")
		}
		p.Name = &trimmed
	}
	if p.Budgeted != nil && p.Budgeted.IsNegative() {
		return apperr.Validation("budgeted amount cannot be negative")
	}
	if p.Period != nil {
		return validatePeriod(*p.Period)
	}
	return nil
}

func validatePeriod(period string) error {
	if period == "" {
		return nil
	}
	if _, err := time.Parse("2006-01", period); err != nil {
		return apperr.Validation("period %q must be a month in YYYY-MM form", period)
	}
	return nil
}
