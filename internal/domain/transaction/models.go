package transaction

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finhealth/internal/shared/apperr"
)

type Direction string

const (
	DirectionIncome  Direction = "income"
	DirectionExpense Direction = "expense"
)

func (d Direction) Valid() bool {
	return d == DirectionIncome || d == DirectionExpense
}

type Origin string

const (
	OriginManual   Origin = "manual"
	OriginImported Origin = "imported"
	OriginBankSync Origin = "bank-sync"
)

func (o Origin) Valid() bool {
	return o == OriginManual || o == OriginImported || o == OriginBankSync
}

// Transaction is one ledger row. Date is the calendar date exactly as it
// was supplied (YYYY-MM-DD); it is never shifted to a timezone.
type Transaction struct {
	ID                   string          `json:"id"`
	UserID               string          `json:"userId"`
	Amount               decimal.Decimal `json:"amount"`
	Direction            Direction       `json:"direction"`
	Category             string          `json:"category"`
	SubCategory          *string         `json:"subCategory,omitempty"`
	Description          string          `json:"description"`
	Account              string          `json:"account"`
	Date                 string          `json:"date"`
	Origin               Origin          `json:"origin"`
	ExternalID           *string         `json:"externalId,omitempty"`
	PossibleDuplicate    bool            `json:"possibleDuplicate"`
	DuplicateDismissedAt *time.Time      `json:"duplicateDismissedAt,omitempty"`
	Notes                string          `json:"notes,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

// Spend is what an expense adds to budget spending: Amount under the
// Category label, in the YYYY-MM Month the expense is dated.
type Spend struct {
	Category string
	Month    string
	Amount   decimal.Decimal
}

// SpentContribution returns what this transaction adds to budget spending.
// Income contributes nothing.
func (t *Transaction) SpentContribution() (Spend, bool) {
	if t.Direction != DirectionExpense {
		return Spend{}, false
	}
	month := t.Date
	if len(month) >= 7 {
		month = month[:7]
	}
	return Spend{Category: t.Category, Month: month, Amount: t.Amount}, true
}

type CreateParams struct {
	Amount            decimal.Decimal
	Direction         Direction
	Category          string
	SubCategory       *string
	Description       string
	Account           string
	Date              string
	Origin            Origin
	ExternalID        *string
	Notes             string
	PossibleDuplicate bool
}

// maxAmount is the largest value a NUMERIC(14,2) column holds.
var maxAmount = decimal.RequireFromString("999999999999.99")

// validateAmount accepts only amounts storable without rounding.
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperr.Validation("amount must be greater than zero")
	}
	if !amount.Equal(amount.Round(2)) {
		return apperr.Validation("amount %s has more than two decimal places", amount)
	}
	if amount.GreaterThan(maxAmount) {
		return apperr.Validation("amount %s is too large", amount)
	}
	return nil
}

func (p *CreateParams) Validate() error {
	if err := validateAmount(p.Amount); err != nil {
		return err
	}
	if !p.Direction.Valid() {
		return apperr.Validation("direction must be %q or %q", DirectionIncome, DirectionExpense)
	}
	if strings.TrimSpace(p.Category) == "" {
		return apperr.Validation("category is required")
	}
	if err := ValidateDate(p.Date); err != nil {
		return err
	}
	if p.Origin == "" {
		p.Origin = OriginManual
	}
	if !p.Origin.Valid() {
		return apperr.Validation("unknown origin %q", p.Origin)
	}
	return nil
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Direction   *Direction       `json:"direction,omitempty"`
	Category    *string          `json:"category,omitempty"`
	SubCategory *string          `json:"subCategory,omitempty"`
	Description *string          `json:"description,omitempty"`
	Account     *string          `json:"account,omitempty"`
	Date        *string          `json:"date,omitempty"`
	Notes       *string          `json:"notes,omitempty"`
}

func (p *Patch) Validate() error {
	if p.Amount != nil {
		if err := validateAmount(*p.Amount); err != nil {
			return err
		}
	}
	if p.Direction != nil && !p.Direction.Valid() {
		return apperr.Validation("direction must be %q or %q", DirectionIncome, DirectionExpense)
	}
	if p.Category != nil && strings.TrimSpace(*p.Category) == "" {
		return apperr.Validation("category cannot be empty")
	}
	if p.Date != nil {
		if err := ValidateDate(*p.Date); err != nil {
			return err
		}
	}
	return nil
}

// Apply returns a copy of t with the patch applied.
func (p *Patch) Apply(t Transaction) Transaction {
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Direction != nil {
		t.Direction = *p.Direction
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.SubCategory != nil {
		sub := *p.SubCategory
		t.SubCategory = &sub
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Account != nil {
		t.Account = *p.Account
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	return t
}

// ListFilter narrows List results. Zero values mean "any"; Limit 0 means
// no limit.
type ListFilter struct {
	Category       string
	Direction      Direction
	Origin         Origin
	From           string
	To             string
	OnlyDuplicates bool
	Limit          int
	Offset         int
}
