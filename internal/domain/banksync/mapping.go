package banksync

import (
	"strings"

	"finhealth/internal/domain/transaction"
	"finhealth/internal/infrastructure/aggregator"
	"finhealth/internal/shared/apperr"
)

// SignConvention says which sign of an aggregator amount means money left
// the account.
type SignConvention string

const (
	OutflowPositive SignConvention = "outflow_positive"
	OutflowNegative SignConvention = "outflow_negative"
)

func ParseSignConvention(s string) (SignConvention, error) {
	switch SignConvention(s) {
	case "":
		return OutflowPositive, nil
	case OutflowPositive, OutflowNegative:
		return SignConvention(s), nil
	}
	return "", apperr.Validation("unknown sign convention %q", s)
}

const uncategorized = "Uncategorized"

// MapTransaction turns an aggregator transaction into a bank-sync ledger
// candidate. accountNames maps aggregator account ids to display names.
func MapTransaction(t aggregator.Transaction, accountNames map[string]string, conv SignConvention) (transaction.CreateParams, error) {
	if t.Amount.IsZero() {
		return transaction.CreateParams{}, apperr.Validation("transaction %s has zero amount", t.TransactionID)
	}

	outflow := t.Amount.IsPositive()
	if conv == OutflowNegative {
		outflow = !outflow
	}
	direction := transaction.DirectionIncome
	if outflow {
		direction = transaction.DirectionExpense
	}

	description := strings.TrimSpace(t.Name)
	if t.MerchantName != nil && strings.TrimSpace(*t.MerchantName) != "" {
		description = strings.TrimSpace(*t.MerchantName)
	}

	account := t.AccountID
	if name, ok := accountNames[t.AccountID]; ok && name != "" {
		account = name
	}

	category, sub := categorize(t)
	extID := t.TransactionID

	params := transaction.CreateParams{
		Amount:      t.Amount.Abs(),
		Direction:   direction,
		Category:    category,
		SubCategory: sub,
		Description: description,
		Account:     account,
		Date:        t.Date,
		Origin:      transaction.OriginBankSync,
		ExternalID:  &extID,
	}
	if err := params.Validate(); err != nil {
		return transaction.CreateParams{}, err
	}
	return params, nil
}

// categorize prefers the legacy category hierarchy, then the personal
// finance category.
func categorize(t aggregator.Transaction) (string, *string) {
	if len(t.Category) > 0 && t.Category[0] != "" {
		if len(t.Category) > 1 {
			sub := t.Category[len(t.Category)-1]
			return t.Category[0], &sub
		}
		return t.Category[0], nil
	}
	if pfc := t.PersonalFinanceCategory; pfc != nil && pfc.Primary != "" {
		primary := humanize(pfc.Primary)
		if pfc.Detailed != "" {
			detailed := humanize(strings.TrimPrefix(pfc.Detailed, pfc.Primary+"_"))
			return primary, &detailed
		}
		return primary, nil
	}
	return uncategorized, nil
}

// humanize turns FOOD_AND_DRINK into "Food and drink".
func humanize(code string) string {
	s := strings.ToLower(strings.ReplaceAll(code, "_", " "))
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
