package transaction

import (
	"strings"
	"unicode/utf8"
)

// merchantPrefixLen is how many leading characters of the description are
// compared when matching duplicates.
const merchantPrefixLen = 5

// MerchantKey normalizes a description to its comparable merchant prefix.
func MerchantKey(description string) string {
	s := strings.ToLower(strings.TrimSpace(description))
	if utf8.RuneCountInString(s) <= merchantPrefixLen {
		return s
	}
	n := 0
	for i := range s {
		if n == merchantPrefixLen {
			return s[:i]
		}
		n++
	}
	return s
}

// Matches reports whether a and b look like the same real-world payment:
// equal amounts, the same merchant prefix, dates at most one day apart.
func Matches(a, b *Transaction) bool {
	if !a.Amount.Equal(b.Amount) {
		return false
	}
	if MerchantKey(a.Description) != MerchantKey(b.Description) {
		return false
	}
	da, err := ParseDate(a.Date)
	if err != nil {
		return false
	}
	db, err := ParseDate(b.Date)
	if err != nil {
		return false
	}
	days := da.DaysSince(db)
	return days >= -1 && days <= 1
}

// FindDuplicate returns the first transaction in window that matches
// candidate, ignoring candidate itself. It never mutates its inputs.
func FindDuplicate(candidate *Transaction, window []*Transaction) *Transaction {
	for _, t := range window {
		if candidate.ID != "" && t.ID == candidate.ID {
			continue
		}
		if Matches(candidate, t) {
			return t
		}
	}
	return nil
}
