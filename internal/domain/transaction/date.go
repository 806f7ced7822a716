package transaction

import (
	"cloud.google.com/go/civil"

	"finhealth/internal/shared/apperr"
)

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (civil.Date, error) {
	d, err := civil.ParseDate(s)
	if err != nil || !d.IsValid() {
		return civil.Date{}, apperr.Validation("date %q must be a calendar date in YYYY-MM-DD form", s)
	}
	return d, nil
}

func ValidateDate(s string) error {
	_, err := ParseDate(s)
	return err
}

// DuplicateWindow returns the inclusive date bounds searched for duplicates
// of a transaction dated s.
func DuplicateWindow(s string) (from, to string, err error) {
	d, err := ParseDate(s)
	if err != nil {
		return "", "", err
	}
	return d.AddDays(-1).String(), d.AddDays(1).String(), nil
}

// MonthOf returns the YYYY-MM month a date belongs to.
func MonthOf(d civil.Date) string {
	return d.String()[:7]
}

// MonthBounds returns the first and last day of the month containing d.
func MonthBounds(d civil.Date) (civil.Date, civil.Date) {
	first := civil.Date{Year: d.Year, Month: d.Month, Day: 1}
	next := civil.Date{Year: d.Year, Month: d.Month + 1, Day: 1}
	if d.Month == 12 {
		next = civil.Date{Year: d.Year + 1, Month: 1, Day: 1}
	}
	return first, next.AddDays(-1)
}
