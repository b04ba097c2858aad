package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yurifrl/perch/pkg/models"
)

// Filters narrows a transaction list. Zero values match everything.
type Filters struct {
	StartDate string
	EndDate   string
	MinAmount float64
	MaxAmount float64
	Payee     string
}

// Matcher compiles f, validating its dates.
func (f Filters) Matcher() (func(models.Transaction) bool, error) {
	var start, end time.Time
	var err error
	if f.StartDate != "" {
		if start, err = time.Parse(models.DateLayout, f.StartDate); err != nil {
			return nil, fmt.Errorf("invalid start date %q: %w", f.StartDate, err)
		}
	}
	if f.EndDate != "" {
		if end, err = time.Parse(models.DateLayout, f.EndDate); err != nil {
			return nil, fmt.Errorf("invalid end date %q: %w", f.EndDate, err)
		}
	}
	minAmount := decimal.NewFromFloat(f.MinAmount)
	maxAmount := decimal.NewFromFloat(f.MaxAmount)
	payee := strings.ToLower(f.Payee)

	return func(t models.Transaction) bool {
		if !start.IsZero() || !end.IsZero() {
			date, ok := t.Time()
			if !ok {
				return false
			}
			if !start.IsZero() && date.Before(start) {
				return false
			}
			if !end.IsZero() && date.After(end) {
				return false
			}
		}
		if f.MinAmount != 0 && t.Amount.LessThan(minAmount) {
			return false
		}
		if f.MaxAmount != 0 && t.Amount.GreaterThan(maxAmount) {
			return false
		}
		if payee != "" && !strings.Contains(strings.ToLower(t.Payee), payee) {
			return false
		}
		return true
	}, nil
}

// Apply keeps the transactions matching f.
func (f Filters) Apply(ts []models.Transaction) ([]models.Transaction, error) {
	match, err := f.Matcher()
	if err != nil {
		return nil, err
	}
	out := make([]models.Transaction, 0, len(ts))
	for _, t := range ts {
		if match(t) {
			out = append(out, t)
		}
	}
	return out, nil
}
