package session

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/yurifrl/perch/pkg/models"
	"github.com/yurifrl/perch/pkg/provider"
)

// State is the lifecycle of the session as a whole.
type State int

const (
	Idle State = iota
	Loading
	Ready
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return "error"
	}
}

// Totals are the rollup totals per window.
type Totals struct {
	Day      decimal.Decimal `json:"day" yaml:"day"`
	Week     decimal.Decimal `json:"week" yaml:"week"`
	Month    decimal.Decimal `json:"month" yaml:"month"`
	Year     decimal.Decimal `json:"year" yaml:"year"`
	LastWeek decimal.Decimal `json:"last_week" yaml:"last_week"`
}

// For returns the primary total of mode.
func (t Totals) For(m Mode) decimal.Decimal {
	switch m {
	case Week:
		return t.Week
	case Month:
		return t.Month
	case Year:
		return t.Year
	default:
		return t.Day
	}
}

// Snapshot is a consistent copy of everything the session displays.
type Snapshot struct {
	Mode         Mode                      `json:"mode" yaml:"mode"`
	State        State                     `json:"-" yaml:"-"`
	Loading      bool                      `json:"loading" yaml:"loading"`
	ErrorMessage string                    `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	LastError    provider.ErrorKind        `json:"-" yaml:"-"`
	Transactions []models.TransactionState `json:"transactions" yaml:"transactions"`
	NewIDs       []string                  `json:"new_ids" yaml:"new_ids"`
	Totals       Totals                    `json:"totals" yaml:"totals"`
}

// Raw returns the plain transactions.
func (s Snapshot) Raw() []models.Transaction {
	out := make([]models.Transaction, 0, len(s.Transactions))
	for _, ts := range s.Transactions {
		out = append(out, ts.Transaction)
	}
	return out
}

// IsNew reports whether id is in the new-id set.
func (s Snapshot) IsNew(id string) bool {
	i := sort.SearchStrings(s.NewIDs, id)
	return i < len(s.NewIDs) && s.NewIDs[i] == id
}

type totalField int

const (
	fieldDay totalField = iota
	fieldWeek
	fieldMonth
	fieldYear
	fieldLastWeek
	fieldCount
)

func (f totalField) String() string {
	return [...]string{"day", "week", "month", "year", "last_week"}[f]
}

func primaryField(m Mode) totalField {
	switch m {
	case Week:
		return fieldWeek
	case Month:
		return fieldMonth
	case Year:
		return fieldYear
	default:
		return fieldDay
	}
}
