package models

import (
	"encoding/json"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the ISO calendar date used by every provider and for ordering.
const DateLayout = "2006-01-02"

const accountNameMaxLen = 10

var (
	amountNoise  = regexp.MustCompile(`[^0-9.\-]`)
	amountPrefix = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)`)
)

// Transaction is the canonical ledger entry every provider record is normalized into.
type Transaction struct {
	ID                string          `json:"id" yaml:"id"`
	Date              string          `json:"date" yaml:"date"`
	Payee             string          `json:"payee" yaml:"payee"`
	Amount            decimal.Decimal `json:"amount" yaml:"amount"`
	Currency          string          `json:"currency" yaml:"currency"`
	Account           string          `json:"account,omitempty" yaml:"account,omitempty"`
	Category          string          `json:"category,omitempty" yaml:"category,omitempty"`
	ExcludeFromTotals bool            `json:"exclude_from_totals,omitempty" yaml:"exclude_from_totals,omitempty"`
	IsGroup           bool            `json:"is_group,omitempty" yaml:"is_group,omitempty"`
	GroupID           string          `json:"group_id,omitempty" yaml:"group_id,omitempty"`
}

// TransactionState pairs a transaction with its "new since last view" flag.
type TransactionState struct {
	Transaction
	IsNew bool `json:"is_new" yaml:"is_new"`
}

// ParseAmount keeps digits, '.' and '-' and parses the longest numeric prefix
// of what is left. Anything unparseable is zero.
func ParseAmount(raw string) decimal.Decimal {
	clean := amountPrefix.FindString(amountNoise.ReplaceAllString(raw, ""))
	if clean == "" || clean == "-" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// AccountName returns the account label truncated for display, or "" when unknown.
func (t Transaction) AccountName() string {
	r := []rune(t.Account)
	if len(r) > accountNameMaxLen {
		return string(r[:accountNameMaxLen])
	}
	return t.Account
}

// FormattedDate renders the date as "Mon, Jan 2". Unparseable dates are returned as is.
func (t Transaction) FormattedDate() string {
	d, ok := t.Time()
	if !ok {
		return t.Date
	}
	return d.Format("Mon, Jan 2")
}

// Time parses the leading calendar date.
func (t Transaction) Time() (time.Time, bool) {
	if len(t.Date) < len(DateLayout) {
		return time.Time{}, false
	}
	d, err := time.Parse(DateLayout, t.Date[:len(DateLayout)])
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// Total sums the amounts of ts.
func Total(ts []Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range ts {
		sum = sum.Add(t.Amount)
	}
	return sum
}

// IDs returns the identifiers of ts in order.
func IDs(ts []Transaction) []string {
	ids := make([]string, 0, len(ts))
	for _, t := range ts {
		ids = append(ids, t.ID)
	}
	return ids
}

// FlexString decodes a JSON string or number into its textual form. Providers
// disagree on whether ids and amounts are quoted.
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	*s = FlexString(b)
	return nil
}

func (s FlexString) String() string {
	return string(s)
}
