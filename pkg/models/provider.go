package models

import (
	"github.com/shopspring/decimal"
)

// ProviderTransaction is a raw record as one provider shapes it. Each variant
// knows how to become a canonical Transaction.
type ProviderTransaction interface {
	Normalize() Transaction
	isProviderTransaction()
}

// LunchMoneyRecord is a transaction as returned by the LunchMoney API.
type LunchMoneyRecord struct {
	ID                 FlexString `json:"id"`
	Date               string     `json:"date"`
	Payee              string     `json:"payee"`
	Amount             FlexString `json:"amount"`
	Currency           string     `json:"currency"`
	PlaidAccountName   string     `json:"plaid_account_name"`
	AssetName          string     `json:"asset_name"`
	AccountDisplayName string     `json:"account_display_name"`
	CategoryName       string     `json:"category_name"`
	ExcludeFromTotals  bool       `json:"exclude_from_totals"`
	ExcludeFromBudget  bool       `json:"exclude_from_budget"`
	IsGroup            bool       `json:"is_group"`
	GroupID            FlexString `json:"group_id"`
}

func (LunchMoneyRecord) isProviderTransaction() {}

func (r LunchMoneyRecord) Normalize() Transaction {
	return Transaction{
		ID:                r.ID.String(),
		Date:              r.Date,
		Payee:             r.Payee,
		Amount:            ParseAmount(r.Amount.String()),
		Currency:          r.Currency,
		Account:           firstNonEmpty(r.PlaidAccountName, r.AssetName, r.AccountDisplayName),
		Category:          r.CategoryName,
		ExcludeFromTotals: r.ExcludeFromTotals,
		IsGroup:           r.IsGroup,
		GroupID:           r.GroupID.String(),
	}
}

// PlaidRecord is a transaction as returned by the bank-aggregation proxy.
// AccountDisplayName is filled in by the client from the accounts list.
type PlaidRecord struct {
	ID                 FlexString `json:"id"`
	Date               string     `json:"date"`
	Payee              string     `json:"payee"`
	Amount             FlexString `json:"amount"`
	Currency           string     `json:"currency"`
	AccountID          string     `json:"account_id"`
	CategoryName       string     `json:"category_name"`
	AccountDisplayName string     `json:"account_display_name,omitempty"`
}

func (PlaidRecord) isProviderTransaction() {}

func (r PlaidRecord) Normalize() Transaction {
	return Transaction{
		ID:       r.ID.String(),
		Date:     r.Date,
		Payee:    r.Payee,
		Amount:   ParseAmount(r.Amount.String()),
		Currency: r.Currency,
		Account:  r.AccountDisplayName,
		Category: r.CategoryName,
	}
}

// YNABRecord is a transaction from the YNAB API. Amounts are milliunits with
// outflows negative.
type YNABRecord struct {
	ID           string
	Date         string
	PayeeName    string
	Milliunits   int64
	AccountName  string
	CategoryName string
	Transfer     bool
	Deleted      bool
}

func (YNABRecord) isProviderTransaction() {}

// Normalize flips the sign so spending is positive, matching the other providers.
func (r YNABRecord) Normalize() Transaction {
	return Transaction{
		ID:                r.ID,
		Date:              r.Date,
		Payee:             r.PayeeName,
		Amount:            decimal.New(-r.Milliunits, -3),
		Currency:          "",
		Account:           r.AccountName,
		Category:          r.CategoryName,
		ExcludeFromTotals: r.Transfer,
	}
}

// Normalize converts a batch of provider records.
func Normalize[T ProviderTransaction](records []T) []Transaction {
	out := make([]Transaction, 0, len(records))
	for _, r := range records {
		out = append(out, r.Normalize())
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
