// Package provider defines the surface every finance data source implements
// and the pieces they share: date windows, the spending filter and error kinds.
package provider

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/yurifrl/perch/pkg/models"
)

// Names of the supported providers.
const (
	LunchMoney = "lunchmoney"
	Plaid      = "plaid"
	YNAB       = "ynab"
)

// Provider fetches transactions and rollup totals for fixed calendar windows.
type Provider interface {
	Name() string

	FetchDailyTransactions(ctx context.Context) ([]models.Transaction, error)
	FetchWeeklyTransactions(ctx context.Context) ([]models.Transaction, error)
	FetchMonthlyTransactions(ctx context.Context) ([]models.Transaction, error)
	FetchYearlyTransactions(ctx context.Context) ([]models.Transaction, error)
	FetchYearlyTotal(ctx context.Context) (decimal.Decimal, error)
	FetchLastWeekTotal(ctx context.Context) (decimal.Decimal, error)

	// IsConfigured reports whether the credential the provider needs exists.
	IsConfigured(ctx context.Context) (bool, error)
}
