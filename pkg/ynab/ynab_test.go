package ynab

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brunomvsouza/ynab.go/api"
	"github.com/brunomvsouza/ynab.go/api/transaction"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yurifrl/perch/pkg/credentials"
	"github.com/yurifrl/perch/pkg/models"
	"github.com/yurifrl/perch/pkg/provider"
)

var fixedNow = time.Date(2025, time.March, 12, 10, 0, 0, 0, time.UTC)

type fakeLister struct {
	txs    []*transaction.Transaction
	err    error
	delay  time.Duration
	since  []string
	tokens []string
}

func (f *fakeLister) GetTransactions(budgetID string, filter *transaction.Filter) ([]*transaction.Transaction, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.since = append(f.since, filter.Since.Format(models.DateLayout))
	return f.txs, f.err
}

func strPtr(s string) *string { return &s }

func ynabTx(id, date string, milliunits int64, payee string) *transaction.Transaction {
	d, _ := time.Parse(models.DateLayout, date)
	return &transaction.Transaction{
		ID:          id,
		Date:        api.Date{Time: d},
		Amount:      milliunits,
		PayeeName:   strPtr(payee),
		AccountName: "Checking",
	}
}

func newTestClient(t *testing.T, lister *fakeLister, opts ...Option) *Client {
	creds := credentials.NewMemory()
	require.NoError(t, creds.Set(credentials.YNABToken, "ynab-token"))

	opts = append([]Option{
		WithLister(func(token string) TransactionLister {
			lister.tokens = append(lister.tokens, token)
			return lister
		}),
		WithClock(func() time.Time { return fixedNow }),
	}, opts...)
	return New(creds, "budget-1", opts...)
}

func TestFetchWeekly(t *testing.T) {
	transfer := ynabTx("transfer", "2025-03-10", -50000, "Savings")
	transfer.TransferAccountID = strPtr("acc-2")
	deleted := ynabTx("deleted", "2025-03-10", -1000, "Gone")
	deleted.Deleted = true
	rent := ynabTx("rent", "2025-03-11", -900000, "Landlord")
	rent.CategoryName = strPtr("Rent")
	salary := ynabTx("salary", "2025-03-11", 3000000, "Employer")

	lister := &fakeLister{txs: []*transaction.Transaction{
		ynabTx("coffee", "2025-03-10", -4500, "Cafe"),
		rent, salary, transfer, deleted,
		ynabTx("future", "2025-03-20", -1000, "Later"),
	}}
	c := newTestClient(t, lister)

	ts, err := c.FetchWeeklyTransactions(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"rent", "coffee"}, models.IDs(ts))
	assert.True(t, ts[1].Amount.Equal(decimal.RequireFromString("4.5")))
	assert.Equal(t, []string{"2025-03-09"}, lister.since)
	assert.Equal(t, []string{"ynab-token"}, lister.tokens)
}

func TestYearlyTotal(t *testing.T) {
	lister := &fakeLister{txs: []*transaction.Transaction{
		ynabTx("a", "2025-01-02", -1000, "A"),
		ynabTx("b", "2025-03-01", -2500, "B"),
	}}
	c := newTestClient(t, lister)

	total, err := c.FetchYearlyTotal(context.Background())
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("3.5")))
	assert.Equal(t, []string{"2025-01-01"}, lister.since)
}

func TestAPIErrorIsNetworkKind(t *testing.T) {
	c := newTestClient(t, &fakeLister{err: errors.New("401 unauthorized")})

	_, err := c.FetchDailyTransactions(context.Background())
	assert.Equal(t, provider.KindNetwork, provider.Kind(err))
}

func TestTimeout(t *testing.T) {
	c := newTestClient(t, &fakeLister{delay: 200 * time.Millisecond}, WithTimeout(20*time.Millisecond))

	_, err := c.FetchDailyTransactions(context.Background())
	assert.ErrorIs(t, err, provider.ErrNetworkTimeout)
}

func TestNotConfigured(t *testing.T) {
	c := New(credentials.NewMemory(), "")

	ok, err := c.IsConfigured(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.FetchMonthlyTransactions(context.Background())
	assert.ErrorIs(t, err, provider.ErrConfigurationMissing)
}

func TestImplementsProvider(t *testing.T) {
	var _ provider.Provider = New(credentials.NewMemory(), "b")
}
