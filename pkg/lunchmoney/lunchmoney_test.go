package lunchmoney

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yurifrl/perch/pkg/credentials"
	"github.com/yurifrl/perch/pkg/models"
	"github.com/yurifrl/perch/pkg/provider"
)

var fixedNow = time.Date(2025, time.March, 12, 10, 0, 0, 0, time.UTC)

type fakeAPI struct {
	mu       sync.Mutex
	requests []string
	// keyed by start_date
	bodies map[string]string
	fail   map[string]int
}

func (f *fakeAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions", r.URL.Path)
		assert.Equal(t, "Bearer lm-key", r.Header.Get("Authorization"))

		start := r.URL.Query().Get("start_date")
		f.mu.Lock()
		f.requests = append(f.requests, fmt.Sprintf("%s..%s/%s", start, r.URL.Query().Get("end_date"), r.URL.Query().Get("limit")))
		status, failing := f.fail[start]
		body, ok := f.bodies[start]
		f.mu.Unlock()

		if failing {
			http.Error(w, "upstream", status)
			return
		}
		if !ok {
			body = `{"transactions": []}`
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func (f *fakeAPI) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	creds := credentials.NewMemory()
	require.NoError(t, creds.Set(credentials.LunchMoneyAPIKey, "lm-key"))

	return New(creds,
		WithBaseURL(srv.URL),
		WithClock(func() time.Time { return fixedNow }),
	)
}

func TestFetchDailyTransactionsFilters(t *testing.T) {
	api := &fakeAPI{bodies: map[string]string{
		"2025-03-12": `{"transactions": [
			{"id": 1, "date": "2025-03-12", "payee": "Refund", "amount": "-5.00", "currency": "usd"},
			{"id": 2, "date": "2025-03-12", "payee": "Cafe", "amount": "4.50", "currency": "usd", "category_name": "Coffee"},
			{"id": 3, "date": "2025-03-12", "payee": "Card", "amount": "300.00", "currency": "usd", "category_name": "Payment, Thank You"},
			{"id": 4, "date": "2025-03-12", "payee": "Hidden", "amount": "1.00", "currency": "usd", "exclude_from_totals": true}
		]}`,
	}}
	c := newTestClient(t, api)

	ts, err := c.FetchDailyTransactions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, models.IDs(ts))
	assert.Equal(t, []string{"2025-03-12..2025-03-12/500"}, api.seen())
}

func TestFetchWeeklyAndMonthlyRanges(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)

	_, err := c.FetchWeeklyTransactions(context.Background())
	require.NoError(t, err)
	_, err = c.FetchMonthlyTransactions(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"2025-03-09..2025-03-15/500",
		"2025-03-01..2025-03-31/500",
	}, api.seen())
}

func TestSortedNewestFirst(t *testing.T) {
	api := &fakeAPI{bodies: map[string]string{
		"2025-03-01": `{"transactions": [
			{"id": "a", "date": "2025-03-02", "amount": "1"},
			{"id": "b", "date": "2025-03-10", "amount": "1"},
			{"id": "c", "date": "2025-03-05", "amount": "1"}
		]}`,
	}}
	c := newTestClient(t, api)

	ts, err := c.FetchMonthlyTransactions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a"}, models.IDs(ts))
}

func TestYearlyToleratesFailedMonths(t *testing.T) {
	api := &fakeAPI{
		bodies: map[string]string{
			"2025-01-01": `{"transactions": [{"id": "jan", "date": "2025-01-15", "amount": "10.00"}]}`,
			"2025-03-01": `{"transactions": [
				{"id": "mar", "date": "2025-03-02", "amount": "2.50"},
				{"id": "mar-income", "date": "2025-03-03", "amount": "1000", "category_name": "Income"}
			]}`,
		},
		fail: map[string]int{"2025-02-01": http.StatusInternalServerError},
	}
	c := newTestClient(t, api)

	ts, err := c.FetchYearlyTransactions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"mar", "jan"}, models.IDs(ts))

	total, err := c.FetchYearlyTotal(context.Background())
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("12.5")), "total = %s", total)

	assert.Contains(t, api.seen(), "2025-02-01..2025-02-28/1000")
}

func TestYearlyFailsWhenEveryMonthFails(t *testing.T) {
	api := &fakeAPI{fail: map[string]int{
		"2025-01-01": http.StatusBadGateway,
		"2025-02-01": http.StatusBadGateway,
		"2025-03-01": http.StatusBadGateway,
	}}
	c := newTestClient(t, api)

	ts, err := c.FetchYearlyTransactions(context.Background())
	require.Error(t, err)
	assert.Nil(t, ts)
	assert.Equal(t, provider.KindNetwork, provider.Kind(err))

	_, err = c.FetchYearlyTotal(context.Background())
	assert.Equal(t, provider.KindNetwork, provider.Kind(err))
}

func TestLastWeekTotal(t *testing.T) {
	api := &fakeAPI{bodies: map[string]string{
		"2025-03-02": `{"transactions": [
			{"id": "1", "date": "2025-03-03", "amount": "$1,000.25"},
			{"id": "2", "date": "2025-03-04", "amount": "0.75"}
		]}`,
	}}
	c := newTestClient(t, api)

	total, err := c.FetchLastWeekTotal(context.Background())
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("1001")))
}

func TestLastWeekTotalSwallowsServerErrors(t *testing.T) {
	api := &fakeAPI{fail: map[string]int{"2025-03-02": http.StatusBadGateway}}
	c := newTestClient(t, api)

	total, err := c.FetchLastWeekTotal(context.Background())
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}

func TestServerErrorIsNetworkKind(t *testing.T) {
	api := &fakeAPI{fail: map[string]int{"2025-03-12": http.StatusInternalServerError}}
	c := newTestClient(t, api)

	_, err := c.FetchDailyTransactions(context.Background())
	require.Error(t, err)
	assert.Equal(t, provider.KindNetwork, provider.Kind(err))
}

func TestMissingKey(t *testing.T) {
	c := New(credentials.NewMemory(), WithBaseURL("http://127.0.0.1:0"))

	ok, err := c.IsConfigured(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.FetchDailyTransactions(context.Background())
	assert.ErrorIs(t, err, provider.ErrConfigurationMissing)

	_, err = c.FetchYearlyTransactions(context.Background())
	assert.ErrorIs(t, err, provider.ErrConfigurationMissing)

	_, err = c.FetchYearlyTotal(context.Background())
	assert.ErrorIs(t, err, provider.ErrConfigurationMissing)

	_, err = c.FetchLastWeekTotal(context.Background())
	assert.ErrorIs(t, err, provider.ErrConfigurationMissing)
}

func TestImplementsProvider(t *testing.T) {
	var _ provider.Provider = New(credentials.NewMemory())
}
