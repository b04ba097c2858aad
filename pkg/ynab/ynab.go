// Package ynab reads spending from a YNAB budget.
package ynab

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/brunomvsouza/ynab.go"
	"github.com/brunomvsouza/ynab.go/api"
	"github.com/brunomvsouza/ynab.go/api/transaction"
	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/yurifrl/perch/pkg/credentials"
	"github.com/yurifrl/perch/pkg/models"
	"github.com/yurifrl/perch/pkg/provider"
)

// TransactionLister is the part of the YNAB transaction service perch calls.
type TransactionLister interface {
	GetTransactions(budgetID string, f *transaction.Filter) ([]*transaction.Transaction, error)
}

// Client is the YNAB provider. ynab.go has no context support, so calls run
// in a goroutine bounded by the context and the request timeout.
type Client struct {
	budgetID  string
	creds     credentials.Store
	newLister func(token string) TransactionLister
	logger    *log.Logger
	now       func() time.Time
	timeout   time.Duration
}

type Option func(*Client)

// WithLister replaces the YNAB API client, mostly for tests.
func WithLister(fn func(token string) TransactionLister) Option {
	return func(c *Client) { c.newLister = fn }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func New(creds credentials.Store, budgetID string, opts ...Option) *Client {
	c := &Client{
		budgetID: budgetID,
		creds:    creds,
		newLister: func(token string) TransactionLister {
			return ynab.NewClient(token).Transaction()
		},
		logger:  log.New(io.Discard),
		now:     time.Now,
		timeout: provider.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string {
	return provider.YNAB
}

func (c *Client) IsConfigured(context.Context) (bool, error) {
	token, err := credentials.Lookup(c.creds, credentials.YNABToken)
	return token != "" && c.budgetID != "", err
}

func (c *Client) FetchDailyTransactions(ctx context.Context) ([]models.Transaction, error) {
	return c.fetchSpending(ctx, provider.Day(c.now()))
}

func (c *Client) FetchWeeklyTransactions(ctx context.Context) ([]models.Transaction, error) {
	return c.fetchSpending(ctx, provider.Week(c.now()))
}

func (c *Client) FetchMonthlyTransactions(ctx context.Context) ([]models.Transaction, error) {
	return c.fetchSpending(ctx, provider.Month(c.now()))
}

func (c *Client) FetchYearlyTransactions(ctx context.Context) ([]models.Transaction, error) {
	return c.fetchSpending(ctx, provider.Year(c.now()))
}

func (c *Client) FetchYearlyTotal(ctx context.Context) (decimal.Decimal, error) {
	ts, err := c.FetchYearlyTransactions(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return models.Total(ts), nil
}

func (c *Client) FetchLastWeekTotal(ctx context.Context) (decimal.Decimal, error) {
	ts, err := c.fetchSpending(ctx, provider.LastWeek(c.now()))
	if err != nil {
		return decimal.Zero, err
	}
	return models.Total(ts), nil
}

func (c *Client) fetchSpending(ctx context.Context, r provider.Range) ([]models.Transaction, error) {
	records, err := c.fetchRange(ctx, r)
	if err != nil {
		return nil, err
	}
	return provider.FilterSpending(models.Normalize(records)), nil
}

func (c *Client) fetchRange(ctx context.Context, r provider.Range) ([]models.YNABRecord, error) {
	token, err := credentials.Lookup(c.creds, credentials.YNABToken)
	if err != nil {
		return nil, fmt.Errorf("failed to read ynab token: %w", err)
	}
	if token == "" || c.budgetID == "" {
		return nil, fmt.Errorf("ynab token or budget not configured: %w", provider.ErrConfigurationMissing)
	}

	since := api.Date{Time: r.Start}
	filter := &transaction.Filter{Since: &since}

	txs, err := c.list(ctx, token, filter)
	if err != nil {
		return nil, err
	}

	records := make([]models.YNABRecord, 0, len(txs))
	for _, tx := range txs {
		if tx == nil || tx.Deleted {
			continue
		}
		rec := toRecord(tx)
		if !r.Contains(rec.Date) {
			continue
		}
		records = append(records, rec)
	}
	c.logger.Debug("fetched ynab transactions", "since", r.StartDate(), "until", r.EndDate(), "count", len(records))
	return records, nil
}

func (c *Client) list(ctx context.Context, token string, filter *transaction.Filter) ([]*transaction.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type result struct {
		txs []*transaction.Transaction
		err error
	}
	done := make(chan result, 1)
	go func() {
		txs, err := c.newLister(token).GetTransactions(c.budgetID, filter)
		done <- result{txs, err}
	}()

	select {
	case <-ctx.Done():
		if provider.IsTimeout(ctx.Err()) {
			return nil, &provider.RequestError{Op: "ynab transactions", Err: fmt.Errorf("%w: %v", provider.ErrNetworkTimeout, ctx.Err())}
		}
		return nil, &provider.RequestError{Op: "ynab transactions", Err: ctx.Err()}
	case res := <-done:
		if res.err != nil {
			return nil, &provider.RequestError{Op: "ynab transactions", Err: res.err}
		}
		return res.txs, nil
	}
}

func toRecord(tx *transaction.Transaction) models.YNABRecord {
	return models.YNABRecord{
		ID:           tx.ID,
		Date:         tx.Date.Format(models.DateLayout),
		PayeeName:    deref(tx.PayeeName),
		Milliunits:   tx.Amount,
		AccountName:  tx.AccountName,
		CategoryName: deref(tx.CategoryName),
		Transfer:     tx.TransferAccountID != nil,
		Deleted:      tx.Deleted,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
