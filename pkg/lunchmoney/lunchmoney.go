// Package lunchmoney fetches spending from the LunchMoney budgeting API.
package lunchmoney

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/yurifrl/perch/pkg/credentials"
	"github.com/yurifrl/perch/pkg/models"
	"github.com/yurifrl/perch/pkg/provider"
)

const DefaultBaseURL = "https://dev.lunchmoney.app/v1"

const (
	rangeLimit = 500
	// the API caps large ranges, so the year is fetched a month at a time
	monthLimit        = 1000
	monthFetchWorkers = 4
)

type transactionsResponse struct {
	Transactions []models.LunchMoneyRecord `json:"transactions"`
}

// Client is the LunchMoney provider. The API key is read from the credential
// store on every call so settings changes apply immediately.
type Client struct {
	baseURL string
	http    *http.Client
	creds   credentials.Store
	logger  *log.Logger
	now     func() time.Time
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func New(creds credentials.Store, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		http:    provider.NewHTTPClient(provider.DefaultTimeout),
		creds:   creds,
		logger:  log.New(io.Discard),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string {
	return provider.LunchMoney
}

func (c *Client) IsConfigured(context.Context) (bool, error) {
	key, err := credentials.Lookup(c.creds, credentials.LunchMoneyAPIKey)
	return key != "", err
}

func (c *Client) FetchDailyTransactions(ctx context.Context) ([]models.Transaction, error) {
	return c.fetchSpending(ctx, "daily", provider.Day(c.now()))
}

func (c *Client) FetchWeeklyTransactions(ctx context.Context) ([]models.Transaction, error) {
	return c.fetchSpending(ctx, "weekly", provider.Week(c.now()))
}

func (c *Client) FetchMonthlyTransactions(ctx context.Context) ([]models.Transaction, error) {
	return c.fetchSpending(ctx, "monthly", provider.Month(c.now()))
}

// FetchYearlyTransactions concatenates every month of the year so far. A month
// that fails contributes nothing unless every month fails.
func (c *Client) FetchYearlyTransactions(ctx context.Context) ([]models.Transaction, error) {
	months, err := c.fetchYearByMonth(ctx)
	if err != nil {
		return nil, err
	}

	var all []models.Transaction
	for _, m := range months {
		all = append(all, m...)
	}
	provider.SortNewestFirst(all)
	c.logger.Debug("fetched yearly transactions", "year", c.now().Year(), "count", len(all))
	return all, nil
}

// FetchYearlyTotal sums the filtered months of the year so far. Failed months
// count as zero unless every month fails.
func (c *Client) FetchYearlyTotal(ctx context.Context) (decimal.Decimal, error) {
	months, err := c.fetchYearByMonth(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, m := range months {
		total = total.Add(models.Total(m))
	}
	c.logger.Debug("yearly total", "year", c.now().Year(), "total", total.StringFixed(2))
	return total, nil
}

// FetchLastWeekTotal returns zero on failure unless the API key is missing.
func (c *Client) FetchLastWeekTotal(ctx context.Context) (decimal.Decimal, error) {
	ts, err := c.fetchSpending(ctx, "last week", provider.LastWeek(c.now()))
	if err != nil {
		if provider.Kind(err) == provider.KindConfigurationMissing {
			return decimal.Zero, err
		}
		c.logger.Warn("failed to fetch last week total", "err", err)
		return decimal.Zero, nil
	}
	return models.Total(ts), nil
}

func (c *Client) fetchSpending(ctx context.Context, label string, r provider.Range) ([]models.Transaction, error) {
	key, err := c.apiKey()
	if err != nil {
		return nil, err
	}
	ts, err := c.fetchRange(ctx, key, r, rangeLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s transactions: %w", label, err)
	}
	return provider.FilterSpending(ts), nil
}

// fetchYearByMonth returns the filtered transactions of each month so far,
// January first. It fails only when no month could be fetched.
func (c *Client) fetchYearByMonth(ctx context.Context) ([][]models.Transaction, error) {
	key, err := c.apiKey()
	if err != nil {
		return nil, err
	}

	months := provider.YearToDateMonths(c.now())
	results := make([][]models.Transaction, len(months))
	errs := make([]error, len(months))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(monthFetchWorkers)
	for i, m := range months {
		g.Go(func() error {
			ts, err := c.fetchRange(gctx, key, m, monthLimit)
			if err != nil {
				c.logger.Warn("failed to fetch month", "month", m.Start.Format("2006/01"), "err", err)
				errs[i] = err
				return nil
			}
			results[i] = provider.FilterSpending(ts)
			c.logger.Debug("fetched month", "month", m.Start.Format("2006/01"), "count", len(ts))
			return nil
		})
	}
	_ = g.Wait()

	if len(months) == 0 {
		return results, nil
	}
	for _, err := range errs {
		if err == nil {
			return results, nil
		}
	}
	return nil, fmt.Errorf("failed to fetch every month of %d: %w", c.now().Year(), errs[0])
}

func (c *Client) fetchRange(ctx context.Context, key string, r provider.Range, limit int) ([]models.Transaction, error) {
	q := url.Values{}
	q.Set("start_date", r.StartDate())
	q.Set("end_date", r.EndDate())
	q.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transactions?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", "application/json")

	var body transactionsResponse
	if err := provider.DoJSON(c.http, req, "lunchmoney transactions", &body); err != nil {
		return nil, err
	}
	return models.Normalize(body.Transactions), nil
}

func (c *Client) apiKey() (string, error) {
	key, err := credentials.Lookup(c.creds, credentials.LunchMoneyAPIKey)
	if err != nil {
		return "", fmt.Errorf("failed to read lunchmoney api key: %w", err)
	}
	if key == "" {
		return "", fmt.Errorf("lunchmoney api key not configured: %w", provider.ErrConfigurationMissing)
	}
	return key, nil
}
