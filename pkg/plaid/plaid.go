// Package plaid reads bank transactions through the perch proxy, which holds
// the Plaid client secret and exchanges tokens on the app's behalf.
package plaid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/yurifrl/perch/pkg/credentials"
	"github.com/yurifrl/perch/pkg/models"
	"github.com/yurifrl/perch/pkg/provider"
)

const DefaultBackendURL = "http://localhost:3000/api"

const (
	DefaultUserID = "default-user"
	unknownName   = "Unknown"
	unknownAcct   = "Unknown Account"
	// bounds cursor paging on a single range fetch
	maxPages = 10
)

// LinkToken is what the proxy returns for starting Plaid Link.
type LinkToken struct {
	Token      string `json:"link_token"`
	Expiration string `json:"expiration"`
}

type account struct {
	AccountID    string `json:"account_id"`
	Name         string `json:"name"`
	OfficialName string `json:"official_name"`
}

type transactionsRequest struct {
	AccessToken string `json:"access_token"`
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
	Cursor      string `json:"cursor,omitempty"`
}

type transactionsResponse struct {
	Transactions []models.PlaidRecord `json:"transactions"`
	Accounts     []account            `json:"accounts"`
	HasMore      bool                 `json:"has_more"`
	NextCursor   string               `json:"next_cursor"`
}

// Client is the bank-aggregation provider. The access token is loaded from the
// credential store the first time it is needed and cached.
type Client struct {
	baseURL string
	http    *http.Client
	creds   credentials.Store
	logger  *log.Logger
	now     func() time.Time

	mu          sync.Mutex
	accessToken string
	accounts    map[string]string
}

type Option func(*Client)

func WithBackendURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimSuffix(u, "/")
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
		baseURL:  DefaultBackendURL,
		http:     provider.NewHTTPClient(provider.DefaultTimeout),
		creds:    creds,
		logger:   log.New(io.Discard),
		now:      time.Now,
		accounts: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string {
	return provider.Plaid
}

// CreateLinkToken asks the proxy for a Plaid Link token for userID.
func (c *Client) CreateLinkToken(ctx context.Context, userID string) (LinkToken, error) {
	if userID == "" {
		userID = DefaultUserID
	}
	var out LinkToken
	if err := c.post(ctx, "/create-link-token", map[string]string{"user_id": userID}, "create link token", &out); err != nil {
		return LinkToken{}, fmt.Errorf("failed to create link token: %w", err)
	}
	return out, nil
}

// ExchangePublicToken trades a Link public token for an access token and
// stores it together with the item id.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) error {
	var out struct {
		AccessToken string `json:"access_token"`
		ItemID      string `json:"item_id"`
	}
	if err := c.post(ctx, "/exchange-token", map[string]string{"public_token": publicToken}, "exchange token", &out); err != nil {
		return fmt.Errorf("failed to exchange token: %w", err)
	}
	if out.AccessToken == "" {
		return fmt.Errorf("failed to exchange token: proxy returned no access token")
	}

	if err := c.creds.Set(credentials.PlaidAccessToken, out.AccessToken); err != nil {
		return fmt.Errorf("failed to store access token: %w", err)
	}
	if err := c.creds.Set(credentials.PlaidItemID, out.ItemID); err != nil {
		return fmt.Errorf("failed to store item id: %w", err)
	}

	c.mu.Lock()
	c.accessToken = out.AccessToken
	c.mu.Unlock()

	c.logger.Info("bank account connected", "item_id", out.ItemID)
	return nil
}

// IsConnected reports whether an access token exists, loading it first when
// it is not in memory yet.
func (c *Client) IsConnected(context.Context) (bool, error) {
	token, err := c.token()
	return token != "", err
}

func (c *Client) IsConfigured(ctx context.Context) (bool, error) {
	return c.IsConnected(ctx)
}

// Disconnect forgets the access token, item id and account names. It is safe
// to call when nothing is connected.
func (c *Client) Disconnect(context.Context) error {
	c.mu.Lock()
	c.accessToken = ""
	c.accounts = make(map[string]string)
	c.mu.Unlock()

	return errors.Join(
		c.creds.Delete(credentials.PlaidAccessToken),
		c.creds.Delete(credentials.PlaidItemID),
	)
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

// AccountName returns the cached display name for an account id.
func (c *Client) AccountName(accountID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name, ok := c.accounts[accountID]
	return name, ok
}

func (c *Client) fetchSpending(ctx context.Context, r provider.Range) ([]models.Transaction, error) {
	ts, err := c.fetchRange(ctx, r)
	if err != nil {
		return nil, err
	}
	return provider.FilterSpending(ts), nil
}

// fetchRange pages through the proxy for r, names each row's account and
// drops rows outside r.
func (c *Client) fetchRange(ctx context.Context, r provider.Range) ([]models.Transaction, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, fmt.Errorf("no access token available: %w", provider.ErrUnauthenticated)
	}

	var records []models.PlaidRecord
	cursor := ""
	for page := 0; page < maxPages; page++ {
		var body transactionsResponse
		req := transactionsRequest{
			AccessToken: token,
			StartDate:   r.StartDate(),
			EndDate:     r.EndDate(),
			Cursor:      cursor,
		}
		if err := c.post(ctx, "/get-transactions", req, "get transactions", &body); err != nil {
			return nil, fmt.Errorf("failed to fetch transactions: %w", err)
		}

		c.rememberAccounts(body.Accounts)
		records = append(records, body.Transactions...)

		if !body.HasMore || body.NextCursor == "" || body.NextCursor == cursor {
			break
		}
		cursor = body.NextCursor
	}

	out := make([]models.Transaction, 0, len(records))
	for _, rec := range records {
		if !r.Contains(rec.Date) {
			continue
		}
		rec.AccountDisplayName = c.displayName(rec.AccountID)
		out = append(out, rec.Normalize())
	}
	return out, nil
}

func (c *Client) rememberAccounts(accounts []account) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range accounts {
		name := a.Name
		if name == "" {
			name = a.OfficialName
		}
		if name == "" {
			name = unknownName
		}
		c.accounts[a.AccountID] = name
	}
}

func (c *Client) displayName(accountID string) string {
	if name, ok := c.AccountName(accountID); ok {
		return name
	}
	return unknownAcct
}

func (c *Client) token() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" {
		return c.accessToken, nil
	}
	token, err := credentials.Lookup(c.creds, credentials.PlaidAccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to load access token: %w", err)
	}
	c.accessToken = token
	return token, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, op string, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return provider.DoJSON(c.http, req, op, out)
}
