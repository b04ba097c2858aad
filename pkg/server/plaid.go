package server

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/plaid/plaid-go/v29/plaid"
)

const (
	defaultUserID  = "default-user"
	clientName     = "Perch"
	linkDays       = 90
	maxDaysRequest = 730
	otherCategory  = "OTHER"
)

// Plaid is the subset of the Plaid API the proxy needs.
type Plaid interface {
	CreateLinkToken(ctx context.Context, userID string) (LinkToken, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (Exchange, error)
	SyncTransactions(ctx context.Context, req SyncRequest) (SyncResult, error)
}

type LinkToken struct {
	LinkToken  string `json:"link_token"`
	Expiration string `json:"expiration"`
}

type Exchange struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
	RequestID   string `json:"request_id"`
}

type SyncRequest struct {
	AccessToken string `json:"access_token"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Cursor      string `json:"cursor"`
}

// Transaction is the flattened row perch clients read.
type Transaction struct {
	ID           string `json:"id"`
	Date         string `json:"date"`
	Payee        string `json:"payee"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	AccountID    string `json:"account_id"`
	CategoryName string `json:"category_name"`
}

type Account struct {
	AccountID    string `json:"account_id"`
	Name         string `json:"name"`
	OfficialName string `json:"official_name,omitempty"`
	Mask         string `json:"mask,omitempty"`
	Type         string `json:"type,omitempty"`
}

type SyncResult struct {
	Transactions []Transaction `json:"transactions"`
	Accounts     []Account     `json:"accounts"`
	HasMore      bool          `json:"has_more"`
	NextCursor   string        `json:"next_cursor"`
}

// UpstreamError is a failed Plaid call. Details is Plaid's error payload when
// it sent one.
type UpstreamError struct {
	Op      string
	Err     error
	Details any
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("plaid %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Environment maps a PLAID_ENV value onto a Plaid host.
func Environment(name string) (plaid.Environment, error) {
	switch strings.ToLower(name) {
	case "", "sandbox":
		return plaid.Sandbox, nil
	case "production":
		return plaid.Production, nil
	default:
		return "", fmt.Errorf("unknown plaid environment %q", name)
	}
}

// PlaidAPI calls Plaid with the proxy's client credentials.
type PlaidAPI struct {
	client *plaid.APIClient
}

func NewPlaidAPI(clientID, secret, env string) (*PlaidAPI, error) {
	host, err := Environment(env)
	if err != nil {
		return nil, err
	}
	cfg := plaid.NewConfiguration()
	cfg.AddDefaultHeader("PLAID-CLIENT-ID", clientID)
	cfg.AddDefaultHeader("PLAID-SECRET", secret)
	cfg.UseEnvironment(host)
	return &PlaidAPI{client: plaid.NewAPIClient(cfg)}, nil
}

func (p *PlaidAPI) CreateLinkToken(ctx context.Context, userID string) (LinkToken, error) {
	user := plaid.LinkTokenCreateRequestUser{ClientUserId: userID}
	req := plaid.NewLinkTokenCreateRequest(clientName, "en", []plaid.CountryCode{plaid.COUNTRYCODE_US}, user)
	req.SetProducts([]plaid.Products{plaid.PRODUCTS_TRANSACTIONS})
	tx := plaid.NewLinkTokenTransactions()
	tx.SetDaysRequested(linkDays)
	req.SetTransactions(*tx)

	resp, _, err := p.client.PlaidApi.LinkTokenCreate(ctx).LinkTokenCreateRequest(*req).Execute()
	if err != nil {
		return LinkToken{}, upstream("link token create", err)
	}
	return LinkToken{
		LinkToken:  resp.GetLinkToken(),
		Expiration: resp.GetExpiration().Format(time.RFC3339),
	}, nil
}

func (p *PlaidAPI) ExchangePublicToken(ctx context.Context, publicToken string) (Exchange, error) {
	req := plaid.NewItemPublicTokenExchangeRequest(publicToken)
	resp, _, err := p.client.PlaidApi.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(*req).Execute()
	if err != nil {
		return Exchange{}, upstream("item public token exchange", err)
	}
	return Exchange{
		AccessToken: resp.GetAccessToken(),
		ItemID:      resp.GetItemId(),
		RequestID:   resp.GetRequestId(),
	}, nil
}

func (p *PlaidAPI) SyncTransactions(ctx context.Context, in SyncRequest) (SyncResult, error) {
	req := plaid.NewTransactionsSyncRequest(in.AccessToken)
	if in.Cursor != "" {
		req.SetCursor(in.Cursor)
	}
	if days, ok := DaysRequested(in.StartDate, in.EndDate); ok {
		opts := plaid.TransactionsSyncRequestOptions{}
		opts.SetDaysRequested(days)
		req.SetOptions(opts)
	}

	resp, _, err := p.client.PlaidApi.TransactionsSync(ctx).TransactionsSyncRequest(*req).Execute()
	if err != nil {
		return SyncResult{}, upstream("transactions sync", err)
	}

	out := SyncResult{
		Transactions: make([]Transaction, 0, len(resp.GetAdded())),
		Accounts:     make([]Account, 0, len(resp.GetAccounts())),
		HasMore:      resp.GetHasMore(),
		NextCursor:   resp.GetNextCursor(),
	}
	for _, t := range resp.GetAdded() {
		out.Transactions = append(out.Transactions, flatten(t))
	}
	for _, a := range resp.GetAccounts() {
		out.Accounts = append(out.Accounts, Account{
			AccountID:    a.GetAccountId(),
			Name:         a.GetName(),
			OfficialName: a.GetOfficialName(),
			Mask:         a.GetMask(),
			Type:         string(a.GetType()),
		})
	}
	return out, nil
}

func flatten(t plaid.Transaction) Transaction {
	payee := t.GetMerchantName()
	if payee == "" {
		payee = t.GetName()
	}
	currency := t.GetIsoCurrencyCode()
	if currency == "" {
		currency = "USD"
	}
	category := otherCategory
	if pfc, ok := t.GetPersonalFinanceCategoryOk(); ok && pfc != nil && pfc.GetPrimary() != "" {
		category = pfc.GetPrimary()
	}
	return Transaction{
		ID:           t.GetTransactionId(),
		Date:         t.GetDate(),
		Payee:        payee,
		Amount:       fmt.Sprintf("%.2f", math.Abs(t.GetAmount())),
		Currency:     currency,
		AccountID:    t.GetAccountId(),
		CategoryName: category,
	}
}

// DaysRequested is the whole number of days between start and end, clamped to
// what Plaid accepts. It is false unless both dates parse.
func DaysRequested(start, end string) (int32, bool) {
	s, err := time.Parse(time.DateOnly, start)
	if err != nil {
		return 0, false
	}
	e, err := time.Parse(time.DateOnly, end)
	if err != nil {
		return 0, false
	}
	days := int32(math.Ceil(e.Sub(s).Hours() / 24))
	return min(max(days, 1), maxDaysRequest), true
}

func upstream(op string, err error) error {
	ue := &UpstreamError{Op: op, Err: err}
	if perr, convErr := plaid.ToPlaidError(err); convErr == nil {
		ue.Details = perr
	}
	return ue
}
