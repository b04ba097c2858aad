package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/yurifrl/perch/pkg/config"
	"github.com/yurifrl/perch/pkg/credentials"
	"github.com/yurifrl/perch/pkg/lunchmoney"
	"github.com/yurifrl/perch/pkg/plaid"
	"github.com/yurifrl/perch/pkg/provider"
	"github.com/yurifrl/perch/pkg/session"
	"github.com/yurifrl/perch/pkg/store"
	"github.com/yurifrl/perch/pkg/viewed"
	"github.com/yurifrl/perch/pkg/ynab"
)

const keyringService = "perch"

// app is everything a command needs, built from the resolved configuration.
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	store   store.Store
	creds   credentials.Store
	tracker *viewed.Tracker

	providerName string
	closers      []func() error
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Build(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "perch",
		Level:           cfg.Level(),
	})
	if cfg.Level() == log.DebugLevel {
		logger.SetReportCaller(true)
	}
	logger.Debug("configuration loaded", "file", cfg.File, "provider", cfg.Provider, "store", cfg.Store.Driver)

	a := &app{cfg: cfg, logger: logger}

	if err := a.openStore(cmd.Context()); err != nil {
		return nil, err
	}
	a.openCredentials()
	a.tracker = viewed.New(a.store, logger.WithPrefix("viewed"))

	a.providerName = a.resolveProvider(cmd)
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.Store.Driver {
	case "memory":
		a.store = store.NewMemory()
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: a.cfg.Store.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return fmt.Errorf("failed to reach redis at %s: %w", a.cfg.Store.RedisAddr, err)
		}
		a.store = store.NewRedis(client, store.DefaultRedisPrefix)
		a.closers = append(a.closers, client.Close)
	default:
		if err := os.MkdirAll(filepath.Dir(a.cfg.Store.Path), 0o700); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
		a.store = store.NewFile(a.cfg.Store.Path)
	}
	return nil
}

func (a *app) openCredentials() {
	switch a.cfg.Credentials.Driver {
	case "memory":
		a.creds = credentials.NewMemory()
	case "file":
		a.creds = credentials.NewFile(a.cfg.Credentials.Path)
	default:
		a.creds = credentials.NewKeyring(keyringService)
	}
}

// resolveProvider prefers an explicit --provider, then the choice saved by
// `perch auth`, then the configured default.
func (a *app) resolveProvider(cmd *cobra.Command) string {
	if f := cmd.Flags().Lookup("provider"); f != nil && f.Changed {
		return a.cfg.Provider
	}
	saved, ok, err := a.store.Get(cmd.Context(), store.KeyProvider)
	if err != nil {
		a.logger.Warn("failed to read saved provider", "err", err)
		return a.cfg.Provider
	}
	switch saved {
	case provider.LunchMoney, provider.Plaid, provider.YNAB:
		return saved
	}
	if ok {
		a.logger.Warn("ignoring unknown saved provider", "provider", saved)
	}
	return a.cfg.Provider
}

func (a *app) saveProvider(ctx context.Context, name string) error {
	if err := a.store.Set(ctx, store.KeyProvider, name); err != nil {
		return fmt.Errorf("failed to save provider choice: %w", err)
	}
	a.providerName = name
	return nil
}

func (a *app) lunchMoneyClient() *lunchmoney.Client {
	return lunchmoney.New(a.creds,
		lunchmoney.WithBaseURL(a.cfg.LunchMoney.BaseURL),
		lunchmoney.WithHTTPClient(provider.NewHTTPClient(a.cfg.HTTPTimeout)),
		lunchmoney.WithLogger(a.logger.WithPrefix("lunchmoney")),
	)
}

func (a *app) plaidClient() *plaid.Client {
	return plaid.New(a.creds,
		plaid.WithBackendURL(a.cfg.Plaid.BackendURL),
		plaid.WithHTTPClient(provider.NewHTTPClient(a.cfg.HTTPTimeout)),
		plaid.WithLogger(a.logger.WithPrefix("plaid")),
	)
}

func (a *app) ynabClient(ctx context.Context) *ynab.Client {
	budgetID := a.cfg.YNAB.BudgetID
	if saved, ok, err := a.store.Get(ctx, store.KeyYNABBudgetID); err == nil && ok && saved != "" {
		budgetID = saved
	}
	return ynab.New(a.creds, budgetID,
		ynab.WithTimeout(a.cfg.HTTPTimeout),
		ynab.WithLogger(a.logger.WithPrefix("ynab")),
	)
}

func (a *app) newProvider(ctx context.Context) (provider.Provider, error) {
	switch a.providerName {
	case provider.LunchMoney:
		return a.lunchMoneyClient(), nil
	case provider.Plaid:
		return a.plaidClient(), nil
	case provider.YNAB:
		return a.ynabClient(ctx), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", a.providerName)
	}
}

func (a *app) newSession(ctx context.Context, mode session.Mode, opts ...session.Option) (*session.Session, error) {
	p, err := a.newProvider(ctx)
	if err != nil {
		return nil, err
	}
	base := []session.Option{
		session.WithLogger(a.logger.WithPrefix("session")),
		session.WithCacheTTL(a.cfg.CacheTTL),
		session.WithDwell(a.cfg.Dwell),
		session.WithMode(mode),
	}
	return session.New(p, a.tracker, append(base, opts...)...), nil
}

// userID is the stable id sent when starting a bank link. It is created on
// first use.
func (a *app) userID(ctx context.Context) (string, error) {
	id, ok, err := a.store.Get(ctx, store.KeyUserID)
	if err != nil {
		return "", fmt.Errorf("failed to read user id: %w", err)
	}
	if ok && id != "" {
		return id, nil
	}
	id = uuid.NewString()
	if err := a.store.Set(ctx, store.KeyUserID, id); err != nil {
		return "", fmt.Errorf("failed to save user id: %w", err)
	}
	a.logger.Debug("created user id", "user_id", id)
	return id, nil
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn("failed to close", "err", err)
		}
	}
}

// withApp builds the app for a command and closes it afterwards.
func withApp(fn func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(cmd, args, a)
	}
}
