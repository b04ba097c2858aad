// Package session drives what the user sees: the transactions of the active
// mode, rollup totals for every window and which rows are new since last view.
//
// A load awaits the mode's primary fetch and fires the other windows' totals
// in the background. Every load takes a generation number; results from a
// superseded generation still fill the cache but never replace a newer list
// or a newer cache entry. Concurrent non-forced loads of one mode share a
// single fetch.
package session

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/yurifrl/perch/pkg/models"
	"github.com/yurifrl/perch/pkg/provider"
)

const (
	DefaultCacheTTL = 30 * time.Second
	DefaultDwell    = 3 * time.Second
)

var configurationMessages = map[string]string{
	provider.LunchMoney: "Please configure your LunchMoney API key in Settings",
	provider.Plaid:      "Please connect your bank account in Settings",
	provider.YNAB:       "Please configure your YNAB token in Settings",
}

// ViewedTracker is the persisted set of ids the user has already seen.
type ViewedTracker interface {
	Initialize(ctx context.Context) error
	IsViewed(id string) bool
	MarkAsViewed(ctx context.Context, ids []string) error
}

type cacheEntry struct {
	transactions []models.Transaction
	fetchedAt    time.Time
	gen          uint64
}

type rollup struct {
	field totalField
	fetch func(ctx context.Context) (decimal.Decimal, error)
}

// Session is safe for concurrent use.
type Session struct {
	provider provider.Provider
	viewed   ViewedTracker
	logger   *log.Logger
	ttl      time.Duration
	dwell    time.Duration
	now      func() time.Time
	onChange func(Snapshot)

	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup
	flight   singleflight.Group

	mu           sync.Mutex
	mode         Mode
	transactions []models.Transaction
	newIDs       map[string]struct{}
	totals       [fieldCount]decimal.Decimal
	totalGen     [fieldCount]uint64
	cache        map[Mode]cacheEntry
	loading      bool
	settled      bool
	errMsg       string
	lastErr      provider.ErrorKind
	generation   uint64
	loadingGen   uint64
	cancelRollup context.CancelFunc
	dwellTimer   *time.Timer
	dwellSeq     uint64
	closed       bool
}

type Option func(*Session)

func WithLogger(l *log.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithCacheTTL sets how long a fetched mode is served from memory.
func WithCacheTTL(d time.Duration) Option {
	return func(s *Session) { s.ttl = d }
}

// WithDwell sets how long new rows stay new before they are marked viewed.
func WithDwell(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.dwell = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithMode sets the initial mode. Day is the default.
func WithMode(m Mode) Option {
	return func(s *Session) { s.mode = m }
}

// WithOnChange registers a callback invoked with a fresh snapshot after every
// visible change. It may be called from several goroutines.
func WithOnChange(fn func(Snapshot)) Option {
	return func(s *Session) { s.onChange = fn }
}

func New(p provider.Provider, viewed ViewedTracker, opts ...Option) *Session {
	s := &Session{
		provider: p,
		viewed:   viewed,
		logger:   log.New(io.Discard),
		ttl:      DefaultCacheTTL,
		dwell:    DefaultDwell,
		now:      time.Now,
		mode:     Day,
		newIDs:   make(map[string]struct{}),
		cache:    make(map[Mode]cacheEntry),
	}
	for i := range s.totals {
		s.totals[i] = decimal.Zero
	}
	for _, opt := range opts {
		opt(s)
	}
	s.bgCtx, s.bgCancel = context.WithCancel(context.Background())
	return s
}

// Initialize loads the viewed-id set, then the current mode.
func (s *Session) Initialize(ctx context.Context) error {
	if err := s.viewed.Initialize(ctx); err != nil {
		s.logger.Warn("failed to load viewed transactions", "err", err)
	}
	return s.LoadTransactions(ctx, s.Mode(), false)
}

// Mode is the current mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SwitchMode makes mode current, cancels any pending viewed-marking and loads
// it, preferring the cache.
func (s *Session) SwitchMode(ctx context.Context, mode Mode) error {
	s.mu.Lock()
	if s.mode != mode {
		s.logger.Debug("switching mode", "from", s.mode, "to", mode)
		s.mode = mode
		s.stopDwellLocked()
	}
	s.mu.Unlock()
	s.notify()

	return s.LoadTransactions(ctx, mode, false)
}

// Refresh reloads the current mode from the network.
func (s *Session) Refresh(ctx context.Context) error {
	return s.LoadTransactions(ctx, s.Mode(), true)
}

// LoadTransactions shows mode's transactions. A cache entry younger than the
// TTL is used unless force is set. Otherwise the primary fetch is awaited and
// the other windows' totals are fetched in the background.
//
// A failed primary fetch keeps the current list. A missing credential puts the
// session in the Error state; other failures are logged and returned.
func (s *Session) LoadTransactions(ctx context.Context, mode Mode, force bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.generation++
	gen := s.generation

	if entry, ok := s.cache[mode]; ok && !force && s.now().Sub(entry.fetchedAt) < s.ttl {
		s.logger.Debug("serving from cache", "mode", mode, "age", s.now().Sub(entry.fetchedAt))
		s.applyLocked(gen, mode, entry.transactions)
		s.mu.Unlock()
		s.notify()
		return nil
	}

	s.loadingGen = gen
	s.loading = true
	rollupCtx := s.restartRollupsLocked()
	s.mu.Unlock()
	s.notify()

	s.startRollups(rollupCtx, gen, mode)

	started := s.now()
	ts, err := s.fetchShared(ctx, mode, force)

	s.mu.Lock()
	if err == nil && gen >= s.cache[mode].gen {
		s.cache[mode] = cacheEntry{transactions: ts, fetchedAt: s.now(), gen: gen}
	}
	if gen == s.loadingGen {
		s.loading = false
		s.settled = true
	}
	if gen != s.generation {
		s.mu.Unlock()
		s.logger.Debug("discarding superseded load", "mode", mode, "generation", gen)
		s.notify()
		return err
	}

	if err != nil {
		s.failLocked(mode, err)
		s.mu.Unlock()
		s.notify()
		return err
	}

	s.errMsg = ""
	s.lastErr = provider.KindNone
	s.applyLocked(gen, mode, ts)
	s.mu.Unlock()

	s.logger.Debug("loaded transactions", "mode", mode, "count", len(ts), "took", s.now().Sub(started))
	s.notify()
	return nil
}

// Snapshot returns a copy of the visible state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	states := make([]models.TransactionState, 0, len(s.transactions))
	for _, t := range s.transactions {
		_, isNew := s.newIDs[t.ID]
		states = append(states, models.TransactionState{Transaction: t, IsNew: isNew})
	}

	ids := make([]string, 0, len(s.newIDs))
	for id := range s.newIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return Snapshot{
		Mode:         s.mode,
		State:        s.stateLocked(),
		Loading:      s.loading,
		ErrorMessage: s.errMsg,
		LastError:    s.lastErr,
		Transactions: states,
		NewIDs:       ids,
		Totals: Totals{
			Day:      s.totals[fieldDay],
			Week:     s.totals[fieldWeek],
			Month:    s.totals[fieldMonth],
			Year:     s.totals[fieldYear],
			LastWeek: s.totals[fieldLastWeek],
		},
	}
}

// Wait blocks until the background totals started so far have finished.
func (s *Session) Wait() {
	s.bg.Wait()
}

// Close stops the dwell timer and cancels background totals.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.stopDwellLocked()
	s.mu.Unlock()

	s.bgCancel()
	s.bg.Wait()
}

func (s *Session) stateLocked() State {
	switch {
	case s.loading:
		return Loading
	case s.errMsg != "":
		return Error
	case s.settled:
		return Ready
	default:
		return Idle
	}
}

// applyLocked replaces the visible list with ts and recomputes the primary
// total and the new-id set.
func (s *Session) applyLocked(gen uint64, mode Mode, ts []models.Transaction) {
	s.transactions = ts
	s.settled = true
	s.setTotalLocked(gen, primaryField(mode), models.Total(ts))

	s.newIDs = make(map[string]struct{})
	for _, t := range ts {
		if !s.viewed.IsViewed(t.ID) {
			s.newIDs[t.ID] = struct{}{}
		}
	}
	s.scheduleDwellLocked()
}

func (s *Session) failLocked(mode Mode, err error) {
	kind := provider.Kind(err)
	s.lastErr = kind

	switch kind {
	case provider.KindConfigurationMissing, provider.KindUnauthenticated:
		s.errMsg = configurationMessages[s.provider.Name()]
		if s.errMsg == "" {
			s.errMsg = "Please configure your API keys in Settings"
		}
		s.logger.Warn("provider not configured", "provider", s.provider.Name(), "mode", mode, "err", err)
	default:
		s.errMsg = ""
		s.logger.Error("failed to fetch transactions", "provider", s.provider.Name(), "mode", mode, "kind", kind, "err", err)
	}
}

// setTotalLocked writes a total unless a newer generation already wrote it.
func (s *Session) setTotalLocked(gen uint64, f totalField, v decimal.Decimal) {
	if gen < s.totalGen[f] {
		return
	}
	s.totalGen[f] = gen
	s.totals[f] = v
}

// fetchShared joins an in-flight non-forced fetch of mode, if any. Forced
// loads always go to the network.
func (s *Session) fetchShared(ctx context.Context, mode Mode, force bool) ([]models.Transaction, error) {
	if force {
		return s.fetchPrimary(ctx, mode)
	}
	v, err, shared := s.flight.Do(mode.String(), func() (any, error) {
		return s.fetchPrimary(ctx, mode)
	})
	if shared {
		s.logger.Debug("joined in-flight fetch", "mode", mode)
	}
	ts, _ := v.([]models.Transaction)
	return ts, err
}

func (s *Session) fetchPrimary(ctx context.Context, mode Mode) ([]models.Transaction, error) {
	switch mode {
	case Week:
		return s.provider.FetchWeeklyTransactions(ctx)
	case Month:
		return s.provider.FetchMonthlyTransactions(ctx)
	case Year:
		return s.provider.FetchYearlyTransactions(ctx)
	default:
		return s.provider.FetchDailyTransactions(ctx)
	}
}

func (s *Session) rollupsFor(mode Mode) []rollup {
	sum := func(fetch func(context.Context) ([]models.Transaction, error)) func(context.Context) (decimal.Decimal, error) {
		return func(ctx context.Context) (decimal.Decimal, error) {
			ts, err := fetch(ctx)
			if err != nil {
				return decimal.Zero, err
			}
			return models.Total(ts), nil
		}
	}
	week := rollup{fieldWeek, sum(s.provider.FetchWeeklyTransactions)}
	month := rollup{fieldMonth, sum(s.provider.FetchMonthlyTransactions)}
	year := rollup{fieldYear, s.provider.FetchYearlyTotal}
	lastWeek := rollup{fieldLastWeek, s.provider.FetchLastWeekTotal}

	switch mode {
	case Day:
		return []rollup{week, month, year}
	case Week:
		return []rollup{month, year, lastWeek}
	case Month:
		return []rollup{year}
	default:
		return nil
	}
}

// restartRollupsLocked cancels the previous network load's background totals
// and returns the context for the next set.
func (s *Session) restartRollupsLocked() context.Context {
	if s.cancelRollup != nil {
		s.cancelRollup()
	}
	ctx, cancel := context.WithCancel(s.bgCtx)
	s.cancelRollup = cancel
	return ctx
}

func (s *Session) startRollups(ctx context.Context, gen uint64, mode Mode) {
	for _, r := range s.rollupsFor(mode) {
		s.bg.Add(1)
		go func() {
			defer s.bg.Done()

			v, err := r.fetch(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Warn("failed to fetch total", "total", r.field, "err", err)
				}
				return
			}

			s.mu.Lock()
			if s.closed || ctx.Err() != nil {
				s.mu.Unlock()
				return
			}
			s.setTotalLocked(gen, r.field, v)
			s.mu.Unlock()
			s.notify()
		}()
	}
}

func (s *Session) stopDwellLocked() {
	if s.dwellTimer != nil {
		s.dwellTimer.Stop()
		s.dwellTimer = nil
	}
	s.dwellSeq++
}

// scheduleDwellLocked restarts the timer that marks the current new ids as
// viewed.
func (s *Session) scheduleDwellLocked() {
	s.stopDwellLocked()
	if len(s.newIDs) == 0 || s.closed {
		return
	}

	seq := s.dwellSeq
	ids := make([]string, 0, len(s.newIDs))
	for id := range s.newIDs {
		ids = append(ids, id)
	}
	s.dwellTimer = time.AfterFunc(s.dwell, func() { s.markViewed(seq, ids) })
}

func (s *Session) markViewed(seq uint64, ids []string) {
	s.mu.Lock()
	if seq != s.dwellSeq || s.closed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if err := s.viewed.MarkAsViewed(s.bgCtx, ids); err != nil {
		s.logger.Warn("failed to mark transactions viewed", "count", len(ids), "err", err)
		return
	}

	s.mu.Lock()
	if seq != s.dwellSeq {
		s.mu.Unlock()
		return
	}
	s.newIDs = make(map[string]struct{})
	s.dwellTimer = nil
	s.mu.Unlock()

	s.logger.Debug("marked transactions viewed", "count", len(ids))
	s.notify()
}

func (s *Session) notify() {
	if s.onChange == nil {
		return
	}
	s.onChange(s.Snapshot())
}
