// Package viewed remembers which transactions the user has already seen.
package viewed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/yurifrl/perch/pkg/store"
)

// DefaultCapacity bounds the persisted record.
const DefaultCapacity = 1000

// Tracker is a bounded, insertion-ordered set of viewed transaction ids
// persisted as a JSON array under store.KeyViewedTransactions.
type Tracker struct {
	store    store.Store
	logger   *log.Logger
	capacity int

	// saveMu is taken before mu so writes reach the store in the order their
	// payloads were built.
	saveMu      sync.Mutex
	mu          sync.Mutex
	ids         map[string]struct{}
	order       []string
	initialized bool
}

type Option func(*Tracker)

// WithCapacity overrides DefaultCapacity.
func WithCapacity(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.capacity = n
		}
	}
}

func New(s store.Store, logger *log.Logger, opts ...Option) *Tracker {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	t := &Tracker{
		store:    s,
		logger:   logger,
		capacity: DefaultCapacity,
		ids:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Initialize loads the persisted record once. Later calls are no-ops. A load
// failure leaves the tracker initialized and empty, and is returned.
func (t *Tracker) Initialize(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.initialized {
		return nil
	}
	t.initialized = true

	raw, ok, err := t.store.Get(ctx, store.KeyViewedTransactions)
	if err != nil {
		return fmt.Errorf("failed to load viewed transactions: %w", err)
	}
	if !ok || raw == "" {
		return nil
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return fmt.Errorf("failed to decode viewed transactions: %w", err)
	}
	for _, id := range ids {
		t.add(id)
	}
	t.trim()

	t.logger.Debug("loaded viewed transactions", "count", len(t.order))
	return nil
}

// Initialized reports whether Initialize has run.
func (t *Tracker) Initialized() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.initialized
}

// IsViewed is a pure lookup; before Initialize it reports false for everything.
func (t *Tracker) IsViewed(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.ids[id]
	return ok
}

// MarkAsViewed records ids. Only the most recently added ids survive once the
// capacity is exceeded. Nothing is written unless at least one id is new.
func (t *Tracker) MarkAsViewed(ctx context.Context, ids []string) error {
	t.saveMu.Lock()
	defer t.saveMu.Unlock()

	t.mu.Lock()
	added := 0
	for _, id := range ids {
		if t.add(id) {
			added++
		}
	}
	if added == 0 {
		t.mu.Unlock()
		return nil
	}
	t.trim()
	payload, err := json.Marshal(t.order)
	t.mu.Unlock()
	if err != nil {
		return err
	}

	if err := t.store.Set(ctx, store.KeyViewedTransactions, string(payload)); err != nil {
		return fmt.Errorf("failed to save viewed transactions: %w", err)
	}
	t.logger.Debug("marked transactions viewed", "added", added)
	return nil
}

// MarkAllAsViewed is MarkAsViewed under the name the UI uses.
func (t *Tracker) MarkAllAsViewed(ctx context.Context, ids []string) error {
	return t.MarkAsViewed(ctx, ids)
}

// Clear empties the set and deletes the persisted record.
func (t *Tracker) Clear(ctx context.Context) error {
	t.saveMu.Lock()
	defer t.saveMu.Unlock()

	t.mu.Lock()
	t.ids = make(map[string]struct{})
	t.order = nil
	t.mu.Unlock()

	if err := t.store.Delete(ctx, store.KeyViewedTransactions); err != nil {
		return fmt.Errorf("failed to clear viewed transactions: %w", err)
	}
	return nil
}

// Len is the number of remembered ids.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.order)
}

// IDs returns the remembered ids, oldest first.
func (t *Tracker) IDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.order...)
}

func (t *Tracker) add(id string) bool {
	if _, ok := t.ids[id]; ok {
		return false
	}
	t.ids[id] = struct{}{}
	t.order = append(t.order, id)
	return true
}

func (t *Tracker) trim() {
	excess := len(t.order) - t.capacity
	if excess <= 0 {
		return
	}
	for _, id := range t.order[:excess] {
		delete(t.ids, id)
	}
	t.order = append([]string(nil), t.order[excess:]...)
}
