// Package store persists small string values (the viewed-id record, user
// preferences) under fixed keys.
package store

import "context"

// Keys used by perch.
const (
	KeyViewedTransactions = "viewed_transactions"
	KeyProvider           = "provider"
	KeyUserID             = "user_id"
	KeyYNABBudgetID       = "ynab_budget_id"
)

// Store is a durable key/value store. Get reports ok=false for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
