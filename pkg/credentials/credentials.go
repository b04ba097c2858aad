// Package credentials holds provider secrets: API keys and access tokens.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zalando/go-keyring"

	"github.com/yurifrl/perch/pkg/provider"
	"github.com/yurifrl/perch/pkg/store"
)

// Secret names.
const (
	LunchMoneyAPIKey = "lunch_money_api_key"
	PlaidAccessToken = "plaid_access_token"
	PlaidItemID      = "plaid_item_id"
	YNABToken        = "ynab_token"
)

// ErrNotFound is returned by Get when no secret is stored under the key.
var ErrNotFound = errors.New("credential not found")

// Store reads and writes secrets. Delete of a missing key is not an error.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// Keyring stores secrets in the operating system keychain.
type Keyring struct {
	service string
}

func NewKeyring(service string) *Keyring {
	return &Keyring{service: service}
}

func (k *Keyring) Get(key string) (string, error) {
	v, err := keyring.Get(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("keyring get %s: %w", key, err)
	}
	return v, nil
}

func (k *Keyring) Set(key, value string) error {
	if err := keyring.Set(k.service, key, value); err != nil {
		return fmt.Errorf("keyring set %s: %w", key, err)
	}
	return nil
}

func (k *Keyring) Delete(key string) error {
	err := keyring.Delete(k.service, key)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete %s: %w", key, err)
	}
	return nil
}

// File stores secrets in a 0600 JSON file for hosts without a keychain.
type File struct {
	fs *store.FileStore
}

func NewFile(path string) *File {
	return &File{fs: store.NewFile(path)}
}

func (f *File) Get(key string) (string, error) {
	v, ok, err := f.fs.Get(context.Background(), key)
	if err != nil {
		return "", err
	}
	if !ok || v == "" {
		return "", ErrNotFound
	}
	return v, nil
}

func (f *File) Set(key, value string) error {
	return f.fs.Set(context.Background(), key, value)
}

func (f *File) Delete(key string) error {
	return f.fs.Delete(context.Background(), key)
}

// Memory is an in-process Store, mostly for tests.
type Memory struct {
	mu      sync.Mutex
	secrets map[string]string
}

func NewMemory() *Memory {
	return &Memory{secrets: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.secrets[key]
	if !ok || v == "" {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.secrets, key)
	return nil
}

// Lookup returns the secret, or "" when it is absent. Other errors are returned.
func Lookup(s Store, key string) (string, error) {
	v, err := s.Get(key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}

// Has reports whether a non-empty secret exists under key.
func Has(s Store, key string) bool {
	v, err := Lookup(s, key)
	return err == nil && v != ""
}

var requiredKeys = map[string][]string{
	provider.LunchMoney: {LunchMoneyAPIKey},
	provider.Plaid:      {PlaidAccessToken},
	provider.YNAB:       {YNABToken},
}

// HasRequiredKeys reports whether every secret providerName needs is present.
// Unknown providers have none.
func HasRequiredKeys(s Store, providerName string) bool {
	keys, ok := requiredKeys[providerName]
	if !ok {
		return false
	}
	for _, k := range keys {
		if !Has(s, k) {
			return false
		}
	}
	return true
}
