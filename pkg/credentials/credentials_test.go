package credentials

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func exerciseCredentials(t *testing.T, s Store) {
	_, err := s.Get(LunchMoneyAPIKey)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, Has(s, LunchMoneyAPIKey))

	require.NoError(t, s.Set(LunchMoneyAPIKey, "lm-secret"))
	assert.True(t, Has(s, LunchMoneyAPIKey))

	v, err := Lookup(s, LunchMoneyAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "lm-secret", v)

	require.NoError(t, s.Delete(LunchMoneyAPIKey))
	require.NoError(t, s.Delete(LunchMoneyAPIKey))

	v, err = Lookup(s, LunchMoneyAPIKey)
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestMemory(t *testing.T) {
	exerciseCredentials(t, NewMemory())
}

func TestFile(t *testing.T) {
	exerciseCredentials(t, NewFile(filepath.Join(t.TempDir(), "credentials.json")))
}

func TestKeyring(t *testing.T) {
	keyring.MockInit()
	exerciseCredentials(t, NewKeyring("perch-test"))
}

func TestEmptyValueIsMissing(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Set(PlaidAccessToken, ""))
	assert.False(t, Has(m, PlaidAccessToken))
}

func TestHasRequiredKeys(t *testing.T) {
	m := NewMemory()
	assert.False(t, HasRequiredKeys(m, "lunchmoney"))

	require.NoError(t, m.Set(LunchMoneyAPIKey, "key"))
	assert.True(t, HasRequiredKeys(m, "lunchmoney"))
	assert.False(t, HasRequiredKeys(m, "plaid"))

	require.NoError(t, m.Set(PlaidAccessToken, "access"))
	assert.True(t, HasRequiredKeys(m, "plaid"))
	assert.False(t, HasRequiredKeys(m, "mint"))
}
