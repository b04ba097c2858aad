package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir runs the test from an empty directory so no stray config.yaml or
// .env is picked up.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	return dir
}

func TestBuildDefaults(t *testing.T) {
	chdir(t)

	cfg, err := Build("", nil)
	require.NoError(t, err)

	assert.Equal(t, "lunchmoney", cfg.Provider)
	assert.Equal(t, "https://dev.lunchmoney.app/v1", cfg.LunchMoney.BaseURL)
	assert.Equal(t, "http://localhost:3000/api", cfg.Plaid.BackendURL)
	assert.Equal(t, "file", cfg.Store.Driver)
	assert.Equal(t, "keyring", cfg.Credentials.Driver)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, 3*time.Second, cfg.Dwell)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, log.InfoLevel, cfg.Level())
	assert.Empty(t, cfg.File)
}

func TestBuildPrecedence(t *testing.T) {
	dir := chdir(t)

	file := filepath.Join(dir, "perch.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
provider: plaid
cache_ttl: 1m
log_level: debug
store:
  driver: memory
`), 0o600))

	t.Setenv("PERCH_CACHE_TTL", "45s")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("provider", "", "")
	flags.String("log-level", "", "")
	require.NoError(t, flags.Parse([]string{"--provider", "ynab"}))

	cfg, err := Build(file, flags)
	require.NoError(t, err)

	assert.Equal(t, "ynab", cfg.Provider, "flag beats file")
	assert.Equal(t, 45*time.Second, cfg.CacheTTL, "env beats file")
	assert.Equal(t, log.DebugLevel, cfg.Level(), "unset flag leaves file value")
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, file, cfg.File)
}

func TestBuildReadsDotEnv(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PERCH_PROVIDER=plaid\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("PERCH_PROVIDER") })

	cfg, err := Build("", nil)
	require.NoError(t, err)
	assert.Equal(t, "plaid", cfg.Provider)
}

func TestBuildRejectsInvalid(t *testing.T) {
	chdir(t)

	t.Setenv("PERCH_PROVIDER", "mint")
	_, err := Build("", nil)
	assert.ErrorContains(t, err, `unknown provider "mint"`)

	t.Setenv("PERCH_PROVIDER", "ynab")
	t.Setenv("PERCH_STORE_DRIVER", "sqlite")
	_, err = Build("", nil)
	assert.ErrorContains(t, err, "unknown store driver")
}

func TestBuildMissingExplicitFile(t *testing.T) {
	chdir(t)
	_, err := Build("nope.yaml", nil)
	assert.Error(t, err)
}

func TestBuildServer(t *testing.T) {
	chdir(t)

	t.Setenv("PLAID_CLIENT_ID", "")
	t.Setenv("PLAID_SECRET", "")
	_, err := BuildServer()
	assert.Error(t, err)

	t.Setenv("PLAID_CLIENT_ID", "client")
	t.Setenv("PLAID_SECRET", "secret")
	t.Setenv("PORT", "8080")
	s, err := BuildServer()
	require.NoError(t, err)
	assert.Equal(t, "client", s.ClientID)
	assert.Equal(t, "sandbox", s.Environment)
	assert.Equal(t, 8080, s.Port)
}
