package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/yurifrl/perch/pkg/credentials"
	"github.com/yurifrl/perch/pkg/export"
	"github.com/yurifrl/perch/pkg/models"
	"github.com/yurifrl/perch/pkg/session"
)

// setup points perch at a fake LunchMoney API with file-backed state under a
// temp directory.
func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	today := time.Now().Format(models.DateLayout)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer lm-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"transactions":[
			{"id":1,"date":%q,"payee":"Coffee","amount":"4.50","currency":"usd","asset_name":"Checking"},
			{"id":2,"date":%q,"payee":"Transfer out","amount":"100.00","currency":"usd","category_name":"Transfer"},
			{"id":3,"date":%q,"payee":"Refund","amount":"-5.00","currency":"usd"}
		]}`, today, today, today)
	}))
	t.Cleanup(api.Close)

	credsPath := filepath.Join(dir, "credentials.json")
	require.NoError(t, credentials.NewFile(credsPath).Set(credentials.LunchMoneyAPIKey, "lm-test"))

	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("PERCH_PROVIDER", "lunchmoney")
	t.Setenv("PERCH_LUNCHMONEY_BASE_URL", api.URL)
	t.Setenv("PERCH_STORE_DRIVER", "file")
	t.Setenv("PERCH_STORE_PATH", filepath.Join(dir, "state.json"))
	t.Setenv("PERCH_CREDENTIALS_DRIVER", "file")
	t.Setenv("PERCH_CREDENTIALS_PATH", credsPath)
	t.Setenv("PERCH_LOG_LEVEL", "error")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetOut(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestShowJSON(t *testing.T) {
	setup(t)

	out, err := run(t, "show", "--mode", "day", "--format", "json")
	require.NoError(t, err)

	var snap struct {
		Mode         string `json:"mode"`
		NewIDs       []string
		Transactions []struct {
			ID    string `json:"id"`
			IsNew bool   `json:"is_new"`
		} `json:"transactions"`
		Totals struct {
			Day string `json:"day"`
		} `json:"totals"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &snap), out)
	assert.Equal(t, "day", snap.Mode)
	require.Len(t, snap.Transactions, 1)
	assert.Equal(t, "1", snap.Transactions[0].ID)
	assert.True(t, snap.Transactions[0].IsNew)
	assert.Equal(t, "4.5", snap.Totals.Day)

	// Shown rows were marked viewed by the first run.
	out, err = run(t, "show", "--mode", "day", "--format", "json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &snap), out)
	assert.False(t, snap.Transactions[0].IsNew)
}

func TestExportXLSX(t *testing.T) {
	dir := setup(t)
	file := filepath.Join(dir, "out.xlsx")

	_, err := run(t, "export", "--mode", "day", "-o", file)
	require.NoError(t, err)

	f, err := excelize.OpenFile(file)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Transactions")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 2)
	assert.Equal(t, "Coffee", rows[1][1])
}

func TestAuthStatus(t *testing.T) {
	setup(t)

	out, err := run(t, "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "* lunchmoney configured")
	assert.Contains(t, out, "plaid      not configured")
}

func TestFilterSnapshot(t *testing.T) {
	t.Cleanup(func() { cliFilters = export.Filters{} })
	cliFilters = export.Filters{Payee: "cof"}

	snap, err := filterSnapshot(session.Snapshot{Transactions: []models.TransactionState{
		{Transaction: models.Transaction{ID: "1", Payee: "Coffee", Amount: decimal.NewFromInt(4)}, IsNew: true},
		{Transaction: models.Transaction{ID: "2", Payee: "Grocer", Amount: decimal.NewFromInt(9)}, IsNew: true},
	}})
	require.NoError(t, err)
	require.Len(t, snap.Transactions, 1)
	assert.Equal(t, "1", snap.Transactions[0].ID)
	assert.Equal(t, []string{"1"}, shownNewIDs(snap))
}

func TestExportFormat(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().String("format", "", "")

	f, err := exportFormat(cmd, "report.xlsx")
	require.NoError(t, err)
	assert.Equal(t, export.XLSX, f)

	f, err = exportFormat(cmd, "")
	require.NoError(t, err)
	assert.Equal(t, export.CSV, f)

	require.NoError(t, cmd.Flags().Set("format", "yaml"))
	f, err = exportFormat(cmd, "report.xlsx")
	require.NoError(t, err)
	assert.Equal(t, export.YAML, f)
}
