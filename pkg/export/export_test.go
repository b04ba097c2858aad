package export

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/yurifrl/perch/pkg/models"
)

var generated = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

func sample() []models.Transaction {
	return []models.Transaction{
		{ID: "1", Date: "2025-03-11", Payee: "Coffee", Amount: decimal.RequireFromString("4.50"), Currency: "usd", Account: "Checking", Category: "Dining"},
		{ID: "2", Date: "2025-03-10", Payee: "Grocer", Amount: decimal.NewFromInt(20), Currency: "usd"},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, XLSX, f)

	f, err = ParseFormat("yml")
	require.NoError(t, err)
	assert.Equal(t, YAML, f)

	_, err = ParseFormat("pdf")
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, CSV, NewReport("lunchmoney", "week", sample(), generated)))

	assert.Equal(t, "Date,Payee,Memo,Amount\n"+
		"2025-03-11,Coffee,Checking / Dining,-4.50\n"+
		"2025-03-10,Grocer,,-20.00\n", buf.String())
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, XLSX, NewReport("lunchmoney", "week", sample(), generated)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetName}, f.GetSheetList())

	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 3)
	assert.Equal(t, []string{"Date", "Payee", "Account", "Category", "Amount", "Currency"}, rows[0])
	assert.Equal(t, []string{"2025-03-11", "Coffee", "Checking", "Dining", "4.5", "USD"}, rows[1])

	formula, err := f.GetCellFormula(sheetName, "E4")
	require.NoError(t, err)
	assert.Equal(t, "SUM(E2:E3)", formula)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, JSON, NewReport("plaid", "day", sample(), generated)))

	var got struct {
		Provider     string `json:"provider"`
		Total        string `json:"total"`
		Transactions []struct {
			ID     string `json:"id"`
			Amount string `json:"amount"`
		} `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "plaid", got.Provider)
	assert.Equal(t, "24.5", got.Total)
	require.Len(t, got.Transactions, 2)
	assert.Equal(t, "4.5", got.Transactions[0].Amount)
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, YAML, NewReport("ynab", "month", sample(), generated)))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "ynab", got["provider"])
	assert.Equal(t, "24.5", got["total"])
	assert.Len(t, got["transactions"], 2)
}

func TestFilters(t *testing.T) {
	ts := sample()

	got, err := Filters{StartDate: "2025-03-11"}.Apply(ts)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, models.IDs(got))

	got, err = Filters{MinAmount: 10}.Apply(ts)
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, models.IDs(got))

	got, err = Filters{Payee: "COF", EndDate: "2025-03-31"}.Apply(ts)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, models.IDs(got))

	_, err = Filters{StartDate: "11/03/2025"}.Apply(ts)
	assert.Error(t, err)
}
