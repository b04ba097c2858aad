// Package export writes a window's transactions to a file format.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/yurifrl/perch/pkg/csv"
	"github.com/yurifrl/perch/pkg/models"
)

type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
	JSON Format = "json"
	YAML Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case CSV, XLSX, JSON, YAML:
		return f, nil
	case "yml":
		return YAML, nil
	default:
		return "", fmt.Errorf("unknown format %q (want csv, xlsx, json or yaml)", s)
	}
}

// Report is one exported window.
type Report struct {
	Provider     string               `json:"provider" yaml:"provider"`
	Mode         string               `json:"mode" yaml:"mode"`
	GeneratedAt  time.Time            `json:"generated_at" yaml:"generated_at"`
	Total        decimal.Decimal      `json:"total" yaml:"total"`
	Transactions []models.Transaction `json:"transactions" yaml:"transactions"`
}

// NewReport totals ts.
func NewReport(providerName, mode string, ts []models.Transaction, now time.Time) Report {
	return Report{
		Provider:     providerName,
		Mode:         mode,
		GeneratedAt:  now,
		Total:        models.Total(ts),
		Transactions: ts,
	}
}

func Write(w io.Writer, format Format, r Report) error {
	switch format {
	case CSV:
		return writeCSV(w, r)
	case XLSX:
		return writeXLSX(w, r)
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// ynabRow presents a spending transaction as a YNAB import row. Spending is
// positive in perch and an outflow in YNAB.
type ynabRow struct{ t models.Transaction }

func (r ynabRow) Date() string            { return r.t.Date }
func (r ynabRow) Payee() string           { return r.t.Payee }
func (r ynabRow) Amount() decimal.Decimal { return r.t.Amount.Neg() }

func (r ynabRow) Memo() string {
	switch {
	case r.t.Account != "" && r.t.Category != "":
		return r.t.Account + " / " + r.t.Category
	case r.t.Account != "":
		return r.t.Account
	default:
		return r.t.Category
	}
}

func writeCSV(w io.Writer, r Report) error {
	rows := make([]ynabRow, 0, len(r.Transactions))
	for _, t := range r.Transactions {
		rows = append(rows, ynabRow{t})
	}
	out, err := csv.Create(rows)
	if err != nil {
		return fmt.Errorf("failed to encode csv: %w", err)
	}
	_, err = w.Write(out)
	return err
}

const sheetName = "Transactions"

var sheetHeader = []any{"Date", "Payee", "Account", "Category", "Amount", "Currency"}

func writeXLSX(w io.Writer, r Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetName, "A1", &sheetHeader); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A1", "F1", bold); err != nil {
		return err
	}

	for i, t := range r.Transactions {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		amount, _ := t.Amount.Float64()
		row := []any{t.Date, t.Payee, t.Account, t.Category, amount, strings.ToUpper(t.Currency)}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	last := len(r.Transactions) + 1
	totalRow := last + 1
	if err := f.SetCellValue(sheetName, fmt.Sprintf("D%d", totalRow), "Total"); err != nil {
		return err
	}
	formula := "0"
	if last > 1 {
		formula = fmt.Sprintf("SUM(E2:E%d)", last)
	}
	if err := f.SetCellFormula(sheetName, fmt.Sprintf("E%d", totalRow), formula); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "E2", fmt.Sprintf("E%d", totalRow), money); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, fmt.Sprintf("D%d", totalRow), fmt.Sprintf("D%d", totalRow), bold); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, "B", "B", 32); err != nil {
		return err
	}

	return f.Write(w)
}
