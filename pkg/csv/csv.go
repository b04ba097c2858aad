// Package csv writes transactions in the Date,Payee,Memo,Amount layout YNAB
// imports.
package csv

import (
	"bytes"
	"encoding/csv"

	"github.com/shopspring/decimal"
)

var Header = []string{"Date", "Payee", "Memo", "Amount"}

type Record interface {
	Date() string
	Payee() string
	Memo() string
	Amount() decimal.Decimal
}

func Create[T Record](records []T) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return nil, err
	}
	for _, r := range records {
		if err := w.Write([]string{r.Date(), r.Payee(), r.Memo(), r.Amount().StringFixed(2)}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
