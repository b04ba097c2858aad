package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yurifrl/perch/pkg/models"
)

func tx(id, date, amount, category string) models.Transaction {
	return models.Transaction{ID: id, Date: date, Amount: models.ParseAmount(amount), Category: category}
}

func TestFilterSpending(t *testing.T) {
	in := []models.Transaction{
		tx("refund", "2025-03-01", "-5.00", ""),
		tx("groceries", "2025-03-01", "20.00", "Groceries"),
		tx("transfer", "2025-03-02", "100.00", "Credit Card TRANSFER"),
		tx("payment", "2025-03-02", "100.00", "Payment, Thank You"),
		tx("income", "2025-03-02", "100.00", "Income"),
		tx("allowance", "2025-03-02", "10.00", "Kids Allowance"),
		tx("coffee", "2025-03-03", "4.50", "Coffee"),
		tx("zero", "2025-03-02", "0", ""),
	}
	excluded := tx("excluded", "2025-03-04", "9.99", "Fun")
	excluded.ExcludeFromTotals = true
	in = append(in, excluded)

	got := FilterSpending(in)

	assert.Equal(t, []string{"coffee", "zero", "groceries"}, models.IDs(got))
	for _, g := range got {
		assert.False(t, g.Amount.IsNegative())
	}
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Date, got[i].Date)
	}
}

func TestFilterSpendingEmpty(t *testing.T) {
	assert.Empty(t, FilterSpending(nil))
}
