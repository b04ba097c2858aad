package provider

import (
	"sort"
	"strings"

	"github.com/yurifrl/perch/pkg/models"
)

// ExcludedCategories are category fragments that never count as spending.
var ExcludedCategories = []string{"transfer", "payment", "income", "allowance"}

// FilterSpending drops refunds and credits, rows excluded from totals and
// rows in an excluded category, then sorts newest first.
func FilterSpending(ts []models.Transaction) []models.Transaction {
	out := make([]models.Transaction, 0, len(ts))
	for _, t := range ts {
		if t.Amount.IsNegative() || t.ExcludeFromTotals || excludedCategory(t.Category) {
			continue
		}
		out = append(out, t)
	}
	SortNewestFirst(out)
	return out
}

// SortNewestFirst orders by date descending, keeping input order for ties.
func SortNewestFirst(ts []models.Transaction) {
	sort.SliceStable(ts, func(i, j int) bool {
		return ts[i].Date > ts[j].Date
	})
}

func excludedCategory(name string) bool {
	if name == "" {
		return false
	}
	lower := strings.ToLower(name)
	for _, c := range ExcludedCategories {
		if strings.Contains(lower, c) {
			return true
		}
	}
	return false
}
