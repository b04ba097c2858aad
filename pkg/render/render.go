// Package render draws a session snapshot for the terminal.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/yurifrl/perch/pkg/models"
	"github.com/yurifrl/perch/pkg/session"
)

const payeeWidth = 28

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	activeTab   = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(lipgloss.Color("12"))
	inactiveTab = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	totalStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).PaddingLeft(2)
	newStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	seenStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")) // gray
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8")).Padding(0, 1)
)

var symbols = map[string]string{
	"usd": "$",
	"cad": "CA$",
	"aud": "A$",
	"eur": "€",
	"gbp": "£",
	"brl": "R$",
	"jpy": "¥",
}

// FormatAmount renders amount with two decimals and the currency's symbol.
// An empty currency is dollars.
func FormatAmount(amount decimal.Decimal, currency string) string {
	cur := strings.ToLower(currency)
	if cur == "" {
		cur = "usd"
	}
	sym, ok := symbols[cur]
	if !ok {
		sym = strings.ToUpper(cur) + " "
	}
	if amount.IsNegative() {
		return "-" + sym + amount.Neg().StringFixed(2)
	}
	return sym + amount.StringFixed(2)
}

// Tabs renders the mode selector with the active mode highlighted.
func Tabs(active session.Mode) string {
	parts := make([]string, 0, len(session.Modes()))
	for _, m := range session.Modes() {
		label := strings.ToUpper(m.String()[:1]) + m.String()[1:]
		if m == active {
			parts = append(parts, activeTab.Render(label))
		} else {
			parts = append(parts, inactiveTab.Render(label))
		}
	}
	return strings.Join(parts, dimStyle.Render(" · "))
}

// Header is the tabs plus the active mode's total.
func Header(snap session.Snapshot) string {
	total := FormatAmount(snap.Totals.For(snap.Mode), currencyOf(snap.Transactions))
	if snap.Loading {
		total += dimStyle.Render("  refreshing…")
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		Tabs(snap.Mode),
		"",
		totalStyle.Render(total),
	)
}

// Rows renders one line per transaction. New rows are marked and coloured.
func Rows(ts []models.TransactionState) string {
	if len(ts) == 0 {
		return dimStyle.Render("No spending in this period")
	}

	var b strings.Builder
	for i, t := range ts {
		marker, style := " ", seenStyle
		if t.IsNew {
			marker, style = "•", newStyle
		}
		line := fmt.Sprintf("%s %-11s %-*s %-10s %12s",
			marker,
			t.FormattedDate(),
			payeeWidth, truncate(t.Payee, payeeWidth),
			t.AccountName(),
			FormatAmount(t.Amount, t.Currency),
		)
		b.WriteString(style.Render(line))
		if i < len(ts)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Summary lists the rollup totals.
func Summary(totals session.Totals) string {
	row := func(label string, v decimal.Decimal) string {
		return fmt.Sprintf("%-10s %12s", label, FormatAmount(v, ""))
	}
	return boxStyle.Render(strings.Join([]string{
		titleStyle.Render("Totals"),
		row("Today", totals.Day),
		row("This week", totals.Week),
		row("Last week", totals.LastWeek),
		row("Month", totals.Month),
		row("Year", totals.Year),
	}, "\n"))
}

// Snapshot renders everything the session shows.
func Snapshot(snap session.Snapshot) string {
	body := Rows(snap.Transactions)
	switch {
	case snap.ErrorMessage != "":
		body = errorStyle.Render(snap.ErrorMessage)
	case snap.State == session.Idle || (snap.Loading && len(snap.Transactions) == 0):
		body = dimStyle.Render("Loading…")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		Header(snap),
		"",
		body,
		"",
		Summary(snap.Totals),
	)
}

// Help is the key legend for watch mode.
func Help() string {
	return dimStyle.Render("d/w/m/y switch · h/l prev/next · r refresh · q quit")
}

func currencyOf(ts []models.TransactionState) string {
	if len(ts) == 0 {
		return ""
	}
	return ts[0].Currency
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
