package core

import "strings"

// Summary holds the derived totals for one calendar month. All values are
// cents; it is never stored, only recomputed from ledger rows.
type Summary struct {
	Income  Money
	Expense Money
}

// Net returns income minus expenses.
func (s Summary) Net() Money {
	return Money{Cents: s.Income.Cents - s.Expense.Cents}
}

// Compute aggregates the rows whose date carries the YYYY-MM label as a
// prefix. Kind comparison is case-insensitive; rows with any other kind
// value are skipped rather than erroring. A label matching no rows yields
// a zero summary.
func Compute(rows []Transaction, label string) Summary {
	var sum Summary
	for _, r := range rows {
		if !strings.HasPrefix(r.Date, label) {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(string(r.Kind))) {
		case "income":
			sum.Income.Cents += r.Amount.Cents
		case "expense":
			sum.Expense.Cents += r.Amount.Cents
		}
	}
	return sum
}
