package core

// Summary holds the derived metrics for one project: totals, balance
// against the budget and per-category breakdown. Summaries are never
// persisted; they are recomputed from the current records.
type Summary struct {
	TotalActual Money
	Balance     Money
	// PercentUsed is the raw budget usage; it may exceed 100 when the
	// project is over budget. Clamp only at display time.
	PercentUsed float64
	ByCategory  map[Category]Money
	// HasBudget distinguishes a zero balance from an unset budget.
	HasBudget bool
}

// Summarize computes the derived metrics from the current expense list and
// budget. A nil budget is treated as zero for balance and percentage, while
// TotalActual stays accurate regardless.
func Summarize(expenses []Expense, budget *Budget) Summary {
	s := Summary{ByCategory: make(map[Category]Money)}

	for _, e := range expenses {
		s.TotalActual = s.TotalActual.Add(e.Amount)
		s.ByCategory[e.Category] = s.ByCategory[e.Category].Add(e.Amount)
	}

	if budget != nil {
		s.HasBudget = true
		s.Balance = budget.Amount.Sub(s.TotalActual)
		if budget.Amount.Cents > 0 {
			s.PercentUsed = float64(s.TotalActual.Cents) / float64(budget.Amount.Cents) * 100
		}
	}

	return s
}

// DisplayPercent clamps the raw usage to [0, 100] for gauges and charts.
func (s Summary) DisplayPercent() float64 {
	switch {
	case s.PercentUsed < 0:
		return 0
	case s.PercentUsed > 100:
		return 100
	default:
		return s.PercentUsed
	}
}

// OverBudget reports whether spending exceeds the budget.
func (s Summary) OverBudget() bool {
	return s.Balance.Cents < 0
}
