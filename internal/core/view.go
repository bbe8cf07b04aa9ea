package core

import (
	"sort"
	"strings"
)

// FilterAll passes every category through the filter.
const FilterAll = Category("all")

// FilterExpenses returns the expenses whose description contains search
// (case-insensitive) and whose category matches cat. An empty search
// matches everything; FilterAll passes every category. Both predicates
// must hold. The input slice is never mutated.
func FilterExpenses(expenses []Expense, search string, cat Category) []Expense {
	search = strings.ToLower(strings.TrimSpace(search))

	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if cat != FilterAll && e.Category != cat {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(e.Description), search) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// SortByDateDesc orders expenses most recent first. The sort is stable:
// expenses sharing a date keep their insertion order, so repeated renders
// never reshuffle equal-date records.
func SortByDateDesc(expenses []Expense) {
	sort.SliceStable(expenses, func(i, j int) bool {
		return expenses[i].Date.After(expenses[j].Date.Time)
	})
}

// View combines filtering and date-descending ordering into the list the
// caller renders. Applying it twice yields the same ordered result.
func View(expenses []Expense, search string, cat Category) []Expense {
	out := FilterExpenses(expenses, search, cat)
	SortByDateDesc(out)
	return out
}
