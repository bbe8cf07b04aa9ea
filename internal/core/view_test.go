package core

import (
	"reflect"
	"testing"
)

func sampleExpenses() []Expense {
	return []Expense{
		{ID: 1, Date: NewDate(2025, 1, 10), Category: CategoryMaterial, Description: "Cement bags", Amount: Money{Cents: 100}, Payment: PaymentCash},
		{ID: 2, Date: NewDate(2025, 2, 5), Category: CategoryLabor, Description: "Mason crew", Amount: Money{Cents: 200}, Payment: PaymentCard},
		{ID: 3, Date: NewDate(2025, 2, 5), Category: CategoryMaterial, Description: "Sand truck", Amount: Money{Cents: 300}, Payment: PaymentCash},
		{ID: 4, Date: NewDate(2025, 1, 20), Category: CategoryService, Description: "Electrical design", Amount: Money{Cents: 400}, Payment: PaymentBankTransfer},
	}
}

func ids(expenses []Expense) []int64 {
	out := make([]int64, len(expenses))
	for i, e := range expenses {
		out[i] = e.ID
	}
	return out
}

func TestFilterExpenses(t *testing.T) {
	expenses := sampleExpenses()

	cases := []struct {
		name   string
		search string
		cat    Category
		want   []int64
	}{
		{"empty search matches all", "", FilterAll, []int64{1, 2, 3, 4}},
		{"search is case-insensitive", "CEMENT", FilterAll, []int64{1}},
		{"substring match", "truck", FilterAll, []int64{3}},
		{"category filter", "", CategoryMaterial, []int64{1, 3}},
		{"search and category combine with AND", "sand", CategoryLabor, []int64{}},
		{"no match", "steel", FilterAll, []int64{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ids(FilterExpenses(expenses, tc.search, tc.cat))
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestSortByDateDescStable(t *testing.T) {
	expenses := sampleExpenses()
	SortByDateDesc(expenses)

	// IDs 2 and 3 share a date and must keep insertion order.
	want := []int64{2, 3, 4, 1}
	if got := ids(expenses); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	// Sorting again must not reshuffle equal-date records.
	SortByDateDesc(expenses)
	if got := ids(expenses); !reflect.DeepEqual(got, want) {
		t.Fatalf("repeated sort reordered records: %v", got)
	}
}

func TestViewIdempotent(t *testing.T) {
	expenses := sampleExpenses()

	first := View(expenses, "", CategoryMaterial)
	second := View(expenses, "", CategoryMaterial)

	if !reflect.DeepEqual(ids(first), ids(second)) {
		t.Fatalf("view is not idempotent: %v vs %v", ids(first), ids(second))
	}

	// The source slice keeps its original order.
	if got := ids(expenses); !reflect.DeepEqual(got, []int64{1, 2, 3, 4}) {
		t.Fatalf("view mutated its input: %v", got)
	}
}
