package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"obras/internal/core"
	"obras/internal/services"
)

func TestExpensePayloadToExpense(t *testing.T) {
	tests := []struct {
		name      string
		payload   expensePayload
		wantErr   bool
		wantCents int64
	}{
		{
			name: "valid payload",
			payload: expensePayload{
				Date:        "2026-03-10",
				Category:    "material",
				Description: "cement, 50 x bag",
				Amount:      "1200.50",
				Payment:     "cash",
			},
			wantCents: 120050,
		},
		{
			name: "whitespace is trimmed",
			payload: expensePayload{
				Date:        "  2026-03-10 ",
				Category:    " labor ",
				Description: " mason crew ",
				Amount:      " 80.00 ",
				Payment:     " card ",
			},
			wantCents: 8000,
		},
		{
			name: "bad date",
			payload: expensePayload{
				Date:     "10/03/2026",
				Category: "material",
				Amount:   "10.00",
				Payment:  "cash",
			},
			wantErr: true,
		},
		{
			name: "negative amount",
			payload: expensePayload{
				Date:        "2026-03-10",
				Category:    "material",
				Description: "refund",
				Amount:      "-5.00",
				Payment:     "cash",
			},
			wantErr: true,
		},
		{
			name: "unknown category",
			payload: expensePayload{
				Date:        "2026-03-10",
				Category:    "fuel",
				Description: "diesel",
				Amount:      "30.00",
				Payment:     "cash",
			},
			wantErr: true,
		},
		{
			name: "unknown payment method",
			payload: expensePayload{
				Date:        "2026-03-10",
				Category:    "material",
				Description: "sand",
				Amount:      "30.00",
				Payment:     "crypto",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expense, err := tt.payload.toExpense("p1", 0)

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				if !services.IsValidationError(err) {
					t.Errorf("error %v should be a validation error", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("toExpense() error = %v", err)
			}
			if expense.ProjectID != "p1" {
				t.Errorf("ProjectID = %q, want %q", expense.ProjectID, "p1")
			}
			if expense.Amount.Cents != tt.wantCents {
				t.Errorf("Amount.Cents = %d, want %d", expense.Amount.Cents, tt.wantCents)
			}
		})
	}
}

func TestBudgetPayloadToBudget(t *testing.T) {
	tests := []struct {
		name    string
		payload budgetPayload
		wantErr bool
	}{
		{
			name:    "valid without end date",
			payload: budgetPayload{Amount: "50000.00", StartDate: "2026-01-01"},
		},
		{
			name:    "valid with end date",
			payload: budgetPayload{Amount: "50000.00", StartDate: "2026-01-01", EndDate: "2026-12-31"},
		},
		{
			name:    "end before start",
			payload: budgetPayload{Amount: "50000.00", StartDate: "2026-06-01", EndDate: "2026-01-01"},
			wantErr: true,
		},
		{
			name:    "zero amount",
			payload: budgetPayload{Amount: "0", StartDate: "2026-01-01"},
			wantErr: true,
		},
		{
			name:    "unparseable amount",
			payload: budgetPayload{Amount: "a lot", StartDate: "2026-01-01"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.payload.toBudget("p1")

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				if !services.IsValidationError(err) {
					t.Errorf("error %v should be a validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("toBudget() error = %v", err)
			}
		})
	}
}

func TestParseListParams(t *testing.T) {
	tests := []struct {
		name         string
		query        url.Values
		wantSearch   string
		wantCategory core.Category
		wantErr      bool
	}{
		{
			name:         "empty query matches everything",
			query:        url.Values{},
			wantCategory: core.FilterAll,
		},
		{
			name:         "explicit all",
			query:        url.Values{"category": {"all"}},
			wantCategory: core.FilterAll,
		},
		{
			name:         "search and category",
			query:        url.Values{"search": {" mason "}, "category": {"labor"}},
			wantSearch:   "mason",
			wantCategory: core.CategoryLabor,
		},
		{
			name:    "unknown category is rejected",
			query:   url.Values{"category": {"fuel"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, err := parseListParams(tt.query)

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseListParams() error = %v", err)
			}
			if params.Search != tt.wantSearch {
				t.Errorf("Search = %q, want %q", params.Search, tt.wantSearch)
			}
			if params.Category != tt.wantCategory {
				t.Errorf("Category = %q, want %q", params.Category, tt.wantCategory)
			}
		})
	}
}

func TestParseExpenseID(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int64
		wantErr bool
	}{
		{name: "valid id", raw: "42", want: 42},
		{name: "zero is invalid", raw: "0", wantErr: true},
		{name: "negative is invalid", raw: "-3", wantErr: true},
		{name: "not a number", raw: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.SetPathValue("expenseID", tt.raw)

			id, err := parseExpenseID(r)

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseExpenseID() error = %v", err)
			}
			if id != tt.want {
				t.Errorf("id = %d, want %d", id, tt.want)
			}
		})
	}
}
