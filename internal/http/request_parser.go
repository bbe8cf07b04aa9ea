// This file implements parsing and validation of request payloads and
// query parameters.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"obras/internal/core"
	"obras/internal/services"
)

// maxBodySize caps request bodies. Expense payloads are small.
const maxBodySize = 1 << 20

// expensePayload is the wire form of an expense mutation.
type expensePayload struct {
	Date        string `json:"date"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Payment     string `json:"payment_method"`
}

// budgetPayload is the wire form of a budget upsert.
type budgetPayload struct {
	Amount    string `json:"amount"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// projectPayload is the wire form of a project creation.
type projectPayload struct {
	Name string `json:"name"`
}

// listParams holds the parsed expense list query.
type listParams struct {
	Search   string
	Category core.Category
}

func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(body) == 0 {
		return errors.New("empty request body")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// toExpense validates the payload and builds the domain record. The id is
// zero for creations and the target id for replacements.
func (p expensePayload) toExpense(projectID string, id int64) (core.Expense, error) {
	date, err := core.ParseDate(strings.TrimSpace(p.Date))
	if err != nil {
		return core.Expense{}, &services.ValidationError{Err: err}
	}

	cents, err := core.ParseDecimalToCents(strings.TrimSpace(p.Amount))
	if err != nil {
		return core.Expense{}, &services.ValidationError{Err: err}
	}

	expense := core.Expense{
		ID:          id,
		ProjectID:   projectID,
		Date:        date,
		Category:    core.Category(strings.TrimSpace(p.Category)),
		Description: strings.TrimSpace(p.Description),
		Amount:      core.Money{Cents: cents},
		Payment:     core.PaymentMethod(strings.TrimSpace(p.Payment)),
	}
	if err := expense.Validate(); err != nil {
		return core.Expense{}, &services.ValidationError{Err: err}
	}
	return expense, nil
}

// toBudget validates the payload and builds the domain record.
func (p budgetPayload) toBudget(projectID string) (core.Budget, error) {
	cents, err := core.ParseDecimalToCents(strings.TrimSpace(p.Amount))
	if err != nil {
		return core.Budget{}, &services.ValidationError{Err: err}
	}

	start, err := core.ParseDate(strings.TrimSpace(p.StartDate))
	if err != nil {
		return core.Budget{}, &services.ValidationError{Err: err}
	}

	budget := core.Budget{
		ProjectID: projectID,
		Amount:    core.Money{Cents: cents},
		StartDate: start,
	}

	if end := strings.TrimSpace(p.EndDate); end != "" {
		endDate, err := core.ParseDate(end)
		if err != nil {
			return core.Budget{}, &services.ValidationError{Err: err}
		}
		budget.EndDate = endDate
	}

	if err := budget.Validate(); err != nil {
		return core.Budget{}, &services.ValidationError{Err: err}
	}
	return budget, nil
}

// parseListParams extracts search and category filters from the query.
// An absent or "all" category means no category filter.
func parseListParams(query url.Values) (listParams, error) {
	params := listParams{
		Search:   strings.TrimSpace(query.Get("search")),
		Category: core.FilterAll,
	}

	if v := strings.TrimSpace(query.Get("category")); v != "" {
		cat := core.Category(v)
		if cat != core.FilterAll && !cat.IsValid() {
			return listParams{}, &services.ValidationError{Err: fmt.Errorf("unknown category %q", v)}
		}
		params.Category = cat
	}

	return params, nil
}

// parseExpenseID extracts the expense id path segment.
func parseExpenseID(r *http.Request) (int64, error) {
	raw := r.PathValue("expenseID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid expense id %q", raw)
	}
	return id, nil
}
