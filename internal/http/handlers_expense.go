package http

import (
	"context"
	"net/http"

	"obras/internal/core"
	applog "obras/internal/log"
	"obras/internal/notify"
)

type expenseResponse struct {
	ID          int64  `json:"id"`
	ProjectID   string `json:"project_id"`
	Date        string `json:"date"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Payment     string `json:"payment_method"`
}

func toExpenseResponse(e core.Expense) expenseResponse {
	return expenseResponse{
		ID:          e.ID,
		ProjectID:   e.ProjectID,
		Date:        e.Date.ISO(),
		Category:    e.Category.String(),
		Description: e.Description,
		Amount:      e.Amount.String(),
		Payment:     e.Payment.String(),
	}
}

// handleListExpenses returns the project's expenses filtered by search and
// category, newest first. Unfiltered lists are served from the cache.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	params, err := parseListParams(r.URL.Query())
	if err != nil {
		FromError(err).Write(w)
		return
	}

	cacheKey := "expenses:" + projectID + ":" + params.Search + ":" + params.Category.String()
	if cached, ok := s.listCache.Get(cacheKey); ok {
		s.writeExpenseList(w, cached)
		return
	}

	expenses, err := s.store.ListExpenses(r.Context(), projectID)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "List expenses failed",
			applog.FieldProjectID, projectID, applog.FieldError, err)
		FromError(err).Write(w)
		return
	}

	view := core.View(expenses, params.Search, params.Category)
	s.listCache.Set(cacheKey, view)
	s.writeExpenseList(w, view)
}

func (s *Server) writeExpenseList(w http.ResponseWriter, expenses []core.Expense) {
	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseResponse(e))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	var payload expensePayload
	if err := decodeJSON(r, &payload); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	expense, err := payload.toExpense(projectID, 0)
	if err != nil {
		FromError(err).Write(w)
		return
	}

	// The project must exist; expenses never dangle.
	if _, err := s.store.GetProject(r.Context(), projectID); err != nil {
		FromError(err).Write(w)
		return
	}

	id, err := s.store.AddExpense(r.Context(), expense)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Create expense failed",
			applog.FieldProjectID, projectID, applog.FieldError, err)
		FromError(err).Write(w)
		return
	}
	expense.ID = id

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Expense recorded",
		applog.NewFields().
			WithOperation(applog.OpCreate).
			WithExpense(projectID, id, expense.Category.String(), expense.Amount.Cents).
			ToSlice()...)

	s.invalidateProject(r.Context(), notify.CollectionExpenses, projectID)
	NewJSONResponse().Status(http.StatusCreated).Body(toExpenseResponse(expense)).Write(w)
}

// handleUpdateExpense is a full replace of the stored record.
func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	id, err := parseExpenseID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	var payload expensePayload
	if err := decodeJSON(r, &payload); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	expense, err := payload.toExpense(projectID, id)
	if err != nil {
		FromError(err).Write(w)
		return
	}

	// The project must exist; expenses never dangle.
	if _, err := s.store.GetProject(r.Context(), projectID); err != nil {
		FromError(err).Write(w)
		return
	}

	// The upsert would adopt any id it is given, so the target must
	// already belong to this project. Otherwise a replace could re-home
	// another project's expense.
	owned, err := s.projectOwnsExpense(r.Context(), projectID, id)
	if err != nil {
		FromError(err).Write(w)
		return
	}
	if !owned {
		NotFoundError("expense not found in this project").Write(w)
		return
	}

	if err := s.store.UpdateExpense(r.Context(), expense); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Update expense failed",
			applog.FieldProjectID, projectID,
			applog.FieldExpenseID, id,
			applog.FieldError, err)
		FromError(err).Write(w)
		return
	}

	s.invalidateProject(r.Context(), notify.CollectionExpenses, projectID)
	NewJSONResponse().Body(toExpenseResponse(expense)).Write(w)
}

// handleDeleteExpense removes one expense. Deleting an id that no longer
// exists still returns 204.
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	id, err := parseExpenseID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	if err := s.store.DeleteExpense(r.Context(), projectID, id); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Delete expense failed",
			applog.FieldProjectID, projectID,
			applog.FieldExpenseID, id,
			applog.FieldError, err)
		FromError(err).Write(w)
		return
	}

	s.invalidateProject(r.Context(), notify.CollectionExpenses, projectID)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// projectOwnsExpense reports whether the expense id currently lives under
// the given project.
func (s *Server) projectOwnsExpense(ctx context.Context, projectID string, id int64) (bool, error) {
	expenses, err := s.store.ListExpenses(ctx, projectID)
	if err != nil {
		return false, err
	}
	for _, e := range expenses {
		if e.ID == id {
			return true, nil
		}
	}
	return false, nil
}
