package http

import (
	"errors"
	"net/http"

	"obras/internal/core"
	applog "obras/internal/log"
	"obras/internal/notify"
	"obras/internal/store"
)

type summaryResponse struct {
	TotalActual    string            `json:"total_actual"`
	Balance        string            `json:"balance"`
	PercentUsed    float64           `json:"percent_used"`
	DisplayPercent float64           `json:"display_percent"`
	OverBudget     bool              `json:"over_budget"`
	ByCategory     map[string]string `json:"by_category"`
	HasBudget      bool              `json:"has_budget"`
}

type budgetResponse struct {
	ProjectID string `json:"project_id"`
	Amount    string `json:"amount"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date,omitempty"`
}

func toBudgetResponse(b core.Budget) budgetResponse {
	out := budgetResponse{
		ProjectID: b.ProjectID,
		Amount:    b.Amount.String(),
		StartDate: b.StartDate.ISO(),
	}
	if !b.EndDate.IsEmpty() {
		out.EndDate = b.EndDate.ISO()
	}
	return out
}

// handleSummary recomputes the derived metrics for one project. Results
// are cached until the next mutation or TTL expiry.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	cacheKey := "summary:" + projectID
	if cached, ok := s.summaryCache.Get(cacheKey); ok {
		s.writeSummary(w, cached)
		return
	}

	expenses, err := s.store.ListExpenses(r.Context(), projectID)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "List expenses failed", applog.FieldProjectID, projectID, applog.FieldError, err)
		FromError(err).Write(w)
		return
	}

	var budget *core.Budget
	b, err := s.store.GetBudget(r.Context(), projectID)
	switch {
	case err == nil:
		budget = &b
	case errors.Is(err, store.ErrNotFound):
		// No budget yet; totals still compute.
	default:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Get budget failed", applog.FieldProjectID, projectID, applog.FieldError, err)
		FromError(err).Write(w)
		return
	}

	summary := core.Summarize(expenses, budget)
	s.summaryCache.Set(cacheKey, summary)
	s.writeSummary(w, summary)
}

func (s *Server) writeSummary(w http.ResponseWriter, summary core.Summary) {
	byCategory := make(map[string]string, len(summary.ByCategory))
	for cat, amount := range summary.ByCategory {
		byCategory[cat.String()] = amount.String()
	}

	NewJSONResponse().Body(summaryResponse{
		TotalActual:    summary.TotalActual.String(),
		Balance:        summary.Balance.String(),
		PercentUsed:    summary.PercentUsed,
		DisplayPercent: summary.DisplayPercent(),
		OverBudget:     summary.OverBudget(),
		ByCategory:     byCategory,
		HasBudget:      summary.HasBudget,
	}).Write(w)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	budget, err := s.store.GetBudget(r.Context(), r.PathValue("id"))
	if err != nil {
		FromError(err).Write(w)
		return
	}
	NewJSONResponse().Body(toBudgetResponse(budget)).Write(w)
}

// handleSetBudget upserts the project budget: the first save creates it,
// every later save replaces it in place.
func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	var payload budgetPayload
	if err := decodeJSON(r, &payload); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	budget, err := payload.toBudget(projectID)
	if err != nil {
		FromError(err).Write(w)
		return
	}

	if _, err := s.store.GetProject(r.Context(), projectID); err != nil {
		FromError(err).Write(w)
		return
	}

	if _, err := s.store.UpsertBudget(r.Context(), budget); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Upsert budget failed", applog.FieldProjectID, projectID, applog.FieldError, err)
		FromError(err).Write(w)
		return
	}

	s.invalidateProject(r.Context(), notify.CollectionBudget, projectID)
	NewJSONResponse().Body(toBudgetResponse(budget)).Write(w)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	if err := s.store.DeleteBudget(r.Context(), projectID); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Delete budget failed", applog.FieldProjectID, projectID, applog.FieldError, err)
		FromError(err).Write(w)
		return
	}

	s.invalidateProject(r.Context(), notify.CollectionBudget, projectID)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
