package http

import (
	"net/http"
	"time"

	"obras/internal/core"
	applog "obras/internal/log"
	"obras/internal/notify"
	"obras/internal/services"
)

type projectResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

func toProjectResponse(p core.Project) projectResponse {
	return projectResponse{
		ID:        p.ID,
		Name:      p.Name,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "List projects failed", applog.FieldError, err)
		FromError(err).Write(w)
		return
	}

	out := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, toProjectResponse(p))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var payload projectPayload
	if err := decodeJSON(r, &payload); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	project := core.Project{Name: payload.Name}
	if err := project.Validate(); err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	id, err := s.store.AddProject(r.Context(), project)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Create project failed", applog.FieldError, err)
		FromError(err).Write(w)
		return
	}

	s.invalidateProject(r.Context(), notify.CollectionProjects, id)

	created, err := s.store.GetProject(r.Context(), id)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Reload created project failed", applog.FieldProjectID, id, applog.FieldError, err)
		FromError(err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(toProjectResponse(created)).Write(w)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.store.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		FromError(err).Write(w)
		return
	}
	NewJSONResponse().Body(toProjectResponse(project)).Write(w)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := services.CascadeDeleteProject(r.Context(), s.store, id); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Cascade delete failed", applog.FieldProjectID, id, applog.FieldError, err)
		FromError(err).Write(w)
		return
	}

	s.invalidateProject(r.Context(), notify.CollectionProjects, id)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
