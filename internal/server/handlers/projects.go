package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/kennan/folio/internal/server/dto"
	"github.com/kennan/folio/internal/storage/content"
	"github.com/kennan/folio/internal/storage/entity"
	"github.com/kennan/folio/internal/storage/identity"
)

const defaultHistoryLimit = 50

// projectSchema is computed once; the Project type never changes at runtime.
var projectSchema = sync.OnceValue(func() *jsonschema.Schema {
	r := jsonschema.Reflector{DoNotReference: true, AllowAdditionalProperties: false}
	s := r.Reflect(&entity.Project{})
	s.Title = "Project"
	return s
})

// ProjectHandler handles project CRUD requests.
type ProjectHandler struct {
	projects *content.ProjectService
	history  *content.GitHistory
}

// NewProjectHandler creates a new project handler. history may be nil.
func NewProjectHandler(projects *content.ProjectService, history *content.GitHistory) *ProjectHandler {
	return &ProjectHandler{projects: projects, history: history}
}

// List returns all projects in stored order, optionally filtered by category.
func (h *ProjectHandler) List(ctx context.Context, req *dto.ListProjectsRequest) (*[]*dto.ProjectResponse, error) {
	projects, err := h.projects.List(ctx)
	if err != nil {
		return nil, APIError(err)
	}
	out := make([]*dto.ProjectResponse, 0, len(projects))
	for _, p := range projects {
		if req.Category == "" || string(p.Category) == req.Category {
			out = append(out, p)
		}
	}
	return &out, nil
}

// Get returns one project.
func (h *ProjectHandler) Get(ctx context.Context, req *dto.GetProjectRequest) (*dto.ProjectResponse, error) {
	p, err := h.projects.Get(ctx, req.ID)
	if err != nil {
		return nil, APIError(err)
	}
	return p, nil
}

// Schema returns the JSON schema of a project.
func (h *ProjectHandler) Schema(ctx context.Context, req *dto.ProjectSchemaRequest) (*jsonschema.Schema, error) {
	return projectSchema(), nil
}

// Create stores a new project.
func (h *ProjectHandler) Create(ctx context.Context, _ *identity.Session, req *dto.CreateProjectRequest) (*dto.CreateProjectResponse, error) {
	p, err := h.projects.Create(ctx, &req.Project)
	if err != nil {
		return nil, APIError(err)
	}
	return &dto.CreateProjectResponse{Project: *p}, nil
}

// Update applies a partial update. The id never changes.
func (h *ProjectHandler) Update(ctx context.Context, _ *identity.Session, req *dto.UpdateProjectRequest) (*dto.ProjectResponse, error) {
	p, err := h.projects.Update(ctx, req.ID, &req.Patch)
	if err != nil {
		return nil, APIError(err)
	}
	return p, nil
}

// Delete removes a project.
func (h *ProjectHandler) Delete(ctx context.Context, _ *identity.Session, req *dto.DeleteProjectRequest) (*dto.SuccessResponse, error) {
	if err := h.projects.Delete(ctx, req.ID); err != nil {
		return nil, APIError(err)
	}
	return &dto.SuccessResponse{Success: true}, nil
}

// History lists the recorded changes to the project store.
func (h *ProjectHandler) History(ctx context.Context, _ *identity.Session, req *dto.ProjectHistoryRequest) (*dto.ProjectHistoryResponse, error) {
	if h.history == nil || len(h.history.Files) == 0 {
		return nil, dto.NotImplemented("history")
	}
	limit := req.Limit
	if limit == 0 {
		limit = defaultHistoryLimit
	}
	commits, err := h.history.Repo.History(ctx, h.history.Files[0], limit)
	if err != nil {
		return nil, dto.InternalWithError("failed to read history", err)
	}
	out := &dto.ProjectHistoryResponse{History: make([]dto.Commit, 0, len(commits))}
	for _, c := range commits {
		out.History = append(out.History, dto.Commit{
			Hash:      c.Hash,
			Message:   c.Message,
			Author:    c.Author,
			Timestamp: c.AuthorDate.UTC().Format(time.RFC3339),
		})
	}
	return out, nil
}
