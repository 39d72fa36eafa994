package handlers

import (
	"context"
	"log/slog"

	"github.com/kennan/folio/internal/server/dto"
	"github.com/kennan/folio/internal/storage/content"
)

// HealthHandler reports liveness and whether the project store answers.
type HealthHandler struct {
	version  string
	projects *content.ProjectService
}

func NewHealthHandler(version string, projects *content.ProjectService) *HealthHandler {
	return &HealthHandler{version: version, projects: projects}
}

// Health never fails: a store error degrades the status instead.
func (h *HealthHandler) Health(ctx context.Context, req *dto.HealthRequest) (*dto.HealthResponse, error) {
	resp := &dto.HealthResponse{Status: "ok", Version: h.version}
	list, err := h.projects.List(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Health check could not list projects", "err", err)
		resp.Status = "degraded"
		return resp, nil
	}
	resp.Projects = len(list)
	return resp, nil
}
