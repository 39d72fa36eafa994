package dto

import (
	"github.com/kennan/folio/internal/storage/entity"
)

// Validatable is the constraint the Wrap functions put on request types;
// Validate runs after binding, before the handler.
type Validatable interface {
	Validate() error
}

// --- Auth ---

// AuthActionLogout is the AuthRequest action that ends the session.
const AuthActionLogout = "logout"

// AuthRequest logs in with a password, or logs out when Action is "logout".
type AuthRequest struct {
	Password string `json:"password,omitempty"`
	Action   string `json:"action,omitempty"`
}

// Validate validates the auth request fields.
func (r *AuthRequest) Validate() error {
	if r.Action != "" && r.Action != AuthActionLogout {
		return InvalidField("action", "must be empty or \"logout\"")
	}
	return nil
}

// AuthStatusRequest asks whether the caller holds a valid session.
type AuthStatusRequest struct{}

// Validate is a no-op for AuthStatusRequest.
func (r *AuthStatusRequest) Validate() error {
	return nil
}

// --- Projects ---

// ListProjectsRequest lists projects, optionally filtered by category.
type ListProjectsRequest struct {
	Category string `query:"category"`
}

// Validate validates the list request fields.
func (r *ListProjectsRequest) Validate() error {
	if r.Category == "" {
		return nil
	}
	c, err := entity.ParseCategory(r.Category)
	if err != nil {
		return InvalidField("category", err.Error())
	}
	r.Category = string(c)
	return nil
}

// GetProjectRequest fetches one project.
type GetProjectRequest struct {
	ID string `path:"id"`
}

// Validate validates the get request fields.
func (r *GetProjectRequest) Validate() error {
	if r.ID == "" {
		return MissingField("id")
	}
	return nil
}

// ProjectSchemaRequest asks for the JSON schema of a project.
type ProjectSchemaRequest struct{}

// Validate is a no-op for ProjectSchemaRequest.
func (r *ProjectSchemaRequest) Validate() error {
	return nil
}

// CreateProjectRequest is a project draft. A client supplied id is ignored;
// the id is derived from the name.
type CreateProjectRequest struct {
	entity.Project
}

// Validate validates the create request fields.
func (r *CreateProjectRequest) Validate() error {
	if r.Name == "" {
		return MissingField("name")
	}
	return nil
}

// UpdateProjectRequest is a partial update. An id in the body is accepted and
// ignored: the path wins.
type UpdateProjectRequest struct {
	ID     string `path:"id" json:"-"`
	BodyID string `json:"id,omitempty"`
	entity.Patch
}

// Validate validates the update request fields.
func (r *UpdateProjectRequest) Validate() error {
	if r.ID == "" {
		return MissingField("id")
	}
	if r.Name != nil && *r.Name == "" {
		return InvalidField("name", "must not be empty")
	}
	return nil
}

// DeleteProjectRequest deletes one project.
type DeleteProjectRequest struct {
	ID string `path:"id"`
}

// Validate validates the delete request fields.
func (r *DeleteProjectRequest) Validate() error {
	if r.ID == "" {
		return MissingField("id")
	}
	return nil
}

// ProjectHistoryRequest lists the recorded changes to the project store.
type ProjectHistoryRequest struct {
	Limit int `query:"limit"`
}

// Validate validates the history request fields.
func (r *ProjectHistoryRequest) Validate() error {
	if r.Limit < 0 {
		return InvalidField("limit", "must be non-negative")
	}
	return nil
}

// --- Misc ---

// HealthRequest is a request to check server health.
type HealthRequest struct{}

// Validate is a no-op for HealthRequest.
func (r *HealthRequest) Validate() error {
	return nil
}
