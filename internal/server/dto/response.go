package dto

import (
	"net/http"

	"github.com/kennan/folio/internal/storage/entity"
)

// StatusCoder is implemented by responses whose status is not 200 OK.
type StatusCoder interface {
	HTTPStatus() int
}

// CookieSetter is implemented by responses that set cookies.
type CookieSetter interface {
	Cookies() []*http.Cookie
}

// SuccessResponse is a simple success response.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// AuthResponse is the result of a login or logout. The session travels in a
// cookie, never in the body.
type AuthResponse struct {
	Success bool `json:"success"`
	cookie  *http.Cookie
}

// NewAuthResponse returns a successful response setting c.
func NewAuthResponse(c *http.Cookie) *AuthResponse {
	return &AuthResponse{Success: true, cookie: c}
}

// Cookies implements CookieSetter.
func (r *AuthResponse) Cookies() []*http.Cookie {
	if r.cookie == nil {
		return nil
	}
	return []*http.Cookie{r.cookie}
}

// AuthStatusResponse reports whether the caller holds a valid session.
type AuthStatusResponse struct {
	Authenticated bool `json:"authenticated"`
}

// ProjectResponse is a project as returned by the API.
type ProjectResponse = entity.Project

// CreateProjectResponse is the stored project, sent with 201 Created.
type CreateProjectResponse struct {
	entity.Project
}

// HTTPStatus implements StatusCoder.
func (r *CreateProjectResponse) HTTPStatus() int {
	return http.StatusCreated
}

// UploadResponse lists the public URLs of stored files, in upload order.
type UploadResponse struct {
	URLs []string `json:"urls"`
}

// HTTPStatus implements StatusCoder.
func (r *UploadResponse) HTTPStatus() int {
	return http.StatusCreated
}

// HealthResponse reports whether the server can read its projects.
type HealthResponse struct {
	Status   string `json:"status"` // "ok" or "degraded"
	Version  string `json:"version"`
	Projects int    `json:"projects"`
}

// Commit is one recorded change to the project store.
type Commit struct {
	Hash      string `json:"hash"`
	Message   string `json:"message"`
	Author    string `json:"author"`
	Timestamp string `json:"timestamp"`
}

// ProjectHistoryResponse lists recorded changes, newest first.
type ProjectHistoryResponse struct {
	History []Commit `json:"history"`
}
