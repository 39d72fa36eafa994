// Package apiclient talks to a folio server over its JSON API.
//
// The session token is sent both as the admin_session cookie and as an
// "Authorization: Bearer" header; the server accepts either.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kennan/folio/internal/server/dto"
	"github.com/kennan/folio/internal/server/handlers"
	"github.com/kennan/folio/internal/storage/entity"
)

// maxImageBytes caps a fetched scene image.
const maxImageBytes = 64 << 20

// ErrNoSession is returned by Login when the server answered without a
// session cookie.
var ErrNoSession = errors.New("server did not return a session")

// Error is an API error response.
type Error struct {
	Status  int
	Code    dto.ErrorCode
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client is a folio API client.
type Client struct {
	base  *url.URL
	http  *http.Client
	token string
}

// New creates a client for the server at baseURL. token may be empty for
// public endpoints.
func New(baseURL, token string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}
	return &Client{
		base:  u,
		http:  &http.Client{Timeout: time.Minute},
		token: token,
	}, nil
}

// Token returns the session token in use.
func (c *Client) Token() string {
	return c.token
}

// URL resolves a path or absolute URL against the server base URL.
func (c *Client) URL(ref string) string {
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return c.base.ResolveReference(r).String()
}

// ProjectURL returns the public page of a project.
func (c *Client) ProjectURL(id string) string {
	return c.URL("/projects/" + url.PathEscape(id))
}

// Login exchanges the admin password for a session token and keeps it for
// later calls.
func (c *Client) Login(ctx context.Context, password string) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/auth", dto.AuthRequest{Password: password})
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if err := checkResponse(resp); err != nil {
		return "", err
	}
	for _, ck := range resp.Cookies() {
		if ck.Name == handlers.SessionCookie && ck.Value != "" {
			c.token = ck.Value
			return ck.Value, nil
		}
	}
	return "", ErrNoSession
}

// Logout revokes the session.
func (c *Client) Logout(ctx context.Context) error {
	var out dto.SuccessResponse
	if err := c.call(ctx, http.MethodPost, "/api/auth", dto.AuthRequest{Action: dto.AuthActionLogout}, &out); err != nil {
		return err
	}
	c.token = ""
	return nil
}

// Authenticated reports whether the token is still accepted.
func (c *Client) Authenticated(ctx context.Context) (bool, error) {
	var out dto.AuthStatusResponse
	if err := c.call(ctx, http.MethodGet, "/api/auth", nil, &out); err != nil {
		return false, err
	}
	return out.Authenticated, nil
}

// List returns the projects, optionally restricted to a category.
func (c *Client) List(ctx context.Context, category string) ([]*entity.Project, error) {
	path := "/api/projects"
	if category != "" {
		path += "?category=" + url.QueryEscape(category)
	}
	var out []*entity.Project
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one project.
func (c *Client) Get(ctx context.Context, id string) (*entity.Project, error) {
	var out entity.Project
	if err := c.call(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create stores a new project. The server derives the id from the name.
func (c *Client) Create(ctx context.Context, p *entity.Project) (*entity.Project, error) {
	var out entity.Project
	if err := c.call(ctx, http.MethodPost, "/api/projects", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update applies a partial update to a project.
func (c *Client) Update(ctx context.Context, id string, patch *entity.Patch) (*entity.Project, error) {
	var out entity.Project
	if err := c.call(ctx, http.MethodPut, "/api/projects/"+url.PathEscape(id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a project.
func (c *Client) Delete(ctx context.Context, id string) error {
	var out dto.SuccessResponse
	return c.call(ctx, http.MethodDelete, "/api/projects/"+url.PathEscape(id), nil, &out)
}

// Schema returns the JSON schema of a project.
func (c *Client) Schema(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.call(ctx, http.MethodGet, "/api/projects/schema", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Fetch downloads an image. Relative references such as /uploads/... are
// resolved against the server.
func (c *Client) Fetch(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(ref), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Status: resp.StatusCode}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("%s: image larger than %d bytes", ref, maxImageBytes)
	}
	return data, nil
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	resp, err := c.do(ctx, method, path, in)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if err := checkResponse(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.http.Do(req)
}

// checkResponse turns a non-2xx response into an *Error.
func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	apiErr := &Error{Status: resp.StatusCode}
	var body dto.ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if json.Unmarshal(data, &body) == nil {
		apiErr.Code = body.Error.Code
		apiErr.Message = body.Error.Message
		apiErr.Details = body.Details
	}
	return apiErr
}
