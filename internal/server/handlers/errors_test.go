package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kennan/folio/internal/server/dto"
	"github.com/kennan/folio/internal/storage/content"
	"github.com/kennan/folio/internal/storage/entity"
	"github.com/kennan/folio/internal/storage/identity"
	"github.com/kennan/folio/internal/storage/uploads"
)

func TestWriteErrorResponse(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   dto.ErrorCode
	}{
		{
			name:           "api error passes through",
			err:            dto.NotFound("page"),
			expectedStatus: http.StatusNotFound,
			expectedCode:   dto.ErrorCodeNotFound,
		},
		{
			name:           "unauthorized",
			err:            identity.ErrUnauthorized,
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   dto.ErrorCodeUnauthorized,
		},
		{
			name:           "missing project",
			err:            fmt.Errorf("get villa: %w", content.ErrNotFound),
			expectedStatus: http.StatusNotFound,
			expectedCode:   dto.ErrorCodeNotFound,
		},
		{
			name:           "invalid project",
			err:            fmt.Errorf("%w: %w", content.ErrValidation, &entity.ValidationError{Problems: []string{"name is required"}}),
			expectedStatus: http.StatusBadRequest,
			expectedCode:   dto.ErrorCodeValidationFailed,
		},
		{
			name:           "too large",
			err:            fmt.Errorf("%w: big.jpg", uploads.ErrTooLarge),
			expectedStatus: http.StatusBadRequest,
			expectedCode:   dto.ErrorCodeValidationFailed,
		},
		{
			name:           "not an image",
			err:            uploads.ErrNotImage,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   dto.ErrorCodeValidationFailed,
		},
		{
			name:           "storage",
			err:            fmt.Errorf("%w: disk full", content.ErrStorageIO),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   dto.ErrorCodeStorageError,
		},
		{
			name:           "anything else",
			err:            errors.New("boom"),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   dto.ErrorCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeErrorResponse(w, tt.err)

			if w.Code != tt.expectedStatus {
				t.Errorf("status code = %d, want %d", w.Code, tt.expectedStatus)
			}
			if contentType := w.Header().Get("Content-Type"); contentType != "application/json" {
				t.Errorf("Content-Type = %q, want %q", contentType, "application/json")
			}
			var resp dto.ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if resp.Error.Code != tt.expectedCode {
				t.Errorf("error code = %q, want %q", resp.Error.Code, tt.expectedCode)
			}
		})
	}
}

func TestAPIErrorValidationProblems(t *testing.T) {
	err := APIError(fmt.Errorf("%w: %w", content.ErrValidation, &entity.ValidationError{Problems: []string{"a", "b"}}))
	var apiErr *dto.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("APIError() = %T, want *dto.APIError", err)
	}
	problems, ok := apiErr.Details()[dto.DetailProblems].([]string)
	if !ok || len(problems) != 2 {
		t.Errorf("problems = %v", apiErr.Details()[dto.DetailProblems])
	}
	if APIError(nil) != nil {
		t.Error("APIError(nil) != nil")
	}
}

func TestSessionCookies(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	c := NewSessionCookie("tok", exp, true)
	if c.Name != SessionCookie || c.Value != "tok" || !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteStrictMode || c.Path != "/" {
		t.Errorf("NewSessionCookie = %+v", c)
	}
	if c.MaxAge <= 0 || c.MaxAge > 3600 {
		t.Errorf("MaxAge = %d", c.MaxAge)
	}
	if c := ClearSessionCookie(false); c.MaxAge >= 0 || c.Secure {
		t.Errorf("ClearSessionCookie = %+v", c)
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := TokenFromRequest(r); got != "" {
		t.Errorf("empty request token = %q", got)
	}
	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "cookie"})
	if got := TokenFromRequest(r); got != "cookie" {
		t.Errorf("cookie token = %q", got)
	}
	r.Header.Set("Authorization", "Bearer abc")
	if got := TokenFromRequest(r); got != "abc" {
		t.Errorf("bearer takes precedence, got %q", got)
	}
	r.Header.Set("Authorization", "Bearer  ")
	if got := TokenFromRequest(r); got != "cookie" {
		t.Errorf("blank bearer should fall back to the cookie, got %q", got)
	}
}
