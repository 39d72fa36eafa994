// Package dto defines the request and response types of the JSON API and its
// error taxonomy.
//
// Request types carry path/query/json struct tags for parameter binding and
// implement Validatable. Project payloads reuse entity.Project directly: the
// JSON shape of a project is the persisted shape.
//
// Every failure is an APIError: an ErrorCode, which fixes the HTTP status, a
// message and optional details.
package dto

import (
	"fmt"
	"net/http"
)

// ErrorCode classifies a failure for API clients.
type ErrorCode string

const (
	ErrorCodeValidationFailed  ErrorCode = "VALIDATION_FAILED"
	ErrorCodeMissingField      ErrorCode = "MISSING_FIELD"
	ErrorCodePayloadTooLarge   ErrorCode = "PAYLOAD_TOO_LARGE"
	ErrorCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrorCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrorCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrorCodeStorageError      ErrorCode = "STORAGE_ERROR"
	ErrorCodeInternal          ErrorCode = "INTERNAL_ERROR"
	ErrorCodeNotImplemented    ErrorCode = "NOT_IMPLEMENTED" // feature disabled on this server
)

// Status returns the HTTP status a response with this code is served with.
func (c ErrorCode) Status() int {
	switch c {
	case ErrorCodeValidationFailed, ErrorCodeMissingField:
		return http.StatusBadRequest
	case ErrorCodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrorCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrorCodeNotFound:
		return http.StatusNotFound
	case ErrorCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case ErrorCodeNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// Detail keys set by the constructors below.
const (
	DetailField      = "field"
	DetailProblems   = "problems"
	DetailMaxBytes   = "max_bytes"
	DetailRetryAfter = "retry_after" // seconds, also sent as Retry-After
)

// ErrorDetails is the error member of an error response.
type ErrorDetails struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error   ErrorDetails   `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorWithStatus is an error that knows how it is served.
type ErrorWithStatus interface {
	Error() string
	StatusCode() int
	Code() ErrorCode
	Details() map[string]any
}

// APIError is the ErrorWithStatus returned by handlers.
type APIError struct {
	code    ErrorCode
	message string
	details map[string]any
	cause   error
}

// Errorf returns an APIError with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *APIError {
	return &APIError{code: code, message: fmt.Sprintf(format, args...), details: map[string]any{}}
}

// WithDetail sets one detail and returns e.
func (e *APIError) WithDetail(key string, value any) *APIError {
	if e.details == nil {
		e.details = map[string]any{}
	}
	e.details[key] = value
	return e
}

// Wrap records the underlying error and returns e.
func (e *APIError) Wrap(err error) *APIError {
	e.cause = err
	return e
}

func (e *APIError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *APIError) StatusCode() int         { return e.code.Status() }
func (e *APIError) Code() ErrorCode         { return e.code }
func (e *APIError) Details() map[string]any { return e.details }
func (e *APIError) Unwrap() error           { return e.cause }

// NotFound reports a missing resource, e.g. NotFound("project").
func NotFound(resource string) *APIError {
	return Errorf(ErrorCodeNotFound, "%s not found", resource)
}

func BadRequest(message string) *APIError {
	return Errorf(ErrorCodeValidationFailed, "%s", message)
}

// Invalid reports a rejected project or draft with one entry per problem.
func Invalid(message string, problems []string) *APIError {
	return BadRequest(message).WithDetail(DetailProblems, problems)
}

func MissingField(field string) *APIError {
	return Errorf(ErrorCodeMissingField, "Missing required field: %s", field).WithDetail(DetailField, field)
}

func InvalidField(field, reason string) *APIError {
	return Errorf(ErrorCodeValidationFailed, "Invalid field %s: %s", field, reason).WithDetail(DetailField, field)
}

func Unauthorized() *APIError {
	return Errorf(ErrorCodeUnauthorized, "Unauthorized")
}

func Internal(message string) *APIError {
	return Errorf(ErrorCodeInternal, "%s", message)
}

func InternalWithError(message string, err error) *APIError {
	return Internal(message).Wrap(err)
}

// StorageError reports a failed read or write of persisted state.
func StorageError(err error) *APIError {
	return Errorf(ErrorCodeStorageError, "storage error").Wrap(err)
}

// NotImplemented reports a feature this server runs without, like history.
func NotImplemented(feature string) *APIError {
	return Errorf(ErrorCodeNotImplemented, "%s is not enabled", feature)
}

// PayloadTooLarge reports a request body over limit bytes.
func PayloadTooLarge(limit int64) *APIError {
	return Errorf(ErrorCodePayloadTooLarge, "request body too large").WithDetail(DetailMaxBytes, limit)
}

// RateLimitExceeded reports a throttled client that may retry in retryAfter
// seconds.
func RateLimitExceeded(retryAfter int) *APIError {
	return Errorf(ErrorCodeRateLimitExceeded, "rate limit exceeded, retry after %ds", retryAfter).
		WithDetail(DetailRetryAfter, retryAfter)
}
