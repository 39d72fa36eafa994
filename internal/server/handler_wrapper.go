// Provides middleware for standardizing HTTP handlers.

package server

import (
	"bytes"
	"context"
	"encoding"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"

	"github.com/kennan/folio/internal/server/dto"
	"github.com/kennan/folio/internal/server/handlers"
	"github.com/kennan/folio/internal/server/ratelimit"
	"github.com/kennan/folio/internal/server/reqctx"
	"github.com/kennan/folio/internal/storage/identity"
)

// addRequestMetadataToContext adds client IP, User-Agent and the session
// token, if any, to the context.
func addRequestMetadataToContext(ctx context.Context, r *http.Request) context.Context {
	return reqctx.With(ctx, reqctx.FromRequest(r, handlers.TokenFromRequest(r)))
}

// checkRateLimit charges the request to tier and writes the 429 response
// when the budget is spent. Returns the writer to use from then on and
// whether the request should proceed.
func checkRateLimit(w http.ResponseWriter, tier *ratelimit.Tier, identifier string) (http.ResponseWriter, bool) {
	w, result, ok := ratelimit.Check(w, tier, identifier)
	if !ok {
		writeRateLimitError(w, result)
	}
	return w, ok
}

// authenticate verifies the session token of r.
func authenticate(ctx context.Context, r *http.Request, gate *identity.Gate) (*identity.Session, context.Context, error) {
	session, err := gate.Verify(handlers.TokenFromRequest(r))
	if err != nil {
		return nil, ctx, err
	}
	return session, reqctx.WithSession(ctx, session.ID), nil
}

// readAndDecodeBody reads the request body with size limit and decodes JSON into input.
// Returns false if an error occurred and was written to the response.
func readAndDecodeBody[In any](ctx context.Context, w http.ResponseWriter, r *http.Request, input *In, cfg *handlers.Config) bool {
	if cfg != nil && cfg.Quotas.MaxRequestBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, cfg.Quotas.MaxRequestBodyBytes)
	}

	body, err := io.ReadAll(r.Body)
	if err2 := r.Body.Close(); err == nil {
		err = err2
	}
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			apiErr := dto.PayloadTooLarge(maxBytesErr.Limit)
			writeErrorResponseWithCode(w, apiErr.StatusCode(), apiErr.Code(), apiErr.Error(), apiErr.Details())
			return false
		}
		slog.ErrorContext(ctx, "Failed to read request body", "err", err)
		writeBadRequestError(w, "Failed to read request body")
		return false
	}

	if len(bytes.TrimSpace(body)) > 0 {
		d := json.NewDecoder(bytes.NewReader(body))
		d.DisallowUnknownFields()
		if err := d.Decode(input); err != nil {
			slog.ErrorContext(ctx, "Failed to decode request body", "err", err)
			writeBadRequestError(w, "Invalid request body")
			return false
		}
	}
	return true
}

// decodeInput populates a request from the body, path and query, then
// validates it. Returns false if an error was written to the response.
func decodeInput[In any, PtrIn interface {
	*In
	dto.Validatable
}](ctx context.Context, w http.ResponseWriter, r *http.Request, cfg *handlers.Config) (PtrIn, bool) {
	input := new(In)
	if !readAndDecodeBody(ctx, w, r, input, cfg) {
		return nil, false
	}
	populatePathParams(r, input)
	populateQueryParams(r, input)
	if err := PtrIn(input).Validate(); err != nil {
		handleValidationError(ctx, w, err)
		return nil, false
	}
	return PtrIn(input), true
}

// writeJSONResponse writes a JSON response or error response.
func writeJSONResponse[Out any](ctx context.Context, w http.ResponseWriter, output *Out, err error) {
	if err != nil {
		statusCode := http.StatusInternalServerError
		errorCode := dto.ErrorCodeInternal
		details := make(map[string]any)

		var ewsErr dto.ErrorWithStatus
		if errors.As(err, &ewsErr) {
			statusCode = ewsErr.StatusCode()
			errorCode = ewsErr.Code()
			if d := ewsErr.Details(); d != nil {
				details = d
			}
		}

		if statusCode >= http.StatusInternalServerError {
			slog.ErrorContext(ctx, "Handler error", "err", err, "statusCode", statusCode, "code", errorCode)
		} else {
			slog.InfoContext(ctx, "Handler error", "err", err, "statusCode", statusCode, "code", errorCode)
		}
		writeErrorResponseWithCode(w, statusCode, errorCode, err.Error(), details)
		return
	}

	statusCode := http.StatusOK
	if sc, ok := any(output).(dto.StatusCoder); ok {
		statusCode = sc.HTTPStatus()
	}
	if cs, ok := any(output).(dto.CookieSetter); ok {
		for _, c := range cs.Cookies() {
			http.SetCookie(w, c)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(output); err != nil {
		slog.ErrorContext(ctx, "Failed to encode response", "err", err)
	}
}

// Wrap wraps a public handler function to work as an http.Handler.
// The function must have signature: func(context.Context, *In) (*Out, error)
// where In can be unmarshalled from JSON.
// Path parameters are extracted by tagging struct fields with `path:"name"`,
// query parameters with `query:"name"`.
// *In must implement dto.Validatable.
//
// Example:
//
//	type GetProjectRequest struct {
//	    ID string `path:"id"`
//	}
//
//	func (h *Handler) Get(ctx context.Context, req *GetProjectRequest) (*Response, error)
func Wrap[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](fn func(context.Context, PtrIn) (*Out, error), cfg *handlers.Config, limiters *ratelimit.Limiters) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := addRequestMetadataToContext(r.Context(), r)

		var ok bool
		if tier := limiters.MatchUnauth(r.Method, r.URL.Path); tier != nil {
			if w, ok = checkRateLimit(w, tier, reqctx.From(ctx).ClientIP); !ok {
				return
			}
		}

		input, ok := decodeInput[In, PtrIn](ctx, w, r, cfg)
		if !ok {
			return
		}
		output, err := fn(ctx, input)
		writeJSONResponse(ctx, w, output, err)
	})
}

// WrapAuth wraps an admin handler function to work as an http.Handler.
// The function must have signature:
// func(context.Context, *identity.Session, *In) (*Out, error)
// A missing, expired or revoked session is rejected with 401 before the body
// is read.
func WrapAuth[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](
	fn func(context.Context, *identity.Session, PtrIn) (*Out, error),
	svc *handlers.Services,
	cfg *handlers.Config,
	limiters *ratelimit.Limiters,
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := addRequestMetadataToContext(r.Context(), r)

		session, ctx, err := authenticate(ctx, r, svc.Gate)
		if err != nil {
			writeUnauthorized(ctx, w)
			return
		}

		var ok bool
		if tier := limiters.MatchAuth(r.Method, r.URL.Path); tier != nil {
			if w, ok = checkRateLimit(w, tier, session.ID.String()); !ok {
				return
			}
		}

		input, ok := decodeInput[In, PtrIn](ctx, w, r, cfg)
		if !ok {
			return
		}
		output, err := fn(ctx, session, input)
		writeJSONResponse(ctx, w, output, err)
	})
}

// RequireAuth guards a raw handler behind a valid admin session. Use it for
// endpoints that do not take JSON, like multipart uploads.
func RequireAuth(next http.Handler, gate *identity.Gate, limiters *ratelimit.Limiters) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := addRequestMetadataToContext(r.Context(), r)
		session, ctx, err := authenticate(ctx, r, gate)
		if err != nil {
			writeUnauthorized(ctx, w)
			return
		}
		var ok bool
		if tier := limiters.MatchAuth(r.Method, r.URL.Path); tier != nil {
			if w, ok = checkRateLimit(w, tier, session.ID.String()); !ok {
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// populatePathParams extracts path parameters from the request and populates
// string fields tagged with `path:"paramName"`.
func populatePathParams(r *http.Request, input any) {
	elem, ok := structElem(input)
	if !ok {
		return
	}
	typ := elem.Type()
	for i := range typ.NumField() {
		field := typ.Field(i)
		tag := field.Tag.Get("path")
		if tag == "" || field.Type.Kind() != reflect.String {
			continue
		}
		if v := r.PathValue(tag); v != "" {
			elem.Field(i).SetString(v)
		}
	}
}

// populateQueryParams extracts query parameters from the request and populates
// struct fields tagged with `query:"paramName"`.
func populateQueryParams(r *http.Request, input any) {
	elem, ok := structElem(input)
	if !ok {
		return
	}
	query := r.URL.Query()
	typ := elem.Type()
	for i := range typ.NumField() {
		field := typ.Field(i)
		tag := field.Tag.Get("query")
		if tag == "" {
			continue
		}
		paramValue := query.Get(tag)
		if paramValue == "" {
			continue
		}
		fieldVal := elem.Field(i)
		switch field.Type.Kind() {
		case reflect.String:
			fieldVal.SetString(paramValue)
		case reflect.Int:
			if intVal, err := strconv.Atoi(paramValue); err == nil {
				fieldVal.SetInt(int64(intVal))
			}
		default:
			if fieldVal.CanAddr() {
				if unmarshaler, ok := fieldVal.Addr().Interface().(encoding.TextUnmarshaler); ok {
					_ = unmarshaler.UnmarshalText([]byte(paramValue))
				}
			}
		}
	}
}

func structElem(input any) (reflect.Value, bool) {
	val := reflect.ValueOf(input)
	if val.Kind() != reflect.Pointer {
		return reflect.Value{}, false
	}
	elem := val.Elem()
	return elem, elem.Kind() == reflect.Struct
}

// handleValidationError handles a validation error from a request's Validate method.
func handleValidationError(ctx context.Context, w http.ResponseWriter, err error) {
	statusCode := http.StatusBadRequest
	errorCode := dto.ErrorCodeValidationFailed
	details := make(map[string]any)

	var ewsErr dto.ErrorWithStatus
	if errors.As(err, &ewsErr) {
		statusCode = ewsErr.StatusCode()
		errorCode = ewsErr.Code()
		if d := ewsErr.Details(); d != nil {
			details = d
		}
	}

	slog.InfoContext(ctx, "Validation error", "err", err, "statusCode", statusCode, "code", errorCode)
	writeErrorResponseWithCode(w, statusCode, errorCode, err.Error(), details)
}

func writeUnauthorized(ctx context.Context, w http.ResponseWriter) {
	slog.InfoContext(ctx, "Rejected unauthenticated request", "ip", reqctx.From(ctx).ClientIP)
	apiErr := dto.Unauthorized()
	writeErrorResponseWithCode(w, apiErr.StatusCode(), apiErr.Code(), apiErr.Error(), nil)
}

// writeBadRequestError writes a 400 Bad Request error response as JSON.
func writeBadRequestError(w http.ResponseWriter, message string) {
	writeErrorResponseWithCode(w, http.StatusBadRequest, dto.ErrorCodeValidationFailed, message, nil)
}

// writeErrorResponseWithCode writes a detailed error response as JSON with code and details.
func writeErrorResponseWithCode(w http.ResponseWriter, statusCode int, code dto.ErrorCode, message string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	if secs, ok := details[dto.DetailRetryAfter].(int); ok && statusCode == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	w.WriteHeader(statusCode)

	response := dto.ErrorResponse{
		Error: dto.ErrorDetails{
			Code:    code,
			Message: message,
		},
		Details: details,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode error response", "err", err)
	}
}

// writeRateLimitError writes a 429 rate limit error response.
func writeRateLimitError(w http.ResponseWriter, result ratelimit.Result) {
	apiErr := dto.RateLimitExceeded(result.RetryAfterSeconds())
	writeErrorResponseWithCode(w, apiErr.StatusCode(), apiErr.Code(), apiErr.Error(), apiErr.Details())
}
