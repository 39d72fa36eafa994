// Provides helper functions for writing error responses.

package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kennan/folio/internal/server/dto"
	"github.com/kennan/folio/internal/storage/content"
	"github.com/kennan/folio/internal/storage/entity"
	"github.com/kennan/folio/internal/storage/identity"
	"github.com/kennan/folio/internal/storage/uploads"
)

// APIError maps a service error to the API error taxonomy. Errors already
// carrying a status are returned unchanged.
func APIError(err error) error {
	if err == nil {
		return nil
	}
	var ews dto.ErrorWithStatus
	if errors.As(err, &ews) {
		return err
	}
	switch {
	case errors.Is(err, identity.ErrUnauthorized):
		return dto.Unauthorized()
	case errors.Is(err, content.ErrNotFound):
		return dto.NotFound("project")
	case errors.Is(err, content.ErrValidation):
		var ve *entity.ValidationError
		if errors.As(err, &ve) {
			return dto.Invalid(err.Error(), ve.Problems)
		}
		return dto.BadRequest(err.Error())
	case errors.Is(err, uploads.ErrNoFiles), errors.Is(err, uploads.ErrTooLarge), errors.Is(err, uploads.ErrNotImage):
		return dto.BadRequest(err.Error())
	case errors.Is(err, content.ErrStorageIO):
		return dto.StorageError(err)
	}
	return dto.InternalWithError("internal error", err)
}

// writeErrorResponse writes an APIError as a JSON response.
// Use this in raw http.HandlerFunc handlers that don't use server.Wrap.
func writeErrorResponse(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	errorCode := dto.ErrorCodeInternal
	message := "internal error"
	var details map[string]any

	var ewsErr dto.ErrorWithStatus
	if errors.As(APIError(err), &ewsErr) {
		statusCode = ewsErr.StatusCode()
		errorCode = ewsErr.Code()
		message = ewsErr.Error()
		details = ewsErr.Details()
	}
	writeJSON(w, statusCode, dto.ErrorResponse{
		Error:   dto.ErrorDetails{Code: errorCode, Message: message},
		Details: details,
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "err", err)
	}
}
