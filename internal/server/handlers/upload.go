package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kennan/folio/internal/server/dto"
	"github.com/kennan/folio/internal/storage/uploads"
)

// maxMemory is how much of a multipart form is kept in memory; the rest is
// spooled to temporary files.
const maxMemory = 32 << 20

// UploadHandler stores image uploads.
type UploadHandler struct {
	store    *uploads.Store
	maxBatch int64
}

// NewUploadHandler creates a new upload handler. maxBatch caps the whole
// multipart request.
func NewUploadHandler(store *uploads.Store, maxBatch int64) *UploadHandler {
	return &UploadHandler{store: store, maxBatch: maxBatch}
}

// Upload handles a multipart request with one or more "files" parts and an
// optional "subfolder" field.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.maxBatch > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBatch)
	}
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeErrorResponse(w, dto.PayloadTooLarge(maxBytesErr.Limit))
			return
		}
		slog.WarnContext(ctx, "Invalid upload form", "err", err)
		writeErrorResponse(w, dto.BadRequest("invalid multipart form"))
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			slog.WarnContext(ctx, "Failed to remove multipart temp files", "err", err)
		}
	}()
	files := uploads.FromMultipart(r.MultipartForm.File["files"])
	urls, err := h.store.Upload(ctx, files, r.FormValue("subfolder"))
	if err != nil {
		slog.ErrorContext(ctx, "Upload failed", "err", err)
		writeErrorResponse(w, err)
		return
	}
	resp := &dto.UploadResponse{URLs: urls}
	writeJSON(w, resp.HTTPStatus(), resp)
}
