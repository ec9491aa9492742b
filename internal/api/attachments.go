package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/agora/internal/apperr"
	"github.com/starford/agora/internal/blob"
)

// AttachmentHandler serves and accepts attachment files.
type AttachmentHandler struct {
	blobs *blob.FS
}

// NewAttachmentHandler creates a handler backed by the blob store.
func NewAttachmentHandler(blobs *blob.FS) *AttachmentHandler {
	return &AttachmentHandler{blobs: blobs}
}

// ServeFile handles GET /files/{name}.
func (h *AttachmentHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	f, err := h.blobs.Open(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, r, err)
		return
	}
	// Stored names embed the content digest, so they never change.
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// Upload handles POST /api/attachments (multipart/form-data, field "file").
//
//	@Summary		Upload an attachment
//	@Tags			attachments
//	@Accept			mpfd
//	@Produce		json
//	@Param			file	formData	file	true	"File to upload"
//	@Success		201		{object}	AttachmentUploadResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/attachments [post]
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, blob.MaxSize+maxJSONBody)

	if err := r.ParseMultipartForm(maxJSONBody); err != nil {
		writeError(w, r, fmt.Errorf("%w: file too large or invalid multipart", apperr.ErrInvalidArgument))
		return
	}

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		writeError(w, r, fmt.Errorf("%w: missing 'file' field in multipart form", apperr.ErrInvalidArgument))
		return
	}
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: unreadable file part", apperr.ErrInvalidArgument))
		return
	}
	defer file.Close()

	obj, err := h.blobs.Put(r.Context(), header.Filename, file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, obj)
}
