package api

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/starford/agora/internal/apperr"
	"github.com/starford/agora/internal/artifacts"
	"github.com/starford/agora/internal/blob"
	"github.com/starford/agora/internal/ledger"
	"github.com/starford/agora/internal/models"
	"github.com/starford/agora/internal/workflow"
)

const (
	msgReviewRequested = "Review requested successfully"
	msgPublished       = "Artifact published successfully"
)

// ArtifactHandler holds artifact route handlers.
type ArtifactHandler struct {
	artifacts *artifacts.Service
	workflow  *workflow.Workflow
	ledger    *ledger.Ledger
	blobs     *blob.FS
}

// NewArtifactHandler creates a new ArtifactHandler.
func NewArtifactHandler(svc *artifacts.Service, wf *workflow.Workflow, l *ledger.Ledger, blobs *blob.FS) *ArtifactHandler {
	return &ArtifactHandler{artifacts: svc, workflow: wf, ledger: l, blobs: blobs}
}

// queryInt parses a non-negative integer query parameter; absent means 0.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", apperr.ErrInvalidArgument, name)
	}
	return n, nil
}

// ifMatchVersion parses the If-Match header as an artifact version. Quotes
// and a weak prefix are accepted; an absent header means 0.
func ifMatchVersion(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get("If-Match"))
	if raw == "" || raw == "*" {
		return 0, nil
	}
	raw = strings.Trim(strings.TrimPrefix(raw, "W/"), `"`)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: If-Match must be an artifact version", apperr.ErrInvalidArgument)
	}
	return v, nil
}

func setETag(w http.ResponseWriter, a *models.Artifact) {
	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(a.Version, 10)))
}

// readInput decodes an artifact body, JSON or multipart. A multipart "file"
// part is stored in the blob store once the fields are valid and precheck,
// if set, passes. discard removes that upload again and must be called when
// the write it was meant for fails.
func (h *ArtifactHandler) readInput(w http.ResponseWriter, r *http.Request, precheck func() error) (in artifacts.Input, discard func(), err error) {
	discard = func() {}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req ArtifactRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return in, discard, err
		}
		return artifacts.Input{Title: req.Title, Content: req.Content, Summary: req.Summary}, discard, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, blob.MaxSize+maxJSONBody)
	if err := r.ParseMultipartForm(maxJSONBody); err != nil {
		return in, discard, fmt.Errorf("%w: file too large or invalid multipart", apperr.ErrInvalidArgument)
	}
	in = artifacts.Input{
		Title:   r.FormValue("title"),
		Content: r.FormValue("content"),
		Summary: r.FormValue("summary"),
	}
	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return in, discard, nil
	}
	if err != nil {
		return in, discard, fmt.Errorf("%w: unreadable file part", apperr.ErrInvalidArgument)
	}
	defer file.Close()

	if err := in.Validate(); err != nil {
		return in, discard, err
	}
	if precheck != nil {
		if err := precheck(); err != nil {
			return in, discard, err
		}
	}
	obj, err := h.blobs.Put(r.Context(), header.Filename, file)
	if err != nil {
		return in, discard, err
	}
	in.File = &artifacts.FileRef{Name: obj.Name, URL: obj.URL}
	if obj.Created {
		discard = func() {
			if err := h.blobs.Remove(obj.Name); err != nil {
				slog.Warn("failed to discard upload",
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("file", obj.Name),
					slog.String("error", err.Error()))
			}
		}
	}
	return in, discard, nil
}

// List handles GET /api/artifacts.
//
//	@Summary		List published artifacts plus the caller's own
//	@Tags			artifacts
//	@Produce		json
//	@Param			status	query		string	false	"Filter by status"
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{array}		models.Artifact
//	@Router			/artifacts [get]
func (h *ArtifactHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := h.artifacts.List(r.Context(), PrincipalFrom(r.Context()), artifacts.ListFilter{
		Status: models.Status(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// ListMine handles GET /api/artifacts/my-artifacts.
//
//	@Summary		List the caller's artifacts in every status
//	@Tags			artifacts
//	@Produce		json
//	@Success		200	{array}		models.Artifact
//	@Failure		401	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/artifacts/my-artifacts [get]
func (h *ArtifactHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	items, err := h.artifacts.ListMine(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Get handles GET /api/artifacts/{id}.
func (h *ArtifactHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.artifacts.Get(r.Context(), PrincipalFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	setETag(w, a)
	writeJSON(w, http.StatusOK, a)
}

// Rating handles GET /api/artifacts/{id}/rating.
func (h *ArtifactHandler) Rating(w http.ResponseWriter, r *http.Request) {
	agg, err := h.artifacts.Rating(r.Context(), PrincipalFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

// Create handles POST /api/create-artifact.
//
//	@Summary		Create a Draft artifact
//	@Tags			artifacts
//	@Accept			json,mpfd
//	@Produce		json
//	@Param			body	body		ArtifactRequest	true	"Artifact fields"
//	@Success		201		{object}	models.Artifact
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/create-artifact [post]
func (h *ArtifactHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, discard, err := h.readInput(w, r, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.artifacts.Create(r.Context(), PrincipalFrom(r.Context()), in)
	if err != nil {
		discard()
		writeError(w, r, err)
		return
	}
	setETag(w, a)
	writeJSON(w, http.StatusCreated, a)
}

// Update handles PUT /api/update-artifact/{id}.
//
//	@Summary		Edit a Draft or Rejected artifact
//	@Tags			artifacts
//	@Accept			json,mpfd
//	@Produce		json
//	@Param			id			path		string			true	"Artifact ID"
//	@Param			If-Match	header		string			false	"Expected version"
//	@Param			body		body		ArtifactRequest	true	"Artifact fields"
//	@Success		200			{object}	models.Artifact
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/update-artifact/{id} [put]
func (h *ArtifactHandler) Update(w http.ResponseWriter, r *http.Request) {
	version, err := ifMatchVersion(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, id := PrincipalFrom(r.Context()), chi.URLParam(r, "id")
	in, discard, err := h.readInput(w, r, func() error {
		return h.artifacts.CheckEditable(r.Context(), p, id, version)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.artifacts.Update(r.Context(), p, id, in, version)
	if err != nil {
		discard()
		writeError(w, r, err)
		return
	}
	setETag(w, a)
	writeJSON(w, http.StatusOK, a)
}

// Rate handles POST /api/rate-artifact/{id}.
//
//	@Summary		Rate a published artifact (1-5)
//	@Tags			ratings
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Artifact ID"
//	@Param			body	body		RateRequest	true	"Score"
//	@Success		200		{object}	RateResponse
//	@Failure		403		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/rate-artifact/{id} [post]
func (h *ArtifactHandler) Rate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req RateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ArtifactID != "" && req.ArtifactID != id {
		writeError(w, r, fmt.Errorf("%w: artifact_id does not match path", apperr.ErrInvalidArgument))
		return
	}
	rating, err := h.ledger.Rate(r.Context(), PrincipalFrom(r.Context()), id, req.Score)
	if err != nil {
		writeError(w, r, err)
		return
	}
	agg, err := h.ledger.Aggregate(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RateResponse{Rating: *rating, Aggregate: agg})
}

// RequestReview handles POST /api/request-review/{id}.
func (h *ArtifactHandler) RequestReview(w http.ResponseWriter, r *http.Request) {
	if _, err := h.workflow.RequestReview(r.Context(), PrincipalFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgReviewRequested)
}

// Review handles POST /api/review-artifact/{id}.
//
//	@Summary		Approve or reject a pending submission
//	@Tags			reviews
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Artifact ID"
//	@Param			body	body		ReviewRequest	true	"Decision"
//	@Success		200		{object}	models.Artifact
//	@Failure		403		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/review-artifact/{id} [post]
func (h *ArtifactHandler) Review(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.workflow.DecideReview(r.Context(), PrincipalFrom(r.Context()), chi.URLParam(r, "id"), req.Decision, req.Comment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Publish handles POST /api/publish-artifact/{id}.
func (h *ArtifactHandler) Publish(w http.ResponseWriter, r *http.Request) {
	if _, err := h.workflow.Publish(r.Context(), PrincipalFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgPublished)
}

// ReviewQueue handles GET /api/review-queue.
func (h *ArtifactHandler) ReviewQueue(w http.ResponseWriter, r *http.Request) {
	items, err := h.workflow.Queue(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}
