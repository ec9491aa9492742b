package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/agora/internal/communities"
)

// CommunityHandler holds community route handlers.
type CommunityHandler struct {
	svc *communities.Service
}

// NewCommunityHandler creates a new CommunityHandler.
func NewCommunityHandler(svc *communities.Service) *CommunityHandler {
	return &CommunityHandler{svc: svc}
}

// List handles GET /api/communities.
//
//	@Summary		List communities with follower counts
//	@Tags			communities
//	@Produce		json
//	@Success		200	{array}	models.Community
//	@Router			/communities [get]
func (h *CommunityHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Create handles POST /api/create-community.
func (h *CommunityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCommunityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.svc.Create(r.Context(), PrincipalFrom(r.Context()), req.Name, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// Follow handles POST /api/communities/{id}/follow.
func (h *CommunityHandler) Follow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Follow(r.Context(), PrincipalFrom(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FollowResponse{CommunityID: id, Following: true})
}

// Unfollow handles POST /api/communities/{id}/unfollow.
func (h *CommunityHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Unfollow(r.Context(), PrincipalFrom(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FollowResponse{CommunityID: id, Following: false})
}

// Following handles GET /api/communities/{id}/following. Anonymous callers
// always get false.
func (h *CommunityHandler) Following(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := h.svc.IsFollowing(r.Context(), PrincipalFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FollowResponse{CommunityID: id, Following: ok})
}
