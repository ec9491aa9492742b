package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/agora/internal/artifacts"
	"github.com/starford/agora/internal/auth"
	"github.com/starford/agora/internal/blob"
	"github.com/starford/agora/internal/communities"
	"github.com/starford/agora/internal/ledger"
	"github.com/starford/agora/internal/workflow"
)

// Deps are the services the API routes call into.
type Deps struct {
	Artifacts   *artifacts.Service
	Workflow    *workflow.Workflow
	Ledger      *ledger.Ledger
	Communities *communities.Service
	Blobs       *blob.FS
	Auth        auth.Provider
	// Events, if non-nil, is mounted at GET /events.
	Events http.Handler
}

// NewRouter creates a chi router with all API routes. It is meant to be
// mounted under /api.
func NewRouter(d Deps) chi.Router {
	ah := NewArtifactHandler(d.Artifacts, d.Workflow, d.Ledger, d.Blobs)
	ch := NewCommunityHandler(d.Communities)
	fh := NewAttachmentHandler(d.Blobs)

	r := chi.NewRouter()
	r.Use(Authenticate(d.Auth))

	// Anonymous callers see published content only.
	r.Get("/artifacts", ah.List)
	r.Get("/artifacts/{id}", ah.Get)
	r.Get("/artifacts/{id}/rating", ah.Rating)
	r.Get("/communities", ch.List)
	r.Get("/communities/{id}/following", ch.Following)
	if d.Events != nil {
		r.Get("/events", d.Events.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth)

		r.Get("/artifacts/my-artifacts", ah.ListMine)
		r.Post("/create-artifact", ah.Create)
		r.Put("/update-artifact/{id}", ah.Update)
		r.Post("/rate-artifact/{id}", ah.Rate)
		r.Post("/request-review/{id}", ah.RequestReview)
		r.Post("/review-artifact/{id}", ah.Review)
		r.Post("/publish-artifact/{id}", ah.Publish)
		r.Get("/review-queue", ah.ReviewQueue)

		r.Post("/create-community", ch.Create)
		r.Post("/communities/{id}/follow", ch.Follow)
		r.Post("/communities/{id}/unfollow", ch.Unfollow)

		r.Post("/attachments", fh.Upload)
	})

	return r
}

// FileRoutes returns the public download routes for stored attachments,
// meant to be mounted at the blob base URL.
func FileRoutes(blobs *blob.FS) chi.Router {
	r := chi.NewRouter()
	r.Get("/{name}", NewAttachmentHandler(blobs).ServeFile)
	return r
}
