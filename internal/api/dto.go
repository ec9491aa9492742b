package api

import (
	"github.com/starford/agora/internal/blob"
	"github.com/starford/agora/internal/models"
)

// ArtifactRequest is the JSON body for creating or updating an artifact.
// Multipart requests carry the same fields as form values plus an optional
// "file" part.
type ArtifactRequest struct {
	Title   string `json:"title" example:"Intro to Go" validate:"required"`
	Content string `json:"content" example:"Go is a statically typed..." validate:"required"`
	Summary string `json:"summary" example:"A short primer"`
}

// RateRequest is the body of POST /api/rate-artifact/{id}.
type RateRequest struct {
	ArtifactID string `json:"artifact_id" example:"0b7e..."`
	Score      int    `json:"score" example:"4" validate:"required"`
}

// RateResponse echoes the stored rating with the new aggregate.
type RateResponse struct {
	Rating    models.Rating    `json:"rating"`
	Aggregate models.Aggregate `json:"aggregate"`
}

// ReviewRequest is the body of POST /api/review-artifact/{id}.
type ReviewRequest struct {
	Decision models.Decision `json:"decision" example:"Approved" validate:"required"`
	Comment  string          `json:"comment" example:"Clear and well sourced"`
}

// CreateCommunityRequest is the body of POST /api/create-community.
type CreateCommunityRequest struct {
	Name        string `json:"name" example:"Gophers" validate:"required"`
	Description string `json:"description,omitempty" example:"All things Go"`
}

// FollowResponse reports the caller's follow state after follow/unfollow.
type FollowResponse struct {
	CommunityID string `json:"community_id"`
	Following   bool   `json:"following"`
}

// AttachmentUploadResponse is returned after a successful attachment upload.
type AttachmentUploadResponse = blob.Object
