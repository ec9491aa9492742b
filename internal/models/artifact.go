// Package models defines the domain types for Agora.
package models

import "time"

// Status is the lifecycle state of an artifact.
type Status string

const (
	StatusDraft           Status = "Draft"
	StatusReviewRequested Status = "ReviewRequested"
	StatusApproved        Status = "Approved"
	StatusRejected        Status = "Rejected"
	StatusPublished       Status = "Published"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusReviewRequested, StatusApproved, StatusRejected, StatusPublished:
		return true
	}
	return false
}

// Decision is a reviewer's judgment on the current submission.
type Decision string

const (
	DecisionPending  Decision = "Pending"
	DecisionApproved Decision = "Approved"
	DecisionRejected Decision = "Rejected"
)

// Valid reports whether d is a known decision.
func (d Decision) Valid() bool {
	switch d {
	case DecisionPending, DecisionApproved, DecisionRejected:
		return true
	}
	return false
}

// Artifact is a user-authored document with a lifecycle status.
type Artifact struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	Summary         string    `json:"summary"`
	File            string    `json:"file,omitempty"`
	FileURL         string    `json:"file_url,omitempty"`
	OwnerID         string    `json:"created_by"`
	Status          Status    `json:"status"`
	Version         int64     `json:"version"`
	CreatedOn       time.Time `json:"created_on"`
	UpdatedOn       time.Time `json:"last_updated"`
	ReviewRequested bool      `json:"review_requested"`
	Review          *Review   `json:"review"`
	Ratings         []Rating  `json:"ratings"`
	Rating          Aggregate `json:"rating"`
}

// Review is the single active review record of an artifact.
type Review struct {
	ArtifactID  string     `json:"artifact_id"`
	Decision    Decision   `json:"decision"`
	ReviewerID  string     `json:"reviewer_id,omitempty"`
	Comment     string     `json:"comment,omitempty"`
	RequestedOn time.Time  `json:"requested_on"`
	DecidedOn   *time.Time `json:"decided_on,omitempty"`
}

// Rating is one user's score for one artifact.
type Rating struct {
	ArtifactID string    `json:"artifact_id"`
	UserID     string    `json:"user_id"`
	Score      int       `json:"score"`
	RatedOn    time.Time `json:"rated_on"`
}

// Aggregate summarises the ratings of an artifact. Mean is nil when there
// are no ratings.
type Aggregate struct {
	Count int      `json:"count"`
	Mean  *float64 `json:"mean"`
}
