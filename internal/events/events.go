// Package events names the lifecycle events emitted by the domain services
// and decides which callers may observe each one.
package events

import "github.com/starford/agora/internal/authz"

const (
	ArtifactCreated         = "artifact.created"
	ArtifactUpdated         = "artifact.updated"
	ArtifactReviewRequested = "artifact.review_requested"
	ArtifactApproved        = "artifact.approved"
	ArtifactRejected        = "artifact.rejected"
	ArtifactPublished       = "artifact.published"
	ArtifactRated           = "artifact.rated"
	CommunityCreated        = "community.created"
	CommunityFollowed       = "community.followed"
	CommunityUnfollowed     = "community.unfollowed"
)

// Audience is the set of callers allowed to observe an event.
type Audience uint8

const (
	// Everyone includes anonymous callers.
	Everyone Audience = iota
	// OwnerOnly is the owner of the artifact.
	OwnerOnly
	// OwnerAndReviewers adds callers holding the review capability, who
	// see the artifact in their review queue.
	OwnerAndReviewers
)

// Event is a committed change to one artifact or community.
type Event struct {
	Kind string
	ID   string
	// OwnerID is the artifact owner. Community events leave it empty.
	OwnerID string
}

// Audience reports who may observe e. Events about artifacts that are not
// yet published never reach anonymous callers.
func (e Event) Audience() Audience {
	switch e.Kind {
	case ArtifactCreated, ArtifactUpdated:
		return OwnerOnly
	case ArtifactReviewRequested, ArtifactApproved, ArtifactRejected:
		return OwnerAndReviewers
	default:
		return Everyone
	}
}

// VisibleTo reports whether p may observe e.
func (e Event) VisibleTo(p authz.Principal) bool {
	switch e.Audience() {
	case Everyone:
		return true
	case OwnerAndReviewers:
		if p.Has(authz.CapReview) {
			return true
		}
		fallthrough
	default:
		return p.Authenticated() && p.UserID == e.OwnerID
	}
}

// Callback receives an event after the change that caused it has committed.
type Callback func(Event)

// Emit calls cb if it is set.
func (cb Callback) Emit(e Event) {
	if cb != nil {
		cb(e)
	}
}
