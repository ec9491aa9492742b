package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/agora/internal/authz"
	"github.com/starford/agora/internal/events"
	"github.com/starford/agora/internal/models"
	"github.com/starford/agora/internal/store"
)

// Workflow executes review lifecycle transitions. Each transition reads the
// artifact, checks the caller and the transition table, and writes the new
// status with a compare-and-set inside one write transaction.
type Workflow struct {
	db     *store.DB
	now    func() time.Time
	emit   events.Callback
	logger *slog.Logger
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

// WithEvents sets the callback notified after each committed transition.
func WithEvents(cb events.Callback) Option {
	return func(w *Workflow) { w.emit = cb }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Workflow) { w.logger = l }
}

// New creates a Workflow backed by db.
func New(db *store.DB, opts ...Option) *Workflow {
	w := &Workflow{
		db:     db,
		now:    func() time.Time { return time.Now().UTC() },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// RequestReview submits a Draft or Rejected artifact for review. Only the
// owner may do so. Any previous review decision is discarded.
func (w *Workflow) RequestReview(ctx context.Context, p authz.Principal, artifactID string) (*models.Artifact, error) {
	now := w.now()
	var out *models.Artifact
	err := w.db.WithTx(ctx, func(tx *store.Tx) error {
		a, err := tx.GetArtifact(ctx, artifactID)
		if err != nil {
			return err
		}
		if err := authz.Check(p, a.OwnerID, authz.Owner); err != nil {
			return err
		}
		if err := move(ctx, tx, a, models.StatusReviewRequested, now); err != nil {
			return err
		}
		review := models.Review{
			ArtifactID:  a.ID,
			Decision:    models.DecisionPending,
			RequestedOn: now,
		}
		if err := tx.PutReview(ctx, review); err != nil {
			return err
		}
		a.Review = &review
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.logger.Info("review requested",
		slog.String("artifact_id", artifactID),
		slog.String("user_id", p.UserID))
	w.emit.Emit(events.Event{Kind: events.ArtifactReviewRequested, ID: artifactID, OwnerID: out.OwnerID})
	return out, nil
}

// DecideReview records a reviewer's decision on an artifact awaiting review
// and moves it to Approved or Rejected.
func (w *Workflow) DecideReview(ctx context.Context, p authz.Principal, artifactID string, decision models.Decision, comment string) (*models.Artifact, error) {
	if err := authz.Check(p, "", authz.Reviewer); err != nil {
		return nil, err
	}
	target, err := statusFor(decision)
	if err != nil {
		return nil, err
	}

	now := w.now()
	var out *models.Artifact
	err = w.db.WithTx(ctx, func(tx *store.Tx) error {
		a, err := tx.GetArtifact(ctx, artifactID)
		if err != nil {
			return err
		}
		requestedOn := a.UpdatedOn
		if err := move(ctx, tx, a, target, now); err != nil {
			return err
		}
		existing, err := tx.Reviews(ctx, []string{a.ID})
		if err != nil {
			return err
		}
		if r, ok := existing[a.ID]; ok {
			requestedOn = r.RequestedOn
		}
		review := models.Review{
			ArtifactID:  a.ID,
			Decision:    decision,
			ReviewerID:  p.UserID,
			Comment:     comment,
			RequestedOn: requestedOn,
			DecidedOn:   &now,
		}
		if err := tx.PutReview(ctx, review); err != nil {
			return err
		}
		a.Review = &review
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.logger.Info("review decided",
		slog.String("artifact_id", artifactID),
		slog.String("reviewer_id", p.UserID),
		slog.String("decision", string(decision)))
	kind := events.ArtifactRejected
	if target == models.StatusApproved {
		kind = events.ArtifactApproved
	}
	w.emit.Emit(events.Event{Kind: kind, ID: artifactID, OwnerID: out.OwnerID})
	return out, nil
}

// Publish makes an Approved artifact public. Only the owner may publish and
// the transition is irreversible.
func (w *Workflow) Publish(ctx context.Context, p authz.Principal, artifactID string) (*models.Artifact, error) {
	now := w.now()
	var out *models.Artifact
	err := w.db.WithTx(ctx, func(tx *store.Tx) error {
		a, err := tx.GetArtifact(ctx, artifactID)
		if err != nil {
			return err
		}
		if err := authz.Check(p, a.OwnerID, authz.Owner); err != nil {
			return err
		}
		if err := move(ctx, tx, a, models.StatusPublished, now); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.logger.Info("artifact published",
		slog.String("artifact_id", artifactID),
		slog.String("user_id", p.UserID))
	w.emit.Emit(events.Event{Kind: events.ArtifactPublished, ID: artifactID, OwnerID: out.OwnerID})
	return out, nil
}

// Reviews returns the current reviews of the given artifacts.
func (w *Workflow) Reviews(ctx context.Context, artifactIDs []string) (map[string]models.Review, error) {
	return w.db.Reviews(ctx, artifactIDs)
}

// Queue lists artifacts awaiting a decision, longest waiting first. Only
// reviewers may see it.
func (w *Workflow) Queue(ctx context.Context, p authz.Principal) ([]models.Artifact, error) {
	if err := authz.Check(p, "", authz.Reviewer); err != nil {
		return nil, err
	}
	items, err := w.db.ListArtifacts(ctx, store.ArtifactFilter{
		Statuses: []models.Status{models.StatusReviewRequested},
		Order:    store.LeastRecentlyUpdated,
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	reviews, err := w.db.Reviews(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if r, ok := reviews[items[i].ID]; ok {
			items[i].Review = &r
		}
		items[i].ReviewRequested = true
	}
	return items, nil
}

// move validates from -> to against the table and applies it with a
// compare-and-set on the version that was read.
func move(ctx context.Context, tx *store.Tx, a *models.Artifact, to models.Status, at time.Time) error {
	if err := ValidateTransition(a.Status, to); err != nil {
		return err
	}
	if err := tx.TransitionArtifact(ctx, a.ID, a.Status, a.Version, to, at); err != nil {
		return err
	}
	a.Status = to
	a.Version++
	a.UpdatedOn = at
	a.ReviewRequested = true
	return nil
}
