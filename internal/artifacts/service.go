// Package artifacts owns artifact records and answers read queries by
// composing the review workflow and the rating ledger.
package artifacts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/agora/internal/apperr"
	"github.com/starford/agora/internal/authz"
	"github.com/starford/agora/internal/events"
	"github.com/starford/agora/internal/ledger"
	"github.com/starford/agora/internal/models"
	"github.com/starford/agora/internal/store"
	"github.com/starford/agora/internal/workflow"
)

// FileRef points at an attachment held by the blob store.
type FileRef struct {
	Name string
	URL  string
}

// Input carries the owner-editable fields of an artifact.
type Input struct {
	Title   string
	Content string
	Summary string
	// File replaces the attachment when non-nil.
	File *FileRef
}

// Validate checks field presence and length.
func (in *Input) Validate() error {
	err := validation.ValidateStruct(in,
		validation.Field(&in.Title, validation.Required, validation.RuneLength(1, 200)),
		validation.Field(&in.Content, validation.Required),
		validation.Field(&in.Summary, validation.RuneLength(0, 500)),
	)
	if err != nil {
		return fmt.Errorf("%w: %s", apperr.ErrInvalidArgument, err.Error())
	}
	return nil
}

// ListFilter narrows List.
type ListFilter struct {
	Status models.Status
	Limit  int
	Offset int
}

// Service coordinates artifact storage with reviews and ratings.
type Service struct {
	db       *store.DB
	workflow *workflow.Workflow
	ledger   *ledger.Ledger
	now      func() time.Time
	emit     events.Callback
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithEvents sets the callback notified after each committed write.
func WithEvents(cb events.Callback) Option {
	return func(s *Service) { s.emit = cb }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a new artifact service.
func NewService(db *store.DB, wf *workflow.Workflow, l *ledger.Ledger, opts ...Option) *Service {
	s := &Service{
		db:       db,
		workflow: wf,
		ledger:   l,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns published artifacts plus, for authenticated callers, the
// caller's own artifacts in any status. Newest first.
func (s *Service) List(ctx context.Context, p authz.Principal, f ListFilter) ([]models.Artifact, error) {
	filter := store.ArtifactFilter{
		Visible:  true,
		ViewerID: p.UserID,
		Limit:    f.Limit,
		Offset:   f.Offset,
	}
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", apperr.ErrInvalidArgument, f.Status)
		}
		filter.Statuses = []models.Status{f.Status}
	}
	items, err := s.db.ListArtifacts(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, items)
}

// ListMine returns every artifact owned by the caller.
func (s *Service) ListMine(ctx context.Context, p authz.Principal) ([]models.Artifact, error) {
	if err := authz.Check(p, "", authz.Authenticated); err != nil {
		return nil, err
	}
	items, err := s.db.ListArtifacts(ctx, store.ArtifactFilter{OwnerID: p.UserID})
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, items)
}

// Get returns one artifact. Unpublished artifacts are visible to their owner
// only.
func (s *Service) Get(ctx context.Context, p authz.Principal, id string) (*models.Artifact, error) {
	a, err := s.db.GetArtifact(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CheckVisible(p, a); err != nil {
		return nil, err
	}
	items, err := s.enrich(ctx, []models.Artifact{*a})
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

// Rating returns the aggregate score of an artifact visible to the caller.
func (s *Service) Rating(ctx context.Context, p authz.Principal, id string) (models.Aggregate, error) {
	a, err := s.db.GetArtifact(ctx, id)
	if err != nil {
		return models.Aggregate{}, err
	}
	if err := CheckVisible(p, a); err != nil {
		return models.Aggregate{}, err
	}
	return s.ledger.Aggregate(ctx, id)
}

// Create stores a new Draft artifact owned by the caller.
func (s *Service) Create(ctx context.Context, p authz.Principal, in Input) (*models.Artifact, error) {
	if err := authz.Check(p, "", authz.Authenticated); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	a := &models.Artifact{
		ID:        uuid.NewString(),
		Title:     in.Title,
		Content:   in.Content,
		Summary:   in.Summary,
		OwnerID:   p.UserID,
		Status:    models.StatusDraft,
		Version:   1,
		CreatedOn: now,
		UpdatedOn: now,
		Ratings:   []models.Rating{},
	}
	if in.File != nil {
		a.File, a.FileURL = in.File.Name, in.File.URL
	}
	if err := s.db.InsertArtifact(ctx, a); err != nil {
		return nil, err
	}

	s.logger.Info("artifact created",
		slog.String("artifact_id", a.ID),
		slog.String("user_id", p.UserID))
	s.emit.Emit(events.Event{Kind: events.ArtifactCreated, ID: a.ID, OwnerID: a.OwnerID})
	return a, nil
}

// checkEditable reports why p may not edit a at version ifMatch, if at all.
func checkEditable(p authz.Principal, a *models.Artifact, ifMatch int64) error {
	if err := authz.Check(p, a.OwnerID, authz.Owner); err != nil {
		return err
	}
	if !workflow.Editable(a.Status) {
		return fmt.Errorf("%w: artifact in status %s cannot be edited", apperr.ErrInvalidState, a.Status)
	}
	if ifMatch != 0 && ifMatch != a.Version {
		return fmt.Errorf("%w: version %d does not match current %d", apperr.ErrInvalidState, ifMatch, a.Version)
	}
	return nil
}

// CheckEditable runs the preconditions of Update without writing. Callers
// use it to fail fast before doing side effects such as storing an upload;
// Update checks again inside its transaction.
func (s *Service) CheckEditable(ctx context.Context, p authz.Principal, id string, ifMatch int64) error {
	if err := authz.Check(p, "", authz.Authenticated); err != nil {
		return err
	}
	a, err := s.db.GetArtifact(ctx, id)
	if err != nil {
		return err
	}
	return checkEditable(p, a, ifMatch)
}

// Update replaces the editable fields of an artifact. Only the owner may
// edit, only while the status is editable, and, when ifMatch is non-zero,
// only if the stored version still equals ifMatch.
func (s *Service) Update(ctx context.Context, p authz.Principal, id string, in Input, ifMatch int64) (*models.Artifact, error) {
	if err := authz.Check(p, "", authz.Authenticated); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var out *models.Artifact
	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		a, err := tx.GetArtifact(ctx, id)
		if err != nil {
			return err
		}
		if err := checkEditable(p, a, ifMatch); err != nil {
			return err
		}

		a.Title, a.Content, a.Summary = in.Title, in.Content, in.Summary
		if in.File != nil {
			a.File, a.FileURL = in.File.Name, in.File.URL
		}
		a.UpdatedOn = s.now()
		if err := tx.UpdateArtifact(ctx, a, a.Version); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit.Emit(events.Event{Kind: events.ArtifactUpdated, ID: id, OwnerID: out.OwnerID})
	items, err := s.enrich(ctx, []models.Artifact{*out})
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

// CheckVisible returns apperr.ErrForbidden when p may not read a.
func CheckVisible(p authz.Principal, a *models.Artifact) error {
	if a.Status == models.StatusPublished {
		return nil
	}
	if p.Authenticated() && p.UserID == a.OwnerID {
		return nil
	}
	return fmt.Errorf("%w: artifact %s is not published", apperr.ErrForbidden, a.ID)
}

// enrich embeds reviews, ratings and aggregates into bare artifact rows.
func (s *Service) enrich(ctx context.Context, items []models.Artifact) ([]models.Artifact, error) {
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	reviews, err := s.workflow.Reviews(ctx, ids)
	if err != nil {
		return nil, err
	}
	ratings, err := s.ledger.Ratings(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range items {
		a := &items[i]
		if r, ok := reviews[a.ID]; ok {
			a.Review = &r
		}
		a.Ratings = nonNilSlice(ratings[a.ID])
		a.Rating = ledger.Summarize(a.Ratings)
		a.ReviewRequested = a.Status != models.StatusDraft
	}
	return items, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
