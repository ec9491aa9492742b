// Package ledger stores one rating per (artifact, user) and computes
// aggregate scores on read.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/agora/internal/apperr"
	"github.com/starford/agora/internal/authz"
	"github.com/starford/agora/internal/events"
	"github.com/starford/agora/internal/models"
	"github.com/starford/agora/internal/store"
)

const (
	MinScore = 1
	MaxScore = 5
)

// Ledger is the rating store.
type Ledger struct {
	db     *store.DB
	now    func() time.Time
	emit   events.Callback
	logger *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithEvents sets the callback notified after each committed rating.
func WithEvents(cb events.Callback) Option {
	return func(l *Ledger) { l.emit = cb }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// New creates a Ledger backed by db.
func New(db *store.DB, opts ...Option) *Ledger {
	l := &Ledger{
		db:     db,
		now:    func() time.Time { return time.Now().UTC() },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ValidateScore checks that score lies in [MinScore, MaxScore].
func ValidateScore(score int) error {
	err := validation.Validate(score,
		validation.Required,
		validation.Min(MinScore),
		validation.Max(MaxScore),
	)
	if err != nil {
		return fmt.Errorf("%w: score must be between %d and %d", apperr.ErrInvalidArgument, MinScore, MaxScore)
	}
	return nil
}

// Rate records the caller's score for a published artifact, overwriting any
// earlier score by the same caller. Owners cannot rate their own artifacts.
func (l *Ledger) Rate(ctx context.Context, p authz.Principal, artifactID string, score int) (*models.Rating, error) {
	if err := authz.Check(p, "", authz.Authenticated); err != nil {
		return nil, err
	}
	if err := ValidateScore(score); err != nil {
		return nil, err
	}

	rating := models.Rating{
		ArtifactID: artifactID,
		UserID:     p.UserID,
		Score:      score,
		RatedOn:    l.now(),
	}
	var ownerID string
	err := l.db.WithTx(ctx, func(tx *store.Tx) error {
		a, err := tx.GetArtifact(ctx, artifactID)
		if err != nil {
			return err
		}
		ownerID = a.OwnerID
		if err := authz.Check(p, a.OwnerID, authz.NotOwner); err != nil {
			return err
		}
		if a.Status != models.StatusPublished {
			return fmt.Errorf("%w: only published artifacts can be rated", apperr.ErrInvalidState)
		}
		return tx.UpsertRating(ctx, rating)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Debug("artifact rated",
		slog.String("artifact_id", artifactID),
		slog.String("user_id", p.UserID),
		slog.Int("score", score))
	l.emit.Emit(events.Event{Kind: events.ArtifactRated, ID: artifactID, OwnerID: ownerID})
	return &rating, nil
}

// Aggregate returns the rating count and mean of an artifact. Mean is nil
// when nobody has rated it.
func (l *Ledger) Aggregate(ctx context.Context, artifactID string) (models.Aggregate, error) {
	if _, err := l.db.GetArtifact(ctx, artifactID); err != nil {
		return models.Aggregate{}, err
	}
	return l.db.AggregateRating(ctx, artifactID)
}

// Ratings returns the rating rows of the given artifacts.
func (l *Ledger) Ratings(ctx context.Context, artifactIDs []string) (map[string][]models.Rating, error) {
	return l.db.Ratings(ctx, artifactIDs)
}

// Summarize computes an aggregate from already loaded rating rows.
func Summarize(ratings []models.Rating) models.Aggregate {
	if len(ratings) == 0 {
		return models.Aggregate{}
	}
	sum := 0
	for _, r := range ratings {
		sum += r.Score
	}
	mean := float64(sum) / float64(len(ratings))
	return models.Aggregate{Count: len(ratings), Mean: &mean}
}
