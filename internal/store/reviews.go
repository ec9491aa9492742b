package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/starford/agora/internal/models"
)

// PutReview creates or replaces the single review of an artifact.
func (q queries) PutReview(ctx context.Context, r models.Review) error {
	var decided sql.NullTime
	if r.DecidedOn != nil {
		decided = sql.NullTime{Time: *r.DecidedOn, Valid: true}
	}
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO reviews (artifact_id, decision, reviewer_id, comment, requested_on, decided_on)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(artifact_id) DO UPDATE SET
			decision     = excluded.decision,
			reviewer_id  = excluded.reviewer_id,
			comment      = excluded.comment,
			requested_on = excluded.requested_on,
			decided_on   = excluded.decided_on
	`, r.ArtifactID, string(r.Decision), r.ReviewerID, r.Comment, r.RequestedOn, decided)
	if err != nil {
		return fmt.Errorf("store: put review: %w", err)
	}
	return nil
}

// Reviews returns the reviews of the given artifacts keyed by artifact id.
// Artifacts without a review are absent from the map.
func (q queries) Reviews(ctx context.Context, artifactIDs []string) (map[string]models.Review, error) {
	out := make(map[string]models.Review, len(artifactIDs))
	if len(artifactIDs) == 0 {
		return out, nil
	}
	rows, err := q.selectRows(ctx, sq.
		Select("artifact_id", "decision", "reviewer_id", "comment", "requested_on", "decided_on").
		From("reviews").
		Where(sq.Eq{"artifact_id": artifactIDs}))
	if err != nil {
		return nil, fmt.Errorf("store: reviews: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r models.Review
		var decision string
		var decided sql.NullTime
		if err := rows.Scan(&r.ArtifactID, &decision, &r.ReviewerID, &r.Comment, &r.RequestedOn, &decided); err != nil {
			return nil, fmt.Errorf("store: scan review: %w", err)
		}
		r.Decision = models.Decision(decision)
		if decided.Valid {
			t := decided.Time
			r.DecidedOn = &t
		}
		out[r.ArtifactID] = r
	}
	return out, rows.Err()
}
