package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/starford/agora/internal/models"
)

// UpsertRating inserts or overwrites the (artifact, user) rating.
func (q queries) UpsertRating(ctx context.Context, r models.Rating) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO ratings (artifact_id, user_id, score, rated_on)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(artifact_id, user_id) DO UPDATE SET
			score    = excluded.score,
			rated_on = excluded.rated_on
	`, r.ArtifactID, r.UserID, r.Score, r.RatedOn)
	if err != nil {
		return fmt.Errorf("store: upsert rating: %w", err)
	}
	return nil
}

// Ratings returns the rating rows of the given artifacts keyed by artifact id.
func (q queries) Ratings(ctx context.Context, artifactIDs []string) (map[string][]models.Rating, error) {
	out := make(map[string][]models.Rating, len(artifactIDs))
	if len(artifactIDs) == 0 {
		return out, nil
	}
	rows, err := q.selectRows(ctx, sq.
		Select("artifact_id", "user_id", "score", "rated_on").
		From("ratings").
		Where(sq.Eq{"artifact_id": artifactIDs}).
		OrderBy("rated_on ASC", "user_id ASC"))
	if err != nil {
		return nil, fmt.Errorf("store: ratings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r models.Rating
		if err := rows.Scan(&r.ArtifactID, &r.UserID, &r.Score, &r.RatedOn); err != nil {
			return nil, fmt.Errorf("store: scan rating: %w", err)
		}
		out[r.ArtifactID] = append(out[r.ArtifactID], r)
	}
	return out, rows.Err()
}

// AggregateRating computes count and mean score of an artifact on read.
func (q queries) AggregateRating(ctx context.Context, artifactID string) (models.Aggregate, error) {
	var agg models.Aggregate
	var mean sql.NullFloat64
	err := q.q.QueryRowContext(ctx,
		`SELECT COUNT(*), AVG(score) FROM ratings WHERE artifact_id = ?`, artifactID,
	).Scan(&agg.Count, &mean)
	if err != nil {
		return agg, fmt.Errorf("store: aggregate rating: %w", err)
	}
	if mean.Valid {
		m := mean.Float64
		agg.Mean = &m
	}
	return agg, nil
}
