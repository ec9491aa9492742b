package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/starford/agora/internal/apperr"
	"github.com/starford/agora/internal/models"
)

const artifactColumns = "id, title, content, summary, file_name, file_url, owner_id, status, version, created_on, updated_on"

// ArtifactOrder selects the sort order of ListArtifacts.
type ArtifactOrder int

const (
	// NewestFirst orders by created_on descending.
	NewestFirst ArtifactOrder = iota
	// LeastRecentlyUpdated orders by updated_on ascending.
	LeastRecentlyUpdated
)

// ArtifactFilter narrows ListArtifacts.
type ArtifactFilter struct {
	// Visible restricts results to published artifacts plus those owned by
	// ViewerID. An empty ViewerID sees published artifacts only.
	Visible  bool
	ViewerID string

	OwnerID  string
	Statuses []models.Status
	Order    ArtifactOrder
	Limit    int
	Offset   int
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifact(s rowScanner) (*models.Artifact, error) {
	var a models.Artifact
	var status string
	if err := s.Scan(&a.ID, &a.Title, &a.Content, &a.Summary, &a.File, &a.FileURL,
		&a.OwnerID, &status, &a.Version, &a.CreatedOn, &a.UpdatedOn); err != nil {
		return nil, err
	}
	a.Status = models.Status(status)
	return &a, nil
}

// GetArtifact returns the bare artifact row (no review or ratings).
func (q queries) GetArtifact(ctx context.Context, id string) (*models.Artifact, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+artifactColumns+` FROM artifacts WHERE id = ?`, id)
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: artifact %s", apperr.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get artifact: %w", err)
	}
	return a, nil
}

// InsertArtifact stores a new artifact row.
func (q queries) InsertArtifact(ctx context.Context, a *models.Artifact) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO artifacts (`+artifactColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Title, a.Content, a.Summary, a.File, a.FileURL,
		a.OwnerID, string(a.Status), a.Version, a.CreatedOn, a.UpdatedOn)
	if err != nil {
		return fmt.Errorf("store: insert artifact: %w", err)
	}
	return nil
}

// UpdateArtifact writes the editable fields of a if the stored row still has
// a.Status and the expected version. On success a.Version is bumped.
func (q queries) UpdateArtifact(ctx context.Context, a *models.Artifact, expectedVersion int64) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE artifacts SET
			title      = ?,
			content    = ?,
			summary    = ?,
			file_name  = ?,
			file_url   = ?,
			version    = version + 1,
			updated_on = ?
		WHERE id = ? AND status = ? AND version = ?
	`, a.Title, a.Content, a.Summary, a.File, a.FileURL, a.UpdatedOn,
		a.ID, string(a.Status), expectedVersion)
	if err != nil {
		return fmt.Errorf("store: update artifact: %w", err)
	}
	if err := expectOneRow(res, a.ID); err != nil {
		return err
	}
	a.Version = expectedVersion + 1
	return nil
}

// TransitionArtifact moves an artifact from one status to another with a
// compare-and-set on (status, version). A row that changed since it was read
// yields apperr.ErrInvalidState.
func (q queries) TransitionArtifact(ctx context.Context, id string, from models.Status, version int64, to models.Status, at time.Time) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE artifacts SET status = ?, version = version + 1, updated_on = ?
		WHERE id = ? AND status = ? AND version = ?
	`, string(to), at, id, string(from), version)
	if err != nil {
		return fmt.Errorf("store: transition artifact: %w", err)
	}
	return expectOneRow(res, id)
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: artifact %s changed concurrently", apperr.ErrInvalidState, id)
	}
	return nil
}

// ListArtifacts returns bare artifact rows matching f.
func (q queries) ListArtifacts(ctx context.Context, f ArtifactFilter) ([]models.Artifact, error) {
	b := sq.Select(artifactColumns).From("artifacts")

	if f.Visible {
		if f.ViewerID == "" {
			b = b.Where(sq.Eq{"status": string(models.StatusPublished)})
		} else {
			b = b.Where(sq.Or{
				sq.Eq{"status": string(models.StatusPublished)},
				sq.Eq{"owner_id": f.ViewerID},
			})
		}
	}
	if f.OwnerID != "" {
		b = b.Where(sq.Eq{"owner_id": f.OwnerID})
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		b = b.Where(sq.Eq{"status": statuses})
	}

	switch f.Order {
	case LeastRecentlyUpdated:
		b = b.OrderBy("updated_on ASC", "id ASC")
	default:
		b = b.OrderBy("created_on DESC", "id DESC")
	}
	if f.Limit > 0 {
		b = b.Limit(uint64(f.Limit))
		if f.Offset > 0 {
			b = b.Offset(uint64(f.Offset))
		}
	}

	rows, err := q.selectRows(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("store: list artifacts: %w", err)
	}
	defer rows.Close()

	out := []models.Artifact{}
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan artifact: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}
