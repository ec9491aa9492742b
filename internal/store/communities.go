package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/starford/agora/internal/apperr"
	"github.com/starford/agora/internal/models"
)

// InsertCommunity stores a new community. A duplicate name yields
// apperr.ErrAlreadyExists.
func (q queries) InsertCommunity(ctx context.Context, c *models.Community) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO communities (id, name, description, owner_id, created_on)
		VALUES (?, ?, ?, ?, ?)
	`, c.ID, c.Name, c.Description, c.OwnerID, c.CreatedOn)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: community %q", apperr.ErrAlreadyExists, c.Name)
	}
	if err != nil {
		return fmt.Errorf("store: insert community: %w", err)
	}
	return nil
}

// GetCommunity returns a community without its follower edges.
func (q queries) GetCommunity(ctx context.Context, id string) (*models.Community, error) {
	var c models.Community
	err := q.q.QueryRowContext(ctx,
		`SELECT id, name, description, owner_id, created_on FROM communities WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Description, &c.OwnerID, &c.CreatedOn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: community %s", apperr.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get community: %w", err)
	}
	return &c, nil
}

// ListCommunities returns every community ordered by name.
func (q queries) ListCommunities(ctx context.Context) ([]models.Community, error) {
	rows, err := q.selectRows(ctx, sq.
		Select("id", "name", "description", "owner_id", "created_on").
		From("communities").
		OrderBy("name ASC"))
	if err != nil {
		return nil, fmt.Errorf("store: list communities: %w", err)
	}
	defer rows.Close()

	out := []models.Community{}
	for rows.Next() {
		var c models.Community
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.OwnerID, &c.CreatedOn); err != nil {
			return nil, fmt.Errorf("store: scan community: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
