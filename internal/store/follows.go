package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/starford/agora/internal/models"
)

// InsertFollow records a follow edge. An existing edge is left untouched.
func (q queries) InsertFollow(ctx context.Context, f models.Follower) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO follows (community_id, user_id, followed_on)
		VALUES (?, ?, ?)
	`, f.CommunityID, f.UserID, f.FollowedOn)
	if err != nil {
		return fmt.Errorf("store: insert follow: %w", err)
	}
	return nil
}

// DeleteFollow removes a follow edge if present.
func (q queries) DeleteFollow(ctx context.Context, communityID, userID string) error {
	_, err := q.q.ExecContext(ctx,
		`DELETE FROM follows WHERE community_id = ? AND user_id = ?`, communityID, userID)
	if err != nil {
		return fmt.Errorf("store: delete follow: %w", err)
	}
	return nil
}

// IsFollowing reports whether userID follows communityID.
func (q queries) IsFollowing(ctx context.Context, communityID, userID string) (bool, error) {
	var n int
	err := q.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM follows WHERE community_id = ? AND user_id = ?`, communityID, userID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("store: is following: %w", err)
	}
	return n > 0, nil
}

// Followers returns the follow edges of the given communities keyed by
// community id, oldest first.
func (q queries) Followers(ctx context.Context, communityIDs []string) (map[string][]models.Follower, error) {
	out := make(map[string][]models.Follower, len(communityIDs))
	if len(communityIDs) == 0 {
		return out, nil
	}
	rows, err := q.selectRows(ctx, sq.
		Select("community_id", "user_id", "followed_on").
		From("follows").
		Where(sq.Eq{"community_id": communityIDs}).
		OrderBy("followed_on ASC", "user_id ASC"))
	if err != nil {
		return nil, fmt.Errorf("store: followers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var f models.Follower
		if err := rows.Scan(&f.CommunityID, &f.UserID, &f.FollowedOn); err != nil {
			return nil, fmt.Errorf("store: scan follower: %w", err)
		}
		out[f.CommunityID] = append(out[f.CommunityID], f)
	}
	return out, rows.Err()
}
