// Package follow maintains (community, user) follow edges.
package follow

import (
	"context"
	"time"

	"github.com/starford/agora/internal/authz"
	"github.com/starford/agora/internal/models"
	"github.com/starford/agora/internal/store"
)

// Graph is the follow-edge store. Follow and Unfollow are idempotent.
type Graph struct {
	db  *store.DB
	now func() time.Time
}

// New creates a Graph backed by db. A nil now uses the wall clock.
func New(db *store.DB, now func() time.Time) *Graph {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Graph{db: db, now: now}
}

// Follow makes the caller follow a community. Following twice is a no-op.
func (g *Graph) Follow(ctx context.Context, p authz.Principal, communityID string) error {
	if err := authz.Check(p, "", authz.Authenticated); err != nil {
		return err
	}
	return g.db.WithTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.GetCommunity(ctx, communityID); err != nil {
			return err
		}
		return tx.InsertFollow(ctx, models.Follower{
			CommunityID: communityID,
			UserID:      p.UserID,
			FollowedOn:  g.now(),
		})
	})
}

// Unfollow removes the caller's follow edge. Unfollowing a community the
// caller does not follow succeeds.
func (g *Graph) Unfollow(ctx context.Context, p authz.Principal, communityID string) error {
	if err := authz.Check(p, "", authz.Authenticated); err != nil {
		return err
	}
	return g.db.WithTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.GetCommunity(ctx, communityID); err != nil {
			return err
		}
		return tx.DeleteFollow(ctx, communityID, p.UserID)
	})
}

// IsFollowing reports whether userID follows communityID.
func (g *Graph) IsFollowing(ctx context.Context, communityID, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	return g.db.IsFollowing(ctx, communityID, userID)
}

// Followers returns the follow edges of the given communities.
func (g *Graph) Followers(ctx context.Context, communityIDs []string) (map[string][]models.Follower, error) {
	return g.db.Followers(ctx, communityIDs)
}
