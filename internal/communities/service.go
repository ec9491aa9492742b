// Package communities owns community records and composes the follow graph.
package communities

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/agora/internal/apperr"
	"github.com/starford/agora/internal/authz"
	"github.com/starford/agora/internal/events"
	"github.com/starford/agora/internal/follow"
	"github.com/starford/agora/internal/models"
	"github.com/starford/agora/internal/store"
)

// Service manages communities and their followers.
type Service struct {
	db     *store.DB
	graph  *follow.Graph
	now    func() time.Time
	emit   events.Callback
	logger *slog.Logger
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

// NewService creates a community service.
func NewService(db *store.DB, graph *follow.Graph, opts ...Option) *Service {
	s := &Service{
		db:     db,
		graph:  graph,
		now:    func() time.Time { return time.Now().UTC() },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns every community with its follower edges and count. For an
// authenticated caller Following tells whether the caller follows it.
func (s *Service) List(ctx context.Context, p authz.Principal) ([]models.Community, error) {
	items, err := s.db.ListCommunities(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	followers, err := s.graph.Followers(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range items {
		c := &items[i]
		c.Followers = followers[c.ID]
		if c.Followers == nil {
			c.Followers = []models.Follower{}
		}
		c.FollowerCount = len(c.Followers)
		if p.Authenticated() {
			for _, f := range c.Followers {
				if f.UserID == p.UserID {
					c.Following = true
					break
				}
			}
		}
	}
	return items, nil
}

// Create adds a community. Only admins may create communities.
func (s *Service) Create(ctx context.Context, p authz.Principal, name, description string) (*models.Community, error) {
	if err := authz.Check(p, "", authz.Admin); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	err := validation.Errors{
		"name":        validation.Validate(name, validation.Required, validation.RuneLength(1, 100)),
		"description": validation.Validate(description, validation.RuneLength(0, 1000)),
	}.Filter()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperr.ErrInvalidArgument, err.Error())
	}

	c := &models.Community{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		OwnerID:     p.UserID,
		CreatedOn:   s.now(),
		Followers:   []models.Follower{},
	}
	if err := s.db.InsertCommunity(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("community created",
		slog.String("community_id", c.ID),
		slog.String("name", c.Name),
		slog.String("user_id", p.UserID))
	s.emit.Emit(events.Event{Kind: events.CommunityCreated, ID: c.ID})
	return c, nil
}

// Follow makes the caller follow a community.
func (s *Service) Follow(ctx context.Context, p authz.Principal, communityID string) error {
	if err := s.graph.Follow(ctx, p, communityID); err != nil {
		return err
	}
	s.emit.Emit(events.Event{Kind: events.CommunityFollowed, ID: communityID})
	return nil
}

// Unfollow removes the caller's follow edge.
func (s *Service) Unfollow(ctx context.Context, p authz.Principal, communityID string) error {
	if err := s.graph.Unfollow(ctx, p, communityID); err != nil {
		return err
	}
	s.emit.Emit(events.Event{Kind: events.CommunityUnfollowed, ID: communityID})
	return nil
}

// IsFollowing reports whether the caller follows a community.
func (s *Service) IsFollowing(ctx context.Context, p authz.Principal, communityID string) (bool, error) {
	if _, err := s.db.GetCommunity(ctx, communityID); err != nil {
		return false, err
	}
	return s.graph.IsFollowing(ctx, communityID, p.UserID)
}
