package models

import "time"

// Community is a named group users may follow.
type Community struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	OwnerID       string     `json:"created_by"`
	CreatedOn     time.Time  `json:"created_on"`
	Followers     []Follower `json:"followers"`
	FollowerCount int        `json:"follower_count"`
	Following     bool       `json:"following"`
}

// Follower is a (community, user) follow edge.
type Follower struct {
	CommunityID string    `json:"community_id"`
	UserID      string    `json:"user_id"`
	FollowedOn  time.Time `json:"followed_on"`
}
