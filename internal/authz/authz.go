// Package authz evaluates caller principals against per-operation rules.
package authz

import (
	"context"
	"fmt"

	"github.com/starford/agora/internal/apperr"
)

// Role is the role claim carried by a bearer token.
type Role string

const (
	RoleMember   Role = "member"
	RoleReviewer Role = "reviewer"
	RoleAdmin    Role = "admin"
)

// Capability is a bit set of privileges granted by a role.
type Capability uint8

const (
	CapReview Capability = 1 << iota
	CapAdmin
)

// Capabilities returns the capability set granted by r.
func (r Role) Capabilities() Capability {
	switch r {
	case RoleReviewer:
		return CapReview
	case RoleAdmin:
		return CapReview | CapAdmin
	default:
		return 0
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleReviewer, RoleAdmin:
		return true
	}
	return false
}

// Principal identifies the caller of an operation. The zero value is the
// anonymous caller.
type Principal struct {
	UserID string
	Role   Role
}

// Anonymous is the principal of unauthenticated requests.
var Anonymous = Principal{}

type principalKey struct{}

// NewContext returns a copy of ctx carrying p.
func NewContext(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored by NewContext, or Anonymous.
func FromContext(ctx context.Context) Principal {
	if p, ok := ctx.Value(principalKey{}).(Principal); ok {
		return p
	}
	return Anonymous
}

// Authenticated reports whether p carries a user identity.
func (p Principal) Authenticated() bool {
	return p.UserID != ""
}

// Has reports whether p holds every capability in c.
func (p Principal) Has(c Capability) bool {
	return p.Authenticated() && p.Role.Capabilities()&c == c
}

// Rule is an authorization predicate evaluated against the owner of the
// resource being acted on. ownerID is empty for resources that do not exist
// yet.
type Rule func(p Principal, ownerID string) error

// Authenticated requires a non-anonymous caller.
func Authenticated(p Principal, _ string) error {
	if !p.Authenticated() {
		return apperr.ErrUnauthorized
	}
	return nil
}

// Owner requires the caller to own the resource.
func Owner(p Principal, ownerID string) error {
	if err := Authenticated(p, ownerID); err != nil {
		return err
	}
	if p.UserID != ownerID {
		return fmt.Errorf("%w: caller is not the owner", apperr.ErrForbidden)
	}
	return nil
}

// NotOwner requires the caller not to own the resource.
func NotOwner(p Principal, ownerID string) error {
	if err := Authenticated(p, ownerID); err != nil {
		return err
	}
	if p.UserID == ownerID {
		return fmt.Errorf("%w: owners cannot act on their own resource", apperr.ErrForbidden)
	}
	return nil
}

// Reviewer requires reviewer capability.
func Reviewer(p Principal, ownerID string) error {
	if err := Authenticated(p, ownerID); err != nil {
		return err
	}
	if !p.Has(CapReview) {
		return fmt.Errorf("%w: reviewer role required", apperr.ErrForbidden)
	}
	return nil
}

// Admin requires admin capability.
func Admin(p Principal, ownerID string) error {
	if err := Authenticated(p, ownerID); err != nil {
		return err
	}
	if !p.Has(CapAdmin) {
		return fmt.Errorf("%w: admin role required", apperr.ErrForbidden)
	}
	return nil
}

// Check evaluates rules in order and returns the first failure.
func Check(p Principal, ownerID string, rules ...Rule) error {
	for _, rule := range rules {
		if err := rule(p, ownerID); err != nil {
			return err
		}
	}
	return nil
}
