// Package auth resolves bearer tokens to principals.
package auth

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/agora/internal/authz"
)

// Provider maps an opaque bearer token to a principal.
type Provider interface {
	// Lookup returns the principal owning token. ok is false for unknown
	// tokens.
	Lookup(token string) (p authz.Principal, ok bool)
}

// Token is one configured credential.
type Token struct {
	Token  string     `yaml:"token"`
	UserID string     `yaml:"user_id"`
	Role   authz.Role `yaml:"role"`
}

// Validate validates a token entry. An empty role means member.
func (t *Token) Validate() error {
	if t.Role == "" {
		t.Role = authz.RoleMember
	}
	return validation.ValidateStruct(t,
		validation.Field(&t.Token, validation.Required),
		validation.Field(&t.UserID, validation.Required),
		validation.Field(&t.Role, validation.By(func(any) error {
			if !t.Role.Valid() {
				return fmt.Errorf("unknown role %q", t.Role)
			}
			return nil
		})),
	)
}

// Static is an immutable token table.
type Static struct {
	byToken map[string]authz.Principal
}

// NewStatic validates tokens and builds a lookup table. Duplicate tokens are
// rejected.
func NewStatic(tokens []Token) (*Static, error) {
	s := &Static{byToken: make(map[string]authz.Principal, len(tokens))}
	for i := range tokens {
		t := tokens[i]
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("auth: token %d: %w", i, err)
		}
		if _, dup := s.byToken[t.Token]; dup {
			return nil, fmt.Errorf("auth: token %d: duplicate token for user %s", i, t.UserID)
		}
		s.byToken[t.Token] = authz.Principal{UserID: t.UserID, Role: t.Role}
	}
	return s, nil
}

// Lookup implements Provider.
func (s *Static) Lookup(token string) (authz.Principal, bool) {
	if token == "" {
		return authz.Anonymous, false
	}
	p, ok := s.byToken[token]
	return p, ok
}

// Len returns the number of configured tokens.
func (s *Static) Len() int { return len(s.byToken) }
