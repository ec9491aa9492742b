// Package api implements the artifact review REST API using chi.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/starford/agora/internal/apperr"
	"github.com/starford/agora/internal/auth"
	"github.com/starford/agora/internal/authz"
)

// PrincipalFrom returns the caller attached by Authenticate, or
// authz.Anonymous.
func PrincipalFrom(ctx context.Context) authz.Principal {
	return authz.FromContext(ctx)
}

// Authenticate resolves "Authorization: Bearer <token>" through provider.
// Requests without the header continue as anonymous; a malformed header or
// unknown token is rejected with 401.
func Authenticate(provider auth.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				writeError(w, r, apperr.ErrUnauthorized)
				return
			}
			p, ok := provider.Lookup(strings.TrimSpace(token))
			if !ok {
				writeError(w, r, apperr.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(authz.NewContext(r.Context(), p)))
		})
	}
}

// RequireAuth rejects anonymous callers with 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !PrincipalFrom(r.Context()).Authenticated() {
			writeError(w, r, apperr.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
