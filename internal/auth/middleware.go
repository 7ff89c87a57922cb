package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// contextKey is an unexported type for context keys in this package, so no
// other package can read or shadow the identity stored in a request context.
type contextKey string

const identityKey contextKey = "identity"

// RequireAuth enforces authentication on protected routes.
//
// It reads the access token from the Authorization header ("Bearer <token>"),
// verifies it, and stores the caller's Identity in the request context. A
// missing or invalid token ends the request with 401.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := identityFromRequest(r, tokens)
			if err != nil {
				// Same JSON error shape and content type as the handlers.
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`))
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext retrieves the authenticated identity from the request
// context. Returns (Identity{}, false) on routes not behind RequireAuth.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.UserID != ""
}

func identityFromRequest(r *http.Request, tokens *TokenService) (Identity, error) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return Identity{}, errors.New("auth: missing bearer token")
	}
	return tokens.VerifyAccess(strings.TrimSpace(header[len(prefix):]))
}
