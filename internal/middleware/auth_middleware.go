package middleware

import (
	"context"
	"net/http"
	"strings"

	"notesync/internal/domain"
	"notesync/pkg/response"
)

type contextKey string

const identityKey contextKey = "identity"

// Authenticator resolves a bearer token to the caller.
type Authenticator interface {
	Authenticate(ctx context.Context, token string, fresh bool) (*domain.Identity, error)
}

// SessionMode selects how strictly a route checks the caller's session.
type SessionMode int

const (
	// Cached accepts a recently validated session from the in-process cache.
	Cached SessionMode = iota
	// Fresh re-reads the session store on every request.
	Fresh
)

func AuthMiddleware(auth Authenticator, mode SessionMode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				response.Unauthorized(w, "Missing or invalid authorization header")
				return
			}

			identity, err := auth.Authenticate(r.Context(), token, mode == Fresh)
			if err != nil {
				response.Unauthorized(w, "Invalid or expired session")
				return
			}

			if info := requestInfoFrom(r.Context()); info != nil {
				info.userID = identity.UserID
			}

			ctx := context.WithValue(r.Context(), identityKey, *identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header.
func BearerToken(r *http.Request) (string, bool) {
	parts := strings.Split(r.Header.Get("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func GetIdentity(r *http.Request) (domain.Identity, bool) {
	identity, ok := r.Context().Value(identityKey).(domain.Identity)
	return identity, ok
}

func GetUserID(r *http.Request) string {
	identity, ok := GetIdentity(r)
	if !ok {
		return ""
	}
	return identity.UserID
}

// WithIdentity returns a copy of ctx carrying identity. Handlers read it
// back with GetIdentity.
func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}
