package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/zoomiesmarket/zoomies/internal/domain"
)

type identityKey struct{}

// UserHeader carries the caller's backend user id. The identity provider
// session lives in the UI; the daemon trusts the header it is given.
const UserHeader = "X-User-ID"

// Identity returns middleware that attaches the caller's domain.Identity to
// the request context. Users listed in adminIDs are admins.
func Identity(adminIDs []string) func(http.Handler) http.Handler {
	admins := make(map[string]bool, len(adminIDs))
	for _, id := range adminIDs {
		if id = strings.TrimSpace(id); id != "" {
			admins[id] = true
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(UserHeader))
			id := domain.Identity{
				UserID:        userID,
				Authenticated: userID != "",
				Admin:         userID != "" && admins[userID],
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// WithIdentity stores id on ctx.
func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored on ctx, or an anonymous one.
func IdentityFrom(ctx context.Context) domain.Identity {
	id, _ := ctx.Value(identityKey{}).(domain.Identity)
	return id
}
