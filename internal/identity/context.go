// Package identity resolves the calling user from trusted front proxy
// headers and exposes per-user middleware.
package identity

import (
	"context"

	userDomain "github.com/SUNET/transcribe-backend/internal/user/domain"
)

// userKey is a context key type for storing the resolved user.
type userKey struct{}

// WithUser stores the resolved user in the context.
// This is called by the identity middleware after header resolution.
func WithUser(ctx context.Context, user *userDomain.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// GetUser retrieves the resolved user from the context.
// Returns (user, true) if a user is present, or (nil, false) otherwise.
func GetUser(ctx context.Context) (*userDomain.User, bool) {
	user, ok := ctx.Value(userKey{}).(*userDomain.User)
	return user, ok
}
