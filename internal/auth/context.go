package auth

import (
	"context"

	"github.com/rpattn/martech/internal/domain"

	"github.com/google/uuid"
)

type contextKey string

const userKey contextKey = "user"

// ContextWithUser returns a new context that carries the authenticated user.
func ContextWithUser(ctx context.Context, user domain.User) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext retrieves the authenticated user from the context, if any.
func UserFromContext(ctx context.Context) (domain.User, bool) {
	if ctx == nil {
		return domain.User{}, false
	}
	user, ok := ctx.Value(userKey).(domain.User)
	if !ok || user.ID == uuid.Nil {
		return domain.User{}, false
	}
	return user, true
}
