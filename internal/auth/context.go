package auth

import (
	"context"

	"github.com/dukerupert/choregate/internal/model"
)

type contextKey struct{}

// Actor is the authenticated user a request or operation acts on behalf of.
type Actor struct {
	UserID int64
	Role   model.Role
}

func (a Actor) IsParent() bool {
	return a.Role == model.RoleParent
}

func ActorFor(u *model.User) Actor {
	return Actor{UserID: u.ID, Role: u.Role}
}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(contextKey{}).(Actor)
	return a, ok
}

func UserID(ctx context.Context) int64 {
	a, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return a.UserID
}
