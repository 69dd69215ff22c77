package circulation

import (
	"context"

	"Gin_postgres_redis_library/models"
)

// Actor is the already-authorized caller, put on the request context by the auth middleware.
type Actor struct {
	ID       string
	Username string
	Role     models.Role
}

type actorKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok && a.ID != ""
}
