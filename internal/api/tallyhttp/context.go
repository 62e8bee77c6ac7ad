package tallyhttp

import (
	"context"

	"github.com/BearBump/TruckTally/internal/models"
)

func contextWithActor(ctx context.Context, a models.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom возвращает пользователя, положенного requireActor.
func ActorFrom(ctx context.Context) models.Actor {
	a, _ := ctx.Value(actorKey{}).(models.Actor)
	return a
}
