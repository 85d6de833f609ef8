package inventory

import "context"

type actorKey struct{}

// WithActor attaches the authenticated actor to ctx
// コンテキストに実行者を設定
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor set by WithActor, or nil
// コンテキストから実行者を取得
func ActorFromContext(ctx context.Context) *Actor {
	actor, _ := ctx.Value(actorKey{}).(*Actor)
	return actor
}
