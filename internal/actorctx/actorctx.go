// Package actorctx carries the request id and the signed-in username on a
// context.Context so log lines deep in the stack can be attributed.
package actorctx

import "context"

type ctxKey int

const (
	keyUsername ctxKey = iota
	keyRequestID
)

func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, keyUsername, username)
}

func UsernameFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyUsername).(string)

	return v, ok && v != ""
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

func RequestIDFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyRequestID).(string)

	return v, ok && v != ""
}
