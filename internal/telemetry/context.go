package telemetry

import "context"

type ctxKey int

const turnIDKey ctxKey = iota

// WithTurnID derives a context tagged with the id that correlates every
// event emitted during one turn. A nil parent is treated as Background.
func WithTurnID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, turnIDKey, id)
}

// TurnIDFromContext reports the turn id carried by ctx. Absent and empty
// tags both read as not present.
func TurnIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(turnIDKey).(string)
	return id, ok && id != ""
}
