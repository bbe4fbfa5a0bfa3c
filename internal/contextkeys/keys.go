// Package contextkeys provides standardized context key definitions so
// packages don't collide when stashing request/run-scoped values.
package contextkeys

import "context"

// Key is the type for every context key in this package, to keep
// values from colliding with keys defined elsewhere.
type Key string

const (
	// SessionIDKey identifies the Run's opaque session ID.
	SessionIDKey Key = "session_id"

	// AttemptNumberKey identifies the current attempt within a Run.
	AttemptNumberKey Key = "attempt_number"

	// CorrelationIDKey identifies a request/event correlation ID.
	CorrelationIDKey Key = "correlation_id"
)

func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SessionIDKey, id)
}

func SessionIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(SessionIDKey).(string)
	return v
}

func WithAttemptNumber(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, AttemptNumberKey, n)
}

func AttemptNumberFrom(ctx context.Context) int {
	v, _ := ctx.Value(AttemptNumberKey).(int)
	return v
}

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, id)
}

func CorrelationIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(CorrelationIDKey).(string)
	return v
}
