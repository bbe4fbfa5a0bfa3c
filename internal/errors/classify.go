package errors

import (
	"context"
	stderrors "errors"
)

// Classify maps an arbitrary error into a *LoopError at a component
// boundary. Errors already typed as *LoopError pass through unchanged.
func Classify(err error, fallback Code) *LoopError {
	if err == nil {
		return nil
	}
	var le *LoopError
	if stderrors.As(err, &le) {
		return le
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return New(CodeTimeExhausted, "deadline exceeded").WithCause(err).SetRetryable(false)
	}
	if stderrors.Is(err, context.Canceled) {
		return New(CodeInternalInvariantViolation, "context canceled").WithCause(err)
	}
	return New(fallback, err.Error()).WithCause(err)
}
