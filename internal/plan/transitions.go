package plan

import (
	"fmt"
	"time"

	loopErrors "loopctl/internal/errors"
)

// allowedEdges enumerates the step status transition table, including
// an explicit `failed -> in_progress` retry edge.
var allowedEdges = map[StepStatus]map[StepStatus]bool{
	StepPending: {
		StepInProgress: true,
		StepBlocked:    true,
	},
	StepInProgress: {
		StepCompleted: true,
		StepFailed:    true,
		StepBlocked:   true,
	},
	StepBlocked: {
		StepPending: true,
	},
	StepFailed: {
		StepInProgress: true,
	},
	StepCompleted: {},
}

// IsAllowedTransition reports whether from -> to is a legal edge.
func IsAllowedTransition(from, to StepStatus) bool {
	if from == to {
		return false
	}
	edges, ok := allowedEdges[from]
	if !ok {
		return false
	}
	return edges[to]
}

// ApplyTransition validates and applies a status transition to a Step,
// setting StartedAt/EndedAt/DurationMs accordingly. now is injected
// for deterministic tests.
func ApplyTransition(s Step, to StepStatus, now time.Time) (Step, error) {
	if !IsAllowedTransition(s.Status, to) {
		return s, loopErrors.New(loopErrors.CodeIllegalStepTransition,
			fmt.Sprintf("step %d: illegal transition %s -> %s", s.Number, s.Status, to)).
			WithContext("step", fmt.Sprint(s.Number)).
			WithContext("from", string(s.Status)).
			WithContext("to", string(to))
	}

	next := s
	next.Status = to

	switch to {
	case StepInProgress:
		next.StartedAt = now
		next.EndedAt = time.Time{}
		next.DurationMs = 0
	case StepCompleted, StepFailed, StepBlocked:
		next.EndedAt = now
		if !next.StartedAt.IsZero() {
			next.DurationMs = next.EndedAt.Sub(next.StartedAt).Milliseconds()
		}
	}
	if s.Status == StepFailed && to == StepInProgress {
		next.RetryCount = s.RetryCount + 1
	}
	return next, nil
}
