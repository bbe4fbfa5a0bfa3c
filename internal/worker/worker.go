// Package worker defines the Worker adapter boundary: the only
// required outward dependency of the control plane. Grounded on the
// Executor interface (services/runner/internal/autonomous/execution.go),
// generalized from "run a named tool with JSON args" to "execute a
// Plan step against accumulated goal context".
package worker

import (
	"context"

	"loopctl/internal/plan"
)

// StepStatus is the outcome the worker reports for one step — a
// narrower set than plan.StepStatus since a worker may only ever
// report these three terminal-from-its-perspective outcomes; the
// State Hub still owns `in_progress`/`pending`.
type StepStatus string

const (
	StatusCompleted StepStatus = "completed"
	StatusFailed    StepStatus = "failed"
	StatusBlocked   StepStatus = "blocked"
)

// StepRequest is the input to ExecuteStep.
type StepRequest struct {
	Goal               string
	Plan               plan.Plan
	StepNumber         int
	AccumulatedContext string
	WorkingDirectory   string
}

// StepResult is the Worker adapter's output.
type StepResult struct {
	Status       StepStatus
	Output       string
	FailReason   string
	Verification string
}

// Worker executes one Plan step against an underlying capability —
// typically an LLM-backed agent invoked through a CLI-style subprocess,
// but the core only ever sees this interface. Must honor ctx
// cancellation — the Attempt Engine enforces per-step time limits by
// cancelling ctx, not by killing goroutines.
type Worker interface {
	ExecuteStep(ctx context.Context, req StepRequest) (StepResult, error)
}

// Static is a reference Worker that always reports success without
// doing any work, matching the StaticExecutor idiom of
// services/runner/internal/autonomous/orchestrator.go — useful for
// wiring and for tests that only exercise the Attempt Engine's control
// flow.
type Static struct{}

func (Static) ExecuteStep(_ context.Context, req StepRequest) (StepResult, error) {
	return StepResult{Status: StatusCompleted, Output: "noop", Verification: "static worker: assumed complete"}, nil
}
