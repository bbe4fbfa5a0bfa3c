// Package verifier defines the Verifier adapter boundary: an external
// collaborator that judges whether an attempt's completed steps
// actually achieved the goal. The runner this is grounded on has no
// standalone verification stage of its own — the closest analogue is
// determinism/diff.go's structural result comparison — so this
// package keeps the interface-plus-Static-reference idiom of
// services/runner/internal/autonomous/orchestrator.go and builds the
// verification contract fresh.
package verifier

import (
	"context"

	"loopctl/internal/plan"
	"loopctl/internal/state"
)

// Request is the input to Verify.
type Request struct {
	Goal           string
	Plan           plan.Plan
	CompletedSteps []int
}

// Verifier judges whether a goal has actually been achieved by the
// current plan's completed steps.
type Verifier interface {
	Verify(ctx context.Context, req Request) (state.VerificationResult, error)
}

// Static is a reference Verifier that reports success only when every
// step in the plan is completed; any other status, blocked included,
// yields a LOW-confidence failure. It never
// reports HIGH confidence on its own — a real Verifier is expected to
// assign confidence; Static exists only to exercise the attempt/retry
// control flow.
type Static struct{}

func (Static) Verify(_ context.Context, req Request) (state.VerificationResult, error) {
	for _, s := range req.Plan.Steps {
		if s.Status != plan.StepCompleted {
			return state.VerificationResult{
				Passed:     false,
				Confidence: state.ConfidenceLow,
				Gaps:       "not all steps completed",
			}, nil
		}
	}
	return state.VerificationResult{
		Passed:       true,
		Confidence:   state.ConfidenceMedium,
		GoalAchieved: true,
	}, nil
}
