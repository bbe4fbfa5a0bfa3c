// Package supervisor defines the Supervisor adapter boundary: an
// external collaborator that assesses ongoing progress and may
// recommend aborting the attempt. Distinct from internal/supervision,
// which tracks the rolling escalation state this adapter feeds.
package supervisor

import (
	"context"

	"loopctl/internal/plan"
	"loopctl/internal/supervision"
	"loopctl/internal/worker"
)

// Request is the input to Assess.
type Request struct {
	Plan           plan.Plan
	LastStepResult worker.StepResult
	History        []worker.StepResult
}

// Supervisor assesses progress and recommends CONTINUE, REDIRECT, or
// ABORT.
type Supervisor interface {
	Assess(ctx context.Context, req Request) (supervision.Assessment, error)
}

// Static is a reference Supervisor that recommends REDIRECT with a
// score of 40 after a failed step and CONTINUE with a score of 80
// otherwise, matching the Static* adapter idiom of
// services/runner/internal/autonomous/orchestrator.go.
type Static struct{}

func (Static) Assess(_ context.Context, req Request) (supervision.Assessment, error) {
	if req.LastStepResult.Status == worker.StatusFailed {
		return supervision.Assessment{Action: supervision.ActionRedirect, Score: 40, Reason: "last step failed"}, nil
	}
	return supervision.Assessment{Action: supervision.ActionContinue, Score: 80}, nil
}
