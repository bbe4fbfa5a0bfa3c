// Package planner defines the Planner adapter boundary. Grounded on
// two planning interfaces — the tool-call StepPlanner
// (services/runner/internal/autonomous/execution.go) and the
// blueprint-level Planner.Generate
// (services/runner/internal/autonomous/plan.go) — generalized to a
// single call that produces a whole replacement Plan rather than one
// next step or one static blueprint.
package planner

import (
	"context"

	"loopctl/internal/plan"
)

// Request is the input to Plan.
type Request struct {
	Goal      string
	SubGoals  []string
	Context   string
	PriorPlan *plan.Plan // nil on the first call of an attempt
}

// Planner produces or revises an execution Plan.
type Planner interface {
	Plan(ctx context.Context, req Request) (plan.Plan, error)
}

// Static is a reference Planner that emits a single-step plan covering
// the whole goal, matching the StaticPlanner idiom of
// services/runner/internal/autonomous/orchestrator.go. Useful for
// wiring the Attempt Engine end to end without a real planning
// capability.
type Static struct{}

func (Static) Plan(_ context.Context, req Request) (plan.Plan, error) {
	if req.PriorPlan != nil {
		return *req.PriorPlan, nil
	}
	return plan.Plan{
		Steps: []plan.Step{
			{Number: 1, Description: req.Goal, Complexity: plan.ComplexityMedium, Status: plan.StepPending},
		},
	}, nil
}
