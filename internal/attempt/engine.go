// Package attempt implements the Attempt Engine: the inner loop that
// plans, dispatches steps to a Worker, supervises progress, and
// verifies the result of a single attempt. Grounded on Loop.Run/tick
// (services/runner/internal/autonomous/orchestrator.go) — preflight
// checks before each burst, a tick that advances exactly one unit of
// work, and a StatusReason-style closed set of stop causes —
// retargeted from a tool-call loop onto a plan/step/verify loop.
package attempt

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	loopErrors "loopctl/internal/errors"
	"loopctl/internal/plan"
	"loopctl/internal/planner"
	"loopctl/internal/state"
	"loopctl/internal/supervision"
	"loopctl/internal/supervisor"
	"loopctl/internal/telemetry"
	"loopctl/internal/verifier"
	"loopctl/internal/worker"
)

// RePlanEveryK's default: the Planner may be asked to re-plan after
// every iteration.
const defaultRePlanEveryK = 1

// Params is the Attempt Engine's Initialize input.
type Params struct {
	PrimaryGoal      string
	SubGoals         []string
	InitialContext   string
	TimeLimit        time.Duration
	WorkingDirectory string
	AttemptNumber    int
}

// Report is the per-attempt AttemptReport.
type Report struct {
	AttemptNumber  int
	PlanSnapshot   plan.Plan
	Verification   *state.VerificationResult
	Supervision    supervision.State
	ElapsedMs      int64
	IterationCount int
	Status         state.RunStatus
	CompletedSteps []int
	FailedSteps    []int // includes blocked steps; see Plan.FailedStepNumbers
	StopRequested  bool
	TimeExhausted  bool
}

// Engine runs one attempt of the inner loop against a State Hub and a
// set of injected external collaborators.
type Engine struct {
	Hub        *state.Hub
	Planner    planner.Planner
	Worker     worker.Worker
	Verifier   verifier.Verifier
	Supervisor supervisor.Supervisor

	// SupervisionThreshold configures the Supervision Tracker; 0 uses
	// supervision.DefaultThreshold.
	SupervisionThreshold int
	// RePlanEveryK configures how often (in iterations) the Planner may
	// be asked to re-plan even absent a failure; 0 defaults to 1 (every
	// iteration).
	RePlanEveryK int

	Logger *telemetry.Logger

	params Params
	stop   atomic.Bool
}

// Initialize records the per-attempt parameters.
func (e *Engine) Initialize(p Params) {
	e.params = p
}

// Stop requests cooperative termination; Run returns at the next safe
// point with Report.StopRequested = true and Run status aborted.
func (e *Engine) Stop() {
	e.stop.Store(true)
}

func (e *Engine) log() *telemetry.Logger {
	if e.Logger != nil {
		return e.Logger.WithComponent("attempt")
	}
	return telemetry.NewLogger(nil, telemetry.LevelInfo).WithComponent("attempt")
}

// Run executes the per-attempt plan/execute/verify algorithm and
// returns an AttemptReport. Planner/Verifier adapter errors are fatal
// to the attempt and returned as errors; worker step errors are
// recorded as step data and do not abort the attempt.
func (e *Engine) Run(ctx context.Context) (Report, error) {
	rePlanEveryK := e.RePlanEveryK
	if rePlanEveryK <= 0 {
		rePlanEveryK = defaultRePlanEveryK
	}

	budget := timeBudgetFor(e.params.TimeLimit)
	tracker := supervision.NewTracker(e.SupervisionThreshold)

	if err := e.Hub.Apply(state.MutationSetStatus(state.RunPlanning)); err != nil {
		return Report{}, err
	}
	initialPlan, err := e.Planner.Plan(ctx, planner.Request{
		Goal:     e.params.PrimaryGoal,
		SubGoals: e.params.SubGoals,
		Context:  e.params.InitialContext,
	})
	if err != nil {
		return Report{}, loopErrors.New(loopErrors.CodePlannerError, "initial planning failed").WithCause(err)
	}
	if err := e.Hub.Apply(state.MutationReplacePlan(initialPlan)); err != nil {
		return Report{}, err
	}

	if err := e.Hub.Apply(state.MutationSetStatus(state.RunExecuting)); err != nil {
		return Report{}, err
	}

	iteration := 0
	timeExhausted := false
	var lastStepResult worker.StepResult
	history := make([]worker.StepResult, 0, 16)
	aborted := false

loop:
	for {
		snap := e.Hub.Snapshot()
		if e.stop.Load() {
			break
		}
		if budget.Exhausted() {
			timeExhausted = true
			break
		}
		ready, ok := snap.Plan.ReadyStep()
		if !ok {
			break
		}

		if err := e.Hub.Apply(state.MutationUpdateStepStatus(ready.Number, plan.StepInProgress, state.StepUpdate{})); err != nil {
			return Report{}, loopErrors.New(loopErrors.CodeInternalInvariantViolation, "failed to dispatch step").WithCause(err)
		}

		stepCtx := ctx
		var cancel context.CancelFunc
		if remaining := budget.Remaining(); remaining > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, remaining)
		}
		result, werr := e.Worker.ExecuteStep(stepCtx, worker.StepRequest{
			Goal:               e.params.PrimaryGoal,
			Plan:               snap.Plan,
			StepNumber:         ready.Number,
			AccumulatedContext: e.params.InitialContext,
			WorkingDirectory:   e.params.WorkingDirectory,
		})
		if cancel != nil {
			cancel()
		}

		if werr != nil {
			result = worker.StepResult{Status: worker.StatusFailed, FailReason: werr.Error()}
		}
		lastStepResult = result
		history = append(history, result)

		if err := applyStepResult(e.Hub, ready.Number, result); err != nil {
			return Report{}, err
		}

		iteration++

		if e.Supervisor != nil {
			assessment, aerr := e.Supervisor.Assess(ctx, supervisor.Request{
				Plan:           e.Hub.Snapshot().Plan,
				LastStepResult: lastStepResult,
				History:        history,
			})
			if aerr != nil {
				e.log().Warn("supervisor assessment failed: " + aerr.Error())
			} else {
				ss := tracker.Record(assessment)
				if err := e.Hub.Apply(state.MutationRecordSupervision(toStateSupervision(ss))); err != nil {
					return Report{}, err
				}
				if assessment.ShouldAbort() {
					aborted = true
					break loop
				}
			}
		}

		if iteration%rePlanEveryK == 0 || result.Status == worker.StatusFailed {
			replan, perr := e.Planner.Plan(ctx, planner.Request{
				Goal:      e.params.PrimaryGoal,
				SubGoals:  e.params.SubGoals,
				Context:   e.params.InitialContext,
				PriorPlan: ptr(e.Hub.Snapshot().Plan),
			})
			if perr != nil {
				return Report{}, loopErrors.New(loopErrors.CodePlannerError, "re-planning failed").WithCause(perr)
			}
			if err := e.Hub.Apply(state.MutationReplacePlan(replan)); err != nil {
				return Report{}, err
			}
		}
	}

	finalSnap := e.Hub.Snapshot()

	if aborted {
		if err := e.Hub.Apply(state.MutationSetStatus(state.RunAborted)); err != nil {
			return Report{}, err
		}
		return buildReport(e.params.AttemptNumber, finalSnap, nil, tracker.State(), budget.Elapsed(), iteration, state.RunAborted, e.stop.Load(), timeExhausted), nil
	}

	if e.stop.Load() {
		if err := e.Hub.Apply(state.MutationSetStatus(state.RunAborted)); err != nil {
			return Report{}, err
		}
		return buildReport(e.params.AttemptNumber, finalSnap, nil, tracker.State(), budget.Elapsed(), iteration, state.RunAborted, true, timeExhausted), nil
	}

	if err := e.Hub.Apply(state.MutationSetStatus(state.RunVerifying)); err != nil {
		return Report{}, err
	}
	completed := finalSnap.Plan.CompletedStepNumbers()
	verification, verr := e.Verifier.Verify(ctx, verifier.Request{
		Goal:           e.params.PrimaryGoal,
		Plan:           finalSnap.Plan,
		CompletedSteps: completed,
	})
	if verr != nil {
		return Report{}, loopErrors.New(loopErrors.CodeVerifierError, "verification failed").WithCause(verr)
	}
	if err := e.Hub.Apply(state.MutationRecordVerification(verification)); err != nil {
		return Report{}, err
	}

	finalStatus := state.RunFailed
	if verification.Passed && verification.GoalAchieved {
		finalStatus = state.RunCompleted
	}
	if err := e.Hub.Apply(state.MutationSetStatus(finalStatus)); err != nil {
		return Report{}, err
	}

	finalSnap = e.Hub.Snapshot()
	return buildReport(e.params.AttemptNumber, finalSnap, &verification, tracker.State(), budget.Elapsed(), iteration, finalStatus, false, timeExhausted), nil
}

func applyStepResult(hub *state.Hub, stepNumber int, result worker.StepResult) error {
	var to plan.StepStatus
	switch result.Status {
	case worker.StatusCompleted:
		to = plan.StepCompleted
	case worker.StatusBlocked:
		to = plan.StepBlocked
	default:
		to = plan.StepFailed
	}
	return hub.Apply(state.MutationUpdateStepStatus(stepNumber, to, state.StepUpdate{
		FailReason:   result.FailReason,
		Verification: result.Verification,
		Output:       result.Output,
	}))
}

func toStateSupervision(s supervision.State) state.SupervisionState {
	return state.SupervisionState{
		LastAssessment:    s.LastAssessment,
		ConsecutiveIssues: s.ConsecutiveIssues,
		NeedsIntervention: s.NeedsIntervention,
		Checks:            s.Checks,
		Interventions:     s.Interventions,
	}
}

func buildReport(attemptNumber int, snap state.Snapshot, verification *state.VerificationResult, sup supervision.State, elapsed time.Duration, iterations int, status state.RunStatus, stopRequested, timeExhausted bool) Report {
	completed := snap.Plan.CompletedStepNumbers()
	failed := snap.Plan.FailedStepNumbers()
	return Report{
		AttemptNumber:  attemptNumber,
		PlanSnapshot:   snap.Plan,
		Verification:   verification,
		Supervision:    sup,
		ElapsedMs:      elapsed.Milliseconds(),
		IterationCount: iterations,
		Status:         status,
		CompletedSteps: completed,
		FailedSteps:    failed,
		StopRequested:  stopRequested,
		TimeExhausted:  timeExhausted,
	}
}

func ptr(p plan.Plan) *plan.Plan { return &p }

// Summary renders a one-line description of the report for logging
// and for the Retry Controller's attemptHistory.
func (r Report) Summary() string {
	return fmt.Sprintf("attempt %d: status=%s iterations=%d completed=%d failed=%d",
		r.AttemptNumber, r.Status, r.IterationCount, len(r.CompletedSteps), len(r.FailedSteps))
}
