package attempt

import (
	"context"
	"testing"
	"time"

	"loopctl/internal/plan"
	"loopctl/internal/planner"
	"loopctl/internal/state"
	"loopctl/internal/supervision"
	"loopctl/internal/supervisor"
	"loopctl/internal/verifier"
	"loopctl/internal/worker"
)

type fixedPlanner struct {
	p plan.Plan
}

func (f fixedPlanner) Plan(_ context.Context, _ planner.Request) (plan.Plan, error) {
	return f.p, nil
}

type scriptedWorker struct {
	results map[int]worker.StepResult
}

func (w scriptedWorker) ExecuteStep(_ context.Context, req worker.StepRequest) (worker.StepResult, error) {
	if r, ok := w.results[req.StepNumber]; ok {
		return r, nil
	}
	return worker.StepResult{Status: worker.StatusCompleted}, nil
}

type highVerifier struct{}

func (highVerifier) Verify(_ context.Context, req verifier.Request) (state.VerificationResult, error) {
	return state.VerificationResult{Passed: true, Confidence: state.ConfidenceHigh, GoalAchieved: true}, nil
}

type lowVerifier struct{ gaps string }

func (v lowVerifier) Verify(_ context.Context, req verifier.Request) (state.VerificationResult, error) {
	return state.VerificationResult{Passed: false, Confidence: state.ConfidenceMedium, Gaps: v.gaps}, nil
}

type abortSupervisor struct{ afterStep int }

func (s abortSupervisor) Assess(_ context.Context, req supervisor.Request) (supervision.Assessment, error) {
	if len(req.History) >= s.afterStep {
		return supervision.Assessment{Action: supervision.ActionAbort, Score: 0, Reason: "unsafe"}, nil
	}
	return supervision.Assessment{Action: supervision.ActionContinue, Score: 90}, nil
}

func twoStepPlan() plan.Plan {
	return plan.Plan{Steps: []plan.Step{
		{Number: 1, Description: "first", Status: plan.StepPending},
		{Number: 2, Description: "second", Status: plan.StepPending, Dependencies: map[int]struct{}{1: {}}},
	}}
}

func TestFirstAttemptHigh(t *testing.T) {
	hub := state.New(nil)
	hub.Initialize("goal", nil, "ctx", "session-1", time.Now())

	e := &Engine{
		Hub:      hub,
		Planner:  fixedPlanner{p: twoStepPlan()},
		Worker:   scriptedWorker{results: map[int]worker.StepResult{}},
		Verifier: highVerifier{},
	}
	e.Initialize(Params{PrimaryGoal: "goal", TimeLimit: time.Hour, AttemptNumber: 1})

	report, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Status != state.RunCompleted {
		t.Fatalf("expected completed, got %s", report.Status)
	}
	if report.Verification == nil || report.Verification.Confidence != state.ConfidenceHigh {
		t.Fatalf("expected HIGH confidence verification")
	}
	if len(report.CompletedSteps) != 2 {
		t.Fatalf("expected both steps completed, got %v", report.CompletedSteps)
	}
}

func TestWorkerFailureRecordedButAttemptContinues(t *testing.T) {
	hub := state.New(nil)
	hub.Initialize("goal", nil, "ctx", "session-1", time.Now())

	e := &Engine{
		Hub:     hub,
		Planner: fixedPlanner{p: twoStepPlan()},
		Worker: scriptedWorker{results: map[int]worker.StepResult{
			1: {Status: worker.StatusFailed, FailReason: "boom"},
		}},
		Verifier: lowVerifier{gaps: "missing test"},
	}
	e.Initialize(Params{PrimaryGoal: "goal", TimeLimit: time.Hour, AttemptNumber: 1})

	report, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.FailedSteps) != 1 || report.FailedSteps[0] != 1 {
		t.Fatalf("expected step 1 recorded as failed, got %v", report.FailedSteps)
	}
	if report.Verification.Gaps != "missing test" {
		t.Fatalf("expected gaps preserved on report, got %q", report.Verification.Gaps)
	}
}

func TestSupervisorAbortStopsAttemptImmediately(t *testing.T) {
	hub := state.New(nil)
	hub.Initialize("goal", nil, "ctx", "session-1", time.Now())

	e := &Engine{
		Hub:        hub,
		Planner:    fixedPlanner{p: twoStepPlan()},
		Worker:     scriptedWorker{results: map[int]worker.StepResult{}},
		Verifier:   highVerifier{},
		Supervisor: abortSupervisor{afterStep: 1},
	}
	e.Initialize(Params{PrimaryGoal: "goal", TimeLimit: time.Hour, AttemptNumber: 1})

	report, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Status != state.RunAborted {
		t.Fatalf("expected aborted, got %s", report.Status)
	}
	if report.Verification != nil {
		t.Fatalf("expected nil verification on abort, got %+v", report.Verification)
	}
	if report.IterationCount != 1 {
		t.Fatalf("expected exactly 1 iteration before abort, got %d", report.IterationCount)
	}
}

func TestStopRequestedHaltsAtNextSafePoint(t *testing.T) {
	hub := state.New(nil)
	hub.Initialize("goal", nil, "ctx", "session-1", time.Now())

	e := &Engine{
		Hub:      hub,
		Planner:  fixedPlanner{p: twoStepPlan()},
		Worker:   scriptedWorker{results: map[int]worker.StepResult{}},
		Verifier: highVerifier{},
	}
	e.Initialize(Params{PrimaryGoal: "goal", TimeLimit: time.Hour, AttemptNumber: 1})
	e.Stop()

	report, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.StopRequested {
		t.Fatalf("expected StopRequested true")
	}
	if report.Status != state.RunAborted {
		t.Fatalf("expected aborted status on stop, got %s", report.Status)
	}
}
