// Package retry implements the Retry Controller: the outer loop that
// allocates a time budget to a sequence of Attempt Engine runs,
// synthesizes failure context between attempts, and decides when to
// stop. Grounded on the same
// services/runner/internal/autonomous/orchestrator.go Loop shape as
// internal/attempt — here generalized from "burst, sleep, repeat
// until a StatusReason fires" to "run an attempt, decide shouldRetry,
// repeat until maxAttempts or time exhaustion".
package retry

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"loopctl/internal/attempt"
	"loopctl/internal/bus"
	"loopctl/internal/plan"
	"loopctl/internal/planner"
	"loopctl/internal/state"
	"loopctl/internal/supervision"
	"loopctl/internal/supervisor"
	"loopctl/internal/telemetry"
	"loopctl/internal/timebudget"
	"loopctl/internal/verifier"
	"loopctl/internal/worker"
)

const minAttemptLimit = 5 * time.Minute

// Params is the Retry Controller's Initialize input.
type Params struct {
	Goal             string
	SubGoals         []string
	InitialContext   string
	MaxAttempts      int
	OverallTimeLimit time.Duration
	WorkingDirectory string
}

// AttemptSummary is one attemptHistory entry.
type AttemptSummary struct {
	AttemptNumber  int
	Duration       time.Duration
	Status         state.RunStatus
	Confidence     state.Confidence
	CompletedSteps []string
	FailedSteps    []string
	Gaps           string
	Recommendation string
}

// RetryInfo records the outer loop's own bookkeeping, merged onto the
// last attempt report to form the FinalReport.
type RetryInfo struct {
	TotalAttempts int
	TimeExhausted bool
}

// FinalReport is the Retry Controller's Run() output.
type FinalReport struct {
	FinalVerification *state.VerificationResult
	Supervision       supervision.State
	AttemptHistory    []AttemptSummary
	LastPlanSnapshot  state.Snapshot
	RetryInfo         RetryInfo
}

// Controller runs the outer retry loop over a shared State Hub and
// event bus, instantiating a fresh Attempt Engine per attempt.
type Controller struct {
	Hub        *state.Hub
	Bus        *bus.Bus // optional; used only to emit time_exhausted escalations
	Planner    planner.Planner
	Worker     worker.Worker
	Verifier   verifier.Verifier
	Supervisor supervisor.Supervisor

	SupervisionThreshold int
	RePlanEveryK         int
	Logger               *telemetry.Logger

	// Clock is injectable for deterministic tests of the progressive
	// time-allocation schedule.
	Clock func() time.Time

	params  Params
	stop    atomic.Bool
	current atomic.Pointer[attempt.Engine]
}

// Initialize records the outer-loop parameters.
func (c *Controller) Initialize(p Params) {
	c.params = p
}

// Stop requests cooperative termination of the outer loop; the
// in-flight attempt is asked to stop at its own next safe point.
func (c *Controller) Stop() {
	c.stop.Store(true)
	if eng := c.current.Load(); eng != nil {
		eng.Stop()
	}
}

func (c *Controller) clock() func() time.Time {
	if c.Clock != nil {
		return c.Clock
	}
	return time.Now
}

// CalculateAttemptTimeLimit implements the progressive allocation
// schedule: factor = {1:0.5, 2:0.3, 3:0.5}[min(attempt,3)], otherwise
// 0.5 for attempt >= 4 — preserved exactly as designed even though it
// can grant most of the remaining budget to a single late attempt.
func CalculateAttemptTimeLimit(attemptNumber int, remaining time.Duration) time.Duration {
	if remaining < minAttemptLimit {
		return 0
	}
	factor := factorFor(attemptNumber)
	limit := time.Duration(float64(remaining) * factor)
	if limit < minAttemptLimit {
		limit = minAttemptLimit
	}
	return limit
}

func factorFor(attemptNumber int) float64 {
	switch {
	case attemptNumber <= 1:
		return 0.5
	case attemptNumber == 2:
		return 0.3
	case attemptNumber == 3:
		return 0.5
	default:
		return 0.5
	}
}

// shouldRetry implements the outer loop's stop decision:
//   - report == nil -> retry iff hasTimeRemaining.
//   - confidence == HIGH && goalAchieved -> stop.
//   - status == aborted -> stop.
//   - verification.passed (any confidence) -> stop.
//   - otherwise -> retry iff hasTimeRemaining.
func shouldRetry(report *attempt.Report, hasTimeRemaining bool) bool {
	if report == nil {
		return hasTimeRemaining
	}
	if report.Status == state.RunAborted {
		return false
	}
	if report.Verification != nil {
		if report.Verification.Confidence == state.ConfidenceHigh && report.Verification.GoalAchieved {
			return false
		}
		if report.Verification.Passed {
			return false
		}
	}
	return hasTimeRemaining
}

// Run executes the outer loop and returns the FinalReport. The loop
// is bounded by MaxAttempts and by CalculateAttemptTimeLimit returning
// 0 once the remaining budget drops below minAttemptLimit, so Run
// always terminates for finite inputs.
func (c *Controller) Run(ctx context.Context) FinalReport {
	startedAt := c.clock()()
	overall := timebudget.NewAt(startedAt, c.params.OverallTimeLimit, c.clock())

	var history []AttemptSummary
	var lastReport *attempt.Report
	timeExhausted := false

	maxAttempts := c.params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	for attemptNumber := 1; attemptNumber <= maxAttempts; attemptNumber++ {
		if c.stop.Load() {
			break
		}

		remaining := overall.Remaining()
		attemptLimit := CalculateAttemptTimeLimit(attemptNumber, remaining)
		if attemptLimit <= 0 {
			timeExhausted = true
			c.emitTimeExhausted(attemptNumber)
			break
		}

		if attemptNumber > 1 {
			if err := c.Hub.Apply(state.MutationReset()); err != nil {
				c.log().Error("failed to reset hub between attempts", err)
				break
			}
		}

		failureContext := c.buildFailureContext(history)

		eng := &attempt.Engine{
			Hub:                  c.Hub,
			Planner:              c.Planner,
			Worker:               c.Worker,
			Verifier:             c.Verifier,
			Supervisor:           c.Supervisor,
			SupervisionThreshold: c.SupervisionThreshold,
			RePlanEveryK:         c.RePlanEveryK,
			Logger:               c.Logger,
		}
		eng.Initialize(attempt.Params{
			PrimaryGoal:      c.params.Goal,
			SubGoals:         c.params.SubGoals,
			InitialContext:   failureContext,
			TimeLimit:        attemptLimit,
			WorkingDirectory: c.params.WorkingDirectory,
			AttemptNumber:    attemptNumber,
		})
		c.current.Store(eng)
		if c.stop.Load() {
			eng.Stop()
		}

		report, err := eng.Run(ctx)
		if err != nil {
			c.log().Error(fmt.Sprintf("attempt %d failed", attemptNumber), err)
			report = attempt.Report{AttemptNumber: attemptNumber, Status: state.RunFailed}
		}
		lastReport = &report
		history = append(history, summarize(report))

		if !shouldRetry(&report, overall.Remaining() > 0) {
			break
		}
	}

	return buildFinalReport(lastReport, history, c.Hub.Snapshot(), timeExhausted)
}

func (c *Controller) emitTimeExhausted(attemptNumber int) {
	if c.Bus == nil {
		return
	}
	c.Bus.Publish(bus.Event{Type: bus.EventEscalation, Data: map[string]any{
		"type":    "time_exhausted",
		"message": fmt.Sprintf("attempt %d: no time remaining for another attempt", attemptNumber),
	}})
}

func (c *Controller) log() *telemetry.Logger {
	if c.Logger != nil {
		return c.Logger.WithComponent("retry")
	}
	return telemetry.NewLogger(nil, telemetry.LevelInfo).WithComponent("retry")
}

func summarize(r attempt.Report) AttemptSummary {
	s := AttemptSummary{
		AttemptNumber:  r.AttemptNumber,
		Duration:       time.Duration(r.ElapsedMs) * time.Millisecond,
		Status:         r.Status,
		CompletedSteps: stepDescriptions(r.PlanSnapshot, r.CompletedSteps, 5),
		FailedSteps:    stepReasons(r.PlanSnapshot, r.FailedSteps, 3),
	}
	if r.Verification != nil {
		s.Confidence = r.Verification.Confidence
		s.Gaps = r.Verification.Gaps
		s.Recommendation = r.Verification.Recommendation
	}
	return s
}

func stepDescriptions(p plan.Plan, numbers []int, max int) []string {
	out := make([]string, 0, max)
	for i, n := range numbers {
		if i >= max {
			break
		}
		if s, ok := p.StepByNumber(n); ok {
			out = append(out, s.Description)
		}
	}
	return out
}

func stepReasons(p plan.Plan, numbers []int, max int) []string {
	out := make([]string, 0, max)
	for i, n := range numbers {
		if i >= max {
			break
		}
		if s, ok := p.StepByNumber(n); ok {
			reason := s.FailReason
			if reason == "" {
				reason = "no reason given"
			}
			out = append(out, fmt.Sprintf("%s: %s", s.Description, reason))
		}
	}
	return out
}

func buildFinalReport(last *attempt.Report, history []AttemptSummary, finalSnap state.Snapshot, timeExhausted bool) FinalReport {
	fr := FinalReport{
		AttemptHistory:   history,
		LastPlanSnapshot: finalSnap,
		RetryInfo: RetryInfo{
			TotalAttempts: len(history),
			TimeExhausted: timeExhausted,
		},
	}
	if last != nil {
		fr.FinalVerification = last.Verification
		fr.Supervision = last.Supervision
	}
	return fr
}

// buildFailureContext synthesizes the next attempt's context: with no
// prior attempts, the raw initial context; otherwise the
// original context plus a per-attempt recap plus a trailing
// task-framing block instructing the next attempt to build on prior
// completions and close gaps.
func (c *Controller) buildFailureContext(history []AttemptSummary) string {
	if len(history) == 0 {
		return c.params.InitialContext
	}

	var b strings.Builder
	b.WriteString(c.params.InitialContext)
	b.WriteString("\n\n")

	for _, a := range history {
		fmt.Fprintf(&b, "--- Attempt %d (%s, confidence=%s) ---\n", a.AttemptNumber, a.Status, a.Confidence)
		if len(a.CompletedSteps) > 0 {
			b.WriteString("Completed:\n")
			for _, d := range a.CompletedSteps {
				fmt.Fprintf(&b, "  - %s\n", d)
			}
		}
		if len(a.FailedSteps) > 0 {
			b.WriteString("Failed/blocked:\n")
			for _, d := range a.FailedSteps {
				fmt.Fprintf(&b, "  - %s\n", d)
			}
		}
		if a.Gaps != "" {
			fmt.Fprintf(&b, "Gaps: %s\n", a.Gaps)
		}
		if a.Recommendation != "" {
			fmt.Fprintf(&b, "Recommendation: %s\n", a.Recommendation)
		}
		b.WriteString("\n")
	}

	b.WriteString("Build on the completions above and close the identified gaps in this attempt.\n")
	return b.String()
}
