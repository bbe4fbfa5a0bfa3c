// Package supervision implements the Supervision Tracker: a rolling
// issue counter and escalation policy fed by the Supervisor adapter's
// per-iteration Assessment. Grounded on the FailureStreak/
// NoProgressStreak counters in
// services/runner/internal/autonomous/orchestrator.go (Loop.tick),
// generalized from two independent streaks to a single
// consecutiveIssues counter driven by an explicit action/score pair
// rather than an implicit tool-success boolean.
package supervision

// Action is the Supervisor's recommended next move.
type Action string

const (
	ActionContinue Action = "CONTINUE"
	ActionRedirect Action = "REDIRECT"
	ActionAbort    Action = "ABORT"
)

// Assessment is the Supervisor adapter's output for one check.
type Assessment struct {
	Action Action
	Score  int // 0-100
	Reason string
}

// DefaultThreshold is the default consecutiveIssues threshold at which
// needsIntervention becomes true.
const DefaultThreshold = 3

// Tracker accumulates Assessments into a rolling SupervisionState. It
// holds no locks of its own — callers (the Attempt Engine) invoke it
// from the single control task, matching the session-local streak
// fields mutated only from Loop.tick.
type Tracker struct {
	threshold int

	lastAssessment    string
	consecutiveIssues int
	needsIntervention bool
	checks            int
	interventions     int
}

// NewTracker creates a Tracker escalating at threshold consecutive
// issues. A threshold <= 0 falls back to DefaultThreshold.
func NewTracker(threshold int) *Tracker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Tracker{threshold: threshold}
}

// Record folds one Assessment into the tracker's rolling state:
//   - consecutiveIssues increments on REDIRECT, on ABORT, or on any
//     score < 50; it resets to 0 on CONTINUE with score >= 50.
//   - needsIntervention becomes true once consecutiveIssues reaches
//     the threshold, or immediately on any ABORT, and latches (an
//     intervention is a historical fact, not an instantaneous flag
//     that can un-latch on a later good Assessment).
func (t *Tracker) Record(a Assessment) State {
	t.checks++
	t.lastAssessment = string(a.Action)

	isIssue := a.Action == ActionRedirect || a.Action == ActionAbort || a.Score < 50
	if isIssue {
		t.consecutiveIssues++
	} else if a.Action == ActionContinue && a.Score >= 50 {
		t.consecutiveIssues = 0
	}

	if a.Action == ActionAbort || t.consecutiveIssues >= t.threshold {
		if !t.needsIntervention {
			t.interventions++
		}
		t.needsIntervention = true
	}

	return t.State()
}

// State returns the current SupervisionState snapshot.
func (t *Tracker) State() State {
	return State{
		LastAssessment:    t.lastAssessment,
		ConsecutiveIssues: t.consecutiveIssues,
		NeedsIntervention: t.needsIntervention,
		Checks:            t.checks,
		Interventions:     t.interventions,
	}
}

// State is the rolling supervision snapshot, kept independent of
// internal/state's copy so this package stays import-free of it;
// internal/attempt converts between the two at the call boundary.
type State struct {
	LastAssessment    string
	ConsecutiveIssues int
	NeedsIntervention bool
	Checks            int
	Interventions     int
}

// ShouldAbort reports whether the iteration loop must stop: on ABORT
// the Attempt Engine stops immediately and sets the Run status to
// aborted.
func (a Assessment) ShouldAbort() bool {
	return a.Action == ActionAbort
}
