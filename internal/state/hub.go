package state

import (
	"fmt"
	"sync"
	"time"

	"loopctl/internal/bus"
	loopErrors "loopctl/internal/errors"
	"loopctl/internal/plan"
)

// Hub is the sole mutator of Run/Plan/Attempt/SupervisionState. Writes
// serialize through a single exclusive writer; Snapshot takes the
// read lock so concurrent readers (a gateway session's init snapshot,
// the attempt loop's per-iteration Hub.Snapshot) don't serialize
// against each other, only against a writer — matching jobs.Store's
// pattern of "append then fan out" under one lock held only for the
// critical section.
type Hub struct {
	mu          sync.RWMutex
	run         Run
	plan        plan.Plan
	supervision SupervisionState
	attempts    []Attempt
	errs        []string

	bus *bus.Bus
	now func() time.Time
}

// New creates a Hub publishing derived events to the given Bus. If
// bus is nil, mutations still apply but no events are emitted — used
// by tests that only care about state, not the wire.
func New(b *bus.Bus) *Hub {
	return &Hub{
		run:  Run{Status: RunIdle},
		bus:  b,
		now:  time.Now,
	}
}

// Snapshot returns an immutable copy of the current state. It takes
// only the read lock, so it never blocks behind another Snapshot.
func (h *Hub) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshotLocked()
}

func (h *Hub) snapshotLocked() Snapshot {
	attempts := make([]Attempt, len(h.attempts))
	copy(attempts, h.attempts)
	errs := make([]string, len(h.errs))
	copy(errs, h.errs)
	return Snapshot{
		Run:         h.run,
		Plan:        h.plan.Clone(),
		Supervision: h.supervision,
		Attempts:    attempts,
		Errors:      errs,
	}
}

// Initialize sets up a fresh Run — called once at the start of a
// top-level invocation, before any Attempt Engine runs.
func (h *Hub) Initialize(goal string, subGoals []string, initialContext, sessionID string, startedAt time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.run = Run{
		Status:         RunInitializing,
		Goal:           goal,
		SubGoals:       subGoals,
		InitialContext: initialContext,
		StartedAt:      startedAt,
		SessionID:      sessionID,
	}
	h.plan = plan.Plan{}
	h.supervision = SupervisionState{}
	h.attempts = nil
	h.errs = nil
}

// Apply performs one Mutation under the Hub's single-writer lock and
// publishes any derived events the mutation implies.
func (h *Hub) Apply(m Mutation) error {
	h.mu.Lock()
	var (
		stateUpdate  *stepChangesEvent
		supervision  *SupervisionState
		verification *VerificationResult
		resetSnap    *Snapshot
		applyErr     error
	)

	switch m.kind {
	case kindSetStatus:
		h.run.Status = m.setStatus
	case kindSetGoal:
		h.run.Goal = m.setGoal
	case kindReplacePlan:
		if err := m.replacePlan.Validate(); err != nil {
			applyErr = err
			break
		}
		merged := plan.MergeCarryOver(h.plan, m.replacePlan)
		merged.Version = h.plan.Version + 1
		diff := plan.Diff(h.plan, merged, h.now())
		h.plan = merged
		stateUpdate = &stepChangesEvent{diff: diff}
	case kindUpdateStepStatus:
		s, ok := h.plan.StepByNumber(m.stepNumber)
		if !ok {
			applyErr = loopErrors.New(loopErrors.CodeNotFound, "step not found")
			break
		}
		if err := h.singleInFlightOK(m.stepNumber, m.stepNewStatus); err != nil {
			applyErr = err
			break
		}
		next, err := plan.ApplyTransition(s, m.stepNewStatus, h.now())
		if err != nil {
			applyErr = err
			break
		}
		if m.stepFailRead != "" {
			next.FailReason = m.stepFailRead
		}
		if m.stepVerify != "" {
			next.Verification = m.stepVerify
		}
		if m.stepOutput != "" {
			next.Output = m.stepOutput
		}
		old := h.plan
		h.replaceStep(next)
		h.plan.Version++
		diff := plan.Diff(old, h.plan, h.now())
		stateUpdate = &stepChangesEvent{diff: diff}
	case kindRecordSupervision:
		h.supervision = m.supervision
		supervision = &m.supervision
	case kindRecordVerification:
		verification = &m.verification
	case kindAppendError:
		h.errs = append(h.errs, m.appendError)
	case kindReset:
		h.run = Run{Status: RunPlanning, Goal: h.run.Goal, SubGoals: h.run.SubGoals, InitialContext: h.run.InitialContext, SessionID: h.run.SessionID, StartedAt: h.now()}
		h.plan = plan.Plan{}
		h.supervision = SupervisionState{}
		snap := h.snapshotLocked()
		resetSnap = &snap
	}

	snap := h.snapshotLocked()
	h.mu.Unlock()

	if applyErr != nil {
		return applyErr
	}
	if h.bus == nil {
		return nil
	}
	if stateUpdate != nil {
		h.bus.Publish(bus.Event{Type: bus.EventStateUpdate, Data: map[string]any{
			"snapshot": snap,
			"stepChanges": map[string]any{
				"lastUpdated":       stateUpdate.diff.LastUpdated,
				"changedSteps":      stateUpdate.diff.ChangedStepNumbers(),
				"newSteps":          stateUpdate.diff.NewStepNumbers(),
				"statusTransitions": stateUpdate.diff.StatusTransitions,
			},
		}})
	}
	if supervision != nil {
		h.bus.Publish(bus.Event{Type: bus.EventSupervision, Data: *supervision})
	}
	if verification != nil {
		h.bus.Publish(bus.Event{Type: bus.EventVerification, Data: *verification})
	}
	if resetSnap != nil {
		h.bus.Publish(bus.Event{Type: bus.EventReset, Data: *resetSnap})
	}
	return nil
}

type stepChangesEvent struct {
	diff plan.StepDiff
}

// singleInFlightOK enforces that at most one step may be in_progress
// at any committed snapshot.
func (h *Hub) singleInFlightOK(targetNumber int, newStatus plan.StepStatus) error {
	if newStatus != plan.StepInProgress {
		return nil
	}
	for _, s := range h.plan.Steps {
		if s.Number != targetNumber && s.Status == plan.StepInProgress {
			return loopErrors.New(loopErrors.CodeIllegalStepTransition, "another step is already in_progress").
				WithContext("step", fmt.Sprint(targetNumber)).
				WithContext("conflictingStep", fmt.Sprint(s.Number))
		}
	}
	return nil
}

func (h *Hub) replaceStep(next plan.Step) {
	for i := range h.plan.Steps {
		if h.plan.Steps[i].Number == next.Number {
			h.plan.Steps[i] = next
			return
		}
	}
}

// RecordAttempt appends a completed Attempt summary to history — the
// State Hub owns Attempt history even though Attempt construction
// itself happens in internal/attempt.
func (h *Hub) RecordAttempt(a Attempt) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attempts = append(h.attempts, a)
}
