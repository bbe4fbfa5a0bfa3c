package plan

import (
	"sort"
	"time"
)

// StatusTransition records one step's status change between two plan
// snapshots; Diff returns them sorted by step number for determinism
// on the wire.
type StatusTransition struct {
	StepNumber int
	From       StepStatus
	To         StepStatus
	Timestamp  time.Time
}

// StepDiff is the structural difference between two consecutive Plan
// snapshots, computed by step number. Internally changed/new steps
// are sets; ChangedStepNumbers and NewStepNumbers return them as
// sorted sequences for serialization since
// the wire format favors arrays over sets.
type StepDiff struct {
	ChangedSteps      map[int]struct{}
	NewSteps          map[int]struct{}
	StatusTransitions []StatusTransition
	LastUpdated       time.Time
}

// Diff computes the StepDiff between an old and new plan snapshot.
// Carry-over fields (DurationMs, RetryCount) are expected to already
// have been preserved by the caller (state.Hub.Apply) before Diff
// runs; Diff only reports what differs.
func Diff(oldPlan, newPlan Plan, now time.Time) StepDiff {
	d := StepDiff{
		ChangedSteps: map[int]struct{}{},
		NewSteps:     map[int]struct{}{},
		LastUpdated:  now,
	}

	oldByNumber := make(map[int]Step, len(oldPlan.Steps))
	for _, s := range oldPlan.Steps {
		oldByNumber[s.Number] = s
	}

	for _, ns := range newPlan.Steps {
		os, existed := oldByNumber[ns.Number]
		if !existed {
			d.NewSteps[ns.Number] = struct{}{}
			d.ChangedSteps[ns.Number] = struct{}{}
			continue
		}
		if os.Status != ns.Status {
			d.ChangedSteps[ns.Number] = struct{}{}
			d.StatusTransitions = append(d.StatusTransitions, StatusTransition{
				StepNumber: ns.Number,
				From:       os.Status,
				To:         ns.Status,
				Timestamp:  now,
			})
			continue
		}
		if !stepsEqualIgnoringStatus(os, ns) {
			d.ChangedSteps[ns.Number] = struct{}{}
		}
	}

	sort.Slice(d.StatusTransitions, func(i, j int) bool {
		return d.StatusTransitions[i].StepNumber < d.StatusTransitions[j].StepNumber
	})

	return d
}

func stepsEqualIgnoringStatus(a, b Step) bool {
	return a.Description == b.Description &&
		a.Complexity == b.Complexity &&
		a.FailReason == b.FailReason &&
		a.Verification == b.Verification &&
		a.Output == b.Output &&
		a.RetryCount == b.RetryCount &&
		a.DurationMs == b.DurationMs
}

// ChangedStepNumbers returns the changed-step set as a sorted slice,
// for the wire format.
func (d StepDiff) ChangedStepNumbers() []int {
	return sortedKeys(d.ChangedSteps)
}

// NewStepNumbers returns the new-step set as a sorted slice, for the
// wire format.
func (d StepDiff) NewStepNumbers() []int {
	return sortedKeys(d.NewSteps)
}

func sortedKeys(m map[int]struct{}) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
