package plan

import (
	"testing"
	"time"

	loopErrors "loopctl/internal/errors"
)

func TestValidateAcyclic(t *testing.T) {
	p := Plan{Steps: []Step{
		{Number: 1, Dependencies: map[int]struct{}{2: {}}},
		{Number: 2, Dependencies: map[int]struct{}{1: {}}},
	}}
	if err := p.Validate(); err == nil {
		t.Fatalf("expected cycle detection error")
	}
}

func TestValidateUnknownDependency(t *testing.T) {
	p := Plan{Steps: []Step{
		{Number: 1, Dependencies: map[int]struct{}{99: {}}},
	}}
	if err := p.Validate(); err == nil {
		t.Fatalf("expected unknown dependency error")
	}
}

func TestValidateDuplicateNumber(t *testing.T) {
	p := Plan{Steps: []Step{
		{Number: 1}, {Number: 1},
	}}
	if err := p.Validate(); err == nil {
		t.Fatalf("expected duplicate step number error")
	}
}

func TestValidateAcyclicOK(t *testing.T) {
	p := Plan{Steps: []Step{
		{Number: 1},
		{Number: 2, Dependencies: map[int]struct{}{1: {}}},
		{Number: 3, Dependencies: map[int]struct{}{1: {}, 2: {}}},
	}}
	if err := p.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAllowedTransitions(t *testing.T) {
	cases := []struct {
		from, to StepStatus
		want     bool
	}{
		{StepPending, StepInProgress, true},
		{StepPending, StepBlocked, true},
		{StepInProgress, StepCompleted, true},
		{StepInProgress, StepFailed, true},
		{StepInProgress, StepBlocked, true},
		{StepBlocked, StepPending, true},
		{StepFailed, StepInProgress, true},
		{StepCompleted, StepInProgress, false},
		{StepPending, StepCompleted, false},
		{StepFailed, StepCompleted, false},
		{StepInProgress, StepPending, false},
	}
	for _, c := range cases {
		got := IsAllowedTransition(c.from, c.to)
		if got != c.want {
			t.Errorf("IsAllowedTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestApplyTransitionSetsTimestamps(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := Step{Number: 1, Status: StepPending}

	s, err := ApplyTransition(s, StepInProgress, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.StartedAt != now {
		t.Fatalf("expected StartedAt set")
	}

	later := now.Add(5 * time.Second)
	s, err = ApplyTransition(s, StepCompleted, later)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.EndedAt != later {
		t.Fatalf("expected EndedAt set")
	}
	if s.DurationMs != 5000 {
		t.Fatalf("expected DurationMs=5000, got %d", s.DurationMs)
	}
}

func TestApplyTransitionRejectsIllegalEdge(t *testing.T) {
	s := Step{Number: 1, Status: StepCompleted}
	_, err := ApplyTransition(s, StepInProgress, time.Now())
	if err == nil {
		t.Fatalf("expected illegal transition error")
	}
	code, ok := loopErrors.CodeOf(err)
	if !ok || code != loopErrors.CodeIllegalStepTransition {
		t.Fatalf("expected CodeIllegalStepTransition, got %v", err)
	}
}

func TestApplyTransitionRetryIncrementsCount(t *testing.T) {
	now := time.Now()
	s := Step{Number: 1, Status: StepFailed, RetryCount: 0}
	s, err := ApplyTransition(s, StepInProgress, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.RetryCount != 1 {
		t.Fatalf("expected RetryCount=1 after retry, got %d", s.RetryCount)
	}
}

func TestDiffSoundness(t *testing.T) {
	old := Plan{Steps: []Step{
		{Number: 1, Status: StepPending},
		{Number: 2, Status: StepPending},
	}}
	newP := Plan{Steps: []Step{
		{Number: 1, Status: StepCompleted},
		{Number: 2, Status: StepPending},
		{Number: 3, Status: StepPending},
	}}
	now := time.Now()
	d := Diff(old, newP, now)

	if len(d.StatusTransitions) != 1 {
		t.Fatalf("expected exactly one status transition, got %d", len(d.StatusTransitions))
	}
	tr := d.StatusTransitions[0]
	if tr.StepNumber != 1 || tr.From != StepPending || tr.To != StepCompleted {
		t.Errorf("unexpected transition: %+v", tr)
	}
	if _, ok := d.NewSteps[3]; !ok {
		t.Errorf("expected step 3 to be reported new")
	}
	if _, ok := d.ChangedSteps[2]; ok {
		t.Errorf("step 2 is unchanged and should not be in ChangedSteps")
	}
}

func TestReadyStepDeterministicTieBreak(t *testing.T) {
	p := Plan{Steps: []Step{
		{Number: 3, Status: StepPending},
		{Number: 1, Status: StepPending},
		{Number: 2, Status: StepPending, Dependencies: map[int]struct{}{1: {}}},
	}}
	s, ok := p.ReadyStep()
	if !ok || s.Number != 1 {
		t.Fatalf("expected step 1 ready first, got %+v ok=%v", s, ok)
	}
}

func TestReadyStepRespectsDependencies(t *testing.T) {
	p := Plan{Steps: []Step{
		{Number: 1, Status: StepInProgress},
		{Number: 2, Status: StepPending, Dependencies: map[int]struct{}{1: {}}},
	}}
	_, ok := p.ReadyStep()
	if ok {
		t.Fatalf("expected no ready step while dependency incomplete")
	}
}

func TestMergeCarryOverPreservesDurationAndRetry(t *testing.T) {
	old := Plan{Steps: []Step{
		{Number: 1, DurationMs: 1500, RetryCount: 2},
	}}
	replanned := Plan{Steps: []Step{
		{Number: 1, Description: "redo step one"},
		{Number: 2, Description: "new step"},
	}}
	merged := MergeCarryOver(old, replanned)
	s, _ := merged.StepByNumber(1)
	if s.DurationMs != 1500 || s.RetryCount != 2 {
		t.Fatalf("expected carry-over fields preserved, got %+v", s)
	}
	s2, _ := merged.StepByNumber(2)
	if s2.DurationMs != 0 || s2.RetryCount != 0 {
		t.Fatalf("expected new step to have zero carry-over fields, got %+v", s2)
	}
}

func TestFailedStepNumbersIncludesBlocked(t *testing.T) {
	p := Plan{Steps: []Step{
		{Number: 1, Status: StepCompleted},
		{Number: 2, Status: StepFailed},
		{Number: 3, Status: StepBlocked},
		{Number: 4, Status: StepPending},
	}}
	got := p.FailedStepNumbers()
	want := []int{2, 3}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
