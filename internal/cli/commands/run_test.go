package commands

import (
	"testing"

	"loopctl/internal/retry"
	"loopctl/internal/state"
)

func TestExitCodeForTimeExhaustionTakesPriority(t *testing.T) {
	report := retry.FinalReport{
		RetryInfo:         retry.RetryInfo{TimeExhausted: true},
		FinalVerification: &state.VerificationResult{Passed: true, Confidence: state.ConfidenceHigh, GoalAchieved: true},
	}
	if got := exitCodeFor(report); got != exitTimeExhausted {
		t.Fatalf("expected exitTimeExhausted, got %d", got)
	}
}

func TestExitCodeForAbortedLastAttempt(t *testing.T) {
	report := retry.FinalReport{
		AttemptHistory: []retry.AttemptSummary{
			{AttemptNumber: 1, Status: state.RunFailed},
			{AttemptNumber: 2, Status: state.RunAborted},
		},
	}
	if got := exitCodeFor(report); got != exitAbortedOrEscalated {
		t.Fatalf("expected exitAbortedOrEscalated, got %d", got)
	}
}

func TestExitCodeForHighConfidenceGoalAchieved(t *testing.T) {
	report := retry.FinalReport{
		FinalVerification: &state.VerificationResult{Confidence: state.ConfidenceHigh, GoalAchieved: true},
	}
	if got := exitCodeFor(report); got != exitSuccess {
		t.Fatalf("expected exitSuccess, got %d", got)
	}
}

func TestExitCodeForPassedAtAnyConfidence(t *testing.T) {
	report := retry.FinalReport{
		FinalVerification: &state.VerificationResult{Passed: true, Confidence: state.ConfidenceMedium},
	}
	if got := exitCodeFor(report); got != exitSuccess {
		t.Fatalf("expected exitSuccess, got %d", got)
	}
}

func TestExitCodeForUnresolvedVerificationFailure(t *testing.T) {
	report := retry.FinalReport{
		FinalVerification: &state.VerificationResult{Passed: false, Confidence: state.ConfidenceLow},
	}
	if got := exitCodeFor(report); got != exitVerificationFailed {
		t.Fatalf("expected exitVerificationFailed, got %d", got)
	}
}

func TestExitCodeForNilVerification(t *testing.T) {
	report := retry.FinalReport{}
	if got := exitCodeFor(report); got != exitVerificationFailed {
		t.Fatalf("expected exitVerificationFailed, got %d", got)
	}
}
