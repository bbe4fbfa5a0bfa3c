// Package errors provides the closed error taxonomy used across the
// control plane. Every error that crosses a component boundary is a
// *LoopError with one of the codes below.
package errors

// Code identifies one kind of error in the closed taxonomy.
type Code string

const (
	// CodeBadDuration: time parsing rejected an input string.
	CodeBadDuration Code = "BAD_DURATION"

	// CodeIllegalStepTransition: State Hub rejected a step status edge.
	CodeIllegalStepTransition Code = "ILLEGAL_STEP_TRANSITION"

	// CodeWorkerStepError: the worker adapter failed a single step.
	CodeWorkerStepError Code = "WORKER_STEP_ERROR"

	// CodePlannerError: the planner adapter call failed.
	CodePlannerError Code = "PLANNER_ERROR"

	// CodeVerifierError: the verifier adapter call failed.
	CodeVerifierError Code = "VERIFIER_ERROR"

	// CodeSupervisorAbort: the supervisor issued an ABORT action.
	CodeSupervisorAbort Code = "SUPERVISOR_ABORT"

	// CodeTimeExhausted: a time budget was exhausted.
	CodeTimeExhausted Code = "TIME_EXHAUSTED"

	// CodeSubscriberLagged: a bus subscriber's queue overflowed.
	CodeSubscriberLagged Code = "SUBSCRIBER_LAGGED"

	// CodeInternalInvariantViolation: a closed invariant was broken.
	CodeInternalInvariantViolation Code = "INTERNAL_INVARIANT_VIOLATION"

	// CodeInvalidArgument: a caller passed a malformed argument.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// CodeNotFound: a referenced entity (run number, step) is missing.
	CodeNotFound Code = "NOT_FOUND"
)
