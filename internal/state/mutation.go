package state

import (
	"loopctl/internal/plan"
)

// Mutation is the closed set of ways external callers may change Hub
// state. Construct one of the Mutation* functions and pass it to
// Hub.Apply.
type Mutation struct {
	kind mutationKind

	setStatus     RunStatus
	setGoal       string
	replacePlan   plan.Plan
	stepNumber    int
	stepNewStatus plan.StepStatus
	stepFailRead  string
	stepVerify    string
	stepOutput    string
	supervision   SupervisionState
	verification  VerificationResult
	appendError   string
}

type mutationKind int

const (
	kindSetStatus mutationKind = iota
	kindSetGoal
	kindReplacePlan
	kindUpdateStepStatus
	kindRecordSupervision
	kindRecordVerification
	kindAppendError
	kindReset
)

func MutationSetStatus(status RunStatus) Mutation {
	return Mutation{kind: kindSetStatus, setStatus: status}
}

func MutationSetGoal(goal string) Mutation {
	return Mutation{kind: kindSetGoal, setGoal: goal}
}

func MutationReplacePlan(p plan.Plan) Mutation {
	return Mutation{kind: kindReplacePlan, replacePlan: p}
}

// StepUpdate carries the optional fields UpdateStepStatus may set
// alongside the new status.
type StepUpdate struct {
	FailReason   string
	Verification string
	Output       string
}

func MutationUpdateStepStatus(stepNumber int, newStatus plan.StepStatus, fields StepUpdate) Mutation {
	return Mutation{
		kind:          kindUpdateStepStatus,
		stepNumber:    stepNumber,
		stepNewStatus: newStatus,
		stepFailRead:  fields.FailReason,
		stepVerify:    fields.Verification,
		stepOutput:    fields.Output,
	}
}

func MutationRecordSupervision(s SupervisionState) Mutation {
	return Mutation{kind: kindRecordSupervision, supervision: s}
}

func MutationRecordVerification(v VerificationResult) Mutation {
	return Mutation{kind: kindRecordVerification, verification: v}
}

func MutationAppendError(msg string) Mutation {
	return Mutation{kind: kindAppendError, appendError: msg}
}

func MutationReset() Mutation {
	return Mutation{kind: kindReset}
}
