package plan

// MergeCarryOver preserves the runtime-only execution fields for any
// step number that reappears in newPlan from oldPlan — the Planner has
// no visibility into execution history, so its replacement plan cannot
// be expected to carry these forward itself.
//
// For a reappearing step number, Status, StartedAt, EndedAt,
// DurationMs, FailReason, Verification, Output and RetryCount come
// from oldPlan, so a re-plan never moves an executed step back to
// pending; the planned fields (description, complexity, dependencies,
// sub-steps) come from newPlan. Steps new to newPlan keep the values
// the caller authored.
func MergeCarryOver(oldPlan, newPlan Plan) Plan {
	oldByNumber := make(map[int]Step, len(oldPlan.Steps))
	for _, s := range oldPlan.Steps {
		oldByNumber[s.Number] = s
	}
	merged := newPlan.Clone()
	for i := range merged.Steps {
		if old, ok := oldByNumber[merged.Steps[i].Number]; ok {
			merged.Steps[i].Status = old.Status
			merged.Steps[i].StartedAt = old.StartedAt
			merged.Steps[i].EndedAt = old.EndedAt
			merged.Steps[i].DurationMs = old.DurationMs
			merged.Steps[i].FailReason = old.FailReason
			merged.Steps[i].Verification = old.Verification
			merged.Steps[i].Output = old.Output
			merged.Steps[i].RetryCount = old.RetryCount
		}
	}
	return merged
}
