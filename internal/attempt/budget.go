package attempt

import (
	"time"

	"loopctl/internal/timebudget"
)

// timeBudgetFor wraps the engine's per-attempt time limit in a Budget
// started at the moment the attempt begins running; the limit is
// enforced at step-dispatch boundaries.
func timeBudgetFor(limit time.Duration) *timebudget.Budget {
	return timebudget.New(limit)
}
