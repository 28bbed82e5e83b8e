package checker

import "time"

// DeadlineBudget is the shrinking wait allowance shared across all probes of
// one check run. It is anchored at the instant it is started; Remaining
// strictly decreases as the collection loop advances and floors at zero.
type DeadlineBudget struct {
	clock Clock
	start time.Time
	total time.Duration
}

// StartDeadlineBudget anchors a budget of the given total at the current
// instant.
func StartDeadlineBudget(clock Clock, total time.Duration) *DeadlineBudget {
	return &DeadlineBudget{
		clock: clock,
		start: clock.Now(),
		total: total,
	}
}

// Remaining returns the unspent part of the budget, floored at zero.
func (b *DeadlineBudget) Remaining() time.Duration {
	left := b.total - b.clock.Now().Sub(b.start)
	if left < 0 {
		return 0
	}
	return left
}
