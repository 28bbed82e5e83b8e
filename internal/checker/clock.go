package checker

import "time"

// Clock supplies the time source for deadline computation. time.Now carries a
// monotonic reading, which keeps elapsed-time math immune to wall clock
// adjustments; the indirection exists so tests can drive time by hand.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the real monotonic clock.
func SystemClock() Clock { return systemClock{} }
