package checker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/halodb/storage-node/internal/model"
)

// ErrCheckTimeout is returned by CheckFuture.Await when the wait allowance
// runs out before the check resolves. The underlying probe keeps running; it
// is abandoned, not cancelled.
var ErrCheckTimeout = errors.New("timed out waiting for disk check result")

// AsyncChecker asynchronously runs disk checks against storage locations.
// Implementations own their execution resources and may throttle repeated
// checks of the same location.
type AsyncChecker interface {
	// Schedule begins a check of loc and returns immediately.
	Schedule(loc model.StorageLocation, checkCtx CheckContext) *CheckFuture

	// ShutdownAndWait stops accepting checks and waits up to grace for
	// in-flight checks to finish.
	ShutdownAndWait(grace time.Duration) error
}

// CheckFunc is the probe an AsyncChecker runs for one location.
type CheckFunc func(ctx context.Context, loc model.StorageLocation, checkCtx CheckContext) (model.VolumeCheckResult, error)

// CheckFuture resolves exactly once with the outcome of one scheduled check.
type CheckFuture struct {
	once   sync.Once
	done   chan struct{}
	result model.VolumeCheckResult
	err    error
}

// NewCheckFuture returns an unresolved future.
func NewCheckFuture() *CheckFuture {
	return &CheckFuture{done: make(chan struct{})}
}

// Resolve publishes the check outcome. Later calls are ignored.
func (f *CheckFuture) Resolve(result model.VolumeCheckResult, err error) {
	f.once.Do(func() {
		f.result = result
		f.err = err
		close(f.done)
	})
}

// Await waits up to timeout for the check to resolve. Caller cancellation
// wins over the timeout and is returned unchanged; a spent timeout yields
// ErrCheckTimeout.
func (f *CheckFuture) Await(ctx context.Context, timeout time.Duration) (model.VolumeCheckResult, error) {
	select {
	case <-f.done:
		return f.result, f.err
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-timer.C:
		return 0, ErrCheckTimeout
	}
}
