package checker

import (
	"context"
	"sync"
	"time"

	"github.com/halodb/storage-node/internal/metrics"
	"github.com/halodb/storage-node/internal/model"
	"github.com/halodb/storage-node/internal/util/workerpool"
	"go.uber.org/zap"
)

// lastCheck remembers the most recent completed check of one location.
type lastCheck struct {
	at     time.Time
	result model.VolumeCheckResult
	err    error
}

// ThrottledAsyncChecker runs disk checks on a worker pool and throttles
// repeated checks of the same location: a Schedule while a check of that
// location is in flight joins the in-flight check, and a Schedule within
// minGap of the location's last completion is answered from that completion.
type ThrottledAsyncChecker struct {
	clock   Clock
	minGap  time.Duration
	check   CheckFunc
	pool    *workerpool.Pool
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	inFlight map[model.StorageLocation]*CheckFuture
	lastRuns map[model.StorageLocation]lastCheck
}

// NewThrottledAsyncChecker creates a throttled checker on top of pool.
// metrics may be nil.
func NewThrottledAsyncChecker(clock Clock, minGap time.Duration, check CheckFunc, pool *workerpool.Pool, m *metrics.Metrics, logger *zap.Logger) *ThrottledAsyncChecker {
	return &ThrottledAsyncChecker{
		clock:    clock,
		minGap:   minGap,
		check:    check,
		pool:     pool,
		logger:   logger,
		metrics:  m,
		inFlight: make(map[model.StorageLocation]*CheckFuture),
		lastRuns: make(map[model.StorageLocation]lastCheck),
	}
}

// Schedule begins a check of loc, or joins one already pending, or answers
// from the last completion when it is fresher than minGap.
func (t *ThrottledAsyncChecker) Schedule(loc model.StorageLocation, checkCtx CheckContext) *CheckFuture {
	t.mu.Lock()
	defer t.mu.Unlock()

	if fut, ok := t.inFlight[loc]; ok {
		return fut
	}

	if last, ok := t.lastRuns[loc]; ok && t.clock.Now().Sub(last.at) < t.minGap {
		t.logger.Debug("Serving disk check from last completion",
			zap.Stringer("location", loc),
			zap.Time("completed_at", last.at))
		if t.metrics != nil {
			t.metrics.ThrottledChecksTotal.Inc()
		}
		fut := NewCheckFuture()
		fut.Resolve(last.result, last.err)
		return fut
	}

	fut := NewCheckFuture()
	t.inFlight[loc] = fut

	task := workerpool.Task{
		ID: loc.String(),
		Fn: func(ctx context.Context) error {
			result, err := t.check(ctx, loc, checkCtx)
			t.complete(loc, fut, result, err)
			return err
		},
	}

	if err := t.pool.Submit(task); err != nil {
		delete(t.inFlight, loc)
		fut.Resolve(model.VolumeFailed, err)
	}

	return fut
}

func (t *ThrottledAsyncChecker) complete(loc model.StorageLocation, fut *CheckFuture, result model.VolumeCheckResult, err error) {
	t.mu.Lock()
	delete(t.inFlight, loc)
	t.lastRuns[loc] = lastCheck{at: t.clock.Now(), result: result, err: err}
	t.mu.Unlock()

	fut.Resolve(result, err)
}

// ShutdownAndWait stops the underlying pool, waiting up to grace for running
// checks to finish.
func (t *ThrottledAsyncChecker) ShutdownAndWait(grace time.Duration) error {
	return t.pool.Stop(grace)
}
