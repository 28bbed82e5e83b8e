package checker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/halodb/storage-node/internal/errors"
	"github.com/halodb/storage-node/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeOutcome struct {
	result model.VolumeCheckResult
	err    error
	stuck  bool
}

// fakeAsyncChecker resolves futures from a preset outcome table. A stuck
// outcome never resolves, like a probe hanging on dead hardware.
type fakeAsyncChecker struct {
	mu          sync.Mutex
	outcomes    map[model.StorageLocation]fakeOutcome
	scheduled   []model.StorageLocation
	shutdowns   int
	shutdownErr error
}

func (f *fakeAsyncChecker) Schedule(loc model.StorageLocation, checkCtx CheckContext) *CheckFuture {
	f.mu.Lock()
	f.scheduled = append(f.scheduled, loc)
	outcome := f.outcomes[loc]
	f.mu.Unlock()

	fut := NewCheckFuture()
	if !outcome.stuck {
		fut.Resolve(outcome.result, outcome.err)
	}
	return fut
}

func (f *fakeAsyncChecker) ShutdownAndWait(grace time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdowns++
	return f.shutdownErr
}

func loc(i int) model.StorageLocation {
	return model.StorageLocation{StorageType: model.StorageTypeDisk, Path: fmt.Sprintf("/data/%d", i)}
}

func newTestChecker(t *testing.T, tolerated int, delegate AsyncChecker) *StorageLocationChecker {
	t.Helper()
	c, err := NewStorageLocationChecker(&Config{
		MaxAllowedTimeForCheck:     100 * time.Millisecond,
		ExpectedPermission:         0o700,
		MaxVolumeFailuresTolerated: tolerated,
		Delegate:                   delegate,
	}, nil, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestCheck_AllHealthy(t *testing.T) {
	delegate := &fakeAsyncChecker{outcomes: map[model.StorageLocation]fakeOutcome{
		loc(1): {result: model.VolumeHealthy},
		loc(2): {result: model.VolumeHealthy},
		loc(3): {result: model.VolumeHealthy},
	}}
	c := newTestChecker(t, 0, delegate)

	good, err := c.Check(context.Background(), []model.StorageLocation{loc(1), loc(2), loc(3)})
	require.NoError(t, err)
	assert.Equal(t, []model.StorageLocation{loc(1), loc(2), loc(3)}, good)
}

func TestCheck_FailuresAtToleranceStillSucceed(t *testing.T) {
	delegate := &fakeAsyncChecker{outcomes: map[model.StorageLocation]fakeOutcome{
		loc(1): {result: model.VolumeHealthy},
		loc(2): {result: model.VolumeFailed},
	}}
	c := newTestChecker(t, 1, delegate)

	// Exactly at the threshold: strictly-greater-than triggers failure.
	good, err := c.Check(context.Background(), []model.StorageLocation{loc(1), loc(2)})
	require.NoError(t, err)
	assert.Equal(t, []model.StorageLocation{loc(1)}, good)
}

func TestCheck_FailuresExceedTolerance(t *testing.T) {
	delegate := &fakeAsyncChecker{outcomes: map[model.StorageLocation]fakeOutcome{
		loc(1): {result: model.VolumeHealthy},
		loc(2): {result: model.VolumeFailed},
		loc(3): {result: model.VolumeFailed},
	}}
	c := newTestChecker(t, 1, delegate)

	good, err := c.Check(context.Background(), []model.StorageLocation{loc(1), loc(2), loc(3)})
	assert.Nil(t, good)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeTooManyFailedVolumes, errors.GetCode(err))
}

func TestCheck_NoUsableVolumes(t *testing.T) {
	delegate := &fakeAsyncChecker{outcomes: map[model.StorageLocation]fakeOutcome{
		loc(1): {result: model.VolumeFailed},
		loc(2): {result: model.VolumeDegraded},
	}}
	// Failures stay within tolerance, good stays empty.
	c := newTestChecker(t, 5, delegate)

	good, err := c.Check(context.Background(), []model.StorageLocation{loc(1), loc(2)})
	assert.Nil(t, good)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNoUsableVolumes, errors.GetCode(err))
}

func TestCheck_DegradedNeitherGoodNorFailed(t *testing.T) {
	delegate := &fakeAsyncChecker{outcomes: map[model.StorageLocation]fakeOutcome{
		loc(1): {result: model.VolumeHealthy},
		loc(2): {result: model.VolumeDegraded},
	}}
	// Zero tolerance: if degraded counted as a failure this run would abort.
	c := newTestChecker(t, 0, delegate)

	good, err := c.Check(context.Background(), []model.StorageLocation{loc(1), loc(2)})
	require.NoError(t, err)
	assert.Equal(t, []model.StorageLocation{loc(1)}, good)
}

func TestCheck_UnknownResultTreatedAsHealthy(t *testing.T) {
	delegate := &fakeAsyncChecker{outcomes: map[model.StorageLocation]fakeOutcome{
		loc(1): {result: model.VolumeCheckResult(99)},
	}}
	c := newTestChecker(t, 0, delegate)

	good, err := c.Check(context.Background(), []model.StorageLocation{loc(1)})
	require.NoError(t, err)
	assert.Equal(t, []model.StorageLocation{loc(1)}, good)
}

func TestCheck_ProbeErrorCountsAsFailed(t *testing.T) {
	delegate := &fakeAsyncChecker{outcomes: map[model.StorageLocation]fakeOutcome{
		loc(1): {result: model.VolumeHealthy},
		loc(2): {err: fmt.Errorf("input/output error")},
	}}
	c := newTestChecker(t, 0, delegate)

	good, err := c.Check(context.Background(), []model.StorageLocation{loc(1), loc(2)})
	assert.Nil(t, good)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeTooManyFailedVolumes, errors.GetCode(err))
}

func TestCheck_EveryVolumeClassifiedExactlyOnce(t *testing.T) {
	delegate := &fakeAsyncChecker{outcomes: map[model.StorageLocation]fakeOutcome{
		loc(1): {result: model.VolumeHealthy},
		loc(2): {result: model.VolumeDegraded},
		loc(3): {result: model.VolumeFailed},
		loc(4): {result: model.VolumeCheckResult(42)},
	}}
	c := newTestChecker(t, 1, delegate)

	input := []model.StorageLocation{loc(1), loc(2), loc(3), loc(4)}
	good, err := c.Check(context.Background(), input)
	require.NoError(t, err)

	// good = healthy + unknown-defaulted, failed = 1, degraded = 1.
	assert.Equal(t, []model.StorageLocation{loc(1), loc(4)}, good)
	assert.Len(t, delegate.scheduled, len(input))
}

func TestCheck_DuplicateLocationsScheduledOnce(t *testing.T) {
	delegate := &fakeAsyncChecker{outcomes: map[model.StorageLocation]fakeOutcome{
		loc(1): {result: model.VolumeHealthy},
	}}
	c := newTestChecker(t, 0, delegate)

	good, err := c.Check(context.Background(), []model.StorageLocation{loc(1), loc(1), loc(1)})
	require.NoError(t, err)
	assert.Equal(t, []model.StorageLocation{loc(1)}, good)
	assert.Len(t, delegate.scheduled, 1)
}

func TestCheck_TotalWaitBoundedRegardlessOfVolumeCount(t *testing.T) {
	outcomes := make(map[model.StorageLocation]fakeOutcome)
	input := make([]model.StorageLocation, 0, 16)
	for i := 0; i < 16; i++ {
		outcomes[loc(i)] = fakeOutcome{stuck: true}
		input = append(input, loc(i))
	}
	delegate := &fakeAsyncChecker{outcomes: outcomes}

	c, err := NewStorageLocationChecker(&Config{
		MaxAllowedTimeForCheck:     50 * time.Millisecond,
		MaxVolumeFailuresTolerated: 0,
		Delegate:                   delegate,
	}, nil, zap.NewNop())
	require.NoError(t, err)

	start := time.Now()
	_, err = c.Check(context.Background(), input)
	elapsed := time.Since(start)

	// Sixteen stuck checks share one 50ms budget; the sum of waits must not
	// balloon with the volume count.
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeTooManyFailedVolumes, errors.GetCode(err))
	assert.Less(t, elapsed, time.Second)
}

func TestCheck_CancellationPropagates(t *testing.T) {
	delegate := &fakeAsyncChecker{outcomes: map[model.StorageLocation]fakeOutcome{
		loc(1): {stuck: true},
		loc(2): {result: model.VolumeHealthy},
	}}

	c, err := NewStorageLocationChecker(&Config{
		MaxAllowedTimeForCheck: time.Minute,
		Delegate:               delegate,
	}, nil, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	good, err := c.Check(ctx, []model.StorageLocation{loc(1), loc(2)})
	assert.Nil(t, good)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewStorageLocationChecker_RejectsNegativeTolerance(t *testing.T) {
	_, err := NewStorageLocationChecker(&Config{
		MaxVolumeFailuresTolerated: -1,
	}, nil, zap.NewNop())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidArgument, errors.GetCode(err))
}

func TestShutdown_AbsorbsDelegateError(t *testing.T) {
	delegate := &fakeAsyncChecker{shutdownErr: fmt.Errorf("stop timed out")}
	c := newTestChecker(t, 0, delegate)

	c.Shutdown(time.Second)
	c.Shutdown(time.Second)

	assert.Equal(t, 2, delegate.shutdowns)
}
