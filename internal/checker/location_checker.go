package checker

import (
	"context"
	"os"
	"time"

	"github.com/halodb/storage-node/internal/errors"
	"github.com/halodb/storage-node/internal/metrics"
	"github.com/halodb/storage-node/internal/model"
	"github.com/halodb/storage-node/internal/storage/volume"
	"github.com/halodb/storage-node/internal/util/workerpool"
	"go.uber.org/zap"
)

// StorageLocationChecker verifies at startup that the configured storage
// locations are usable before the node begins serving data. Checks run in
// parallel on the delegate checker; the collection loop is sequential and the
// sum of its waits is bounded by MaxAllowedTimeForCheck no matter how many
// locations are checked.
type StorageLocationChecker struct {
	delegate AsyncChecker
	clock    Clock
	fs       volume.Filesystem
	logger   *zap.Logger
	metrics  *metrics.Metrics

	maxAllowedTimeForCheck     time.Duration
	expectedPermission         os.FileMode
	maxVolumeFailuresTolerated int
}

// Config holds storage location checker configuration
type Config struct {
	// MaxAllowedTimeForCheck bounds the total time spent waiting for check
	// results in one Check call. A location whose check does not resolve
	// within the shared budget is declared failed.
	MaxAllowedTimeForCheck time.Duration

	// ExpectedPermission is the permission mode storage directories must have.
	ExpectedPermission os.FileMode

	// MaxVolumeFailuresTolerated is the number of failed volumes the node
	// accepts before refusing to start.
	MaxVolumeFailuresTolerated int

	// MinCheckGap is the minimum interval between two checks of the same
	// location.
	MinCheckGap time.Duration

	Workers   int
	QueueSize int

	// DegradedUsagePercent is the filesystem usage at which a usable volume
	// is reported degraded.
	DegradedUsagePercent float64

	// Clock, FS and Delegate are overridable for tests; zero values select
	// the real clock, the local filesystem and a ThrottledAsyncChecker on an
	// owned worker pool.
	Clock    Clock
	FS       volume.Filesystem
	Delegate AsyncChecker
}

// NewStorageLocationChecker creates a checker from configuration. metrics may
// be nil.
func NewStorageLocationChecker(cfg *Config, m *metrics.Metrics, logger *zap.Logger) (*StorageLocationChecker, error) {
	if cfg.MaxVolumeFailuresTolerated < 0 {
		return nil, errors.InvalidArgument("max volume failures tolerated must not be negative", nil)
	}
	if cfg.MaxAllowedTimeForCheck <= 0 {
		cfg.MaxAllowedTimeForCheck = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock()
	}

	fs := cfg.FS
	if fs == nil {
		fs = volume.OSFilesystem{}
	}

	delegate := cfg.Delegate
	if delegate == nil {
		prober := volume.NewProber(&volume.ProberConfig{
			DegradedUsagePercent: cfg.DegradedUsagePercent,
		}, logger)
		pool := workerpool.New(&workerpool.Config{
			Name:       "disk-check",
			MaxWorkers: cfg.Workers,
			QueueSize:  cfg.QueueSize,
			Logger:     logger,
		})
		check := func(ctx context.Context, loc model.StorageLocation, checkCtx CheckContext) (model.VolumeCheckResult, error) {
			return prober.Check(ctx, loc, checkCtx.FS, checkCtx.ExpectedPermission)
		}
		delegate = NewThrottledAsyncChecker(clock, cfg.MinCheckGap, check, pool, m, logger)
	}

	return &StorageLocationChecker{
		delegate:                   delegate,
		clock:                      clock,
		fs:                         fs,
		logger:                     logger,
		metrics:                    m,
		maxAllowedTimeForCheck:     cfg.MaxAllowedTimeForCheck,
		expectedPermission:         cfg.ExpectedPermission,
		maxVolumeFailuresTolerated: cfg.MaxVolumeFailuresTolerated,
	}, nil
}

type pendingCheck struct {
	loc model.StorageLocation
	fut *CheckFuture
}

// Check runs a disk check against every supplied location and returns the
// usable subset. It returns an error when more locations failed than the
// configuration tolerates, or when no location is usable at all. Caller
// cancellation propagates immediately with no partial result; remaining
// checks are left running and their results discarded.
func (c *StorageLocationChecker) Check(ctx context.Context, locations []model.StorageLocation) ([]model.StorageLocation, error) {
	checkCtx := CheckContext{
		FS:                 c.fs,
		ExpectedPermission: c.expectedPermission,
	}

	// Full fan-out: every check is dispatched before any result is awaited.
	// The delegate's worker pool bounds actual parallelism.
	pending := make([]pendingCheck, 0, len(locations))
	seen := make(map[model.StorageLocation]struct{}, len(locations))
	for _, loc := range locations {
		if _, ok := seen[loc]; ok {
			continue
		}
		seen[loc] = struct{}{}
		pending = append(pending, pendingCheck{loc: loc, fut: c.delegate.Schedule(loc, checkCtx)})
	}

	// The budget starts after dispatch, so dispatch cost is never charged
	// against the wait allowance.
	budget := StartDeadlineBudget(c.clock, c.maxAllowedTimeForCheck)
	started := c.clock.Now()

	good := make([]model.StorageLocation, 0, len(pending))
	failed := make(map[model.StorageLocation]struct{})

	// Collect sequentially in dispatch order. Remaining shrinks before each
	// wait, so locations late in the order may get a near-zero allowance;
	// that is the mechanism bounding worst-case startup delay.
	for _, p := range pending {
		result, err := p.fut.Await(ctx, budget.Remaining())
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("Disk check of storage location failed",
				zap.Stringer("location", p.loc),
				zap.Error(err))
			failed[p.loc] = struct{}{}
			if c.metrics != nil {
				c.metrics.ObserveClassification("error")
				if err == ErrCheckTimeout {
					c.metrics.VolumeCheckTimeoutsTotal.Inc()
				}
			}
			continue
		}

		switch result {
		case model.VolumeHealthy:
			good = append(good, p.loc)
		case model.VolumeDegraded:
			// Degraded volumes are excluded from service but do not count
			// against the failure tolerance.
			c.logger.Warn("Storage location appears to be degraded",
				zap.Stringer("location", p.loc))
		case model.VolumeFailed:
			c.logger.Warn("Storage location detected as failed",
				zap.Stringer("location", p.loc))
			failed[p.loc] = struct{}{}
		default:
			// Unknown results ride along as healthy so newer probe outcomes
			// do not brick older nodes.
			c.logger.Error("Unexpected health check result for storage location",
				zap.Stringer("result", result),
				zap.Stringer("location", p.loc))
			good = append(good, p.loc)
		}
		if c.metrics != nil {
			c.metrics.ObserveClassification(classificationLabel(result))
		}
	}

	duration := c.clock.Now().Sub(started)

	if len(failed) > c.maxVolumeFailuresTolerated {
		if c.metrics != nil {
			c.metrics.ObserveCheckRun("rejected", len(good), len(failed), duration)
		}
		return nil, errors.TooManyFailedVolumes(len(failed), c.maxVolumeFailuresTolerated)
	}

	if len(good) == 0 {
		if c.metrics != nil {
			c.metrics.ObserveCheckRun("rejected", 0, len(failed), duration)
		}
		all := make([]string, 0, len(pending))
		for _, p := range pending {
			all = append(all, p.loc.String())
		}
		return nil, errors.NoUsableVolumes(all)
	}

	if c.metrics != nil {
		c.metrics.ObserveCheckRun("accepted", len(good), len(failed), duration)
	}

	c.logger.Info("Storage location check passed",
		zap.Int("good_volumes", len(good)),
		zap.Int("failed_volumes", len(failed)),
		zap.Duration("duration", duration))

	return good, nil
}

// Shutdown stops the delegate checker, waiting up to grace for in-flight
// checks. It is best effort and never returns an error; process exit does
// not depend on a clean teardown.
func (c *StorageLocationChecker) Shutdown(grace time.Duration) {
	if err := c.delegate.ShutdownAndWait(grace); err != nil {
		c.logger.Warn("Storage location checker interrupted during shutdown",
			zap.Error(err))
	}
}

func classificationLabel(r model.VolumeCheckResult) string {
	switch r {
	case model.VolumeHealthy, model.VolumeDegraded, model.VolumeFailed:
		return r.String()
	default:
		return "unknown"
	}
}
