package volume

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/halodb/storage-node/internal/model"
	"go.uber.org/zap"
)

var probePayload = []byte("halodb disk probe")

// Prober performs the physical disk check for one storage location. The
// directory must exist with the expected permissions and survive a small
// write/read/delete round trip. A usable volume whose filesystem usage is at
// or above the degraded threshold is reported degraded rather than healthy.
type Prober struct {
	degradedUsagePercent float64
	logger               *zap.Logger
}

// ProberConfig holds prober configuration
type ProberConfig struct {
	DegradedUsagePercent float64
}

// NewProber creates a new disk prober
func NewProber(cfg *ProberConfig, logger *zap.Logger) *Prober {
	if cfg.DegradedUsagePercent <= 0 {
		cfg.DegradedUsagePercent = 98.0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{
		degradedUsagePercent: cfg.DegradedUsagePercent,
		logger:               logger,
	}
}

// Check probes a single storage location. It honors ctx cancellation between
// steps but an individual filesystem call is not interruptible.
func (p *Prober) Check(ctx context.Context, loc model.StorageLocation, fsys Filesystem, expectedPerm os.FileMode) (model.VolumeCheckResult, error) {
	if err := ctx.Err(); err != nil {
		return model.VolumeFailed, err
	}

	if err := p.ensureDir(fsys, loc.Path, expectedPerm); err != nil {
		return model.VolumeFailed, err
	}

	if err := ctx.Err(); err != nil {
		return model.VolumeFailed, err
	}

	if err := p.diskIO(fsys, loc.Path); err != nil {
		return model.VolumeFailed, err
	}

	used, available, err := fsys.Usage(loc.Path)
	if err != nil {
		return model.VolumeFailed, err
	}

	total := used + available
	if total > 0 {
		usagePercent := float64(used) / float64(total) * 100.0
		if usagePercent >= p.degradedUsagePercent {
			p.logger.Warn("Storage location nearly full",
				zap.Stringer("location", loc),
				zap.Float64("usage_percent", usagePercent),
				zap.Float64("threshold", p.degradedUsagePercent))
			return model.VolumeDegraded, nil
		}
	}

	return model.VolumeHealthy, nil
}

// ensureDir creates the storage directory if missing and aligns its
// permissions with the expected mode.
func (p *Prober) ensureDir(fsys Filesystem, dir string, perm os.FileMode) error {
	info, err := fsys.Stat(dir)
	if os.IsNotExist(err) {
		if err := fsys.MkdirAll(dir, perm); err != nil {
			return fmt.Errorf("failed to create storage directory %s: %w", dir, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat storage directory %s: %w", dir, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("storage path %s is not a directory", dir)
	}

	if info.Mode().Perm() != perm {
		p.logger.Info("Fixing storage directory permissions",
			zap.String("dir", dir),
			zap.Stringer("current", info.Mode().Perm()),
			zap.Stringer("expected", perm))
		if err := fsys.Chmod(dir, perm); err != nil {
			return fmt.Errorf("failed to set permissions on %s: %w", dir, err)
		}
	}

	return nil
}

// diskIO writes a throwaway file, reads it back and deletes it. Volumes that
// mount read-only or silently corrupt data fail here.
func (p *Prober) diskIO(fsys Filesystem, dir string) error {
	probeFile := filepath.Join(dir, fmt.Sprintf(".disk-check-%d", time.Now().UnixNano()))

	if err := fsys.WriteFile(probeFile, probePayload, 0o600); err != nil {
		return fmt.Errorf("cannot write to storage directory %s: %w", dir, err)
	}

	data, err := fsys.ReadFile(probeFile)
	if err != nil {
		fsys.Remove(probeFile)
		return fmt.Errorf("cannot read back probe file in %s: %w", dir, err)
	}

	if !bytes.Equal(data, probePayload) {
		fsys.Remove(probeFile)
		return fmt.Errorf("probe file in %s read back corrupted", dir)
	}

	if err := fsys.Remove(probeFile); err != nil {
		return fmt.Errorf("cannot delete probe file in %s: %w", dir, err)
	}

	return nil
}
