package model

import (
	"fmt"
	"strings"
)

// StorageType identifies the medium backing a storage location.
type StorageType string

const (
	StorageTypeDisk    StorageType = "DISK"
	StorageTypeSSD     StorageType = "SSD"
	StorageTypeArchive StorageType = "ARCHIVE"
	StorageTypeRAMDisk StorageType = "RAM_DISK"
)

// StorageLocation identifies one storage directory on the node.
// It is an immutable value type, comparable and usable as a map key.
type StorageLocation struct {
	StorageType StorageType
	Path        string
}

// ParseStorageLocation parses a configured data directory entry. Entries may
// carry a storage type prefix, e.g. "[SSD]/data/1"; a bare path defaults to
// DISK.
func ParseStorageLocation(raw string) (StorageLocation, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return StorageLocation{}, fmt.Errorf("empty storage location")
	}

	storageType := StorageTypeDisk
	path := raw

	if strings.HasPrefix(raw, "[") {
		end := strings.Index(raw, "]")
		if end < 0 {
			return StorageLocation{}, fmt.Errorf("unterminated storage type in %q", raw)
		}
		st := StorageType(strings.ToUpper(raw[1:end]))
		switch st {
		case StorageTypeDisk, StorageTypeSSD, StorageTypeArchive, StorageTypeRAMDisk:
			storageType = st
		default:
			return StorageLocation{}, fmt.Errorf("unknown storage type %q in %q", st, raw)
		}
		path = raw[end+1:]
	}

	if path == "" {
		return StorageLocation{}, fmt.Errorf("storage location %q has no path", raw)
	}

	return StorageLocation{StorageType: storageType, Path: path}, nil
}

// String renders the location in its configuration form.
func (l StorageLocation) String() string {
	return fmt.Sprintf("[%s]%s", l.StorageType, l.Path)
}

// VolumeCheckResult is the outcome of a disk probe against one storage
// location. The zero value is not a valid result; callers must tolerate
// values outside the three known constants.
type VolumeCheckResult int

const (
	VolumeHealthy VolumeCheckResult = iota + 1
	VolumeDegraded
	VolumeFailed
)

// String returns a human readable result name.
func (r VolumeCheckResult) String() string {
	switch r {
	case VolumeHealthy:
		return "healthy"
	case VolumeDegraded:
		return "degraded"
	case VolumeFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(r))
	}
}
