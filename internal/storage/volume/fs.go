package volume

import (
	"fmt"
	"io/fs"
	"os"
	"syscall"
)

// Filesystem abstracts the file operations a disk probe performs, so checks
// can be exercised against misbehaving filesystems in tests.
type Filesystem interface {
	Stat(path string) (fs.FileInfo, error)
	MkdirAll(path string, perm os.FileMode) error
	Chmod(path string, perm os.FileMode) error
	WriteFile(path string, data []byte, perm os.FileMode) error
	ReadFile(path string) ([]byte, error)
	Remove(path string) error
	// Usage reports used and available bytes on the filesystem holding path.
	Usage(path string) (used, available uint64, err error)
}

// OSFilesystem is the local disk implementation used in production.
type OSFilesystem struct{}

func (OSFilesystem) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

func (OSFilesystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (OSFilesystem) Chmod(path string, perm os.FileMode) error {
	return os.Chmod(path, perm)
}

func (OSFilesystem) WriteFile(path string, data []byte, perm os.FileMode) error {
	return os.WriteFile(path, data, perm)
}

func (OSFilesystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (OSFilesystem) Remove(path string) error {
	return os.Remove(path)
}

func (OSFilesystem) Usage(path string) (uint64, uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, 0, fmt.Errorf("failed to stat filesystem: %w", err)
	}

	available := stat.Bavail * uint64(stat.Bsize)
	total := stat.Blocks * uint64(stat.Bsize)
	used := total - stat.Bfree*uint64(stat.Bsize)

	return used, available, nil
}
