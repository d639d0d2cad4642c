package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/manav03panchal/timegrid/internal/errors"
	"github.com/manav03panchal/timegrid/internal/logging"
)

const (
	// MinFreeSpace is the free space below which the database refuses to open (10MB).
	MinFreeSpace = 10 * 1024 * 1024
	// MinFreeSpaceWarning is the threshold for logging a low disk space warning (50MB).
	MinFreeSpaceWarning = 50 * 1024 * 1024
)

// DiskSpaceInfo contains information about available disk space.
type DiskSpaceInfo struct {
	Path       string
	TotalBytes uint64
	FreeBytes  uint64
	UsedBytes  uint64
}

// FreePercent returns the percentage of free space.
func (d *DiskSpaceInfo) FreePercent() float64 {
	if d.TotalBytes == 0 {
		return 0
	}
	return float64(d.FreeBytes) / float64(d.TotalBytes) * 100
}

// CheckDiskSpace fails when path has less than MinFreeSpace available.
// A path whose free space cannot be read passes.
func CheckDiskSpace(path string) error {
	info, err := GetDiskSpace(path)
	if err != nil {
		return nil
	}
	if info.FreeBytes < MinFreeSpace {
		return errors.NewSystemError(
			fmt.Sprintf("insufficient disk space: %d MB free, need at least %d MB",
				info.FreeBytes/(1024*1024),
				MinFreeSpace/(1024*1024)),
			errors.ErrDiskFull,
		)
	}
	if info.FreeBytes < MinFreeSpaceWarning {
		logging.Warn("low disk space", "path", info.Path, "free_mb", info.FreeBytes/(1024*1024))
	}
	return nil
}

// nearestExisting walks up from path to the first directory that exists.
func nearestExisting(path string) string {
	for {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}

// EnsureDirectory creates a directory with private permissions if it doesn't exist.
func EnsureDirectory(path string) error {
	if err := CheckDiskSpace(filepath.Dir(path)); err != nil {
		return err
	}
	if err := os.MkdirAll(path, 0700); err != nil {
		if isDiskFullError(err) {
			return errors.NewSystemErrorWithOp("mkdir", "disk full", errors.ErrDiskFull)
		}
		if os.IsPermission(err) {
			return errors.NewSystemErrorWithOp("mkdir", "cannot create data directory", errors.ErrPermissionDenied)
		}
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}
