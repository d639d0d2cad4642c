//go:build !windows

package storage

import (
	stderrors "errors"
	"fmt"
	"syscall"
)

// GetDiskSpace returns disk space information for the filesystem holding path.
func GetDiskSpace(path string) (*DiskSpaceInfo, error) {
	path = nearestExisting(path)

	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return nil, fmt.Errorf("failed to get disk space: %w", err)
	}

	info := &DiskSpaceInfo{
		Path:       path,
		TotalBytes: stat.Blocks * uint64(stat.Bsize),
		FreeBytes:  stat.Bavail * uint64(stat.Bsize),
	}
	info.UsedBytes = info.TotalBytes - info.FreeBytes
	return info, nil
}

func isDiskFullError(err error) bool {
	return err != nil && stderrors.Is(err, syscall.ENOSPC)
}
