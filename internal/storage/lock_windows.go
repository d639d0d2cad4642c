//go:build windows

package storage

import (
	"os"
)

// Windows holds the lock through the open file handle; there is nothing to flock.
func flockAcquire(file *os.File) error {
	return nil
}

func flockRelease(file *os.File) error {
	return nil
}

// isProcessRunning assumes a live process when it cannot tell.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	ws, err := process.Wait()
	if err != nil {
		return true
	}
	return !ws.Exited()
}
