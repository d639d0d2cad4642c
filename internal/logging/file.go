package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// LogFileName is the log file written while a TUI owns the terminal.
const LogFileName = "timegrid.log"

// LogPath returns $XDG_STATE_HOME/timegrid/timegrid.log, creating the directory.
func LogPath() (string, error) {
	path, err := xdg.StateFile(filepath.Join("timegrid", LogFileName))
	if err != nil {
		return "", fmt.Errorf("resolving log path: %w", err)
	}
	return path, nil
}

// OpenLogFile opens the log file for appending. If path is empty LogPath is used.
func OpenLogFile(path string) (*os.File, error) {
	if path == "" {
		var err error
		if path, err = LogPath(); err != nil {
			return nil, err
		}
	} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}
