package storage

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/manav03panchal/timegrid/internal/errors"
	"github.com/manav03panchal/timegrid/internal/logging"
)

// integritySample bounds how many values an integrity check reads.
const integritySample = 100

// RecoveryStatus represents the result of a database health check.
type RecoveryStatus struct {
	Healthy     bool      `json:"healthy"`
	Corrupted   bool      `json:"corrupted"`
	LastCheck   time.Time `json:"last_check"`
	Checked     int       `json:"checked"`
	ErrorCount  int       `json:"error_count"`
	Errors      []string  `json:"errors,omitempty"`
	Recoverable bool      `json:"recoverable"`
}

// CheckDatabaseIntegrity reads a sample of stored values and reports any that
// cannot be read back.
func CheckDatabaseIntegrity(db *DB) *RecoveryStatus {
	status := &RecoveryStatus{LastCheck: time.Now(), Healthy: true}

	if db == nil || db.db == nil {
		status.Healthy = false
		status.Corrupted = true
		status.Errors = append(status.Errors, "database not initialized")
		return status
	}

	err := db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 10
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid() && status.Checked < integritySample; it.Next() {
			item := it.Item()
			if err := item.Value(func([]byte) error { return nil }); err != nil {
				status.Errors = append(status.Errors, fmt.Sprintf("corrupted value at key: %s", item.Key()))
				status.ErrorCount++
			}
			status.Checked++
		}
		return nil
	})
	if err != nil {
		status.Errors = append(status.Errors, fmt.Sprintf("iteration error: %v", err))
		status.ErrorCount++
	}

	if status.ErrorCount > 0 {
		status.Healthy = false
		status.Corrupted = true
		status.Recoverable = status.ErrorCount < 10
	}
	return status
}

// BackupFileName returns the name of a backup taken at t.
func BackupFileName(t time.Time) string {
	return fmt.Sprintf("db-backup-%s.bak", t.Format("20060102-150405"))
}

// CreateBackup streams a full backup of db into dir and returns its path.
// The database stays open and usable while the backup runs.
func CreateBackup(db *DB, dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("backup directory is empty")
	}
	if err := EnsureDirectory(dir); err != nil {
		return "", err
	}

	path := filepath.Join(dir, BackupFileName(time.Now()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return "", fmt.Errorf("failed to create backup file: %w", err)
	}

	if _, err := db.db.Backup(f, 0); err != nil {
		f.Close()
		os.Remove(path)
		return "", errors.NewSystemErrorWithOp("backup", "failed to write backup", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	logging.Info("database backup created", logging.KeyOperation, "backup", "path", path)
	return path, nil
}

// DefaultBackupDir returns the backups directory next to the database path.
func DefaultBackupDir(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), "backups")
}

// RestoreBackup loads a backup written by CreateBackup into db. Keys present
// in the backup overwrite existing ones.
func RestoreBackup(db *DB, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer f.Close()

	if err := db.db.Load(f, 256); err != nil {
		return errors.NewSystemErrorWithOp("restore", "failed to load backup", err)
	}
	logging.Info("database backup restored", logging.KeyOperation, "restore", "path", path)
	return nil
}

// corruptionPatterns are substrings Badger uses in corruption errors.
var corruptionPatterns = []string{
	"checksum mismatch",
	"corrupt",
	"unexpected eof",
	"bad magic",
	"truncated",
}

// IsDatabaseCorrupted checks if the given error indicates database corruption.
func IsDatabaseCorrupted(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, errors.ErrDatabaseCorrupt) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range corruptionPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
