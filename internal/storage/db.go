// Package storage is the Badger-backed persistence collaborator: allocations
// plus the project, user, client and membership directory.
package storage

import (
	"path/filepath"

	"github.com/adrg/xdg"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/manav03panchal/timegrid/internal/errors"
	"github.com/manav03panchal/timegrid/internal/logging"
)

const (
	// AppName is the application name used for data directories.
	AppName = "timegrid"
)

// DB wraps a Badger database connection.
type DB struct {
	db   *badger.DB
	path string
	lock *FileLock
}

// Options configures the database connection.
type Options struct {
	// Path is the database directory path. Empty string uses in-memory mode.
	Path string
	// InMemory forces in-memory mode regardless of Path.
	InMemory bool
	// CheckIntegrity samples stored values after opening and fails on corruption.
	CheckIntegrity bool
}

// DefaultPath returns the default database path following XDG spec.
func DefaultPath() string {
	return filepath.Join(xdg.DataHome, AppName, "db")
}

// Open opens or creates a database at the given path. On-disk databases are
// guarded by a lock file so two processes never share one directory.
func Open(opts Options) (*DB, error) {
	if opts.InMemory || opts.Path == "" {
		bdb, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
		if err != nil {
			return nil, errors.NewSystemErrorWithOp("open", "failed to open database", err)
		}
		return &DB{db: bdb}, nil
	}

	if err := EnsureDirectory(opts.Path); err != nil {
		return nil, err
	}

	lock := NewFileLock(opts.Path)
	if err := lock.Acquire(); err != nil {
		return nil, NewLockError(err)
	}

	bdb, err := badger.Open(badger.DefaultOptions(opts.Path).WithLoggingLevel(badger.ERROR))
	if err != nil {
		lock.Release()
		return nil, errors.NewSystemErrorWithOp("open", "failed to open database", err)
	}

	d := &DB{db: bdb, path: opts.Path, lock: lock}
	if opts.CheckIntegrity {
		if status := CheckDatabaseIntegrity(d); !status.Healthy {
			logging.Error("database integrity check failed",
				"path", opts.Path,
				logging.KeyCount, status.ErrorCount)
			d.Close()
			return nil, errors.NewSystemErrorWithOp("open", "database integrity check failed", errors.ErrDatabaseCorrupt)
		}
	}
	return d, nil
}

// Close closes the database connection and releases the directory lock.
func (d *DB) Close() error {
	err := d.db.Close()
	if d.lock != nil {
		if lerr := d.lock.Release(); lerr != nil && err == nil {
			err = lerr
		}
		d.lock = nil
	}
	return err
}

// Path returns the database directory, empty for in-memory databases.
func (d *DB) Path() string {
	return d.path
}

// Badger returns the underlying Badger database for advanced operations.
func (d *DB) Badger() *badger.DB {
	return d.db
}
