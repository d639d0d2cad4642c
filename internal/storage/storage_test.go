package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/manav03panchal/timegrid/internal/errors"
	"github.com/manav03panchal/timegrid/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	db, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

var monday = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(day int, hour int) time.Time {
	return monday.AddDate(0, 0, day).Add(time.Duration(hour) * time.Hour)
}

// =============================================================================
// DB Tests
// =============================================================================

func TestOpenClose(t *testing.T) {
	t.Run("in_memory", func(t *testing.T) {
		db, err := Open(Options{InMemory: true})
		require.NoError(t, err)
		assert.Empty(t, db.Path())
		assert.NotNil(t, db.Badger())
		assert.Nil(t, db.lock)
		assert.NoError(t, db.Close())
	})

	t.Run("empty_path_uses_in_memory", func(t *testing.T) {
		db, err := Open(Options{Path: ""})
		require.NoError(t, err)
		assert.Empty(t, db.Path())
		db.Close()
	})

	t.Run("on_disk_with_integrity_check", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "db")
		db, err := Open(Options{Path: dbPath, CheckIntegrity: true})
		require.NoError(t, err)
		assert.Equal(t, dbPath, db.Path())
		require.NoError(t, db.Close())
	})
}

func TestDefaultPath(t *testing.T) {
	path := DefaultPath()
	assert.Contains(t, path, AppName)
	assert.Equal(t, "db", filepath.Base(path))
}

func TestDeleteMissingKey(t *testing.T) {
	db := setupTestDB(t)
	err := db.Delete("alloc:missing")
	assert.True(t, IsErrKeyNotFound(err))
}

// =============================================================================
// Lock Tests
// =============================================================================

func TestFileLock(t *testing.T) {
	t.Run("acquire_writes_pid_and_release_removes_file", func(t *testing.T) {
		dir := t.TempDir()
		lock := NewFileLock(dir)
		require.NoError(t, lock.Acquire())

		assert.Equal(t, os.Getpid(), lock.readPID())

		require.NoError(t, lock.Release())
		_, err := os.Stat(filepath.Join(dir, LockFileName))
		assert.True(t, os.IsNotExist(err))
		assert.NoError(t, lock.Release(), "release is idempotent")
	})

	t.Run("second_lock_fails_while_held", func(t *testing.T) {
		dir := t.TempDir()
		first := NewFileLock(dir)
		require.NoError(t, first.Acquire())
		defer first.Release()

		err := NewFileLock(dir).Acquire()
		assert.ErrorIs(t, err, ErrLockAlreadyHeld)
		assert.ErrorIs(t, err, errors.ErrDatabaseLocked)
	})

	t.Run("stale_lock_is_cleaned", func(t *testing.T) {
		dir := t.TempDir()
		const stalePID = 99999999
		require.NoError(t, os.WriteFile(filepath.Join(dir, LockFileName), []byte("99999999"), 0644))
		if isProcessRunning(stalePID) {
			t.Skip("stale PID is unexpectedly running")
		}

		lock := NewFileLock(dir)
		require.NoError(t, lock.Acquire())
		lock.Release()
	})

	t.Run("read_pid", func(t *testing.T) {
		tests := []struct {
			name    string
			content string
			want    int
		}{
			{"valid", "12345", 12345},
			{"padded", " 42\n", 42},
			{"garbage", "not-a-number", 0},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				dir := t.TempDir()
				require.NoError(t, os.WriteFile(filepath.Join(dir, LockFileName), []byte(tt.content), 0644))
				assert.Equal(t, tt.want, NewFileLock(dir).readPID())
			})
		}
		assert.Zero(t, NewFileLock(t.TempDir()).readPID())
	})
}

func TestLockError(t *testing.T) {
	err := NewLockError(fmt.Errorf("%w: PID %d", ErrLockAlreadyHeld, 4242))
	assert.Equal(t, 4242, err.PID)
	assert.Contains(t, err.Error(), "PID 4242")
	assert.ErrorIs(t, err, ErrLockAlreadyHeld)

	plain := NewLockError(ErrLockAcquireFailed)
	assert.Zero(t, plain.PID)
	assert.Contains(t, plain.Error(), "cannot access database")
}

func TestOpenHoldsLock(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "db")

	db, err := Open(Options{Path: dbPath})
	require.NoError(t, err)
	assert.NotNil(t, db.lock)

	_, err = Open(Options{Path: dbPath})
	var lockErr *LockError
	require.ErrorAs(t, err, &lockErr)

	require.NoError(t, db.Close())
	_, err = os.Stat(filepath.Join(dbPath, LockFileName))
	assert.True(t, os.IsNotExist(err))

	again, err := Open(Options{Path: dbPath})
	require.NoError(t, err)
	again.Close()
}

// =============================================================================
// Allocation Repo Tests
// =============================================================================

func TestAllocationRepoCreate(t *testing.T) {
	repo := NewAllocationRepo(setupTestDB(t))
	ctx := context.Background()

	rec := model.NewAllocation("website", "alice", at(2, 9), at(2, 13), model.KindReported, "review")
	rec.ID = "tmp-1"

	id, err := repo.Create(ctx, rec)
	require.NoError(t, err)
	assert.NotEqual(t, "tmp-1", id)
	assert.Equal(t, "tmp-1", rec.ID, "input is not modified")

	got, err := repo.Get(id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, model.GenerateAllocationKey(id), got.Key)
	assert.Equal(t, 240, got.DurationMinutes)
	assert.Equal(t, "review", got.Label)
	assert.True(t, got.Start.Equal(at(2, 9)))
}

func TestAllocationRepoCreateValidation(t *testing.T) {
	repo := NewAllocationRepo(setupTestDB(t))
	rec := model.NewAllocation("website", "alice", at(2, 9), at(2, 9), model.KindReported, "")

	_, err := repo.Create(context.Background(), rec)
	assert.ErrorIs(t, err, errors.ErrEndBeforeStart)
}

func TestAllocationRepoUpdate(t *testing.T) {
	repo := NewAllocationRepo(setupTestDB(t))
	ctx := context.Background()
	id, err := repo.Create(ctx, model.NewAllocation("website", "alice", at(2, 9), at(2, 13), model.KindReported, ""))
	require.NoError(t, err)

	t.Run("applies_patch", func(t *testing.T) {
		end := at(2, 15)
		label := "longer"
		require.NoError(t, repo.Update(ctx, id, model.AllocationPatch{End: &end, Label: &label}))

		got, err := repo.Get(id)
		require.NoError(t, err)
		assert.Equal(t, 360, got.DurationMinutes)
		assert.Equal(t, "longer", got.Label)
	})

	t.Run("invalid_patch_leaves_record", func(t *testing.T) {
		end := at(2, 8)
		err := repo.Update(ctx, id, model.AllocationPatch{End: &end})
		assert.ErrorIs(t, err, errors.ErrEndBeforeStart)

		got, err := repo.Get(id)
		require.NoError(t, err)
		assert.Equal(t, 360, got.DurationMinutes)
	})

	t.Run("missing_is_not_found", func(t *testing.T) {
		end := at(3, 8)
		err := repo.Update(ctx, "nope", model.AllocationPatch{End: &end})
		assert.True(t, errors.IsNotFound(err))
	})
}

func TestAllocationRepoDelete(t *testing.T) {
	repo := NewAllocationRepo(setupTestDB(t))
	ctx := context.Background()
	id, err := repo.Create(ctx, model.NewAllocation("website", "alice", at(2, 9), at(2, 13), model.KindReported, ""))
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, id))
	_, err = repo.Get(id)
	assert.True(t, errors.IsNotFound(err))
	assert.True(t, errors.IsNotFound(repo.Delete(ctx, id)))
}

func TestAllocationRepoQueryWindow(t *testing.T) {
	repo := NewAllocationRepo(setupTestDB(t))
	ctx := context.Background()

	inputs := []*model.Allocation{
		model.NewAllocation("website", "alice", at(-1, 22), at(0, 2), model.KindReported, "overnight"),
		model.NewAllocation("website", "bob", at(3, 9), at(3, 17), model.KindReported, "inside"),
		model.NewAllocation("api", "alice", at(7, 9), at(7, 10), model.KindPlanned, "next week"),
	}
	for _, a := range inputs {
		_, err := repo.Create(ctx, a)
		require.NoError(t, err)
	}

	week := model.NewGridWindow(monday, model.ViewCalendarWeek).Range()
	got, err := repo.QueryWindow(ctx, week)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "overnight", got[0].Label)
	assert.Equal(t, "inside", got[1].Label)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = repo.QueryWindow(cancelled, week)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAllocationRepoList(t *testing.T) {
	repo := NewAllocationRepo(setupTestDB(t))
	ctx := context.Background()
	for i, owner := range []string{"alice", "bob", "alice"} {
		_, err := repo.Create(ctx, model.NewAllocation("website", owner, at(i, 9), at(i, 10), model.KindReported, ""))
		require.NoError(t, err)
	}
	_, err := repo.Create(ctx, model.NewAllocation("api", "alice", at(5, 9), at(5, 10), model.KindPlanned, ""))
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter AllocationFilter
		want   int
	}{
		{"all", AllocationFilter{}, 4},
		{"project", AllocationFilter{ProjectSID: "website"}, 3},
		{"owner", AllocationFilter{OwnerSID: "alice"}, 3},
		{"lane", AllocationFilter{ProjectSID: "website", OwnerSID: "alice"}, 2},
		{"kind", AllocationFilter{Kind: model.KindPlanned}, 1},
		{"limit", AllocationFilter{Limit: 2}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(tt.filter)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
			for i := 1; i < len(got); i++ {
				assert.False(t, got[i].Start.Before(got[i-1].Start))
			}
		})
	}
}

func TestAllocationRepoBackendFailures(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAllocationRepo(db)
	ctx := context.Background()

	require.NoError(t, db.Badger().Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(model.GenerateAllocationKey("broken")), []byte("{not json"))
	}))

	t.Run("get", func(t *testing.T) {
		_, err := repo.Get("broken")
		var se *errors.SystemError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "allocation.get", se.Op)
		assert.False(t, errors.IsNotFound(err))
	})

	t.Run("list", func(t *testing.T) {
		_, err := repo.List(AllocationFilter{})
		assert.True(t, errors.IsSystemError(err))
		assert.Equal(t, errors.CategorySystem, errors.GetCategory(err))
	})

	t.Run("query_window", func(t *testing.T) {
		_, err := repo.QueryWindow(ctx, model.NewGridWindow(monday, model.ViewGrid).Range())
		assert.True(t, errors.IsSystemError(err))
	})

	t.Run("update", func(t *testing.T) {
		end := at(3, 8)
		err := repo.Update(ctx, "broken", model.AllocationPatch{End: &end})
		assert.True(t, errors.IsSystemError(err))
	})

	t.Run("missing_stays_not_found", func(t *testing.T) {
		_, err := repo.Get("nope")
		assert.True(t, errors.IsNotFound(err))
		assert.False(t, errors.IsSystemError(err))
	})

	t.Run("validation_stays_user_error", func(t *testing.T) {
		_, err := repo.Create(ctx, model.NewAllocation("website", "alice", at(2, 9), at(2, 9), model.KindReported, ""))
		assert.True(t, errors.IsUserError(err))
		assert.False(t, errors.IsSystemError(err))
	})
}

// =============================================================================
// Directory Tests
// =============================================================================

func TestDirectory(t *testing.T) {
	db := setupTestDB(t)
	dir := NewDirectory(db)
	ctx := context.Background()

	require.NoError(t, dir.Clients.Create(model.NewClient("acme", "Acme")))
	require.NoError(t, dir.Projects.Create(model.NewProject("website", "Website", "acme", "#3366ff")))
	old := model.NewProject("legacy", "Legacy", "", "")
	old.Archived = true
	require.NoError(t, dir.Projects.Create(old))
	require.NoError(t, dir.Users.Create(model.NewUser("alice", "Alice", "")))
	require.NoError(t, dir.Users.Create(model.NewUser("bob", "Bob", "")))
	require.NoError(t, dir.Memberships.Add("website", "alice"))
	require.NoError(t, dir.Memberships.Add("website", "bob"))
	require.NoError(t, dir.Memberships.Add("website", "alice"))

	t.Run("projects_skip_archived", func(t *testing.T) {
		ps, err := dir.ListProjects(ctx)
		require.NoError(t, err)
		require.Len(t, ps, 1)
		assert.Equal(t, model.Entity{ID: "website", Name: "Website", ColorTag: "#3366ff", GroupID: "acme"}, ps[0])
	})

	t.Run("users_and_clients", func(t *testing.T) {
		us, err := dir.ListUsers(ctx)
		require.NoError(t, err)
		assert.Len(t, us, 2)
		cs, err := dir.ListClients(ctx)
		require.NoError(t, err)
		assert.Equal(t, []model.Entity{{ID: "acme", Name: "Acme"}}, cs)
	})

	t.Run("memberships", func(t *testing.T) {
		members, err := dir.ListMemberships(ctx, "website")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"alice", "bob"}, members)

		projects, err := dir.Memberships.ListByUser("bob")
		require.NoError(t, err)
		assert.Equal(t, []string{"website"}, projects)

		require.NoError(t, dir.Memberships.Remove("website", "bob"))
		assert.True(t, errors.IsUserError(dir.Memberships.Remove("website", "bob")))
	})

	t.Run("not_found", func(t *testing.T) {
		_, err := dir.Projects.Get("nope")
		assert.ErrorIs(t, err, errors.ErrProjectNotFound)
		_, err = dir.Users.Get("nope")
		assert.ErrorIs(t, err, errors.ErrUserNotFound)
		_, err = dir.Clients.Get("nope")
		assert.ErrorIs(t, err, errors.ErrClientNotFound)
	})

	t.Run("exists_and_delete", func(t *testing.T) {
		ok, err := dir.Projects.Exists("website")
		require.NoError(t, err)
		assert.True(t, ok)
		require.NoError(t, dir.Users.Delete("bob"))
		assert.ErrorIs(t, dir.Users.Delete("bob"), errors.ErrUserNotFound)
	})
}

// =============================================================================
// Safety Tests
// =============================================================================

func TestDiskSpaceInfo(t *testing.T) {
	assert.Equal(t, 0.0, (&DiskSpaceInfo{FreeBytes: 100}).FreePercent())
	assert.Equal(t, 25.0, (&DiskSpaceInfo{TotalBytes: 1000, FreeBytes: 250}).FreePercent())
}

func TestGetDiskSpace(t *testing.T) {
	info, err := GetDiskSpace(filepath.Join(t.TempDir(), "not", "yet", "created"))
	require.NoError(t, err)
	assert.Greater(t, info.TotalBytes, uint64(0))
	assert.DirExists(t, info.Path)
}

func TestEnsureDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "nested")
	require.NoError(t, EnsureDirectory(path))
	assert.DirExists(t, path)
	assert.False(t, isDiskFullError(nil))
	assert.False(t, isDiskFullError(fmt.Errorf("some error")))
}

// =============================================================================
// Recovery Tests
// =============================================================================

func TestCheckDatabaseIntegrity(t *testing.T) {
	t.Run("nil_database", func(t *testing.T) {
		status := CheckDatabaseIntegrity(nil)
		assert.False(t, status.Healthy)
		assert.True(t, status.Corrupted)
	})

	t.Run("healthy_database", func(t *testing.T) {
		db := setupTestDB(t)
		require.NoError(t, NewUserRepo(db).Create(model.NewUser("alice", "Alice", "")))
		status := CheckDatabaseIntegrity(db)
		assert.True(t, status.Healthy)
		assert.Equal(t, 1, status.Checked)
	})
}

func TestBackupRestore(t *testing.T) {
	src := setupTestDB(t)
	ctx := context.Background()
	id, err := NewAllocationRepo(src).Create(ctx, model.NewAllocation("website", "alice", at(1, 9), at(1, 11), model.KindReported, ""))
	require.NoError(t, err)

	path, err := CreateBackup(src, t.TempDir())
	require.NoError(t, err)
	assert.FileExists(t, path)

	dst := setupTestDB(t)
	require.NoError(t, RestoreBackup(dst, path))
	got, err := NewAllocationRepo(dst).Get(id)
	require.NoError(t, err)
	assert.Equal(t, 120, got.DurationMinutes)

	_, err = CreateBackup(src, "")
	assert.Error(t, err)
}

func TestIsDatabaseCorrupted(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"regular", fmt.Errorf("some error"), false},
		{"checksum", fmt.Errorf("checksum mismatch detected"), true},
		{"mixed_case", fmt.Errorf("Data CORRUPT"), true},
		{"sentinel", errors.Wrap(errors.ErrDatabaseCorrupt, "open"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDatabaseCorrupted(tt.err))
		})
	}
}
