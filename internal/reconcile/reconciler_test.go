package reconcile

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manav03panchal/timegrid/internal/allocation"
	"github.com/manav03panchal/timegrid/internal/clock"
	"github.com/manav03panchal/timegrid/internal/drag"
	"github.com/manav03panchal/timegrid/internal/errors"
	"github.com/manav03panchal/timegrid/internal/model"
	fixtures "github.com/manav03panchal/timegrid/internal/testutil"
)

type harness struct {
	rec      *Reconciler
	store    *allocation.Store
	backend  *fixtures.FakeBackend
	notifier *fixtures.RecordingNotifier
	clock    *clock.Fixed
}

func newHarness(t *testing.T, seed ...*model.Allocation) *harness {
	t.Helper()
	h := &harness{
		store:    allocation.NewStore(),
		backend:  fixtures.NewFakeBackend(seed...),
		notifier: &fixtures.RecordingNotifier{},
		clock:    clock.NewFixed(fixtures.Day(0, 8*time.Hour)),
	}
	n := 0
	h.rec = New(h.store, h.backend, Options{
		Clock:                 h.clock,
		Notifier:              h.notifier,
		ReloadInitialInterval: time.Millisecond,
		ReloadMaxElapsed:      20 * time.Millisecond,
		NewID: func() string {
			n++
			return fmt.Sprintf("%d", n)
		},
	})
	require.NoError(t, h.rec.Load(context.Background(), model.NewGridWindow(fixtures.Monday, model.ViewGrid).Range()))
	return h
}

func (h *harness) commit(t *testing.T, req drag.Request) *Ticket {
	t.Helper()
	ticket, err := h.rec.Commit(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, ticket)
	return ticket
}

func wait(t *testing.T, ticket *Ticket) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	select {
	case <-ticket.Done():
		return ticket.Err()
	case <-ctx.Done():
		t.Fatal("ticket did not resolve")
		return nil
	}
}

func moveTo(rec *model.Allocation, start time.Time) drag.UpdateRequest {
	return drag.Retime(rec, start, start.Add(rec.Duration()))
}

// =============================================================================
// Failure Recovery Tests
// =============================================================================

func TestFailedMoveRollsBack(t *testing.T) {
	d1 := fixtures.Day(2, 9*time.Hour)
	d2 := fixtures.Day(4, 9*time.Hour)
	a := fixtures.Allocation("a", d1, 8*time.Hour)
	h := newHarness(t, a)
	h.backend.FailNext("update", fmt.Errorf("503 service unavailable"))

	ticket := h.commit(t, moveTo(a, d2))
	got, _ := h.store.Get("a")
	assert.Equal(t, d2, got.Start, "optimistic apply is synchronous")

	err := wait(t, ticket)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrPersistence)

	all := h.store.Query(model.RowKey{}, model.DateRange{})
	require.Len(t, all, 1)
	assert.Equal(t, d1, all[0].Start)
	assert.Equal(t, d1.Add(8*time.Hour), all[0].End)
	assert.Len(t, h.notifier.Failures(), 1)
	assert.Empty(t, h.notifier.Successes())

	m := h.rec.Metrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Failures.WithLabelValues("update")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reloads.WithLabelValues("ok")))
}

func TestFailedCreateDiscardsTemporaryRecord(t *testing.T) {
	h := newHarness(t)
	h.backend.FailNext("create", fmt.Errorf("connection reset"))

	ticket := h.commit(t, drag.CreateRequest{
		Row:   model.MemberRow("website", "alice"),
		Start: fixtures.Day(1, 9*time.Hour),
		End:   fixtures.Day(1, 12*time.Hour),
	})
	assert.Equal(t, model.TempIDPrefix+"1", ticket.ID())
	assert.Equal(t, 1, h.store.Len())

	require.Error(t, wait(t, ticket))
	assert.Zero(t, h.store.Len())
	assert.Len(t, h.notifier.Failures(), 1)
}

func TestFailedDeleteRestoresRecord(t *testing.T) {
	a := fixtures.Allocation("a", fixtures.Day(1, 9*time.Hour), time.Hour)
	h := newHarness(t, a)
	h.backend.FailNext("delete", fmt.Errorf("500"))

	ticket := h.commit(t, drag.DeleteRequest{ID: "a"})
	_, ok := h.store.Get("a")
	assert.False(t, ok)

	require.Error(t, wait(t, ticket))
	_, ok = h.store.Get("a")
	assert.True(t, ok)
}

func TestReloadFailureDropsUpdatedRecord(t *testing.T) {
	a := fixtures.Allocation("a", fixtures.Day(1, 9*time.Hour), time.Hour)
	h := newHarness(t, a)
	h.backend.FailNext("update", fmt.Errorf("500"))
	for i := 0; i < 1000; i++ {
		h.backend.FailNext("query", fmt.Errorf("still down"))
	}

	ticket := h.commit(t, moveTo(a, fixtures.Day(3, 9*time.Hour)))
	require.Error(t, wait(t, ticket))

	_, ok := h.store.Get("a")
	assert.False(t, ok, "the refused write must not stay visible")
	assert.Len(t, h.notifier.Failures(), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.rec.Metrics().Reloads.WithLabelValues("error")))
}

// =============================================================================
// Create Tests
// =============================================================================

func TestCreateIsRekeyed(t *testing.T) {
	h := newHarness(t)
	ticket := h.commit(t, drag.CreateRequest{
		Row:       model.ProjectRow("website"),
		Start:     fixtures.Day(2, 0),
		End:       fixtures.Day(5, 0),
		Precision: model.PrecisionDay,
		Hours:     12,
	})

	require.NoError(t, wait(t, ticket))
	assert.Equal(t, "srv-1", ticket.ID())
	got, ok := h.store.Get("srv-1")
	require.True(t, ok)
	assert.Equal(t, 720, got.DurationMinutes)
	assert.Equal(t, model.KindPlanned, got.Kind)
	_, ok = h.store.Get(model.TempIDPrefix + "1")
	assert.False(t, ok)

	stored, ok := h.backend.Get("srv-1")
	require.True(t, ok)
	assert.Equal(t, 720, stored.DurationMinutes)
	assert.Equal(t, []string{"Allocation created"}, h.notifier.Successes())
}

func TestCreateValidationIsSynchronous(t *testing.T) {
	h := newHarness(t)
	_, err := h.rec.Commit(context.Background(), drag.CreateRequest{
		Row:       model.ProjectRow("website"),
		Start:     fixtures.Day(2, 0),
		End:       fixtures.Day(5, 0),
		Precision: model.PrecisionDay,
		Hours:     0,
	})

	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Zero(t, h.store.Len())
	h.rec.Wait()
	assert.Equal(t, []string{"query " + h.rec.Window().String()}, h.backend.Calls())
}

func TestCreateOutsideWindowIsDropped(t *testing.T) {
	h := newHarness(t)
	ticket := h.commit(t, drag.CreateRequest{
		Row:   model.MemberRow("website", "alice"),
		Start: fixtures.Day(40, 9*time.Hour),
		End:   fixtures.Day(40, 10*time.Hour),
	})

	assert.True(t, ticket.Dropped())
	require.NoError(t, wait(t, ticket))
	assert.Zero(t, h.store.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.rec.Metrics().Dropped))
}

// =============================================================================
// Temporary Id Tests
// =============================================================================

func TestUpdateWaitsForCreate(t *testing.T) {
	h := newHarness(t)
	h.backend.Hold()

	create := h.commit(t, drag.CreateRequest{
		Row:   model.MemberRow("website", "alice"),
		Start: fixtures.Day(1, 9*time.Hour),
		End:   fixtures.Day(1, 10*time.Hour),
	})
	tmp, _ := h.store.Get(create.ID())
	update := h.commit(t, moveTo(tmp, fixtures.Day(2, 9*time.Hour)))

	got, _ := h.store.Get(create.ID())
	assert.Equal(t, fixtures.Day(2, 9*time.Hour), got.Start)

	h.backend.Release()
	require.NoError(t, wait(t, create))
	require.NoError(t, wait(t, update))
	assert.Equal(t, "srv-1", update.ID())

	stored, _ := h.backend.Get("srv-1")
	assert.Equal(t, fixtures.Day(2, 9*time.Hour), stored.Start)
	got, ok := h.store.Get("srv-1")
	require.True(t, ok)
	assert.Equal(t, fixtures.Day(2, 9*time.Hour), got.Start)
}

func TestUpdateAfterFailedCreateIsDropped(t *testing.T) {
	h := newHarness(t)
	h.backend.Hold()
	h.backend.FailNext("create", fmt.Errorf("rejected"))

	create := h.commit(t, drag.CreateRequest{
		Row:   model.MemberRow("website", "alice"),
		Start: fixtures.Day(1, 9*time.Hour),
		End:   fixtures.Day(1, 10*time.Hour),
	})
	tmp, _ := h.store.Get(create.ID())
	update := h.commit(t, moveTo(tmp, fixtures.Day(2, 9*time.Hour)))

	h.backend.Release()
	require.Error(t, wait(t, create))
	require.NoError(t, wait(t, update))
	assert.True(t, update.Dropped())
	assert.Zero(t, h.store.Len())
	assert.Zero(t, h.backend.Len())
}

func TestDeleteDuringCreate(t *testing.T) {
	h := newHarness(t)
	h.backend.Hold()

	create := h.commit(t, drag.CreateRequest{
		Row:   model.MemberRow("website", "alice"),
		Start: fixtures.Day(1, 9*time.Hour),
		End:   fixtures.Day(1, 10*time.Hour),
	})
	del := h.commit(t, drag.DeleteRequest{ID: create.ID()})
	assert.Zero(t, h.store.Len())

	h.backend.Release()
	require.NoError(t, wait(t, create))
	require.NoError(t, wait(t, del))
	h.rec.Wait()
	assert.Zero(t, h.store.Len(), "a confirmed create must not resurrect a deleted record")
	assert.Zero(t, h.backend.Len())
}

func TestTemporaryIdResolvesAfterCreate(t *testing.T) {
	h := newHarness(t)
	create := h.commit(t, drag.CreateRequest{
		Row:   model.MemberRow("website", "alice"),
		Start: fixtures.Day(1, 9*time.Hour),
		End:   fixtures.Day(1, 10*time.Hour),
	})
	tmpID := create.ID()
	require.NoError(t, wait(t, create))

	del := h.commit(t, drag.DeleteRequest{ID: tmpID})
	require.NoError(t, wait(t, del))
	assert.Equal(t, "srv-1", del.ID())
	assert.Zero(t, h.backend.Len())
}

func TestSettleMovesRecordWithAlias(t *testing.T) {
	tests := []struct {
		name    string
		inStore bool
		deleted bool
		start   time.Time
		want    bool
	}{
		{"record in store is rekeyed", true, false, fixtures.Day(1, 9*time.Hour), true},
		{"record lost to a reload is restored", false, false, fixtures.Day(1, 9*time.Hour), true},
		{"deleted record stays deleted", false, true, fixtures.Day(1, 9*time.Hour), false},
		{"restored record outside the window is skipped", false, false, fixtures.Day(40, 9*time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tmp := model.TempIDPrefix + "x"
			rec := fixtures.Allocation(tmp, tt.start, time.Hour)
			if tt.inStore {
				require.NoError(t, h.store.Upsert(rec))
			}
			pc := &pendingCreate{done: make(chan struct{}), deleted: tt.deleted}
			h.rec.pending[tmp] = pc

			confirmed := rec.Clone()
			confirmed.ID = "srv-9"
			require.NoError(t, h.rec.settle(tmp, confirmed))

			h.rec.mu.Lock()
			id := h.rec.aliasOf(tmp)
			h.rec.mu.Unlock()
			assert.Equal(t, "srv-9", id)
			_, found := h.store.Get(id)
			assert.Equal(t, tt.want, found)
			_, stale := h.store.Get(tmp)
			assert.False(t, stale)

			select {
			case <-pc.done:
			default:
				t.Fatal("waiters were not released")
			}
			assert.Equal(t, "srv-9", pc.id)
		})
	}
}

func TestSettleFailedCreateDiscardsRecord(t *testing.T) {
	h := newHarness(t)
	tmp := model.TempIDPrefix + "x"
	require.NoError(t, h.store.Upsert(fixtures.Allocation(tmp, fixtures.Day(1, 9*time.Hour), time.Hour)))
	pc := &pendingCreate{done: make(chan struct{})}
	h.rec.pending[tmp] = pc

	require.NoError(t, h.rec.settle(tmp, nil))
	assert.Zero(t, h.store.Len())
	assert.Empty(t, pc.id)
	assert.Equal(t, tmp, h.rec.aliasOf(tmp))
}

func TestSettleReportsRejectedRecord(t *testing.T) {
	h := newHarness(t)
	tmp := model.TempIDPrefix + "x"
	h.rec.pending[tmp] = &pendingCreate{done: make(chan struct{})}

	confirmed := fixtures.Allocation("srv-9", fixtures.Day(1, 9*time.Hour), time.Hour)
	confirmed.End = confirmed.Start
	assert.ErrorIs(t, h.rec.settle(tmp, confirmed), errors.ErrEndBeforeStart)
	assert.Zero(t, h.store.Len())
}

func TestCommitsAfterSettleFindRecord(t *testing.T) {
	h := newHarness(t)
	h.backend.Hold()
	create := h.commit(t, drag.CreateRequest{
		Row:   model.MemberRow("website", "alice"),
		Start: fixtures.Day(1, 9*time.Hour),
		End:   fixtures.Day(1, 10*time.Hour),
	})
	tmpID := create.ID()
	h.backend.Release()
	require.NoError(t, wait(t, create))

	start, end := fixtures.Day(2, 9*time.Hour), fixtures.Day(2, 10*time.Hour)
	update := h.commit(t, drag.UpdateRequest{ID: tmpID, Patch: model.AllocationPatch{Start: &start, End: &end}})
	assert.False(t, update.Dropped())
	assert.Equal(t, "srv-1", update.ID())
	require.NoError(t, wait(t, update))

	del := h.commit(t, drag.DeleteRequest{ID: tmpID})
	assert.False(t, del.Dropped())
	require.NoError(t, wait(t, del))
	assert.Zero(t, h.store.Len())
	assert.Zero(t, h.backend.Len())
}

// =============================================================================
// Update / Delete Tests
// =============================================================================

func TestUpdateMissingRecordIsDropped(t *testing.T) {
	h := newHarness(t)
	start := fixtures.Day(1, 0)
	ticket := h.commit(t, drag.UpdateRequest{ID: "ghost", Patch: model.AllocationPatch{Start: &start}})
	assert.True(t, ticket.Dropped())
}

func TestUpdateValidation(t *testing.T) {
	planned := fixtures.Allocation("p", fixtures.Day(2, 9*time.Hour), time.Hour, fixtures.WithKind(model.KindPlanned))
	h := newHarness(t, planned)

	t.Run("end_before_start", func(t *testing.T) {
		end := planned.Start
		_, err := h.rec.Commit(context.Background(), drag.UpdateRequest{ID: "p", Patch: model.AllocationPatch{End: &end}})
		assert.ErrorIs(t, err, errors.ErrEndBeforeStart)
	})

	t.Run("explicit_planned_in_past", func(t *testing.T) {
		start := fixtures.Day(0, 6*time.Hour)
		end := start.Add(time.Hour)
		kind := model.KindPlanned
		_, err := h.rec.Commit(context.Background(), drag.UpdateRequest{ID: "p", Patch: model.AllocationPatch{Start: &start, End: &end, Kind: &kind}})
		assert.ErrorIs(t, err, errors.ErrPlannedInPast)
	})

	got, _ := h.store.Get("p")
	assert.Equal(t, planned.Start, got.Start)
	assert.Equal(t, model.KindPlanned, got.Kind)
}

func TestMoveIntoPastDemotesToReported(t *testing.T) {
	planned := fixtures.Allocation("p", fixtures.Day(2, 9*time.Hour), time.Hour, fixtures.WithKind(model.KindPlanned))
	h := newHarness(t, planned)

	ticket := h.commit(t, moveTo(planned, fixtures.Day(0, 6*time.Hour)))
	require.NoError(t, wait(t, ticket))

	got, _ := h.store.Get("p")
	assert.Equal(t, model.KindReported, got.Kind)
	stored, _ := h.backend.Get("p")
	assert.Equal(t, model.KindReported, stored.Kind)
}

func TestDeleteNotFoundCountsAsDone(t *testing.T) {
	a := fixtures.Allocation("a", fixtures.Day(1, 9*time.Hour), time.Hour)
	h := newHarness(t, a)
	h.backend.FailNext("delete", errors.Wrapf(errors.ErrNotFound, "delete a"))

	ticket := h.commit(t, drag.DeleteRequest{ID: "a"})
	require.NoError(t, wait(t, ticket))
	assert.Empty(t, h.notifier.Failures())
	assert.Equal(t, []string{"Allocation deleted"}, h.notifier.Successes())
}

func TestLastCommitWinsLocally(t *testing.T) {
	a := fixtures.Allocation("a", fixtures.Day(1, 9*time.Hour), time.Hour)
	h := newHarness(t, a)
	h.backend.Hold()

	first := h.commit(t, moveTo(a, fixtures.Day(2, 9*time.Hour)))
	cur, _ := h.store.Get("a")
	second := h.commit(t, moveTo(cur, fixtures.Day(3, 9*time.Hour)))

	got, _ := h.store.Get("a")
	assert.Equal(t, fixtures.Day(3, 9*time.Hour), got.Start)

	h.backend.Release()
	require.NoError(t, wait(t, first))
	require.NoError(t, wait(t, second))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.rec.Metrics().Commits.WithLabelValues("update")))
}

func TestCommitRejectsSelect(t *testing.T) {
	h := newHarness(t)
	_, err := h.rec.Commit(context.Background(), drag.SelectRequest{ID: "a"})
	assert.Error(t, err)
}

// =============================================================================
// Load Tests
// =============================================================================

func TestLoadReplacesStore(t *testing.T) {
	inFirst := fixtures.Allocation("a", fixtures.Day(1, 9*time.Hour), time.Hour)
	inSecond := fixtures.Allocation("b", fixtures.Day(25, 9*time.Hour), time.Hour)
	h := newHarness(t, inFirst, inSecond)
	assert.Equal(t, 1, h.store.Len())

	next := model.NewGridWindow(fixtures.Monday, model.ViewGrid).Next()
	require.NoError(t, h.rec.Load(context.Background(), next.Range()))
	_, ok := h.store.Get("b")
	assert.True(t, ok)
	_, ok = h.store.Get("a")
	assert.False(t, ok)
	assert.Equal(t, next.Range(), h.rec.Window())
}

func TestLoadFailure(t *testing.T) {
	h := newHarness(t, fixtures.Allocation("a", fixtures.Day(1, 9*time.Hour), time.Hour))
	h.backend.FailNext("query", fmt.Errorf("timeout"))

	err := h.rec.Load(context.Background(), model.NewGridWindow(fixtures.Monday, model.ViewCalendarWeek).Range())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrPersistence)
	assert.Equal(t, 1, h.store.Len(), "a failed load keeps the previous window")
}
