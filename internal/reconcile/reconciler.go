// Package reconcile applies write requests to the allocation store
// optimistically and keeps it consistent with the persistence backend.
package reconcile

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/manav03panchal/timegrid/internal/allocation"
	"github.com/manav03panchal/timegrid/internal/clock"
	"github.com/manav03panchal/timegrid/internal/drag"
	"github.com/manav03panchal/timegrid/internal/errors"
	"github.com/manav03panchal/timegrid/internal/logging"
	"github.com/manav03panchal/timegrid/internal/metrics"
	"github.com/manav03panchal/timegrid/internal/model"
)

// Persistence is the backend holding the source of truth. Not-found must be
// reported as errors.ErrNotFound so it is distinguishable from failure.
type Persistence interface {
	Create(ctx context.Context, rec *model.Allocation) (string, error)
	Update(ctx context.Context, id string, patch model.AllocationPatch) error
	Delete(ctx context.Context, id string) error
	QueryWindow(ctx context.Context, r model.DateRange) ([]*model.Allocation, error)
}

// Notifier receives user-facing outcomes. Calls must not block for long.
type Notifier interface {
	NotifySuccess(ctx context.Context, message string)
	NotifyFailure(ctx context.Context, message string)
}

// Options configure a Reconciler. Zero values pick defaults.
type Options struct {
	Clock    clock.Clock
	Notifier Notifier
	Metrics  *metrics.Reconcile
	// CallTimeout bounds each persistence call; zero means no bound.
	CallTimeout           time.Duration
	ReloadInitialInterval time.Duration
	ReloadMaxElapsed      time.Duration
	// NewID returns the suffix of temporary ids.
	NewID func() string
}

type pendingCreate struct {
	done    chan struct{}
	id      string
	deleted bool
}

// Reconciler is the only writer of its store.
type Reconciler struct {
	store   *allocation.Store
	backend Persistence
	opts    Options

	mu         sync.Mutex
	window     model.DateRange
	generation uint64
	pending    map[string]*pendingCreate
	aliases    map[string]string

	wg sync.WaitGroup
}

// New returns a reconciler writing to store and backend.
func New(store *allocation.Store, backend Persistence, opts Options) *Reconciler {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Notifier == nil {
		opts.Notifier = discard{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewReconcile()
	}
	if opts.ReloadInitialInterval <= 0 {
		opts.ReloadInitialInterval = 200 * time.Millisecond
	}
	if opts.ReloadMaxElapsed <= 0 {
		opts.ReloadMaxElapsed = 10 * time.Second
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Reconciler{
		store:   store,
		backend: backend,
		opts:    opts,
		pending: make(map[string]*pendingCreate),
		aliases: make(map[string]string),
	}
}

// Store returns the store the reconciler writes to.
func (r *Reconciler) Store() *allocation.Store { return r.store }

// Metrics returns the reconciler's counters.
func (r *Reconciler) Metrics() *metrics.Reconcile { return r.opts.Metrics }

// Window returns the loaded date range.
func (r *Reconciler) Window() model.DateRange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.window
}

// Load rebuilds the store from the backend for window.
func (r *Reconciler) Load(ctx context.Context, window model.DateRange) error {
	start := time.Now()
	records, err := r.query(ctx, window)
	if err != nil {
		return errors.NewPersistenceError("query", err)
	}
	r.mu.Lock()
	r.window = window
	r.generation++
	r.mu.Unlock()

	rejected := r.store.Replace(records)
	log := logging.FromContext(logging.WithWindow(ctx, window))
	if len(rejected) > 0 {
		log.Warn("backend returned invalid allocations", logging.KeyCount, len(rejected))
	}
	log.Debug("window loaded", logging.KeyCount, len(records)-len(rejected), logging.KeyDuration, logging.SinceMs(start))
	return nil
}

// Wait blocks until every in-flight persistence call has resolved.
func (r *Reconciler) Wait() {
	r.wg.Wait()
}

// Commit applies req to the store and starts its persistence call. Validation
// errors are returned synchronously and leave the store untouched. Requests
// whose window or record is gone return a dropped ticket.
func (r *Reconciler) Commit(ctx context.Context, req drag.Request) (*Ticket, error) {
	switch req := req.(type) {
	case drag.CreateRequest:
		return r.commitCreate(ctx, req)
	case drag.UpdateRequest:
		return r.commitUpdate(ctx, req)
	case drag.DeleteRequest:
		return r.commitDelete(ctx, req)
	default:
		return nil, fmt.Errorf("reconcile: %T is not a write request", req)
	}
}

func (r *Reconciler) commitCreate(ctx context.Context, req drag.CreateRequest) (*Ticket, error) {
	rec, err := req.Allocation(r.opts.Clock.Now())
	if err != nil {
		return nil, err
	}
	if !r.Window().Intersects(rec.Start, rec.End) {
		return r.drop(ctx, OpCreate, ""), nil
	}

	tmp := model.TempIDPrefix + r.opts.NewID()
	rec.ID = tmp
	if err := r.store.Upsert(rec); err != nil {
		return nil, err
	}
	pc := &pendingCreate{done: make(chan struct{})}
	r.mu.Lock()
	r.pending[tmp] = pc
	r.mu.Unlock()

	t := newTicket(OpCreate, tmp)
	r.opts.Metrics.Commits.WithLabelValues(string(OpCreate)).Inc()
	payload := rec.Clone()
	payload.ID = ""

	r.spawn(ctx, func(ctx context.Context) {
		var id string
		err := r.call(ctx, OpCreate, func(ctx context.Context) error {
			var err error
			id, err = r.backend.Create(ctx, payload)
			return err
		})
		if err == nil && id == "" {
			err = fmt.Errorf("backend returned an empty id")
		}
		if err != nil {
			_ = r.settle(tmp, nil)
			r.rollback(ctx, OpCreate, tmp, err)
			t.finish("", errors.NewPersistenceError(string(OpCreate), err), false)
			return
		}

		confirmed := rec.Clone()
		confirmed.ID = id
		log := logging.FromContext(logging.WithAllocation(ctx, id))
		if err := r.settle(tmp, confirmed); err != nil {
			log.Warn("store rejected confirmed allocation", logging.KeyError, err.Error())
		}
		log.Info("allocation created", logging.KeyProject, rec.ProjectSID)
		r.opts.Notifier.NotifySuccess(ctx, "Allocation created")
		t.finish(id, nil, false)
	})
	return t, nil
}

func (r *Reconciler) commitUpdate(ctx context.Context, req drag.UpdateRequest) (*Ticket, error) {
	id, patch, err := r.applyUpdate(req)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return r.drop(ctx, OpUpdate, id), nil
	}

	t := newTicket(OpUpdate, id)
	r.opts.Metrics.Commits.WithLabelValues(string(OpUpdate)).Inc()
	r.spawn(ctx, func(ctx context.Context) {
		backendID, ok := r.awaitCreate(id)
		if !ok {
			r.opts.Metrics.Dropped.Inc()
			t.finish("", nil, true)
			return
		}
		err := r.call(ctx, OpUpdate, func(ctx context.Context) error {
			return r.backend.Update(ctx, backendID, patch)
		})
		if err != nil {
			r.rollback(ctx, OpUpdate, backendID, err)
			t.finish(backendID, errors.NewPersistenceError(string(OpUpdate), err), false)
			return
		}
		t.finish(backendID, nil, false)
	})
	return t, nil
}

func (r *Reconciler) commitDelete(ctx context.Context, req drag.DeleteRequest) (*Ticket, error) {
	id, ok := r.applyDelete(req.ID)
	if !ok {
		return r.drop(ctx, OpDelete, id), nil
	}

	t := newTicket(OpDelete, id)
	r.opts.Metrics.Commits.WithLabelValues(string(OpDelete)).Inc()
	r.spawn(ctx, func(ctx context.Context) {
		backendID, ok := r.awaitCreate(id)
		if !ok {
			r.opts.Metrics.Dropped.Inc()
			t.finish("", nil, true)
			return
		}
		err := r.call(ctx, OpDelete, func(ctx context.Context) error {
			return r.backend.Delete(ctx, backendID)
		})
		if err != nil && !errors.IsNotFound(err) {
			r.rollback(ctx, OpDelete, backendID, err)
			t.finish(backendID, errors.NewPersistenceError(string(OpDelete), err), false)
			return
		}
		r.opts.Notifier.NotifySuccess(ctx, "Allocation deleted")
		t.finish(backendID, nil, false)
	})
	return t, nil
}

// applyUpdate resolves the target of req and writes the patched record to the
// store. It holds r.mu throughout so a create settling concurrently cannot
// move the record between the lookup and the write. An empty patch means
// there is nothing to persist.
func (r *Reconciler) applyUpdate(req drag.UpdateRequest) (string, model.AllocationPatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.aliasOf(req.ID)
	cur, ok := r.store.Get(id)
	if !ok || req.Patch.IsEmpty() {
		return id, model.AllocationPatch{}, nil
	}
	next := req.Patch.Apply(cur)
	if err := r.validateUpdate(req.Patch, next); err != nil {
		return id, model.AllocationPatch{}, err
	}
	patch := model.Diff(cur, next)
	if patch.IsEmpty() {
		return id, patch, nil
	}
	if err := r.store.Upsert(next); err != nil {
		return id, model.AllocationPatch{}, err
	}
	return id, patch, nil
}

// applyDelete removes the target of a delete request from the store and
// flags a pending create so its confirmation does not bring it back.
func (r *Reconciler) applyDelete(reqID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.aliasOf(reqID)
	if !r.store.Remove(id) {
		return id, false
	}
	if pc, ok := r.pending[id]; ok {
		pc.deleted = true
	}
	return id, true
}

// validateUpdate enforces the record invariants on the patched record and
// demotes a planned record whose start is no longer in the future.
func (r *Reconciler) validateUpdate(patch model.AllocationPatch, next *model.Allocation) error {
	if !next.End.After(next.Start) {
		return errors.NewValidationError(errors.ErrEndBeforeStart, "end", next.End.Format(time.RFC3339))
	}
	if d := patch.DurationMinutes; d != nil && next.Precision == model.PrecisionDay {
		if *d <= 0 || *d > model.SpanMinutes(next.Start, next.End) {
			return errors.NewValidationError(errors.ErrInvalidHours, "hours", fmt.Sprintf("%.2f", float64(*d)/60))
		}
	}
	if next.Kind == model.KindPlanned && !next.Start.After(r.opts.Clock.Now()) {
		if patch.Kind != nil {
			return errors.NewValidationError(errors.ErrPlannedInPast, "start", next.Start.Format(time.RFC3339))
		}
		next.Kind = model.KindReported
	}
	return nil
}

func (r *Reconciler) drop(ctx context.Context, op Op, id string) *Ticket {
	r.opts.Metrics.Dropped.Inc()
	logging.FromContext(logging.WithAllocation(ctx, id)).Debug("request dropped", logging.KeyOperation, string(op))
	return droppedTicket(op, id)
}

// spawn runs fn on its own goroutine. The commit's context values are kept
// but its cancellation is not: a committed write always runs to completion.
func (r *Reconciler) spawn(ctx context.Context, fn func(context.Context)) {
	ctx = logging.WithCommit(context.WithoutCancel(ctx))
	r.wg.Add(1)
	r.opts.Metrics.InFlight.Inc()
	go func() {
		defer r.wg.Done()
		defer r.opts.Metrics.InFlight.Dec()
		fn(ctx)
	}()
}

func (r *Reconciler) call(ctx context.Context, op Op, fn func(context.Context) error) error {
	if r.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.CallTimeout)
		defer cancel()
	}
	start := time.Now()
	err := fn(ctx)
	r.opts.Metrics.CallTime.WithLabelValues(string(op)).Observe(time.Since(start).Seconds())
	return err
}

// rollback reloads the loaded window after a failed write and tells the user.
// If the reload itself fails, an updated record is dropped from the store so
// it never shows a write the backend refused.
func (r *Reconciler) rollback(ctx context.Context, op Op, id string, cause error) {
	r.opts.Metrics.Failures.WithLabelValues(string(op)).Inc()
	log := logging.FromContext(logging.WithWindow(logging.WithAllocation(ctx, id), r.Window()))
	log.Warn("persistence call failed", logging.KeyOperation, string(op), logging.KeyError, logging.SanitizeLogMessage(cause.Error()))

	if err := r.reload(ctx); err != nil {
		r.opts.Metrics.Reloads.WithLabelValues("error").Inc()
		if op == OpUpdate {
			r.store.Remove(id)
		}
		log.Error("reload failed", logging.KeyOperation, string(op), logging.KeyError, err.Error())
	} else {
		r.opts.Metrics.Reloads.WithLabelValues("ok").Inc()
	}
	r.opts.Notifier.NotifyFailure(ctx, failureMessage(op, cause))
}

func (r *Reconciler) reload(ctx context.Context) error {
	r.mu.Lock()
	window, gen := r.window, r.generation
	r.mu.Unlock()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opts.ReloadInitialInterval
	b.MaxElapsedTime = r.opts.ReloadMaxElapsed

	var records []*model.Allocation
	err := backoff.Retry(func() error {
		var err error
		records, err = r.query(ctx, window)
		if errors.GetCategory(err) == errors.CategoryUser {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generation != gen {
		// The window moved on; Load already rebuilt the store.
		return nil
	}
	r.store.Replace(records)
	return nil
}

func (r *Reconciler) query(ctx context.Context, window model.DateRange) ([]*model.Allocation, error) {
	var records []*model.Allocation
	err := r.call(ctx, "query", func(ctx context.Context) error {
		var err error
		records, err = r.backend.QueryWindow(ctx, window)
		return err
	})
	return records, err
}

// settle records the outcome of the create behind tmp. A nil confirmed means
// the create failed and the optimistic record is discarded. Otherwise the
// record moves to the backend id in the same critical section that publishes
// the alias, so a commit resolving tmp always finds it under one id or the
// other. The returned error is the store rejecting the confirmed record.
func (r *Reconciler) settle(tmp string, confirmed *model.Allocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	pc, ok := r.pending[tmp]
	if !ok {
		return nil
	}
	delete(r.pending, tmp)
	defer close(pc.done)

	if confirmed == nil {
		r.store.Remove(tmp)
		return nil
	}
	pc.id = confirmed.ID
	r.aliases[tmp] = confirmed.ID
	if r.store.Rekey(tmp, confirmed.ID) || pc.deleted {
		return nil
	}
	// A reload ran while the call was in flight and did not see the record yet.
	if !r.window.Intersects(confirmed.Start, confirmed.End) {
		return nil
	}
	return r.store.Upsert(confirmed)
}

// awaitCreate returns the backend id for id, waiting for the create of a
// temporary id. It reports false when that create failed.
func (r *Reconciler) awaitCreate(id string) (string, bool) {
	if !strings.HasPrefix(id, model.TempIDPrefix) {
		return id, true
	}
	r.mu.Lock()
	if final, ok := r.aliases[id]; ok {
		r.mu.Unlock()
		return final, true
	}
	pc, ok := r.pending[id]
	r.mu.Unlock()
	if !ok {
		return "", false
	}
	<-pc.done
	return pc.id, pc.id != ""
}

// aliasOf maps a temporary id whose create already succeeded to the backend
// id. r.mu must be held.
func (r *Reconciler) aliasOf(id string) string {
	if final, ok := r.aliases[id]; ok {
		return final
	}
	return id
}

func failureMessage(op Op, cause error) string {
	msg := fmt.Sprintf("Could not %s allocation; the view was reloaded", op)
	if s := errors.GetSuggestion(cause); s != "" {
		msg += ". " + s
	}
	return msg
}

type discard struct{}

func (discard) NotifySuccess(context.Context, string) {}
func (discard) NotifyFailure(context.Context, string) {}
