// Package testutil holds fakes and fixtures shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/manav03panchal/timegrid/internal/errors"
	"github.com/manav03panchal/timegrid/internal/model"
)

// FakeBackend is an in-memory persistence backend. Failures can be injected
// per operation and calls can be held in flight with Hold/Release.
type FakeBackend struct {
	mu      sync.Mutex
	records map[string]*model.Allocation
	nextID  int
	fail    map[string][]error
	calls   []string
	gate    chan struct{}
}

// NewFakeBackend returns a backend seeded with records.
func NewFakeBackend(records ...*model.Allocation) *FakeBackend {
	b := &FakeBackend{records: make(map[string]*model.Allocation), fail: make(map[string][]error)}
	for _, r := range records {
		b.records[r.ID] = r.Clone()
	}
	return b
}

// FailNext makes the next call of op ("create", "update", "delete", "query")
// return err. Repeated calls queue more failures.
func (b *FakeBackend) FailNext(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail[op] = append(b.fail[op], err)
}

// Hold blocks every call until Release.
func (b *FakeBackend) Hold() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gate = make(chan struct{})
}

// Release lets held calls proceed.
func (b *FakeBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gate != nil {
		close(b.gate)
		b.gate = nil
	}
}

// Calls returns the operations seen so far, as "op id".
func (b *FakeBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// Get returns the stored record.
func (b *FakeBackend) Get(id string) (*model.Allocation, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.records[id]
	return r.Clone(), ok
}

// Len returns the number of stored records.
func (b *FakeBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

func (b *FakeBackend) enter(ctx context.Context, op, id string) error {
	b.mu.Lock()
	gate := b.gate
	b.calls = append(b.calls, op+" "+id)
	b.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if q := b.fail[op]; len(q) > 0 {
		b.fail[op] = q[1:]
		return q[0]
	}
	return nil
}

func (b *FakeBackend) Create(ctx context.Context, rec *model.Allocation) (string, error) {
	if err := b.enter(ctx, "create", ""); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := fmt.Sprintf("srv-%d", b.nextID)
	c := rec.Clone()
	c.ID = id
	b.records[id] = c
	return id, nil
}

func (b *FakeBackend) Update(ctx context.Context, id string, patch model.AllocationPatch) error {
	if err := b.enter(ctx, "update", id); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.records[id]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "update %s", id)
	}
	b.records[id] = patch.Apply(cur)
	return nil
}

func (b *FakeBackend) Delete(ctx context.Context, id string) error {
	if err := b.enter(ctx, "delete", id); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.records[id]; !ok {
		return errors.Wrapf(errors.ErrNotFound, "delete %s", id)
	}
	delete(b.records, id)
	return nil
}

func (b *FakeBackend) QueryWindow(ctx context.Context, r model.DateRange) ([]*model.Allocation, error) {
	if err := b.enter(ctx, "query", r.String()); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*model.Allocation
	for _, rec := range b.records {
		if r.Intersects(rec.Start, rec.End) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}
