package reconcile

import (
	"context"
	"sync"
)

// Op names the persistence call behind a commit.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Ticket tracks one committed request until its persistence call resolves.
// The store already reflects the request when Commit returns the ticket.
type Ticket struct {
	op   Op
	done chan struct{}

	mu      sync.Mutex
	id      string
	err     error
	dropped bool
}

func newTicket(op Op, id string) *Ticket {
	return &Ticket{op: op, id: id, done: make(chan struct{})}
}

func droppedTicket(op Op, id string) *Ticket {
	t := newTicket(op, id)
	t.finish(id, nil, true)
	return t
}

// Op returns the operation of the request.
func (t *Ticket) Op() Op { return t.op }

// ID returns the record id: the temporary id until a create resolves, the
// backend id after.
func (t *Ticket) ID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.id
}

// Done is closed once the persistence call and any recovery have finished.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Err returns the persistence failure, if any. It is nil until Done is closed.
func (t *Ticket) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Dropped reports whether the request was discarded without a backend call.
func (t *Ticket) Dropped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}

// Wait blocks until the ticket resolves or ctx ends.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Ticket) finish(id string, err error, dropped bool) {
	t.mu.Lock()
	if id != "" {
		t.id = id
	}
	t.err = err
	t.dropped = dropped
	t.mu.Unlock()
	close(t.done)
}
