package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/manav03panchal/timegrid/internal/allocation"
	"github.com/manav03panchal/timegrid/internal/errors"
	"github.com/manav03panchal/timegrid/internal/model"
)

// AllocationRepo stores allocations and serves as the reconciler's backend.
type AllocationRepo struct {
	db *DB
}

// NewAllocationRepo creates a new allocation repository.
func NewAllocationRepo(db *DB) *AllocationRepo {
	return &AllocationRepo{db: db}
}

func newAllocation() *model.Allocation { return &model.Allocation{} }

// Create stores rec under a fresh time-sortable id and returns that id. Any
// id already on rec, temporary or not, is replaced.
func (r *AllocationRepo) Create(ctx context.Context, rec *model.Allocation) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", backendError("create", "", err)
	}
	c := rec.Clone()
	c.ID = id.String()
	c.Key = model.GenerateAllocationKey(c.ID)
	c.Normalize()
	if err := allocation.Validate(c); err != nil {
		return "", err
	}
	if err := r.db.Set(c); err != nil {
		return "", backendError("create", c.ID, err)
	}
	return c.ID, nil
}

// Get retrieves an allocation by id.
func (r *AllocationRepo) Get(id string) (*model.Allocation, error) {
	a := newAllocation()
	if err := r.db.Get(model.GenerateAllocationKey(id), a); err != nil {
		return nil, backendError("get", id, err)
	}
	return a, nil
}

// Update applies patch to the stored allocation in one transaction.
func (r *AllocationRepo) Update(ctx context.Context, id string, patch model.AllocationPatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := Modify(r.db, model.GenerateAllocationKey(id), newAllocation(), func(a *model.Allocation) error {
		next := patch.Apply(a)
		if err := allocation.Validate(next); err != nil {
			return err
		}
		*a = *next
		return nil
	})
	return backendError("update", id, err)
}

// Delete removes an allocation by id.
func (r *AllocationRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return backendError("delete", id, r.db.Delete(model.GenerateAllocationKey(id)))
}

// QueryWindow returns every allocation intersecting rng.
func (r *AllocationRepo) QueryWindow(ctx context.Context, rng model.DateRange) ([]*model.Allocation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.List(AllocationFilter{Range: rng})
}

// AllocationFilter defines filtering criteria for allocations. Zero fields
// match everything.
type AllocationFilter struct {
	ProjectSID string
	OwnerSID   string
	Kind       model.Kind
	Range      model.DateRange
	Limit      int
}

func (f AllocationFilter) match(a *model.Allocation) bool {
	key := model.RowKey{Project: f.ProjectSID, Owner: f.OwnerSID}
	if !key.Matches(a.ProjectSID, a.OwnerSID) {
		return false
	}
	if f.Kind != "" && a.Kind != f.Kind {
		return false
	}
	return f.Range.Intersects(a.Start, a.End)
}

// List returns the allocations matching filter ordered by start. The limit
// applies after sorting, so it keeps the earliest matches.
func (r *AllocationRepo) List(filter AllocationFilter) ([]*model.Allocation, error) {
	out, err := GetFilteredByPrefix(r.db, model.PrefixAllocation+":", newAllocation, filter.match, 0)
	if err != nil {
		return nil, backendError("list", "", err)
	}
	allocation.SortByStart(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// backendError maps a store failure for op. A missing key becomes
// ErrNotFound and a rejected record keeps its validation error; anything else
// is a SystemError so callers can tell failure from absence.
func backendError(op, id string, err error) error {
	switch {
	case err == nil:
		return nil
	case IsErrKeyNotFound(err):
		return errors.Wrapf(errors.ErrNotFound, "allocation %s", id)
	case errors.IsUserError(err):
		return err
	}
	msg := "allocation store failed"
	if id != "" {
		msg += " for " + id
	}
	return errors.NewSystemErrorWithOp("allocation."+op, msg, err)
}
