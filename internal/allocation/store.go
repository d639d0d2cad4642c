// Package allocation holds the in-memory allocation records of the loaded window.
package allocation

import (
	"sort"
	"sync"
	"time"

	"github.com/manav03panchal/timegrid/internal/errors"
	"github.com/manav03panchal/timegrid/internal/model"
)

// maxIndexedDays bounds the day index walk of a query; wider ranges scan.
const maxIndexedDays = 366

type idSet map[string]struct{}

type day struct {
	y int
	m time.Month
	d int
}

// dayOf keys the date index by UTC date so records and ranges written in
// different locations still meet.
func dayOf(t time.Time) day {
	y, m, d := t.UTC().Date()
	return day{y, m, d}
}

// Store is the keyed collection of allocations for the loaded window with
// derived indices by lane and by date. Only the reconciler writes to it.
type Store struct {
	mu        sync.RWMutex
	records   map[string]*model.Allocation
	byRow     map[model.RowKey]idSet
	byProject map[string]idSet
	byOwner   map[string]idSet
	byDay     map[day]idSet
	version   uint64
}

// NewStore returns an empty store.
func NewStore() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.records = make(map[string]*model.Allocation)
	s.byRow = make(map[model.RowKey]idSet)
	s.byProject = make(map[string]idSet)
	s.byOwner = make(map[string]idSet)
	s.byDay = make(map[day]idSet)
}

// Validate checks the invariants every stored record must hold.
func Validate(a *model.Allocation) error {
	if a == nil {
		return errors.NewUserError("allocation is required", "")
	}
	if a.ID == "" {
		return errors.NewUserErrorWithField("id", "", "allocation id is required", "")
	}
	if a.ProjectSID == "" && a.OwnerSID == "" {
		return errors.NewValidationError(errors.ErrEmptyRowKey, "row", a.RowKey().String())
	}
	if !a.End.After(a.Start) {
		return errors.NewValidationError(errors.ErrEndBeforeStart, "end", a.End.Format(time.RFC3339))
	}
	if a.Precision == model.PrecisionDay && a.DurationMinutes < 0 {
		return errors.NewValidationError(errors.ErrInvalidHours, "duration", "")
	}
	return nil
}

// Upsert inserts or replaces a record by id. The duration is recomputed from
// the instants before storing; a record whose end is not after its start is
// rejected with a validation error and not stored.
func (s *Store) Upsert(a *model.Allocation) error {
	if err := Validate(a); err != nil {
		return err
	}
	c := a.Clone()
	c.Normalize()
	if !c.Kind.Valid() {
		c.Kind = model.KindReported
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.records[c.ID]; ok {
		s.unindex(old)
	}
	s.records[c.ID] = c
	s.index(c)
	s.version++
	return nil
}

// Remove deletes the record with id, reporting whether it existed.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.records[id]
	if !ok {
		return false
	}
	s.unindex(old)
	delete(s.records, id)
	s.version++
	return true
}

// Rekey moves the record stored under oldID to newID.
func (s *Store) Rekey(oldID, newID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.records[oldID]
	if !ok || oldID == newID {
		return ok
	}
	s.unindex(old)
	delete(s.records, oldID)
	if prev, clash := s.records[newID]; clash {
		s.unindex(prev)
	}
	c := old.Clone()
	c.ID = newID
	c.Key = model.GenerateAllocationKey(newID)
	s.records[newID] = c
	s.index(c)
	s.version++
	return true
}

// Replace rebuilds the store from records. Invalid records are skipped and
// returned so the caller can log them.
func (s *Store) Replace(records []*model.Allocation) []*model.Allocation {
	var rejected []*model.Allocation
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	for _, a := range records {
		if Validate(a) != nil {
			rejected = append(rejected, a)
			continue
		}
		c := a.Clone()
		c.Normalize()
		if !c.Kind.Valid() {
			c.Kind = model.KindReported
		}
		s.records[c.ID] = c
		s.index(c)
	}
	s.version++
	return rejected
}

// Get returns a copy of the record with id.
func (s *Store) Get(id string) (*model.Allocation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.records[id]
	return a.Clone(), ok
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Version increases on every mutation.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Query returns copies of the records whose lane matches key (unbound sides
// match anything) and whose [start, end) intersects r (a zero range matches
// everything). Order is unspecified.
func (s *Store) Query(key model.RowKey, r model.DateRange) []*model.Allocation {
	var out []*model.Allocation
	s.Each(key, r, func(a *model.Allocation) {
		out = append(out, a.Clone())
	})
	return out
}

// Each calls fn for every record Query would return without copying. fn must
// not retain or modify the record and must not call back into the store.
func (s *Store) Each(key model.RowKey, r model.DateRange, fn func(*model.Allocation)) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	visit := func(a *model.Allocation) {
		if key.Matches(a.ProjectSID, a.OwnerSID) && r.Intersects(a.Start, a.End) {
			fn(a)
		}
	}

	if ids, ok := s.candidates(key, r); ok {
		for id := range ids {
			visit(s.records[id])
		}
		return
	}
	for _, a := range s.records {
		visit(a)
	}
}

// candidates picks the narrowest index for the filter.
func (s *Store) candidates(key model.RowKey, r model.DateRange) (idSet, bool) {
	switch {
	case key.IsFull():
		return s.byRow[key], true
	case key.Project != "":
		return s.byProject[key.Project], true
	case key.Owner != "":
		return s.byOwner[key.Owner], true
	}
	if r.Start.IsZero() || r.End.IsZero() || !r.End.After(r.Start) {
		return nil, false
	}
	days := model.CoveredDays(r.Start, r.End)
	if days > maxIndexedDays {
		return nil, false
	}
	out := make(idSet)
	for t := r.Start; t.Before(r.End); t = t.AddDate(0, 0, 1) {
		for id := range s.byDay[dayOf(t)] {
			out[id] = struct{}{}
		}
	}
	// A range starting mid-day must still see that day's late records.
	for id := range s.byDay[dayOf(r.End.Add(-time.Nanosecond))] {
		out[id] = struct{}{}
	}
	return out, true
}

func (s *Store) index(a *model.Allocation) {
	add(s.byRow, a.RowKey(), a.ID)
	if a.ProjectSID != "" {
		add(s.byProject, a.ProjectSID, a.ID)
	}
	if a.OwnerSID != "" {
		add(s.byOwner, a.OwnerSID, a.ID)
	}
	forEachDay(a, func(d day) { add(s.byDay, d, a.ID) })
}

func (s *Store) unindex(a *model.Allocation) {
	del(s.byRow, a.RowKey(), a.ID)
	del(s.byProject, a.ProjectSID, a.ID)
	del(s.byOwner, a.OwnerSID, a.ID)
	forEachDay(a, func(d day) { del(s.byDay, d, a.ID) })
}

func forEachDay(a *model.Allocation, fn func(day)) {
	last := dayOf(a.End.Add(-time.Nanosecond))
	t := model.Midnight(a.Start.UTC())
	for {
		d := dayOf(t)
		fn(d)
		if d == last || t.After(a.End) {
			return
		}
		t = t.AddDate(0, 0, 1)
	}
}

func add[K comparable](m map[K]idSet, k K, id string) {
	set, ok := m[k]
	if !ok {
		set = make(idSet)
		m[k] = set
	}
	set[id] = struct{}{}
}

func del[K comparable](m map[K]idSet, k K, id string) {
	set, ok := m[k]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(m, k)
	}
}

// SortByStart orders records by start, then id.
func SortByStart(as []*model.Allocation) {
	sort.Slice(as, func(i, j int) bool {
		if !as[i].Start.Equal(as[j].Start) {
			return as[i].Start.Before(as[j].Start)
		}
		return as[i].ID < as[j].ID
	})
}
