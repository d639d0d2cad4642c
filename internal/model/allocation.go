package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Kind distinguishes future intended work from time already worked.
type Kind string

const (
	KindPlanned  Kind = "planned"
	KindReported Kind = "reported"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindPlanned || k == KindReported
}

// KindAt returns the kind a record starting at start must have when written at now.
func KindAt(start, now time.Time) Kind {
	if start.After(now) {
		return KindPlanned
	}
	return KindReported
}

// Precision says how Start, End and DurationMinutes relate.
//
// A minute-precision allocation is an exact time block: its duration is always
// End-Start. A day-precision allocation covers whole dates (Start and End are
// midnights) and its duration is the effort allotted across those days.
type Precision string

const (
	PrecisionMinute Precision = "minute"
	PrecisionDay    Precision = "day"
)

// TempIDPrefix marks ids assigned locally before the backend confirms a create.
const TempIDPrefix = "tmp-"

// Allocation is a scheduled or reported block of time for one user on one project.
type Allocation struct {
	Key             string    `json:"key"`
	ID              string    `json:"id"`
	OwnerSID        string    `json:"owner_sid,omitempty"`
	ProjectSID      string    `json:"project_sid"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"duration_minutes"`
	Kind            Kind      `json:"kind"`
	Precision       Precision `json:"precision"`
	Label           string    `json:"label,omitempty"`
}

// SetKey sets the database key for this allocation.
func (a *Allocation) SetKey(key string) {
	a.Key = key
	if a.ID == "" {
		a.ID = IDFromAllocationKey(key)
	}
}

// GetKey returns the database key for this allocation.
func (a *Allocation) GetKey() string {
	return a.Key
}

// GenerateAllocationKey generates a database key for an allocation id.
func GenerateAllocationKey(id string) string {
	return fmt.Sprintf("%s:%s", PrefixAllocation, id)
}

// IDFromAllocationKey strips the key prefix.
func IDFromAllocationKey(key string) string {
	return strings.TrimPrefix(key, PrefixAllocation+":")
}

// RowKey returns the full lane key of the allocation.
func (a *Allocation) RowKey() RowKey {
	return RowKey{Project: a.ProjectSID, Owner: a.OwnerSID}
}

// Span returns the half-open interval covered by the allocation.
func (a *Allocation) Span() DateRange {
	return DateRange{Start: a.Start, End: a.End}
}

// Duration returns the allotted duration.
func (a *Allocation) Duration() time.Duration {
	return time.Duration(a.DurationMinutes) * time.Minute
}

// IsTemporary reports whether the id was assigned locally.
func (a *Allocation) IsTemporary() bool {
	return strings.HasPrefix(a.ID, TempIDPrefix)
}

// IsFuture reports whether the allocation starts after now.
func (a *Allocation) IsFuture(now time.Time) bool {
	return a.Start.After(now)
}

// Clone returns a copy that shares nothing with a.
func (a *Allocation) Clone() *Allocation {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// SpanMinutes returns round((end-start)/1m).
func SpanMinutes(start, end time.Time) int {
	return int(math.Round(end.Sub(start).Minutes()))
}

// CoveredDays returns the number of calendar dates touched by [start, end).
func CoveredDays(start, end time.Time) int {
	if !end.After(start) {
		return 0
	}
	first := civil(start)
	last := civil(end.Add(-time.Nanosecond))
	return int(last.Sub(first).Hours()/24) + 1
}

func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Normalize brings DurationMinutes back in line with the instants.
// Minute precision recomputes it; day precision clamps the effort to the span.
// It reports false when End is not after Start.
func (a *Allocation) Normalize() bool {
	if !a.End.After(a.Start) {
		return false
	}
	if a.Precision == "" {
		a.Precision = PrecisionMinute
	}
	span := SpanMinutes(a.Start, a.End)
	switch a.Precision {
	case PrecisionDay:
		if a.DurationMinutes <= 0 || a.DurationMinutes > span {
			a.DurationMinutes = span
		}
	default:
		a.DurationMinutes = span
	}
	return true
}

// Retimed returns a copy moved to [start, end). Minute precision recomputes the
// duration; day precision scales the effort so the per-day rate is kept.
func (a *Allocation) Retimed(start, end time.Time) *Allocation {
	c := a.Clone()
	oldDays := CoveredDays(a.Start, a.End)
	c.Start, c.End = start, end
	if c.Precision == PrecisionDay && oldDays > 0 {
		newDays := CoveredDays(start, end)
		c.DurationMinutes = int(math.Round(float64(a.DurationMinutes) * float64(newDays) / float64(oldDays)))
	}
	c.Normalize()
	return c
}

// NewAllocation creates a minute-precision allocation.
func NewAllocation(projectSID, ownerSID string, start, end time.Time, kind Kind, label string) *Allocation {
	a := &Allocation{
		ProjectSID: projectSID,
		OwnerSID:   ownerSID,
		Start:      start,
		End:        end,
		Kind:       kind,
		Precision:  PrecisionMinute,
		Label:      label,
	}
	a.Normalize()
	return a
}

// NewDayAllocation creates a day-precision allocation of minutes effort over [start, end).
func NewDayAllocation(projectSID, ownerSID string, start, end time.Time, minutes int, kind Kind, label string) *Allocation {
	a := &Allocation{
		ProjectSID:      projectSID,
		OwnerSID:        ownerSID,
		Start:           start,
		End:             end,
		DurationMinutes: minutes,
		Kind:            kind,
		Precision:       PrecisionDay,
		Label:           label,
	}
	a.Normalize()
	return a
}

// AllocationPatch carries the fields of a partial update. Nil fields are unchanged.
type AllocationPatch struct {
	Start           *time.Time `json:"start,omitempty"`
	End             *time.Time `json:"end,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	Kind            *Kind      `json:"kind,omitempty"`
	Label           *string    `json:"label,omitempty"`
	ProjectSID      *string    `json:"project_sid,omitempty"`
	OwnerSID        *string    `json:"owner_sid,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p AllocationPatch) IsEmpty() bool {
	return p.Start == nil && p.End == nil && p.DurationMinutes == nil &&
		p.Kind == nil && p.Label == nil && p.ProjectSID == nil && p.OwnerSID == nil
}

// Apply returns a normalized copy of a with the patch applied.
func (p AllocationPatch) Apply(a *Allocation) *Allocation {
	c := a.Clone()
	if p.Start != nil {
		c.Start = *p.Start
	}
	if p.End != nil {
		c.End = *p.End
	}
	if p.DurationMinutes != nil {
		c.DurationMinutes = *p.DurationMinutes
	}
	if p.Kind != nil {
		c.Kind = *p.Kind
	}
	if p.Label != nil {
		c.Label = *p.Label
	}
	if p.ProjectSID != nil {
		c.ProjectSID = *p.ProjectSID
	}
	if p.OwnerSID != nil {
		c.OwnerSID = *p.OwnerSID
	}
	c.Normalize()
	return c
}

// Diff returns the patch that turns from into to.
func Diff(from, to *Allocation) AllocationPatch {
	var p AllocationPatch
	if !from.Start.Equal(to.Start) {
		p.Start = &to.Start
	}
	if !from.End.Equal(to.End) {
		p.End = &to.End
	}
	if from.DurationMinutes != to.DurationMinutes {
		p.DurationMinutes = &to.DurationMinutes
	}
	if from.Kind != to.Kind {
		p.Kind = &to.Kind
	}
	if from.Label != to.Label {
		p.Label = &to.Label
	}
	if from.ProjectSID != to.ProjectSID {
		p.ProjectSID = &to.ProjectSID
	}
	if from.OwnerSID != to.OwnerSID {
		p.OwnerSID = &to.OwnerSID
	}
	return p
}
