// Package drag turns pointer events over a timeline into create, move, resize
// and select requests. One machine serves both the day grid and the slot
// calendar; the timeline.Axis decides the granularity.
package drag

import (
	"time"

	"github.com/manav03panchal/timegrid/internal/model"
	"github.com/manav03panchal/timegrid/internal/timeline"
)

// State is the phase of the current gesture.
type State int

const (
	Idle State = iota
	SelectingCreate
	Moving
	Resizing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case SelectingCreate:
		return "selecting"
	case Moving:
		return "moving"
	case Resizing:
		return "resizing"
	default:
		return "unknown"
	}
}

// TargetKind says what a pointer-down landed on.
type TargetKind int

const (
	TargetEmpty TargetKind = iota
	TargetBody
	TargetHandle
)

// Edge is the side of a record a resize handle belongs to.
type Edge int

const (
	EdgeEnd Edge = iota
	EdgeStart
)

// Target is the result of hit testing a pointer position.
type Target struct {
	Kind   TargetKind
	Row    model.RowKey
	Cell   int
	Record *model.Allocation
	Edge   Edge
}

// Preview is the live overlay of the gesture in progress.
type Preview struct {
	State    State
	Row      model.RowKey
	RecordID string
	Start    time.Time
	End      time.Time
	// FromCell and ToCell are the inclusive cells covered on the axis.
	FromCell int
	ToCell   int
}

type session struct {
	row     model.RowKey
	down    int
	current int
	moved   bool
	record  *model.Allocation
	edge    Edge
}

// Machine is the gesture state machine. It is not safe for concurrent use;
// pointer events arrive on the UI goroutine.
type Machine struct {
	axis        timeline.Axis
	allowCreate bool
	state       State
	s           session
}

// Option configures a Machine.
type Option func(*Machine)

// WithoutCreate disables drag-create on empty cells, as in the calendar.
func WithoutCreate() Option {
	return func(m *Machine) { m.allowCreate = false }
}

// New returns an idle machine over axis.
func New(axis timeline.Axis, opts ...Option) *Machine {
	m := &Machine{axis: axis, allowCreate: true}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current phase.
func (m *Machine) State() State { return m.state }

// Active reports whether a gesture is in progress.
func (m *Machine) Active() bool { return m.state != Idle }

// Axis returns the axis cells are resolved against.
func (m *Machine) Axis() timeline.Axis { return m.axis }

// SetAxis replaces the axis after navigation. Any gesture in progress is
// cancelled because its cells refer to the old window.
func (m *Machine) SetAxis(axis timeline.Axis) {
	m.Cancel()
	m.axis = axis
}

// PointerDown starts a gesture and reports whether one started. It is ignored
// while another gesture is active, outside the axis, and on empty cells when
// creation is disabled.
func (m *Machine) PointerDown(t Target) bool {
	if m.Active() || !m.axis.Contains(t.Cell) {
		return false
	}
	switch t.Kind {
	case TargetEmpty:
		if !m.allowCreate || t.Row.IsZero() {
			return false
		}
		m.state = SelectingCreate
	case TargetBody:
		if t.Record == nil {
			return false
		}
		m.state = Moving
	case TargetHandle:
		if t.Record == nil {
			return false
		}
		m.state = Resizing
	default:
		return false
	}
	m.s = session{row: t.Row, down: t.Cell, current: t.Cell, record: t.Record.Clone(), edge: t.Edge}
	if t.Record != nil {
		m.s.row = t.Record.RowKey()
	}
	return true
}

// PointerEnter moves the gesture to cell and reports whether the preview changed.
func (m *Machine) PointerEnter(cell int) bool {
	if !m.Active() || !m.axis.Contains(cell) || cell == m.s.current {
		return false
	}
	m.s.current = cell
	if cell != m.s.down {
		m.s.moved = true
	}
	return true
}

// PointerUp ends the gesture. It returns nil when nothing was in progress or
// when a drag came back to where it started.
func (m *Machine) PointerUp() Request {
	if !m.Active() {
		return nil
	}
	defer m.reset()

	if m.state == SelectingCreate {
		lo, hi := m.span()
		return CreateRequest{
			Row:                  m.s.row,
			Start:                m.axis.CellStart(lo),
			End:                  m.axis.CellStart(hi + 1),
			DefaultDurationHours: DefaultDurationHours,
			Precision:            m.precision(),
		}
	}
	if !m.s.moved {
		return SelectRequest{ID: m.s.record.ID}
	}
	start, end := m.retimed()
	if start.Equal(m.s.record.Start) && end.Equal(m.s.record.End) {
		return nil
	}
	return Retime(m.s.record, start, end)
}

// Cancel abandons the gesture with no output.
func (m *Machine) Cancel() {
	m.reset()
}

// Preview returns the overlay for the gesture in progress.
func (m *Machine) Preview() (Preview, bool) {
	if !m.Active() {
		return Preview{}, false
	}
	p := Preview{State: m.state, Row: m.s.row}
	if m.state == SelectingCreate {
		p.FromCell, p.ToCell = m.span()
		p.Start = m.axis.CellStart(p.FromCell)
		p.End = m.axis.CellStart(p.ToCell + 1)
		return p, true
	}
	p.RecordID = m.s.record.ID
	p.Start, p.End = m.retimed()
	p.FromCell = m.axis.Index(p.Start)
	p.ToCell = m.axis.Index(p.End.Add(-time.Nanosecond))
	return p, true
}

func (m *Machine) reset() {
	m.state = Idle
	m.s = session{}
}

func (m *Machine) span() (lo, hi int) {
	lo, hi = m.s.down, m.s.current
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo, hi
}

func (m *Machine) precision() model.Precision {
	if m.axis.UnitMinutes() >= timeline.MinutesPerDay {
		return model.PrecisionDay
	}
	return model.PrecisionMinute
}

// retimed returns the record's instants after applying the pointer delta.
// Moves keep the duration; resizes keep the opposite edge and never shrink
// below one axis unit.
func (m *Machine) retimed() (start, end time.Time) {
	rec := m.s.record
	delta := m.s.current - m.s.down
	switch m.state {
	case Moving:
		return m.axis.Shift(rec.Start, delta), m.axis.Shift(rec.End, delta)
	case Resizing:
		if m.s.edge == EdgeStart {
			start = m.axis.Shift(rec.Start, delta)
			if floor := m.axis.Shift(rec.End, -1); start.After(floor) {
				start = floor
			}
			return start, rec.End
		}
		end = m.axis.Shift(rec.End, delta)
		if floor := m.axis.Shift(rec.Start, 1); end.Before(floor) {
			end = floor
		}
		return rec.Start, end
	}
	return rec.Start, rec.End
}
