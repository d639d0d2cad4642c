package timeline

import (
	"time"

	"github.com/manav03panchal/timegrid/internal/model"
)

// Axis is a linear sequence of equal cells laid over a window. The drag state
// machine works on cell indices only; the axis decides what a cell means.
type Axis interface {
	// Len is the number of visible cells.
	Len() int
	// Contains reports whether index is visible.
	Contains(index int) bool
	// CellStart returns the instant cell index begins at. Total for any index.
	CellStart(index int) time.Time
	// Index returns the cell containing t, which may lie outside [0, Len).
	Index(t time.Time) int
	// Shift moves t by cells whole cells, keeping its offset within the cell.
	Shift(t time.Time, cells int) time.Time
	// UnitMinutes is the nominal cell length.
	UnitMinutes() int
}

// DayAxis has one cell per date of the window.
type DayAxis struct {
	Window model.GridWindow
}

// NewDayAxis returns the planning-grid axis for w.
func NewDayAxis(w model.GridWindow) DayAxis {
	return DayAxis{Window: w}
}

func (a DayAxis) Len() int { return a.Window.Span() }

func (a DayAxis) Contains(index int) bool { return index >= 0 && index < a.Len() }

func (a DayAxis) CellStart(index int) time.Time { return CellIndexToDate(a.Window, index) }

func (a DayAxis) Index(t time.Time) int { return DayOffset(a.Window.Anchor, t) }

func (a DayAxis) Shift(t time.Time, cells int) time.Time { return t.AddDate(0, 0, cells) }

func (a DayAxis) UnitMinutes() int { return MinutesPerDay }

// SlotAxis has SlotsPerDay cells per date, numbered day-major across the window.
type SlotAxis struct {
	Window      model.GridWindow
	SlotMinutes int
}

// NewSlotAxis returns the calendar axis for w. A non-positive or non-dividing
// slot size falls back to DefaultSlotMinutes.
func NewSlotAxis(w model.GridWindow, slotMinutes int) SlotAxis {
	if slotMinutes <= 0 || MinutesPerDay%slotMinutes != 0 {
		slotMinutes = DefaultSlotMinutes
	}
	return SlotAxis{Window: w, SlotMinutes: slotMinutes}
}

// SlotsPerDay returns the number of slots in one day column.
func (a SlotAxis) SlotsPerDay() int { return MinutesPerDay / a.SlotMinutes }

func (a SlotAxis) Len() int { return a.Window.Span() * a.SlotsPerDay() }

func (a SlotAxis) Contains(index int) bool { return index >= 0 && index < a.Len() }

// Cell returns the linear index of slot in day column day.
func (a SlotAxis) Cell(day, slot int) int { return day*a.SlotsPerDay() + slot }

// Split returns the day column and slot of a linear index.
func (a SlotAxis) Split(index int) (day, slot int) {
	spd := a.SlotsPerDay()
	return floorDiv(index, spd), floorMod(index, spd)
}

func (a SlotAxis) CellStart(index int) time.Time {
	day, slot := a.Split(index)
	return PixelToInstant(CellIndexToDate(a.Window, day), slot*a.SlotMinutes, a.SlotMinutes)
}

func (a SlotAxis) Index(t time.Time) int {
	day := DayOffset(a.Window.Anchor, t)
	mins := InstantToPixel(CellIndexToDate(a.Window, day), t)
	return a.Cell(day, floorDiv(mins, a.SlotMinutes))
}

// Shift moves t along the wall clock of the window's location.
func (a SlotAxis) Shift(t time.Time, cells int) time.Time {
	loc := a.Window.Anchor.Location()
	return fromWall(wall(t, loc).Add(time.Duration(cells*a.SlotMinutes)*time.Minute), loc)
}

func (a SlotAxis) UnitMinutes() int { return a.SlotMinutes }
