// Package timeline converts between grid coordinates and calendar instants.
//
// Two granularities exist: whole-day cells of the planning grid and
// fixed-minute slots of the week/day calendar. Every function here is total and
// side-effect free.
package timeline

import (
	"time"

	"github.com/manav03panchal/timegrid/internal/model"
)

const (
	// MinutesPerDay is 24 hours * 60 minutes.
	MinutesPerDay = 1440
	// DefaultSlotMinutes is the calendar slot size.
	DefaultSlotMinutes = 15
)

// CellIndexToDate returns the date of cell index in w. It is the exact inverse
// of DateToCellIndex for index in [0, span).
func CellIndexToDate(w model.GridWindow, index int) time.Time {
	return w.Anchor.AddDate(0, 0, index)
}

// DateToCellIndex returns the cell holding date, or false when the date falls
// outside the window. Callers treat false as "not visible", not as an error.
func DateToCellIndex(w model.GridWindow, date time.Time) (int, bool) {
	i := DayOffset(w.Anchor, date)
	if i < 0 || i >= w.Span() {
		return i, false
	}
	return i, true
}

// DayOffset counts calendar days from anchor's date to t's date, both read in
// anchor's location. Unlike Sub/24h it is not fooled by DST transitions.
func DayOffset(anchor, t time.Time) int {
	loc := anchor.Location()
	ay, am, ad := anchor.Date()
	ty, tm, td := t.In(loc).Date()
	a := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a) / (24 * time.Hour))
}

// PixelToInstant snaps an offset in minutes from dayAnchor to the nearest
// multiple of slotMinutes. Ties round down so creation is deterministic.
// A non-positive slot size is treated as one minute. Offsets count wall-clock
// minutes in dayAnchor's location, so on DST change days a row keeps its label.
func PixelToInstant(dayAnchor time.Time, pixelOffsetMinutes, slotMinutes int) time.Time {
	loc := dayAnchor.Location()
	w := wall(dayAnchor, loc).Add(time.Duration(SnapMinutes(pixelOffsetMinutes, slotMinutes)) * time.Minute)
	return fromWall(w, loc)
}

// InstantToPixel returns the wall-clock offset of instant from dayAnchor in
// whole minutes, rounding toward earlier instants. It inverts PixelToInstant
// for snapped offsets that exist on the clock.
func InstantToPixel(dayAnchor, instant time.Time) int {
	loc := dayAnchor.Location()
	d := wall(instant, loc).Sub(wall(dayAnchor, loc))
	m := int(d / time.Minute)
	if d < 0 && d%time.Minute != 0 {
		m--
	}
	return m
}

// wall reads t's clock in loc as if it were UTC. Differences between wall
// values count clock minutes, not elapsed ones.
func wall(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func fromWall(w time.Time, loc *time.Location) time.Time {
	return time.Date(w.Year(), w.Month(), w.Day(), w.Hour(), w.Minute(), w.Second(), w.Nanosecond(), loc)
}

// SnapMinutes rounds offset to the nearest multiple of slot, ties down.
func SnapMinutes(offset, slot int) int {
	if slot <= 0 {
		slot = 1
	}
	q := floorDiv(offset, slot)
	r := offset - q*slot
	if 2*r > slot {
		q++
	}
	return q * slot
}

// MinutesIntoDay returns t's wall-clock minutes since its midnight.
func MinutesIntoDay(t time.Time) int {
	return InstantToPixel(model.Midnight(t), t)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}
