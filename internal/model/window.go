package model

import (
	"fmt"
	"time"
)

// ViewMode selects the fixed span of a GridWindow.
type ViewMode string

const (
	ViewGrid         ViewMode = "grid"
	ViewCalendarWeek ViewMode = "week"
	ViewCalendarDay  ViewMode = "day"
)

// Span returns the number of days shown by the mode.
func (m ViewMode) Span() int {
	switch m {
	case ViewCalendarDay:
		return 1
	case ViewCalendarWeek:
		return 7
	default:
		return 21
	}
}

// DateRange is the half-open interval [Start, End).
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// IsZero reports whether the range is unbounded.
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Intersects reports whether [start, end) overlaps r. A zero range intersects everything.
func (r DateRange) Intersects(start, end time.Time) bool {
	if r.IsZero() {
		return true
	}
	if !r.End.IsZero() && !start.Before(r.End) {
		return false
	}
	if !r.Start.IsZero() && !end.After(r.Start) {
		return false
	}
	return true
}

// Contains reports whether t lies in [Start, End).
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

func (r DateRange) String() string {
	return fmt.Sprintf("%s..%s", r.Start.Format(time.DateOnly), r.End.Format(time.DateOnly))
}

// GridWindow is the visible span: an anchor date plus a span fixed by the view mode.
type GridWindow struct {
	Anchor time.Time `json:"anchor"`
	Mode   ViewMode  `json:"mode"`
}

// NewGridWindow anchors a window of mode at the midnight of anchor.
func NewGridWindow(anchor time.Time, mode ViewMode) GridWindow {
	return GridWindow{Anchor: Midnight(anchor), Mode: mode}
}

// NewWeekWindow anchors a window of mode on the start of the week containing t.
func NewWeekWindow(t time.Time, weekStart time.Weekday, mode ViewMode) GridWindow {
	return NewGridWindow(WeekStart(t, weekStart), mode)
}

// Span returns the window length in days.
func (w GridWindow) Span() int {
	return w.Mode.Span()
}

// End returns the midnight after the last day of the window.
func (w GridWindow) End() time.Time {
	return w.Anchor.AddDate(0, 0, w.Span())
}

// Range returns the window as a DateRange.
func (w GridWindow) Range() DateRange {
	return DateRange{Start: w.Anchor, End: w.End()}
}

// Shift moves the anchor by days; the span never changes.
func (w GridWindow) Shift(days int) GridWindow {
	return GridWindow{Anchor: w.Anchor.AddDate(0, 0, days), Mode: w.Mode}
}

// Next returns the following window.
func (w GridWindow) Next() GridWindow {
	return w.Shift(w.Span())
}

// Prev returns the preceding window.
func (w GridWindow) Prev() GridWindow {
	return w.Shift(-w.Span())
}

func (w GridWindow) String() string {
	return fmt.Sprintf("%s+%dd", w.Anchor.Format(time.DateOnly), w.Span())
}

// Midnight returns the start of t's day in t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WeekStart returns the midnight of the most recent weekStart on or before t.
func WeekStart(t time.Time, weekStart time.Weekday) time.Time {
	day := Midnight(t)
	offset := (int(day.Weekday()) - int(weekStart) + 7) % 7
	return day.AddDate(0, 0, -offset)
}
