// Package calendar lays allocations out on a day or week canvas measured in
// slot rows, and maps pointer positions back to drag targets.
package calendar

import (
	"sort"
	"time"

	"github.com/manav03panchal/timegrid/internal/model"
	"github.com/manav03panchal/timegrid/internal/timeline"
)

// Scale maps minutes of the day to canvas rows.
type Scale struct {
	SlotMinutes int
	RowsPerSlot int
}

// DefaultScale is one row per 15-minute slot.
func DefaultScale() Scale {
	return Scale{SlotMinutes: timeline.DefaultSlotMinutes, RowsPerSlot: 1}
}

func (s Scale) normalized() Scale {
	if s.SlotMinutes <= 0 || timeline.MinutesPerDay%s.SlotMinutes != 0 {
		s.SlotMinutes = timeline.DefaultSlotMinutes
	}
	if s.RowsPerSlot <= 0 {
		s.RowsPerSlot = 1
	}
	return s
}

// Rows returns the height of one day column.
func (s Scale) Rows() int {
	s = s.normalized()
	return timeline.MinutesPerDay / s.SlotMinutes * s.RowsPerSlot
}

// RowOf returns the row holding minute m of the day.
func (s Scale) RowOf(m int) int {
	s = s.normalized()
	return m * s.RowsPerSlot / s.SlotMinutes
}

// MinuteOf returns the first minute of row r, snapped to the slot grid.
func (s Scale) MinuteOf(r int) int {
	s = s.normalized()
	return r / s.RowsPerSlot * s.SlotMinutes
}

// Axis returns the slot axis matching the scale for w.
func (s Scale) Axis(w model.GridWindow) timeline.SlotAxis {
	return timeline.NewSlotAxis(w, s.normalized().SlotMinutes)
}

// Block is one positioned segment of a timed allocation.
type Block struct {
	Record *model.Allocation
	Column int
	Top    int
	Height int
	// Future is true when the record starts after the render time.
	Future bool
	// ContinuesBefore and ContinuesAfter mark segments of a record spanning midnight.
	ContinuesBefore bool
	ContinuesAfter  bool
	// Overlaps counts other blocks in the column sharing time with this one.
	Overlaps int
}

// Bottom returns the last row of the block.
func (b Block) Bottom() int { return b.Top + b.Height - 1 }

// AllDayBlock is a day-precision allocation shown in the strip above the canvas.
type AllDayBlock struct {
	Record   *model.Allocation
	FromCol  int
	ToCol    int
	Future   bool
	Overlaps int
}

// View is the laid out canvas.
type View struct {
	Window model.GridWindow
	Scale  Scale
	Blocks []Block
	AllDay []AllDayBlock
}

// Layout positions records in w. Records outside the window are skipped and
// segments are clipped to it. Overlapping blocks are not separated; they are
// drawn in start order and Overlaps reports the stacking.
func Layout(w model.GridWindow, records []*model.Allocation, scale Scale, now time.Time) View {
	scale = scale.normalized()
	v := View{Window: w, Scale: scale}
	for _, rec := range records {
		if rec == nil || !w.Range().Intersects(rec.Start, rec.End) {
			continue
		}
		future := rec.Start.After(now)
		if rec.Precision == model.PrecisionDay {
			from := clampCol(timeline.DayOffset(w.Anchor, rec.Start), w)
			to := clampCol(timeline.DayOffset(w.Anchor, rec.End.Add(-time.Nanosecond)), w)
			v.AllDay = append(v.AllDay, AllDayBlock{Record: rec.Clone(), FromCol: from, ToCol: to, Future: future})
			continue
		}
		v.Blocks = append(v.Blocks, segments(w, rec, scale, future)...)
	}
	sort.SliceStable(v.Blocks, func(i, j int) bool {
		a, b := v.Blocks[i], v.Blocks[j]
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		if a.Top != b.Top {
			return a.Top < b.Top
		}
		if a.Height != b.Height {
			return a.Height > b.Height
		}
		return a.Record.ID < b.Record.ID
	})
	sort.SliceStable(v.AllDay, func(i, j int) bool {
		if v.AllDay[i].FromCol != v.AllDay[j].FromCol {
			return v.AllDay[i].FromCol < v.AllDay[j].FromCol
		}
		return v.AllDay[i].Record.ID < v.AllDay[j].Record.ID
	})
	countOverlaps(v.Blocks)
	countAllDayOverlaps(v.AllDay)
	return v
}

func segments(w model.GridWindow, rec *model.Allocation, scale Scale, future bool) []Block {
	var out []Block
	first := timeline.DayOffset(w.Anchor, rec.Start)
	last := timeline.DayOffset(w.Anchor, rec.End.Add(-time.Nanosecond))
	for col := first; col <= last; col++ {
		if col < 0 || col >= w.Span() {
			continue
		}
		dayStart := timeline.CellIndexToDate(w, col)
		from := timeline.InstantToPixel(dayStart, rec.Start)
		to := timeline.InstantToPixel(dayStart, rec.End)
		b := Block{Record: rec, Column: col, Future: future}
		if from < 0 {
			from, b.ContinuesBefore = 0, true
		}
		if to > timeline.MinutesPerDay {
			to, b.ContinuesAfter = timeline.MinutesPerDay, true
		}
		b.Top = scale.RowOf(from)
		bottom := ceilDiv(to*scale.RowsPerSlot, scale.SlotMinutes)
		b.Height = max(1, bottom-b.Top)
		out = append(out, b)
	}
	for i := range out {
		out[i].Record = rec.Clone()
	}
	return out
}

func countOverlaps(bs []Block) {
	for i := range bs {
		for j := i + 1; j < len(bs) && bs[j].Column == bs[i].Column; j++ {
			if bs[j].Top > bs[i].Bottom() {
				break
			}
			if bs[i].Record.Start.Before(bs[j].Record.End) && bs[j].Record.Start.Before(bs[i].Record.End) {
				bs[i].Overlaps++
				bs[j].Overlaps++
			}
		}
	}
}

func countAllDayOverlaps(bs []AllDayBlock) {
	for i := range bs {
		for j := i + 1; j < len(bs); j++ {
			if bs[j].FromCol <= bs[i].ToCol && bs[i].FromCol <= bs[j].ToCol {
				bs[i].Overlaps++
				bs[j].Overlaps++
			}
		}
	}
}

func clampCol(c int, w model.GridWindow) int {
	return min(max(c, 0), w.Span()-1)
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return a / b
	}
	return (a + b - 1) / b
}
