package calendar

import (
	"github.com/manav03panchal/timegrid/internal/drag"
	"github.com/manav03panchal/timegrid/internal/model"
)

// HitTest resolves a canvas position (day column, row from midnight) to a drag
// target on the view's slot axis. The block drawn last wins. Blocks of three
// rows or more have a handle on each edge; two-row blocks only at the bottom.
func (v View) HitTest(column, row int, lane model.RowKey) drag.Target {
	axis := v.Scale.Axis(v.Window)
	cell := axis.Cell(column, row/v.Scale.RowsPerSlot)
	t := drag.Target{Kind: drag.TargetEmpty, Row: lane, Cell: cell}
	if column < 0 || column >= v.Window.Span() || row < 0 || row >= v.Scale.Rows() {
		t.Cell = -1
		return t
	}
	for i := len(v.Blocks) - 1; i >= 0; i-- {
		b := v.Blocks[i]
		if b.Column != column || row < b.Top || row > b.Bottom() {
			continue
		}
		t.Record = b.Record
		t.Row = b.Record.RowKey()
		t.Kind = drag.TargetBody
		switch {
		case b.Height >= 2 && row == b.Bottom() && !b.ContinuesAfter:
			t.Kind, t.Edge = drag.TargetHandle, drag.EdgeEnd
		case b.Height >= 3 && row == b.Top && !b.ContinuesBefore:
			t.Kind, t.Edge = drag.TargetHandle, drag.EdgeStart
		}
		return t
	}
	return t
}

// AllDayAt returns the all-day block covering column, topmost first.
func (v View) AllDayAt(column int) (AllDayBlock, bool) {
	for i := len(v.AllDay) - 1; i >= 0; i-- {
		b := v.AllDay[i]
		if column >= b.FromCol && column <= b.ToCol {
			return b, true
		}
	}
	return AllDayBlock{}, false
}

// BlocksIn returns the blocks of one column in draw order.
func (v View) BlocksIn(column int) []Block {
	var out []Block
	for _, b := range v.Blocks {
		if b.Column == column {
			out = append(out, b)
		}
	}
	return out
}
