package planner

import (
	"context"
	"time"

	"github.com/manav03panchal/timegrid/internal/allocation"
	"github.com/manav03panchal/timegrid/internal/drag"
	"github.com/manav03panchal/timegrid/internal/logging"
	"github.com/manav03panchal/timegrid/internal/model"
	"github.com/manav03panchal/timegrid/internal/timeline"
)

// Zone is the part of a cell under the pointer. Handles live on the outer
// zones of a record's first and last cells.
type Zone int

const (
	ZoneBody Zone = iota
	ZoneLeft
	ZoneRight
)

// Bar is one record drawn in a row.
type Bar struct {
	Record   *model.Allocation
	FromCell int
	ToCell   int
	Future   bool
}

// Bars returns the records of the row at index clipped to the window, in draw
// order (later bars are on top).
func (p *Planner) Bars(index int) []Bar {
	rows := p.Rows()
	if index < 0 || index >= len(rows) || !rows[index].Editable() {
		return nil
	}
	recs := p.rec.Store().Query(rows[index].Key, p.window.Range())
	allocation.SortByStart(recs)
	now := p.clock.Now()
	out := make([]Bar, 0, len(recs))
	for _, r := range recs {
		from := timeline.DayOffset(p.window.Anchor, r.Start)
		to := timeline.DayOffset(p.window.Anchor, r.End.Add(-time.Nanosecond))
		out = append(out, Bar{
			Record:   r,
			FromCell: max(from, 0),
			ToCell:   min(to, p.window.Span()-1),
			Future:   r.Start.After(now),
		})
	}
	return out
}

// HitTest resolves a grid position to a drag target.
func (p *Planner) HitTest(index, cell int, zone Zone) drag.Target {
	rows := p.Rows()
	t := drag.Target{Kind: drag.TargetEmpty, Cell: cell}
	if index < 0 || index >= len(rows) || !rows[index].Editable() {
		return t
	}
	t.Row = rows[index].Key
	bars := p.Bars(index)
	for i := len(bars) - 1; i >= 0; i-- {
		b := bars[i]
		if cell < b.FromCell || cell > b.ToCell {
			continue
		}
		t.Record = b.Record
		t.Kind = drag.TargetBody
		first := timeline.DayOffset(p.window.Anchor, b.Record.Start)
		last := timeline.DayOffset(p.window.Anchor, b.Record.End.Add(-time.Nanosecond))
		switch {
		case zone == ZoneRight && cell == last:
			t.Kind, t.Edge = drag.TargetHandle, drag.EdgeEnd
		case zone == ZoneLeft && cell == first:
			t.Kind, t.Edge = drag.TargetHandle, drag.EdgeStart
		}
		return t
	}
	return t
}

// PointerDown starts a gesture at a grid position.
func (p *Planner) PointerDown(index, cell int, zone Zone) bool {
	if p.pending != nil {
		return false
	}
	return p.machine.PointerDown(p.HitTest(index, cell, zone))
}

// PointerEnter extends the gesture to cell.
func (p *Planner) PointerEnter(cell int) bool {
	return p.machine.PointerEnter(cell)
}

// PointerCancel abandons the gesture.
func (p *Planner) PointerCancel() {
	p.machine.Cancel()
}

// Preview returns the live overlay.
func (p *Planner) Preview() (drag.Preview, bool) {
	return p.machine.Preview()
}

// Gesture returns the drag state.
func (p *Planner) Gesture() drag.State {
	return p.machine.State()
}

// PointerUp ends the gesture. Creates wait for Confirm; moves and resizes
// are committed at once.
func (p *Planner) PointerUp(ctx context.Context) (Outcome, error) {
	switch req := p.machine.PointerUp().(type) {
	case drag.CreateRequest:
		if p.cfg.DefaultHours > 0 {
			req.DefaultDurationHours = p.cfg.DefaultHours
		}
		p.pending = &req
		return Outcome{Kind: OutcomeNeedsHours, Create: &req}, nil
	case drag.SelectRequest:
		p.selected = req.ID
		return Outcome{Kind: OutcomeSelected, Selected: req.ID}, nil
	case drag.UpdateRequest:
		t, err := p.rec.Commit(ctx, req)
		if err != nil {
			logging.FromContext(ctx).Warn("gesture rejected", logging.KeyAllocID, req.ID, logging.KeyError, err.Error())
			return Outcome{}, err
		}
		p.dirty = true
		return Outcome{Kind: OutcomeCommitted, Ticket: t}, nil
	default:
		return Outcome{}, nil
	}
}
