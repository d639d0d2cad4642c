// Package aggregate computes lane totals and the hierarchical row list of the
// planning grid from the allocation store.
package aggregate

import (
	"time"

	"github.com/manav03panchal/timegrid/internal/allocation"
	"github.com/manav03panchal/timegrid/internal/model"
	"github.com/manav03panchal/timegrid/internal/timeline"
)

// Engine reads the store; it never writes to it.
type Engine struct {
	store *allocation.Store
}

// New returns an engine over store.
func New(store *allocation.Store) *Engine {
	return &Engine{store: store}
}

// TotalMinutes sums DurationMinutes over the records the store returns for
// (key, r). Cost is proportional to the matching records.
func (e *Engine) TotalMinutes(key model.RowKey, r model.DateRange) int {
	total := 0
	e.store.Each(key, r, func(a *model.Allocation) {
		total += a.DurationMinutes
	})
	return total
}

// CellMinutes returns the minutes of lane key falling on each day of w.
// Day-precision effort is spread evenly over the covered days, remainder to
// the earliest days; minute-precision records count their actual overlap.
func (e *Engine) CellMinutes(key model.RowKey, w model.GridWindow) []int {
	cells := make([]int, w.Span())
	e.store.Each(key, w.Range(), func(a *model.Allocation) {
		spreadOver(cells, w, a)
	})
	return cells
}

func spreadOver(cells []int, w model.GridWindow, a *model.Allocation) {
	days := model.CoveredDays(a.Start, a.End)
	if days == 0 {
		return
	}
	first := model.Midnight(a.Start)
	if a.Precision == model.PrecisionDay {
		per, rem := a.DurationMinutes/days, a.DurationMinutes%days
		for k := 0; k < days; k++ {
			idx, ok := timeline.DateToCellIndex(w, first.AddDate(0, 0, k))
			if !ok {
				continue
			}
			cells[idx] += per
			if k < rem {
				cells[idx]++
			}
		}
		return
	}
	for k := 0; k < days; k++ {
		dayStart := first.AddDate(0, 0, k)
		idx, ok := timeline.DateToCellIndex(w, dayStart)
		if !ok {
			continue
		}
		from, to := maxTime(a.Start, dayStart), minTime(a.End, dayStart.AddDate(0, 0, 1))
		cells[idx] += int(to.Sub(from) / time.Minute)
	}
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
