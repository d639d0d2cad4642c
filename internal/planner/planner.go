// Package planner is the view-model of the planning grid: it owns the visible
// window, the row tree, the drag machine and the hours confirmation step, and
// routes finished gestures to the reconciler.
package planner

import (
	"context"
	"time"

	"github.com/manav03panchal/timegrid/internal/aggregate"
	"github.com/manav03panchal/timegrid/internal/allocation"
	"github.com/manav03panchal/timegrid/internal/clock"
	"github.com/manav03panchal/timegrid/internal/drag"
	"github.com/manav03panchal/timegrid/internal/errors"
	"github.com/manav03panchal/timegrid/internal/logging"
	"github.com/manav03panchal/timegrid/internal/model"
	"github.com/manav03panchal/timegrid/internal/reconcile"
	"github.com/manav03panchal/timegrid/internal/timeline"
)

// Config selects how the grid is shown.
type Config struct {
	GroupBy        aggregate.GroupBy
	Mode           model.ViewMode
	WeekStart      time.Weekday
	DefaultHours   int
	ShowEmpty      bool
	IncludeMembers bool
}

// DefaultConfig is a three-week grid grouped by project, starting Monday.
func DefaultConfig() Config {
	return Config{
		GroupBy:      aggregate.GroupByProject,
		Mode:         model.ViewGrid,
		WeekStart:    time.Monday,
		DefaultHours: drag.DefaultDurationHours,
		ShowEmpty:    true,
	}
}

// OutcomeKind says what a pointer-up produced.
type OutcomeKind int

const (
	OutcomeNone OutcomeKind = iota
	// OutcomeNeedsHours means a create is waiting for Confirm or Discard.
	OutcomeNeedsHours
	OutcomeCommitted
	OutcomeSelected
)

// Outcome is the result of PointerUp.
type Outcome struct {
	Kind     OutcomeKind
	Create   *drag.CreateRequest
	Ticket   *reconcile.Ticket
	Selected string
}

// Planner is driven from a single UI goroutine.
type Planner struct {
	cfg     Config
	dir     aggregate.Directory
	snap    *aggregate.StaticDirectory
	rec     *reconcile.Reconciler
	engine  *aggregate.Engine
	clock   clock.Clock
	machine *drag.Machine

	window   model.GridWindow
	expanded aggregate.Expanded

	nodes   []*aggregate.Row
	rows    []*aggregate.Row
	version uint64
	dirty   bool

	pending  *drag.CreateRequest
	selected string
}

// New returns a planner over rec's store. Call Open before use.
func New(cfg Config, dir aggregate.Directory, rec *reconcile.Reconciler, clk clock.Clock) *Planner {
	if cfg.Mode == "" {
		cfg.Mode = model.ViewGrid
	}
	if cfg.GroupBy == "" {
		cfg.GroupBy = aggregate.GroupByProject
	}
	if clk == nil {
		clk = clock.System{}
	}
	window := model.NewWeekWindow(clk.Now(), cfg.WeekStart, cfg.Mode)
	return &Planner{
		cfg:      cfg,
		dir:      dir,
		rec:      rec,
		engine:   aggregate.New(rec.Store()),
		clock:    clk,
		machine:  drag.New(timeline.NewDayAxis(window)),
		window:   window,
		expanded: aggregate.Expanded{},
	}
}

// Open snapshots the directory, loads the current window and expands groups.
func (p *Planner) Open(ctx context.Context) error {
	if err := p.Refresh(ctx); err != nil {
		return err
	}
	if err := p.rec.Load(ctx, p.window.Range()); err != nil {
		return err
	}
	p.expanded.ExpandLevel(p.tree(), aggregate.LevelGroup)
	p.dirty = true
	return nil
}

// Refresh re-reads the directory.
func (p *Planner) Refresh(ctx context.Context) error {
	snap, err := aggregate.Snapshot(ctx, p.dir)
	if err != nil {
		return err
	}
	p.snap = snap
	p.dirty = true
	return nil
}

// Window returns the visible window.
func (p *Planner) Window() model.GridWindow { return p.window }

// Config returns the planner configuration.
func (p *Planner) Config() Config { return p.cfg }

// Directory returns the directory snapshot.
func (p *Planner) Directory() *aggregate.StaticDirectory { return p.snap }

// Store returns the allocation store.
func (p *Planner) Store() *allocation.Store { return p.rec.Store() }

// Engine returns the aggregation engine.
func (p *Planner) Engine() *aggregate.Engine { return p.engine }

// Rows returns the visible rows in display order.
func (p *Planner) Rows() []*aggregate.Row {
	p.tree()
	return p.rows
}

func (p *Planner) tree() []*aggregate.Row {
	v := p.rec.Store().Version()
	if !p.dirty && v == p.version && p.nodes != nil {
		return p.nodes
	}
	snap := p.snap
	if snap == nil {
		snap = &aggregate.StaticDirectory{}
	}
	// A static directory never fails.
	tree, _ := p.engine.BuildRows(context.Background(), snap, p.expanded, aggregate.Options{
		GroupBy:        p.cfg.GroupBy,
		Window:         p.window,
		ShowEmpty:      p.cfg.ShowEmpty,
		IncludeMembers: p.cfg.IncludeMembers,
	})
	p.nodes, p.rows = tree, aggregate.Flatten(tree)
	p.version, p.dirty = v, false
	return p.nodes
}

// Toggle expands or collapses the row at index.
func (p *Planner) Toggle(index int) bool {
	rows := p.Rows()
	if index < 0 || index >= len(rows) || !rows[index].Expandable {
		return false
	}
	p.expanded.Toggle(rows[index].ID)
	p.dirty = true
	return true
}

// SetGroupBy switches the grouping axis, keeping expansion state per node.
func (p *Planner) SetGroupBy(by aggregate.GroupBy) {
	if by == p.cfg.GroupBy {
		return
	}
	p.cfg.GroupBy = by
	p.dirty = true
	p.expanded.ExpandLevel(p.tree(), aggregate.LevelGroup)
	p.dirty = true
}

// Shift moves the window by n spans and reloads it.
func (p *Planner) Shift(ctx context.Context, n int) error {
	return p.setWindow(ctx, p.window.Shift(n*p.window.Span()))
}

// Today moves the window to the week containing now.
func (p *Planner) Today(ctx context.Context) error {
	return p.setWindow(ctx, model.NewWeekWindow(p.clock.Now(), p.cfg.WeekStart, p.cfg.Mode))
}

// GoTo anchors the window on the week containing t.
func (p *Planner) GoTo(ctx context.Context, t time.Time) error {
	return p.setWindow(ctx, model.NewWeekWindow(t, p.cfg.WeekStart, p.cfg.Mode))
}

func (p *Planner) setWindow(ctx context.Context, w model.GridWindow) error {
	if err := p.rec.Load(ctx, w.Range()); err != nil {
		return err
	}
	logging.FromContext(ctx).Debug("window moved", logging.KeyWindow, w.String())
	p.window = w
	p.machine.SetAxis(timeline.NewDayAxis(w))
	p.pending = nil
	p.dirty = true
	return nil
}

// CellMinutes returns the per-day minutes of the row at index.
func (p *Planner) CellMinutes(index int) []int {
	rows := p.Rows()
	if index < 0 || index >= len(rows) || rows[index].Key.IsZero() {
		return make([]int, p.window.Span())
	}
	return p.engine.CellMinutes(rows[index].Key, p.window)
}

// Pending returns the create waiting for hours, if any.
func (p *Planner) Pending() (drag.CreateRequest, bool) {
	if p.pending == nil {
		return drag.CreateRequest{}, false
	}
	return *p.pending, true
}

// Selected returns the id of the record picked by the last click.
func (p *Planner) Selected() string { return p.selected }

// ClearSelection forgets the selected record.
func (p *Planner) ClearSelection() { p.selected = "" }

// Confirm commits the pending create with hours of effort. A validation error
// keeps the request pending so the user can correct the input.
func (p *Planner) Confirm(ctx context.Context, hours float64, label string) (*reconcile.Ticket, error) {
	if p.pending == nil {
		return nil, errors.NewUserError("nothing to confirm", "Drag across empty cells to create an allocation")
	}
	req := *p.pending
	req.Hours = hours
	req.Label = label
	t, err := p.rec.Commit(ctx, req)
	if err != nil {
		return nil, err
	}
	p.pending = nil
	p.dirty = true
	return t, nil
}

// Discard drops the pending create.
func (p *Planner) Discard() {
	p.pending = nil
}

// Delete removes a record through the reconciler.
func (p *Planner) Delete(ctx context.Context, id string) (*reconcile.Ticket, error) {
	if id == p.selected {
		p.selected = ""
	}
	return p.rec.Commit(ctx, drag.DeleteRequest{ID: id})
}

// Edit changes the effort and label of a record. Hours of zero keep the
// current effort; a minute-precision record is lengthened or shortened.
func (p *Planner) Edit(ctx context.Context, id string, hours float64, label string) (*reconcile.Ticket, error) {
	cur, ok := p.rec.Store().Get(id)
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "edit %s", id)
	}
	req, err := drag.Edit(cur, hours, label)
	if err != nil {
		return nil, err
	}
	return p.rec.Commit(ctx, req)
}
