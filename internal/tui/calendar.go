package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/manav03panchal/timegrid/internal/aggregate"
	"github.com/manav03panchal/timegrid/internal/calendar"
	"github.com/manav03panchal/timegrid/internal/clock"
	"github.com/manav03panchal/timegrid/internal/drag"
	"github.com/manav03panchal/timegrid/internal/errors"
	"github.com/manav03panchal/timegrid/internal/model"
	"github.com/manav03panchal/timegrid/internal/notify"
	"github.com/manav03panchal/timegrid/internal/reconcile"
	"github.com/manav03panchal/timegrid/internal/timeline"
)

// Calendar geometry in terminal cells.
const (
	calGutterWidth = 6
	calHeaderLines = 3
	calAllDayLine  = 2
	minColumnWidth = 6
	maxColumnWidth = 48
)

// CalendarOptions configures the week or day calendar.
type CalendarOptions struct {
	Reconciler *reconcile.Reconciler
	Directory  *aggregate.StaticDirectory
	// Lane filters the records shown; drag-create is off so a partial key is fine.
	Lane      model.RowKey
	Scale     calendar.Scale
	Mode      model.ViewMode
	WeekStart time.Weekday
	Anchor    time.Time
	// DayStartHour is the first hour visible when the calendar opens.
	DayStartHour int
	Events       <-chan notify.Event
	Clock        clock.Clock
}

// CalendarModel is the bubbletea model of the calendar. Timed records are
// blocks on a slot canvas; day-precision records sit on the all-day line.
type CalendarModel struct {
	ctx     context.Context
	rec     *reconcile.Reconciler
	dir     *aggregate.StaticDirectory
	lane    model.RowKey
	scale   calendar.Scale
	clock   clock.Clock
	events  <-chan notify.Event
	machine *drag.Machine

	window   model.GridWindow
	weekDay  time.Weekday
	selected string

	keys   keyMap
	help   help.Model
	prompt prompt
	flash  flash

	width, height int
	scroll        int
}

// NewCalendarModel creates a calendar and loads its window.
func NewCalendarModel(ctx context.Context, opts CalendarOptions) (*CalendarModel, error) {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Mode != model.ViewCalendarDay {
		opts.Mode = model.ViewCalendarWeek
	}
	if opts.Directory == nil {
		opts.Directory = &aggregate.StaticDirectory{}
	}
	anchor := opts.Anchor
	if anchor.IsZero() {
		anchor = opts.Clock.Now()
	}
	window := model.NewGridWindow(anchor, opts.Mode)
	if opts.Mode == model.ViewCalendarWeek {
		window = model.NewWeekWindow(anchor, opts.WeekStart, opts.Mode)
	}

	keys := defaultKeyMap()
	keys.Toggle.SetEnabled(false)
	keys.GroupBy.SetEnabled(false)

	m := &CalendarModel{
		ctx:     ctx,
		rec:     opts.Reconciler,
		dir:     opts.Directory,
		lane:    opts.Lane,
		scale:   opts.Scale,
		clock:   opts.Clock,
		events:  opts.Events,
		machine: drag.New(opts.Scale.Axis(window), drag.WithoutCreate()),
		window:  window,
		weekDay: opts.WeekStart,
		keys:    keys,
		help:    help.New(),
		prompt:  newPrompt(),
		scroll:  opts.Scale.RowOf(opts.DayStartHour * 60),
	}
	if err := m.setWindow(window); err != nil {
		return nil, err
	}
	return m, nil
}

// Window returns the visible window.
func (m *CalendarModel) Window() model.GridWindow { return m.window }

// Selected returns the id of the selected record.
func (m *CalendarModel) Selected() string { return m.selected }

func (m *CalendarModel) setWindow(w model.GridWindow) error {
	if err := m.rec.Load(m.ctx, w.Range()); err != nil {
		return err
	}
	m.window = w
	m.machine.SetAxis(m.scale.Axis(w))
	return nil
}

// layout positions the records of the lane in the window.
func (m *CalendarModel) layout() calendar.View {
	records := m.rec.Store().Query(m.lane, m.window.Range())
	return calendar.Layout(m.window, records, m.scale, m.clock.Now())
}

// Init starts listening for reconciler events.
func (m *CalendarModel) Init() tea.Cmd {
	return listenEvents(m.events)
}

// Update handles messages and updates the model.
func (m *CalendarModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.clampScroll()
		return m, nil

	case tea.KeyMsg:
		if m.prompt.active() {
			return m, m.handlePromptKey(msg)
		}
		return m, m.handleKey(msg)

	case tea.MouseMsg:
		if m.prompt.active() {
			return m, nil
		}
		return m, m.handleMouse(msg)

	case ticketMsg:
		if msg.ticket.Op() == reconcile.OpDelete && msg.ticket.Err() == nil && msg.ticket.ID() == m.selected {
			m.selected = ""
		}
		return m, nil

	case eventMsg:
		cmd := m.flash.set(msg.Message, notify.Event(msg).Failed())
		return m, tea.Batch(cmd, listenEvents(m.events))

	case flashExpiredMsg:
		m.flash.expire(msg)
		return m, nil

	case errMsg:
		return m, m.flash.set(errorText(msg.err), true)
	}
	return m, nil
}

func (m *CalendarModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.machine.Active() {
			m.machine.Cancel()
			return nil
		}
		m.selected = ""
		return nil

	case key.Matches(msg, m.keys.Prev):
		return m.navigate(m.window.Prev())

	case key.Matches(msg, m.keys.Next):
		return m.navigate(m.window.Next())

	case key.Matches(msg, m.keys.Today):
		now := m.clock.Now()
		w := model.NewGridWindow(now, m.window.Mode)
		if m.window.Mode == model.ViewCalendarWeek {
			w = model.NewWeekWindow(now, m.weekDay, m.window.Mode)
		}
		return m.navigate(w)

	case key.Matches(msg, m.keys.Up):
		m.scrollBy(-m.scale.RowOf(60))
		return nil

	case key.Matches(msg, m.keys.Down):
		m.scrollBy(m.scale.RowOf(60))
		return nil

	case key.Matches(msg, m.keys.Edit):
		return m.openEdit()

	case key.Matches(msg, m.keys.Delete):
		return m.deleteSelected()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return nil
	}
	return nil
}

func (m *CalendarModel) navigate(w model.GridWindow) tea.Cmd {
	if err := m.setWindow(w); err != nil {
		return m.flash.set(errorText(err), true)
	}
	return nil
}

func (m *CalendarModel) handlePromptKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.prompt.close()
		return nil
	case tea.KeyEnter:
		hours, label, err := parseEntry(m.prompt.input.Value())
		if err != nil {
			return m.flash.set(errorText(err), true)
		}
		cmd := m.edit(m.prompt.target, hours, label)
		m.prompt.close()
		return cmd
	}
	return m.prompt.update(msg)
}

func (m *CalendarModel) openEdit() tea.Cmd {
	if m.selected == "" {
		return m.flash.set("Click an allocation to select it first", true)
	}
	rec, ok := m.rec.Store().Get(m.selected)
	if !ok {
		m.selected = ""
		return nil
	}
	title := "Edit " + m.recordTitle(rec) + " (hours label)"
	return m.prompt.open(promptEdit, rec.ID, title, entryValue(rec.DurationMinutes, rec.Label))
}

func (m *CalendarModel) edit(id string, hours float64, label string) tea.Cmd {
	rec, ok := m.rec.Store().Get(id)
	if !ok {
		return m.flash.set(errorText(errors.Wrapf(errors.ErrNotFound, "edit %s", id)), true)
	}
	req, err := drag.Edit(rec, hours, label)
	if err != nil {
		return m.flash.set(errorText(err), true)
	}
	return m.commit(req)
}

func (m *CalendarModel) deleteSelected() tea.Cmd {
	if m.selected == "" {
		return m.flash.set("Click an allocation to select it first", true)
	}
	return m.commit(drag.DeleteRequest{ID: m.selected})
}

func (m *CalendarModel) commit(req drag.Request) tea.Cmd {
	t, err := m.rec.Commit(m.ctx, req)
	if err != nil {
		return m.flash.set(errorText(err), true)
	}
	return waitTicket(t)
}

// =============================================================================
// Pointer input
// =============================================================================

func (m *CalendarModel) handleMouse(msg tea.MouseMsg) tea.Cmd {
	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.scrollBy(-1)
		return nil
	case msg.Button == tea.MouseButtonWheelDown:
		m.scrollBy(1)
		return nil

	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		col, ok := m.columnAt(msg.X)
		if !ok {
			return nil
		}
		view := m.layout()
		if msg.Y == calAllDayLine {
			if b, ok := view.AllDayAt(col); ok {
				m.selected = b.Record.ID
			}
			return nil
		}
		row, ok := m.rowAt(msg.Y)
		if !ok {
			return nil
		}
		m.machine.PointerDown(view.HitTest(col, row, m.lane))
		return nil

	case msg.Action == tea.MouseActionMotion:
		if !m.machine.Active() {
			return nil
		}
		m.machine.PointerEnter(m.cellAt(msg.X, msg.Y))
		return nil

	case msg.Action == tea.MouseActionRelease:
		if !m.machine.Active() {
			return nil
		}
		m.machine.PointerEnter(m.cellAt(msg.X, msg.Y))
		switch req := m.machine.PointerUp().(type) {
		case drag.SelectRequest:
			m.selected = req.ID
		case drag.UpdateRequest:
			return m.commit(req)
		}
	}
	return nil
}

func (m *CalendarModel) columnAt(x int) (int, bool) {
	if x < calGutterWidth {
		return 0, false
	}
	col := (x - calGutterWidth) / m.columnWidth()
	return col, col < m.window.Span()
}

func (m *CalendarModel) rowAt(y int) (int, bool) {
	if y < calHeaderLines || y-calHeaderLines >= m.canvasHeight() {
		return 0, false
	}
	row := m.scroll + y - calHeaderLines
	return row, row < m.scale.Rows()
}

// cellAt maps a screen position to a slot cell, clamped to the canvas.
func (m *CalendarModel) cellAt(x, y int) int {
	col := min(max((x-calGutterWidth)/m.columnWidth(), 0), m.window.Span()-1)
	if x < calGutterWidth {
		col = 0
	}
	row := min(max(m.scroll+y-calHeaderLines, 0), m.scale.Rows()-1)
	return m.scale.Axis(m.window).Cell(col, row/max(m.scale.RowsPerSlot, 1))
}

func (m *CalendarModel) size() (int, int) {
	w, h := m.width, m.height
	if w <= 0 {
		w = fallbackWidth
	}
	if h <= 0 {
		h = fallbackHeight
	}
	return w, h
}

func (m *CalendarModel) columnWidth() int {
	w, _ := m.size()
	cw := (w - calGutterWidth) / m.window.Span()
	return min(max(cw, minColumnWidth), maxColumnWidth)
}

func (m *CalendarModel) canvasHeight() int {
	_, h := m.size()
	footer := 2
	if m.prompt.active() {
		footer = 5
	}
	return max(h-calHeaderLines-footer, 1)
}

func (m *CalendarModel) scrollBy(delta int) {
	m.scroll += delta
	m.clampScroll()
}

func (m *CalendarModel) clampScroll() {
	m.scroll = min(max(m.scroll, 0), max(m.scale.Rows()-m.canvasHeight(), 0))
}

func (m *CalendarModel) recordTitle(rec *model.Allocation) string {
	title := m.dir.Name(rec.ProjectSID)
	if m.lane.Owner == "" && rec.OwnerSID != "" {
		title += "/" + m.dir.Name(rec.OwnerSID)
	}
	if rec.Label != "" {
		title += " " + rec.Label
	}
	return title
}

// =============================================================================
// Rendering
// =============================================================================

// View renders the calendar.
func (m *CalendarModel) View() string {
	view := m.layout()
	preview, previewing := m.machine.Preview()
	axis := m.scale.Axis(m.window)
	cw := m.columnWidth()

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteByte('\n')
	b.WriteString(m.renderDays(cw))
	b.WriteByte('\n')
	b.WriteString(m.renderAllDay(view, cw))
	b.WriteByte('\n')

	last := min(m.scroll+m.canvasHeight(), m.scale.Rows())
	for row := m.scroll; row < last; row++ {
		b.WriteString(m.renderGutter(row))
		for col := 0; col < m.window.Span(); col++ {
			cell := axis.Cell(col, row/max(m.scale.RowsPerSlot, 1))
			if previewing && cell >= preview.FromCell && cell <= preview.ToCell {
				b.WriteString(StylePreview.Render(fit("", cw)))
				continue
			}
			b.WriteString(m.renderSlot(view, col, row, cw))
		}
		b.WriteByte('\n')
	}

	if m.prompt.active() {
		b.WriteString(m.prompt.View())
		b.WriteByte('\n')
	}
	b.WriteString(m.flash.View())
	b.WriteByte('\n')
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *CalendarModel) renderHeader() string {
	last := m.window.End().AddDate(0, 0, -1)
	span := m.window.Anchor.Format("Mon Jan 2, 2006")
	if m.window.Span() > 1 {
		span = m.window.Anchor.Format("Mon Jan 2") + " - " + last.Format("Mon Jan 2, 2006")
	}
	lane := "everyone"
	if !m.lane.IsZero() {
		lane = m.lane.String()
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		StyleTitle.Render("Timegrid calendar"), "  ", StyleSubtitle.Render(span+"  "+lane))
}

func (m *CalendarModel) renderDays(cw int) string {
	today := timeline.DayOffset(m.window.Anchor, m.clock.Now())
	var b strings.Builder
	b.WriteString(fit("", calGutterWidth))
	for col := 0; col < m.window.Span(); col++ {
		text := fit(timeline.CellIndexToDate(m.window, col).Format("Mon 02"), cw)
		if col == today {
			text = StyleToday.Render(text)
		} else {
			text = StyleSubtitle.Render(text)
		}
		b.WriteString(text)
	}
	return b.String()
}

func (m *CalendarModel) renderAllDay(view calendar.View, cw int) string {
	var b strings.Builder
	b.WriteString(StyleSubtitle.Render(fit("all", calGutterWidth)))
	for col := 0; col < m.window.Span(); col++ {
		blk, ok := view.AllDayAt(col)
		if !ok {
			b.WriteString(fit("", cw))
			continue
		}
		text := ""
		if col == blk.FromCol {
			text = m.recordTitle(blk.Record) + " " + hoursText(blk.Record.DurationMinutes) + "h"
		}
		style := barStyle(blk.Future, blk.Record.ID == m.selected)
		if blk.Overlaps > 0 && blk.Record.ID != m.selected {
			style = StyleOverlap
		}
		b.WriteString(style.Render(fit(text, cw)))
	}
	return b.String()
}

func (m *CalendarModel) renderGutter(row int) string {
	minute := m.scale.MinuteOf(row)
	if minute%60 != 0 || m.scale.RowOf(minute) != row {
		return fit("", calGutterWidth)
	}
	return StyleSubtitle.Render(fit(fmt.Sprintf("%02d:00", minute/60), calGutterWidth))
}

func (m *CalendarModel) renderSlot(view calendar.View, col, row, cw int) string {
	blocks := view.BlocksIn(col)
	for i := len(blocks) - 1; i >= 0; i-- {
		blk := blocks[i]
		if row < blk.Top || row > blk.Bottom() {
			continue
		}
		text := ""
		if row == blk.Top {
			text = m.recordTitle(blk.Record)
		}
		style := barStyle(blk.Future, blk.Record.ID == m.selected)
		if blk.Overlaps > 0 && blk.Record.ID != m.selected {
			style = StyleOverlap
		}
		return style.Render(fit(text, cw))
	}
	return StyleEmptyCell.Render(fit("", cw))
}

// RunCalendar starts the calendar.
func RunCalendar(ctx context.Context, opts CalendarOptions) error {
	m, err := NewCalendarModel(ctx, opts)
	if err != nil {
		return err
	}
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err = p.Run()
	return err
}
