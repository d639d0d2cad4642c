package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/manav03panchal/timegrid/internal/aggregate"
	"github.com/manav03panchal/timegrid/internal/clock"
	"github.com/manav03panchal/timegrid/internal/drag"
	"github.com/manav03panchal/timegrid/internal/logging"
	"github.com/manav03panchal/timegrid/internal/model"
	"github.com/manav03panchal/timegrid/internal/notify"
	"github.com/manav03panchal/timegrid/internal/parser"
	"github.com/manav03panchal/timegrid/internal/planner"
	"github.com/manav03panchal/timegrid/internal/timeline"
)

// Grid geometry in terminal cells.
const (
	gridLabelWidth  = 26
	gridTotalWidth  = 8
	gridHeaderLines = 2
	minCellWidth    = 3
	maxCellWidth    = 8
	fallbackWidth   = 120
	fallbackHeight  = 30
)

// GridOptions configures the planning grid.
type GridOptions struct {
	Planner *planner.Planner
	// Events is the reconciler outcome stream, usually runtime.Context.Events.
	Events <-chan notify.Event
	Clock  clock.Clock
}

// GridModel is the bubbletea model of the planning grid. Mouse presses,
// motion and releases drive the planner's gesture machine.
type GridModel struct {
	ctx     context.Context
	planner *planner.Planner
	events  <-chan notify.Event
	clock   clock.Clock

	keys   keyMap
	help   help.Model
	prompt prompt
	flash  flash

	width, height  int
	cursor, offset int
}

// NewGridModel creates a grid over an opened planner.
func NewGridModel(ctx context.Context, opts GridOptions) *GridModel {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	return &GridModel{
		ctx:     ctx,
		planner: opts.Planner,
		events:  opts.Events,
		clock:   opts.Clock,
		keys:    defaultKeyMap(),
		help:    help.New(),
		prompt:  newPrompt(),
	}
}

// Init starts listening for reconciler events.
func (m *GridModel) Init() tea.Cmd {
	return listenEvents(m.events)
}

// Update handles messages and updates the model.
func (m *GridModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.clampOffset()
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
		if err := msg.ticket.Err(); err != nil {
			logging.FromContext(m.ctx).Debug("commit settled with error", logging.KeyError, err.Error())
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

func (m *GridModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		switch {
		case m.planner.Gesture() != drag.Idle:
			m.planner.PointerCancel()
		default:
			m.planner.Discard()
			m.planner.ClearSelection()
		}
		return nil

	case key.Matches(msg, m.keys.Prev):
		return m.navigate(func(ctx context.Context) error { return m.planner.Shift(ctx, -1) })

	case key.Matches(msg, m.keys.Next):
		return m.navigate(func(ctx context.Context) error { return m.planner.Shift(ctx, 1) })

	case key.Matches(msg, m.keys.Today):
		return m.navigate(m.planner.Today)

	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
		return nil

	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
		return nil

	case key.Matches(msg, m.keys.Toggle):
		m.planner.Toggle(m.cursor)
		m.moveCursor(0)
		return nil

	case key.Matches(msg, m.keys.GroupBy):
		by := aggregate.GroupByMember
		if m.planner.Config().GroupBy == aggregate.GroupByMember {
			by = aggregate.GroupByProject
		}
		m.planner.SetGroupBy(by)
		m.cursor, m.offset = 0, 0
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

func (m *GridModel) navigate(fn func(context.Context) error) tea.Cmd {
	if err := fn(m.ctx); err != nil {
		return m.flash.set(errorText(err), true)
	}
	m.moveCursor(0)
	return nil
}

func (m *GridModel) handlePromptKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		if m.prompt.mode == promptCreate {
			m.planner.Discard()
		}
		m.prompt.close()
		return nil
	case tea.KeyEnter:
		return m.submitPrompt()
	}
	return m.prompt.update(msg)
}

func (m *GridModel) submitPrompt() tea.Cmd {
	hours, label, err := parseEntry(m.prompt.input.Value())
	if err == nil && hours == 0 && m.prompt.mode == promptCreate {
		err = parser.NewHoursError(m.prompt.input.Value())
	}
	if err != nil {
		return m.flash.set(errorText(err), true)
	}

	var cmd tea.Cmd
	switch m.prompt.mode {
	case promptCreate:
		t, cerr := m.planner.Confirm(m.ctx, hours, label)
		if cerr != nil {
			return m.flash.set(errorText(cerr), true)
		}
		cmd = waitTicket(t)
	case promptEdit:
		t, cerr := m.planner.Edit(m.ctx, m.prompt.target, hours, label)
		if cerr != nil {
			return m.flash.set(errorText(cerr), true)
		}
		cmd = waitTicket(t)
	}
	m.prompt.close()
	return cmd
}

func (m *GridModel) openEdit() tea.Cmd {
	id := m.planner.Selected()
	if id == "" {
		return m.flash.set("Click an allocation to select it first", true)
	}
	rec, ok := m.planner.Store().Get(id)
	if !ok {
		m.planner.ClearSelection()
		return nil
	}
	title := "Edit " + m.planner.Directory().Name(rec.ProjectSID) + " (hours label)"
	return m.prompt.open(promptEdit, id, title, entryValue(rec.DurationMinutes, rec.Label))
}

func (m *GridModel) deleteSelected() tea.Cmd {
	id := m.planner.Selected()
	if id == "" {
		return m.flash.set("Click an allocation to select it first", true)
	}
	t, err := m.planner.Delete(m.ctx, id)
	if err != nil {
		return m.flash.set(errorText(err), true)
	}
	return waitTicket(t)
}

// =============================================================================
// Pointer input
// =============================================================================

func (m *GridModel) handleMouse(msg tea.MouseMsg) tea.Cmd {
	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.moveCursor(-1)
		return nil
	case msg.Button == tea.MouseButtonWheelDown:
		m.moveCursor(1)
		return nil

	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		index, cell, zone, ok := m.locate(msg.X, msg.Y)
		if !ok {
			return nil
		}
		m.cursor = index
		m.planner.PointerDown(index, cell, zone)
		return nil

	case msg.Action == tea.MouseActionMotion:
		if m.planner.Gesture() == drag.Idle {
			return nil
		}
		m.planner.PointerEnter(m.cellAt(msg.X))
		return nil

	case msg.Action == tea.MouseActionRelease:
		if m.planner.Gesture() == drag.Idle {
			return nil
		}
		m.planner.PointerEnter(m.cellAt(msg.X))
		return m.pointerUp()
	}
	return nil
}

func (m *GridModel) pointerUp() tea.Cmd {
	out, err := m.planner.PointerUp(m.ctx)
	if err != nil {
		return m.flash.set(errorText(err), true)
	}
	switch out.Kind {
	case planner.OutcomeNeedsHours:
		req := out.Create
		days := model.CoveredDays(req.Start, req.End)
		title := fmt.Sprintf("%s, %s (hours label)", m.rowLabel(), daysText(days))
		return m.prompt.open(promptCreate, "", title, strconv.Itoa(req.DefaultDurationHours))
	case planner.OutcomeCommitted:
		return waitTicket(out.Ticket)
	case planner.OutcomeSelected:
		return nil
	}
	return nil
}

// locate maps a screen position to a row index, a day cell and the zone
// inside the cell.
func (m *GridModel) locate(x, y int) (index, cell int, zone planner.Zone, ok bool) {
	row := y - gridHeaderLines
	if row < 0 || row >= m.bodyHeight() {
		return 0, 0, planner.ZoneBody, false
	}
	index = m.offset + row
	if index >= len(m.planner.Rows()) || x < gridLabelWidth {
		return 0, 0, planner.ZoneBody, false
	}
	cw := m.cellWidth()
	rel := x - gridLabelWidth
	cell = rel / cw
	if cell >= m.planner.Window().Span() {
		return 0, 0, planner.ZoneBody, false
	}
	switch rel % cw {
	case 0:
		zone = planner.ZoneLeft
	case cw - 1:
		zone = planner.ZoneRight
	default:
		zone = planner.ZoneBody
	}
	return index, cell, zone, true
}

// cellAt maps x to a day cell, clamped to the window.
func (m *GridModel) cellAt(x int) int {
	cell := (x - gridLabelWidth) / m.cellWidth()
	if x < gridLabelWidth {
		cell = 0
	}
	return min(max(cell, 0), m.planner.Window().Span()-1)
}

func (m *GridModel) size() (int, int) {
	w, h := m.width, m.height
	if w <= 0 {
		w = fallbackWidth
	}
	if h <= 0 {
		h = fallbackHeight
	}
	return w, h
}

func (m *GridModel) cellWidth() int {
	w, _ := m.size()
	cw := (w - gridLabelWidth - gridTotalWidth) / m.planner.Window().Span()
	return min(max(cw, minCellWidth), maxCellWidth)
}

func (m *GridModel) bodyHeight() int {
	_, h := m.size()
	footer := 2
	if m.prompt.active() {
		footer = 5
	}
	return max(h-gridHeaderLines-footer, 1)
}

func (m *GridModel) moveCursor(delta int) {
	n := len(m.planner.Rows())
	m.cursor = min(max(m.cursor+delta, 0), max(n-1, 0))
	m.clampOffset()
}

func (m *GridModel) clampOffset() {
	h := m.bodyHeight()
	n := len(m.planner.Rows())
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
	m.offset = min(max(m.offset, 0), max(n-h, 0))
}

func (m *GridModel) rowLabel() string {
	rows := m.planner.Rows()
	if m.cursor < 0 || m.cursor >= len(rows) {
		return ""
	}
	return rows[m.cursor].Label
}

// =============================================================================
// Rendering
// =============================================================================

// View renders the grid.
func (m *GridModel) View() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteByte('\n')
	b.WriteString(m.renderDays())
	b.WriteByte('\n')

	rows := m.planner.Rows()
	end := min(m.offset+m.bodyHeight(), len(rows))
	for i := m.offset; i < end; i++ {
		b.WriteString(m.renderRow(i, rows[i]))
		b.WriteByte('\n')
	}
	if len(rows) == 0 {
		b.WriteString(StyleSubtitle.Render("No projects yet. Add one with 'timegrid project add'."))
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

func (m *GridModel) renderHeader() string {
	w := m.planner.Window()
	last := w.End().AddDate(0, 0, -1)
	title := StyleTitle.Render("Timegrid")
	span := StyleSubtitle.Render(fmt.Sprintf("%s - %s  by %s",
		w.Anchor.Format("Mon Jan 2"), last.Format("Mon Jan 2, 2006"), m.planner.Config().GroupBy))
	return lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", span)
}

func (m *GridModel) renderDays() string {
	w := m.planner.Window()
	cw := m.cellWidth()
	today := timeline.DayOffset(w.Anchor, m.clock.Now())
	var b strings.Builder
	b.WriteString(fit("", gridLabelWidth))
	for i := 0; i < w.Span(); i++ {
		d := timeline.CellIndexToDate(w, i)
		text := fit(d.Format("Mon")[:1]+d.Format("02"), cw)
		switch {
		case i == today:
			text = StyleToday.Render(text)
		case d.Weekday() == time.Saturday || d.Weekday() == time.Sunday:
			text = StyleWeekend.Render(text)
		default:
			text = StyleSubtitle.Render(text)
		}
		b.WriteString(text)
	}
	b.WriteString(StyleSubtitle.Render(fit(" total", gridTotalWidth)))
	return b.String()
}

func (m *GridModel) renderRow(index int, row *aggregate.Row) string {
	var b strings.Builder
	b.WriteString(m.renderLabel(index, row))

	span := m.planner.Window().Span()
	cw := m.cellWidth()
	if !row.Editable() {
		b.WriteString(strings.Repeat(" ", span*cw))
		b.WriteString(StyleSubtitle.Render(fit(" "+parser.FormatMinutes(row.TotalMinutes), gridTotalWidth)))
		return b.String()
	}

	minutes := m.planner.CellMinutes(index)
	bars := m.planner.Bars(index)
	preview, previewing := m.planner.Preview()
	selected := m.planner.Selected()
	anchor := m.planner.Window().Anchor

	for cell := 0; cell < span; cell++ {
		if previewing && preview.Row == row.Key && cell >= preview.FromCell && cell <= preview.ToCell {
			b.WriteString(StylePreview.Render(fit("", cw)))
			continue
		}
		bar, ok := topBar(bars, cell)
		if !ok {
			b.WriteString(StyleEmptyCell.Render(fit(" ·", cw)))
			continue
		}
		left, right := " ", " "
		if cell == timeline.DayOffset(anchor, bar.Record.Start) {
			left = "▏"
		}
		if cell == timeline.DayOffset(anchor, bar.Record.End.Add(-time.Nanosecond)) {
			right = "▕"
		}
		text := left + fit(hoursText(minutes[cell]), cw-2) + right
		b.WriteString(barStyle(bar.Future, bar.Record.ID == selected).Render(text))
	}
	b.WriteString(fit(" "+parser.FormatMinutes(row.TotalMinutes), gridTotalWidth))
	return b.String()
}

func (m *GridModel) renderLabel(index int, row *aggregate.Row) string {
	marker := "  "
	if row.Expandable {
		marker = "▸ "
		if row.Expanded {
			marker = "▾ "
		}
	}
	text := fit(strings.Repeat("  ", int(row.Level))+marker+row.Label, gridLabelWidth-1) + " "
	style := StyleChild
	switch row.Level {
	case aggregate.LevelGroup:
		style = StyleGroup
	case aggregate.LevelParent:
		style = StyleParent
	}
	if index == m.cursor {
		style = style.Inherit(StyleCursor)
	}
	return style.Render(text)
}

// topBar returns the last drawn bar covering cell.
func topBar(bars []planner.Bar, cell int) (planner.Bar, bool) {
	for i := len(bars) - 1; i >= 0; i-- {
		if cell >= bars[i].FromCell && cell <= bars[i].ToCell {
			return bars[i], true
		}
	}
	return planner.Bar{}, false
}

// hoursText renders minutes as compact hours: "8", "1.5".
func hoursText(minutes int) string {
	if minutes == 0 {
		return ""
	}
	return strconv.FormatFloat(float64(minutes)/60, 'f', -1, 64)
}

func daysText(days int) string {
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

// RunGrid starts the planning grid.
func RunGrid(ctx context.Context, opts GridOptions) error {
	m := NewGridModel(ctx, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
