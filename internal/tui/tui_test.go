package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manav03panchal/timegrid/internal/aggregate"
	"github.com/manav03panchal/timegrid/internal/allocation"
	"github.com/manav03panchal/timegrid/internal/calendar"
	"github.com/manav03panchal/timegrid/internal/clock"
	"github.com/manav03panchal/timegrid/internal/model"
	"github.com/manav03panchal/timegrid/internal/notify"
	"github.com/manav03panchal/timegrid/internal/planner"
	"github.com/manav03panchal/timegrid/internal/reconcile"
	"github.com/manav03panchal/timegrid/internal/testutil"
)

func directory() *aggregate.StaticDirectory {
	return &aggregate.StaticDirectory{
		Clients:  testutil.Clients,
		Projects: testutil.Projects,
		Users:    testutil.Users,
	}
}

func newReconciler(seed ...*model.Allocation) (*reconcile.Reconciler, *testutil.FakeBackend, clock.Clock) {
	backend := testutil.NewFakeBackend(seed...)
	clk := clock.NewFixed(testutil.Day(0, 8*time.Hour))
	rec := reconcile.New(allocation.NewStore(), backend, reconcile.Options{Clock: clk})
	return rec, backend, clk
}

func newGrid(t *testing.T, seed ...*model.Allocation) (*GridModel, *testutil.FakeBackend) {
	t.Helper()
	rec, backend, clk := newReconciler(seed...)
	p := planner.New(planner.DefaultConfig(), directory(), rec, clk)
	require.NoError(t, p.Open(context.Background()))
	return NewGridModel(context.Background(), GridOptions{Planner: p, Clock: clk}), backend
}

func newCalendar(t *testing.T, seed ...*model.Allocation) (*CalendarModel, *testutil.FakeBackend) {
	t.Helper()
	rec, backend, clk := newReconciler(seed...)
	m, err := NewCalendarModel(context.Background(), CalendarOptions{
		Reconciler:   rec,
		Directory:    directory(),
		Scale:        calendar.DefaultScale(),
		Mode:         model.ViewCalendarWeek,
		WeekStart:    time.Monday,
		DayStartHour: 8,
		Clock:        clk,
	})
	require.NoError(t, err)
	return m, backend
}

// run executes cmd and feeds a settled ticket back into m.
func run(t *testing.T, m tea.Model, cmd tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	tm, ok := msg.(ticketMsg)
	require.True(t, ok, "expected ticketMsg, got %T", msg)
	require.NoError(t, tm.ticket.Err())
	m.Update(msg)
}

func press(x, y int) tea.MouseMsg {
	return tea.MouseMsg{X: x, Y: y, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft}
}

func motion(x, y int) tea.MouseMsg {
	return tea.MouseMsg{X: x, Y: y, Action: tea.MouseActionMotion, Button: tea.MouseButtonLeft}
}

func release(x, y int) tea.MouseMsg {
	return tea.MouseMsg{X: x, Y: y, Action: tea.MouseActionRelease, Button: tea.MouseButtonNone}
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func gridRow(t *testing.T, m *GridModel, label string) int {
	t.Helper()
	for i, r := range m.planner.Rows() {
		if r.Label == label {
			return i
		}
	}
	t.Fatalf("row %q not found", label)
	return -1
}

// cellX is the screen column inside the body zone of a grid cell.
func cellX(m *GridModel, cell int) int {
	return gridLabelWidth + cell*m.cellWidth() + 1
}

func dayAlloc(id string, from, to int) *model.Allocation {
	a := model.NewDayAllocation("website", "alice", testutil.Day(from, 0), testutil.Day(to, 0), 16*60, model.KindPlanned, "")
	a.ID = id
	return a
}

// =============================================================================
// Grid Tests
// =============================================================================

func TestGridDragCreate(t *testing.T) {
	m, backend := newGrid(t)
	y := gridHeaderLines + gridRow(t, m, "Website")

	m.Update(press(cellX(m, 2), y))
	m.Update(motion(cellX(m, 3), y))
	m.Update(release(cellX(m, 3), y))
	require.True(t, m.prompt.active())
	assert.Equal(t, promptCreate, m.prompt.mode)
	assert.Equal(t, "8", m.prompt.input.Value())

	m.prompt.input.SetValue("6 design")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	run(t, m, cmd)

	assert.False(t, m.prompt.active())
	require.Equal(t, 1, backend.Len())
	got, ok := backend.Get("srv-1")
	require.True(t, ok)
	assert.Equal(t, testutil.Day(2, 0), got.Start)
	assert.Equal(t, testutil.Day(4, 0), got.End)
	assert.Equal(t, 360, got.DurationMinutes)
	assert.Equal(t, "design", got.Label)
	assert.Equal(t, model.KindPlanned, got.Kind)
}

func TestGridPromptValidation(t *testing.T) {
	m, backend := newGrid(t)
	y := gridHeaderLines + gridRow(t, m, "Website")

	m.Update(press(cellX(m, 2), y))
	m.Update(release(cellX(m, 2), y))
	require.True(t, m.prompt.active())

	t.Run("bad_hours_keeps_prompt", func(t *testing.T) {
		m.prompt.input.SetValue("lots")
		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		assert.True(t, m.prompt.active())
		assert.Contains(t, m.flash.text, "hours")
		_, pending := m.planner.Pending()
		assert.True(t, pending)
	})

	t.Run("more_than_span_is_rejected", func(t *testing.T) {
		m.prompt.input.SetValue("30")
		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		assert.True(t, m.prompt.active())
		assert.True(t, m.flash.err)
	})

	t.Run("escape_discards", func(t *testing.T) {
		m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		assert.False(t, m.prompt.active())
		_, pending := m.planner.Pending()
		assert.False(t, pending)
	})

	assert.Equal(t, 0, backend.Len())
}

func TestGridSelectEditDelete(t *testing.T) {
	m, backend := newGrid(t, dayAlloc("a", 2, 4))
	y := gridHeaderLines + gridRow(t, m, "Website")

	m.Update(press(cellX(m, 2), y))
	m.Update(release(cellX(m, 2), y))
	assert.Equal(t, "a", m.planner.Selected())
	assert.False(t, m.prompt.active())

	m.Update(keyRunes("e"))
	require.True(t, m.prompt.active())
	assert.Equal(t, "16", m.prompt.input.Value())

	m.prompt.input.SetValue("10 review")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	run(t, m, cmd)
	got, ok := backend.Get("a")
	require.True(t, ok)
	assert.Equal(t, 600, got.DurationMinutes)
	assert.Equal(t, "review", got.Label)

	_, cmd = m.Update(keyRunes("d"))
	run(t, m, cmd)
	assert.Equal(t, 0, backend.Len())
	assert.Empty(t, m.planner.Selected())
}

func TestGridDragMove(t *testing.T) {
	m, backend := newGrid(t, dayAlloc("a", 2, 4))
	y := gridHeaderLines + gridRow(t, m, "Website")

	m.Update(press(cellX(m, 2), y))
	m.Update(motion(cellX(m, 4), y))
	preview, ok := m.planner.Preview()
	require.True(t, ok)
	assert.Equal(t, 4, preview.FromCell)
	assert.Contains(t, m.View(), "Website")

	_, cmd := m.Update(release(cellX(m, 4), y))
	run(t, m, cmd)
	got, ok := backend.Get("a")
	require.True(t, ok)
	assert.Equal(t, testutil.Day(4, 0), got.Start)
	assert.Equal(t, testutil.Day(6, 0), got.End)
	assert.Equal(t, 16*60, got.DurationMinutes)
}

func TestGridEscapeCancelsGesture(t *testing.T) {
	m, backend := newGrid(t, dayAlloc("a", 2, 4))
	y := gridHeaderLines + gridRow(t, m, "Website")

	m.Update(press(cellX(m, 2), y))
	m.Update(motion(cellX(m, 5), y))
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	_, cmd := m.Update(release(cellX(m, 5), y))
	assert.Nil(t, cmd)
	got, _ := backend.Get("a")
	assert.Equal(t, testutil.Day(2, 0), got.Start)
}

func TestGridKeys(t *testing.T) {
	m, _ := newGrid(t)
	anchor := m.planner.Window().Anchor

	m.Update(keyRunes("l"))
	assert.Equal(t, anchor.AddDate(0, 0, 21), m.planner.Window().Anchor)
	m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	assert.Equal(t, anchor.AddDate(0, 0, -21), m.planner.Window().Anchor)
	m.Update(keyRunes("t"))
	assert.Equal(t, anchor, m.planner.Window().Anchor)

	m.Update(keyRunes("g"))
	assert.Equal(t, aggregate.GroupByMember, m.planner.Config().GroupBy)
	assert.Contains(t, m.View(), "by member")

	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, m.cursor)

	_, cmd := m.Update(keyRunes("d"))
	require.NotNil(t, cmd)
	assert.True(t, m.flash.err)

	_, cmd = m.Update(keyRunes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestGridLocate(t *testing.T) {
	m, _ := newGrid(t)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	cw := m.cellWidth()
	require.Equal(t, 4, cw)

	tests := []struct {
		name string
		x, y int
		cell int
		zone planner.Zone
		ok   bool
	}{
		{"header", 40, 0, 0, planner.ZoneBody, false},
		{"label_gutter", 3, gridHeaderLines, 0, planner.ZoneBody, false},
		{"left_edge", gridLabelWidth, gridHeaderLines, 0, planner.ZoneLeft, true},
		{"body", gridLabelWidth + 1, gridHeaderLines, 0, planner.ZoneBody, true},
		{"right_edge", gridLabelWidth + cw - 1, gridHeaderLines, 0, planner.ZoneRight, true},
		{"third_cell", gridLabelWidth + 2*cw + 2, gridHeaderLines, 2, planner.ZoneBody, true},
		{"past_window", gridLabelWidth + 21*cw, gridHeaderLines, 0, planner.ZoneBody, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, cell, zone, ok := m.locate(tt.x, tt.y)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.cell, cell)
				assert.Equal(t, tt.zone, zone)
			}
		})
	}

	assert.Equal(t, 0, m.cellAt(0))
	assert.Equal(t, 20, m.cellAt(1000))
}

// =============================================================================
// Calendar Tests
// =============================================================================

// calX is a screen column inside a calendar day column.
func calX(m *CalendarModel, col int) int {
	return calGutterWidth + col*m.columnWidth() + 2
}

// calY is the screen row of a canvas row.
func calY(m *CalendarModel, row int) int {
	return calHeaderLines + row - m.scroll
}

func TestCalendarOpens(t *testing.T) {
	m, _ := newCalendar(t, testutil.Allocation("a", testutil.Day(1, 9*time.Hour), 2*time.Hour))
	assert.Equal(t, testutil.Monday, m.Window().Anchor)
	assert.Equal(t, 7, m.Window().Span())
	assert.Equal(t, 32, m.scroll)

	out := m.View()
	assert.Contains(t, out, "Timegrid calendar")
	assert.Contains(t, out, "08:00")
	assert.Contains(t, out, "Website")
}

func TestCalendarDragMove(t *testing.T) {
	m, backend := newCalendar(t, testutil.Allocation("a", testutil.Day(1, 9*time.Hour), 2*time.Hour))
	// 09:00 is row 36; grab the body two rows below the top.
	m.Update(press(calX(m, 1), calY(m, 38)))
	m.Update(motion(calX(m, 1), calY(m, 42)))
	_, cmd := m.Update(release(calX(m, 1), calY(m, 42)))
	run(t, m, cmd)

	got, ok := backend.Get("a")
	require.True(t, ok)
	assert.Equal(t, testutil.Day(1, 10*time.Hour), got.Start)
	assert.Equal(t, testutil.Day(1, 12*time.Hour), got.End)
	assert.Equal(t, 120, got.DurationMinutes)
}

func TestCalendarMoveAcrossDays(t *testing.T) {
	m, backend := newCalendar(t, testutil.Allocation("a", testutil.Day(1, 9*time.Hour), 2*time.Hour))
	m.Update(press(calX(m, 1), calY(m, 38)))
	m.Update(motion(calX(m, 3), calY(m, 38)))
	_, cmd := m.Update(release(calX(m, 3), calY(m, 38)))
	run(t, m, cmd)

	got, _ := backend.Get("a")
	assert.Equal(t, testutil.Day(3, 9*time.Hour), got.Start)
}

func TestCalendarResize(t *testing.T) {
	m, backend := newCalendar(t, testutil.Allocation("a", testutil.Day(1, 9*time.Hour), 2*time.Hour))
	// The bottom row of the block (10:45) is the end handle.
	m.Update(press(calX(m, 1), calY(m, 43)))
	m.Update(motion(calX(m, 1), calY(m, 47)))
	_, cmd := m.Update(release(calX(m, 1), calY(m, 47)))
	run(t, m, cmd)

	got, _ := backend.Get("a")
	assert.Equal(t, testutil.Day(1, 9*time.Hour), got.Start)
	assert.Equal(t, testutil.Day(1, 12*time.Hour), got.End)
	assert.Equal(t, 180, got.DurationMinutes)
}

func TestCalendarEmptyPressDoesNothing(t *testing.T) {
	m, backend := newCalendar(t)
	m.Update(press(calX(m, 2), calY(m, 40)))
	m.Update(motion(calX(m, 2), calY(m, 44)))
	_, cmd := m.Update(release(calX(m, 2), calY(m, 44)))
	assert.Nil(t, cmd)
	assert.Equal(t, 0, backend.Len())
}

func TestCalendarSelectEditDelete(t *testing.T) {
	m, backend := newCalendar(t, testutil.Allocation("a", testutil.Day(1, 9*time.Hour), 2*time.Hour))
	m.Update(press(calX(m, 1), calY(m, 38)))
	m.Update(release(calX(m, 1), calY(m, 38)))
	assert.Equal(t, "a", m.Selected())

	m.Update(keyRunes("e"))
	require.True(t, m.prompt.active())
	assert.Equal(t, "2", m.prompt.input.Value())
	m.prompt.input.SetValue("3 review")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	run(t, m, cmd)
	got, _ := backend.Get("a")
	assert.Equal(t, testutil.Day(1, 12*time.Hour), got.End)
	assert.Equal(t, "review", got.Label)

	_, cmd = m.Update(keyRunes("d"))
	run(t, m, cmd)
	assert.Equal(t, 0, backend.Len())
	assert.Empty(t, m.Selected())
}

func TestCalendarAllDaySelect(t *testing.T) {
	m, _ := newCalendar(t, dayAlloc("d", 2, 4))
	assert.Contains(t, m.View(), "Website")
	m.Update(press(calX(m, 3), calAllDayLine))
	assert.Equal(t, "d", m.Selected())
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Empty(t, m.Selected())
}

func TestCalendarNavigation(t *testing.T) {
	m, _ := newCalendar(t)
	m.Update(keyRunes("l"))
	assert.Equal(t, testutil.Day(7, 0), m.Window().Anchor)
	m.Update(keyRunes("t"))
	assert.Equal(t, testutil.Monday, m.Window().Anchor)

	m.Update(keyRunes("j"))
	assert.Equal(t, 36, m.scroll)
	m.Update(keyRunes("k"))
	m.Update(keyRunes("k"))
	assert.Equal(t, 28, m.scroll)
}

// =============================================================================
// Shared Helpers Tests
// =============================================================================

func TestParseEntry(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		hours   float64
		label   string
		wantErr bool
	}{
		{"hours_only", "8", 8, "", false},
		{"hours_and_label", "1.5 design review", 1.5, "design review", false},
		{"duration", "1h30m sync", 1.5, "sync", false},
		{"keep_hours", "- renamed", 0, "renamed", false},
		{"empty", "  ", 0, "", true},
		{"garbage", "lots", 0, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, l, err := parseEntry(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.hours, h, 0.001)
			assert.Equal(t, tt.label, l)
		})
	}
}

func TestFit(t *testing.T) {
	assert.Equal(t, "ab  ", fit("ab", 4))
	assert.Equal(t, "abc…", fit("abcdef", 4))
	assert.Equal(t, "a", fit("abc", 1))
	assert.Equal(t, "", fit("abc", 0))
}

func TestHoursText(t *testing.T) {
	assert.Equal(t, "", hoursText(0))
	assert.Equal(t, "8", hoursText(480))
	assert.Equal(t, "1.5", hoursText(90))
}

func TestFlash(t *testing.T) {
	m, _ := newGrid(t)
	_, cmd := m.Update(eventMsg(notify.Event{Type: model.NotifySuccess, Message: "Allocation created"}))
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "Allocation created")

	seq := m.flash.seq
	m.Update(flashExpiredMsg{seq: seq - 1})
	assert.Equal(t, "Allocation created", m.flash.text)
	m.Update(flashExpiredMsg{seq: seq})
	assert.Empty(t, m.flash.text)
}

func TestBarStyle(t *testing.T) {
	assert.Equal(t, StyleSelectedBar.GetBackground(), barStyle(true, true).GetBackground())
	assert.Equal(t, StylePlannedBar.GetBackground(), barStyle(true, false).GetBackground())
	assert.Equal(t, StyleReportedBar.GetBackground(), barStyle(false, false).GetBackground())
}
