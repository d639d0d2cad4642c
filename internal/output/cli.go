package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/manav03panchal/timegrid/internal/aggregate"
	"github.com/manav03panchal/timegrid/internal/model"
)

var (
	colorPrimary   = lipgloss.Color("#7C3AED")
	colorSecondary = lipgloss.Color("#10B981")
	colorMuted     = lipgloss.Color("#6B7280")
	colorWarning   = lipgloss.Color("#F59E0B")
	colorError     = lipgloss.Color("#EF4444")

	styleTitle    = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	styleSuccess  = lipgloss.NewStyle().Foreground(colorSecondary)
	styleWarning  = lipgloss.NewStyle().Foreground(colorWarning)
	styleError    = lipgloss.NewStyle().Foreground(colorError)
	styleMuted    = lipgloss.NewStyle().Foreground(colorMuted)
	styleBold     = lipgloss.NewStyle().Bold(true)
	styleProject  = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	styleOwner    = lipgloss.NewStyle().Foreground(colorSecondary)
	stylePlanned  = lipgloss.NewStyle().Italic(true).Foreground(colorMuted)
	styleDuration = lipgloss.NewStyle().Bold(true)
)

// Namer resolves directory ids to display names.
type Namer interface {
	Name(id string) string
}

type idNamer struct{}

func (idNamer) Name(id string) string { return id }

// CLIFormatter renders styled tables for a terminal, or tab separated
// columns when the format is plain.
type CLIFormatter struct {
	*Formatter
}

// NewCLIFormatter creates a new CLI formatter.
func NewCLIFormatter(f *Formatter) *CLIFormatter {
	return &CLIFormatter{Formatter: f}
}

func (c *CLIFormatter) style(s lipgloss.Style, text string) string {
	if c.IsColorEnabled() {
		return s.Render(text)
	}
	return text
}

// Title prints a title.
func (c *CLIFormatter) Title(text string) { c.Println(c.style(styleTitle, text)) }

// Success prints a success message.
func (c *CLIFormatter) Success(text string) { c.Println(c.style(styleSuccess, text)) }

// Warning prints a warning message.
func (c *CLIFormatter) Warning(text string) { c.Println(c.style(styleWarning, text)) }

// Error prints an error message.
func (c *CLIFormatter) Error(text string) { c.Println(c.style(styleError, text)) }

// Muted prints muted text.
func (c *CLIFormatter) Muted(text string) { c.Println(c.style(styleMuted, text)) }

// ProjectName formats a project name.
func (c *CLIFormatter) ProjectName(name string) string { return c.style(styleProject, name) }

// OwnerName formats a user name.
func (c *CLIFormatter) OwnerName(name string) string { return c.style(styleOwner, name) }

// Duration formats an effort.
func (c *CLIFormatter) Duration(minutes int) string {
	return c.style(styleDuration, FormatMinutes(minutes))
}

// FormatRow formats a lane as "project/owner" with each side styled.
func (c *CLIFormatter) FormatRow(key model.RowKey, names Namer) string {
	if names == nil {
		names = idNamer{}
	}
	switch {
	case key.IsFull():
		return c.ProjectName(names.Name(key.Project)) + "/" + c.OwnerName(names.Name(key.Owner))
	case key.Owner != "":
		return c.OwnerName(names.Name(key.Owner))
	default:
		return c.ProjectName(names.Name(key.Project))
	}
}

// FormatSpan renders an allocation's extent. Day allocations show the
// inclusive date range; minute allocations show clock times.
func FormatSpan(a *model.Allocation) string {
	if a.Precision == model.PrecisionDay {
		last := a.End.AddDate(0, 0, -1)
		if last.Equal(a.Start) {
			return FormatDate(a.Start)
		}
		return FormatDate(a.Start) + " .. " + FormatDate(last)
	}
	if model.Midnight(a.Start).Equal(model.Midnight(a.End.Add(-time.Nanosecond))) {
		return FormatTime(a.Start) + "-" + FormatTimeOnly(a.End)
	}
	return FormatTime(a.Start) + " .. " + FormatTime(a.End)
}

// PrintAllocation prints one allocation in detail.
func (c *CLIFormatter) PrintAllocation(a *model.Allocation, names Namer) {
	c.Printf("%s  %s\n", c.FormatRow(a.RowKey(), names), c.style(styleMuted, a.ID))
	c.Printf("  When:   %s\n", FormatSpan(a))
	c.Printf("  Effort: %s (%s)\n", c.Duration(a.DurationMinutes), a.Kind)
	if a.Label != "" {
		c.Printf("  Label:  %s\n", a.Label)
	}
}

// PrintAllocations prints allocations as a table followed by the total effort.
func (c *CLIFormatter) PrintAllocations(list []*model.Allocation, names Namer) {
	if len(list) == 0 {
		c.Muted("No allocations in range.")
		return
	}
	if names == nil {
		names = idNamer{}
	}
	rows := make([]TableRow, 0, len(list))
	total := 0
	for _, a := range list {
		kind := string(a.Kind)
		if a.Kind == model.KindPlanned {
			kind = c.style(stylePlanned, kind)
		}
		rows = append(rows, TableRow{Columns: []string{
			a.ID,
			names.Name(a.ProjectSID),
			names.Name(a.OwnerSID),
			FormatSpan(a),
			FormatMinutes(a.DurationMinutes),
			kind,
			a.Label,
		}})
		total += a.DurationMinutes
	}
	c.PrintTable([]string{"ID", "PROJECT", "USER", "WHEN", "EFFORT", "KIND", "LABEL"}, rows)
	if c.Format != FormatPlain {
		c.Printf("\n%d allocations, %s total\n", len(list), c.Duration(total))
	}
}

// TotalsRow is one visible line of a totals report.
type TotalsRow struct {
	Depth        int
	Label        string
	Key          model.RowKey
	TotalMinutes int
	// Cells holds per-day minutes when daily output is requested.
	Cells []int
}

// NewTotalsRows flattens a row tree in display order. When cells is non-nil
// it supplies the per-day minutes of every lane row.
func NewTotalsRows(rows []*aggregate.Row, by aggregate.GroupBy, cells func(model.RowKey) []int) []TotalsRow {
	flat := aggregate.Flatten(rows)
	out := make([]TotalsRow, 0, len(flat))
	for _, r := range flat {
		tr := TotalsRow{
			Depth:        max(aggregate.Depth(r, by), 0),
			Label:        r.Label,
			Key:          r.Key,
			TotalMinutes: r.TotalMinutes,
		}
		if cells != nil && !r.Key.IsZero() {
			tr.Cells = cells(r.Key)
		}
		out = append(out, tr)
	}
	return out
}

// PrintTotals prints a totals report for w. Day columns appear when any row
// carries cells; they are dropped when they would not fit the terminal.
func (c *CLIFormatter) PrintTotals(w model.GridWindow, rows []TotalsRow) {
	c.Title(fmt.Sprintf("Totals %s", w.Range()))
	if len(rows) == 0 {
		c.Muted("Nothing to show.")
		return
	}

	daily := false
	for _, r := range rows {
		if r.Cells != nil {
			daily = true
			break
		}
	}
	if daily && 24+8*w.Span() > c.TerminalWidth() && c.Format != FormatPlain {
		daily = false
		c.Muted("Terminal too narrow for daily columns.")
	}

	headers := []string{"ROW", "TOTAL"}
	if daily {
		for i := 0; i < w.Span(); i++ {
			headers = append(headers, FormatDay(w.Anchor.AddDate(0, 0, i)))
		}
	}

	table := make([]TableRow, 0, len(rows))
	for _, r := range rows {
		label := strings.Repeat("  ", r.Depth) + r.Label
		if r.Depth == 0 {
			label = c.style(styleBold, label)
		}
		cols := []string{label, FormatMinutes(r.TotalMinutes)}
		if daily {
			for i := 0; i < w.Span(); i++ {
				v := 0
				if i < len(r.Cells) {
					v = r.Cells[i]
				}
				cols = append(cols, FormatMinutes(v))
			}
		}
		table = append(table, TableRow{Columns: cols})
	}
	c.PrintTable(headers, table)
}

// PrintEntities prints directory entries.
func (c *CLIFormatter) PrintEntities(kind string, es []model.Entity) {
	if len(es) == 0 {
		c.Muted(fmt.Sprintf("No %ss.", kind))
		return
	}
	rows := make([]TableRow, 0, len(es))
	for _, e := range es {
		rows = append(rows, TableRow{Columns: []string{e.ID, e.Name, e.GroupID, e.ColorTag}})
	}
	c.PrintTable([]string{"SID", "NAME", "GROUP", "COLOR"}, rows)
}

// TableRow is one line of a table.
type TableRow struct {
	Columns []string
}

// PrintTable prints an aligned table. Widths are measured on rendered text
// so styled cells line up. Plain format prints tab separated values.
func (c *CLIFormatter) PrintTable(headers []string, rows []TableRow) {
	if len(rows) == 0 {
		return
	}

	if c.Format == FormatPlain {
		c.Println(strings.Join(headers, "\t"))
		for _, row := range rows {
			c.Println(strings.Join(row.Columns, "\t"))
		}
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, col := range row.Columns {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(col))
			}
		}
	}

	pad := func(s string, w int) string {
		return s + strings.Repeat(" ", max(w-lipgloss.Width(s), 0))
	}

	var header strings.Builder
	for i, h := range headers {
		header.WriteString(pad(h, widths[i]) + "  ")
	}
	c.Println(c.style(styleBold, strings.TrimRight(header.String(), " ")))

	var sep strings.Builder
	for _, w := range widths {
		sep.WriteString(strings.Repeat("─", w) + "  ")
	}
	c.Println(c.style(styleMuted, strings.TrimRight(sep.String(), " ")))

	for _, row := range rows {
		var line strings.Builder
		for i, col := range row.Columns {
			if i < len(widths) {
				line.WriteString(pad(col, widths[i]) + "  ")
			}
		}
		c.Println(strings.TrimRight(line.String(), " "))
	}
}
