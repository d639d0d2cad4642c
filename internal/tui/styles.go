// Package tui provides the terminal planning grid and calendar for Timegrid.
package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Color palette for the grid and calendar.
var (
	ColorPrimary  = lipgloss.Color("#7C3AED") // Purple
	ColorPlanned  = lipgloss.Color("#3B82F6") // Blue
	ColorReported = lipgloss.Color("#10B981") // Green
	ColorMuted    = lipgloss.Color("#6B7280") // Gray
	ColorWarning  = lipgloss.Color("#F59E0B") // Yellow
	ColorError    = lipgloss.Color("#EF4444") // Red
	ColorBorder   = lipgloss.Color("#4B5563") // Dark gray
	ColorText     = lipgloss.Color("#F9FAFB")
)

// Base styles.
var (
	// StyleTitle is used for the header line.
	StyleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	// StyleSubtitle is used for the window range and secondary text.
	StyleSubtitle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// StyleGroup is used for client and member group rows.
	StyleGroup = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	StyleParent = lipgloss.NewStyle().Bold(true)
	StyleChild  = lipgloss.NewStyle()

	// StyleCursor marks the keyboard row.
	StyleCursor = lipgloss.NewStyle().Reverse(true)

	// StyleToday highlights the column of today in headers.
	StyleToday = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWarning)

	StyleWeekend = lipgloss.NewStyle().Foreground(ColorMuted)

	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarning)
	StyleError   = lipgloss.NewStyle().Foreground(ColorError)
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorReported)

	// StylePrompt frames the hours and edit input.
	StylePrompt = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary).
			Padding(0, 1)
)

// Allocation styles. Planned work is drawn in blue, reported work in green.
var (
	StylePlannedBar = lipgloss.NewStyle().
			Foreground(ColorText).
			Background(ColorPlanned)

	StyleReportedBar = lipgloss.NewStyle().
				Foreground(ColorText).
				Background(ColorReported)

	// StyleSelectedBar outlines the selected record.
	StyleSelectedBar = lipgloss.NewStyle().
				Foreground(ColorText).
				Background(ColorPrimary).
				Bold(true)

	// StylePreview is the overlay of a gesture in progress.
	StylePreview = lipgloss.NewStyle().
			Foreground(ColorText).
			Background(ColorBorder)

	// StyleOverlap marks blocks that share time with another block.
	StyleOverlap = lipgloss.NewStyle().
			Foreground(ColorText).
			Background(ColorWarning)

	StyleEmptyCell = lipgloss.NewStyle().Foreground(ColorBorder)
)

// barStyle picks the style of a record.
func barStyle(future, selected bool) lipgloss.Style {
	switch {
	case selected:
		return StyleSelectedBar
	case future:
		return StylePlannedBar
	default:
		return StyleReportedBar
	}
}

// fit pads or cuts s to exactly w cells.
func fit(s string, w int) string {
	if w <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) > w {
		if w == 1 {
			return string(r[:1])
		}
		return string(r[:w-1]) + "…"
	}
	for len(r) < w {
		r = append(r, ' ')
	}
	return string(r)
}
