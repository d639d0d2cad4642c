// Package output renders command results for terminals, scripts and pipes.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"github.com/manav03panchal/timegrid/internal/parser"
)

// Format represents the output format type.
type Format string

const (
	FormatCLI   Format = "cli"
	FormatJSON  Format = "json"
	FormatPlain Format = "plain"
)

// ParseFormat returns the format named s, or false.
func ParseFormat(s string) (Format, bool) {
	switch f := Format(s); f {
	case FormatCLI, FormatJSON, FormatPlain:
		return f, true
	}
	return "", false
}

// ColorMode represents the color output mode.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// DefaultWidth is used when the writer is not a terminal.
const DefaultWidth = 100

// Formatter handles output formatting.
type Formatter struct {
	Writer    io.Writer
	Format    Format
	ColorMode ColorMode
}

// NewFormatter creates a new formatter with default settings.
func NewFormatter() *Formatter {
	return &Formatter{
		Writer:    os.Stdout,
		Format:    FormatCLI,
		ColorMode: ColorAuto,
	}
}

// IsColorEnabled returns true if color output is enabled. Plain and JSON
// output never carry escape codes.
func (f *Formatter) IsColorEnabled() bool {
	if f.Format == FormatPlain || f.Format == FormatJSON {
		return false
	}
	switch f.ColorMode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		if w, ok := f.Writer.(*os.File); ok {
			return isatty.IsTerminal(w.Fd()) || isatty.IsCygwinTerminal(w.Fd())
		}
		return false
	}
}

// IsJSON reports whether results should be encoded as JSON.
func (f *Formatter) IsJSON() bool {
	return f.Format == FormatJSON
}

// TerminalWidth returns the column count of the writer, or DefaultWidth when
// the writer is not a terminal.
func (f *Formatter) TerminalWidth() int {
	if w, ok := f.Writer.(*os.File); ok && term.IsTerminal(int(w.Fd())) {
		if width, _, err := term.GetSize(int(w.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return DefaultWidth
}

// Print outputs formatted text.
func (f *Formatter) Print(a ...any) {
	fmt.Fprint(f.Writer, a...)
}

// Println outputs formatted text with newline.
func (f *Formatter) Println(a ...any) {
	fmt.Fprintln(f.Writer, a...)
}

// Printf outputs formatted text.
func (f *Formatter) Printf(format string, a ...any) {
	fmt.Fprintf(f.Writer, format, a...)
}

// JSON outputs data as indented JSON.
func (f *Formatter) JSON(v any) error {
	encoder := json.NewEncoder(f.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// FormatMinutes formats an effort like "7h30m"; zero renders as "-".
func FormatMinutes(minutes int) string {
	if minutes == 0 {
		return "-"
	}
	return parser.FormatMinutes(minutes)
}

// FormatTime formats a time in local timezone without seconds.
func FormatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}

// FormatDate formats a date only.
func FormatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

// FormatDay formats a grid column header like "Mon 02".
func FormatDay(t time.Time) string {
	return t.Format("Mon 02")
}

// FormatTimeOnly formats time without date.
func FormatTimeOnly(t time.Time) string {
	return t.Local().Format("15:04")
}
