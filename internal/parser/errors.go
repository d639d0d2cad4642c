package parser

import (
	"fmt"
	"strings"

	"github.com/manav03panchal/timegrid/internal/errors"
)

// TimeParseError represents a parsing error with example inputs.
type TimeParseError struct {
	Input      string
	Field      string
	Message    string
	Examples   []string
	Suggestion string
}

func (e *TimeParseError) Error() string {
	return fmt.Sprintf("invalid %s '%s': %s", e.Field, e.Input, e.Message)
}

// FormatWithExamples returns the error message with example suggestions.
func (e *TimeParseError) FormatWithExamples() string {
	var sb strings.Builder
	sb.WriteString(e.Error())

	if len(e.Examples) > 0 {
		sb.WriteString("\n\nValid examples:\n")
		for _, ex := range e.Examples {
			sb.WriteString("  - ")
			sb.WriteString(ex)
			sb.WriteString("\n")
		}
	}

	if e.Suggestion != "" {
		sb.WriteString("\n")
		sb.WriteString(e.Suggestion)
	}

	return sb.String()
}

// ToUserError converts the parse error for display by the command layer.
func (e *TimeParseError) ToUserError() *errors.UserError {
	suggestion := e.Suggestion
	if suggestion == "" && len(e.Examples) > 0 {
		suggestion = "Try: " + strings.Join(e.Examples[:min(3, len(e.Examples))], ", ")
	}
	return errors.NewUserErrorWithField(e.Field, e.Input, e.Message, suggestion)
}

var (
	// HoursExamples are accepted effort entries.
	HoursExamples = []string{"8", "2.5", "1h30m", "90m", "1:30", "6 hours"}

	// TimestampExamples are accepted instants.
	TimestampExamples = []string{"9am", "tomorrow 14:00", "2024-03-04 09:30", "monday 10am", "+2d"}

	// DateExamples are accepted dates.
	DateExamples = []string{"today", "2024-03-04", "next monday", "this week", "-1w"}

	// RowExamples are accepted row references.
	RowExamples = []string{"acme/alice", "acme", "@alice"}
)

// NewDurationError reports an unparseable duration.
func NewDurationError(input string) *TimeParseError {
	return &TimeParseError{
		Input:      input,
		Field:      "duration",
		Message:    "could not parse duration",
		Examples:   HoursExamples,
		Suggestion: "Durations are hours (h) and minutes (m); a bare number is hours.",
	}
}

// NewHoursError reports an unparseable or non-positive effort.
func NewHoursError(input string) *TimeParseError {
	return &TimeParseError{
		Input:    input,
		Field:    "hours",
		Message:  "hours must be a positive amount of time",
		Examples: HoursExamples,
	}
}

// NewTimestampError reports an unparseable instant.
func NewTimestampError(input string) *TimeParseError {
	return &TimeParseError{
		Input:      input,
		Field:      "time",
		Message:    "could not parse time",
		Examples:   TimestampExamples,
		Suggestion: "Try natural language like '9am', 'tomorrow 14:00' or an ISO date.",
	}
}

// NewDateError reports an unparseable date.
func NewDateError(input string) *TimeParseError {
	return &TimeParseError{
		Input:    input,
		Field:    "date",
		Message:  "could not parse date",
		Examples: DateExamples,
	}
}

// NewRowError reports a malformed row reference.
func NewRowError(input string) *TimeParseError {
	return &TimeParseError{
		Input:      input,
		Field:      "row",
		Message:    "expected project/user, project or @user",
		Examples:   RowExamples,
		Suggestion: "Project and user ids may contain letters, digits, '-', '_' and '.'.",
	}
}
