// Package parser turns human input from flags and prompts into instants,
// date ranges, hours and row references.
package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/markusmobius/go-dateparser"

	"github.com/manav03panchal/timegrid/internal/model"
)

// periodRegex matches period expressions like "this week", "last month".
var periodRegex = regexp.MustCompile(`(?i)^(this|current|last|previous|next)\s+(day|week|month|year)$`)

// offsetRegex matches day offsets like "+2d", "-1w".
var offsetRegex = regexp.MustCompile(`^([+-]\d+)([dw])$`)

// ParseTimestamp parses a natural language timestamp relative to now.
// "now" and the empty string return now. Period expressions resolve to the
// start of the period; offsets like "+2d" keep the time of day.
func ParseTimestamp(input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" || strings.EqualFold(input, "now") {
		return now, nil
	}

	if m := offsetRegex.FindStringSubmatch(input); m != nil {
		n, _ := strconv.Atoi(m[1])
		if m[2] == "w" {
			n *= 7
		}
		return now.AddDate(0, 0, n), nil
	}

	if m := periodRegex.FindStringSubmatch(input); m != nil {
		return PeriodRange(m[1]+" "+m[2], now, time.Monday).Start, nil
	}

	cfg := &dateparser.Configuration{
		CurrentTime: now,
	}
	result, err := dateparser.Parse(cfg, input)
	if err != nil {
		return time.Time{}, NewTimestampError(input)
	}
	return result.Time, nil
}

// ParseDate parses input like ParseTimestamp and truncates it to midnight.
func ParseDate(input string, now time.Time) (time.Time, error) {
	t, err := ParseTimestamp(input, now)
	if err != nil {
		return time.Time{}, NewDateError(input)
	}
	return model.Midnight(t), nil
}

// PeriodRange returns the half-open range named by period, relative to now.
// Weeks begin on weekStart. Unknown periods resolve to today.
func PeriodRange(period string, now time.Time, weekStart time.Weekday) model.DateRange {
	period = strings.ToLower(strings.TrimSpace(period))
	today := model.Midnight(now)

	step := 0
	switch {
	case strings.HasPrefix(period, "last"), strings.HasPrefix(period, "previous"):
		step = -1
	case strings.HasPrefix(period, "next"):
		step = 1
	}

	var start, end time.Time
	switch {
	case period == "today":
		start = today
		end = start.AddDate(0, 0, 1)
	case period == "yesterday":
		start = today.AddDate(0, 0, -1)
		end = today
	case period == "tomorrow":
		start = today.AddDate(0, 0, 1)
		end = start.AddDate(0, 0, 1)
	case strings.HasSuffix(period, "week"):
		start = model.WeekStart(now, weekStart).AddDate(0, 0, 7*step)
		end = start.AddDate(0, 0, 7)
	case strings.HasSuffix(period, "month"):
		start = time.Date(now.Year(), now.Month()+time.Month(step), 1, 0, 0, 0, 0, now.Location())
		end = start.AddDate(0, 1, 0)
	case strings.HasSuffix(period, "year"):
		start = time.Date(now.Year()+step, 1, 1, 0, 0, 0, 0, now.Location())
		end = start.AddDate(1, 0, 0)
	default:
		start = today.AddDate(0, 0, step)
		end = start.AddDate(0, 0, 1)
	}
	return model.DateRange{Start: start, End: end}
}

// IsPeriod reports whether s names a period PeriodRange understands.
func IsPeriod(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "today", "yesterday", "tomorrow":
		return true
	}
	return periodRegex.MatchString(s)
}
