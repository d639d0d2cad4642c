package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// durationPattern matches expressions like "2h", "30m", "1h30m", "2.5 hours".
var durationPattern = regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?)\s*(h|hr|hrs|hour|hours|m|min|mins|minute|minutes)?\s*(?:(\d+(?:\.\d+)?)\s*(m|min|mins|minute|minutes))?$`)

// ParseDuration parses a human-readable duration. A bare number is hours.
// Supported forms:
//   - "2h" or "2 hours"
//   - "30m" or "30 minutes"
//   - "1h30m" or "1 hour 30 minutes"
//   - "2.5h" or "2.5"
//   - "h:mm" like "1:30"
func ParseDuration(input string) (time.Duration, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, NewDurationError(input)
	}

	if d, err := time.ParseDuration(input); err == nil {
		if d <= 0 {
			return 0, NewDurationError(input)
		}
		return d, nil
	}

	if h, m, ok := strings.Cut(input, ":"); ok {
		hours, err1 := strconv.Atoi(h)
		mins, err2 := strconv.Atoi(m)
		if err1 != nil || err2 != nil || hours < 0 || mins < 0 || mins >= 60 || hours+mins == 0 {
			return 0, NewDurationError(input)
		}
		return time.Duration(hours)*time.Hour + time.Duration(mins)*time.Minute, nil
	}

	matches := durationPattern.FindStringSubmatch(input)
	if matches == nil {
		return 0, NewDurationError(input)
	}

	var total time.Duration
	value, _ := strconv.ParseFloat(matches[1], 64)
	total += unitToDuration(value, strings.ToLower(matches[2]))
	if matches[3] != "" {
		value, _ := strconv.ParseFloat(matches[3], 64)
		total += unitToDuration(value, strings.ToLower(matches[4]))
	}

	if total <= 0 {
		return 0, NewDurationError(input)
	}
	return total, nil
}

func unitToDuration(value float64, unit string) time.Duration {
	switch unit {
	case "m", "min", "mins", "minute", "minutes":
		return time.Duration(value * float64(time.Minute))
	default:
		return time.Duration(value * float64(time.Hour))
	}
}

// ParseHours parses an effort entry into hours, rounded to the minute.
func ParseHours(input string) (float64, error) {
	d, err := ParseDuration(input)
	if err != nil {
		return 0, NewHoursError(input)
	}
	minutes := math.Round(d.Minutes())
	if minutes < 1 {
		return 0, NewHoursError(input)
	}
	return minutes / 60, nil
}

// FormatHours renders hours compactly: "8h", "1h30m", "45m".
func FormatHours(hours float64) string {
	return FormatMinutes(int(math.Round(hours * 60)))
}

// FormatMinutes renders a minute count the same way FormatHours does.
func FormatMinutes(minutes int) string {
	h, m := minutes/60, minutes%60
	switch {
	case h == 0:
		return strconv.Itoa(m) + "m"
	case m == 0:
		return strconv.Itoa(h) + "h"
	default:
		return strconv.Itoa(h) + "h" + strconv.Itoa(m) + "m"
	}
}
