package validate

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeName trims a display name and drops control characters.
func SanitizeName(name string) string {
	return strings.TrimSpace(StripControlChars(name))
}

// SanitizeLabel turns free text into a single-line label: line breaks and
// tabs become spaces, runs of spaces collapse and other control characters go.
func SanitizeLabel(label string) string {
	label = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, label)
	return strings.Join(strings.Fields(label), " ")
}

// StripControlChars removes all control characters except newline and tab.
func StripControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, s)
}

// TruncateString shortens s to at most maxLen runes, ending in "..." when cut.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
