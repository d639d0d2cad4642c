package parser

import (
	"strings"
	"unicode"

	"github.com/manav03panchal/timegrid/internal/model"
	"github.com/manav03panchal/timegrid/internal/validate"
)

// ConvertToSID converts a display name to a valid SID.
// Example: "My Client Project!" -> "my-client-project"
func ConvertToSID(displayName string) string {
	result := strings.ToLower(strings.ReplaceAll(displayName, " ", "-"))

	var sb strings.Builder
	for _, r := range result {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.' {
			sb.WriteRune(r)
		}
	}
	result = sb.String()

	for strings.Contains(result, "--") {
		result = strings.ReplaceAll(result, "--", "-")
	}
	result = strings.Trim(result, "-")

	if len(result) > validate.MaxSIDLength {
		result = strings.TrimRight(result[:validate.MaxSIDLength], "-")
	}
	return result
}

// NormalizeSID returns input unchanged when it is already a valid SID and
// its converted form otherwise.
func NormalizeSID(input string) string {
	input = strings.TrimSpace(input)
	if validate.SID(input) == nil {
		return input
	}
	return ConvertToSID(input)
}

// ParseRowKey parses "project/user", "project" or "@user".
func ParseRowKey(input string) (model.RowKey, error) {
	input = strings.TrimSpace(input)
	var key model.RowKey
	switch {
	case strings.HasPrefix(input, "@"):
		key.Owner = input[1:]
	default:
		project, owner, _ := strings.Cut(input, "/")
		key.Project, key.Owner = strings.TrimSpace(project), strings.TrimSpace(owner)
		if strings.Contains(input, "/") && key.Owner == "" {
			return model.RowKey{}, NewRowError(input)
		}
	}
	if key.IsZero() {
		return model.RowKey{}, NewRowError(input)
	}
	for _, sid := range []string{key.Project, key.Owner} {
		if sid != "" && validate.SID(sid) != nil {
			return model.RowKey{}, NewRowError(input)
		}
	}
	return key, nil
}
