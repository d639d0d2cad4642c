package errors

import "errors"

// Suggestions maps common errors to helpful suggestions.
var Suggestions = map[error]string{
	ErrEndBeforeStart:   "Drag or enter an end that is later than the start.",
	ErrInvalidHours:     "Enter a positive number of hours, e.g. '8' or '7.5h'.",
	ErrPlannedInPast:    "Planned time must start in the future; log past time as reported.",
	ErrEmptyRowKey:      "Pick a project row or a member row before creating time.",
	ErrStaleWindow:      "Navigate back to the week that holds the allocation and try again.",
	ErrGestureActive:    "Finish or cancel the current drag first.",
	ErrNotFound:         "Use 'timegrid alloc ls' to see allocations in the current window.",
	ErrProjectNotFound:  "Use 'timegrid project ls' to see available projects.",
	ErrUserNotFound:     "Use 'timegrid user ls' to see available users.",
	ErrClientNotFound:   "Use 'timegrid client ls' to see available clients.",
	ErrInvalidSID:       "SIDs must be alphanumeric with dashes, underscores, or periods (max 32 chars).",
	ErrInvalidColor:     "Use hex color format like '#FF5733' or '#00FF00'.",
	ErrInvalidTimestamp: "Try formats like 'tomorrow 9am', 'next monday', or '2024-01-03 14:00'.",
	ErrInvalidDuration:  "Try formats like '1h30m', '90m', '2h', or '8'.",
	ErrInvalidURL:       "Provide a valid URL starting with https:// (or http:// for localhost).",

	ErrPersistence:      "The change was not saved; the window was reloaded from the server.",
	ErrDiskFull:         "Free up disk space and try again.",
	ErrTimeout:          "The operation took too long. Try again or check your network connection.",
	ErrPermissionDenied: "Check file permissions in your data directory (~/.local/share/timegrid/).",
	ErrDatabaseLocked:   "Another timegrid process holds the database. Close it and try again.",
	ErrDatabaseCorrupt:  "Run 'timegrid db check' and restore from 'timegrid db backup' if needed.",
}

// GetSuggestion returns a suggestion for an error, if available.
// It walks the error chain to find matching suggestions.
func GetSuggestion(err error) string {
	if err == nil {
		return ""
	}

	// Check exact match first
	for knownErr, suggestion := range Suggestions {
		if errors.Is(err, knownErr) {
			return suggestion
		}
	}

	// Check if it's a UserError with a suggestion
	if ue, ok := AsUserError(err); ok && ue.Suggestion != "" {
		return ue.Suggestion
	}

	return ""
}

// GetCategorySuggestion returns a generic suggestion based on error category.
func GetCategorySuggestion(err error) string {
	if IsUserError(err) {
		return "Check your input and try again. Use --help for usage information."
	}
	if IsSystemError(err) {
		return "This is a system error. Check system resources and try again."
	}
	if IsRecoverableError(err) {
		return "This error may resolve itself. The operation will be retried automatically."
	}
	return ""
}
