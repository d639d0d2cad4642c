package runtime

import (
	"github.com/manav03panchal/timegrid/internal/errors"
	"github.com/manav03panchal/timegrid/internal/parser"
)

// ErrStaleWindow is returned by Submit when the reconciler dropped the request.
var ErrStaleWindow = errors.ErrStaleWindow

// Exit codes.
const (
	ExitOK     = 0
	ExitUser   = 1
	ExitSystem = 2
)

// Problem is an error prepared for display.
type Problem struct {
	Message    string
	Field      string
	Suggestion string
	Category   errors.Category
}

// Explain converts err into a Problem. Parse errors become user errors with
// examples; everything else is classified by the errors package.
func Explain(err error) Problem {
	var perr *parser.TimeParseError
	if errors.As(err, &perr) {
		err = perr.ToUserError()
	}
	p := Problem{
		Message:    err.Error(),
		Suggestion: errors.GetSuggestion(err),
		Category:   errors.GetCategory(err),
	}
	if ue, ok := errors.AsUserError(err); ok {
		p.Field = ue.Field
	}
	if p.Suggestion == "" {
		p.Suggestion = errors.GetCategorySuggestion(err)
	}
	return p
}

// FormatError formats an error with its suggestion, if any.
func FormatError(err error) string {
	var perr *parser.TimeParseError
	if errors.As(err, &perr) {
		return perr.FormatWithExamples()
	}
	return errors.FormatByCategory(err)
}

// ExitCode maps err to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, new(*parser.TimeParseError)):
		return ExitUser
	case errors.GetCategory(err) == errors.CategoryUser:
		return ExitUser
	default:
		return ExitSystem
	}
}
