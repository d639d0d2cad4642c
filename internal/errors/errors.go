// Package errors provides the error taxonomy for timegrid.
// It defines three main categories: UserError (validation, fixable by the user),
// SystemError (persistence and I/O failures) and RecoverableError (can be retried).
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for common conditions.
var (
	ErrEndBeforeStart   = errors.New("end time must be after start time")
	ErrInvalidHours     = errors.New("hours must be greater than zero")
	ErrPlannedInPast    = errors.New("planned time must start in the future")
	ErrEmptyRowKey      = errors.New("row must name a project or a user")
	ErrNotFound         = errors.New("allocation not found")
	ErrProjectNotFound  = errors.New("project not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrClientNotFound   = errors.New("client not found")
	ErrStaleWindow      = errors.New("allocation is outside the loaded window")
	ErrGestureActive    = errors.New("another gesture is in progress")
	ErrPersistence      = errors.New("persistence failure")
	ErrInvalidSID       = errors.New("invalid simplified ID")
	ErrInvalidColor     = errors.New("invalid color format")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrInvalidDuration  = errors.New("invalid duration")
	ErrInvalidURL       = errors.New("invalid URL")
	ErrTimeout          = errors.New("operation timed out")
	ErrDiskFull         = errors.New("disk full")
	ErrPermissionDenied = errors.New("permission denied")
	ErrDatabaseLocked   = errors.New("database is locked by another process")
	ErrDatabaseCorrupt  = errors.New("database corrupted")
)

// UserError represents an error that the user can fix.
// Every validation failure in the scheduling core is a UserError.
type UserError struct {
	Message    string // What happened
	Suggestion string // How to fix it
	Field      string // The field/input that caused the error (optional)
	Value      string // The invalid value (optional)
	Cause      error  // Sentinel the error matches with errors.Is (optional)
}

func (e *UserError) Error() string {
	msg := e.Message
	if e.Field != "" && e.Value != "" {
		msg = fmt.Sprintf("%s: '%s'", e.Message, e.Value)
	}
	return msg
}

func (e *UserError) Unwrap() error {
	return e.Cause
}

// NewUserError creates a new UserError.
func NewUserError(message, suggestion string) *UserError {
	return &UserError{
		Message:    message,
		Suggestion: suggestion,
	}
}

// NewUserErrorWithField creates a new UserError with field context.
func NewUserErrorWithField(field, value, message, suggestion string) *UserError {
	return &UserError{
		Message:    message,
		Field:      field,
		Value:      value,
		Suggestion: suggestion,
	}
}

// NewValidationError creates a UserError for field that matches sentinel.
func NewValidationError(sentinel error, field, value string) *UserError {
	return &UserError{
		Message:    sentinel.Error(),
		Field:      field,
		Value:      value,
		Suggestion: GetSuggestion(sentinel),
		Cause:      sentinel,
	}
}

// SystemError represents a failure the user cannot directly fix.
// Persistence collaborator failures surface as SystemError.
type SystemError struct {
	Message string // What happened
	Cause   error  // The underlying error
	Op      string // The operation that failed (optional)
}

func (e *SystemError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s during %s", e.Message, e.Op)
	}
	return e.Message
}

func (e *SystemError) Unwrap() error {
	return e.Cause
}

// NewSystemError creates a new SystemError.
func NewSystemError(message string, cause error) *SystemError {
	return &SystemError{
		Message: message,
		Cause:   cause,
	}
}

// NewSystemErrorWithOp creates a new SystemError with operation context.
func NewSystemErrorWithOp(op, message string, cause error) *SystemError {
	return &SystemError{
		Message: message,
		Cause:   cause,
		Op:      op,
	}
}

// NewPersistenceError wraps a backend failure for op.
func NewPersistenceError(op string, cause error) *SystemError {
	return &SystemError{
		Message: ErrPersistence.Error(),
		Cause:   fmt.Errorf("%w: %w", ErrPersistence, cause),
		Op:      op,
	}
}

// RecoverableError represents an error that can be automatically retried.
// Window reloads after a failed write are retried until they succeed or give up.
type RecoverableError struct {
	Message    string // What happened
	Cause      error  // The underlying error
	RetryCount int    // Number of retries attempted so far
	MaxRetries int    // Maximum number of retries allowed
	CanRetry   bool   // Whether retry is still possible
}

func (e *RecoverableError) Error() string {
	if e.RetryCount > 0 {
		return fmt.Sprintf("%s (attempt %d/%d)", e.Message, e.RetryCount, e.MaxRetries)
	}
	return e.Message
}

func (e *RecoverableError) Unwrap() error {
	return e.Cause
}

// NewRecoverableError creates a new RecoverableError.
func NewRecoverableError(message string, cause error, maxRetries int) *RecoverableError {
	return &RecoverableError{
		Message:    message,
		Cause:      cause,
		MaxRetries: maxRetries,
		CanRetry:   true,
	}
}

// IncrementRetry increments the retry count and updates CanRetry.
func (e *RecoverableError) IncrementRetry() {
	e.RetryCount++
	e.CanRetry = e.RetryCount < e.MaxRetries
}

// IsUserError checks if an error is a UserError.
func IsUserError(err error) bool {
	var ue *UserError
	return errors.As(err, &ue)
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	return IsUserError(err)
}

// IsSystemError checks if an error is a SystemError.
func IsSystemError(err error) bool {
	var se *SystemError
	return errors.As(err, &se)
}

// IsRecoverableError checks if an error is a RecoverableError.
func IsRecoverableError(err error) bool {
	var re *RecoverableError
	return errors.As(err, &re)
}

// IsNotFound reports whether err means the record does not exist,
// as opposed to the backend failing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// AsUserError extracts a UserError from an error chain.
func AsUserError(err error) (*UserError, bool) {
	var ue *UserError
	ok := errors.As(err, &ue)
	return ue, ok
}

// AsSystemError extracts a SystemError from an error chain.
func AsSystemError(err error) (*SystemError, bool) {
	var se *SystemError
	ok := errors.As(err, &se)
	return se, ok
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted additional context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is is re-exported from the standard errors package for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is re-exported from the standard errors package for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
