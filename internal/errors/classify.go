package errors

import (
	"errors"
	"syscall"
)

// Category decides how an error is shown and whether the CLI exits as a user
// or a system failure.
type Category int

const (
	CategoryUnknown Category = iota
	// CategoryUser is a rejected request: bad input, a missing record, a
	// gesture the loaded window no longer covers.
	CategoryUser
	// CategorySystem is a failing store or filesystem.
	CategorySystem
	// CategoryRecoverable clears up by itself and is worth retrying.
	CategoryRecoverable
)

var categoryNames = map[Category]string{
	CategoryUser:        "user",
	CategorySystem:      "system",
	CategoryRecoverable: "recoverable",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

// sentinelCategories places the package sentinels. Lookups go through
// errors.Is, so wrapped sentinels classify too.
var sentinelCategories = []struct {
	err      error
	category Category
}{
	{ErrEndBeforeStart, CategoryUser},
	{ErrInvalidHours, CategoryUser},
	{ErrPlannedInPast, CategoryUser},
	{ErrEmptyRowKey, CategoryUser},
	{ErrNotFound, CategoryUser},
	{ErrProjectNotFound, CategoryUser},
	{ErrUserNotFound, CategoryUser},
	{ErrClientNotFound, CategoryUser},
	{ErrStaleWindow, CategoryUser},
	{ErrGestureActive, CategoryUser},
	{ErrInvalidSID, CategoryUser},
	{ErrInvalidColor, CategoryUser},
	{ErrInvalidTimestamp, CategoryUser},
	{ErrInvalidDuration, CategoryUser},
	{ErrInvalidURL, CategoryUser},
	{ErrPersistence, CategorySystem},
	{ErrDiskFull, CategorySystem},
	{ErrPermissionDenied, CategorySystem},
	{ErrDatabaseCorrupt, CategorySystem},
	{ErrTimeout, CategoryRecoverable},
	{ErrDatabaseLocked, CategoryRecoverable},
}

var errnoCategories = map[syscall.Errno]Category{
	syscall.ENOSPC:       CategorySystem,
	syscall.EACCES:       CategorySystem,
	syscall.EPERM:        CategorySystem,
	syscall.ENOENT:       CategorySystem,
	syscall.EIO:          CategorySystem,
	syscall.EROFS:        CategorySystem,
	syscall.EAGAIN:       CategoryRecoverable,
	syscall.EINTR:        CategoryRecoverable,
	syscall.ETIMEDOUT:    CategoryRecoverable,
	syscall.ECONNREFUSED: CategoryRecoverable,
	syscall.ECONNRESET:   CategoryRecoverable,
}

// Classify determines the category of err from its typed wrapper, then the
// sentinels it wraps, then any errno underneath.
func Classify(err error) Category {
	switch {
	case err == nil:
		return CategoryUnknown
	case IsUserError(err):
		return CategoryUser
	case IsSystemError(err):
		return CategorySystem
	case IsRecoverableError(err):
		return CategoryRecoverable
	}
	for _, s := range sentinelCategories {
		if errors.Is(err, s.err) {
			return s.category
		}
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errnoCategories[errno]
	}
	return CategoryUnknown
}

// ClassifiedError pins the category of an error whose chain would classify
// differently.
type ClassifiedError struct {
	Err      error
	Category Category
}

func (e *ClassifiedError) Error() string { return e.Err.Error() }

func (e *ClassifiedError) Unwrap() error { return e.Err }

// WithCategory wraps err with an explicit category. A nil err stays nil.
func WithCategory(err error, category Category) error {
	if err == nil {
		return nil
	}
	return &ClassifiedError{Err: err, Category: category}
}

// GetCategory returns the pinned category of err, or Classify's verdict.
func GetCategory(err error) Category {
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Category
	}
	return Classify(err)
}

// FormatByCategory renders err for the terminal. User errors read as an
// instruction, system errors are labelled and recoverable ones say they retry.
func FormatByCategory(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	suggestion := GetSuggestion(err)
	switch GetCategory(err) {
	case CategoryUser:
		if suggestion != "" {
			return msg + "\n\nTry: " + suggestion
		}
	case CategorySystem:
		msg = "System error: " + msg
		if suggestion != "" {
			return msg + "\n\n" + suggestion
		}
	case CategoryRecoverable:
		return msg + " (will retry automatically)"
	}
	return msg
}
