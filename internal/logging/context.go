package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
)

type scopeKey struct{}

// scope is what a log line is about: the commit it belongs to (shared by the
// commit and its background persistence call), the allocation it touches and
// the window loaded at the time.
type scope struct {
	commitID string
	allocID  string
	window   string
}

func scopeOf(ctx context.Context) scope {
	if ctx == nil {
		return scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

func withScope(ctx context.Context, s scope) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, scopeKey{}, s)
}

// NewCommitID returns 16 hex characters.
func NewCommitID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// WithCommit tags ctx with a fresh commit id unless it already carries one.
func WithCommit(ctx context.Context) context.Context {
	if CommitID(ctx) != "" {
		return ctx
	}
	return WithCommitID(ctx, NewCommitID())
}

// WithCommitID tags ctx with id.
func WithCommitID(ctx context.Context, id string) context.Context {
	s := scopeOf(ctx)
	s.commitID = id
	return withScope(ctx, s)
}

// CommitID returns the commit id of ctx, or "".
func CommitID(ctx context.Context) string {
	return scopeOf(ctx).commitID
}

// WithAllocation tags ctx with the allocation id loggers should report.
func WithAllocation(ctx context.Context, id string) context.Context {
	s := scopeOf(ctx)
	s.allocID = id
	return withScope(ctx, s)
}

// WithWindow tags ctx with the loaded window.
func WithWindow(ctx context.Context, window fmt.Stringer) context.Context {
	s := scopeOf(ctx)
	s.window = window.String()
	return withScope(ctx, s)
}

// ContextLogger logs with the scope of its context attached.
type ContextLogger struct {
	ctx    context.Context
	logger *slog.Logger
}

// FromContext returns a logger carrying the commit id, allocation id and
// window tagged on ctx. Untagged fields are left out.
func FromContext(ctx context.Context) *ContextLogger {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := Logger()
	s := scopeOf(ctx)
	var attrs []any
	if s.commitID != "" {
		attrs = append(attrs, KeyCommitID, s.commitID)
	}
	if s.allocID != "" {
		attrs = append(attrs, KeyAllocID, s.allocID)
	}
	if s.window != "" {
		attrs = append(attrs, KeyWindow, s.window)
	}
	if len(attrs) > 0 {
		logger = logger.With(attrs...)
	}
	return &ContextLogger{ctx: ctx, logger: logger}
}

func (cl *ContextLogger) Info(msg string, args ...any) {
	cl.logger.InfoContext(cl.ctx, msg, args...)
}

func (cl *ContextLogger) Debug(msg string, args ...any) {
	cl.logger.DebugContext(cl.ctx, msg, args...)
}

func (cl *ContextLogger) Warn(msg string, args ...any) {
	cl.logger.WarnContext(cl.ctx, msg, args...)
}

func (cl *ContextLogger) Error(msg string, args ...any) {
	cl.logger.ErrorContext(cl.ctx, msg, args...)
}
