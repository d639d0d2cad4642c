package testutil

import (
	"context"
	"sync"
)

// RecordingNotifier keeps every message it is given.
type RecordingNotifier struct {
	mu        sync.Mutex
	successes []string
	failures  []string
}

func (n *RecordingNotifier) NotifySuccess(_ context.Context, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, msg)
}

func (n *RecordingNotifier) NotifyFailure(_ context.Context, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, msg)
}

// Successes returns the success messages in order.
func (n *RecordingNotifier) Successes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.successes...)
}

// Failures returns the failure messages in order.
func (n *RecordingNotifier) Failures() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.failures...)
}
