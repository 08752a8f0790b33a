// Package test holds helpers for tests of code that takes its logger from
// the context.
package test

import (
	"context"
	"testing"
	"time"

	"github.com/ridge/repoindex/tlog"
)

// Context returns a context carrying a test logger, canceled when the test
// ends
func Context(t testing.TB) context.Context {
	ctx, cancel := context.WithCancel(tlog.WithLogger(context.Background(), tlog.NewForTesting(t)))
	t.Cleanup(cancel)
	return ctx
}

// ContextWithTimeout is Context closed with context.DeadlineExceeded after
// timeout
func ContextWithTimeout(t testing.TB, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(Context(t), timeout)
	t.Cleanup(cancel)
	return ctx
}
