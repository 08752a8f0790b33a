package test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ridge/parallel"
	"github.com/stretchr/testify/require"
)

// Group returns a parallel.Group running in a test context. At the end of
// the test the group is stopped; any error other than context.Canceled
// fails the test.
func Group(t testing.TB) *parallel.Group {
	return group(t, Context(t))
}

// GroupWithTimeout is Group whose context expires after timeout
func GroupWithTimeout(t testing.TB, timeout time.Duration) *parallel.Group {
	return group(t, ContextWithTimeout(t, timeout))
}

func group(t testing.TB, ctx context.Context) *parallel.Group {
	g := parallel.NewGroup(ctx)
	t.Cleanup(func() {
		g.Exit(nil)
		if err := g.Wait(); !errors.Is(err, context.Canceled) {
			require.NoError(t, err)
		}
	})
	return g
}
