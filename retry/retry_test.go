package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ridge/repoindex/test"
	"github.com/stretchr/testify/require"
)

func TestDo(t *testing.T) {
	ctx := test.Context(t)

	n := 0
	err := Do(ctx, Fixed{}, func() error {
		n++
		if n == 10 {
			return errors.New("ten")
		}
		return Transient(fmt.Errorf("%d", n))
	})
	require.EqualError(t, err, "ten")
	require.False(t, IsTransient(err))

	n = 0
	v, err := Do1(ctx, Fixed{}, func() (int, error) {
		n++
		if n < 3 {
			return 0, Transient(errors.New("not yet"))
		}
		return n, nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, v)

	n = 0
	err = Do(ctx, Fixed{Interval: time.Millisecond, MaxAttempts: 4}, func() error {
		n++
		return Transient(errors.New("always"))
	})
	require.EqualError(t, err, "always")
	require.Equal(t, 4, n)
	require.Nil(t, Transient(nil))
}

func TestCanceled(t *testing.T) {
	ctx := test.Context(t)
	ctx, cancel := context.WithCancel(ctx)
	n := 0
	err := Do(ctx, Fixed{Interval: time.Hour}, func() error {
		n++
		cancel()
		return Transient(errors.New("again"))
	})
	require.EqualError(t, err, "again")
	require.Equal(t, 1, n)
}

func TestExponential(t *testing.T) {
	d := Exponential{Min: time.Second, Max: 5 * time.Second, Scale: 2}.Delays()
	var got []time.Duration
	for i := 0; i < 6; i++ {
		delay, ok := d()
		require.True(t, ok)
		got = append(got, delay)
	}
	require.Equal(t, []time.Duration{0, time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}, got)
}
