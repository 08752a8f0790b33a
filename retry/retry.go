// Package retry repeats operations that fail with transient errors.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/ridge/repoindex/tlog"
	"go.uber.org/zap"
)

// Delays yields the delay before each attempt, the first one included, and
// false once no more attempts should be made. It must yield true on the
// first call.
type Delays func() (time.Duration, bool)

// Policy produces independent sequences of delays
type Policy interface {
	Delays() Delays
}

// Fixed waits the same time between attempts
type Fixed struct {
	Interval    time.Duration
	MaxAttempts int // 0 means unlimited
}

// Delays implements Policy
func (f Fixed) Delays() Delays {
	attempt := 0
	return func() (time.Duration, bool) {
		attempt++
		switch {
		case attempt == 1:
			return 0, true
		case f.MaxAttempts > 0 && attempt > f.MaxAttempts:
			return 0, false
		default:
			return f.Interval, true
		}
	}
}

// Exponential multiplies the delay by Scale after every attempt, up to Max
type Exponential struct {
	Min   time.Duration
	Max   time.Duration
	Scale float64
}

// Delays implements Policy
func (e Exponential) Delays() Delays {
	next := time.Duration(0)
	return func() (time.Duration, bool) {
		d := next
		switch {
		case next == 0:
			next = e.Min
		default:
			next = time.Duration(float64(next) * e.Scale)
			if next > e.Max {
				next = e.Max
			}
		}
		return d, true
	}
}

// DefaultExponential backs off from 10ms to a minute
var DefaultExponential = Exponential{Min: 10 * time.Millisecond, Max: time.Minute, Scale: 2}

type transient struct {
	err error
}

func (t transient) Error() string {
	return t.err.Error()
}

func (t transient) Unwrap() error {
	return t.err
}

// Transient marks an error as worth another attempt. Returns nil for nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return transient{err: err}
}

// IsTransient reports whether err was marked by Transient
func IsTransient(err error) bool {
	var t transient
	return errors.As(err, &t)
}

// Do calls f until it succeeds, returns an error not marked Transient, the
// policy gives up or the context is closed. The last error is returned
// unwrapped.
func Do(ctx context.Context, p Policy, f func() error) error {
	logger := tlog.Get(ctx)
	delays := p.Delays()
	started := time.Now()
	var last transient
	for attempt := 1; ; attempt++ {
		delay, ok := delays()
		if !ok {
			logger.Debug("Giving up", zap.Int("attempts", attempt-1), zap.Error(last.err),
				zap.Duration("duration", time.Since(started)))
			return last.err
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}

		err := f()
		if !errors.As(err, &last) {
			if attempt > 1 && err == nil {
				logger.Debug("Succeeded after retrying", zap.Int("attempts", attempt),
					zap.Duration("duration", time.Since(started)))
			}
			return err
		}
		if ctx.Err() != nil {
			return last.err
		}
		logger.Debug("Will retry", zap.Int("attempt", attempt), zap.Error(last.err))
	}
}

// Do1 is Do for functions returning a value
func Do1[T any](ctx context.Context, p Policy, f func() (T, error)) (T, error) {
	var res T
	err := Do(ctx, p, func() error {
		var err error
		res, err = f()
		return err
	})
	return res, err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
