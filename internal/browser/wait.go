package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrTimeout is returned when a wait condition did not hold in time
var ErrTimeout = errors.New("wait timed out")

var errNotReady = errors.New("condition not met")

// Condition is polled by WaitFor. A non-nil error stops the wait immediately.
type Condition func(ctx context.Context) (bool, error)

// WaitFor polls cond with exponential backoff until it holds or timeout elapses
func WaitFor(ctx context.Context, timeout time.Duration, cond Condition) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 0

	op := func() error {
		ok, err := cond(waitCtx)
		if err != nil {
			if waitCtx.Err() != nil {
				return errNotReady
			}
			return backoff.Permanent(err)
		}
		if !ok {
			return errNotReady
		}
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(b, waitCtx))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, errNotReady) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
	return err
}

// WaitStable waits until probe returns the same value on two consecutive polls,
// which is how a DOM that has stopped re-rendering is detected
func WaitStable(ctx context.Context, timeout, interval time.Duration, probe func(ctx context.Context) (int, error)) error {
	last := -1
	return WaitFor(ctx, timeout, func(ctx context.Context) (bool, error) {
		if err := Sleep(ctx, interval); err != nil {
			return false, err
		}
		n, err := probe(ctx)
		if err != nil {
			return false, err
		}
		stable := n == last
		last = n
		return stable, nil
	})
}

// Sleep waits for d or until ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
