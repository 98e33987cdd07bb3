// Package clock provides the sleepers used between request retries.
package clock

import (
	"context"
	"time"
)

// SleepWithContext waits for the duration or returns early if the context is canceled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
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

// ContextSleeper yields to the context while waiting: a canceled context
// ends the wait and the caller's retry loop with it.
type ContextSleeper struct{}

func (ContextSleeper) Sleep(ctx context.Context, d time.Duration) error {
	return SleepWithContext(ctx, d)
}

// BlockingSleeper holds the calling goroutine for the full duration and
// ignores the context.
type BlockingSleeper struct{}

func (BlockingSleeper) Sleep(_ context.Context, d time.Duration) error {
	time.Sleep(d)
	return nil
}

// SleeperFunc adapts a function to the sleeper method set, letting callers
// plug in their own timer.
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}
