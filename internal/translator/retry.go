package translator

import (
	"context"
	"errors"
	"time"

	"github.com/ximaera/fb2lingo/internal/apperrors"
)

// RetryPolicy bounds how often a batch request is repeated and how long to
// wait in between.
type RetryPolicy struct {
	MaxAttempts int
	// Backoff returns the pause after the given failed attempt (1-based).
	Backoff func(attempt int) time.Duration
	// Sleep waits for d or until ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy makes three attempts, pausing 5s after the first
// failure and 10s after the second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     LinearBackoff(5 * time.Second),
		Sleep:       sleepContext,
	}
}

// LinearBackoff waits step × attempt.
func LinearBackoff(step time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return step * time.Duration(attempt)
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.Backoff == nil {
		p.Backoff = def.Backoff
	}
	if p.Sleep == nil {
		p.Sleep = def.Sleep
	}
	return p
}

func (p RetryPolicy) wait(ctx context.Context, attempt int) error {
	return p.Sleep(ctx, p.Backoff(attempt))
}

func sleepContext(ctx context.Context, d time.Duration) error {
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

// retryableTransport reports whether a backend error may succeed on a new
// attempt. Unclassified errors count as transport failures; a per-request
// timeout is retried as long as the run itself is still alive.
func retryableTransport(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return false
	}
	return !apperrors.IsPermanent(err)
}
