// Package retry runs operations in bounded retry loops. Delays come from
// cenkalti/backoff policies; the loop itself keeps an explicit attempt
// counter so the bound never depends on elapsed time.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrExhausted wraps the last error once every attempt has failed.
var ErrExhausted = errors.New("retries exhausted")

// Notify is called before each retry with the retry number (1-based), the
// delay about to be waited and the error that caused it.
type Notify func(retry int, delay time.Duration, err error)

// Loop describes one retry policy.
type Loop struct {
	// MaxRetries bounds the retries after the first attempt.
	MaxRetries int
	// NewBackOff returns a fresh delay schedule per Run.
	NewBackOff func() backoff.BackOff
	// Retryable decides whether an error is worth another attempt. Nil
	// retries every error.
	Retryable func(error) bool
	Notify    Notify
}

// Exponential returns a loop whose delay starts at base, doubles each retry
// and never exceeds max. There is no jitter.
func Exponential(maxRetries int, base, max time.Duration) Loop {
	return Loop{
		MaxRetries: maxRetries,
		NewBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = base
			b.Multiplier = 2.0
			b.RandomizationFactor = 0
			b.MaxInterval = max
			b.MaxElapsedTime = 0
			b.Reset()
			return b
		},
	}
}

// Fixed returns a loop that waits the same delay before every retry.
func Fixed(maxRetries int, delay time.Duration) Loop {
	return Loop{
		MaxRetries: maxRetries,
		NewBackOff: func() backoff.BackOff {
			return backoff.NewConstantBackOff(delay)
		},
	}
}

// If restricts retries to errors accepted by retryable.
func (l Loop) If(retryable func(error) bool) Loop {
	l.Retryable = retryable
	return l
}

// WithNotify sets the retry callback.
func (l Loop) WithNotify(n Notify) Loop {
	l.Notify = n
	return l
}

// Run calls fn until it succeeds, returns a non-retryable error, the retry
// budget is spent or ctx is done. It returns the number of attempts made.
// When the budget is spent the returned error wraps both ErrExhausted and
// the last error.
func (l Loop) Run(ctx context.Context, fn func(context.Context) error) (int, error) {
	var b backoff.BackOff = &backoff.ZeroBackOff{}
	if l.NewBackOff != nil {
		b = l.NewBackOff()
	}

	var lastErr error
	for attempt := 0; attempt <= l.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := b.NextBackOff()
			if delay == backoff.Stop {
				break
			}
			if l.Notify != nil {
				l.Notify(attempt, delay, lastErr)
			}
			if err := sleep(ctx, delay); err != nil {
				return attempt, err
			}
		}

		err := fn(ctx)
		if err == nil {
			return attempt + 1, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return attempt + 1, ctx.Err()
		}
		if l.Retryable != nil && !l.Retryable(err) {
			return attempt + 1, err
		}
	}

	return l.MaxRetries + 1, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, l.MaxRetries+1, lastErr)
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
