package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBusy = errors.New("busy")

func TestExponential_DelaysDoubleAndCap(t *testing.T) {
	var delays []time.Duration
	loop := Exponential(5, time.Millisecond, 4*time.Millisecond).
		WithNotify(func(_ int, d time.Duration, _ error) { delays = append(delays, d) })

	attempts, err := loop.Run(context.Background(), func(context.Context) error { return errBusy })

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, errBusy)
	assert.Equal(t, 6, attempts)
	assert.Equal(t, []time.Duration{
		time.Millisecond,
		2 * time.Millisecond,
		4 * time.Millisecond,
		4 * time.Millisecond,
		4 * time.Millisecond,
	}, delays)
}

func TestRun_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	attempts, err := Fixed(3, time.Millisecond).Run(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errBusy
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestRun_NonRetryableStopsImmediately(t *testing.T) {
	fatal := errors.New("bad request")
	calls := 0
	loop := Fixed(3, time.Millisecond).If(func(err error) bool { return errors.Is(err, errBusy) })

	attempts, err := loop.Run(context.Background(), func(context.Context) error {
		calls++
		return fatal
	})

	assert.Equal(t, fatal, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestRun_ZeroRetries(t *testing.T) {
	calls := 0
	_, err := Fixed(0, time.Hour).Run(context.Background(), func(context.Context) error {
		calls++
		return errBusy
	})

	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 1, calls)
}

func TestRun_ContextCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := Fixed(3, time.Hour).Run(ctx, func(context.Context) error {
		calls++
		return errBusy
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
