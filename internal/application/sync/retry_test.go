package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func TestCallWithRetrySucceedsFirstTry(t *testing.T) {
	result, attempts, err := callWithRetry(context.Background(), 3, func(ctx context.Context) (string, error) {
		return "ok", nil
	}, noSleep)

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, attempts)
}

func TestCallWithRetryRecoversAfterFailures(t *testing.T) {
	calls := 0
	result, attempts, err := callWithRetry(context.Background(), 3, func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 7, nil
	}, noSleep)

	require.NoError(t, err)
	assert.Equal(t, 7, result)
	assert.Equal(t, 3, attempts)
}

func TestCallWithRetryExhaustsAndReturnsLastError(t *testing.T) {
	calls := 0
	first := errors.New("first")
	last := errors.New("last")
	_, attempts, err := callWithRetry(context.Background(), 2, func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, first
		}
		return 0, last
	}, noSleep)

	require.ErrorIs(t, err, last)
	assert.Equal(t, 3, calls, "maxRetries=2 means three calls total")
	assert.Equal(t, 3, attempts)
}

func TestCallWithRetryBackoffDoubles(t *testing.T) {
	var delays []time.Duration
	record := func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	_, _, err := callWithRetry(context.Background(), 3, func(ctx context.Context) (int, error) {
		return 0, errors.New("always")
	}, record)

	require.Error(t, err)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, delays)
}

func TestCallWithRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, _, err := callWithRetry(ctx, 5, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("transient")
	}, sleepWithContext)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls, "no further attempts once the context is gone")
}
