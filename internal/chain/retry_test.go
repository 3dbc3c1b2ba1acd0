package chain

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWithRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond}, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("temporary")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestWithRetryGivesUp(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := WithRetry(context.Background(), RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond}, func(context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 3, calls)
}

func TestWithRetryStopsOnContextError(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), RetryPolicy{MaxRetries: 5, BaseDelay: time.Millisecond}, func(context.Context) error {
		calls++
		return context.Canceled
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestWithRetryStopsOnPrunedState(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), RetryPolicy{MaxRetries: 5, BaseDelay: time.Millisecond}, func(context.Context) error {
		calls++
		return fmt.Errorf("%w: block 1", ErrStateUnavailable)
	})
	require.ErrorIs(t, err, ErrStateUnavailable)
	require.Equal(t, 1, calls)
}

func TestWithRetryHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := WithRetry(ctx, RetryPolicy{MaxRetries: 5, BaseDelay: time.Hour}, func(context.Context) error {
		calls++
		cancel()
		return errors.New("temporary")
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestRetryPolicyNormalized(t *testing.T) {
	p := RetryPolicy{MaxRetries: -1}.normalized()
	require.Equal(t, 0, p.MaxRetries)
	require.Equal(t, 100*time.Millisecond, p.BaseDelay)
	require.Equal(t, 10*time.Second, p.MaxDelay)
}
