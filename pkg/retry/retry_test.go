package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.BaseBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	return cfg
}

type statusErr struct {
	code int
}

func (e *statusErr) Error() string   { return fmt.Sprintf("status %d", e.code) }
func (e *statusErr) StatusCode() int { return e.code }

func TestFaucet_Retry_Do(t *testing.T) {
	t.Parallel()

	t.Run("returns nil on first success", func(t *testing.T) {
		t.Parallel()

		calls := 0
		err := Do(t.Context(), fastConfig(), func() error {
			calls++
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 1, calls)
	})

	t.Run("retries retryable errors until success", func(t *testing.T) {
		t.Parallel()

		calls := 0
		err := Do(t.Context(), fastConfig(), func() error {
			calls++
			if calls < 3 {
				return errors.New("connection reset by peer")
			}
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 3, calls)
	})

	t.Run("stops immediately on non-retryable error", func(t *testing.T) {
		t.Parallel()

		sentinel := errors.New("invalid argument")
		calls := 0
		err := Do(t.Context(), fastConfig(), func() error {
			calls++
			return sentinel
		})
		require.ErrorIs(t, err, sentinel)
		require.Equal(t, 1, calls)
	})

	t.Run("returns last error after exhausting attempts", func(t *testing.T) {
		t.Parallel()

		calls := 0
		err := Do(t.Context(), fastConfig(), func() error {
			calls++
			return errors.New("rate limit exceeded")
		})
		require.Error(t, err)
		require.Equal(t, 3, calls)
		require.Contains(t, err.Error(), "failed after 3 attempts")
	})

	t.Run("respects context cancellation between attempts", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(t.Context())
		calls := 0
		err := Do(ctx, fastConfig(), func() error {
			calls++
			cancel()
			return errors.New("timeout")
		})
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, 1, calls)
	})
}

func TestFaucet_Retry_IsRetryable(t *testing.T) {
	t.Parallel()

	t.Run("nil error is not retryable", func(t *testing.T) {
		t.Parallel()
		require.False(t, IsRetryable(nil))
	})

	t.Run("context errors are not retryable", func(t *testing.T) {
		t.Parallel()
		require.False(t, IsRetryable(context.Canceled))
		require.False(t, IsRetryable(context.DeadlineExceeded))
		require.False(t, IsRetryable(fmt.Errorf("wrapped: %w", context.Canceled)))
	})

	t.Run("retryable status codes", func(t *testing.T) {
		t.Parallel()
		require.True(t, IsRetryable(&statusErr{code: http.StatusTooManyRequests}))
		require.True(t, IsRetryable(&statusErr{code: http.StatusServiceUnavailable}))
		require.False(t, IsRetryable(&statusErr{code: http.StatusBadRequest}))
	})

	t.Run("retryable message patterns", func(t *testing.T) {
		t.Parallel()
		require.True(t, IsRetryable(errors.New("read tcp: connection reset by peer")))
		require.True(t, IsRetryable(errors.New("slack rate limit exceeded, retry after 1s")))
		require.True(t, IsRetryable(errors.New("unexpected EOF")))
		require.False(t, IsRetryable(errors.New("invalid wallet address")))
	})
}

func TestFaucet_Retry_CalculateBackoff(t *testing.T) {
	t.Parallel()

	base := 100 * time.Millisecond
	max := time.Second

	for attempt := 1; attempt <= 6; attempt++ {
		backoff := calculateBackoff(base, max, attempt)
		require.GreaterOrEqual(t, backoff, time.Duration(float64(base)*0.5))
		require.LessOrEqual(t, backoff, max)
	}
}
