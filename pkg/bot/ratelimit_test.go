package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestFaucet_Bot_RateLimiter(t *testing.T) {
	t.Parallel()

	t.Run("allows up to the burst then denies", func(t *testing.T) {
		t.Parallel()

		rl := NewRateLimiter(rate.Every(time.Hour), 3)
		for i := 0; i < 3; i++ {
			require.True(t, rl.Allow("U1"), "burst request %d should be allowed", i)
		}
		require.False(t, rl.Allow("U1"))
	})

	t.Run("limits users independently", func(t *testing.T) {
		t.Parallel()

		rl := NewRateLimiter(rate.Every(time.Hour), 1)
		require.True(t, rl.Allow("U1"))
		require.False(t, rl.Allow("U1"))
		require.True(t, rl.Allow("U2"))
	})

	t.Run("refills over time", func(t *testing.T) {
		t.Parallel()

		rl := NewRateLimiter(rate.Every(10*time.Millisecond), 1)
		require.True(t, rl.Allow("U1"))
		require.False(t, rl.Allow("U1"))
		time.Sleep(25 * time.Millisecond)
		require.True(t, rl.Allow("U1"))
	})
}
