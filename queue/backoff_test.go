package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryBackoff_ExponentialProgression(t *testing.T) {
	base := 10 * time.Millisecond

	require.Equal(t, 10*time.Millisecond, retryBackoff(base, 1))
	require.Equal(t, 20*time.Millisecond, retryBackoff(base, 2))
	require.Equal(t, 40*time.Millisecond, retryBackoff(base, 3))
	require.Equal(t, 80*time.Millisecond, retryBackoff(base, 4))
}

func TestRetryBackoff_Cap(t *testing.T) {
	// A long progression stops at the cap instead of growing unbounded.
	require.Equal(t, maxRetryBackoff, retryBackoff(time.Second, 10))
	require.Equal(t, maxRetryBackoff, retryBackoff(time.Hour, 20))
}

func TestRetryBackoff_Saturation(t *testing.T) {
	// Shift overflow must saturate at the cap, never wrap negative.
	require.Equal(t, maxRetryBackoff, retryBackoff(time.Second, 64))
	require.Equal(t, maxRetryBackoff, retryBackoff(time.Second, 500))

	// Degenerate inputs fall back to sane values.
	require.Zero(t, retryBackoff(0, 1))
	require.Equal(t, time.Second, retryBackoff(time.Second, 0))
}
