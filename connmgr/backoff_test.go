package connmgr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReconnectBackoff_ExponentialProgression(t *testing.T) {
	base := 10 * time.Millisecond

	require.Equal(t, 10*time.Millisecond, reconnectBackoff(base, 0, 0))
	require.Equal(t, 20*time.Millisecond, reconnectBackoff(base, 1, 0))
	require.Equal(t, 40*time.Millisecond, reconnectBackoff(base, 2, 0))
	require.Equal(t, 80*time.Millisecond, reconnectBackoff(base, 3, 0))
}

func TestReconnectBackoff_Cap(t *testing.T) {
	base := 10 * time.Millisecond
	maxDelay := 25 * time.Millisecond

	require.Equal(t, 10*time.Millisecond, reconnectBackoff(base, 0, maxDelay))
	require.Equal(t, 20*time.Millisecond, reconnectBackoff(base, 1, maxDelay))
	require.Equal(t, maxDelay, reconnectBackoff(base, 2, maxDelay))
	require.Equal(t, maxDelay, reconnectBackoff(base, 10, maxDelay))
}

func TestReconnectBackoff_Saturation(t *testing.T) {
	// Shift overflow must saturate, never wrap negative.
	require.Equal(t, time.Minute, reconnectBackoff(time.Second, 62, time.Minute))
	require.Positive(t, reconnectBackoff(time.Second, 500, 0))

	// Degenerate inputs fall back to sane values.
	require.Positive(t, reconnectBackoff(0, 0, 0))
	require.Positive(t, reconnectBackoff(time.Second, -3, 0))
}
