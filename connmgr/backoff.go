package connmgr

import "time"

// reconnectBackoff computes the delay before reconnect attempt n (0-based):
// base * 2^attempts, capped at maxDelay.
//
// The progression is deliberately jitter-free (d, 2d, 4d, ...) so reconnect
// timing stays predictable; connections fail independently per topic, so
// thundering-herd pressure on the event source is already bounded by the
// pool size.
//
// Behavior:
//   - base <= 0 falls back to 50ms
//   - maxDelay <= 0 means uncapped
//   - shift overflow saturates at maxDelay (or base when uncapped)
func reconnectBackoff(base time.Duration, attempts int, maxDelay time.Duration) time.Duration {
	if base <= 0 {
		base = 50 * time.Millisecond
	}
	if attempts < 0 {
		attempts = 0
	}

	// 62 shifts overflow any practical base; saturate early.
	if attempts > 62 {
		attempts = 62
	}
	d := base << uint(attempts)
	if d <= 0 {
		// Overflow wrapped negative.
		if maxDelay > 0 {
			return maxDelay
		}

		return base
	}
	if maxDelay > 0 && d > maxDelay {
		return maxDelay
	}

	return d
}
