package queue

import "time"

// maxRetryBackoff bounds the delay between retries regardless of how far
// the exponential progression has run.
const maxRetryBackoff = 5 * time.Minute

// retryBackoff computes the delay before retry attempt n (1-based):
// base * 2^(n-1), capped at maxRetryBackoff.
//
// Shift overflow saturates at the cap so a message with a large retry
// budget can never wrap into a zero or negative delay and hot-loop.
func retryBackoff(base time.Duration, retry int) time.Duration {
	if base <= 0 {
		return 0
	}
	if retry < 1 {
		retry = 1
	}

	// 62 shifts overflow any practical base; saturate early.
	shift := retry - 1
	if shift > 62 {
		shift = 62
	}
	d := base << uint(shift)
	if d <= 0 || d > maxRetryBackoff {
		return maxRetryBackoff
	}

	return d
}
