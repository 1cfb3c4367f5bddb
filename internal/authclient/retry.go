package authclient

import "time"

// RetryPolicy is the injectable retry budget for transport-level failures.
// Only connection errors and timeouts are retried; CSRF failures, rate
// limiting, and credential rejections are never retried.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// Backoff returns the delay before retry n (0-based). Nil means no delay.
	Backoff func(attempt int) time.Duration
}

// DefaultRetryPolicy tries three times with a 250ms doubling backoff,
// matching the gateway's progressive-backoff ladder.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: 3,
		Backoff: func(attempt int) time.Duration {
			return 250 * time.Millisecond << attempt
		},
	}
}

func (p RetryPolicy) attempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	if p.Backoff == nil {
		return 0
	}
	return p.Backoff(attempt)
}
