package authclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 3, p.attempts())

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: 250 * time.Millisecond},
		{attempt: 1, want: 500 * time.Millisecond},
		{attempt: 2, want: time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.delay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestRetryPolicyClamping(t *testing.T) {
	assert.Equal(t, 1, RetryPolicy{}.attempts(), "zero attempts still means one try")
	assert.Equal(t, 1, RetryPolicy{Attempts: -4}.attempts())
	assert.Equal(t, time.Duration(0), RetryPolicy{}.delay(5), "nil backoff means no delay")
}
