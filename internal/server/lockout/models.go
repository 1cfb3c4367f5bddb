// Package lockout protects the login endpoint with sliding-window failure
// counting and a hard lock. Its results feed the 429 response body the
// client-side flow knows how to display.
package lockout

import (
	"fmt"
	"time"
)

// Record tracks login failures for one identifier (email + client IP).
type Record struct {
	Identifier    string     `json:"identifier"`
	FailureCount  int        `json:"failure_count"`
	LockedUntil   *time.Time `json:"locked_until,omitempty"`
	LastFailureAt time.Time  `json:"last_failure_at"`
}

// IsLockedAt reports whether the record carries an active hard lock.
func (r *Record) IsLockedAt(now time.Time) bool {
	return r.LockedUntil != nil && now.Before(*r.LockedUntil)
}

// WindowExpired reports whether the failure window has elapsed since the
// last failure, meaning the count no longer applies.
func (r *Record) WindowExpired(now time.Time, window time.Duration) bool {
	return !r.LastFailureAt.IsZero() && now.Sub(r.LastFailureAt) > window
}

// RemainingAttempts returns how many attempts are left before blocking.
func (r *Record) RemainingAttempts(limit int) int {
	remaining := limit - r.FailureCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ShouldHardLock reports whether the failure count crossed the hard-lock
// threshold.
func (r *Record) ShouldHardLock(threshold int) bool {
	return threshold > 0 && r.FailureCount >= threshold
}

// ApplyHardLock sets the lock expiry.
func (r *Record) ApplyHardLock(duration time.Duration, now time.Time) {
	until := now.Add(duration)
	r.LockedUntil = &until
}

// Result is the outcome of a lockout check.
type Result struct {
	Allowed           bool
	RemainingAttempts int
	ResetAt           time.Time
}

// Key builds the lockout identifier from the attempted email and client IP,
// so one hostile IP cannot lock a user out from everywhere.
func Key(email, ip string) string {
	return fmt.Sprintf("%s|%s", email, ip)
}

// Config holds the protection thresholds.
type Config struct {
	AttemptsPerWindow int
	Window            time.Duration
	HardLockThreshold int
	HardLockDuration  time.Duration
}

// DefaultConfig matches the gateway defaults: 5 attempts per 15 minutes,
// hard lock for 15 minutes after 10 failures.
func DefaultConfig() Config {
	return Config{
		AttemptsPerWindow: 5,
		Window:            15 * time.Minute,
		HardLockThreshold: 10,
		HardLockDuration:  15 * time.Minute,
	}
}
