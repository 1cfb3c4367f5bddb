// Package refreshtoken persists opaque single-use refresh tokens.
package refreshtoken

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is one issued refresh token. Tokens are single-use: Consume marks
// the record used, and a second consume attempt is a replay.
type Record struct {
	Token     string     `json:"token"`
	UserID    uuid.UUID  `json:"user_id"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	Used      bool       `json:"used"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}

// ValidateForConsume checks whether the token may be exchanged at now.
func (r *Record) ValidateForConsume(now time.Time) error {
	if r.Used {
		return ErrTokenUsed
	}
	if !r.ExpiresAt.IsZero() && r.ExpiresAt.Before(now) {
		return ErrTokenExpired
	}
	return nil
}

// MarkUsed consumes the token.
func (r *Record) MarkUsed(now time.Time) {
	r.Used = true
	r.UsedAt = &now
}

// Store is the refresh-token persistence boundary.
//
// Error contract: Consume returns the record even on ErrAlreadyUsed so the
// caller can detect replay and revoke the rest of the user's tokens.
type Store interface {
	Create(ctx context.Context, record *Record) error
	// Consume atomically validates and marks the token used, returning the
	// record. Errors wrap sentinel.ErrNotFound / ErrExpired / ErrAlreadyUsed.
	Consume(ctx context.Context, token string, now time.Time) (*Record, error)
	// Revoke removes the token. Revoking an absent token is not an error.
	Revoke(ctx context.Context, token string) error
	// RevokeAllForUser removes every token belonging to the user.
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
}
