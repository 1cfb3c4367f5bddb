package refreshtoken

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"sterihub/pkg/sentinel"
)

// Domain validation errors, translated to sentinel errors at the store
// boundary.
var (
	ErrTokenUsed    = errors.New("refresh token already used")
	ErrTokenExpired = errors.New("refresh token expired")
)

func translateConsumeError(err error) error {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return fmt.Errorf("%v: %w", err, sentinel.ErrExpired)
	case errors.Is(err, ErrTokenUsed):
		return fmt.Errorf("%v: %w", err, sentinel.ErrAlreadyUsed)
	default:
		return fmt.Errorf("%v: %w", err, sentinel.ErrInvalidState)
	}
}

// MemoryStore stores refresh tokens in memory for tests/dev.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string]*Record
}

// NewMemoryStore constructs an empty in-memory refresh token store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]*Record)}
}

func (s *MemoryStore) Create(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *record
	s.tokens[record.Token] = &copied
	return nil
}

func (s *MemoryStore) Consume(_ context.Context, token string, now time.Time) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.tokens[token]
	if !ok {
		return nil, fmt.Errorf("refresh token not found: %w", sentinel.ErrNotFound)
	}

	if err := record.ValidateForConsume(now); err != nil {
		// Return the record even on replay so the caller can revoke the
		// rest of the user's tokens.
		copied := *record
		return &copied, translateConsumeError(err)
	}

	record.MarkUsed(now)
	copied := *record
	return &copied, nil
}

func (s *MemoryStore) Revoke(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
	return nil
}

func (s *MemoryStore) RevokeAllForUser(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, record := range s.tokens {
		if record.UserID == userID {
			delete(s.tokens, key)
		}
	}
	return nil
}

// DeleteExpired removes all tokens expired as of now. The time is injected
// for testability.
func (s *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for key, record := range s.tokens {
		if record.ExpiresAt.Before(now) {
			delete(s.tokens, key)
			deleted++
		}
	}
	return deleted, nil
}
