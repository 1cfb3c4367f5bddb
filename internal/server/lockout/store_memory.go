package lockout

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps lockout records in memory for tests and single-instance
// deployments.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Record
}

// NewMemoryStore constructs an empty in-memory lockout store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

func (s *MemoryStore) Get(_ context.Context, identifier string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[identifier]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (s *MemoryStore) RecordFailure(_ context.Context, identifier string, now time.Time, window time.Duration) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[identifier]
	if !ok || record.WindowExpired(now, window) {
		record = &Record{Identifier: identifier}
		s.records[identifier] = record
	}
	record.FailureCount++
	record.LastFailureAt = now

	copied := *record
	return &copied, nil
}

func (s *MemoryStore) Update(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *record
	s.records[record.Identifier] = &copied
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, identifier)
	return nil
}
