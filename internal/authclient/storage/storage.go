// Package storage provides the session-scoped key-value store backing the
// CSRF guard and the token store. Semantics mirror browser sessionStorage:
// plain string keys, last write wins, contents die with the owning session.
package storage

import "sync"

// Storage is a session-scoped key-value store.
type Storage interface {
	// Get returns the value for key, or "" when absent.
	Get(key string) (string, error)
	// Set writes the value, replacing any previous one.
	Set(key, value string) error
	// Delete removes the key. Deleting an absent key is not an error.
	Delete(key string) error
}

// Memory is the in-process Storage implementation. One instance is scoped to
// one client session; dropping the instance clears the session.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory constructs an empty session-scoped store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key], nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
