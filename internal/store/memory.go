package store

import (
	"context"
	"sync"
)

var _ KV = (*MemKV)(nil)

// MemKV is an in-memory KV. LoadErr and SaveErr, when set, are returned by
// every call to simulate a failing backend.
type MemKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	saves   int
	LoadErr error
	SaveErr error
}

// NewMemKV creates an empty MemKV.
func NewMemKV() *MemKV {
	return &MemKV{data: make(map[string][]byte)}
}

// Load returns a copy of the value stored under key.
func (m *MemKV) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Save stores a copy of data under key.
func (m *MemKV) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.data[key] = append([]byte(nil), data...)
	m.saves++
	return nil
}

// Saves returns the number of successful Save calls.
func (m *MemKV) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// SetFailures swaps the injected errors under the lock.
func (m *MemKV) SetFailures(loadErr, saveErr error) {
	m.mu.Lock()
	m.LoadErr = loadErr
	m.SaveErr = saveErr
	m.mu.Unlock()
}
