package storage

import (
	"context"
	"sync"
)

// Storage persists string values by string key.
//
// Implementations must be safe for concurrent use: a single Storage is shared
// by every request issued from one client. Removing a key that does not exist
// is not an error.
type Storage interface {
	// GetItem returns the value stored under key. The boolean is false when
	// the key is absent.
	GetItem(ctx context.Context, key string) (string, bool, error)

	// SetItem stores value under key, replacing any previous value.
	SetItem(ctx context.Context, key, value string) error

	// RemoveItem deletes key.
	RemoveItem(ctx context.Context, key string) error
}

// Memory is an in-process Storage backed by a map.
// It is the default binding when no adapter is supplied.
type Memory struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]string)}
}

// GetItem implements Storage.
func (m *Memory) GetItem(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.items[key]
	return value, ok, nil
}

// SetItem implements Storage.
func (m *Memory) SetItem(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = value
	return nil
}

// RemoveItem implements Storage.
func (m *Memory) RemoveItem(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, key)
	return nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
