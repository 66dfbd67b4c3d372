package storage

import "sync"

// MemoryStore is an in-memory Store used by tests and ephemeral mode.
// Individual operations can be made to fail for error-path testing.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]string

	// Failure injection. When set, the matching operation returns the
	// error instead of touching the map.
	GetErr    error
	SetErr    error
	RemoveErr error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]string)}
}

// GetItem returns the value stored under key.
func (m *MemoryStore) GetItem(key string) (string, bool, error) {
	if m.GetErr != nil {
		return "", false, m.GetErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.items[key]
	return value, ok, nil
}

// SetItem stores value under key.
func (m *MemoryStore) SetItem(key, value string) error {
	if m.SetErr != nil {
		return m.SetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

// RemoveItem deletes key.
func (m *MemoryStore) RemoveItem(key string) error {
	if m.RemoveErr != nil {
		return m.RemoveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

var _ Store = (*MemoryStore)(nil)
