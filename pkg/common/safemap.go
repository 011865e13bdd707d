package common

import "sync"

type SafeMap[V any] struct {
	mu      sync.RWMutex
	entries map[string]V
}

// NewSafeMap initializes a new SafeMap with the specified value type.
func NewSafeMap[V any]() *SafeMap[V] {
	return &SafeMap[V]{
		entries: make(map[string]V),
	}
}

func (m *SafeMap[V]) Set(key string, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
}

func (m *SafeMap[V]) Get(key string) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, exists := m.entries[key]
	return value, exists
}

// GetOrSet returns the existing value for the key, or stores and returns
// the given value when absent. The check and insert happen under one lock.
func (m *SafeMap[V]) GetOrSet(key string, value V) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, exists := m.entries[key]; exists {
		return existing, true
	}
	m.entries[key] = value
	return value, false
}

func (m *SafeMap[V]) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

func (m *SafeMap[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *SafeMap[V]) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.entries))
	for key := range m.entries {
		keys = append(keys, key)
	}
	return keys
}

// Range calls fn for each entry until fn returns false. The map lock is
// held for the duration of the iteration.
func (m *SafeMap[V]) Range(fn func(key string, value V) bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for key, value := range m.entries {
		if !fn(key, value) {
			return
		}
	}
}
