// Package store provides the durable key/value store behind the session.
//
// Values are plain strings. Absent keys are reported with ok == false rather
// than an error so callers can treat missing and empty the same way.
package store

import (
	"sort"
	"sync"
)

// Store is a durable string key/value store.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)
	// GetMany reads keys from one consistent snapshot. Absent keys are
	// missing from the result.
	GetMany(keys ...string) (map[string]string, error)
	// SetMany writes every pair in values as one unit.
	SetMany(values map[string]string) error
	// Delete removes keys as one unit. Missing keys are ignored.
	Delete(keys ...string) error
	Close() error
}

// Pather is implemented by stores that live in a file another process can change.
type Pather interface {
	Path() string
}

// Memory is an in-process Store, used by tests and as a fallback when no
// durable path is configured.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

// Get implements Store.
func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// GetMany implements Store.
func (m *Memory) GetMany(keys ...string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

// SetMany implements Store.
func (m *Memory) SetMany(values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.data[k] = v
	}
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

// Keys returns the stored keys in sorted order.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Close implements Store.
func (m *Memory) Close() error { return nil }

var (
	_ Store = (*Memory)(nil)
	_ Store = (*SQLite)(nil)
	_ Store = (*KeyringOverlay)(nil)
)
