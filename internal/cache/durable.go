package cache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var errMissingExpiry = errors.New("cache: durable record has no expiry")

// DurableStore is the optional second tier. It holds serialized entries
// for whitelisted key prefixes and may survive process restarts.
//
// The ttl passed to Set is an expiry hint for the backing store; the
// serialized entry's own expiry is what the cache checks.
type DurableStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// MemoryDurable is a map-backed DurableStore. It outlives any Tiered that
// uses it, which makes it handy for tests and for simulating restarts.
type MemoryDurable struct {
	mu    sync.RWMutex
	items map[string]string
}

func NewMemoryDurable() *MemoryDurable {
	return &MemoryDurable{items: make(map[string]string)}
}

func (m *MemoryDurable) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *MemoryDurable) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	m.items[key] = value
	m.mu.Unlock()
	return nil
}

func (m *MemoryDurable) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

// Keys returns the stored keys in sorted order.
func (m *MemoryDurable) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	m.mu.RUnlock()
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of stored keys.
func (m *MemoryDurable) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
