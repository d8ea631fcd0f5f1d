package storecache

import (
	"context"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// Memory is an in-process Cache. Values are msgpack-encoded on Set so callers
// never share mutable data through the cache.
type Memory struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	defaultTTL time.Duration
	now        func() time.Time
}

// NewMemory creates an in-process cache with the given default TTL.
func NewMemory(defaultTTL time.Duration) *Memory {
	if defaultTTL <= 0 {
		defaultTTL = time.Minute
	}
	return &Memory{
		entries:    make(map[string]memoryEntry),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

func (m *Memory) Get(ctx context.Context, key string, dst any) (bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if !m.now().Before(e.expiresAt) {
		m.mu.Lock()
		// re-check: a concurrent Set may have refreshed it
		if cur, ok := m.entries[key]; ok && !m.now().Before(cur.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return false, nil
	}
	if err := msgpack.Unmarshal(e.data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Memory) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = m.defaultTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{data: data, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Len returns the number of entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
