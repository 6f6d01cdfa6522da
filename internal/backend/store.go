package backend

import (
	"context"
	"sync"
	"time"

	"github.com/web3-frozen/helium-monitor/internal/httpclient"
)

// Entry is one cached response. It is replaced wholesale on refresh.
type Entry struct {
	Key       string
	Response  *httpclient.Response
	FetchedAt time.Time
}

// Store holds cache entries keyed by cache key. Every caller of one Client
// shares the same Store namespace.
type Store interface {
	Name() string
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, e Entry) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// MemoryStore is an unbounded in-process Store. Entries are only removed by
// Delete or when the store is dropped with its integration entry.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	return e, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, e Entry) error {
	m.mu.Lock()
	m.entries[e.Key] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Len returns the number of entries.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.entries = make(map[string]Entry)
	m.mu.Unlock()
	return nil
}
