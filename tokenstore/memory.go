package tokenstore

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

// MemoryBackend is a process-local Backend.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry

	// Now is the clock used for expiry. Defaults to time.Now.
	Now func() time.Time
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]memoryEntry),
		Now:     time.Now,
	}
}

func (m *MemoryBackend) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

// Get implements Backend. Expired entries are evicted on access.
func (m *MemoryBackend) Get(_ context.Context, key string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !stored.expiresAt.IsZero() && !m.now().Before(stored.expiresAt) {
		delete(m.entries, key)
		return nil, ErrNotFound
	}

	entry := stored.entry
	return &entry, nil
}

// Set implements Backend.
func (m *MemoryBackend) Set(_ context.Context, key string, entry *Entry, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.entries == nil {
		m.entries = make(map[string]memoryEntry)
	}

	stored := memoryEntry{entry: *entry}
	if ttl > 0 {
		stored.expiresAt = m.now().Add(ttl)
	}
	m.entries[key] = stored

	return nil
}

// Delete implements Backend.
func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
