package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Store. Entries older than ttl are dropped on read;
// once max entries are held the oldest is evicted.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	entries map[string]*Entry
	now     func() time.Time
}

// NewMemory creates a Memory store. A zero ttl or max disables that bound.
func NewMemory(ttl time.Duration, max int) *Memory {
	return &Memory{ttl: ttl, max: max, entries: map[string]*Entry{}, now: time.Now}
}

func (m *Memory) Get(_ context.Context, session, template string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(session, template)
	e, ok := m.entries[k]
	if !ok {
		return nil, ErrNotFound
	}
	if m.expired(e) {
		delete(m.entries, k)
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *Memory) Put(_ context.Context, session string, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = m.now()
	}
	k := key(session, e.Template)
	if _, exists := m.entries[k]; !exists && m.max > 0 {
		for len(m.entries) >= m.max {
			m.evictOldest()
		}
	}
	m.entries[k] = &cp
	return nil
}

func (m *Memory) Delete(_ context.Context, session, template string) error {
	m.mu.Lock()
	delete(m.entries, key(session, template))
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear(_ context.Context, session string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := sessionPrefix(session)
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
		}
	}
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) expired(e *Entry) bool {
	return m.ttl > 0 && m.now().Sub(e.CreatedAt) > m.ttl
}

func (m *Memory) evictOldest() {
	var oldest string
	var at time.Time
	for k, e := range m.entries {
		if oldest == "" || e.CreatedAt.Before(at) {
			oldest, at = k, e.CreatedAt
		}
	}
	delete(m.entries, oldest)
}
