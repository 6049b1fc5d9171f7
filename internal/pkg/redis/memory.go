package redis

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store used by tests and by local development when
// no Redis is reachable. TTLs are enforced lazily on read.
type Memory struct {
	mu      sync.Mutex
	lists   map[string][]string
	hashes  map[string]map[string]string
	strings map[string]string
	expiry  map[string]time.Time
	now     func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		lists:   make(map[string][]string),
		hashes:  make(map[string]map[string]string),
		strings: make(map[string]string),
		expiry:  make(map[string]time.Time),
		now:     time.Now,
	}
}

// SetClock overrides the time source, letting tests expire keys without
// sleeping.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) ListPushTail(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[key] = append(m.lists[key], value)
	return nil
}

func (m *Memory) ListPopHead(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.lists[key]
	if len(list) == 0 {
		return "", nil
	}
	head := list[0]
	m.lists[key] = list[1:]
	return head, nil
}

func (m *Memory) HashSet(_ context.Context, key, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	h[field] = value
	return nil
}

func (m *Memory) HashGet(_ context.Context, key, field string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hashes[key][field], nil
}

func (m *Memory) HashGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.hashes[key]))
	for f, v := range m.hashes[key] {
		out[f] = v
	}
	return out, nil
}

func (m *Memory) HashDelete(_ context.Context, key, field string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.hashes[key]
	if _, ok := h[field]; !ok {
		return false, nil
	}
	delete(h, field)
	return true, nil
}

func (m *Memory) HashExists(_ context.Context, key, field string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.hashes[key][field]
	return ok, nil
}

func (m *Memory) HashMultiGet(_ context.Context, key string, fields ...string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	values := make([]string, len(fields))
	for i, f := range fields {
		values[i] = m.hashes[key][f]
	}
	return values, nil
}

func (m *Memory) SetWithTTL(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strings[key] = value
	if ttl > 0 {
		m.expiry[key] = m.now().Add(ttl)
	} else {
		delete(m.expiry, key)
	}
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired(key) {
		return "", nil
	}
	return m.strings[key], nil
}

func (m *Memory) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired(key) {
		return false, nil
	}
	if _, ok := m.strings[key]; !ok {
		return false, nil
	}
	delete(m.strings, key)
	delete(m.expiry, key)
	return true, nil
}

// expired evicts key if its TTL has elapsed. Caller must hold mu.
func (m *Memory) expired(key string) bool {
	at, ok := m.expiry[key]
	if !ok || m.now().Before(at) {
		return false
	}
	delete(m.strings, key)
	delete(m.expiry, key)
	return true
}
