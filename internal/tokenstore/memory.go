package tokenstore

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryKV keeps everything in process memory. Used by tests and by the
// memory store driver.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string]map[string]memEntry
	now  func() time.Time
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]map[string]memEntry), now: time.Now}
}

func (m *MemoryKV) Get(_ context.Context, clientID, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[clientID][key]
	if !ok {
		return "", false, nil
	}
	if !e.expiresAt.After(m.now()) {
		delete(m.data[clientID], key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *MemoryKV) Set(_ context.Context, clientID string, values map[string]string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.data[clientID]
	if !ok {
		bucket = make(map[string]memEntry, len(values))
		m.data[clientID] = bucket
	}
	exp := m.now().Add(ttl)
	for k, v := range values {
		bucket[k] = memEntry{value: v, expiresAt: exp}
	}
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, clientID string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.data[clientID]
	if !ok {
		return nil
	}
	for _, k := range keys {
		delete(bucket, k)
	}
	if len(bucket) == 0 {
		delete(m.data, clientID)
	}
	return nil
}

// Len reports the number of live keys stored for a client.
func (m *MemoryKV) Len(clientID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data[clientID])
}
