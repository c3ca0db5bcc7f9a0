package auth

import (
	"sync"
	"time"
)

// DefaultRevalidate is how long a confirmed session is trusted without asking
// the backend again.
const DefaultRevalidate = 5 * time.Minute

// ValidationCache remembers when each browser session was last confirmed by
// the backend. It is shared by all requests of the process.
type ValidationCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	checked map[string]time.Time
}

// NewValidationCache with ttl <= 0 uses DefaultRevalidate.
func NewValidationCache(ttl time.Duration) *ValidationCache {
	if ttl <= 0 {
		ttl = DefaultRevalidate
	}
	return &ValidationCache{ttl: ttl, now: time.Now, checked: make(map[string]time.Time)}
}

func (c *ValidationCache) Fresh(clientID string) bool {
	if clientID == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	at, ok := c.checked[clientID]
	if !ok {
		return false
	}
	if c.now().Sub(at) >= c.ttl {
		delete(c.checked, clientID)
		return false
	}
	return true
}

func (c *ValidationCache) Mark(clientID string) {
	if clientID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checked[clientID] = c.now()
}

func (c *ValidationCache) Forget(clientID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.checked, clientID)
}

// Prune drops expired entries and reports how many remain.
func (c *ValidationCache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for id, at := range c.checked {
		if now.Sub(at) >= c.ttl {
			delete(c.checked, id)
		}
	}
	return len(c.checked)
}

func (c *ValidationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.checked)
}
