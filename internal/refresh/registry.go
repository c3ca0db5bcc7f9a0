package refresh

import "sync"

type entry struct {
	c    *Coordinator
	refs int
}

// Registry hands out one Coordinator per browser session. Entries live while
// at least one request holds them.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Acquire returns the coordinator for key and a release func that must be
// called once the request is done with it. An empty key gets a private
// coordinator.
func (r *Registry) Acquire(key string) (*Coordinator, func()) {
	if key == "" {
		return New(), func() {}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		e = &entry{c: New()}
		r.entries[key] = e
	}
	e.refs++

	var once sync.Once
	return e.c, func() {
		once.Do(func() { r.release(key, e) })
	}
}

func (r *Registry) release(key string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.refs--
	if e.refs <= 0 && r.entries[key] == e {
		delete(r.entries, key)
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
