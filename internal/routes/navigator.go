package routes

import "sync"

// Navigator receives navigation requests from the session layer. Page
// handlers turn the recorded target into a redirect.
type Navigator interface {
	Navigate(path string)
}

// Recorder is a Navigator that remembers the last target.
type Recorder struct {
	mu     sync.Mutex
	target string
}

func (r *Recorder) Navigate(path string) {
	r.mu.Lock()
	r.target = path
	r.mu.Unlock()
}

func (r *Recorder) Target() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.target
}
