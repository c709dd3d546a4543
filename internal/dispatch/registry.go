package dispatch

import "sync"

// Registry tracks which senders have a pipeline in flight.
type Registry struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{inflight: make(map[string]struct{})}
}

// TryAcquire marks key busy. It returns false when key is already busy.
func (r *Registry) TryAcquire(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inflight[key]; busy {
		return false
	}
	r.inflight[key] = struct{}{}
	return true
}

func (r *Registry) Release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, key)
}

// Len is the number of pipelines in flight.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inflight)
}
