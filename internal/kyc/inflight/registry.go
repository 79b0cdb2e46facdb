package inflight

import (
	"sync"

	"kycstatus/internal/kyc/domain"
	"kycstatus/internal/kyc/metrics"
)

// Registry tracks client IDs with an outstanding upstream lookup.
// It holds membership only; callers that lose TryBegin wait on the
// notification stream, not on the registry.
type Registry struct {
	mu      sync.Mutex
	pending map[domain.ClientID]struct{}
	metrics *metrics.Metrics
}

// New creates an empty registry. m may be nil.
func New(m *metrics.Metrics) *Registry {
	return &Registry{
		pending: make(map[domain.ClientID]struct{}),
		metrics: m,
	}
}

// TryBegin marks id as in flight. It returns false if id was already marked.
func (r *Registry) TryBegin(id domain.ClientID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.pending[id]; exists {
		return false
	}
	r.pending[id] = struct{}{}
	r.metrics.SetInFlight(len(r.pending))
	return true
}

// End clears the mark for id, whether or not it was set.
func (r *Registry) End(id domain.ClientID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, id)
	r.metrics.SetInFlight(len(r.pending))
}

// Has reports whether id is currently in flight.
func (r *Registry) Has(id domain.ClientID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.pending[id]
	return exists
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Clear drops every mark.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = make(map[domain.ClientID]struct{})
	r.metrics.SetInFlight(0)
}
