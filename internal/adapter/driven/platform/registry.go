package platform

import (
	"slices"
	"sync"

	"github.com/ericfisherdev/streamcaster/internal/domain/model"
	"github.com/ericfisherdev/streamcaster/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.DispatcherLookup = (*Registry)(nil)

// Registry maps platforms to their dispatchers. Dispatchers may be registered
// or replaced at runtime, for example after OAuth client credentials change.
type Registry struct {
	mu          sync.RWMutex
	dispatchers map[model.Platform]driven.PlatformDispatcher
}

// NewRegistry creates a registry holding the given dispatchers.
func NewRegistry(dispatchers ...driven.PlatformDispatcher) *Registry {
	r := &Registry{dispatchers: make(map[model.Platform]driven.PlatformDispatcher, len(dispatchers))}
	for _, d := range dispatchers {
		r.dispatchers[d.Platform()] = d
	}
	return r
}

// Register adds or replaces the dispatcher for d.Platform().
func (r *Registry) Register(d driven.PlatformDispatcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatchers[d.Platform()] = d
}

// Get returns the dispatcher for platform, if one is registered.
func (r *Registry) Get(platform model.Platform) (driven.PlatformDispatcher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.dispatchers[platform]
	return d, ok
}

// Platforms returns the registered platforms in sorted order.
func (r *Registry) Platforms() []model.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Platform, 0, len(r.dispatchers))
	for p := range r.dispatchers {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}
