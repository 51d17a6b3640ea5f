// Package sources holds the upstream fetchers and the collector that merges their batches.
package sources

import (
	"NewsIngestor/internal/ports"
)

// Registry keeps fetchers in declaration order and indexes them by name.
type Registry struct {
	order    []string
	fetchers map[string]ports.Fetcher
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{fetchers: map[string]ports.Fetcher{}}
}

// Register adds or replaces a fetcher; replacing keeps the original position.
func (r *Registry) Register(fetcher ports.Fetcher) {
	if r.fetchers == nil {
		r.fetchers = map[string]ports.Fetcher{}
	}
	name := fetcher.Name()
	if _, ok := r.fetchers[name]; !ok {
		r.order = append(r.order, name)
	}
	r.fetchers[name] = fetcher
}

// All returns the fetchers in registration order.
func (r *Registry) All() []ports.Fetcher {
	out := make([]ports.Fetcher, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.fetchers[name])
	}
	return out
}
