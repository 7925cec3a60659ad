// Package adapter defines the site adapter contract and the static registry
// of configured marketplaces.
package adapter

import (
	"context"
	"sort"
	"sync"

	"sjsage522/listingworker/internal/listing"
)

// SiteAdapter scrapes one marketplace
type SiteAdapter interface {
	// Scrape returns up to maxPages pages of listings. On failure it may
	// return the pages scraped so far together with the error.
	Scrape(ctx context.Context, maxPages int) (listing.PagedListings, error)
}

// AdapterFunc adapts a function to SiteAdapter
type AdapterFunc func(ctx context.Context, maxPages int) (listing.PagedListings, error)

// Scrape calls f
func (f AdapterFunc) Scrape(ctx context.Context, maxPages int) (listing.PagedListings, error) {
	return f(ctx, maxPages)
}

// Registry maps site names to adapters
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]SiteAdapter
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]SiteAdapter)}
}

// Register adds or replaces the adapter of site
func (r *Registry) Register(site string, a SiteAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[site] = a
}

// Get returns the adapter of site
func (r *Registry) Get(site string) (SiteAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[site]
	return a, ok
}

// Names returns the registered site names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
