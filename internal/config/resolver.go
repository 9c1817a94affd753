package config

import (
	"sync"
	"sync/atomic"
)

// Resolver resolves a configuration once and caches it for the lifetime of
// the Resolver.
//
// The first successful Resolve wins: later calls return the cached Config
// and ignore their input, even when it differs. A failed resolution is not
// cached, so a caller that sent an invalid document does not poison the
// Resolver for everyone else.
//
// # Thread Safety
//
// Resolver is safe for concurrent use. Concurrent first calls are
// serialized and exactly one of them populates the cache.
type Resolver struct {
	cached atomic.Pointer[Config]
	mu     sync.Mutex
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// NewResolverWith creates a resolver that is already populated with cfg.
// Every Resolve call returns cfg.
func NewResolverWith(cfg *Config) *Resolver {
	r := &Resolver{}
	r.cached.Store(cfg)
	return r
}

// Resolve returns the cached configuration, resolving input first if nothing
// is cached yet.
func (r *Resolver) Resolve(input map[string]interface{}) (*Config, error) {
	if cfg := r.cached.Load(); cfg != nil {
		return cfg, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another caller may have won while we waited for the lock
	if cfg := r.cached.Load(); cfg != nil {
		return cfg, nil
	}

	cfg, err := Resolve(input)
	if err != nil {
		return nil, err
	}
	r.cached.Store(cfg)
	return cfg, nil
}

// Resolved reports whether a configuration has been cached.
func (r *Resolver) Resolved() bool {
	return r.cached.Load() != nil
}

// Current returns the cached configuration, or nil.
func (r *Resolver) Current() *Config {
	return r.cached.Load()
}
