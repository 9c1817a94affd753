package loader

import (
	"context"

	"github.com/wesleyorama2/loadsim/internal/config"
)

// Cached is a loader whose configuration is resolved from the input of the
// first successful call and reused verbatim afterwards. Later inputs are
// ignored.
//
// This mirrors services that receive the configuration with every request
// but only honor the first one. Resolution is serialized, so concurrent
// first calls cannot produce duplicate or torn configurations.
type Cached struct {
	resolver *config.Resolver
	opts     []Option
}

// NewCached creates a Cached loader that resolves on first use.
func NewCached(opts ...Option) *Cached {
	return &Cached{
		resolver: config.NewResolver(),
		opts:     opts,
	}
}

// NewCachedWith creates a Cached loader pinned to cfg. Every input is
// ignored.
func NewCachedWith(cfg *config.Config, opts ...Option) *Cached {
	return &Cached{
		resolver: config.NewResolverWith(cfg),
		opts:     opts,
	}
}

// Load resolves the configuration (first call only) and runs one load.
func (c *Cached) Load(ctx context.Context, input map[string]interface{}) (*Result, error) {
	cfg, err := c.resolver.Resolve(input)
	if err != nil {
		return nil, err
	}
	return New(cfg, c.opts...).Load(ctx)
}

// Payload runs one load and returns only the payload.
func (c *Cached) Payload(ctx context.Context, input map[string]interface{}) (string, error) {
	result, err := c.Load(ctx, input)
	if err != nil {
		return "", err
	}
	return result.Payload, nil
}

// Config returns the cached configuration, or nil before the first
// successful call.
func (c *Cached) Config() *config.Config {
	return c.resolver.Current()
}
