package provider

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/snarg/voxbridge/internal/metrics"
)

// Cache memoizes constructed provider instances per name and re-validates
// them with the health probe on every lookup. It owns at most one live
// instance per name; construction-and-validation for a given name is
// serialized behind a per-name lock so concurrent callers never race to
// build duplicates. The lock is released before any recognize/summarize
// work happens — only the construct+probe window is exclusive.
type Cache[T Provider] struct {
	registry *Registry[T]
	log      zerolog.Logger

	mu      sync.Mutex
	entries map[string]*cacheEntry[T]
}

type cacheEntry[T Provider] struct {
	mu   sync.Mutex
	inst T
	live bool
}

// NewCache creates an instance cache backed by the given registry.
func NewCache[T Provider](registry *Registry[T], log zerolog.Logger) *Cache[T] {
	return &Cache[T]{
		registry: registry,
		log:      log.With().Str("cache", string(registry.kind)).Logger(),
		entries:  make(map[string]*cacheEntry[T]),
	}
}

// Names returns the registered provider names.
func (c *Cache[T]) Names() []string { return c.registry.Names() }

// Kind returns the provider kind this cache manages.
func (c *Cache[T]) Kind() Kind { return c.registry.kind }

// GetOrCreate returns a health-validated instance for name.
//
// A cached instance that passes the probe is returned as-is. A cached
// instance that fails the full probe budget is evicted immediately, then a
// fresh instance is constructed and probed; a fresh instance that fails is
// never cached. Errors are *UnregisteredError for unknown names (no
// constructor is ever invoked) and *UnavailableError for known-but-dead
// providers.
func (c *Cache[T]) GetOrCreate(ctx context.Context, name string) (T, error) {
	var zero T

	ctor, ok := c.registry.constructor(name)
	if !ok {
		return zero, &UnregisteredError{Name: name, Kind: c.registry.kind}
	}

	e := c.entry(name)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.live {
		if probeWithRetry(ctx, e.inst, pingRetryCount, c.log) {
			metrics.ProviderProbesTotal.WithLabelValues(string(c.registry.kind), name, "healthy").Inc()
			c.log.Debug().Str("provider", name).Msg("using cached provider instance")
			return e.inst, nil
		}
		metrics.ProviderProbesTotal.WithLabelValues(string(c.registry.kind), name, "unhealthy").Inc()
		c.log.Warn().Str("provider", name).Msg("cached provider instance failed health check, rebuilding")
		e.inst = zero
		e.live = false
	}

	inst, err := ctor()
	if err != nil {
		return zero, &UnavailableError{Name: name, Kind: c.registry.kind, Err: err}
	}
	if !probeWithRetry(ctx, inst, pingRetryCount, c.log) {
		metrics.ProviderProbesTotal.WithLabelValues(string(c.registry.kind), name, "unhealthy").Inc()
		return zero, &UnavailableError{Name: name, Kind: c.registry.kind, Err: errors.New("health check failed")}
	}

	metrics.ProviderProbesTotal.WithLabelValues(string(c.registry.kind), name, "healthy").Inc()
	e.inst = inst
	e.live = true
	c.log.Info().Str("provider", name).Msg("provider instance created")
	return inst, nil
}

// Evict drops the cached instance for name, if any.
func (c *Cache[T]) Evict(name string) {
	c.mu.Lock()
	e, ok := c.entries[name]
	c.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	var zero T
	e.inst = zero
	e.live = false
	e.mu.Unlock()
}

// ListAvailable probes every registered provider with the full retry
// budget and returns the names that end up healthy. Unhealthy providers
// leave no stale cache entry behind.
func (c *Cache[T]) ListAvailable(ctx context.Context) []string {
	var available []string
	for _, name := range c.registry.Names() {
		if _, err := c.GetOrCreate(ctx, name); err != nil {
			c.log.Warn().Err(err).Str("provider", name).Msg("provider not available")
			continue
		}
		available = append(available, name)
	}
	return available
}

// cached reports whether a live instance exists for name.
func (c *Cache[T]) cached(name string) bool {
	c.mu.Lock()
	e, ok := c.entries[name]
	c.mu.Unlock()
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.live
}

func (c *Cache[T]) entry(name string) *cacheEntry[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[name]
	if !ok {
		e = &cacheEntry[T]{}
		c.entries[name] = e
	}
	return e
}
