package config

import (
	"context"
	"sync"
)

// Provider supplies the active sync configuration. Implementations typically
// fetch it from the remote catalog's integration settings or from a local
// file.
type Provider interface {
	// SyncConfig returns the current configuration.
	SyncConfig(ctx context.Context) (*SyncConfig, error)
}

// Static wraps a fixed configuration as a Provider.
type Static struct {
	Config *SyncConfig
}

// SyncConfig implements Provider.
func (s Static) SyncConfig(_ context.Context) (*SyncConfig, error) {
	return s.Config, nil
}

// Cached wraps a Provider and caches the first successful result. One Cached
// instance is created per resync pass so the configuration stays stable for
// the whole pass; live events construct their own uncached access via
// Refresh.
type Cached struct {
	provider Provider

	mu     sync.Mutex
	cached *SyncConfig
}

// NewCached creates a pass-scoped caching wrapper around a Provider.
func NewCached(provider Provider) *Cached {
	return &Cached{provider: provider}
}

// SyncConfig returns the cached configuration, fetching it on first use.
func (c *Cached) SyncConfig(ctx context.Context) (*SyncConfig, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != nil {
		return c.cached, nil
	}

	cfg, err := c.provider.SyncConfig(ctx)
	if err != nil {
		return nil, err
	}
	c.cached = cfg
	return cfg, nil
}

// Refresh bypasses the cache, fetches a fresh configuration, and stores it.
func (c *Cached) Refresh(ctx context.Context) (*SyncConfig, error) {
	cfg, err := c.provider.SyncConfig(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cached = cfg
	c.mu.Unlock()
	return cfg, nil
}
