package harborsync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/harborsync/harborsync/pkg/applier"
	"github.com/harborsync/harborsync/pkg/catalog"
	"github.com/harborsync/harborsync/pkg/config"
	"github.com/harborsync/harborsync/pkg/fetch"
	"github.com/harborsync/harborsync/pkg/logging"
	"github.com/harborsync/harborsync/pkg/transform"
)

// Option is a function that configures a Harborsync engine.
type Option func(*engineConfig) error

// engineConfig collects the constructor options.
type engineConfig struct {
	client      catalog.Client
	provider    config.Provider
	evaluator   transform.Evaluator
	fetchers    *fetch.Registry
	registerer  prometheus.Registerer
	logger      *zerolog.Logger
	concurrency int
	batchCount  int
	batchBytes  int
}

// defaultEngineConfig returns the baseline configuration.
func defaultEngineConfig() *engineConfig {
	return &engineConfig{
		fetchers:    fetch.NewRegistry(),
		logger:      logging.Default(),
		concurrency: 4,
		batchCount:  applier.DefaultMaxBatchCount,
		batchBytes:  applier.DefaultMaxBatchBytes,
	}
}

// WithCatalogClient sets the remote catalog client. Required.
func WithCatalogClient(client catalog.Client) Option {
	return func(c *engineConfig) error {
		c.client = client
		return nil
	}
}

// WithConfigProvider sets the kind-to-mapping configuration provider.
// Required.
func WithConfigProvider(provider config.Provider) Option {
	return func(c *engineConfig) error {
		c.provider = provider
		return nil
	}
}

// WithEvaluator sets the selector/mapping expression evaluator. Required.
func WithEvaluator(evaluator transform.Evaluator) Option {
	return func(c *engineConfig) error {
		c.evaluator = evaluator
		return nil
	}
}

// WithFetcher registers a fetcher for a kind. May be given multiple times;
// all fetchers for a kind run during a pass.
func WithFetcher(kind string, fetcher fetch.Fetcher) Option {
	return func(c *engineConfig) error {
		c.fetchers.Register(kind, fetcher)
		return nil
	}
}

// WithFetcherRegistry replaces the fetcher registry wholesale.
func WithFetcherRegistry(registry *fetch.Registry) Option {
	return func(c *engineConfig) error {
		c.fetchers = registry
		return nil
	}
}

// WithConcurrency bounds how many kinds reconcile at once within a pass.
func WithConcurrency(n int) Option {
	return func(c *engineConfig) error {
		if n < 1 {
			n = 1
		}
		c.concurrency = n
		return nil
	}
}

// WithBatchLimits bounds bulk request size by entity count and serialized
// bytes.
func WithBatchLimits(maxCount, maxBytes int) Option {
	return func(c *engineConfig) error {
		c.batchCount = maxCount
		c.batchBytes = maxBytes
		return nil
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *engineConfig) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// WithMetricsRegistry registers Prometheus collectors for pass and phase
// counters on the given registerer.
func WithMetricsRegistry(registerer prometheus.Registerer) Option {
	return func(c *engineConfig) error {
		c.registerer = registerer
		return nil
	}
}
