// Package harborsync is a continuous data-reconciliation engine. It ingests
// batches of raw third-party records, transforms them into typed entities,
// computes the difference against previously known state, and applies that
// difference to a remote catalog while preserving referential integrity
// between entities.
package harborsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/harborsync/harborsync/pkg/applier"
	"github.com/harborsync/harborsync/pkg/catalog"
	"github.com/harborsync/harborsync/pkg/config"
	"github.com/harborsync/harborsync/pkg/differ"
	"github.com/harborsync/harborsync/pkg/fetch"
	"github.com/harborsync/harborsync/pkg/metrics"
	"github.com/harborsync/harborsync/pkg/transform"
)

// TriggerType classifies what started a reconciliation.
type TriggerType string

const (
	// TriggerScheduled is a periodic full resync.
	TriggerScheduled TriggerType = "scheduled"

	// TriggerManual is an operator-requested resync.
	TriggerManual TriggerType = "manual"

	// TriggerWebhook is a vendor-delivered live event.
	TriggerWebhook TriggerType = "webhook"
)

// Harborsync drives reconciliation passes against a remote catalog.
type Harborsync interface {
	// SyncRawAll runs one full reconciliation pass across all configured
	// kinds.
	SyncRawAll(ctx context.Context, trigger TriggerType, userAgent catalog.UserAgentType) (*Result, error)

	// RegisterRaw applies a single live batch of raw records for one
	// kind: create/update only, no deletion reasoning.
	RegisterRaw(ctx context.Context, kind string, records []fetch.RawRecord, userAgent catalog.UserAgentType) (*LiveResult, error)

	// UnregisterRaw deletes the entities a live batch maps to, running
	// the full delete-safety path.
	UnregisterRaw(ctx context.Context, kind string, records []fetch.RawRecord, userAgent catalog.UserAgentType) (*LiveResult, error)

	// OnResyncStart registers a hook run before each pass. A hook error
	// aborts the pass before any fetch occurs.
	OnResyncStart(ResyncStartHook)

	// OnResyncComplete registers a hook run after each successful pass.
	OnResyncComplete(ResyncCompleteHook)

	// Metrics returns the cumulative per-kind metrics snapshot.
	Metrics() metrics.Snapshot
}

// engine is the internal implementation of the Harborsync interface.
type engine struct {
	client      catalog.Client
	provider    config.Provider
	transformer *transform.Transformer
	differ      differ.Differ
	applier     *applier.Applier
	fetchers    *fetch.Registry
	hooks       *hooks
	collectors  *metrics.Collectors
	cfg         *engineConfig

	mu           sync.Mutex
	totals       map[string]metrics.KindMetrics
	lastDuration time.Duration
	lastSuccess  bool
}

// New creates a new Harborsync engine with the given options. A catalog
// client, a configuration provider, and an evaluator are required.
func New(opts ...Option) (Harborsync, error) {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("applying options: %w", err)
		}
	}

	if cfg.client == nil {
		return nil, fmt.Errorf("a catalog client is required")
	}
	if cfg.provider == nil {
		return nil, fmt.Errorf("a configuration provider is required")
	}
	if cfg.evaluator == nil {
		return nil, fmt.Errorf("an expression evaluator is required")
	}

	var collectors *metrics.Collectors
	if cfg.registerer != nil {
		var err error
		collectors, err = metrics.NewCollectors(cfg.registerer)
		if err != nil {
			return nil, fmt.Errorf("registering metrics collectors: %w", err)
		}
	}

	return &engine{
		client:      cfg.client,
		provider:    cfg.provider,
		transformer: transform.New(cfg.evaluator),
		differ:      differ.New(),
		applier:     applier.New(cfg.client),
		fetchers:    cfg.fetchers,
		hooks:       newHooks(),
		collectors:  collectors,
		cfg:         cfg,
		totals:      make(map[string]metrics.KindMetrics),
	}, nil
}

// Metrics returns the cumulative metrics snapshot across passes, keyed by
// kind, including the aggregate "reconciliation" entry.
func (e *engine) Metrics() metrics.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := metrics.Snapshot{
		Kinds:    make(map[string]metrics.KindMetrics, len(e.totals)+1),
		Duration: e.lastDuration,
		Success:  e.lastSuccess,
	}

	var total metrics.KindMetrics
	for kind, m := range e.totals {
		snap.Kinds[kind] = m
		total.RawExtracted += m.RawExtracted
		total.Transformed += m.Transformed
		total.FilteredOut += m.FilteredOut
		total.FailedTransform += m.FailedTransform
		total.Loaded += m.Loaded
		total.Failed += m.Failed
		total.Deleted += m.Deleted
		total.DeletionSkipped += m.DeletionSkipped
	}
	snap.Kinds[metrics.ReconciliationKind] = total

	return snap
}

// fold merges a completed pass's snapshot into the engine totals.
func (e *engine) fold(snap metrics.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for kind, m := range snap.Kinds {
		if kind == metrics.ReconciliationKind {
			continue
		}
		total := e.totals[kind]
		total.RawExtracted += m.RawExtracted
		total.Transformed += m.Transformed
		total.FilteredOut += m.FilteredOut
		total.FailedTransform += m.FailedTransform
		total.Loaded += m.Loaded
		total.Failed += m.Failed
		total.Deleted += m.Deleted
		total.DeletionSkipped += m.DeletionSkipped
		e.totals[kind] = total
	}
	e.lastDuration = snap.Duration
	e.lastSuccess = snap.Success
}
