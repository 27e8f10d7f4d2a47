// Package event carries the isolated per-pass state of a reconciliation:
// the cached configuration, the relation retry queue, and the metrics
// accumulator. Nothing in here outlives or is shared across passes.
package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/harborsync/harborsync/pkg/applier"
	"github.com/harborsync/harborsync/pkg/catalog"
	"github.com/harborsync/harborsync/pkg/config"
	"github.com/harborsync/harborsync/pkg/metrics"
)

// TriggerType says what started a pass.
type TriggerType string

const (
	// TriggerResync is a full scheduled or requested reconciliation.
	TriggerResync TriggerType = "resync"

	// TriggerLive is a single-record webhook or manual event.
	TriggerLive TriggerType = "live"
)

// Context is the state owned by exactly one reconciliation pass.
type Context struct {
	// ID uniquely identifies the pass for logging.
	ID string

	// Trigger records what started the pass.
	Trigger TriggerType

	// UserAgent classifies catalog writes made during the pass.
	UserAgent catalog.UserAgentType

	// Config caches the kind-to-mapping configuration for the pass.
	Config *config.Cached

	// Retry queues relation-blocked entities for the pass-end drain.
	Retry *applier.Queue

	// Metrics accumulates per-kind phase counts.
	Metrics *metrics.Accumulator

	// StartedAt is when the pass began.
	StartedAt time.Time
}

// NewContext creates a fresh pass context.
func NewContext(trigger TriggerType, userAgent catalog.UserAgentType, provider config.Provider, collectors *metrics.Collectors) *Context {
	return &Context{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		UserAgent: userAgent,
		Config:    config.NewCached(provider),
		Retry:     applier.NewQueue(),
		Metrics:   metrics.NewAccumulator(collectors),
		StartedAt: time.Now(),
	}
}

// Live reports whether the pass was started by a single-record event.
// Live passes skip whole-kind diffing.
func (c *Context) Live() bool {
	return c.Trigger == TriggerLive
}
