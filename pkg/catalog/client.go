// Package catalog defines the typed client interface to the remote catalog
// that reconciliation state is applied against. Transport is owned by the
// implementation; the engine only sees this interface.
package catalog

import (
	"context"

	"github.com/harborsync/harborsync/pkg/entities"
)

// UserAgentType classifies the caller responsible for a state change.
type UserAgentType string

const (
	// UserAgentExporter marks automated reconciliation traffic.
	UserAgentExporter UserAgentType = "exporter"

	// UserAgentManual marks operator-triggered changes.
	UserAgentManual UserAgentType = "manual"
)

// Query selects the currently known entity set for a kind.
type Query struct {
	// Kind restricts results to entities previously exported for this
	// source kind.
	Kind string

	// Blueprints restricts results to these blueprints. Used when the
	// catalog has no kind provenance for an entity.
	Blueprints []string
}

// Result is the per-entity outcome of a bulk operation. Bulk calls are
// multi-status: the call succeeds even when individual entities fail.
type Result struct {
	Entity entities.Entity
	OK     bool
	Err    error
}

// UpsertOptions carries the per-call flags for bulk upserts.
type UpsertOptions struct {
	// UserAgent classifies the caller for auditing.
	UserAgent UserAgentType

	// Kind tags upserted entities with their source kind.
	Kind string

	// CreateMissingRelated asks the catalog to create bare related
	// entities for relation targets that do not exist yet.
	CreateMissingRelated bool

	// Merge merges properties into existing entity state instead of
	// replacing it.
	Merge bool
}

// Client is the typed RPC interface to the remote catalog.
type Client interface {
	// SearchEntities returns the entities currently known for a query.
	SearchEntities(ctx context.Context, query Query) ([]entities.Entity, error)

	// GetBlueprint fetches a blueprint definition by identifier.
	GetBlueprint(ctx context.Context, identifier string) (*entities.Blueprint, error)

	// BulkUpsert creates or updates a batch of entities sharing one
	// blueprint and reports a per-entity outcome.
	BulkUpsert(ctx context.Context, blueprint string, list []entities.Entity, opts UpsertOptions) ([]Result, error)

	// BulkDelete deletes a batch of entities sharing one blueprint and
	// reports a per-entity outcome.
	BulkDelete(ctx context.Context, blueprint string, list []entities.Entity, userAgent UserAgentType) ([]Result, error)

	// EntityExists reports whether an entity is present in the catalog.
	EntityExists(ctx context.Context, key entities.Key) (bool, error)
}
