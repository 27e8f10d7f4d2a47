package applier

import (
	"github.com/harborsync/harborsync/pkg/catalog"
	"github.com/harborsync/harborsync/pkg/entities"
)

// Default batch bounds. A chunk never exceeds either limit.
const (
	DefaultMaxBatchCount = 20
	DefaultMaxBatchBytes = 1024 * 1024
)

// Options configures one upsert call.
type Options struct {
	// Kind tags upserts with their source kind for catalog provenance.
	Kind string

	// UserAgent classifies the caller.
	UserAgent catalog.UserAgentType

	// MaxBatchCount bounds the entity count of one bulk request.
	MaxBatchCount int

	// MaxBatchBytes bounds the serialized size of one bulk request.
	MaxBatchBytes int

	// CreateMissingRelated is forwarded to the catalog; it also disables
	// relation-failure deferral since the catalog creates targets itself.
	CreateMissingRelated bool

	// Merge merges properties into existing catalog state.
	Merge bool

	// DeferRelationFailures routes relation-not-found failures into the
	// Deferred set for a later retry instead of marking them failed.
	// The final drain at pass end runs with this off.
	DeferRelationFailures bool
}

// withDefaults fills in zero-valued batch bounds.
func (o Options) withDefaults() Options {
	if o.MaxBatchCount <= 0 {
		o.MaxBatchCount = DefaultMaxBatchCount
	}
	if o.MaxBatchBytes <= 0 {
		o.MaxBatchBytes = DefaultMaxBatchBytes
	}
	if o.UserAgent == "" {
		o.UserAgent = catalog.UserAgentExporter
	}
	return o
}

// DeleteOptions configures one delete call.
type DeleteOptions struct {
	// Kind is the source kind being reconciled, for logging and guard
	// reporting.
	Kind string

	// UserAgent classifies the caller.
	UserAgent catalog.UserAgentType

	// MaxBatchCount and MaxBatchBytes bound bulk delete requests.
	MaxBatchCount int
	MaxBatchBytes int

	// KnownBefore is the size of the previously known entity set the
	// deletion threshold is measured against.
	KnownBefore int

	// Threshold is the deletion-safety fraction. Nil disables the guard.
	Threshold *float64

	// DeleteDependent allows deleting entities other entities still
	// relate to, and skips dependency protection and strict ordering.
	DeleteDependent bool

	// Upserted is the created and modified set of the same pass; its
	// relation targets are protected from deletion unless
	// DeleteDependent is set.
	Upserted []entities.Entity
}

// withDefaults fills in zero-valued batch bounds.
func (o DeleteOptions) withDefaults() DeleteOptions {
	if o.MaxBatchCount <= 0 {
		o.MaxBatchCount = DefaultMaxBatchCount
	}
	if o.MaxBatchBytes <= 0 {
		o.MaxBatchBytes = DefaultMaxBatchBytes
	}
	if o.UserAgent == "" {
		o.UserAgent = catalog.UserAgentExporter
	}
	return o
}
