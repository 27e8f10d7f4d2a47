// Package config defines the kind-to-mapping configuration that drives a
// reconciliation pass: which kinds are synced, how raw records are selected
// and mapped into entities, and the safety settings governing deletion.
package config

import (
	"github.com/go-playground/validator/v10"

	"github.com/harborsync/harborsync/pkg/errors"
)

// Selector decides which raw records of a kind participate in the sync.
// Query is a boolean expression evaluated per record; records it rejects are
// filtered out, not failed.
type Selector struct {
	Query string `json:"query" yaml:"query" validate:"required"`
}

// EntityMapping maps a raw record onto entity fields. Every field value is
// an expression evaluated against the record by the configured evaluator.
type EntityMapping struct {
	Identifier string            `json:"identifier" yaml:"identifier" validate:"required"`
	Blueprint  string            `json:"blueprint" yaml:"blueprint" validate:"required"`
	Title      string            `json:"title,omitempty" yaml:"title,omitempty"`
	Team       string            `json:"team,omitempty" yaml:"team,omitempty"`
	Properties map[string]string `json:"properties,omitempty" yaml:"properties,omitempty"`
	Relations  map[string]string `json:"relations,omitempty" yaml:"relations,omitempty"`
}

// Resource binds one source kind to a selector and an entity mapping. A kind
// may appear in multiple resources; each mapping produces its own entities.
type Resource struct {
	Kind     string        `json:"kind" yaml:"kind" validate:"required"`
	Selector Selector      `json:"selector" yaml:"selector"`
	Entity   EntityMapping `json:"entity" yaml:"entity" validate:"required"`
}

// Settings carries the pass-wide safety and relation-handling flags.
type Settings struct {
	// DeleteThreshold is the fraction (0.0-1.0) of the known entity set
	// that may be deleted in one pass. Exceeding it skips all deletions
	// for the kind. Zero always skips deletion. Nil disables the guard;
	// an omitted YAML field defaults to 1.0.
	DeleteThreshold *float64 `json:"delete_threshold,omitempty" yaml:"delete_threshold,omitempty" validate:"omitempty,gte=0,lte=1"`

	// DeleteDependentEntities allows deleting entities that other
	// entities still relate to, skipping dependency validation.
	DeleteDependentEntities bool `json:"delete_dependent_entities,omitempty" yaml:"delete_dependent_entities,omitempty"`

	// CreateMissingRelatedEntities relaxes the relation validation gate:
	// relation targets absent from catalog and pass are created by the
	// catalog on demand instead of failing the apply.
	CreateMissingRelatedEntities bool `json:"create_missing_related_entities,omitempty" yaml:"create_missing_related_entities,omitempty"`

	// EnableMergeEntity merges upserted properties into existing catalog
	// state instead of replacing it.
	EnableMergeEntity bool `json:"enable_merge_entity,omitempty" yaml:"enable_merge_entity,omitempty"`
}

// SyncConfig is the full configuration for reconciliation passes.
type SyncConfig struct {
	Resources []Resource `json:"resources" yaml:"resources" validate:"required,min=1,dive"`
	Settings  Settings   `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// defaultDeleteThreshold applies when the YAML field is omitted entirely.
const defaultDeleteThreshold = 1.0

// Threshold returns the effective deletion threshold and whether the guard
// is enabled.
func (s Settings) Threshold() (float64, bool) {
	if s.DeleteThreshold == nil {
		return 0, false
	}
	return *s.DeleteThreshold, true
}

// Kinds returns the distinct kinds configured, in first-appearance order.
func (c *SyncConfig) Kinds() []string {
	seen := make(map[string]struct{}, len(c.Resources))
	kinds := make([]string, 0, len(c.Resources))
	for _, r := range c.Resources {
		if _, ok := seen[r.Kind]; ok {
			continue
		}
		seen[r.Kind] = struct{}{}
		kinds = append(kinds, r.Kind)
	}
	return kinds
}

// ResourcesFor returns the resources configured for a kind, in order.
func (c *SyncConfig) ResourcesFor(kind string) []Resource {
	var out []Resource
	for _, r := range c.Resources {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// validate is the shared validator instance. validator caches struct
// metadata, so a single instance is the intended usage.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for structural problems.
func (c *SyncConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.NewConfigError("sync", "invalid sync configuration", err)
	}
	return nil
}
