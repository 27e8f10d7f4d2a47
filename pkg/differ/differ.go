// Package differ computes the difference between a known ("before") entity
// set and a freshly transformed ("after") entity set.
package differ

import (
	"github.com/harborsync/harborsync/pkg/entities"
)

// Differ handles change detection between entity states.
type Differ interface {
	// Entities compares a before and after entity set and returns the
	// changeset to apply against the catalog.
	Entities(before, after []entities.Entity) *Changeset
}

// differ is the default implementation of Differ.
type differ struct{}

// New creates a new Differ.
func New() Differ {
	return &differ{}
}

// Entities compares two entity sets and returns changes.
//
// Created holds after-entities with no identity match in before. Deleted
// holds before-entities with no identity match in after. Modified holds
// after-entities whose identity matches a before-entity but whose state
// differs; the after state wins on properties and relations. All three sets
// are de-duplicated by identity, preserving first occurrence order. Entities
// whose team is an opaque search query are never diffed on team content.
func (d *differ) Entities(before, after []entities.Entity) *Changeset {
	before = entities.Unique(before)
	after = entities.Unique(after)

	changeset := &Changeset{
		Created:  []entities.Entity{},
		Modified: []entities.Entity{},
		Deleted:  []entities.Entity{},
	}

	// Create maps for efficient lookup
	beforeMap := entities.Index(before)
	afterMap := entities.Index(after)

	// Find created and modified entities
	for _, entity := range after {
		if existing, exists := beforeMap[entity.Key()]; exists {
			if !existing.Equal(entity) {
				changeset.Modified = append(changeset.Modified, entity)
			}
		} else {
			changeset.Created = append(changeset.Created, entity)
		}
	}

	// Find deleted entities
	for _, entity := range before {
		if _, exists := afterMap[entity.Key()]; !exists {
			changeset.Deleted = append(changeset.Deleted, entity)
		}
	}

	changeset.calculateSummary(len(before))

	return changeset
}
