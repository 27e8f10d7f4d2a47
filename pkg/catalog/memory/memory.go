// Package memory provides an in-memory catalog client for testing and
// dry-run reconciliation.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/harborsync/harborsync/pkg/catalog"
	"github.com/harborsync/harborsync/pkg/entities"
	"github.com/harborsync/harborsync/pkg/errors"
)

// Catalog is an in-memory implementation of catalog.Client. It mirrors the
// remote catalog's multi-status bulk semantics, including relation-not-found
// failures when strict relation handling is on.
type Catalog struct {
	mu         sync.RWMutex
	store      map[entities.Key]entities.Entity
	kinds      map[entities.Key]string
	blueprints map[string]entities.Blueprint
}

// New creates an empty in-memory catalog.
func New() *Catalog {
	return &Catalog{
		store:      make(map[entities.Key]entities.Entity),
		kinds:      make(map[entities.Key]string),
		blueprints: make(map[string]entities.Blueprint),
	}
}

// SetBlueprint registers a blueprint definition.
func (c *Catalog) SetBlueprint(bp entities.Blueprint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blueprints[bp.Identifier] = bp
}

// Seed inserts entities directly, bypassing bulk semantics. Test setup only.
func (c *Catalog) Seed(kind string, list ...entities.Entity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range list {
		c.store[e.Key()] = e
		c.kinds[e.Key()] = kind
	}
}

// Len returns the number of stored entities.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Get returns a stored entity by key.
func (c *Catalog) Get(key entities.Key) (entities.Entity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.store[key]
	return e, ok
}

// SearchEntities implements catalog.Client. Entities match when their
// recorded source kind equals the query kind, or when they belong to one of
// the query blueprints and carry no kind provenance.
func (c *Catalog) SearchEntities(_ context.Context, query catalog.Query) ([]entities.Entity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	blueprints := make(map[string]struct{}, len(query.Blueprints))
	for _, bp := range query.Blueprints {
		blueprints[bp] = struct{}{}
	}

	var out []entities.Entity
	for key, e := range c.store {
		if query.Kind != "" && c.kinds[key] == query.Kind {
			out = append(out, e)
			continue
		}
		if _, ok := blueprints[e.Blueprint]; ok && c.kinds[key] == "" {
			out = append(out, e)
		}
	}

	// Map iteration is unordered; sort for deterministic results.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Blueprint != out[j].Blueprint {
			return out[i].Blueprint < out[j].Blueprint
		}
		return out[i].Identifier < out[j].Identifier
	})
	return out, nil
}

// GetBlueprint implements catalog.Client.
func (c *Catalog) GetBlueprint(_ context.Context, identifier string) (*entities.Blueprint, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	bp, ok := c.blueprints[identifier]
	if !ok {
		return nil, errors.NewNotFoundError("blueprint", identifier)
	}
	return &bp, nil
}

// BulkUpsert implements catalog.Client. Entities are applied in order, so
// earlier entities in the same batch satisfy the relation checks of later
// ones. With strict relation handling, an entity referencing a target absent
// from the store fails with a relation-not-found outcome.
func (c *Catalog) BulkUpsert(_ context.Context, blueprint string, list []entities.Entity, opts catalog.UpsertOptions) ([]catalog.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	results := make([]catalog.Result, 0, len(list))
	for _, e := range list {
		if e.Blueprint != blueprint {
			results = append(results, catalog.Result{
				Entity: e,
				Err:    errors.Wrapf(errors.ErrInvalidInput, "entity %s does not belong to blueprint %s", e.Key(), blueprint),
			})
			continue
		}

		if missing := c.missingTargets(e); len(missing) > 0 {
			if !opts.CreateMissingRelated {
				results = append(results, catalog.Result{
					Entity: e,
					Err:    errors.Wrapf(errors.ErrRelationNotFound, "entity %s references %v", e.Key(), missing),
				})
				continue
			}
			for _, key := range missing {
				c.store[key] = entities.Entity{Identifier: key.Identifier, Blueprint: key.Blueprint}
			}
		}

		stored := e
		if opts.Merge {
			if existing, ok := c.store[e.Key()]; ok {
				stored = merge(existing, e)
			}
		}

		c.store[stored.Key()] = stored
		if opts.Kind != "" {
			c.kinds[stored.Key()] = opts.Kind
		}
		results = append(results, catalog.Result{Entity: stored, OK: true})
	}

	return results, nil
}

// BulkDelete implements catalog.Client. Deleting an absent entity reports a
// not-found outcome for that entity only.
func (c *Catalog) BulkDelete(_ context.Context, blueprint string, list []entities.Entity, _ catalog.UserAgentType) ([]catalog.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	results := make([]catalog.Result, 0, len(list))
	for _, e := range list {
		key := e.Key()
		if _, ok := c.store[key]; !ok {
			results = append(results, catalog.Result{
				Entity: e,
				Err:    errors.NewNotFoundError("entity", key.String()),
			})
			continue
		}
		delete(c.store, key)
		delete(c.kinds, key)
		results = append(results, catalog.Result{Entity: e, OK: true})
	}

	return results, nil
}

// EntityExists implements catalog.Client.
func (c *Catalog) EntityExists(_ context.Context, key entities.Key) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.store[key]
	return ok, nil
}

// missingTargets returns relation targets of e not present in the store.
// Targets are matched by identifier against the relation's target blueprint
// when the blueprint is registered, otherwise by identifier in e's own
// blueprint.
func (c *Catalog) missingTargets(e entities.Entity) []entities.Key {
	var missing []entities.Key
	bp, hasBlueprint := c.blueprints[e.Blueprint]

	names := make([]string, 0, len(e.Relations))
	for name := range e.Relations {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		targetBlueprint := e.Blueprint
		if hasBlueprint {
			if def, ok := bp.Relations[name]; ok {
				targetBlueprint = def.Target
			}
		}
		for _, target := range e.Relations[name].Targets() {
			if target == "" || target == e.Identifier {
				continue
			}
			key := entities.Key{Identifier: target, Blueprint: targetBlueprint}
			if _, ok := c.store[key]; !ok {
				missing = append(missing, key)
			}
		}
	}
	return missing
}

// merge overlays the incoming entity's properties and relations on the
// existing stored state.
func merge(existing, incoming entities.Entity) entities.Entity {
	merged := incoming

	if len(existing.Properties) > 0 {
		props := make(map[string]any, len(existing.Properties)+len(incoming.Properties))
		for k, v := range existing.Properties {
			props[k] = v
		}
		for k, v := range incoming.Properties {
			props[k] = v
		}
		merged.Properties = props
	}

	if len(existing.Relations) > 0 {
		rels := make(map[string]entities.Relation, len(existing.Relations)+len(incoming.Relations))
		for k, v := range existing.Relations {
			rels[k] = v
		}
		for k, v := range incoming.Relations {
			rels[k] = v
		}
		merged.Relations = rels
	}

	return merged
}
