// Package entities defines the value types moved through the reconciliation
// pipeline: entities, blueprints, and the relations between them.
package entities

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// Key identifies an entity. Two entities with the same Key are the same
// entity, even when their properties or relations differ.
type Key struct {
	Identifier string
	Blueprint  string
}

// String returns the string representation of a key.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Blueprint, k.Identifier)
}

// Entity is a single record instance of a blueprint.
type Entity struct {
	Identifier string              `json:"identifier" yaml:"identifier"`
	Blueprint  string              `json:"blueprint" yaml:"blueprint"`
	Title      string              `json:"title,omitempty" yaml:"title,omitempty"`
	Team       Team                `json:"team,omitzero" yaml:"team,omitempty"`
	Properties map[string]any      `json:"properties,omitempty" yaml:"properties,omitempty"`
	Relations  map[string]Relation `json:"relations,omitempty" yaml:"relations,omitempty"`
}

// Key returns the entity's identity key.
func (e Entity) Key() Key {
	return Key{Identifier: e.Identifier, Blueprint: e.Blueprint}
}

// Same reports whether two entities share the same identity.
func (e Entity) Same(other Entity) bool {
	return e.Identifier == other.Identifier && e.Blueprint == other.Blueprint
}

// Equal reports whether two entities carry the same state. Team values that
// are search queries are never compared; a query on either side counts as
// equal (see Team.Equal).
func (e Entity) Equal(other Entity) bool {
	if !e.Same(other) {
		return false
	}
	if e.Title != other.Title {
		return false
	}
	if !e.Team.Equal(other.Team) {
		return false
	}
	if !reflect.DeepEqual(normalizeMap(e.Properties), normalizeMap(other.Properties)) {
		return false
	}
	if len(e.Relations) != len(other.Relations) {
		return false
	}
	for name, rel := range e.Relations {
		otherRel, ok := other.Relations[name]
		if !ok || !rel.Equal(otherRel) {
			return false
		}
	}
	return true
}

// RelationTargets returns the identifiers of every entity this entity relates
// to, excluding itself. Order is deterministic: relation names sorted, then
// target order within each relation.
func (e Entity) RelationTargets() []string {
	if len(e.Relations) == 0 {
		return nil
	}
	names := make([]string, 0, len(e.Relations))
	for name := range e.Relations {
		names = append(names, name)
	}
	sort.Strings(names)

	var targets []string
	for _, name := range names {
		for _, target := range e.Relations[name].Targets() {
			if target == "" || target == e.Identifier {
				continue
			}
			targets = append(targets, target)
		}
	}
	return targets
}

// normalizeMap round-trips a map through JSON so that numeric types compare
// consistently regardless of how the map was constructed.
func normalizeMap(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return m
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return m
	}
	return out
}

// Unique collapses duplicate entities by identity, keeping the first
// occurrence and preserving input order.
func Unique(list []Entity) []Entity {
	if len(list) == 0 {
		return nil
	}
	seen := make(map[Key]struct{}, len(list))
	out := make([]Entity, 0, len(list))
	for _, e := range list {
		key := e.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}

// Keys returns the identity keys for a list of entities, in order.
func Keys(list []Entity) []Key {
	keys := make([]Key, len(list))
	for i, e := range list {
		keys[i] = e.Key()
	}
	return keys
}

// Index builds a lookup map from identity key to entity. Later duplicates
// overwrite earlier ones.
func Index(list []Entity) map[Key]Entity {
	index := make(map[Key]Entity, len(list))
	for _, e := range list {
		index[e.Key()] = e
	}
	return index
}
