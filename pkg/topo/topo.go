// Package topo orders entity sets so that relation targets are processed
// before the entities that depend on them.
package topo

import (
	"github.com/harborsync/harborsync/pkg/entities"
	"github.com/harborsync/harborsync/pkg/errors"
)

// Order sorts entities so that for every entity E with a relation to target
// T, T appears at or before E's position, provided T is a member of the input
// set. Targets not present in the set leave E unconstrained for that
// relation. Self-relations never create an edge.
//
// Ordering is stable: among entities whose dependencies are satisfied, input
// order is preserved. A cycle among members of the set returns a
// CyclicDependencyError; this is fatal for the set and not retried.
func Order(list []entities.Entity) ([]entities.Entity, error) {
	list = entities.Unique(list)
	if len(list) <= 1 {
		return list, nil
	}

	// Nodes are (identifier, blueprint) keys; targets are matched by
	// identifier against members of the set.
	byIdentifier := make(map[string][]entities.Key, len(list))
	for _, e := range list {
		byIdentifier[e.Identifier] = append(byIdentifier[e.Identifier], e.Key())
	}

	index := entities.Index(list)
	inDegree := make(map[entities.Key]int, len(list))
	dependents := make(map[entities.Key][]entities.Key, len(list))

	for _, e := range list {
		key := e.Key()
		if _, ok := inDegree[key]; !ok {
			inDegree[key] = 0
		}
		for _, target := range e.RelationTargets() {
			for _, targetKey := range byIdentifier[target] {
				if targetKey == key {
					continue
				}
				dependents[targetKey] = append(dependents[targetKey], key)
				inDegree[key]++
			}
		}
	}

	// Kahn's algorithm, seeded in input order for stability.
	queue := make([]entities.Key, 0, len(list))
	for _, e := range list {
		if inDegree[e.Key()] == 0 {
			queue = append(queue, e.Key())
		}
	}

	ordered := make([]entities.Entity, 0, len(list))
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		ordered = append(ordered, index[key])

		for _, dependent := range dependents[key] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(ordered) != len(list) {
		// Remaining nodes all sit on or behind a cycle.
		cycle := make([]string, 0, len(list)-len(ordered))
		for _, e := range list {
			if inDegree[e.Key()] > 0 {
				cycle = append(cycle, e.Key().String())
			}
		}
		return nil, errors.NewCyclicDependencyError(cycle)
	}

	return ordered, nil
}

// Reverse returns the entities in reverse order. Deletion walks the upsert
// ordering backwards so dependents are removed before their dependencies.
func Reverse(list []entities.Entity) []entities.Entity {
	reversed := make([]entities.Entity, len(list))
	for i, e := range list {
		reversed[len(list)-1-i] = e
	}
	return reversed
}
