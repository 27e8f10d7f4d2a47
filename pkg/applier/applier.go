// Package applier writes entity changesets to the remote catalog in
// size-bounded batches, tracking per-entity outcomes and classifying
// relation-ordering failures for deferred retry.
package applier

import (
	"context"
	"encoding/json"

	"github.com/harborsync/harborsync/pkg/catalog"
	"github.com/harborsync/harborsync/pkg/entities"
	"github.com/harborsync/harborsync/pkg/errors"
	"github.com/harborsync/harborsync/pkg/logging"
)

// FailedEntity pairs an entity with its terminal apply error.
type FailedEntity struct {
	Entity entities.Entity
	Err    error
}

// UpsertReport is the outcome of one upsert call.
type UpsertReport struct {
	// Loaded holds entities successfully applied.
	Loaded []entities.Entity

	// Deferred holds entities that failed because a related entity does
	// not exist yet. The caller registers these for the pass-end retry.
	Deferred []entities.Entity

	// Failed holds entities with terminal apply errors.
	Failed []FailedEntity
}

// Applier applies entity state against a catalog client.
type Applier struct {
	client catalog.Client
}

// New creates an Applier for the given catalog client.
func New(client catalog.Client) *Applier {
	return &Applier{client: client}
}

// Upsert applies entities to the catalog. Entities are grouped by blueprint,
// since bulk APIs are blueprint-scoped, then chunked so neither the entity
// count nor the serialized byte size exceeds the configured maxima. The
// input ordering is preserved within each blueprint group; callers order
// the input topologically beforehand.
//
// The returned error reports whole-call transport failures only; per-entity
// failures are carried in the report.
func (a *Applier) Upsert(ctx context.Context, list []entities.Entity, opts Options) (*UpsertReport, error) {
	opts = opts.withDefaults()
	report := &UpsertReport{}

	for _, group := range groupByBlueprint(list) {
		for _, chunk := range chunk(group.entities, opts.MaxBatchCount, opts.MaxBatchBytes) {
			results, err := a.client.BulkUpsert(ctx, group.blueprint, chunk, catalog.UpsertOptions{
				UserAgent:            opts.UserAgent,
				Kind:                 opts.Kind,
				CreateMissingRelated: opts.CreateMissingRelated,
				Merge:                opts.Merge,
			})
			if err != nil {
				return nil, errors.Wrapf(err, "bulk upsert for blueprint %s", group.blueprint)
			}

			for _, result := range results {
				switch {
				case result.OK:
					report.Loaded = append(report.Loaded, result.Entity)
				case opts.DeferRelationFailures && errors.IsRelationNotFound(result.Err):
					logging.Ctx(ctx).Debug().
						Str("entity", result.Entity.Key().String()).
						Msg("Deferring entity until related entities exist")
					report.Deferred = append(report.Deferred, result.Entity)
				default:
					logging.Ctx(ctx).Warn().
						Err(result.Err).
						Str("entity", result.Entity.Key().String()).
						Msg("Failed to upsert entity")
					report.Failed = append(report.Failed, FailedEntity{Entity: result.Entity, Err: result.Err})
				}
			}
		}
	}

	return report, nil
}

// blueprintGroup is one blueprint's slice of a mixed entity list.
type blueprintGroup struct {
	blueprint string
	entities  []entities.Entity
}

// groupByBlueprint splits entities into per-blueprint groups, preserving
// both group first-appearance order and entity order within a group.
func groupByBlueprint(list []entities.Entity) []blueprintGroup {
	index := make(map[string]int, 4)
	var groups []blueprintGroup
	for _, e := range list {
		i, ok := index[e.Blueprint]
		if !ok {
			i = len(groups)
			index[e.Blueprint] = i
			groups = append(groups, blueprintGroup{blueprint: e.Blueprint})
		}
		groups[i].entities = append(groups[i].entities, e)
	}
	return groups
}

// chunk splits a list so each chunk holds at most maxCount entities and at
// most maxBytes of serialized payload. An entity larger than maxBytes on its
// own still ships, alone in its chunk.
func chunk(list []entities.Entity, maxCount, maxBytes int) [][]entities.Entity {
	var chunks [][]entities.Entity
	var current []entities.Entity
	currentBytes := 0

	for _, e := range list {
		size := entitySize(e)
		if len(current) > 0 && (len(current) >= maxCount || currentBytes+size > maxBytes) {
			chunks = append(chunks, current)
			current = nil
			currentBytes = 0
		}
		current = append(current, e)
		currentBytes += size
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

// entitySize returns the serialized size of an entity in bytes.
func entitySize(e entities.Entity) int {
	raw, err := json.Marshal(e)
	if err != nil {
		return 0
	}
	return len(raw)
}
