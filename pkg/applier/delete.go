package applier

import (
	"context"

	"github.com/harborsync/harborsync/pkg/entities"
	"github.com/harborsync/harborsync/pkg/errors"
	"github.com/harborsync/harborsync/pkg/logging"
	"github.com/harborsync/harborsync/pkg/topo"
)

// DeleteReport is the outcome of one delete call.
type DeleteReport struct {
	// Deleted holds entities removed from the catalog.
	Deleted []entities.Entity

	// Skipped holds entities excluded from deletion: relation targets of
	// the pass's upserts, or the whole candidate set when the safety
	// guard trips.
	Skipped []entities.Entity

	// Failed holds entities whose delete call failed.
	Failed []FailedEntity

	// GuardTripped is set when the deletion threshold aborted the set.
	// A tripped guard is a warning, not a pass failure.
	GuardTripped *errors.ThresholdExceededError
}

// Delete removes candidate entities from the catalog, applying two safety
// layers first.
//
// Dependency protection: a candidate that is a relation target of any
// upserted entity in the same pass is skipped, so nothing another entity now
// depends on is removed. DeleteDependent disables this protection entirely.
//
// Threshold guard: if the surviving candidates exceed Threshold times the
// previously known entity count, every deletion for the kind is skipped.
// Stale-but-present data is preferred over mass deletion. A threshold of
// zero always aborts; a nil Threshold disables the guard.
//
// Deletion walks the dependency ordering in reverse so dependents are
// removed before their dependencies.
func (a *Applier) Delete(ctx context.Context, candidates []entities.Entity, opts DeleteOptions) (*DeleteReport, error) {
	opts = opts.withDefaults()
	report := &DeleteReport{}

	candidates = entities.Unique(candidates)
	if len(candidates) == 0 {
		return report, nil
	}

	if !opts.DeleteDependent {
		candidates = a.excludeDependencyTargets(ctx, candidates, opts.Upserted, report)
	}
	if len(candidates) == 0 {
		return report, nil
	}

	if opts.Threshold != nil {
		allowed := *opts.Threshold * float64(opts.KnownBefore)
		if float64(len(candidates)) > allowed {
			report.GuardTripped = &errors.ThresholdExceededError{
				Kind:       opts.Kind,
				Candidates: len(candidates),
				Known:      opts.KnownBefore,
				Threshold:  *opts.Threshold,
			}
			report.Skipped = append(report.Skipped, candidates...)
			logging.Ctx(ctx).Warn().
				Int("candidates", len(candidates)).
				Int("known", opts.KnownBefore).
				Float64("threshold", *opts.Threshold).
				Str("kind", opts.Kind).
				Msg("Deletion threshold exceeded, skipping all deletions for kind")
			return report, nil
		}
	}

	ordered := candidates
	if !opts.DeleteDependent {
		var err error
		ordered, err = topo.Order(candidates)
		if err != nil {
			return nil, err
		}
	}
	ordered = topo.Reverse(ordered)

	for _, group := range groupByBlueprint(ordered) {
		for _, batch := range chunk(group.entities, opts.MaxBatchCount, opts.MaxBatchBytes) {
			results, err := a.client.BulkDelete(ctx, group.blueprint, batch, opts.UserAgent)
			if err != nil {
				return nil, errors.Wrapf(err, "bulk delete for blueprint %s", group.blueprint)
			}

			for _, result := range results {
				if result.OK {
					report.Deleted = append(report.Deleted, result.Entity)
					continue
				}
				logging.Ctx(ctx).Warn().
					Err(result.Err).
					Str("entity", result.Entity.Key().String()).
					Msg("Failed to delete entity")
				report.Failed = append(report.Failed, FailedEntity{Entity: result.Entity, Err: result.Err})
			}
		}
	}

	return report, nil
}

// excludeDependencyTargets filters out candidates that upserted entities of
// the same pass relate to, recording them as skipped.
func (a *Applier) excludeDependencyTargets(ctx context.Context, candidates, upserted []entities.Entity, report *DeleteReport) []entities.Entity {
	if len(upserted) == 0 {
		return candidates
	}

	referenced := make(map[string]struct{})
	for _, e := range upserted {
		for _, target := range e.RelationTargets() {
			referenced[target] = struct{}{}
		}
	}
	if len(referenced) == 0 {
		return candidates
	}

	kept := make([]entities.Entity, 0, len(candidates))
	for _, candidate := range candidates {
		if _, ok := referenced[candidate.Identifier]; ok {
			logging.Ctx(ctx).Debug().
				Str("entity", candidate.Key().String()).
				Msg("Skipping deletion, entity is a relation target of an upserted entity")
			report.Skipped = append(report.Skipped, candidate)
			continue
		}
		kept = append(kept, candidate)
	}
	return kept
}
