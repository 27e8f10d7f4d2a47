package applier

import (
	"context"
	"sort"

	"github.com/harborsync/harborsync/pkg/entities"
	"github.com/harborsync/harborsync/pkg/errors"
)

// ValidateRelations checks that every relation target referenced by the
// upsert set either exists in the catalog already or is part of the set
// itself. This gate runs before anything is applied and fails the whole
// apply for the pass; it is skipped when create_missing_related_entities is
// enabled.
func (a *Applier) ValidateRelations(ctx context.Context, upserts []entities.Entity) error {
	if len(upserts) == 0 {
		return nil
	}

	inSet := make(map[string]struct{}, len(upserts))
	for _, e := range upserts {
		inSet[e.Identifier] = struct{}{}
	}

	// Target blueprints come from the relation definitions; blueprints
	// are fetched once per distinct blueprint in the set.
	blueprints := make(map[string]*entities.Blueprint)
	missing := make(map[string]map[string]struct{})

	for _, e := range upserts {
		if len(e.Relations) == 0 {
			continue
		}

		bp, ok := blueprints[e.Blueprint]
		if !ok {
			fetched, err := a.client.GetBlueprint(ctx, e.Blueprint)
			if err != nil && !errors.IsNotFound(err) {
				return errors.Wrapf(err, "fetching blueprint %s", e.Blueprint)
			}
			bp = fetched
			blueprints[e.Blueprint] = bp
		}

		for name, relation := range e.Relations {
			targetBlueprint := e.Blueprint
			if bp != nil {
				if def, ok := bp.Relations[name]; ok && def.Target != "" {
					targetBlueprint = def.Target
				}
			}

			for _, target := range relation.Targets() {
				if target == "" || target == e.Identifier {
					continue
				}
				if _, ok := inSet[target]; ok {
					continue
				}

				exists, err := a.client.EntityExists(ctx, entities.Key{Identifier: target, Blueprint: targetBlueprint})
				if err != nil {
					return errors.Wrapf(err, "checking related entity %s/%s", targetBlueprint, target)
				}
				if exists {
					continue
				}

				if missing[targetBlueprint] == nil {
					missing[targetBlueprint] = make(map[string]struct{})
				}
				missing[targetBlueprint][target] = struct{}{}
			}
		}
	}

	if len(missing) == 0 {
		return nil
	}

	failure := &errors.RelationValidationError{Missing: make(map[string][]string, len(missing))}
	for blueprint, ids := range missing {
		list := make([]string, 0, len(ids))
		for id := range ids {
			list = append(list, id)
		}
		sort.Strings(list)
		failure.Missing[blueprint] = list
	}
	return failure
}
