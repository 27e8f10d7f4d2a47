package harborsync

import (
	"github.com/harborsync/harborsync/pkg/applier"
	"github.com/harborsync/harborsync/pkg/entities"
	"github.com/harborsync/harborsync/pkg/metrics"
)

// Result reports the outcome of one full reconciliation pass.
type Result struct {
	// Trigger records what started the pass.
	Trigger TriggerType

	// Snapshot holds the pass's per-kind phase counts.
	Snapshot metrics.Snapshot

	// KindErrors holds structural failures per kind: relation validation
	// rejections and cyclic dependency errors. Kinds absent from the map
	// reconciled, possibly with per-entity failures counted in the
	// snapshot.
	KindErrors map[string]error
}

// Failed reports whether any kind failed structurally. A pass with only
// per-entity load failures is not failed.
func (r *Result) Failed() bool {
	return len(r.KindErrors) > 0
}

// LiveResult reports the outcome of a single live-event reconciliation.
type LiveResult struct {
	// Applied holds entities upserted to the catalog.
	Applied []entities.Entity

	// Deleted holds entities removed from the catalog.
	Deleted []entities.Entity

	// Skipped holds entities the deletion guard or dependency protection
	// kept in place.
	Skipped []entities.Entity

	// Failed holds entities with terminal apply errors.
	Failed []applier.FailedEntity
}
