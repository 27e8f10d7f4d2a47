// Package metrics tracks per-kind object counts for each reconciliation
// phase and exposes them both as an in-process snapshot and as Prometheus
// collectors.
package metrics

import (
	"sync"
	"time"
)

// ReconciliationKind is the aggregate pseudo-kind carrying pass-level
// totals alongside the per-kind entries.
const ReconciliationKind = "reconciliation"

// KindMetrics holds the phase counters for one kind within a pass.
type KindMetrics struct {
	RawExtracted    int64 `json:"raw_extracted"`
	Transformed     int64 `json:"transformed"`
	FilteredOut     int64 `json:"filtered_out"`
	FailedTransform int64 `json:"failed_transform"`
	Loaded          int64 `json:"loaded"`
	Failed          int64 `json:"failed"`
	Deleted         int64 `json:"deleted"`
	DeletionSkipped int64 `json:"deletion_skipped"`
}

// Snapshot is a copy of the accumulated metrics, keyed by kind.
type Snapshot struct {
	Kinds    map[string]KindMetrics `json:"kinds"`
	Duration time.Duration          `json:"duration"`
	Success  bool                   `json:"success"`
}

// Accumulator collects phase counters during a pass. One accumulator is
// created per pass; the engine folds completed passes into its snapshot.
type Accumulator struct {
	mu       sync.Mutex
	kinds    map[string]*KindMetrics
	started  time.Time
	duration time.Duration
	success  bool

	collectors *Collectors
}

// NewAccumulator creates an accumulator for one pass, optionally publishing
// to the given Prometheus collectors.
func NewAccumulator(collectors *Collectors) *Accumulator {
	return &Accumulator{
		kinds:      make(map[string]*KindMetrics),
		started:    time.Now(),
		collectors: collectors,
	}
}

// kind returns the counter struct for a kind, creating it on first use.
func (a *Accumulator) kind(kind string) *KindMetrics {
	m, ok := a.kinds[kind]
	if !ok {
		m = &KindMetrics{}
		a.kinds[kind] = m
	}
	return m
}

// AddRawExtracted records raw records received from fetchers.
func (a *Accumulator) AddRawExtracted(kind string, n int) {
	a.mu.Lock()
	a.kind(kind).RawExtracted += int64(n)
	a.mu.Unlock()
	a.collectors.add(kind, "raw_extracted", n)
}

// AddTransformed records records successfully transformed to entities.
func (a *Accumulator) AddTransformed(kind string, n int) {
	a.mu.Lock()
	a.kind(kind).Transformed += int64(n)
	a.mu.Unlock()
	a.collectors.add(kind, "transformed", n)
}

// AddFilteredOut records records the selector rejected.
func (a *Accumulator) AddFilteredOut(kind string, n int) {
	a.mu.Lock()
	a.kind(kind).FilteredOut += int64(n)
	a.mu.Unlock()
	a.collectors.add(kind, "filtered_out", n)
}

// AddFailedTransform records records whose required fields failed to resolve.
func (a *Accumulator) AddFailedTransform(kind string, n int) {
	a.mu.Lock()
	a.kind(kind).FailedTransform += int64(n)
	a.mu.Unlock()
	a.collectors.add(kind, "failed_transform", n)
}

// AddLoaded records entities applied to the catalog.
func (a *Accumulator) AddLoaded(kind string, n int) {
	a.mu.Lock()
	a.kind(kind).Loaded += int64(n)
	a.mu.Unlock()
	a.collectors.add(kind, "loaded", n)
}

// AddFailed records entities that failed to apply terminally.
func (a *Accumulator) AddFailed(kind string, n int) {
	a.mu.Lock()
	a.kind(kind).Failed += int64(n)
	a.mu.Unlock()
	a.collectors.add(kind, "failed", n)
}

// AddDeleted records entities deleted from the catalog.
func (a *Accumulator) AddDeleted(kind string, n int) {
	a.mu.Lock()
	a.kind(kind).Deleted += int64(n)
	a.mu.Unlock()
	a.collectors.add(kind, "deleted", n)
}

// AddDeletionSkipped records entities excluded by the deletion guard or
// dependency protection.
func (a *Accumulator) AddDeletionSkipped(kind string, n int) {
	a.mu.Lock()
	a.kind(kind).DeletionSkipped += int64(n)
	a.mu.Unlock()
	a.collectors.add(kind, "deletion_skipped", n)
}

// Finish marks the pass complete and records its duration and outcome.
func (a *Accumulator) Finish(success bool) {
	a.mu.Lock()
	a.duration = time.Since(a.started)
	a.success = success
	a.mu.Unlock()
	a.collectors.finishPass(a.duration, success)
}

// Snapshot returns a copy of the accumulated metrics. The aggregate
// "reconciliation" entry sums all per-kind counters.
func (a *Accumulator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := Snapshot{
		Kinds:    make(map[string]KindMetrics, len(a.kinds)+1),
		Duration: a.duration,
		Success:  a.success,
	}

	var total KindMetrics
	for kind, m := range a.kinds {
		snap.Kinds[kind] = *m
		total.RawExtracted += m.RawExtracted
		total.Transformed += m.Transformed
		total.FilteredOut += m.FilteredOut
		total.FailedTransform += m.FailedTransform
		total.Loaded += m.Loaded
		total.Failed += m.Failed
		total.Deleted += m.Deleted
		total.DeletionSkipped += m.DeletionSkipped
	}
	snap.Kinds[ReconciliationKind] = total

	return snap
}
