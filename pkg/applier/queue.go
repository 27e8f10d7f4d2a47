package applier

import (
	"sync"

	"github.com/harborsync/harborsync/pkg/entities"
)

// QueuedEntity is one retry-queue entry, tagged with the kind whose pass
// produced it so retry outcomes count against the right kind.
type QueuedEntity struct {
	Kind   string
	Entity entities.Entity
}

// Queue is the pass-scoped retry queue for entities whose apply failed on
// relation ordering. It is created at pass start, drained exactly once at
// pass end, and discarded with the pass. Only the owning pass touches it.
type Queue struct {
	mu      sync.Mutex
	pending []QueuedEntity
}

// NewQueue creates an empty retry queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Register adds entities for the pass-end retry.
func (q *Queue) Register(kind string, list ...entities.Entity) {
	if len(list) == 0 {
		return
	}
	q.mu.Lock()
	for _, e := range list {
		q.pending = append(q.pending, QueuedEntity{Kind: kind, Entity: e})
	}
	q.mu.Unlock()
}

// Drain removes and returns all queued entries, de-duplicated by entity
// identity, first registration wins.
func (q *Queue) Drain() []QueuedEntity {
	q.mu.Lock()
	defer q.mu.Unlock()

	seen := make(map[entities.Key]struct{}, len(q.pending))
	out := make([]QueuedEntity, 0, len(q.pending))
	for _, item := range q.pending {
		key := item.Entity.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	q.pending = nil
	return out
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
