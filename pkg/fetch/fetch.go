// Package fetch defines the capability interface for vendor data-source
// fetchers. Fetchers are external collaborators: they own pagination,
// authentication, and rate limits against third-party APIs and deliver raw
// records here as a finite, non-restartable sequence of batches.
package fetch

import (
	"context"
	"sync"
)

// RawRecord is one untyped record as delivered by a vendor API.
type RawRecord = map[string]any

// Batch is one page of raw records. A batch with a non-nil Err terminates
// the sequence and aborts extraction for the kind.
type Batch struct {
	Records []RawRecord
	Err     error
}

// Fetcher produces raw-record batches for a kind. The returned channel is
// closed when the sequence ends; it cannot be restarted mid-stream.
// Implementations must honor context cancellation.
type Fetcher interface {
	Fetch(ctx context.Context, kind string) <-chan Batch
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, kind string) <-chan Batch

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, kind string) <-chan Batch {
	return f(ctx, kind)
}

// Registry is a thread-safe container associating kinds with their
// registered fetchers.
type Registry struct {
	mu       sync.RWMutex
	fetchers map[string][]Fetcher
}

// NewRegistry creates an empty fetcher registry.
func NewRegistry() *Registry {
	return &Registry{fetchers: make(map[string][]Fetcher)}
}

// Register adds a fetcher for a kind. Multiple fetchers per kind all run
// during a pass.
func (r *Registry) Register(kind string, fetcher Fetcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchers[kind] = append(r.fetchers[kind], fetcher)
}

// For returns the fetchers registered for a kind.
func (r *Registry) For(kind string) []Fetcher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fetchers := make([]Fetcher, len(r.fetchers[kind]))
	copy(fetchers, r.fetchers[kind])
	return fetchers
}

// Kinds returns every kind with at least one registered fetcher.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.fetchers))
	for kind := range r.fetchers {
		kinds = append(kinds, kind)
	}
	return kinds
}

// Static builds a fetcher that serves fixed batches. Useful for tests and
// replaying captured payloads.
func Static(batches ...[]RawRecord) Fetcher {
	return FetcherFunc(func(ctx context.Context, _ string) <-chan Batch {
		ch := make(chan Batch)
		go func() {
			defer close(ch)
			for _, records := range batches {
				select {
				case ch <- Batch{Records: records}:
				case <-ctx.Done():
					return
				}
			}
		}()
		return ch
	})
}
