package harborsync

import (
	"context"
	"sync"
)

// Hook function types for reconciliation lifecycle events
type (
	// ResyncStartHook is called before a pass begins. A non-nil error
	// aborts the pass before any fetch occurs.
	ResyncStartHook func(ctx context.Context) error

	// ResyncCompleteHook is called after a pass finishes its body.
	// Per-entity load failures do not suppress it; structural pass
	// failures do.
	ResyncCompleteHook func(ctx context.Context, result *Result)
)

// hooks manages lifecycle callbacks for reconciliation passes
type hooks struct {
	mu         sync.RWMutex
	onStart    []ResyncStartHook
	onComplete []ResyncCompleteHook
}

// newHooks creates a new hooks instance
func newHooks() *hooks {
	return &hooks{}
}

// OnResyncStart registers a callback run before each pass
func (h *hooks) OnResyncStart(fn ResyncStartHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onStart = append(h.onStart, fn)
}

// OnResyncComplete registers a callback run after each completed pass
func (h *hooks) OnResyncComplete(fn ResyncCompleteHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onComplete = append(h.onComplete, fn)
}

// triggerStart runs the start hooks in registration order, stopping at the
// first error.
func (h *hooks) triggerStart(ctx context.Context) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, fn := range h.onStart {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

// triggerComplete runs the complete hooks in registration order.
func (h *hooks) triggerComplete(ctx context.Context, result *Result) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, fn := range h.onComplete {
		fn(ctx, result)
	}
}

// OnResyncStart registers a callback run before each pass.
func (e *engine) OnResyncStart(fn ResyncStartHook) {
	e.hooks.OnResyncStart(fn)
}

// OnResyncComplete registers a callback run after each completed pass.
func (e *engine) OnResyncComplete(fn ResyncCompleteHook) {
	e.hooks.OnResyncComplete(fn)
}
