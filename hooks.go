package stocktake

import (
	"sync"
)

// Hook function types for run events
type (
	// CommittedHook is called once the ledger transaction of a run committed
	CommittedHook func(run *Run)

	// FinalizedHook is called when a run's inventory directory was promoted
	FinalizedHook func(run *Run)

	// AbortedHook is called when a run stops before its inventory is promoted
	AbortedHook func(run *Run, err error)
)

// Hooks registers callbacks for run events.
type Hooks interface {
	OnCommitted(fn CommittedHook)
	OnFinalized(fn FinalizedHook)
	OnAborted(fn AbortedHook)
}

// hooks manages event callbacks for runs
type hooks struct {
	mu          sync.RWMutex
	onCommitted []CommittedHook
	onFinalized []FinalizedHook
	onAborted   []AbortedHook
}

// newHooks creates a new hooks instance
func newHooks() *hooks {
	return &hooks{}
}

// OnCommitted registers a callback for committed ledger transactions
func (h *hooks) OnCommitted(fn CommittedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onCommitted = append(h.onCommitted, fn)
}

// OnFinalized registers a callback for promoted inventories
func (h *hooks) OnFinalized(fn FinalizedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onFinalized = append(h.onFinalized, fn)
}

// OnAborted registers a callback for runs that did not finish
func (h *hooks) OnAborted(fn AbortedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onAborted = append(h.onAborted, fn)
}

func (h *hooks) committed(run *Run) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.onCommitted {
		fn(run)
	}
}

// finished triggers the hooks matching the run's outcome
func (h *hooks) finished(run *Run, err error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if err == nil {
		for _, fn := range h.onFinalized {
			fn(run)
		}
		return
	}
	for _, fn := range h.onAborted {
		fn(run, err)
	}
}
