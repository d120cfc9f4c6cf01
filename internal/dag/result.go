package dag

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Result holds the state of every node of one run. It is safe to read while
// the run is still in progress.
type Result struct {
	mu       sync.RWMutex
	order    []string
	nodes    map[string]NodeResult
	canceled error
}

func newResult(order []string) *Result {
	res := &Result{order: order, nodes: make(map[string]NodeResult, len(order))}
	for _, id := range order {
		res.nodes[id] = NodeResult{ID: id, State: Pending}
	}
	return res
}

func (r *Result) set(n NodeResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes[n.ID] = n
}

func (r *Result) setCanceled(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.canceled = err
}

// Get returns the outcome of one node.
func (r *Result) Get(id string) (NodeResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[id]
	return n, ok
}

// State returns the state of one node, Pending for unknown IDs.
func (r *Result) State(id string) State {
	n, _ := r.Get(id)
	return n.State
}

// Nodes returns every node outcome in topological order.
func (r *Result) Nodes() []NodeResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]NodeResult, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.nodes[id])
	}
	return out
}

// Count returns how many nodes are in the given state.
func (r *Result) Count(state State) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, n := range r.nodes {
		if n.State == state {
			count++
		}
	}
	return count
}

// Err joins the errors of the failed nodes. Skipped nodes are symptoms, not
// causes, and are left out. A run that was canceled without any node failing
// returns the context error.
func (r *Result) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, id := range r.order {
		n := r.nodes[id]
		if n.State == Failed && !errors.Is(n.Err, context.Canceled) {
			errs = append(errs, fmt.Errorf("%s: %w", id, n.Err))
		}
	}
	if len(errs) == 0 && r.canceled != nil {
		return r.canceled
	}
	return errors.Join(errs...)
}
