package dag

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vk/wheelgrid/internal/ctxlog"
)

// ErrGateFalse is returned by a RunFunc whose condition did not hold. The node
// is marked Skipped, not Failed.
var ErrGateFalse = errors.New("condition is false")

// ErrUpstream is the skip reason of nodes whose dependency did not succeed.
var ErrUpstream = errors.New("upstream did not succeed")

// RunFunc executes one node.
type RunFunc func(ctx context.Context, id string) error

// Observer is notified of node state changes while a graph runs. Calls may
// arrive concurrently from several workers.
type Observer interface {
	NodeStarted(id string)
	NodeFinished(res NodeResult)
}

// Executor runs graphs with a bounded pool of workers.
type Executor struct {
	numWorkers int
	observer   Observer
	now        func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithObserver registers an observer for node state changes.
func WithObserver(o Observer) Option {
	return func(e *Executor) { e.observer = o }
}

// NewExecutor creates an executor. A worker count below one means one.
func NewExecutor(numWorkers int, opts ...Option) *Executor {
	if numWorkers < 1 {
		numWorkers = 1
	}
	e := &Executor{numWorkers: numWorkers, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// task is the per-run bookkeeping for one node.
type task struct {
	id         string
	depCount   atomic.Int32
	dependents []*task
	finishOnce sync.Once
	result     NodeResult
}

// run is the state of one Executor.Run call.
type run struct {
	exec   *Executor
	fn     RunFunc
	tasks  map[string]*task
	ready  chan *task
	wg     sync.WaitGroup
	result *Result
}

// Run executes every node of the graph and waits for all of them to reach a
// terminal state. The returned error is only about the graph itself; node
// failures are reported through Result.Err.
func (e *Executor) Run(ctx context.Context, g *Graph, fn RunFunc) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	order, err := g.TopoOrder()
	if err != nil {
		return nil, err
	}

	r := &run{
		exec:   e,
		fn:     fn,
		tasks:  make(map[string]*task, len(order)),
		ready:  make(chan *task, len(order)),
		result: newResult(order),
	}
	for _, id := range order {
		r.tasks[id] = &task{id: id, result: NodeResult{ID: id, State: Pending}}
	}
	for _, id := range order {
		deps, _ := g.Dependencies(id)
		t := r.tasks[id]
		t.depCount.Store(int32(len(deps)))
		for _, dep := range deps {
			r.tasks[dep].dependents = append(r.tasks[dep].dependents, t)
		}
	}
	if len(order) == 0 {
		return r.result, nil
	}

	r.wg.Add(len(order))
	roots := 0
	for _, id := range order {
		if t := r.tasks[id]; t.depCount.Load() == 0 {
			r.ready <- t
			roots++
		}
	}
	logger.Debug("Starting worker pool.", "workers", e.numWorkers, "nodes", len(order), "roots", roots)

	for i := 0; i < e.numWorkers; i++ {
		go r.worker(ctx, i)
	}

	r.wg.Wait()
	close(r.ready)
	r.result.setCanceled(ctx.Err())
	logger.Debug("All nodes reached a terminal state.")
	return r.result, nil
}

func (r *run) worker(ctx context.Context, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for t := range r.ready {
		workerLogger := logger.With("workerID", workerID, "nodeID", t.id)

		if err := ctx.Err(); err != nil {
			workerLogger.Warn("Context canceled, skipping node execution.")
			r.finish(t, Skipped, err, "")
			r.skipDependents(ctx, t)
			continue
		}

		workerLogger.Debug("Worker picked up node for execution.")
		t.result.State = Running
		t.result.Started = r.exec.now()
		r.result.set(t.result)
		if r.exec.observer != nil {
			r.exec.observer.NodeStarted(t.id)
		}

		err := r.call(ctx, t.id)
		switch {
		case err == nil:
			workerLogger.Debug("Node execution succeeded.")
			r.finish(t, Succeeded, nil, "")
			for _, dependent := range t.dependents {
				if dependent.depCount.Add(-1) == 0 {
					workerLogger.Debug("Unlocking dependent node.", "dependentID", dependent.id)
					r.ready <- dependent
				}
			}
		case errors.Is(err, ErrGateFalse):
			workerLogger.Info("Node skipped, its condition is false.")
			r.finish(t, Skipped, err, "")
			r.skipDependents(ctx, t)
		default:
			workerLogger.Error("Node execution failed.", "error", err)
			r.finish(t, Failed, err, "")
			r.skipDependents(ctx, t)
		}
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}

// call runs the node function, turning a panic into a node failure.
func (r *run) call(ctx context.Context, id string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v\n%s", p, debug.Stack())
		}
	}()
	return r.fn(ctx, id)
}

// finish moves a task into a terminal state exactly once.
func (r *run) finish(t *task, state State, err error, skippedBy string) bool {
	finished := false
	t.finishOnce.Do(func() {
		finished = true
		t.result.State = state
		t.result.Err = err
		t.result.SkippedBy = skippedBy
		t.result.Finished = r.exec.now()
		r.result.set(t.result)
		if r.exec.observer != nil {
			r.exec.observer.NodeFinished(t.result)
		}
		r.wg.Done()
	})
	return finished
}

// skipDependents recursively marks all downstream nodes as skipped. A
// dependent can never be running here: it is only scheduled once every
// dependency has succeeded.
func (r *run) skipDependents(ctx context.Context, t *task) {
	logger := ctxlog.FromContext(ctx)
	for _, dependent := range t.dependents {
		if r.finish(dependent, Skipped, fmt.Errorf("%w: %s", ErrUpstream, t.id), t.id) {
			logger.Warn("Skipping dependent node.", "nodeID", dependent.id, "dependency", t.id)
			r.skipDependents(ctx, dependent)
		}
	}
}
