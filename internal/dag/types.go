package dag

import (
	"fmt"
	"sync"
	"time"
)

// Graph is a collection of nodes and their dependencies, representing a DAG.
// All operations on the graph are concurrency-safe.
type Graph struct {
	// mutex protects the nodes map during concurrent access.
	mutex sync.RWMutex
	// nodes stores all nodes in the graph, keyed by their unique ID.
	nodes map[string]*node
}

// node represents a single vertex in the graph. It is un-exported to
// enforce interaction with the graph via the public API (using string IDs),
// not by direct struct manipulation.
type node struct {
	// id is the unique identifier for the node.
	id string
	// deps holds the set of nodes that this node depends on (predecessors).
	deps map[string]*node
	// dependents holds the set of nodes that depend on this node (successors).
	dependents map[string]*node
}

// State is the lifecycle state of one node in a run.
type State int32

const (
	Pending State = iota
	Running
	Succeeded
	Failed
	Skipped
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether the node will not change state again.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed || s == Skipped
}

// NodeResult is the outcome of one node.
type NodeResult struct {
	ID    string
	State State
	// Err is the failure for Failed nodes and the reason for Skipped ones.
	Err error
	// SkippedBy names the upstream node whose outcome skipped this one.
	SkippedBy string
	Started   time.Time
	Finished  time.Time
}

// Duration is the wall time the node spent running.
func (r *NodeResult) Duration() time.Duration {
	if r.Started.IsZero() || r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}
