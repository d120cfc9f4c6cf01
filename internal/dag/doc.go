// Package dag is the execution layer: a concurrency-safe directed acyclic
// graph of string-identified nodes and an executor that runs the graph with a
// bounded worker pool.
//
// An edge from A to B means B depends on A. A node is only scheduled once
// every one of its dependencies has succeeded. A failed node does not stop
// unrelated work; it marks its transitive dependents Skipped instead. A node
// whose run function returns ErrGateFalse is Skipped without being counted as
// a failure, and so are its dependents.
package dag
