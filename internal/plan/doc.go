// Package plan turns a pipeline model and one trigger event into an
// execution plan. Build is a pure function: it evaluates every condition and
// decodes every step's arguments up front, checks the artifact hand-off
// contract, and lays the job instances out as a DAG. Nothing is executed.
//
// Every job is expanded into one instance per matrix cell. Each job also gets
// a join node that waits for all of its cells; a `needs` reference is an edge
// from the needed job's join node to every cell of the dependent job. Adding
// a platform to a fan-in therefore only adds one edge.
package plan
