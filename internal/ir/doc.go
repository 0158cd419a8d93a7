// Package ir implements the mutable graph intermediate representation
// for tensor computations.
//
// A Graph owns two arenas (nodes and values) addressed by stable
// integer IDs, an explicit execution-order list, and a stage counter
// marking logical trace generations. Nodes carry a namespaced
// operation kind, ordered input references, exclusively-owned output
// values, and a typed attribute map that may nest whole sub-graphs.
// Every value tracks its consumers through Use records, which is what
// makes ReplaceAllUsesWith and destruction checks O(uses) instead of
// O(graph).
//
// Graph inputs are modeled as the outputs of a hidden parameter node
// that never appears in the execution order, so "defined by a node or
// is a graph input" collapses to a single code path.
//
// The IR is deliberately single-threaded: a Graph is mutated only by
// the goroutine that owns it.
package ir
