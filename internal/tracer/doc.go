// Package tracer records executed tensor operations into an ir.Graph.
//
// A trace starts with Enter, which turns a set of named runtime
// variables into graph inputs and activates a TracingState. While the
// state is active, every traced operation routes through the
// PreRecord/PostRecord pair (or the Apply convenience wrapper), which
// looks up each operand's current trace and appends one node per
// invocation. Operands with no active trace are folded in as embedded
// constants, so tracing is infectious from any single tracked input.
// Exit registers the outputs and deactivates the state.
//
// A variable can participate in several overlapping traces, so it
// holds a small ordered list of weak links rather than one. Links are
// (slot, generation) pairs into a package arena of state slots; a
// released slot bumps its generation, which invalidates every link
// pointing at it without touching the variables. Expired links are
// pruned lazily the next time the variable's list is consulted.
//
// Tracing is a single-threaded, run-to-completion protocol. Contract
// violations (mixing live traces, querying an untraceable output,
// reusing an expired state) are programming errors, reported as
// *ContractError values.
package tracer
