package ir

import (
	"fmt"
	"strings"
)

// LintError aggregates every invariant violation found in one pass.
type LintError struct {
	Problems []string
}

// Error implements the error interface.
func (e *LintError) Error() string {
	return fmt.Sprintf("ir: lint failed with %d problem(s):\n  %s",
		len(e.Problems), strings.Join(e.Problems, "\n  "))
}

// Lint validates the graph invariants:
//
//   - every node input is a graph input or defined earlier in the
//     execution order
//   - every Use record points at a live consumer slot that actually
//     references the value, and every consumer slot has a matching Use
//   - outputs reference live values of this graph
//   - sub-graph attributes satisfy the same invariants recursively
//
// Lint is meant for tests and post-mutation validation in passes; it
// walks the whole graph and is not amortized.
func (g *Graph) Lint() error {
	var problems []string
	g.lintInto(&problems, "")
	if len(problems) > 0 {
		return &LintError{Problems: problems}
	}
	return nil
}

func (g *Graph) lintInto(problems *[]string, prefix string) {
	report := func(format string, args ...any) {
		*problems = append(*problems, prefix+fmt.Sprintf(format, args...))
	}

	defined := make(map[ValueID]bool, len(g.values))
	for _, id := range g.param.outputs {
		defined[id] = true
	}

	inOrder := make(map[NodeID]bool, len(g.order))
	for _, id := range g.order {
		if inOrder[id] {
			report("node id %d appears twice in the execution order", id)
		}
		inOrder[id] = true
	}

	for _, n := range g.Nodes() {
		if n.dead {
			report("destroyed node %s (id %d) is still in the execution order", n.kind, n.id)
			continue
		}
		for slot, id := range n.inputs {
			v := g.value(id)
			if v.dead {
				report("node %s input %d references destroyed value %%%s", n.kind, slot, v.UniqueName())
			}
			if !defined[id] {
				report("node %s uses %%%s before its definition", n.kind, v.UniqueName())
			}
			if !useRecorded(v, n.id, slot) {
				report("node %s input %d has no matching Use record on %%%s", n.kind, slot, v.UniqueName())
			}
		}
		for off, id := range n.outputs {
			v := g.value(id)
			if v.node != n.id || v.offset != off {
				report("output %%%s of %s has inconsistent ownership (node %d slot %d)",
					v.UniqueName(), n.kind, v.node, v.offset)
			}
			defined[id] = true
		}
		for _, name := range n.attrs.names {
			a := n.attrs.values[name]
			switch a.Kind {
			case AttrGraph:
				a.G.lintInto(problems, prefix+string(n.kind)+"."+string(name)+": ")
			case AttrGraphs:
				for i, sub := range a.Gs {
					sub.lintInto(problems, fmt.Sprintf("%s%s.%s[%d]: ", prefix, n.kind, name, i))
				}
			}
		}
	}

	// Every Use must correspond to a real consumer slot.
	for _, v := range g.values {
		if v.dead {
			if len(v.uses) > 0 {
				report("destroyed value %%%s still has %d use(s)", v.UniqueName(), len(v.uses))
			}
			continue
		}
		for _, u := range v.uses {
			n := g.node(u.User)
			if n.dead || !n.inserted {
				report("value %%%s has a dangling Use on node id %d", v.UniqueName(), u.User)
				continue
			}
			if u.Slot >= len(n.inputs) || n.inputs[u.Slot] != v.id {
				report("value %%%s has a stale Use (%s slot %d)", v.UniqueName(), n.kind, u.Slot)
			}
		}
	}

	for i, id := range g.outputs {
		v := g.value(id)
		if v.dead {
			report("graph output %d references destroyed value %%%s", i, v.UniqueName())
		} else if !defined[id] {
			report("graph output %d references undefined value %%%s", i, v.UniqueName())
		}
	}
}

func useRecorded(v *Value, user NodeID, slot int) bool {
	for _, u := range v.uses {
		if u.User == user && u.Slot == slot {
			return true
		}
	}
	return false
}
