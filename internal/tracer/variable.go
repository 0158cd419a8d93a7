package tracer

import "github.com/weft-ml/weft/internal/ir"

// Variable is a named runtime tensor-like value that can participate
// in traces. Data is the current payload; a nil payload means the
// variable is logically absent (undefined).
type Variable struct {
	Name         string
	Data         *ir.Tensor
	RequiresGrad bool

	// refs are weak links to the traces this variable participates
	// in, most recent first. Expired links are pruned lazily.
	refs []traceRef
}

// traceRef is one weak link: (slot, generation) into the state arena
// plus the value currently representing this variable in that trace.
type traceRef struct {
	slot  int
	gen   uint64
	value *ir.Value
}

// NewVariable wraps a payload for tracing.
func NewVariable(name string, data *ir.Tensor) *Variable {
	return &Variable{Name: name, Data: data}
}

// Defined reports whether the variable holds a payload.
func (v *Variable) Defined() bool { return v != nil && v.Data != nil }

// stateElem finds the link for state s, pruning expired links on the
// way. When alloc is set and no link exists, a fresh one is prepended
// (newest traces sit at the front, matching lookup locality for
// nested traces).
func (v *Variable) stateElem(s *TracingState, alloc bool) *traceRef {
	kept := v.refs[:0]
	var found *traceRef
	for i := range v.refs {
		r := v.refs[i]
		if arena.live(r.slot, r.gen) == nil {
			continue // lazily pruned
		}
		kept = append(kept, r)
		if arena.live(r.slot, r.gen) == s {
			found = &kept[len(kept)-1]
		}
	}
	v.refs = kept
	if found != nil || !alloc {
		return found
	}
	v.refs = append([]traceRef{{slot: s.slot, gen: s.gen}}, v.refs...)
	return &v.refs[0]
}

// liveStates returns the distinct live states the variable currently
// links to, pruning expired links.
func (v *Variable) liveStates() []*TracingState {
	kept := v.refs[:0]
	var out []*TracingState
	for i := range v.refs {
		r := v.refs[i]
		s := arena.live(r.slot, r.gen)
		if s == nil {
			continue
		}
		kept = append(kept, r)
		out = append(out, s)
	}
	v.refs = kept
	return out
}

// Tracing reports whether the variable is linked to any active trace.
func (v *Variable) Tracing() bool {
	if v == nil || !v.Defined() {
		return false
	}
	for _, s := range v.liveStates() {
		if s.Active() {
			return true
		}
	}
	return false
}
