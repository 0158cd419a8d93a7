package tracer

import (
	"github.com/google/uuid"

	"github.com/weft-ml/weft/internal/ir"
)

// stateArena hands out (slot, generation) identities for tracing
// states. Variables reference states only through these pairs, so a
// released slot invalidates every link at once by bumping the
// generation; no reference cycle between variables and states exists.
// Tracing is single-threaded, so the arena needs no locking.
type stateArena struct {
	states []*TracingState
	gens   []uint64
	free   []int
}

var arena stateArena

func (a *stateArena) register(s *TracingState) (int, uint64) {
	var slot int
	if n := len(a.free); n > 0 {
		slot = a.free[n-1]
		a.free = a.free[:n-1]
		a.states[slot] = s
	} else {
		slot = len(a.states)
		a.states = append(a.states, s)
		a.gens = append(a.gens, 0)
	}
	return slot, a.gens[slot]
}

func (a *stateArena) release(slot int) {
	a.states[slot] = nil
	a.gens[slot]++ // expires every outstanding link
	a.free = append(a.free, slot)
}

// live returns the state at slot if the generation still matches.
func (a *stateArena) live(slot int, gen uint64) *TracingState {
	if slot >= len(a.states) || a.gens[slot] != gen {
		return nil
	}
	return a.states[slot]
}

// VariableFlags is the per-stage metadata snapshot recorded for trace
// arguments and results.
type VariableFlags struct {
	RequiresGrad bool
	Defined      bool
}

// FlagsOf captures the flags of one variable.
func FlagsOf(v *Variable) VariableFlags {
	return VariableFlags{RequiresGrad: v.RequiresGrad, Defined: v.Defined()}
}

func flagsOfAll(vars []*Variable) []VariableFlags {
	out := make([]VariableFlags, len(vars))
	for i, v := range vars {
		out[i] = FlagsOf(v)
	}
	return out
}

// StageFlags holds the input and output snapshots for one stage.
type StageFlags struct {
	Inputs  []VariableFlags
	Outputs []VariableFlags
}

// BackwardCapture is the collaborator invoked after Exit to record the
// backward graph as the next stage, using the same input/output sets.
type BackwardCapture func(state *TracingState, inputs, outputs []*Variable) error

// TracingState owns one in-progress trace: the graph being recorded,
// the active flag, and the placeholder map for auxiliary buffers that
// are not wrapped in variables.
type TracingState struct {
	// ID identifies the trace in diagnostics and storage.
	ID uuid.UUID

	// Graph receives the recorded nodes.
	Graph *ir.Graph

	// VarFlags snapshots argument/result metadata per stage.
	VarFlags []StageFlags

	active  bool
	expired bool
	slot    int
	gen     uint64

	bufferMap map[*ir.Tensor]*ir.Value
	inputs    []*Variable
	backward  BackwardCapture
}

// Active reports whether the state is still recording.
func (s *TracingState) Active() bool { return s.active && !s.expired }

// Expired reports whether Close released the state.
func (s *TracingState) Expired() bool { return s.expired }

// Close releases the state's arena slot, expiring every weak link that
// still points at it. Further use of the state is a contract error.
func (s *TracingState) Close() {
	if s.expired {
		return
	}
	s.active = false
	s.expired = true
	arena.release(s.slot)
}

func (s *TracingState) check() error {
	if s.expired {
		return contractErrorf(ErrCodeExpiredState, "tracing state %s was closed", s.ID)
	}
	return nil
}
