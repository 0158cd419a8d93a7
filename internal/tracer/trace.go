package tracer

import (
	"github.com/google/uuid"

	"github.com/weft-ml/weft/internal/ir"
)

// TraceInput names one trace entry point: either a variable (a true
// graph input that may vary between invocations of the trace) or a
// bare auxiliary buffer that gets an anonymous placeholder input.
// Exactly one field may be set.
type TraceInput struct {
	Variable *Variable
	Buffer   *ir.Tensor
}

// Option configures Enter.
type Option func(*TracingState)

// WithBackwardCapture installs the collaborator that records the
// backward graph after Exit.
func WithBackwardCapture(fn BackwardCapture) Option {
	return func(s *TracingState) { s.backward = fn }
}

// Enter starts a new trace over the given inputs and returns the
// activated state together with the variables actually being traced
// (repeated variables are replaced by fresh views so that each input
// position stays distinct). Any variable not listed here will be
// folded into the trace as a constant.
func Enter(traceInputs []TraceInput, numStages int, opts ...Option) (*TracingState, []*Variable, error) {
	s := &TracingState{
		ID:        uuid.New(),
		Graph:     ir.New(),
		VarFlags:  make([]StageFlags, numStages),
		bufferMap: make(map[*ir.Tensor]*ir.Value),
	}
	s.slot, s.gen = arena.register(s)
	for _, opt := range opts {
		opt(s)
	}

	var inputs []*Variable
	for i, ti := range traceInputs {
		switch {
		case ti.Variable != nil && ti.Buffer != nil:
			s.Close()
			return nil, nil, contractErrorf(ErrCodeBadTraceInput,
				"trace input %d sets both variable and buffer", i)
		case ti.Variable != nil:
			input := ti.Variable
			if input.stateElem(s, false) != nil {
				// A repeated input would collapse two input positions
				// onto one value; give the repeat its own identity.
				input = &Variable{Name: input.Name, Data: input.Data, RequiresGrad: input.RequiresGrad}
			}
			node := s.Graph.AddInput(input.Name)
			if input.Defined() {
				node.InferTypeFrom(input.Data)
			}
			s.SetValueTrace(input, node)
			inputs = append(inputs, input)
		case ti.Buffer != nil:
			n := s.Graph.AddInput("")
			n.InferTypeFrom(ti.Buffer)
			s.bufferMap[ti.Buffer] = n
		default:
			s.Close()
			return nil, nil, contractErrorf(ErrCodeBadTraceInput,
				"trace input %d is empty", i)
		}
	}

	if len(s.VarFlags) > 0 {
		s.VarFlags[0].Inputs = flagsOfAll(inputs)
	}
	s.active = true
	s.inputs = inputs
	return s, inputs, nil
}

// IsTracing reports whether an operation over vars should be traced.
// It suffices for one variable to carry a live active trace; the rest
// fold in as constants.
func IsTracing(vars ...*Variable) bool {
	for _, v := range vars {
		if v.Tracing() {
			return true
		}
	}
	return false
}

// StateOf returns the tracing state an operation over vars records
// into. Precondition: IsTracing(vars). Mixing variables from two
// different live traces in one operation is a contract violation.
func StateOf(vars []*Variable) (*TracingState, error) {
	var state *TracingState
	for _, v := range vars {
		if v == nil || !v.Defined() {
			continue
		}
		for _, s := range v.liveStates() {
			if !s.Active() {
				continue
			}
			if state == nil {
				state = s
			} else if state != s {
				return nil, contractErrorf(ErrCodeMixedStates,
					"operation mixes variables from traces %s and %s", state.ID, s.ID)
			}
		}
	}
	if state == nil {
		return nil, contractErrorf(ErrCodeNoActiveTrace, "no operand carries an active trace")
	}
	return state, nil
}

// SetValueTrace records that, from here on, v's result is represented
// by value in this trace.
func (s *TracingState) SetValueTrace(v *Variable, value *ir.Value) {
	if err := s.check(); err != nil {
		panic(err)
	}
	v.stateElem(s, true).value = value
}

// ValueTrace returns the value representing v's current trace. An
// untraced variable that is a known auxiliary buffer resolves to its
// placeholder; any other untraced variable is embedded as a constant
// holding its current payload. An undefined variable resolves to a
// fresh undefined sentinel.
func (s *TracingState) ValueTrace(v *Variable) *ir.Value {
	if err := s.check(); err != nil {
		panic(err)
	}
	if !v.Defined() {
		return s.Graph.AppendNode(s.Graph.CreateUndefined()).Output()
	}
	if ref := v.stateElem(s, true); ref.value != nil {
		return ref.value
	}
	if placeholder, ok := s.bufferMap[v.Data]; ok {
		return placeholder
	}
	constant := s.Graph.AppendNode(s.Graph.CreateConstant(v.Data.Clone())).Output()
	constant.InferTypeFrom(v.Data)
	s.SetValueTrace(v, constant)
	return constant
}

// outputTrace resolves a trace output without constant fallback: an
// output that never became data-dependent on the inputs means the
// program cannot be traced.
func (s *TracingState) outputTrace(v *Variable, outputNo int) (*ir.Value, error) {
	if !v.Defined() {
		return s.Graph.AppendNode(s.Graph.CreateUndefined()).Output(), nil
	}
	ref := v.stateElem(s, false)
	if ref == nil || ref.value == nil {
		return nil, contractErrorf(ErrCodeUntraceableOutput,
			"output %d of traced region did not have observable data dependence with trace inputs; "+
				"this probably indicates the program cannot be understood by the tracer", outputNo)
	}
	return ref.value, nil
}

// Exit finishes the trace: each output's current trace becomes a graph
// output, the state deactivates, the output metadata snapshot for the
// current stage is taken, and the backward-capture collaborator (if
// any) runs with the same input/output sets.
func (s *TracingState) Exit(outputs []*Variable) error {
	if err := s.check(); err != nil {
		return err
	}
	for i, out := range outputs {
		v, err := s.outputTrace(out, i)
		if err != nil {
			return err
		}
		s.Graph.RegisterOutput(v)
	}
	s.active = false
	if stage := s.Graph.Stage(); stage < len(s.VarFlags) {
		s.VarFlags[stage].Outputs = flagsOfAll(outputs)
	}
	if s.backward != nil {
		if err := s.backward(s, s.inputs, outputs); err != nil {
			return err
		}
	}
	s.inputs = nil
	return nil
}
