package tracer

import "github.com/weft-ml/weft/internal/ir"

// Kernel is the opaque numeric collaborator for one operation: it
// consumes payloads and produces payloads. The tracer never looks
// inside.
type Kernel func(inputs ...*ir.Tensor) ([]*ir.Tensor, error)

// PendingTrace carries recording context between PreRecord and
// PostRecord, around the actual kernel invocation.
type PendingTrace struct {
	State *TracingState
	Node  *ir.Node
}

// PreRecord resolves the trace of every operand (folding untraced ones
// in as constants) and creates, but does not insert, the node for this
// invocation. Call it before running the kernel so that constants
// embed the pre-invocation payloads.
func PreRecord(op ir.Symbol, inputs []*Variable) (*PendingTrace, error) {
	state, err := StateOf(inputs)
	if err != nil {
		return nil, err
	}
	values := make([]*ir.Value, len(inputs))
	for i, in := range inputs {
		values[i] = state.ValueTrace(in)
	}
	node := state.Graph.Create(op, values, 0)
	return &PendingTrace{State: state, Node: node}, nil
}

// PostRecord attaches one output value per result variable, points
// each result's trace at it, and splices the node into the graph.
func PostRecord(p *PendingTrace, outputs []*Variable) {
	for _, out := range outputs {
		v := p.Node.AddOutput()
		if out.Defined() {
			v.InferTypeFrom(out.Data)
		}
		p.State.SetValueTrace(out, v)
	}
	p.State.Graph.AppendNode(p.Node)
}

// Apply runs one operation through the recording protocol: it executes
// the kernel and, when at least one operand has an active trace,
// records the invocation. Untraced invocations execute opaquely.
func Apply(op ir.Symbol, kernel Kernel, inputs ...*Variable) ([]*Variable, error) {
	var pending *PendingTrace
	if IsTracing(inputs...) {
		p, err := PreRecord(op, inputs)
		if err != nil {
			return nil, err
		}
		pending = p
	}

	payloads := make([]*ir.Tensor, len(inputs))
	for i, in := range inputs {
		if in.Defined() {
			payloads[i] = in.Data
		}
	}
	results, err := kernel(payloads...)
	if err != nil {
		return nil, err
	}

	outputs := make([]*Variable, len(results))
	for i, r := range results {
		outputs[i] = &Variable{Data: r}
	}
	if pending != nil {
		PostRecord(pending, outputs)
	}
	return outputs, nil
}
