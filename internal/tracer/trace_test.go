package tracer

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-ml/weft/internal/ir"
)

func elementwise(name string, fn func(...float32) float32) Kernel {
	return func(inputs ...*ir.Tensor) ([]*ir.Tensor, error) {
		if len(inputs) == 0 || inputs[0] == nil {
			return nil, fmt.Errorf("%s: undefined operand", name)
		}
		args := make([][]float32, len(inputs))
		for i, in := range inputs {
			vals, err := in.Floats()
			if err != nil {
				return nil, err
			}
			args[i] = vals
		}
		out := make([]float32, len(args[0]))
		row := make([]float32, len(inputs))
		for i := range out {
			for j := range args {
				row[j] = args[j][i]
			}
			out[i] = fn(row...)
		}
		return []*ir.Tensor{ir.FloatTensor(inputs[0].Dims, out...)}, nil
	}
}

var (
	addKernel = elementwise("add", func(xs ...float32) float32 { return xs[0] + xs[1] })

	sigmoidKernel = elementwise("sigmoid", func(xs ...float32) float32 {
		return float32(1 / (1 + math.Exp(-float64(xs[0]))))
	})
)

func kindsOf(g *ir.Graph) []ir.Symbol {
	var kinds []ir.Symbol
	for _, n := range g.Nodes() {
		kinds = append(kinds, n.Kind())
	}
	return kinds
}

func TestEnterExitRoundTrip(t *testing.T) {
	a := NewVariable("a", ir.FloatTensor([]int64{2}, 1, 2))

	state, inputs, err := Enter([]TraceInput{{Variable: a}}, 1)
	require.NoError(t, err)
	defer state.Close()
	require.Len(t, inputs, 1)
	assert.True(t, state.Active())

	require.Len(t, state.Graph.Inputs(), 1)
	assert.Equal(t, "a", state.Graph.Inputs()[0].Name())
	assert.Equal(t, "Float(2)", state.Graph.Inputs()[0].Type().String())

	out, err := Apply("aten::sigmoid", sigmoidKernel, inputs[0])
	require.NoError(t, err)

	require.NoError(t, state.Exit(out))
	assert.False(t, state.Active())
	require.Len(t, state.Graph.Outputs(), 1)
	require.NoError(t, state.Graph.Lint())

	assert.Equal(t, []ir.Symbol{"aten::sigmoid"}, kindsOf(state.Graph))
	assert.Equal(t, []StageFlags{{
		Inputs:  []VariableFlags{{Defined: true}},
		Outputs: []VariableFlags{{Defined: true}},
	}}, state.VarFlags)
}

func TestTracingIsInfectiousFromASingleInput(t *testing.T) {
	a := NewVariable("a", ir.FloatTensor([]int64{2}, 0.5, -0.5))
	b := NewVariable("b", ir.FloatTensor([]int64{2}, 2, 3))

	state, inputs, err := Enter([]TraceInput{{Variable: a}}, 1)
	require.NoError(t, err)
	defer state.Close()

	as, err := Apply("aten::sigmoid", sigmoidKernel, inputs[0])
	require.NoError(t, err)
	bs, err := Apply("aten::sigmoid", sigmoidKernel, b)
	require.NoError(t, err)
	sum, err := Apply("aten::add", addKernel, as[0], bs[0])
	require.NoError(t, err)
	require.NoError(t, state.Exit(sum))

	// b's sigmoid ran outside the trace: exactly one traced sigmoid,
	// one constant embedding sigmoid(b), one add.
	assert.Equal(t, []ir.Symbol{"aten::sigmoid", ir.KindConstant, "aten::add"}, kindsOf(state.Graph))

	constant := state.Graph.Nodes()[1]
	embedded, err := constant.Tensor("value").Floats()
	require.NoError(t, err)
	want, err := bs[0].Data.Floats()
	require.NoError(t, err)
	assert.Equal(t, want, embedded, "constant must hold b.sigmoid()'s value")

	add := state.Graph.Nodes()[2]
	assert.Same(t, constant.Output(), add.Input(1))
	require.NoError(t, state.Graph.Lint())
}

func TestUntraceableOutputIsAHardError(t *testing.T) {
	a := NewVariable("a", ir.FloatTensor([]int64{1}, 1))
	unrelated := NewVariable("u", ir.FloatTensor([]int64{1}, 9))

	state, _, err := Enter([]TraceInput{{Variable: a}}, 1)
	require.NoError(t, err)
	defer state.Close()

	err = state.Exit([]*Variable{unrelated})
	require.Error(t, err)
	assert.True(t, IsUntraceable(err))
	assert.Contains(t, err.Error(), "observable data dependence")
}

func TestBufferResolvesToPlaceholder(t *testing.T) {
	a := NewVariable("a", ir.FloatTensor([]int64{1}, 1))
	buf := ir.FloatTensor([]int64{4}, 1, 2, 3, 4)

	state, inputs, err := Enter([]TraceInput{{Variable: a}, {Buffer: buf}}, 1)
	require.NoError(t, err)
	defer state.Close()
	require.Len(t, inputs, 1, "buffers are placeholders, not traced variables")
	require.Len(t, state.Graph.Inputs(), 2)

	// A one-off variable wrapping the buffer payload resolves to the
	// placeholder instead of a fresh constant.
	wrapped := NewVariable("", buf)
	v := state.ValueTrace(wrapped)
	assert.Same(t, state.Graph.Inputs()[1], v)
	assert.Empty(t, kindsOf(state.Graph), "no constant node for a known buffer")
}

func TestUndefinedVariableBecomesSentinel(t *testing.T) {
	a := NewVariable("a", ir.FloatTensor([]int64{1}, 1))
	state, _, err := Enter([]TraceInput{{Variable: a}}, 1)
	require.NoError(t, err)
	defer state.Close()

	v := state.ValueTrace(&Variable{Name: "missing"})
	assert.Equal(t, ir.KindUndefined, v.Node().Kind())
}

func TestUntracedOperandEmbedsOnce(t *testing.T) {
	a := NewVariable("a", ir.FloatTensor([]int64{1}, 1))
	c := NewVariable("c", ir.FloatTensor([]int64{1}, 5))

	state, inputs, err := Enter([]TraceInput{{Variable: a}}, 1)
	require.NoError(t, err)
	defer state.Close()

	_, err = Apply("aten::add", addKernel, inputs[0], c)
	require.NoError(t, err)
	_, err = Apply("aten::add", addKernel, inputs[0], c)
	require.NoError(t, err)

	// The second use of c must reuse the trace set by the first one.
	constants := 0
	for _, k := range kindsOf(state.Graph) {
		if k == ir.KindConstant {
			constants++
		}
	}
	assert.Equal(t, 1, constants)
}

func TestRepeatedInputsGetDistinctPositions(t *testing.T) {
	a := NewVariable("a", ir.FloatTensor([]int64{1}, 1))

	state, inputs, err := Enter([]TraceInput{{Variable: a}, {Variable: a}}, 1)
	require.NoError(t, err)
	defer state.Close()

	require.Len(t, inputs, 2)
	assert.NotSame(t, inputs[0], inputs[1], "the repeat gets its own identity")
	require.Len(t, state.Graph.Inputs(), 2)
}

func TestOverlappingTraces(t *testing.T) {
	a := NewVariable("a", ir.FloatTensor([]int64{1}, 1))

	outer, outerInputs, err := Enter([]TraceInput{{Variable: a}}, 1)
	require.NoError(t, err)
	defer outer.Close()

	inner, _, err := Enter([]TraceInput{{Variable: outerInputs[0]}}, 1)
	require.NoError(t, err)

	// The shared variable now links to two live active traces; an
	// operation over it cannot decide which one to record into.
	_, err = StateOf(outerInputs)
	require.Error(t, err)
	var ce *ContractError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeMixedStates, ce.Code)

	// Once the inner trace is closed its links expire lazily and the
	// outer trace takes over again.
	inner.Close()
	got, err := StateOf(outerInputs)
	require.NoError(t, err)
	assert.Same(t, outer, got)
}

func TestExpiredStateIsRejected(t *testing.T) {
	a := NewVariable("a", ir.FloatTensor([]int64{1}, 1))
	state, inputs, err := Enter([]TraceInput{{Variable: a}}, 1)
	require.NoError(t, err)

	state.Close()
	err = state.Exit(inputs)
	require.Error(t, err)
	assert.True(t, IsExpired(err))
	assert.Panics(t, func() { state.ValueTrace(inputs[0]) })
}

func TestApplyWithoutTraceIsOpaque(t *testing.T) {
	a := NewVariable("a", ir.FloatTensor([]int64{1}, 2))
	b := NewVariable("b", ir.FloatTensor([]int64{1}, 3))

	out, err := Apply("aten::add", addKernel, a, b)
	require.NoError(t, err)
	vals, err := out[0].Data.Floats()
	require.NoError(t, err)
	assert.Equal(t, []float32{5}, vals)
	assert.False(t, out[0].Tracing())
}

func TestBackwardCaptureHookRuns(t *testing.T) {
	a := NewVariable("a", ir.FloatTensor([]int64{1}, 1))

	var captured bool
	hook := func(s *TracingState, inputs, outputs []*Variable) error {
		captured = true
		assert.Len(t, inputs, 1)
		assert.Len(t, outputs, 1)
		return nil
	}

	state, inputs, err := Enter([]TraceInput{{Variable: a}}, 2, WithBackwardCapture(hook))
	require.NoError(t, err)
	defer state.Close()

	out, err := Apply("aten::sigmoid", sigmoidKernel, inputs[0])
	require.NoError(t, err)
	require.NoError(t, state.Exit(out))
	assert.True(t, captured)
}
