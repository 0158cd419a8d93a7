package export

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-ml/weft/internal/ir"
	"github.com/weft-ml/weft/internal/registry"
)

func kindsOf(g *ir.Graph) []ir.Symbol {
	var kinds []ir.Symbol
	for _, n := range g.Nodes() {
		kinds = append(kinds, n.Kind())
	}
	return kinds
}

func addNegFixture() *ir.Graph {
	g := ir.New()
	x := g.AddInput("x").SetType(ir.TensorTypeOf(ir.ElemFloat32, 2))
	w := g.AddInput("w").SetType(ir.TensorTypeOf(ir.ElemFloat32, 2))
	add := g.AppendNode(g.Create("aten::add", []*ir.Value{x, w}, 1))
	neg := g.AppendNode(g.Create("aten::neg", []*ir.Value{add.Output()}, 1))
	g.RegisterOutput(neg.Output())
	return g
}

func TestLowerRenamesKinds(t *testing.T) {
	lowered, err := Lower(addNegFixture(), registry.Default())
	require.NoError(t, err)
	assert.Equal(t, []ir.Symbol{"onnx::Add", "onnx::Neg"}, kindsOf(lowered))
	require.NoError(t, lowered.Lint())

	// boundary metadata carries over
	require.Len(t, lowered.Inputs(), 2)
	assert.Equal(t, "x", lowered.Inputs()[0].Name())
	assert.Equal(t, "Float(2)", lowered.Inputs()[0].Type().String())
	require.Len(t, lowered.Outputs(), 1)
}

func TestLowerLeavesUnknownOpsForValidate(t *testing.T) {
	g := ir.New()
	x := g.AddInput("x")
	n := g.AppendNode(g.Create("aten::mystery", []*ir.Value{x}, 1))
	g.RegisterOutput(n.Output())

	lowered, err := Lower(g, registry.Default())
	require.NoError(t, err)
	assert.Equal(t, []ir.Symbol{"aten::mystery"}, kindsOf(lowered))

	err = Validate(lowered)
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "aten::mystery")
	assert.Contains(t, err.Error(), "graph(", "failures carry the full dump")
}

func TestUsedHandleForcesPassThrough(t *testing.T) {
	g := ir.New()
	x := g.AddInput("x")
	custom := g.AppendNode(g.Create("aten::custom", []*ir.Value{x}, 2))
	custom.Outputs()[1].SetType(ir.HandleType)
	user := g.AppendNode(g.Create("aten::use", []*ir.Value{custom.Outputs()[1]}, 1))
	g.RegisterOutput(custom.Outputs()[0])
	g.RegisterOutput(user.Output())

	reg := registry.New()
	reg.Register("aten::custom", registry.Rename("onnx::Custom", nil))

	lowered, err := Lower(g, reg)
	require.NoError(t, err)
	assert.Equal(t, ir.Symbol("aten::custom"), lowered.Nodes()[0].Kind(),
		"a node whose handle output is consumed is not rewritten")
}

func TestDeadHandleDoesNotBlockLowering(t *testing.T) {
	g := ir.New()
	x := g.AddInput("x")
	custom := g.AppendNode(g.Create("aten::custom", []*ir.Value{x}, 2))
	custom.Outputs()[1].SetType(ir.HandleType)
	g.RegisterOutput(custom.Outputs()[0])

	reg := registry.New()
	reg.Register("aten::custom", registry.Rename("onnx::Custom", nil))

	lowered, err := Lower(g, reg)
	require.NoError(t, err)
	assert.Equal(t, ir.Symbol("onnx::Custom"), lowered.Nodes()[0].Kind())
}

func TestRuleArityMismatchNamesTheOperation(t *testing.T) {
	g := ir.New()
	x := g.AddInput("x")
	n := g.AppendNode(g.Create("aten::two", []*ir.Value{x}, 2))
	g.RegisterOutput(n.Outputs()[0])

	reg := registry.New()
	reg.Register("aten::two", func(target *ir.Graph, node *ir.Node, inputs []*ir.Value) ([]*ir.Value, error) {
		nn := target.AppendNode(target.Create("onnx::One", inputs, 1))
		return nn.Outputs(), nil
	})

	_, err := Lower(g, reg)
	require.Error(t, err)
	var le *LoweringError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "aten::two", le.Op)
	assert.Contains(t, le.Message, "1 outputs where the operation has 2")
}

func TestRuleMayDropOnlyUnusedOutputs(t *testing.T) {
	build := func(useSecond bool) *ir.Graph {
		g := ir.New()
		x := g.AddInput("x")
		n := g.AppendNode(g.Create("aten::two", []*ir.Value{x}, 2))
		g.RegisterOutput(n.Outputs()[0])
		if useSecond {
			u := g.AppendNode(g.Create("aten::neg", []*ir.Value{n.Outputs()[1]}, 1))
			g.RegisterOutput(u.Output())
		}
		return g
	}

	reg := registry.Default()
	reg.Register("aten::two", func(target *ir.Graph, node *ir.Node, inputs []*ir.Value) ([]*ir.Value, error) {
		nn := target.AppendNode(target.Create("onnx::One", inputs, 1))
		return []*ir.Value{nn.Output(), nil}, nil
	})

	lowered, err := Lower(build(false), reg)
	require.NoError(t, err)
	require.NoError(t, lowered.Lint())

	_, err = Lower(build(true), reg)
	require.Error(t, err)
	var le *LoweringError
	require.ErrorAs(t, err, &le)
	assert.Contains(t, le.Message, "dropped output 1")
}

func TestLowerPreservesStages(t *testing.T) {
	g := ir.New()
	x := g.AddInput("x")
	a := g.AppendNode(g.Create("aten::neg", []*ir.Value{x}, 1))
	g.AdvanceStage()
	b := g.AppendNode(g.Create("aten::neg", []*ir.Value{a.Output()}, 1)).SetStage(1)
	b.Output().SetStage(1)
	g.RegisterOutput(b.Output())

	lowered, err := Lower(g, registry.Default())
	require.NoError(t, err)
	assert.Equal(t, 0, lowered.Nodes()[0].Output().Stage())
	assert.Equal(t, 1, lowered.Nodes()[1].Output().Stage())
	assert.Equal(t, 1, lowered.Stage())
}

func TestSubGraphAttributesLowerRecursively(t *testing.T) {
	body := ir.New()
	bx := body.AddInput("t")
	bn := body.AppendNode(body.Create("aten::neg", []*ir.Value{bx}, 1))
	body.RegisterOutput(bn.Output())

	g := ir.New()
	x := g.AddInput("x")
	loop := g.AppendNode(g.Create(ir.KindLoop, []*ir.Value{x}, 1))
	loop.SetGraph("body", body)
	g.RegisterOutput(loop.Output())

	lowered, err := Lower(g, registry.Default())
	require.NoError(t, err)
	require.Equal(t, ir.Symbol("onnx::Loop"), lowered.Nodes()[0].Kind())
	sub := lowered.Nodes()[0].Graph("body")
	assert.Equal(t, []ir.Symbol{"onnx::Neg"}, kindsOf(sub))
	require.NoError(t, Validate(lowered))
}

func TestValidateConventions(t *testing.T) {
	tests := []struct {
		name    string
		build   func() *ir.Graph
		message string
	}{
		{
			"lower-case base",
			func() *ir.Graph {
				g := ir.New()
				x := g.AddInput("x")
				n := g.AppendNode(g.Create("onnx::add", []*ir.Value{x}, 1))
				g.RegisterOutput(n.Output())
				return g
			},
			"upper-case",
		},
		{
			"undefined graph output",
			func() *ir.Graph {
				g := ir.New()
				g.AddInput("x")
				u := g.AppendNode(g.CreateUndefined())
				g.RegisterOutput(u.Output())
				return g
			},
			"undefined sentinel",
		},
		{
			"live handle",
			func() *ir.Graph {
				g := ir.New()
				x := g.AddInput("x")
				n := g.AppendNode(g.Create("onnx::Custom", []*ir.Value{x}, 2))
				n.Outputs()[1].SetType(ir.HandleType)
				u := g.AppendNode(g.Create("onnx::Use", []*ir.Value{n.Outputs()[1]}, 1))
				g.RegisterOutput(u.Output())
				return g
			},
			"opaque handle",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.build())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestUndefinedInputsEncodeAsEmptyNames(t *testing.T) {
	g := ir.New()
	x := g.AddInput("x").SetType(ir.TensorTypeOf(ir.ElemFloat32, 4))
	start := g.AppendNode(g.CreateConstant(ir.LongScalar(1)))
	end := g.AppendNode(g.CreateUndefined())
	slice := g.AppendNode(g.Create("aten::slice", []*ir.Value{x, start.Output(), end.Output()}, 1))
	g.RegisterOutput(slice.Output())

	data, err := ExportGraph(g, registry.Default(), nil, Options{GraphName: "s", Opset: 6})
	require.NoError(t, err)

	var model Model
	require.NoError(t, json.Unmarshal(data, &model))
	require.Len(t, model.Graph.Nodes, 2, "the undefined sentinel is not a wire node")

	sliceProto := model.Graph.Nodes[1]
	assert.Equal(t, "Slice", sliceProto.OpType)
	require.Len(t, sliceProto.Inputs, 3)
	assert.Empty(t, sliceProto.Inputs[2], "absent optional input")
	assert.NotEmpty(t, sliceProto.Inputs[1])
}

func TestAttributeUnionRoundTrip(t *testing.T) {
	g := ir.New()
	x := g.AddInput("x")
	n := g.AppendNode(g.Create("onnx::Custom", []*ir.Value{x}, 1))
	n.SetFloat("alpha", 1.5)
	n.SetInts("pads", []int64{0, 1})
	n.SetString("mode", "constant")
	n.SetTensor("seed", ir.FloatScalar(3))
	g.RegisterOutput(n.Output())

	model, err := Encode(g, nil, Options{GraphName: "attrs"})
	require.NoError(t, err)
	attrs := model.Graph.Nodes[0].Attributes
	require.Len(t, attrs, 4)

	assert.Equal(t, "FLOAT", attrs[0].Type)
	require.NotNil(t, attrs[0].F)
	assert.Equal(t, 1.5, *attrs[0].F)

	assert.Equal(t, "INTS", attrs[1].Type)
	assert.Equal(t, []int64{0, 1}, attrs[1].Is)

	assert.Equal(t, "STRING", attrs[2].Type)
	require.NotNil(t, attrs[2].S)

	assert.Equal(t, "TENSOR", attrs[3].Type)
	require.NotNil(t, attrs[3].T)
	assert.Equal(t, int(ir.ElemFloat32), attrs[3].T.ElemType)
}

func TestTooManyInitializersRejected(t *testing.T) {
	g := ir.New()
	g.AddInput("x")
	g.RegisterOutput(g.Inputs()[0])

	_, err := Encode(g, []*ir.Tensor{ir.FloatScalar(1), ir.FloatScalar(2)}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initializers")
}

func TestExportModelGolden(t *testing.T) {
	data, err := ExportGraph(addNegFixture(), registry.Default(),
		[]*ir.Tensor{ir.FloatTensor([]int64{2}, 1, 2)},
		Options{GraphName: "main", ProducerName: "weft", ProducerVersion: "0.1.0", Opset: 6})
	require.NoError(t, err)

	gold := goldie.New(t)
	gold.Assert(t, "export_model", data)
}
