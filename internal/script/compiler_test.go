package script

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-ml/weft/internal/ir"
)

func compile(t *testing.T, source string, resolver Resolver) *ir.Graph {
	t.Helper()
	mod, err := Compile(source, resolver)
	require.NoError(t, err)
	methods := mod.Methods()
	require.NotEmpty(t, methods)
	return methods[0].Graph
}

func nodeKinds(g *ir.Graph) []ir.Symbol {
	var kinds []ir.Symbol
	for _, n := range g.Nodes() {
		kinds = append(kinds, n.Kind())
	}
	return kinds
}

func TestCompileAddOne(t *testing.T) {
	g := compile(t, "def f(x):\n    return x + 1\n", nil)

	require.Len(t, g.Inputs(), 1)
	assert.Equal(t, "x", g.Inputs()[0].Name())
	assert.Equal(t, []ir.Symbol{ir.KindConstant, "aten::add"}, nodeKinds(g))

	constant := g.Nodes()[0]
	one, err := constant.Tensor("value").Longs()
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, one)

	add := g.Nodes()[1]
	assert.Same(t, g.Inputs()[0], add.Input(0))
	assert.Same(t, constant.Output(), add.Input(1))
	require.Len(t, g.Outputs(), 1)
	assert.Same(t, add.Output(), g.Outputs()[0])
}

func TestCompileMethodCall(t *testing.T) {
	g := compile(t, "def f(x):\n    return x.sigmoid()\n", nil)
	assert.Equal(t, []ir.Symbol{"aten::sigmoid"}, nodeKinds(g))
	assert.Same(t, g.Inputs()[0], g.Nodes()[0].Input(0))
}

func TestKeywordAttributes(t *testing.T) {
	g := compile(t, "def f(x):\n    return x.add(x, alpha=2f, dims=[1, 2])\n", nil)
	add := g.Nodes()[0]
	assert.Equal(t, ir.Symbol("aten::add"), add.Kind())
	require.Len(t, add.Inputs(), 2, "method form prepends the receiver")
	assert.Equal(t, 2.0, add.Float("alpha"))
	assert.Equal(t, []int64{1, 2}, add.Ints("dims"))
}

func TestGatherAndSliceLowering(t *testing.T) {
	g := compile(t, "def f(x):\n    return x[1]\n", nil)
	assert.Equal(t, []ir.Symbol{ir.KindConstant, "aten::gather"}, nodeKinds(g))

	g = compile(t, "def f(x):\n    return x[1:]\n", nil)
	slice := g.Nodes()[len(g.Nodes())-1]
	assert.Equal(t, ir.Symbol("aten::slice"), slice.Kind())
	require.Len(t, slice.Inputs(), 3)
	assert.Equal(t, ir.KindConstant, slice.Input(1).Node().Kind())
	assert.Equal(t, ir.KindUndefined, slice.Input(2).Node().Kind(), "absent bound is an undefined placeholder")

	g = compile(t, "def f(x):\n    return x[:2]\n", nil)
	slice = g.Nodes()[len(g.Nodes())-1]
	assert.Equal(t, ir.KindUndefined, slice.Input(1).Node().Kind())
	assert.Equal(t, ir.KindConstant, slice.Input(2).Node().Kind())
}

func TestCompileIf(t *testing.T) {
	source := "def f(x):\n" +
		"    if x < 0:\n" +
		"        y = -x\n" +
		"    else:\n" +
		"        y = x\n" +
		"    return y\n"
	g := compile(t, source, nil)
	assert.Equal(t, []ir.Symbol{ir.KindConstant, "aten::lt", ir.KindIf}, nodeKinds(g))

	cond := g.Nodes()[2]
	require.Len(t, cond.Inputs(), 2, "condition plus one captured local")
	require.Len(t, cond.Outputs(), 1)
	assert.Same(t, cond.Output(), g.Outputs()[0])

	thenBranch := cond.Graph("then_branch")
	assert.Equal(t, []ir.Symbol{"aten::neg"}, nodeKinds(thenBranch))
	require.Len(t, thenBranch.Outputs(), 1)

	elseBranch := cond.Graph("else_branch")
	assert.Empty(t, nodeKinds(elseBranch))
	assert.Same(t, elseBranch.Inputs()[0], elseBranch.Outputs()[0], "the captured value passes through")
}

func TestIfBranchFallsBackToOuterBinding(t *testing.T) {
	source := "def f(x):\n" +
		"    y = x + 1\n" +
		"    if x < 0:\n" +
		"        y = -x\n" +
		"    return y\n"
	g := compile(t, source, nil)
	cond := g.Nodes()[len(g.Nodes())-1]
	require.Equal(t, ir.KindIf, cond.Kind())

	// the empty else branch forwards the captured outer y
	elseBranch := cond.Graph("else_branch")
	require.Len(t, elseBranch.Outputs(), 1)
	assert.True(t, elseBranch.Outputs()[0].IsGraphInput())
	assert.Equal(t, "y", elseBranch.Outputs()[0].Name())
}

func TestCompileWhileGolden(t *testing.T) {
	source := "def f(x):\n" +
		"    y = x + 1\n" +
		"    while y < 10:\n" +
		"        y = y * 2\n" +
		"    return y\n"
	g := compile(t, source, nil)
	require.NoError(t, g.Lint())

	gold := goldie.New(t)
	gold.Assert(t, "compile_while", []byte(g.String()))
}

func TestTernaryCompilesToConditional(t *testing.T) {
	g := compile(t, "def f(x):\n    return x if x < 0 else -x\n", nil)
	assert.Equal(t, []ir.Symbol{ir.KindConstant, "aten::lt", ir.KindIf}, nodeKinds(g))
	cond := g.Nodes()[2]
	require.Len(t, cond.Outputs(), 1)
	assert.Equal(t, []ir.Symbol{"aten::neg"}, nodeKinds(cond.Graph("else_branch")))
}

func TestResolverBindsFreeNames(t *testing.T) {
	resolver := ResolverFunc(func(name string) (Sugared, bool) {
		if name == "scale" {
			return &ConstantValue{Value: 0.5}, true
		}
		return nil, false
	})
	g := compile(t, "def f(x):\n    return x * scale\n", resolver)
	assert.Equal(t, []ir.Symbol{ir.KindConstant, "aten::mul"}, nodeKinds(g))

	vals, err := g.Nodes()[0].Tensor("value").Floats()
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5}, vals)
}

func TestGlobalBypassesLocals(t *testing.T) {
	resolver := ResolverFunc(func(name string) (Sugared, bool) {
		if name == "gain" {
			return &ConstantValue{Value: 3}, true
		}
		return nil, false
	})
	source := "def f(x):\n" +
		"    global gain\n" +
		"    return x * gain\n"
	g := compile(t, source, resolver)
	assert.Equal(t, []ir.Symbol{ir.KindConstant, "aten::mul"}, nodeKinds(g))
}

func TestSelfMembersAreNotGraphInputs(t *testing.T) {
	self := &Namespace{Name: "model", Members: map[string]Sugared{
		"scale": &ConstantValue{Value: 2},
	}}
	p, err := NewParser("def f(x):\n    return x * self.scale\n")
	require.NoError(t, err)
	defs, err := p.Parse()
	require.NoError(t, err)

	mod, err := DefineMethods(defs, nil, self)
	require.NoError(t, err)
	g := mod.Method("f").Graph
	require.Len(t, g.Inputs(), 1, "self is an environment binding, not an input")
	assert.Equal(t, []ir.Symbol{ir.KindConstant, "aten::mul"}, nodeKinds(g))
}

func TestMultipleOutputAssignment(t *testing.T) {
	resolver := ResolverFunc(func(name string) (Sugared, bool) {
		if name == "split" {
			return &BuiltinFunction{Kind: "aten::split"}, true
		}
		return nil, false
	})
	source := "def f(x):\n" +
		"    a, b = split(x)\n" +
		"    return a + b\n"
	g := compile(t, source, resolver)
	split := g.Nodes()[0]
	assert.Equal(t, ir.Symbol("aten::split"), split.Kind())
	require.Len(t, split.Outputs(), 2)
}

func TestAugmentedAssignDesugars(t *testing.T) {
	g := compile(t, "def f(x):\n    x += 1\n    return x\n", nil)
	assert.Equal(t, []ir.Symbol{ir.KindConstant, "aten::add"}, nodeKinds(g))
	assert.Same(t, g.Nodes()[1].Output(), g.Outputs()[0])
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		message string
	}{
		{"undefined name", "def f(x):\n    return y\n", "undefined value y"},
		{"return not last", "def f(x):\n    return x\n    y = x\n", "final statement"},
		{"return in branch", "def f(x):\n    if x < 0:\n        return x\n    return x\n", "end of the function"},
		{"call a value", "def f(x):\n    return x(1)\n", "cannot call a value"},
		{"branch-only binding", "def f(x):\n    if x < 0:\n        y = x\n    return y\n", "not defined in the false branch"},
		{"loop-carried undefined", "def f(x):\n    while x < 10:\n        y = x\n    return x\n", "defined before the loop"},
		{"assign to global", "def f(x):\n    global w\n    w = x\n    return x\n", "cannot assign to global"},
		{"multi-target non-call", "def f(x):\n    a, b = x\n    return a\n", "call producing 2 values"},
		{"duplicate method", "def f(x):\n    return x\ndef f(x):\n    return x\n", "defined twice"},
		{"duplicate parameter", "def f(x, x):\n    return x\n", "duplicate parameter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.source, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestSelfAsValueFails(t *testing.T) {
	self := &Namespace{Name: "model", Members: map[string]Sugared{}}
	p, err := NewParser("def f(x):\n    return self\n")
	require.NoError(t, err)
	defs, err := p.Parse()
	require.NoError(t, err)

	_, err = DefineMethods(defs, nil, self)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be used as a value")
}

func TestCompiledGraphsPassLint(t *testing.T) {
	sources := []string{
		"def f(x):\n    return x + 1\n",
		"def f(x):\n    return x[1:] + x[:2]\n",
		"def f(x):\n    y = x\n    if x < 0:\n        y = -x\n    else:\n        y = y * 2\n    return y\n",
	}
	for _, source := range sources {
		g := compile(t, source, nil)
		assert.NoError(t, g.Lint())
	}
}
