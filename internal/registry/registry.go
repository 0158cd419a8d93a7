// Package registry maps operation kinds to lowering rules. The export
// pass consults it node by node; rules for additional kinds can be
// registered programmatically or loaded from a CUE manifest.
package registry

import (
	"sort"

	"github.com/weft-ml/weft/internal/ir"
)

// Rule rewrites one source node into the target graph. The inputs are
// the already-lowered counterparts of the node's inputs; the rule
// appends whatever nodes it needs to target and returns one value per
// source output. A nil element means the rule dropped that output,
// which is only legal when nothing consumes it. A nil slice declines
// the node entirely, letting it pass through unchanged; a declining
// rule must not have mutated target.
type Rule func(target *ir.Graph, node *ir.Node, inputs []*ir.Value) ([]*ir.Value, error)

// Registry holds per-kind lowering rules.
type Registry struct {
	rules map[ir.Symbol]Rule
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{rules: make(map[ir.Symbol]Rule)}
}

// Register installs a rule for kind, replacing any previous one.
func (r *Registry) Register(kind ir.Symbol, rule Rule) {
	r.rules[kind] = rule
}

// Lookup returns the rule for kind.
func (r *Registry) Lookup(kind ir.Symbol) (Rule, bool) {
	rule, ok := r.rules[kind]
	return rule, ok
}

// Kinds returns the registered source kinds in sorted order.
func (r *Registry) Kinds() []ir.Symbol {
	kinds := make([]ir.Symbol, 0, len(r.rules))
	for k := range r.rules {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Rename builds the common rule shape: emit one node of the target
// kind with the lowered inputs, copy the attributes across (renaming
// those listed in attrs), and keep the output arity.
func Rename(to ir.Symbol, attrs map[ir.Symbol]ir.Symbol) Rule {
	return func(target *ir.Graph, node *ir.Node, inputs []*ir.Value) ([]*ir.Value, error) {
		n := target.Create(to, inputs, len(node.Outputs()))
		n.SetSourceLocation(node.SourceLocation())
		for _, name := range node.AttributeNames() {
			a, _ := node.Attribute(name)
			renamed := name
			if alias, ok := attrs[name]; ok {
				renamed = alias
			}
			setAttr(n, renamed, a)
		}
		target.AppendNode(n)
		return n.Outputs(), nil
	}
}

func setAttr(n *ir.Node, name ir.Symbol, a *ir.AttrValue) {
	switch a.Kind {
	case ir.AttrFloat:
		n.SetFloat(name, a.F)
	case ir.AttrFloats:
		n.SetFloats(name, a.Fs)
	case ir.AttrInt:
		n.SetInt(name, a.I)
	case ir.AttrInts:
		n.SetInts(name, a.Is)
	case ir.AttrString:
		n.SetString(name, a.S)
	case ir.AttrStrings:
		n.SetStrings(name, a.Ss)
	case ir.AttrTensor:
		n.SetTensor(name, a.T.Clone())
	case ir.AttrTensors:
		ts := make([]*ir.Tensor, len(a.Ts))
		for i, t := range a.Ts {
			ts[i] = t.Clone()
		}
		n.SetTensors(name, ts)
	case ir.AttrGraph:
		n.SetGraph(name, a.G.Copy())
	case ir.AttrGraphs:
		gs := make([]*ir.Graph, len(a.Gs))
		for i, g := range a.Gs {
			gs[i] = g.Copy()
		}
		n.SetGraphs(name, gs)
	}
}

// Default returns the registry covering the operations the script
// compiler and tracer emit for which the interchange namespace has a
// direct counterpart.
func Default() *Registry {
	r := New()
	direct := map[ir.Symbol]ir.Symbol{
		"aten::add":     "onnx::Add",
		"aten::sub":     "onnx::Sub",
		"aten::mul":     "onnx::Mul",
		"aten::div":     "onnx::Div",
		"aten::neg":     "onnx::Neg",
		"aten::sigmoid": "onnx::Sigmoid",
		"aten::tanh":    "onnx::Tanh",
		"aten::relu":    "onnx::Relu",
		"aten::exp":     "onnx::Exp",
		"aten::lt":      "onnx::Less",
		"aten::gt":      "onnx::Greater",
		"aten::eq":      "onnx::Equal",
		"aten::gather":  "onnx::Gather",
		"aten::concat":  "onnx::Concat",
		"aten::split":   "onnx::Split",
	}
	for from, to := range direct {
		r.Register(from, Rename(to, nil))
	}
	r.Register("aten::slice", Rename("onnx::Slice", map[ir.Symbol]ir.Symbol{
		"begin": "starts",
		"end":   "ends",
	}))

	// structured primitives have native counterparts; the undefined
	// sentinel stays as-is and is absorbed by the encoder
	r.Register(ir.KindConstant, Rename("onnx::Constant", nil))
	r.Register(ir.KindIf, Rename("onnx::If", nil))
	r.Register(ir.KindLoop, Rename("onnx::Loop", nil))
	return r
}
