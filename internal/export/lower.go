package export

import (
	"github.com/weft-ml/weft/internal/ir"
	"github.com/weft-ml/weft/internal/registry"
)

// Lower rewrites src into a fresh graph whose operations come from the
// target namespace, consulting rules node by node in execution order.
//
// Nodes already in the target namespace, and the primitive kinds the
// encoder understands, clone through unchanged. A node whose trailing
// handle output is still consumed is never rewritten: handles are
// opaque capabilities with no wire form, so the node passes through
// for a later pass to deal with. A node without a rule also passes
// through; Validate rejects it if it survives to export.
//
// Stages are preserved: values created while rewriting a node carry
// that node's stage, not the current graph stage.
func Lower(src *ir.Graph, reg *registry.Registry) (*ir.Graph, error) {
	target := ir.New()
	env := make(map[*ir.Value]*ir.Value)

	for _, in := range src.Inputs() {
		nv := target.AddInput(in.Name()).SetType(in.Type()).SetStage(in.Stage())
		env[in] = nv
	}

	mapper := func(v *ir.Value) *ir.Value {
		m, ok := env[v]
		if !ok {
			panic("export: clone encountered a value with no lowered counterpart")
		}
		return m
	}

	for _, node := range src.Nodes() {
		restore := target.SetStageTemporary(node.Stage())

		inputs := make([]*ir.Value, len(node.Inputs()))
		missing := false
		for i, in := range node.Inputs() {
			m, ok := env[in]
			if !ok {
				missing = true
				break
			}
			inputs[i] = m
		}
		if missing {
			restore()
			return nil, loweringErrorf(node.Kind(), "input value was dropped by an earlier rule")
		}

		rule, haveRule := reg.Lookup(node.Kind())
		passThrough := node.Kind().InNamespace("onnx") || !haveRule || hasUsedHandle(node)

		var outputs []*ir.Value
		if !passThrough {
			vals, err := rule(target, node, inputs)
			if err != nil {
				restore()
				return nil, err
			}
			if vals == nil {
				// a rule may decline by returning no replacement at all
				passThrough = true
			} else {
				if len(vals) != len(node.Outputs()) {
					restore()
					return nil, loweringErrorf(node.Kind(),
						"rule produced %d outputs where the operation has %d", len(vals), len(node.Outputs()))
				}
				outputs = vals
			}
		}
		if passThrough {
			clone := target.AppendNode(target.CreateClone(node, mapper))
			outputs = clone.Outputs()
		}

		for i, old := range node.Outputs() {
			if outputs[i] == nil {
				if len(old.Uses()) > 0 {
					restore()
					return nil, loweringErrorf(node.Kind(),
						"rule dropped output %d, which still has %d use(s)", i, len(old.Uses()))
				}
				continue
			}
			if !outputs[i].Type().IsTensor() {
				outputs[i].SetType(old.Type())
			}
			env[old] = outputs[i]
		}
		restore()
	}

	// sub-graph attributes (branches, loop bodies) are self-contained
	// and lower recursively
	for _, n := range target.Nodes() {
		for _, name := range n.AttributeNames() {
			a, _ := n.Attribute(name)
			switch a.Kind {
			case ir.AttrGraph:
				sub, err := Lower(a.G, reg)
				if err != nil {
					return nil, err
				}
				n.SetGraph(name, sub)
			case ir.AttrGraphs:
				subs := make([]*ir.Graph, len(a.Gs))
				for i, g := range a.Gs {
					sub, err := Lower(g, reg)
					if err != nil {
						return nil, err
					}
					subs[i] = sub
				}
				n.SetGraphs(name, subs)
			}
		}
	}

	for i, out := range src.Outputs() {
		m, ok := env[out]
		if !ok {
			return nil, loweringErrorf(out.Node().Kind(), "graph output %d was dropped", i)
		}
		target.RegisterOutput(m)
	}
	target.SetStage(src.Stage())
	return target, nil
}

// hasUsedHandle reports whether the node's trailing output is an
// opaque handle that something still consumes.
func hasUsedHandle(n *ir.Node) bool {
	outs := n.Outputs()
	if len(outs) == 0 {
		return false
	}
	last := outs[len(outs)-1]
	return last.Type().IsHandle() && len(last.Uses()) > 0
}
