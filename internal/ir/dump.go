package ir

import (
	"fmt"
	"strings"
)

// String renders the graph in a stable text form:
//
//	graph(%x : Float(2), %y : Dynamic):
//	  %2 : Float(2) = aten::add(%x, %y)
//	  return (%2)
//
// The dump is deterministic and is used in export diagnostics and
// golden tests.
func (g *Graph) String() string {
	var b strings.Builder
	g.dump(&b, 0)
	return b.String()
}

func (g *Graph) dump(b *strings.Builder, depth int) {
	pad := strings.Repeat("  ", depth)

	var ins []string
	for _, v := range g.Inputs() {
		ins = append(ins, fmt.Sprintf("%%%s : %s", v.UniqueName(), v.Type()))
	}
	fmt.Fprintf(b, "%sgraph(%s):\n", pad, strings.Join(ins, ", "))

	for _, n := range g.Nodes() {
		var outs []string
		for _, v := range n.Outputs() {
			outs = append(outs, fmt.Sprintf("%%%s : %s", v.UniqueName(), v.Type()))
		}
		var args []string
		for _, v := range n.Inputs() {
			args = append(args, "%"+v.UniqueName())
		}
		fmt.Fprintf(b, "%s  %s = %s%s(%s)", pad,
			strings.Join(outs, ", "), n.Kind(), dumpAttrs(n), strings.Join(args, ", "))
		if n.Stage() != 0 {
			fmt.Fprintf(b, ", stage %d", n.Stage())
		}
		b.WriteString("\n")
		dumpSubgraphs(b, n, depth+2)
	}

	var rets []string
	for _, v := range g.Outputs() {
		rets = append(rets, "%"+v.UniqueName())
	}
	fmt.Fprintf(b, "%s  return (%s)\n", pad, strings.Join(rets, ", "))
}

func dumpAttrs(n *Node) string {
	names := n.AttributeNames()
	if len(names) == 0 {
		return ""
	}
	var parts []string
	for _, name := range names {
		a, _ := n.Attribute(name)
		parts = append(parts, fmt.Sprintf("%s=%s", name, dumpAttrValue(a)))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func dumpAttrValue(a *AttrValue) string {
	switch a.Kind {
	case AttrFloat:
		return fmt.Sprintf("%g", a.F)
	case AttrFloats:
		return fmt.Sprintf("%g", a.Fs)
	case AttrInt:
		return fmt.Sprintf("%d", a.I)
	case AttrInts:
		return fmt.Sprintf("%d", a.Is)
	case AttrString:
		return fmt.Sprintf("%q", a.S)
	case AttrStrings:
		return fmt.Sprintf("%q", a.Ss)
	case AttrTensor:
		return a.T.String()
	case AttrTensors:
		var parts []string
		for _, t := range a.Ts {
			parts = append(parts, t.String())
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case AttrGraph:
		return "<graph>"
	case AttrGraphs:
		return fmt.Sprintf("<%d graphs>", len(a.Gs))
	default:
		return "?"
	}
}

// dumpSubgraphs prints sub-graph attributes as indented blocks under
// their owning node line.
func dumpSubgraphs(b *strings.Builder, n *Node, depth int) {
	for _, name := range n.AttributeNames() {
		a, _ := n.Attribute(name)
		switch a.Kind {
		case AttrGraph:
			fmt.Fprintf(b, "%swith %s:\n", strings.Repeat("  ", depth), name)
			a.G.dump(b, depth+1)
		case AttrGraphs:
			for i, sub := range a.Gs {
				fmt.Fprintf(b, "%swith %s[%d]:\n", strings.Repeat("  ", depth), name, i)
				sub.dump(b, depth+1)
			}
		}
	}
}
