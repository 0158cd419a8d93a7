package export

import (
	"fmt"
	"unicode"

	"github.com/weft-ml/weft/internal/ir"
)

// Validate checks that a lowered graph satisfies the target
// conventions:
//
//   - every operation is in the "onnx" namespace with an upper-case
//     base name (the native spelling), except the undefined sentinel
//   - no handle-typed value survives into the wire model
//   - no graph output is the undefined sentinel
//
// Violations aggregate into one ValidationError carrying the full
// graph dump.
func Validate(g *ir.Graph) error {
	var problems []string
	validateInto(g, &problems, "")
	if len(problems) > 0 {
		return &ValidationError{Problems: problems, Dump: g.String()}
	}
	return nil
}

func validateInto(g *ir.Graph, problems *[]string, prefix string) {
	report := func(format string, args ...any) {
		*problems = append(*problems, prefix+fmt.Sprintf(format, args...))
	}

	for _, n := range g.Nodes() {
		kind := n.Kind()
		switch {
		case kind == ir.KindUndefined:
			// encodes as an absent optional input; legal anywhere but
			// the graph outputs
		case !kind.InNamespace("onnx"):
			report("operation %s was not lowered to the target namespace", kind)
		case !upperBase(kind):
			report("operation %s is not a native target operation (base must start upper-case)", kind)
		}

		for i, out := range n.Outputs() {
			if out.Type().IsHandle() && len(out.Uses()) > 0 {
				report("operation %s output %d is an opaque handle with live uses", kind, i)
			}
		}

		for _, name := range n.AttributeNames() {
			a, _ := n.Attribute(name)
			switch a.Kind {
			case ir.AttrGraph:
				validateInto(a.G, problems, prefix+string(kind)+"."+string(name)+": ")
			case ir.AttrGraphs:
				for i, sub := range a.Gs {
					validateInto(sub, problems, fmt.Sprintf("%s%s.%s[%d]: ", prefix, kind, name, i))
				}
			}
		}
	}

	for i, out := range g.Outputs() {
		if out.Node().Kind() == ir.KindUndefined {
			report("graph output %d is the undefined sentinel", i)
		}
	}
}

func upperBase(kind ir.Symbol) bool {
	base := kind.Base()
	if base == "" {
		return false
	}
	return unicode.IsUpper(rune(base[0]))
}
