package ir

import "strings"

// Symbol is a namespaced name for operation kinds and attribute keys.
// The canonical form is "namespace::base", e.g. "aten::add" or
// "onnx::Add". Attribute keys conventionally omit the namespace.
type Symbol string

// Well-known primitive kinds. These belong to the "prim" namespace and
// are understood by the tracer, the script compiler, and the export
// pass.
const (
	// KindParam is the hidden node that produces graph inputs.
	KindParam Symbol = "prim::Param"

	// KindConstant embeds a tensor payload in the graph. The payload
	// lives in the "value" attribute.
	KindConstant Symbol = "prim::Constant"

	// KindUndefined produces the distinguished "logically absent"
	// value used for optional inputs.
	KindUndefined Symbol = "prim::Undefined"

	// KindIf and KindLoop carry their regions as sub-graph attributes.
	KindIf   Symbol = "prim::If"
	KindLoop Symbol = "prim::Loop"
)

// Namespace returns the part before "::", or "" when the symbol is
// unqualified.
func (s Symbol) Namespace() string {
	if i := strings.Index(string(s), "::"); i >= 0 {
		return string(s)[:i]
	}
	return ""
}

// Base returns the part after "::", or the whole symbol when it is
// unqualified.
func (s Symbol) Base() string {
	if i := strings.Index(string(s), "::"); i >= 0 {
		return string(s)[i+2:]
	}
	return string(s)
}

// InNamespace reports whether the symbol is qualified with ns.
func (s Symbol) InNamespace(ns string) bool {
	return s.Namespace() == ns
}
