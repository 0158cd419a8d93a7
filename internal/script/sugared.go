package script

import (
	"math"

	"github.com/weft-ml/weft/internal/ir"
)

// Sugared is a value in the compiler's environment. Not everything a
// name can refer to is a graph value: modules, builtin functions and
// compile-time constants also flow through expressions, and each only
// supports some of the three capabilities (use as a value, attribute
// lookup, call). Unsupported capabilities fail with a positioned
// error naming the kind.
type Sugared interface {
	// Describe names the kind of entity for error messages.
	Describe() string

	// AsValue materializes the entity as a graph value in m.
	AsValue(r SourceRange, m *Method) (*ir.Value, error)

	// Attr resolves `entity.field`.
	Attr(r SourceRange, m *Method, field string) (Sugared, error)

	// Call applies the entity to graph inputs and keyword attributes,
	// producing numOutputs values in m.
	Call(r SourceRange, m *Method, inputs []*ir.Value, attrs []Attribute, numOutputs int) ([]*ir.Value, error)
}

// SimpleValue wraps a plain graph value. Attribute access on it
// yields builtin tensor methods, so `x.sigmoid()` emits an operation
// with x as the first input.
type SimpleValue struct {
	V *ir.Value
}

func (s *SimpleValue) Describe() string { return "value" }

func (s *SimpleValue) AsValue(r SourceRange, m *Method) (*ir.Value, error) {
	return s.V, nil
}

func (s *SimpleValue) Attr(r SourceRange, m *Method, field string) (Sugared, error) {
	return &BuiltinFunction{Kind: ir.Symbol("aten::" + field), Self: s.V}, nil
}

func (s *SimpleValue) Call(r SourceRange, m *Method, inputs []*ir.Value, attrs []Attribute, numOutputs int) ([]*ir.Value, error) {
	return nil, errorAt(r, "cannot call a %s", s.Describe())
}

// BuiltinFunction emits one operation node per call. Self, when set,
// is prepended to the call inputs (method-call form).
type BuiltinFunction struct {
	Kind ir.Symbol
	Self *ir.Value
}

func (b *BuiltinFunction) Describe() string { return "builtin " + string(b.Kind) }

func (b *BuiltinFunction) AsValue(r SourceRange, m *Method) (*ir.Value, error) {
	return nil, errorAt(r, "a %s cannot be used as a value", b.Describe())
}

func (b *BuiltinFunction) Attr(r SourceRange, m *Method, field string) (Sugared, error) {
	return nil, errorAt(r, "attribute lookup is not defined on a %s", b.Describe())
}

func (b *BuiltinFunction) Call(r SourceRange, m *Method, inputs []*ir.Value, attrs []Attribute, numOutputs int) ([]*ir.Value, error) {
	if b.Self != nil {
		inputs = append([]*ir.Value{b.Self}, inputs...)
	}
	n := m.emit(b.Kind, r, inputs, numOutputs)
	for _, attr := range attrs {
		if err := applyAttribute(n, attr); err != nil {
			return nil, err
		}
	}
	return n.Outputs(), nil
}

// Namespace resolves attribute access over a fixed member table; it
// backs `self` and resolver-provided module objects.
type Namespace struct {
	Name    string
	Members map[string]Sugared
}

func (n *Namespace) Describe() string {
	if n.Name != "" {
		return "module " + n.Name
	}
	return "module"
}

func (n *Namespace) AsValue(r SourceRange, m *Method) (*ir.Value, error) {
	return nil, errorAt(r, "a %s cannot be used as a value", n.Describe())
}

func (n *Namespace) Attr(r SourceRange, m *Method, field string) (Sugared, error) {
	member, ok := n.Members[field]
	if !ok {
		return nil, errorAt(r, "%s has no attribute %q", n.Describe(), field)
	}
	return member, nil
}

func (n *Namespace) Call(r SourceRange, m *Method, inputs []*ir.Value, attrs []Attribute, numOutputs int) ([]*ir.Value, error) {
	return nil, errorAt(r, "cannot call a %s", n.Describe())
}

// ConstantValue is a compile-time scalar, typically a resolver-bound
// hyperparameter. Used as a value it lowers to a constant node.
type ConstantValue struct {
	Value float64
}

func (c *ConstantValue) Describe() string { return "constant" }

func (c *ConstantValue) AsValue(r SourceRange, m *Method) (*ir.Value, error) {
	var t *ir.Tensor
	if c.Value == math.Trunc(c.Value) {
		t = ir.LongScalar(int64(c.Value))
	} else {
		t = ir.FloatScalar(float32(c.Value))
	}
	return m.emitConstant(r, t), nil
}

func (c *ConstantValue) Attr(r SourceRange, m *Method, field string) (Sugared, error) {
	return nil, errorAt(r, "attribute lookup is not defined on a %s", c.Describe())
}

func (c *ConstantValue) Call(r SourceRange, m *Method, inputs []*ir.Value, attrs []Attribute, numOutputs int) ([]*ir.Value, error) {
	return nil, errorAt(r, "cannot call a %s", c.Describe())
}

// applyAttribute turns one keyword argument into a node attribute.
// Scalar suffixes pick the attribute kind: `f` stores a float, `LL`
// and booleans store an integer; lists follow their elements, and a
// list with any float element is stored as floats.
func applyAttribute(n *ir.Node, attr Attribute) error {
	name := ir.Symbol(attr.Name().Name())
	v := attr.Value()
	if v.Kind == TreeList {
		anyFloat := false
		for _, c := range v.Children {
			if AsConst(c).Suffix() == "f" {
				anyFloat = true
			}
		}
		if anyFloat {
			fs := make([]float64, len(v.Children))
			for i, c := range v.Children {
				fs[i] = AsConst(c).Value()
			}
			n.SetFloats(name, fs)
		} else {
			is := make([]int64, len(v.Children))
			for i, c := range v.Children {
				is[i] = int64(AsConst(c).Value())
			}
			n.SetInts(name, is)
		}
		return nil
	}
	c := AsConst(v)
	if c.Suffix() == "f" {
		n.SetFloat(name, c.Value())
	} else {
		n.SetInt(name, int64(c.Value()))
	}
	return nil
}
