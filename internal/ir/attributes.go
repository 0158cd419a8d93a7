package ir

import "fmt"

// AttrKind discriminates the attribute tagged union.
type AttrKind int

const (
	AttrFloat AttrKind = iota
	AttrFloats
	AttrInt
	AttrInts
	AttrString
	AttrStrings
	AttrTensor
	AttrTensors
	AttrGraph
	AttrGraphs
)

// String returns the wire name of the attribute kind.
func (k AttrKind) String() string {
	switch k {
	case AttrFloat:
		return "FLOAT"
	case AttrFloats:
		return "FLOATS"
	case AttrInt:
		return "INT"
	case AttrInts:
		return "INTS"
	case AttrString:
		return "STRING"
	case AttrStrings:
		return "STRINGS"
	case AttrTensor:
		return "TENSOR"
	case AttrTensors:
		return "TENSORS"
	case AttrGraph:
		return "GRAPH"
	case AttrGraphs:
		return "GRAPHS"
	default:
		return fmt.Sprintf("AttrKind(%d)", int(k))
	}
}

// AttrValue is one attribute payload. Exactly the field selected by
// Kind is meaningful.
type AttrValue struct {
	Kind AttrKind

	F  float64
	Fs []float64
	I  int64
	Is []int64
	S  string
	Ss []string
	T  *Tensor
	Ts []*Tensor
	G  *Graph
	Gs []*Graph
}

// clone deep-copies the payload so attribute copies never alias
// tensors or sub-graphs.
func (a *AttrValue) clone() *AttrValue {
	c := &AttrValue{Kind: a.Kind, F: a.F, I: a.I, S: a.S}
	switch a.Kind {
	case AttrFloats:
		c.Fs = append([]float64(nil), a.Fs...)
	case AttrInts:
		c.Is = append([]int64(nil), a.Is...)
	case AttrStrings:
		c.Ss = append([]string(nil), a.Ss...)
	case AttrTensor:
		if a.T != nil {
			c.T = a.T.Clone()
		}
	case AttrTensors:
		c.Ts = make([]*Tensor, len(a.Ts))
		for i, t := range a.Ts {
			c.Ts[i] = t.Clone()
		}
	case AttrGraph:
		if a.G != nil {
			c.G = a.G.Copy()
		}
	case AttrGraphs:
		c.Gs = make([]*Graph, len(a.Gs))
		for i, g := range a.Gs {
			c.Gs[i] = g.Copy()
		}
	}
	return c
}

// attrMap keeps attributes in insertion order so dumps and exports are
// deterministic.
type attrMap struct {
	names  []Symbol
	values map[Symbol]*AttrValue
}

func (m *attrMap) set(name Symbol, v *AttrValue) {
	if m.values == nil {
		m.values = make(map[Symbol]*AttrValue)
	}
	if _, ok := m.values[name]; !ok {
		m.names = append(m.names, name)
	}
	m.values[name] = v
}

func (m *attrMap) get(name Symbol) (*AttrValue, bool) {
	v, ok := m.values[name]
	return v, ok
}

func (m *attrMap) remove(name Symbol) bool {
	if _, ok := m.values[name]; !ok {
		return false
	}
	delete(m.values, name)
	for i, n := range m.names {
		if n == name {
			m.names = append(m.names[:i], m.names[i+1:]...)
			break
		}
	}
	return true
}

// SetFloat sets a float attribute. All setters return the node for
// chaining during graph construction.
func (n *Node) SetFloat(name Symbol, v float64) *Node {
	n.attrs.set(name, &AttrValue{Kind: AttrFloat, F: v})
	return n
}

// SetFloats sets a float-list attribute.
func (n *Node) SetFloats(name Symbol, v []float64) *Node {
	n.attrs.set(name, &AttrValue{Kind: AttrFloats, Fs: append([]float64(nil), v...)})
	return n
}

// SetInt sets an int attribute.
func (n *Node) SetInt(name Symbol, v int64) *Node {
	n.attrs.set(name, &AttrValue{Kind: AttrInt, I: v})
	return n
}

// SetInts sets an int-list attribute.
func (n *Node) SetInts(name Symbol, v []int64) *Node {
	n.attrs.set(name, &AttrValue{Kind: AttrInts, Is: append([]int64(nil), v...)})
	return n
}

// SetString sets a string attribute.
func (n *Node) SetString(name Symbol, v string) *Node {
	n.attrs.set(name, &AttrValue{Kind: AttrString, S: v})
	return n
}

// SetStrings sets a string-list attribute.
func (n *Node) SetStrings(name Symbol, v []string) *Node {
	n.attrs.set(name, &AttrValue{Kind: AttrStrings, Ss: append([]string(nil), v...)})
	return n
}

// SetTensor sets a tensor attribute. The node takes ownership of t.
func (n *Node) SetTensor(name Symbol, t *Tensor) *Node {
	n.attrs.set(name, &AttrValue{Kind: AttrTensor, T: t})
	return n
}

// SetTensors sets a tensor-list attribute.
func (n *Node) SetTensors(name Symbol, ts []*Tensor) *Node {
	n.attrs.set(name, &AttrValue{Kind: AttrTensors, Ts: append([]*Tensor(nil), ts...)})
	return n
}

// SetGraph sets a sub-graph attribute. The node takes ownership of g.
func (n *Node) SetGraph(name Symbol, g *Graph) *Node {
	n.attrs.set(name, &AttrValue{Kind: AttrGraph, G: g})
	return n
}

// SetGraphs sets a sub-graph-list attribute.
func (n *Node) SetGraphs(name Symbol, gs []*Graph) *Node {
	n.attrs.set(name, &AttrValue{Kind: AttrGraphs, Gs: append([]*Graph(nil), gs...)})
	return n
}

// Float returns the float attribute. Accessors panic on a missing name
// or kind mismatch: attribute schemas are op contracts, and violating
// one is a programming error, not runtime input.
func (n *Node) Float(name Symbol) float64   { return n.expect(name, AttrFloat).F }
func (n *Node) Floats(name Symbol) []float64 { return n.expect(name, AttrFloats).Fs }
func (n *Node) Int(name Symbol) int64       { return n.expect(name, AttrInt).I }
func (n *Node) Ints(name Symbol) []int64    { return n.expect(name, AttrInts).Is }
func (n *Node) Str(name Symbol) string      { return n.expect(name, AttrString).S }
func (n *Node) Strs(name Symbol) []string   { return n.expect(name, AttrStrings).Ss }
func (n *Node) Tensor(name Symbol) *Tensor  { return n.expect(name, AttrTensor).T }
func (n *Node) Tensors(name Symbol) []*Tensor { return n.expect(name, AttrTensors).Ts }
func (n *Node) Graph(name Symbol) *Graph    { return n.expect(name, AttrGraph).G }
func (n *Node) Graphs(name Symbol) []*Graph { return n.expect(name, AttrGraphs).Gs }

func (n *Node) expect(name Symbol, kind AttrKind) *AttrValue {
	v, ok := n.attrs.get(name)
	if !ok {
		panic(fmt.Sprintf("ir: node %s has no attribute %q", n.kind, name))
	}
	if v.Kind != kind {
		panic(fmt.Sprintf("ir: attribute %q of %s is %s, not %s", name, n.kind, v.Kind, kind))
	}
	return v
}

// HasAttribute reports whether the attribute is present.
func (n *Node) HasAttribute(name Symbol) bool {
	_, ok := n.attrs.get(name)
	return ok
}

// KindOf returns the tagged-union kind of an attribute.
func (n *Node) KindOf(name Symbol) (AttrKind, bool) {
	v, ok := n.attrs.get(name)
	if !ok {
		return 0, false
	}
	return v.Kind, true
}

// Attribute returns the raw payload for an attribute name.
func (n *Node) Attribute(name Symbol) (*AttrValue, bool) {
	return n.attrs.get(name)
}

// AttributeNames returns attribute names in insertion order.
func (n *Node) AttributeNames() []Symbol {
	return append([]Symbol(nil), n.attrs.names...)
}

// RemoveAttribute deletes an attribute if present.
func (n *Node) RemoveAttribute(name Symbol) bool {
	return n.attrs.remove(name)
}

// CopyAttributesFrom deep-copies every attribute of src onto n,
// overwriting same-named entries.
func (n *Node) CopyAttributesFrom(src *Node) *Node {
	for _, name := range src.attrs.names {
		n.attrs.set(name, src.attrs.values[name].clone())
	}
	return n
}
