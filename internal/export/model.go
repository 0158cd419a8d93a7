package export

import (
	"fmt"

	"github.com/weft-ml/weft/internal/ir"
)

// WireVersion is the serialized model layout version. Bump it when
// the structure below changes incompatibly.
const WireVersion = 3

// Model is the top-level wire form of an exported graph.
type Model struct {
	IRVersion       int64      `json:"ir_version"`
	ProducerName    string     `json:"producer_name"`
	ProducerVersion string     `json:"producer_version"`
	Opset           int64      `json:"opset_version"`
	Graph           GraphProto `json:"graph"`
}

// GraphProto is one graph on the wire.
type GraphProto struct {
	Name         string        `json:"name"`
	Nodes        []NodeProto   `json:"nodes"`
	Inputs       []ValueInfo   `json:"inputs"`
	Outputs      []ValueInfo   `json:"outputs"`
	Initializers []TensorProto `json:"initializers,omitempty"`
}

// ValueInfo names a graph boundary value with its type, when known.
type ValueInfo struct {
	Name     string  `json:"name"`
	ElemType int     `json:"elem_type,omitempty"`
	Dims     []int64 `json:"dims,omitempty"`
}

// NodeProto is one operation on the wire. Input positions fed by the
// undefined sentinel hold an empty name.
type NodeProto struct {
	OpType     string           `json:"op_type"`
	Inputs     []string         `json:"inputs"`
	Outputs    []string         `json:"outputs"`
	Attributes []AttributeProto `json:"attributes,omitempty"`
}

// AttributeProto carries the attribute tagged union one to one: Type
// names the arm and exactly the matching field is present.
type AttributeProto struct {
	Name string `json:"name"`
	Type string `json:"type"`

	F  *float64      `json:"f,omitempty"`
	Fs []float64     `json:"floats,omitempty"`
	I  *int64        `json:"i,omitempty"`
	Is []int64       `json:"ints,omitempty"`
	S  *string       `json:"s,omitempty"`
	Ss []string      `json:"strings,omitempty"`
	T  *TensorProto  `json:"t,omitempty"`
	Ts []TensorProto `json:"tensors,omitempty"`
	G  *GraphProto   `json:"g,omitempty"`
	Gs []GraphProto  `json:"graphs,omitempty"`
}

// TensorProto is a dense payload: raw little-endian bytes plus the
// interchange element-type code.
type TensorProto struct {
	Name     string  `json:"name,omitempty"`
	ElemType int     `json:"elem_type"`
	Dims     []int64 `json:"dims,omitempty"`
	RawData  []byte  `json:"raw_data"`
}

// Encode builds the wire model for a lowered graph. The trailing
// len(initializers) graph inputs are paired positionally with the
// initializer payloads, the convention for baked-in parameters.
func Encode(g *ir.Graph, initializers []*ir.Tensor, opts Options) (*Model, error) {
	if len(initializers) > len(g.Inputs()) {
		return nil, fmt.Errorf("export: %d initializers for %d graph inputs",
			len(initializers), len(g.Inputs()))
	}
	graph, err := encodeGraph(g, opts.GraphName, initializers)
	if err != nil {
		return nil, err
	}
	return &Model{
		IRVersion:       WireVersion,
		ProducerName:    opts.ProducerName,
		ProducerVersion: opts.ProducerVersion,
		Opset:           opts.Opset,
		Graph:           *graph,
	}, nil
}

func encodeGraph(g *ir.Graph, name string, initializers []*ir.Tensor) (*GraphProto, error) {
	p := &GraphProto{Name: name}

	inputs := g.Inputs()
	for _, in := range inputs {
		p.Inputs = append(p.Inputs, valueInfo(in))
	}
	first := len(inputs) - len(initializers)
	for i, t := range initializers {
		if err := t.Check(); err != nil {
			return nil, fmt.Errorf("export: initializer %d: %w", i, err)
		}
		tp := tensorProto(t)
		tp.Name = inputs[first+i].UniqueName()
		p.Initializers = append(p.Initializers, tp)
	}

	for _, n := range g.Nodes() {
		if n.Kind() == ir.KindUndefined {
			continue
		}
		np := NodeProto{
			OpType:  n.Kind().Base(),
			Inputs:  []string{},
			Outputs: []string{},
		}
		for _, in := range n.Inputs() {
			if in.Node().Kind() == ir.KindUndefined {
				np.Inputs = append(np.Inputs, "")
				continue
			}
			np.Inputs = append(np.Inputs, in.UniqueName())
		}
		for _, out := range n.Outputs() {
			np.Outputs = append(np.Outputs, out.UniqueName())
		}
		for _, attrName := range n.AttributeNames() {
			a, _ := n.Attribute(attrName)
			ap, err := attributeProto(attrName, a)
			if err != nil {
				return nil, fmt.Errorf("export: %s.%s: %w", n.Kind(), attrName, err)
			}
			np.Attributes = append(np.Attributes, ap)
		}
		p.Nodes = append(p.Nodes, np)
	}

	for _, out := range g.Outputs() {
		p.Outputs = append(p.Outputs, valueInfo(out))
	}
	return p, nil
}

func valueInfo(v *ir.Value) ValueInfo {
	info := ValueInfo{Name: v.UniqueName()}
	if t := v.Type(); t.IsTensor() {
		info.ElemType = int(t.Elem)
		info.Dims = t.Dims
	}
	return info
}

func tensorProto(t *ir.Tensor) TensorProto {
	return TensorProto{
		ElemType: int(t.Elem),
		Dims:     t.Dims,
		RawData:  t.Data,
	}
}

func attributeProto(name ir.Symbol, a *ir.AttrValue) (AttributeProto, error) {
	ap := AttributeProto{Name: string(name), Type: a.Kind.String()}
	switch a.Kind {
	case ir.AttrFloat:
		f := a.F
		ap.F = &f
	case ir.AttrFloats:
		ap.Fs = a.Fs
	case ir.AttrInt:
		i := a.I
		ap.I = &i
	case ir.AttrInts:
		ap.Is = a.Is
	case ir.AttrString:
		s := a.S
		ap.S = &s
	case ir.AttrStrings:
		ap.Ss = a.Ss
	case ir.AttrTensor:
		t := tensorProto(a.T)
		ap.T = &t
	case ir.AttrTensors:
		for _, t := range a.Ts {
			ap.Ts = append(ap.Ts, tensorProto(t))
		}
	case ir.AttrGraph:
		sub, err := encodeGraph(a.G, string(name), nil)
		if err != nil {
			return ap, err
		}
		ap.G = sub
	case ir.AttrGraphs:
		for i, g := range a.Gs {
			sub, err := encodeGraph(g, fmt.Sprintf("%s[%d]", name, i), nil)
			if err != nil {
				return ap, err
			}
			ap.Gs = append(ap.Gs, *sub)
		}
	default:
		return ap, fmt.Errorf("unencodable attribute kind %s", a.Kind)
	}
	return ap, nil
}
