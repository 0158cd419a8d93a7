package ir

// CreateClone produces a structural copy of n in g, which may be a
// different graph. Each input is remapped through valueMapper, which
// must return a value owned by g. Attributes (including sub-graphs,
// deep-copied) and source location carry over, as do output metadata
// and stages. The clone is not inserted.
func (g *Graph) CreateClone(n *Node, valueMapper func(*Value) *Value) *Node {
	inputs := make([]*Value, len(n.inputs))
	for i, id := range n.inputs {
		inputs[i] = valueMapper(n.graph.value(id))
	}
	c := g.Create(n.kind, inputs, len(n.outputs))
	c.CopyAttributesFrom(n)
	c.loc = n.loc
	c.stage = n.stage
	for i, id := range n.outputs {
		src := n.graph.value(id)
		dst := g.value(c.outputs[i])
		dst.CopyMetadata(src)
		dst.stage = src.stage
	}
	return c
}

// Copy returns a deep structural copy of the graph: same node order,
// kinds, attributes, input/output arity and metadata, with fresh
// arenas. Used for sub-graph attribute ownership and by callers that
// need to mutate without touching the source.
func (g *Graph) Copy() *Graph {
	out := New()
	env := make(map[ValueID]*Value, len(g.values))
	for _, in := range g.Inputs() {
		nv := out.AddInput(in.name)
		nv.typ = in.typ
		nv.stage = in.stage
		env[in.id] = nv
	}
	mapper := func(v *Value) *Value {
		m, ok := env[v.id]
		if !ok {
			panic("ir: Copy encountered a value with no definition")
		}
		return m
	}
	for _, n := range g.Nodes() {
		c := out.AppendNode(out.CreateClone(n, mapper))
		for i, id := range n.outputs {
			env[id] = out.value(c.outputs[i])
		}
	}
	for _, o := range g.Outputs() {
		out.RegisterOutput(mapper(o))
	}
	out.stage = g.stage
	return out
}
