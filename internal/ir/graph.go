package ir

import (
	"fmt"
	"strconv"
)

// NodeID and ValueID are stable handles into a Graph's arenas. IDs are
// never reused, even after a node is destroyed.
type NodeID int

// ValueID identifies a Value within its owning Graph.
type ValueID int

const invalidNode NodeID = -1

// Use is a back-edge from a Value to one consuming input slot.
type Use struct {
	User NodeID
	Slot int
}

// SourceLocation records where a node came from in script source.
type SourceLocation struct {
	Source string // full source text
	Start  int    // byte offset of the construct
	End    int    // byte offset one past the construct
}

// Highlight renders the offending line with a caret underline, the
// form used in compiler errors and export diagnostics.
func (l *SourceLocation) Highlight() string {
	if l == nil || l.Start > len(l.Source) {
		return ""
	}
	lineStart := 0
	for i := 0; i < l.Start; i++ {
		if l.Source[i] == '\n' {
			lineStart = i + 1
		}
	}
	lineEnd := len(l.Source)
	for i := l.Start; i < len(l.Source); i++ {
		if l.Source[i] == '\n' {
			lineEnd = i
			break
		}
	}
	line := l.Source[lineStart:lineEnd]
	out := line + "\n"
	for i := lineStart; i < l.Start; i++ {
		out += " "
	}
	end := l.End
	if end > lineEnd {
		end = lineEnd
	}
	for i := l.Start; i < end; i++ {
		out += "~"
	}
	return out + "\n"
}

// Value is produced by exactly one Node (graph inputs are produced by
// the hidden parameter node). It records its consumers as Use records.
type Value struct {
	graph  *Graph
	id     ValueID
	node   NodeID
	offset int
	name   string
	typ    *Type
	stage  int
	uses   []Use
	dead   bool
}

// ID returns the per-graph unique identifier.
func (v *Value) ID() ValueID { return v.id }

// Node returns the producing node.
func (v *Value) Node() *Node { return v.graph.node(v.node) }

// Offset returns the output slot on the producing node.
func (v *Value) Offset() int { return v.offset }

// Name returns the optional human-readable name.
func (v *Value) Name() string { return v.name }

// SetName assigns a human-readable name.
func (v *Value) SetName(name string) *Value {
	v.name = name
	return v
}

// UniqueName returns the name if set, otherwise the numeric ID.
func (v *Value) UniqueName() string {
	if v.name != "" {
		return v.name
	}
	return strconv.Itoa(int(v.id))
}

// Type returns the inferred type; nil means dynamic.
func (v *Value) Type() *Type {
	if v.typ == nil {
		return DynamicType
	}
	return v.typ
}

// SetType overrides the inferred type.
func (v *Value) SetType(t *Type) *Value {
	v.typ = t
	return v
}

// InferTypeFrom sets the type from a tensor payload.
func (v *Value) InferTypeFrom(t *Tensor) *Value {
	return v.SetType(t.Type())
}

// CopyMetadata transfers name and type from another value, typically
// across graphs during lowering.
func (v *Value) CopyMetadata(from *Value) *Value {
	v.name = from.name
	v.typ = from.typ
	return v
}

// Stage returns the trace generation that produced this value.
func (v *Value) Stage() int { return v.stage }

// SetStage overrides the trace generation.
func (v *Value) SetStage(s int) *Value {
	v.stage = s
	return v
}

// Uses returns a copy of the current Use records.
func (v *Value) Uses() []Use {
	return append([]Use(nil), v.uses...)
}

// IsGraphInput reports whether the value is an input of its graph.
func (v *Value) IsGraphInput() bool { return v.node == v.graph.param.id }

// ReplaceAllUsesWith rewrites every consumer input slot referencing v
// to reference newValue. The Use index is updated in the same pass, so
// no intermediate state is observable. Replacing a value with itself
// is a no-op.
func (v *Value) ReplaceAllUsesWith(newValue *Value) {
	if v.graph != newValue.graph {
		panic("ir: ReplaceAllUsesWith across graphs")
	}
	if newValue == v {
		return
	}
	for _, u := range v.uses {
		n := v.graph.node(u.User)
		n.inputs[u.Slot] = newValue.id
		newValue.uses = append(newValue.uses, u)
	}
	v.uses = nil
}

func (v *Value) removeUse(user NodeID, slot int) {
	for i, u := range v.uses {
		if u.User == user && u.Slot == slot {
			v.uses = append(v.uses[:i], v.uses[i+1:]...)
			return
		}
	}
	panic(fmt.Sprintf("ir: use (%d, %d) not found on value %%%s", user, slot, v.UniqueName()))
}

// Node is one operation in a Graph.
type Node struct {
	graph    *Graph
	id       NodeID
	kind     Symbol
	inputs   []ValueID
	outputs  []ValueID
	attrs    attrMap
	loc      *SourceLocation
	stage    int
	inserted bool
	dead     bool
}

// ID returns the arena handle.
func (n *Node) ID() NodeID { return n.id }

// Kind returns the namespaced operation symbol.
func (n *Node) Kind() Symbol { return n.kind }

// Owner returns the graph the node belongs to.
func (n *Node) Owner() *Graph { return n.graph }

// Inputs returns the ordered input values.
func (n *Node) Inputs() []*Value {
	out := make([]*Value, len(n.inputs))
	for i, id := range n.inputs {
		out[i] = n.graph.value(id)
	}
	return out
}

// Input returns one input value.
func (n *Node) Input(i int) *Value { return n.graph.value(n.inputs[i]) }

// Outputs returns the owned output values.
func (n *Node) Outputs() []*Value {
	out := make([]*Value, len(n.outputs))
	for i, id := range n.outputs {
		out[i] = n.graph.value(id)
	}
	return out
}

// Output returns the sole output; it panics when the node does not
// have exactly one.
func (n *Node) Output() *Value {
	if len(n.outputs) != 1 {
		panic(fmt.Sprintf("ir: node %s has %d outputs, expected 1", n.kind, len(n.outputs)))
	}
	return n.graph.value(n.outputs[0])
}

// Stage returns the trace generation of the node.
func (n *Node) Stage() int { return n.stage }

// SetStage overrides the trace generation.
func (n *Node) SetStage(s int) *Node {
	n.stage = s
	return n
}

// SourceLocation returns the optional script provenance.
func (n *Node) SourceLocation() *SourceLocation { return n.loc }

// SetSourceLocation attaches script provenance.
func (n *Node) SetSourceLocation(loc *SourceLocation) *Node {
	n.loc = loc
	return n
}

// AddInput appends v to the node's inputs and records the Use when the
// node is already part of the graph order.
func (n *Node) AddInput(v *Value) *Node {
	if v.graph != n.graph {
		panic("ir: AddInput with value from another graph")
	}
	slot := len(n.inputs)
	n.inputs = append(n.inputs, v.id)
	if n.inserted {
		v.uses = append(v.uses, Use{User: n.id, Slot: slot})
	}
	return n
}

// RemoveInput deletes input slot i, removing exactly one Use record
// and renumbering the slots after it.
func (n *Node) RemoveInput(i int) {
	if n.inserted {
		n.graph.value(n.inputs[i]).removeUse(n.id, i)
	}
	n.inputs = append(n.inputs[:i], n.inputs[i+1:]...)
	if n.inserted {
		for slot := i; slot < len(n.inputs); slot++ {
			n.graph.value(n.inputs[slot]).renumberUse(n.id, slot+1, slot)
		}
	}
}

// RemoveAllInputs drops every input and its Use record.
func (n *Node) RemoveAllInputs() {
	if n.inserted {
		for i, id := range n.inputs {
			n.graph.value(id).removeUse(n.id, i)
		}
	}
	n.inputs = nil
}

// AddOutput allocates one more owned output value.
func (n *Node) AddOutput() *Value {
	v := n.graph.newValue(n.id, len(n.outputs), n.stage)
	n.outputs = append(n.outputs, v.id)
	return v
}

// EraseOutput removes output i. It fails if that output still has
// uses; later outputs shift down one slot.
func (n *Node) EraseOutput(i int) error {
	v := n.graph.value(n.outputs[i])
	if len(v.uses) > 0 {
		return fmt.Errorf("ir: cannot erase output %%%s of %s: it still has %d use(s)",
			v.UniqueName(), n.kind, len(v.uses))
	}
	v.dead = true
	n.outputs = append(n.outputs[:i], n.outputs[i+1:]...)
	for off := i; off < len(n.outputs); off++ {
		n.graph.value(n.outputs[off]).offset = off
	}
	return nil
}

func (v *Value) renumberUse(user NodeID, oldSlot, newSlot int) {
	for i, u := range v.uses {
		if u.User == user && u.Slot == oldSlot {
			v.uses[i].Slot = newSlot
			return
		}
	}
}

// Graph owns the node/value arenas, the execution order, declared
// inputs and outputs, and the stage counter.
type Graph struct {
	nodes   []*Node
	values  []*Value
	order   []NodeID
	param   *Node
	outputs []ValueID
	stage   int
}

// New creates an empty graph.
func New() *Graph {
	g := &Graph{}
	g.param = g.newNode(KindParam)
	return g
}

func (g *Graph) newNode(kind Symbol) *Node {
	n := &Node{graph: g, id: NodeID(len(g.nodes)), kind: kind, stage: g.stage}
	g.nodes = append(g.nodes, n)
	return n
}

func (g *Graph) newValue(node NodeID, offset, stage int) *Value {
	v := &Value{graph: g, id: ValueID(len(g.values)), node: node, offset: offset, stage: stage}
	g.values = append(g.values, v)
	return v
}

func (g *Graph) node(id NodeID) *Node   { return g.nodes[id] }
func (g *Graph) value(id ValueID) *Value { return g.values[id] }

// Stage returns the current trace generation.
func (g *Graph) Stage() int { return g.stage }

// SetStage sets the trace generation assigned to new nodes. The stage
// counter is logically non-decreasing during tracing; callers that
// need a temporary override use SetStageTemporary.
func (g *Graph) SetStage(s int) { g.stage = s }

// AdvanceStage increments the trace generation.
func (g *Graph) AdvanceStage() { g.stage++ }

// SetStageTemporary overrides the current stage and returns a restore
// function, meant for defer:
//
//	defer g.SetStageTemporary(n.Stage())()
func (g *Graph) SetStageTemporary(s int) func() {
	prev := g.stage
	g.stage = s
	return func() { g.stage = prev }
}

// AddInput declares a named graph input and returns its value.
func (g *Graph) AddInput(name string) *Value {
	v := g.param.AddOutput()
	v.name = name
	return v
}

// EraseInput removes input i. It fails while the input is still used.
func (g *Graph) EraseInput(i int) error {
	return g.param.EraseOutput(i)
}

// Inputs returns the declared graph inputs in order.
func (g *Graph) Inputs() []*Value { return g.param.Outputs() }

// Outputs returns the declared graph outputs in order.
func (g *Graph) Outputs() []*Value {
	out := make([]*Value, len(g.outputs))
	for i, id := range g.outputs {
		out[i] = g.value(id)
	}
	return out
}

// RegisterOutput declares v as the next graph output and returns its
// position.
func (g *Graph) RegisterOutput(v *Value) int {
	if v.graph != g {
		panic("ir: RegisterOutput with value from another graph")
	}
	g.outputs = append(g.outputs, v.id)
	return len(g.outputs) - 1
}

// Nodes returns the execution order. Destroyed nodes never appear.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.order))
	for i, id := range g.order {
		out[i] = g.node(id)
	}
	return out
}

// Create allocates a node with the given kind and inputs, producing
// numOutputs freshly-owned values. The node is not yet part of the
// execution order; Use records are established on insertion.
func (g *Graph) Create(kind Symbol, inputs []*Value, numOutputs int) *Node {
	n := g.newNode(kind)
	for _, v := range inputs {
		if v.graph != g {
			panic("ir: Create with input from another graph")
		}
		n.inputs = append(n.inputs, v.id)
	}
	for i := 0; i < numOutputs; i++ {
		n.AddOutput()
	}
	return n
}

// CreateConstant allocates a constant node embedding the tensor
// payload; its single output is typed from the payload.
func (g *Graph) CreateConstant(t *Tensor) *Node {
	n := g.Create(KindConstant, nil, 1)
	n.SetTensor("value", t)
	n.Output().InferTypeFrom(t)
	return n
}

// CreateUndefined allocates the sentinel node whose output stands for
// a logically absent value.
func (g *Graph) CreateUndefined() *Node {
	return g.Create(KindUndefined, nil, 1)
}

// AppendNode splices n at the end of the execution order.
func (g *Graph) AppendNode(n *Node) *Node {
	g.insertAt(n, len(g.order))
	return n
}

// PrependNode splices n at the front of the execution order.
func (g *Graph) PrependNode(n *Node) *Node {
	g.insertAt(n, 0)
	return n
}

// InsertBefore splices n immediately before ref.
func (g *Graph) InsertBefore(n, ref *Node) *Node {
	g.insertAt(n, g.orderIndex(ref))
	return n
}

// InsertAfter splices n immediately after ref.
func (g *Graph) InsertAfter(n, ref *Node) *Node {
	g.insertAt(n, g.orderIndex(ref)+1)
	return n
}

func (g *Graph) orderIndex(n *Node) int {
	for i, id := range g.order {
		if id == n.id {
			return i
		}
	}
	panic(fmt.Sprintf("ir: node %s (id %d) is not in the execution order", n.kind, n.id))
}

func (g *Graph) insertAt(n *Node, pos int) {
	if n.graph != g {
		panic("ir: inserting node owned by another graph")
	}
	if n.inserted {
		panic(fmt.Sprintf("ir: node %s (id %d) is already inserted", n.kind, n.id))
	}
	if n.dead {
		panic(fmt.Sprintf("ir: node %s (id %d) was destroyed", n.kind, n.id))
	}
	g.order = append(g.order, 0)
	copy(g.order[pos+1:], g.order[pos:])
	g.order[pos] = n.id
	n.inserted = true
	for slot, id := range n.inputs {
		v := g.value(id)
		v.uses = append(v.uses, Use{User: n.id, Slot: slot})
	}
}

// Destroy detaches n from the graph and releases its outputs. It fails
// while any output still has uses.
func (g *Graph) Destroy(n *Node) error {
	if n.graph != g {
		panic("ir: destroying node owned by another graph")
	}
	for _, id := range n.outputs {
		v := g.value(id)
		if len(v.uses) > 0 {
			return fmt.Errorf("ir: cannot destroy %s: output %%%s still has %d use(s)",
				n.kind, v.UniqueName(), len(v.uses))
		}
	}
	n.RemoveAllInputs()
	if n.inserted {
		pos := g.orderIndex(n)
		g.order = append(g.order[:pos], g.order[pos+1:]...)
		n.inserted = false
	}
	for _, id := range n.outputs {
		g.value(id).dead = true
	}
	n.outputs = nil
	n.dead = true
	return nil
}
