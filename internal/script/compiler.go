package script

import (
	"fmt"

	"github.com/weft-ml/weft/internal/ir"
)

// Resolver supplies the meaning of free names: anything the script
// refers to that is not a parameter or a local. Hosts use it to bind
// parameters of a model, helper namespaces, or hyperparameters.
type Resolver interface {
	Resolve(name string) (Sugared, bool)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(name string) (Sugared, bool)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(name string) (Sugared, bool) { return f(name) }

// NoResolver resolves nothing.
var NoResolver Resolver = ResolverFunc(func(string) (Sugared, bool) { return nil, false })

// Method is one compiled function: a named graph.
type Method struct {
	Name  string
	Graph *ir.Graph
}

func (m *Method) emit(kind ir.Symbol, r SourceRange, inputs []*ir.Value, numOutputs int) *ir.Node {
	n := m.Graph.Create(kind, inputs, numOutputs)
	loc := r
	n.SetSourceLocation(&loc)
	return m.Graph.AppendNode(n)
}

func (m *Method) emitConstant(r SourceRange, t *ir.Tensor) *ir.Value {
	n := m.Graph.AppendNode(m.Graph.CreateConstant(t))
	loc := r
	n.SetSourceLocation(&loc)
	return n.Output().InferTypeFrom(t)
}

// Module is an ordered collection of compiled methods sharing a self
// object.
type Module struct {
	methods map[string]*Method
	order   []string
}

// Method returns the named method, or nil.
func (mod *Module) Method(name string) *Method { return mod.methods[name] }

// Methods returns methods in definition order.
func (mod *Module) Methods() []*Method {
	out := make([]*Method, len(mod.order))
	for i, name := range mod.order {
		out[i] = mod.methods[name]
	}
	return out
}

// Compile parses source and compiles every definition into a module.
func Compile(source string, resolver Resolver) (*Module, error) {
	p, err := NewParser(source)
	if err != nil {
		return nil, err
	}
	defs, err := p.Parse()
	if err != nil {
		return nil, err
	}
	return DefineMethods(defs, resolver, nil)
}

// CompileFunction compiles a single definition.
func CompileFunction(def Def, resolver Resolver) (*Method, error) {
	mod, err := DefineMethods([]Def{def}, resolver, nil)
	if err != nil {
		return nil, err
	}
	return mod.Method(def.Name().Name()), nil
}

// DefineMethods compiles defs into a module. When self is non-nil it
// is bound to the name "self" in every method without becoming a
// graph input, the mechanism behind `self.weight`-style parameter
// access.
func DefineMethods(defs []Def, resolver Resolver, self Sugared) (*Module, error) {
	if resolver == nil {
		resolver = NoResolver
	}
	mod := &Module{methods: make(map[string]*Method)}
	for _, def := range defs {
		name := def.Name().Name()
		if _, dup := mod.methods[name]; dup {
			return nil, errorAt(def.Name().Range(), "method %q is defined twice", name)
		}
		m, err := compileDef(def, resolver, self)
		if err != nil {
			return nil, err
		}
		mod.methods[name] = m
		mod.order = append(mod.order, name)
	}
	return mod, nil
}

func compileDef(def Def, resolver Resolver, self Sugared) (*Method, error) {
	m := &Method{Name: def.Name().Name(), Graph: ir.New()}
	c := &compiler{
		method:   m,
		resolver: resolver,
		locals:   make(map[string]Sugared),
		globals:  make(map[string]bool),
	}
	if self != nil {
		c.bind("self", self)
	}
	for _, param := range def.Params() {
		name := param.Name().Name()
		if _, dup := c.locals[name]; dup {
			return nil, errorAt(param.Name().Range(), "duplicate parameter %q", name)
		}
		// annotated and inferred parameters both start dynamic; shapes
		// arrive when a caller supplies payloads
		in := m.Graph.AddInput(name)
		c.bind(name, &SimpleValue{V: in})
	}
	if err := c.compileBody(def.Body()); err != nil {
		return nil, err
	}
	if err := m.Graph.Lint(); err != nil {
		return nil, fmt.Errorf("compiling %s: %w", m.Name, err)
	}
	return m, nil
}

// compiler carries the environment for one region: a method under
// construction plus name bindings. Nested regions (branches, loop
// bodies) get their own compiler over a sub-graph, with outer values
// re-entering as captured inputs.
type compiler struct {
	method   *Method
	resolver Resolver
	locals   map[string]Sugared
	order    []string // binding order, drives deterministic captures
	globals  map[string]bool
}

func (c *compiler) bind(name string, s Sugared) {
	if _, exists := c.locals[name]; !exists {
		c.order = append(c.order, name)
	}
	c.locals[name] = s
}

// compileBody compiles a function body, where a trailing return
// statement defines the graph outputs.
func (c *compiler) compileBody(stmts []*Tree) error {
	for i, stmt := range stmts {
		if stmt.Kind == TreeReturn {
			if i != len(stmts)-1 {
				return errorAt(stmt.Range, "return must be the final statement")
			}
			for _, e := range AsReturn(stmt).Values() {
				v, err := c.emitValue(e)
				if err != nil {
					return err
				}
				c.method.Graph.RegisterOutput(v)
			}
			return nil
		}
		if err := c.compileStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

// compileStmts compiles a nested block, where return is not allowed.
func (c *compiler) compileStmts(stmts []*Tree) error {
	for _, stmt := range stmts {
		if stmt.Kind == TreeReturn {
			return errorAt(stmt.Range, "return is only allowed at the end of the function")
		}
		if err := c.compileStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (c *compiler) compileStmt(stmt *Tree) error {
	switch stmt.Kind {
	case TreeAssign:
		return c.compileAssign(AsAssign(stmt))
	case TreeIf:
		return c.compileIf(AsIf(stmt))
	case TreeWhile:
		return c.compileWhile(AsWhile(stmt))
	case TreeGlobal:
		for _, name := range AsGlobal(stmt).Names() {
			c.globals[name.Name()] = true
		}
		return nil
	case TreeExprStmt:
		_, err := c.emitSugared(stmt.child(0))
		return err
	default:
		return errorAt(stmt.Range, "unexpected %s in statement position", stmt.Kind)
	}
}

func (c *compiler) compileAssign(a Assign) error {
	targets := a.Targets()
	for _, target := range targets {
		if c.globals[target.Name()] {
			return errorAt(target.Range(), "cannot assign to global name %q", target.Name())
		}
	}

	if red := a.Reduction(); red != "=" {
		// `x += e` folds the old binding with e through the matching
		// arithmetic operation
		target := targets[0]
		old, err := c.lookupValue(target.Name(), target.Range())
		if err != nil {
			return err
		}
		rhs, err := c.emitValue(a.RHS())
		if err != nil {
			return err
		}
		kind := map[string]ir.Symbol{"+": "aten::add", "-": "aten::sub", "*": "aten::mul", "/": "aten::div"}[red]
		n := c.method.emit(kind, a.T.Range, []*ir.Value{old, rhs}, 1)
		c.bind(target.Name(), &SimpleValue{V: n.Output()})
		return nil
	}

	if len(targets) == 1 {
		v, err := c.emitValue(a.RHS())
		if err != nil {
			return err
		}
		c.bind(targets[0].Name(), &SimpleValue{V: v})
		return nil
	}

	// multiple targets need a call producing that many outputs
	if a.RHS().Kind != TreeApply {
		return errorAt(a.RHS().Range, "expected a call producing %d values", len(targets))
	}
	values, err := c.emitApply(AsApply(a.RHS()), len(targets))
	if err != nil {
		return err
	}
	for i, target := range targets {
		v, err := values[i].AsValue(target.Range(), c.method)
		if err != nil {
			return err
		}
		c.bind(target.Name(), &SimpleValue{V: v})
	}
	return nil
}

// assignedNames collects, in first-assignment order, every name a
// statement list assigns to, including within nested blocks.
func assignedNames(stmts []*Tree, into *[]string, seen map[string]bool) {
	for _, stmt := range stmts {
		switch stmt.Kind {
		case TreeAssign:
			for _, target := range AsAssign(stmt).Targets() {
				if !seen[target.Name()] {
					seen[target.Name()] = true
					*into = append(*into, target.Name())
				}
			}
		case TreeIf:
			assignedNames(AsIf(stmt).TrueBranch(), into, seen)
			assignedNames(AsIf(stmt).FalseBranch(), into, seen)
		case TreeWhile:
			assignedNames(AsWhile(stmt).Body(), into, seen)
		}
	}
}

// subCompiler prepares a compiler for a nested region. Every local
// bound to a graph value is captured: it becomes an input of the
// sub-graph and its outer value joins the capture list, in binding
// order. Non-value bindings (self, constants) carry over directly.
func (c *compiler) subCompiler() (*compiler, []*ir.Value) {
	sub := &compiler{
		method:   &Method{Name: c.method.Name, Graph: ir.New()},
		resolver: c.resolver,
		locals:   make(map[string]Sugared),
		globals:  make(map[string]bool),
	}
	for name, global := range c.globals {
		sub.globals[name] = global
	}
	var captures []*ir.Value
	for _, name := range c.order {
		switch v := c.locals[name].(type) {
		case *SimpleValue:
			in := sub.method.Graph.AddInput(name)
			in.SetType(v.V.Type())
			sub.bind(name, &SimpleValue{V: in})
			captures = append(captures, v.V)
		default:
			sub.bind(name, v)
		}
	}
	return sub, captures
}

func (c *compiler) compileIf(stmt If) error {
	cond, err := c.emitValue(stmt.Cond())
	if err != nil {
		return err
	}

	var assigned []string
	seen := make(map[string]bool)
	assignedNames(stmt.TrueBranch(), &assigned, seen)
	assignedNames(stmt.FalseBranch(), &assigned, seen)

	compileBranch := func(stmts []*Tree, label string) (*ir.Graph, []*ir.Value, error) {
		sub, captures := c.subCompiler()
		if err := sub.compileStmts(stmts); err != nil {
			return nil, nil, err
		}
		for _, name := range assigned {
			v, ok := sub.locals[name].(*SimpleValue)
			if !ok {
				return nil, nil, errorAt(stmt.T.Range, "%s is not defined in the %s branch", name, label)
			}
			sub.method.Graph.RegisterOutput(v.V)
		}
		return sub.method.Graph, captures, nil
	}

	thenGraph, captures, err := compileBranch(stmt.TrueBranch(), "true")
	if err != nil {
		return err
	}
	elseGraph, _, err := compileBranch(stmt.FalseBranch(), "false")
	if err != nil {
		return err
	}

	n := c.method.emit(ir.KindIf, stmt.T.Range, append([]*ir.Value{cond}, captures...), len(assigned))
	n.SetGraph("then_branch", thenGraph)
	n.SetGraph("else_branch", elseGraph)
	for i, name := range assigned {
		c.bind(name, &SimpleValue{V: n.Outputs()[i]})
	}
	return nil
}

func (c *compiler) compileWhile(stmt While) error {
	var assigned []string
	seen := make(map[string]bool)
	assignedNames(stmt.Body(), &assigned, seen)
	for _, name := range assigned {
		if _, ok := c.locals[name].(*SimpleValue); !ok {
			return errorAt(stmt.T.Range, "%s must be defined before the loop that assigns it", name)
		}
	}

	// entry condition is evaluated in the enclosing region
	cond, err := c.emitValue(stmt.Cond())
	if err != nil {
		return err
	}

	// the body graph re-evaluates the condition after each iteration:
	// output 0 is the continuation flag, the rest are the carried
	// values
	sub, captures := c.subCompiler()
	if err := sub.compileStmts(stmt.Body()); err != nil {
		return err
	}
	nextCond, err := sub.emitValue(stmt.Cond())
	if err != nil {
		return err
	}
	sub.method.Graph.RegisterOutput(nextCond)
	for _, name := range assigned {
		sub.method.Graph.RegisterOutput(sub.locals[name].(*SimpleValue).V)
	}

	n := c.method.emit(ir.KindLoop, stmt.T.Range, append([]*ir.Value{cond}, captures...), len(assigned))
	n.SetGraph("body", sub.method.Graph)
	for i, name := range assigned {
		c.bind(name, &SimpleValue{V: n.Outputs()[i]})
	}
	return nil
}

var binaryKinds = map[TreeKind]ir.Symbol{
	TreeAdd: "aten::add",
	TreeSub: "aten::sub",
	TreeMul: "aten::mul",
	TreeDiv: "aten::div",
	TreeLT:  "aten::lt",
	TreeGT:  "aten::gt",
	TreeLE:  "aten::le",
	TreeGE:  "aten::ge",
	TreeEQ:  "aten::eq",
	TreeNE:  "aten::ne",
}

func (c *compiler) emitValue(t *Tree) (*ir.Value, error) {
	s, err := c.emitSugared(t)
	if err != nil {
		return nil, err
	}
	return s.AsValue(t.Range, c.method)
}

func (c *compiler) emitSugared(t *Tree) (Sugared, error) {
	switch t.Kind {
	case TreeIdent:
		return c.lookup(AsIdent(t).Name(), t.Range)
	case TreeConst:
		return &SimpleValue{V: c.emitLiteral(AsConst(t))}, nil
	case TreeSelect:
		sel := AsSelect(t)
		base, err := c.emitSugared(sel.Value())
		if err != nil {
			return nil, err
		}
		return base.Attr(t.Range, c.method, sel.Field().Name())
	case TreeApply:
		values, err := c.emitApply(AsApply(t), 1)
		if err != nil {
			return nil, err
		}
		return values[0], nil
	case TreeGather:
		g := AsGather(t)
		value, err := c.emitValue(g.Value())
		if err != nil {
			return nil, err
		}
		index, err := c.emitValue(g.Index())
		if err != nil {
			return nil, err
		}
		n := c.method.emit("aten::gather", t.Range, []*ir.Value{value, index}, 1)
		return &SimpleValue{V: n.Output()}, nil
	case TreeSlice:
		return c.emitSlice(AsSlice(t))
	case TreeIfExpr:
		return c.emitIfExpr(AsIfExpr(t))
	case TreeNeg:
		operand, err := c.emitValue(t.child(0))
		if err != nil {
			return nil, err
		}
		n := c.method.emit("aten::neg", t.Range, []*ir.Value{operand}, 1)
		return &SimpleValue{V: n.Output()}, nil
	default:
		kind, ok := binaryKinds[t.Kind]
		if !ok {
			return nil, errorAt(t.Range, "unexpected %s in expression position", t.Kind)
		}
		lhs, err := c.emitValue(t.child(0))
		if err != nil {
			return nil, err
		}
		rhs, err := c.emitValue(t.child(1))
		if err != nil {
			return nil, err
		}
		n := c.method.emit(kind, t.Range, []*ir.Value{lhs, rhs}, 1)
		return &SimpleValue{V: n.Output()}, nil
	}
}

// emitLiteral embeds a literal as a constant node. Floats become
// float32 scalars, integers int64 scalars, and booleans 0/1 float32
// scalars.
func (c *compiler) emitLiteral(lit Const) *ir.Value {
	var t *ir.Tensor
	switch lit.Suffix() {
	case "f", "b":
		t = ir.FloatScalar(float32(lit.Value()))
	default:
		t = ir.LongScalar(int64(lit.Value()))
	}
	return c.method.emitConstant(lit.T.Range, t)
}

// emitSlice lowers `x[a:b]`; an omitted bound becomes an undefined
// placeholder input so that downstream consumers see a fixed arity.
func (c *compiler) emitSlice(s Slice) (Sugared, error) {
	value, err := c.emitValue(s.Value())
	if err != nil {
		return nil, err
	}
	bound := func(t *Tree, present bool) (*ir.Value, error) {
		if !present {
			return c.method.Graph.AppendNode(c.method.Graph.CreateUndefined()).Output(), nil
		}
		return c.emitValue(t)
	}
	startTree, hasStart := s.Start()
	start, err := bound(startTree, hasStart)
	if err != nil {
		return nil, err
	}
	endTree, hasEnd := s.End()
	end, err := bound(endTree, hasEnd)
	if err != nil {
		return nil, err
	}
	n := c.method.emit("aten::slice", s.T.Range, []*ir.Value{value, start, end}, 1)
	return &SimpleValue{V: n.Output()}, nil
}

// emitIfExpr lowers the ternary form to a conditional node whose
// branches each produce one value.
func (c *compiler) emitIfExpr(e IfExpr) (Sugared, error) {
	cond, err := c.emitValue(e.Cond())
	if err != nil {
		return nil, err
	}
	compileArm := func(t *Tree) (*ir.Graph, []*ir.Value, error) {
		sub, captures := c.subCompiler()
		v, err := sub.emitValue(t)
		if err != nil {
			return nil, nil, err
		}
		sub.method.Graph.RegisterOutput(v)
		return sub.method.Graph, captures, nil
	}
	thenGraph, captures, err := compileArm(e.TrueExpr())
	if err != nil {
		return nil, err
	}
	elseGraph, _, err := compileArm(e.FalseExpr())
	if err != nil {
		return nil, err
	}
	n := c.method.emit(ir.KindIf, e.T.Range, append([]*ir.Value{cond}, captures...), 1)
	n.SetGraph("then_branch", thenGraph)
	n.SetGraph("else_branch", elseGraph)
	return &SimpleValue{V: n.Output()}, nil
}

func (c *compiler) emitApply(apply Apply, numOutputs int) ([]Sugared, error) {
	callee, err := c.emitSugared(apply.Callee())
	if err != nil {
		return nil, err
	}
	inputs := make([]*ir.Value, len(apply.Inputs()))
	for i, in := range apply.Inputs() {
		v, err := c.emitValue(in)
		if err != nil {
			return nil, err
		}
		inputs[i] = v
	}
	values, err := callee.Call(apply.T.Range, c.method, inputs, apply.Attributes(), numOutputs)
	if err != nil {
		return nil, err
	}
	if len(values) != numOutputs {
		return nil, errorAt(apply.T.Range, "call produced %d values where %d were expected", len(values), numOutputs)
	}
	out := make([]Sugared, len(values))
	for i, v := range values {
		out[i] = &SimpleValue{V: v}
	}
	return out, nil
}

func (c *compiler) lookup(name string, r SourceRange) (Sugared, error) {
	if !c.globals[name] {
		if s, ok := c.locals[name]; ok {
			return s, nil
		}
	}
	if s, ok := c.resolver.Resolve(name); ok {
		return s, nil
	}
	return nil, errorAt(r, "undefined value %s", name)
}

func (c *compiler) lookupValue(name string, r SourceRange) (*ir.Value, error) {
	s, err := c.lookup(name, r)
	if err != nil {
		return nil, err
	}
	return s.AsValue(r, c.method)
}
