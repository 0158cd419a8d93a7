package script

// Typed views over the generic tree. Each view checks the node kind on
// construction, so the compiler can navigate without re-validating
// shapes at every step.

// Ident is a bare name.
type Ident struct{ T *Tree }

// AsIdent checks and wraps t.
func AsIdent(t *Tree) Ident { return Ident{t.expect(TreeIdent)} }

func (i Ident) Name() string       { return i.T.Name }
func (i Ident) Range() SourceRange { return i.T.Range }

// Const is a numeric literal with its type suffix: "f" for 32-bit
// float, "LL" for 64-bit integer, "b" for booleans.
type Const struct{ T *Tree }

func AsConst(t *Tree) Const { return Const{t.expect(TreeConst)} }

func (c Const) Value() float64 { return c.T.Num }
func (c Const) Suffix() string { return c.T.Name }

// Param is one formal parameter: a name and a type, where the type is
// either an explicit tensor type or the inferred marker.
type Param struct{ T *Tree }

func AsParam(t *Tree) Param { return Param{t.expect(TreeParam)} }

func (p Param) Name() Ident { return AsIdent(p.T.child(0)) }
func (p Param) Type() *Tree { return p.T.child(1) }

// TypeIsInferred reports whether the parameter's type was omitted.
func (p Param) TypeIsInferred() bool { return p.Type().Kind == TreeInferred }

// Def is one function definition.
type Def struct{ T *Tree }

func AsDef(t *Tree) Def { return Def{t.expect(TreeDef)} }

func (d Def) Name() Ident { return AsIdent(d.T.child(0)) }

func (d Def) Params() []Param {
	list := d.T.child(1).expect(TreeList)
	params := make([]Param, len(list.Children))
	for i, c := range list.Children {
		params[i] = AsParam(c)
	}
	return params
}

func (d Def) Body() []*Tree { return d.T.child(2).expect(TreeList).Children }

// Assign is `a, b = rhs` or an augmented form like `a += rhs`. The
// reduction is "=" for plain assignment, otherwise the operator kind
// to fold the old value with the right-hand side.
type Assign struct{ T *Tree }

func AsAssign(t *Tree) Assign { return Assign{t.expect(TreeAssign)} }

func (a Assign) Targets() []Ident {
	list := a.T.child(0).expect(TreeList)
	names := make([]Ident, len(list.Children))
	for i, c := range list.Children {
		names[i] = AsIdent(c)
	}
	return names
}

func (a Assign) Reduction() string { return a.T.Name }
func (a Assign) RHS() *Tree        { return a.T.child(1) }

// If is a conditional statement with both branches as statement lists
// (the false branch is empty when no else clause was written).
type If struct{ T *Tree }

func AsIf(t *Tree) If { return If{t.expect(TreeIf)} }

func (i If) Cond() *Tree          { return i.T.child(0) }
func (i If) TrueBranch() []*Tree  { return i.T.child(1).expect(TreeList).Children }
func (i If) FalseBranch() []*Tree { return i.T.child(2).expect(TreeList).Children }

// While is a loop statement.
type While struct{ T *Tree }

func AsWhile(t *Tree) While { return While{t.expect(TreeWhile)} }

func (w While) Cond() *Tree   { return w.T.child(0) }
func (w While) Body() []*Tree { return w.T.child(1).expect(TreeList).Children }

// Global declares names as resolver-scoped rather than local.
type Global struct{ T *Tree }

func AsGlobal(t *Tree) Global { return Global{t.expect(TreeGlobal)} }

func (g Global) Names() []Ident {
	names := make([]Ident, len(g.T.Children))
	for i, c := range g.T.Children {
		names[i] = AsIdent(c)
	}
	return names
}

// Return carries zero or more result expressions.
type Return struct{ T *Tree }

func AsReturn(t *Tree) Return { return Return{t.expect(TreeReturn)} }

func (r Return) Values() []*Tree { return r.T.child(0).expect(TreeList).Children }

// Select is attribute access, `value.field`.
type Select struct{ T *Tree }

func AsSelect(t *Tree) Select { return Select{t.expect(TreeSelect)} }

func (s Select) Value() *Tree { return s.T.child(0) }
func (s Select) Field() Ident { return AsIdent(s.T.child(1)) }

// Apply is a call: positional inputs plus keyword attributes.
type Apply struct{ T *Tree }

func AsApply(t *Tree) Apply { return Apply{t.expect(TreeApply)} }

func (a Apply) Callee() *Tree   { return a.T.child(0) }
func (a Apply) Inputs() []*Tree { return a.T.child(1).expect(TreeList).Children }

func (a Apply) Attributes() []Attribute {
	list := a.T.child(2).expect(TreeList)
	attrs := make([]Attribute, len(list.Children))
	for i, c := range list.Children {
		attrs[i] = AsAttribute(c)
	}
	return attrs
}

// Attribute is one `name=value` keyword argument.
type Attribute struct{ T *Tree }

func AsAttribute(t *Tree) Attribute { return Attribute{t.expect(TreeAttribute)} }

func (a Attribute) Name() Ident  { return AsIdent(a.T.child(0)) }
func (a Attribute) Value() *Tree { return a.T.child(1) }

// Gather is single-element subscripting, `value[index]`.
type Gather struct{ T *Tree }

func AsGather(t *Tree) Gather { return Gather{t.expect(TreeGather)} }

func (g Gather) Value() *Tree { return g.T.child(0) }
func (g Gather) Index() *Tree { return g.T.child(1) }

// Slice is range subscripting, `value[start:end]`, with either bound
// optional.
type Slice struct{ T *Tree }

func AsSlice(t *Tree) Slice { return Slice{t.expect(TreeSlice)} }

func (s Slice) Value() *Tree { return s.T.child(0) }

func (s Slice) Start() (*Tree, bool) { return optionValue(s.T.child(1)) }
func (s Slice) End() (*Tree, bool)   { return optionValue(s.T.child(2)) }

func optionValue(t *Tree) (*Tree, bool) {
	t.expect(TreeOption)
	if len(t.Children) == 0 {
		return nil, false
	}
	return t.child(0), true
}

// IfExpr is the ternary form `t if cond else f`.
type IfExpr struct{ T *Tree }

func AsIfExpr(t *Tree) IfExpr { return IfExpr{t.expect(TreeIfExpr)} }

func (i IfExpr) Cond() *Tree      { return i.T.child(0) }
func (i IfExpr) TrueExpr() *Tree  { return i.T.child(1) }
func (i IfExpr) FalseExpr() *Tree { return i.T.child(2) }
