package script

import (
	"fmt"
	"strconv"
	"strings"
)

// TreeKind discriminates syntax tree nodes. The tree itself is
// generic: every node is a kind, a source range, and children, with
// leaf payloads for identifiers and numbers. Typed views in
// tree_views.go give each kind a checked accessor surface.
type TreeKind int

const (
	TreeList TreeKind = iota
	TreeIdent
	TreeConst
	TreeOption

	TreeParam
	TreeInferred
	TreeTensorType

	TreeDef
	TreeAssign
	TreeIf
	TreeWhile
	TreeGlobal
	TreeReturn
	TreeExprStmt

	TreeSelect
	TreeApply
	TreeAttribute
	TreeGather
	TreeSlice
	TreeIfExpr

	TreeNeg
	TreeAdd
	TreeSub
	TreeMul
	TreeDiv
	TreeLT
	TreeGT
	TreeLE
	TreeGE
	TreeEQ
	TreeNE
)

var treeKindNames = map[TreeKind]string{
	TreeList:       "list",
	TreeIdent:      "ident",
	TreeConst:      "const",
	TreeOption:     "option",
	TreeParam:      "param",
	TreeInferred:   "inferred",
	TreeTensorType: "tensor-type",
	TreeDef:        "def",
	TreeAssign:     "assign",
	TreeIf:         "if",
	TreeWhile:      "while",
	TreeGlobal:     "global",
	TreeReturn:     "return",
	TreeExprStmt:   "expr-stmt",
	TreeSelect:     "select",
	TreeApply:      "apply",
	TreeAttribute:  "attribute",
	TreeGather:     "gather",
	TreeSlice:      "slice",
	TreeIfExpr:     "if-expr",
	TreeNeg:        "neg",
	TreeAdd:        "+",
	TreeSub:        "-",
	TreeMul:        "*",
	TreeDiv:        "/",
	TreeLT:         "<",
	TreeGT:         ">",
	TreeLE:         "<=",
	TreeGE:         ">=",
	TreeEQ:         "==",
	TreeNE:         "!=",
}

func (k TreeKind) String() string {
	if s, ok := treeKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("TreeKind(%d)", int(k))
}

// Tree is one syntax tree node.
type Tree struct {
	Kind     TreeKind
	Range    SourceRange
	Children []*Tree

	// leaf payloads
	Name string  // TreeIdent; type suffix on TreeConst
	Num  float64 // TreeConst
}

func newIdent(r SourceRange, name string) *Tree {
	return &Tree{Kind: TreeIdent, Range: r, Name: name}
}

func newConst(r SourceRange, value float64, suffix string) *Tree {
	return &Tree{Kind: TreeConst, Range: r, Num: value, Name: suffix}
}

func newTree(kind TreeKind, r SourceRange, children ...*Tree) *Tree {
	return &Tree{Kind: kind, Range: r, Children: children}
}

// expect panics when the node is not of the given kind. Views use it
// so that a mis-shaped tree fails loudly at the access site instead of
// producing silent garbage.
func (t *Tree) expect(kind TreeKind) *Tree {
	if t.Kind != kind {
		panic(fmt.Sprintf("script: expected %s tree, found %s at:\n%s", kind, t.Kind, t.Range.Highlight()))
	}
	return t
}

func (t *Tree) child(i int) *Tree { return t.Children[i] }

// String renders the tree as an s-expression, the form used in parser
// tests and debugging output.
func (t *Tree) String() string {
	var b strings.Builder
	t.dump(&b)
	return b.String()
}

func (t *Tree) dump(b *strings.Builder) {
	switch t.Kind {
	case TreeIdent:
		b.WriteString(t.Name)
	case TreeConst:
		b.WriteString(strconv.FormatFloat(t.Num, 'g', -1, 64))
		b.WriteString(t.Name)
	default:
		b.WriteString("(")
		b.WriteString(t.Kind.String())
		for _, c := range t.Children {
			b.WriteString(" ")
			c.dump(b)
		}
		b.WriteString(")")
	}
}
