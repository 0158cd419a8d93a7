package script

import (
	"math"
	"strings"
)

// Parser builds syntax trees by precedence climbing over the token
// stream. Binary operators carry a precedence; right-associative
// operators (only the ternary `if`) recurse one level lower so that
// equal precedence continues the right-hand side instead of stopping.
type Parser struct {
	lex *Lexer
}

// NewParser tokenizes source and prepares a parser over it.
func NewParser(source string) (*Parser, error) {
	lex, err := NewLexer(source)
	if err != nil {
		return nil, err
	}
	return &Parser{lex: lex}, nil
}

// Source returns the normalized source text being parsed.
func (p *Parser) Source() string { return p.lex.Source() }

// Parse consumes the whole input as a sequence of function
// definitions.
func (p *Parser) Parse() ([]Def, error) {
	var defs []Def
	for {
		for p.lex.NextIf(TokNewline) {
		}
		if p.lex.Cur().Kind == TokEOF {
			return defs, nil
		}
		def, err := p.ParseFunction()
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
}

// ParseFunction parses one `def name(params):` block.
func (p *Parser) ParseFunction() (Def, error) {
	start, err := p.lex.Expect(TokDef)
	if err != nil {
		return Def{}, err
	}
	name, err := p.parseIdent()
	if err != nil {
		return Def{}, err
	}
	if _, err := p.lex.Expect(TokLParen); err != nil {
		return Def{}, err
	}
	params, err := p.parseList(TokRParen, p.parseParam)
	if err != nil {
		return Def{}, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return Def{}, err
	}
	r := spanFrom(start.Range, body.Range)
	return AsDef(newTree(TreeDef, r, name, params, body)), nil
}

func (p *Parser) parseIdent() (*Tree, error) {
	t, err := p.lex.Expect(TokIdent)
	if err != nil {
		return nil, err
	}
	return newIdent(t.Range, t.Text), nil
}

// parseParam accepts `name` or `name : Tensor`; an omitted annotation
// becomes the inferred-type marker that the compiler resolves from the
// call site.
func (p *Parser) parseParam() (*Tree, error) {
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	typ := newTree(TreeInferred, name.Range)
	if p.lex.NextIf(TokColon) {
		annot, err := p.lex.Expect(TokIdent)
		if err != nil {
			return nil, err
		}
		if annot.Text != "Tensor" {
			return nil, errorAt(annot.Range, "unknown parameter type %q", annot.Text)
		}
		typ = newTree(TreeTensorType, annot.Range)
	}
	return newTree(TreeParam, spanFrom(name.Range, typ.Range), name, typ), nil
}

// parseList parses comma-separated elements up to and including the
// terminator.
func (p *Parser) parseList(terminator TokenKind, element func() (*Tree, error)) (*Tree, error) {
	start := p.lex.Cur().Range
	var elems []*Tree
	if p.lex.Cur().Kind != terminator {
		for {
			e, err := element()
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
			if !p.lex.NextIf(TokComma) {
				break
			}
		}
	}
	end, err := p.lex.Expect(terminator)
	if err != nil {
		return nil, err
	}
	return newTree(TreeList, spanFrom(start, end.Range), elems...), nil
}

// parseBlock parses `:` NEWLINE INDENT stmt+ DEDENT.
func (p *Parser) parseBlock() (*Tree, error) {
	if _, err := p.lex.Expect(TokColon); err != nil {
		return nil, err
	}
	if _, err := p.lex.Expect(TokNewline); err != nil {
		return nil, err
	}
	start, err := p.lex.Expect(TokIndent)
	if err != nil {
		return nil, err
	}
	var stmts []*Tree
	for !p.lex.NextIf(TokDedent) {
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return newTree(TreeList, spanFrom(start.Range, p.lex.Cur().Range), stmts...), nil
}

func (p *Parser) parseStmt() (*Tree, error) {
	switch p.lex.Cur().Kind {
	case TokIf:
		return p.parseIf()
	case TokWhile:
		return p.parseWhile()
	case TokGlobal:
		return p.parseGlobal()
	case TokReturn:
		start := p.lex.Next()
		values, err := p.parseExpList(TokNewline)
		if err != nil {
			return nil, err
		}
		if _, err := p.lex.Expect(TokNewline); err != nil {
			return nil, err
		}
		return newTree(TreeReturn, spanFrom(start.Range, values.Range), values), nil
	default:
		return p.parseAssignOrExpr()
	}
}

func (p *Parser) parseIf() (*Tree, error) {
	start := p.lex.Next()
	cond, err := p.parseExp()
	if err != nil {
		return nil, err
	}
	trueBranch, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	falseBranch := newTree(TreeList, trueBranch.Range)
	if p.lex.NextIf(TokElse) {
		falseBranch, err = p.parseBlock()
		if err != nil {
			return nil, err
		}
	}
	return newTree(TreeIf, spanFrom(start.Range, falseBranch.Range), cond, trueBranch, falseBranch), nil
}

func (p *Parser) parseWhile() (*Tree, error) {
	start := p.lex.Next()
	cond, err := p.parseExp()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return newTree(TreeWhile, spanFrom(start.Range, body.Range), cond, body), nil
}

func (p *Parser) parseGlobal() (*Tree, error) {
	start := p.lex.Next()
	var names []*Tree
	for {
		name, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		names = append(names, name)
		if !p.lex.NextIf(TokComma) {
			break
		}
	}
	if _, err := p.lex.Expect(TokNewline); err != nil {
		return nil, err
	}
	return newTree(TreeGlobal, spanFrom(start.Range, names[len(names)-1].Range), names...), nil
}

var reductions = map[TokenKind]string{
	TokAssign:  "=",
	TokPlusEq:  "+",
	TokMinusEq: "-",
	TokStarEq:  "*",
	TokSlashEq: "/",
}

// parseAssignOrExpr disambiguates `lhs, ... = rhs` from a bare
// expression statement by parsing an expression list first and looking
// for an assignment operator.
func (p *Parser) parseAssignOrExpr() (*Tree, error) {
	list, err := p.parseExpList(TokNewline)
	if err != nil {
		return nil, err
	}
	if len(list.Children) == 0 {
		return nil, errorAt(p.lex.Cur().Range, "expected a statement")
	}

	if reduction, ok := reductions[p.lex.Cur().Kind]; ok {
		op := p.lex.Next()
		for _, target := range list.Children {
			if target.Kind != TreeIdent {
				return nil, errorAt(target.Range, "only identifiers can be assigned to")
			}
		}
		if reduction != "=" && len(list.Children) != 1 {
			return nil, errorAt(op.Range, "augmented assignment takes a single target")
		}
		rhs, err := p.parseExp()
		if err != nil {
			return nil, err
		}
		if _, err := p.lex.Expect(TokNewline); err != nil {
			return nil, err
		}
		assign := newTree(TreeAssign, spanFrom(list.Range, rhs.Range), list, rhs)
		assign.Name = reduction
		return assign, nil
	}

	if len(list.Children) != 1 {
		return nil, errorAt(list.Range, "an expression statement has a single expression")
	}
	if _, err := p.lex.Expect(TokNewline); err != nil {
		return nil, err
	}
	return newTree(TreeExprStmt, list.Range, list.child(0)), nil
}

// parseExpList parses comma-separated expressions without consuming
// the terminator.
func (p *Parser) parseExpList(terminator TokenKind) (*Tree, error) {
	start := p.lex.Cur().Range
	var elems []*Tree
	if p.lex.Cur().Kind != terminator {
		for {
			e, err := p.parseExp()
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
			if !p.lex.NextIf(TokComma) {
				break
			}
		}
	}
	end := start
	if len(elems) > 0 {
		end = elems[len(elems)-1].Range
	}
	return newTree(TreeList, spanFrom(start, end), elems...), nil
}

var binaryOps = map[TokenKind]struct {
	prec int
	kind TreeKind
}{
	TokIf:    {1, TreeIfExpr},
	TokLT:    {2, TreeLT},
	TokGT:    {2, TreeGT},
	TokLE:    {2, TreeLE},
	TokGE:    {2, TreeGE},
	TokEQ:    {2, TreeEQ},
	TokNE:    {2, TreeNE},
	TokPlus:  {3, TreeAdd},
	TokMinus: {3, TreeSub},
	TokStar:  {4, TreeMul},
	TokSlash: {4, TreeDiv},
}

const unaryMinusPrec = 5

// ParseExp parses a single expression, primarily for tests and the
// keyword-attribute grammar.
func (p *Parser) ParseExp() (*Tree, error) { return p.parseExp() }

func (p *Parser) parseExp() (*Tree, error) { return p.parseExpPrec(0) }

func (p *Parser) parseExpPrec(minPrec int) (*Tree, error) {
	prefix, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := binaryOps[p.lex.Cur().Kind]
		if !ok || op.prec <= minPrec {
			return prefix, nil
		}
		tok := p.lex.Next()
		if tok.Kind == TokIf {
			// ternary: prefix is the true value, `if` is right
			// associative
			cond, err := p.parseExp()
			if err != nil {
				return nil, err
			}
			if _, err := p.lex.Expect(TokElse); err != nil {
				return nil, err
			}
			falseExpr, err := p.parseExpPrec(op.prec - 1)
			if err != nil {
				return nil, err
			}
			prefix = newTree(TreeIfExpr, spanFrom(prefix.Range, falseExpr.Range), cond, prefix, falseExpr)
			continue
		}
		rhs, err := p.parseExpPrec(op.prec)
		if err != nil {
			return nil, err
		}
		prefix = newTree(op.kind, spanFrom(prefix.Range, rhs.Range), prefix, rhs)
	}
}

func (p *Parser) parseUnary() (*Tree, error) {
	if p.lex.Cur().Kind == TokMinus {
		minus := p.lex.Next()
		// a minus directly before a literal folds into a negative
		// constant instead of a neg node
		if p.lex.Cur().Kind == TokNumber {
			c, err := p.parseConst()
			if err != nil {
				return nil, err
			}
			c.Num = -c.Num
			c.Range = spanFrom(minus.Range, c.Range)
			return p.parsePostfix(c)
		}
		operand, err := p.parseExpPrec(unaryMinusPrec)
		if err != nil {
			return nil, err
		}
		return newTree(TreeNeg, spanFrom(minus.Range, operand.Range), operand), nil
	}
	base, err := p.parseBase()
	if err != nil {
		return nil, err
	}
	return p.parsePostfix(base)
}

func (p *Parser) parseBase() (*Tree, error) {
	switch p.lex.Cur().Kind {
	case TokNumber:
		return p.parseConst()
	case TokTrue:
		t := p.lex.Next()
		return newConst(t.Range, 1, "b"), nil
	case TokFalse:
		t := p.lex.Next()
		return newConst(t.Range, 0, "b"), nil
	case TokIdent:
		return p.parseIdent()
	case TokLParen:
		p.lex.Next()
		e, err := p.parseExp()
		if err != nil {
			return nil, err
		}
		if _, err := p.lex.Expect(TokRParen); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, errorAt(p.lex.Cur().Range, "expected an expression but found %s", p.lex.Cur().Kind)
	}
}

// parseConst handles the literal type suffixes: an adjacent `f` marks
// a 32-bit float, an adjacent `LL` a 64-bit integer. Without a suffix
// the presence of a decimal point or exponent decides.
func (p *Parser) parseConst() (*Tree, error) {
	num, err := p.lex.Expect(TokNumber)
	if err != nil {
		return nil, err
	}
	value := num.Double()
	suffix := "LL"
	if strings.ContainsAny(num.Text, ".eE") {
		suffix = "f"
	}
	end := num.Range
	if next := p.lex.Cur(); next.Kind == TokIdent && next.Range.Start == num.Range.End {
		switch next.Text {
		case "f", "LL":
			suffix = next.Text
			end = next.Range
			p.lex.Next()
		default:
			return nil, errorAt(next.Range, "invalid numeric suffix %q", next.Text)
		}
	}
	if suffix == "LL" && value != math.Trunc(value) {
		return nil, errorAt(num.Range, "integer literal has a fractional part")
	}
	return newConst(spanFrom(num.Range, end), value, suffix), nil
}

func (p *Parser) parsePostfix(prefix *Tree) (*Tree, error) {
	for {
		switch p.lex.Cur().Kind {
		case TokDot:
			p.lex.Next()
			field, err := p.parseIdent()
			if err != nil {
				return nil, err
			}
			prefix = newTree(TreeSelect, spanFrom(prefix.Range, field.Range), prefix, field)
		case TokLParen:
			apply, err := p.parseApply(prefix)
			if err != nil {
				return nil, err
			}
			prefix = apply
		case TokLBracket:
			sub, err := p.parseSubscript(prefix)
			if err != nil {
				return nil, err
			}
			prefix = sub
		default:
			return prefix, nil
		}
	}
}

// parseApply parses call arguments: positional inputs first, then
// keyword attributes. Once a keyword appears, positional arguments are
// no longer accepted.
func (p *Parser) parseApply(callee *Tree) (*Tree, error) {
	p.lex.Next() // '('
	var inputs, attrs []*Tree
	if p.lex.Cur().Kind != TokRParen {
		for {
			if p.lex.Cur().Kind == TokIdent && p.lex.Lookahead().Kind == TokAssign {
				name, err := p.parseIdent()
				if err != nil {
					return nil, err
				}
				p.lex.Next() // '='
				value, err := p.parseAttributeValue()
				if err != nil {
					return nil, err
				}
				attrs = append(attrs, newTree(TreeAttribute, spanFrom(name.Range, value.Range), name, value))
			} else {
				if len(attrs) > 0 {
					return nil, errorAt(p.lex.Cur().Range, "positional argument follows keyword argument")
				}
				input, err := p.parseExp()
				if err != nil {
					return nil, err
				}
				inputs = append(inputs, input)
			}
			if !p.lex.NextIf(TokComma) {
				break
			}
		}
	}
	end, err := p.lex.Expect(TokRParen)
	if err != nil {
		return nil, err
	}
	r := spanFrom(callee.Range, end.Range)
	return newTree(TreeApply, r,
		callee,
		newTree(TreeList, r, inputs...),
		newTree(TreeList, r, attrs...)), nil
}

// parseAttributeValue accepts a constant or a bracketed list of
// constants; attribute values are compile-time data, not graph values.
func (p *Parser) parseAttributeValue() (*Tree, error) {
	if p.lex.Cur().Kind == TokLBracket {
		start := p.lex.Next()
		elems, err := p.parseList(TokRBracket, p.parseAttributeConst)
		if err != nil {
			return nil, err
		}
		elems.Range = spanFrom(start.Range, elems.Range)
		return elems, nil
	}
	return p.parseAttributeConst()
}

func (p *Parser) parseAttributeConst() (*Tree, error) {
	if p.lex.Cur().Kind == TokMinus && p.lex.Lookahead().Kind == TokNumber {
		minus := p.lex.Next()
		c, err := p.parseConst()
		if err != nil {
			return nil, err
		}
		c.Num = -c.Num
		c.Range = spanFrom(minus.Range, c.Range)
		return c, nil
	}
	switch p.lex.Cur().Kind {
	case TokTrue, TokFalse, TokNumber:
		return p.parseBase()
	}
	return nil, errorAt(p.lex.Cur().Range, "attribute values must be constants or lists of constants")
}

// parseSubscript distinguishes `x[i]` (gather) from `x[a:b]`, `x[a:]`,
// `x[:b]` and `x[:]` (slice).
func (p *Parser) parseSubscript(value *Tree) (*Tree, error) {
	open := p.lex.Next() // '['
	if p.lex.Cur().Kind == TokRBracket {
		return nil, errorAt(spanFrom(open.Range, p.lex.Cur().Range), "expected an index")
	}
	var start *Tree
	if p.lex.Cur().Kind != TokColon {
		e, err := p.parseExp()
		if err != nil {
			return nil, err
		}
		start = e
	}
	if !p.lex.NextIf(TokColon) {
		end, err := p.lex.Expect(TokRBracket)
		if err != nil {
			return nil, err
		}
		return newTree(TreeGather, spanFrom(value.Range, end.Range), value, start), nil
	}
	var stop *Tree
	if p.lex.Cur().Kind != TokRBracket {
		e, err := p.parseExp()
		if err != nil {
			return nil, err
		}
		stop = e
	}
	end, err := p.lex.Expect(TokRBracket)
	if err != nil {
		return nil, err
	}
	r := spanFrom(value.Range, end.Range)
	return newTree(TreeSlice, r, value, option(r, start), option(r, stop)), nil
}

func option(r SourceRange, t *Tree) *Tree {
	if t == nil {
		return newTree(TreeOption, r)
	}
	return newTree(TreeOption, t.Range, t)
}

func spanFrom(start, end SourceRange) SourceRange {
	r := SourceRange{Source: start.Source, Start: start.Start, End: end.End}
	if r.End < r.Start {
		r.End = r.Start
	}
	return r
}
