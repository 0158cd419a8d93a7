package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseExpr(t *testing.T, source string) *Tree {
	t.Helper()
	p, err := NewParser(source + "\n")
	require.NoError(t, err)
	e, err := p.ParseExp()
	require.NoError(t, err)
	return e
}

func TestExpressionShapes(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"a + b * c", "(+ a (* b c))"},
		{"a * b + c", "(+ (* a b) c)"},
		{"a - b - c", "(- (- a b) c)"},
		{"(a + b) * c", "(* (+ a b) c)"},
		{"a < b + c", "(< a (+ b c))"},
		{"-a + b", "(+ (neg a) b)"},
		{"-a.sigmoid()", "(neg (apply (select a sigmoid) (list) (list)))"},
		{"a.b.c", "(select (select a b) c)"},
		{"f(x, y)", "(apply f (list x y) (list))"},
		{"f(x, alpha=2f)", "(apply f (list x) (list (attribute alpha 2f)))"},
		{"f(dims=[1, 2])", "(apply f (list) (list (attribute dims (list 1LL 2LL))))"},
		{"x[i]", "(gather x i)"},
		{"x[1:]", "(slice x (option 1LL) (option))"},
		{"x[:2]", "(slice x (option) (option 2LL))"},
		{"x[:]", "(slice x (option) (option))"},
		{"x[a:b]", "(slice x (option a) (option b))"},
		{"x[i][j]", "(gather (gather x i) j)"},
		{"a if c else b", "(if-expr c a b)"},
		{"a if c else b if d else e", "(if-expr c a (if-expr d b e))"},
		{"a + b if c else d", "(if-expr c (+ a b) d)"},
		{"True if a < b else False", "(if-expr (< a b) 1b 0b)"},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			assert.Equal(t, tt.want, parseExpr(t, tt.source).String())
		})
	}
}

func TestConstSuffixes(t *testing.T) {
	tests := []struct {
		source string
		value  float64
		suffix string
	}{
		{"3", 3, "LL"},
		{"3f", 3, "f"},
		{"3LL", 3, "LL"},
		{"2.5", 2.5, "f"},
		{"1e3", 1000, "f"},
		{"-4", -4, "LL"},
		{"-2.5", -2.5, "f"},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			c := AsConst(parseExpr(t, tt.source))
			assert.Equal(t, tt.value, c.Value())
			assert.Equal(t, tt.suffix, c.Suffix())
		})
	}
}

func TestIntegerLiteralWithFractionRejected(t *testing.T) {
	p, err := NewParser("2.5LL\n")
	require.NoError(t, err)
	_, err = p.ParseExp()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fractional part")
}

func TestSuffixMustBeAdjacent(t *testing.T) {
	// `3 f` is a number followed by an identifier, not a suffixed
	// literal
	p, err := NewParser("3 f\n")
	require.NoError(t, err)
	e, err := p.ParseExp()
	require.NoError(t, err)
	assert.Equal(t, "LL", AsConst(e).Suffix())
}

func TestParseFunction(t *testing.T) {
	p, err := NewParser("def f(x, y):\n    z = x + y\n    return z\n")
	require.NoError(t, err)
	defs, err := p.Parse()
	require.NoError(t, err)
	require.Len(t, defs, 1)

	def := defs[0]
	assert.Equal(t, "f", def.Name().Name())
	params := def.Params()
	require.Len(t, params, 2)
	assert.Equal(t, "x", params[0].Name().Name())
	assert.True(t, params[0].TypeIsInferred())

	body := def.Body()
	require.Len(t, body, 2)
	assert.Equal(t, "(assign (list z) (+ x y))", body[0].String())
	assert.Equal(t, "(return (list z))", body[1].String())
}

func TestParseAnnotatedParam(t *testing.T) {
	p, err := NewParser("def f(x : Tensor):\n    return x\n")
	require.NoError(t, err)
	defs, err := p.Parse()
	require.NoError(t, err)
	assert.False(t, defs[0].Params()[0].TypeIsInferred())
}

func TestParseStatements(t *testing.T) {
	source := "def f(x):\n" +
		"    global w\n" +
		"    x += 1\n" +
		"    a, b = split(x)\n" +
		"    if x < w:\n" +
		"        y = x\n" +
		"    else:\n" +
		"        y = w\n" +
		"    while y < w:\n" +
		"        y = y + y\n" +
		"    return y\n"
	p, err := NewParser(source)
	require.NoError(t, err)
	defs, err := p.Parse()
	require.NoError(t, err)
	body := defs[0].Body()
	require.Len(t, body, 6)

	assert.Equal(t, TreeGlobal, body[0].Kind)

	aug := AsAssign(body[1])
	assert.Equal(t, "+", aug.Reduction())

	multi := AsAssign(body[2])
	assert.Equal(t, "=", multi.Reduction())
	require.Len(t, multi.Targets(), 2)

	cond := AsIf(body[3])
	assert.Equal(t, "(< x w)", cond.Cond().String())
	require.Len(t, cond.TrueBranch(), 1)
	require.Len(t, cond.FalseBranch(), 1)

	loop := AsWhile(body[4])
	require.Len(t, loop.Body(), 1)

	assert.Equal(t, TreeReturn, body[5].Kind)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		message string
	}{
		{"assign to expression", "def f(x):\n    x + 1 = 2\n    return x\n", "only identifiers"},
		{"augmented multi-target", "def f(x):\n    a, b += x\n    return x\n", "single target"},
		{"positional after keyword", "def f(x):\n    return g(a=1, x)\n", "positional argument follows"},
		{"empty subscript", "def f(x):\n    return x[]\n", "expected an index"},
		{"missing else", "def f(x):\n    return 1 if x\n", "expected else"},
		{"bad suffix", "def f(x):\n    return 3q\n", "invalid numeric suffix"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewParser(tt.source)
			require.NoError(t, err)
			_, err = p.Parse()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestErrorReportHighlightsTheLine(t *testing.T) {
	p, err := NewParser("def f(x):\n    return x +\n")
	require.NoError(t, err)
	_, err = p.Parse()
	require.Error(t, err)
	var report *ErrorReport
	require.ErrorAs(t, err, &report)
	assert.Contains(t, err.Error(), "return x +")
}
