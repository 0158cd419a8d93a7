package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(t *testing.T, source string) []TokenKind {
	t.Helper()
	lex, err := NewLexer(source)
	require.NoError(t, err)
	var out []TokenKind
	for {
		tok := lex.Next()
		out = append(out, tok.Kind)
		if tok.Kind == TokEOF {
			return out
		}
	}
}

func TestLexerLayout(t *testing.T) {
	got := kinds(t, "def f(x):\n    return x\n")
	want := []TokenKind{
		TokDef, TokIdent, TokLParen, TokIdent, TokRParen, TokColon, TokNewline,
		TokIndent, TokReturn, TokIdent, TokNewline, TokDedent,
		TokEOF,
	}
	assert.Equal(t, want, got)
}

func TestDedentBeforeEOFWithoutTrailingNewline(t *testing.T) {
	got := kinds(t, "def f(x):\n    return x")
	want := []TokenKind{
		TokDef, TokIdent, TokLParen, TokIdent, TokRParen, TokColon, TokNewline,
		TokIndent, TokReturn, TokIdent, TokNewline, TokDedent,
		TokEOF,
	}
	assert.Equal(t, want, got)
}

func TestNestedDedentsAllClose(t *testing.T) {
	got := kinds(t, "if a:\n  if b:\n    c\n")
	want := []TokenKind{
		TokIf, TokIdent, TokColon, TokNewline,
		TokIndent, TokIf, TokIdent, TokColon, TokNewline,
		TokIndent, TokIdent, TokNewline,
		TokDedent, TokDedent,
		TokEOF,
	}
	assert.Equal(t, want, got)
}

func TestBlankAndCommentLinesDoNotAffectLayout(t *testing.T) {
	got := kinds(t, "if a:\n\n  # comment\n  b\n")
	want := []TokenKind{
		TokIf, TokIdent, TokColon, TokNewline,
		TokIndent, TokIdent, TokNewline, TokDedent,
		TokEOF,
	}
	assert.Equal(t, want, got)
}

func TestBracketsSuppressLayout(t *testing.T) {
	got := kinds(t, "f(a,\n   b)\n")
	want := []TokenKind{
		TokIdent, TokLParen, TokIdent, TokComma, TokIdent, TokRParen, TokNewline,
		TokEOF,
	}
	assert.Equal(t, want, got)
}

func TestMultiCharOperators(t *testing.T) {
	got := kinds(t, "a += b <= c == d\n")
	want := []TokenKind{
		TokIdent, TokPlusEq, TokIdent, TokLE, TokIdent, TokEQ, TokIdent, TokNewline,
		TokEOF,
	}
	assert.Equal(t, want, got)
}

func TestMismatchedDedentIsAnError(t *testing.T) {
	_, err := NewLexer("if a:\n    b\n  c\n")
	require.Error(t, err)
	var report *ErrorReport
	require.ErrorAs(t, err, &report)
	assert.Contains(t, report.Message, "unindent")
}

func TestUnexpectedCharacter(t *testing.T) {
	_, err := NewLexer("a $ b\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected character")
}

func TestTokenRangesIndexNormalizedSource(t *testing.T) {
	lex, err := NewLexer("x + y\n")
	require.NoError(t, err)
	tok := lex.Next()
	assert.Equal(t, "x", lex.Source()[tok.Range.Start:tok.Range.End])
	lex.Next() // +
	tok = lex.Next()
	assert.Equal(t, "y", lex.Source()[tok.Range.Start:tok.Range.End])
}
