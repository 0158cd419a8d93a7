package script

import (
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Lexer tokenizes an indentation-sensitive source text. The whole
// input is tokenized eagerly; the parser walks the resulting slice.
//
// Indentation is significant only at the start of a logical line and
// only outside bracket groups. Entering a deeper level emits TokIndent,
// leaving one emits TokDedent, and every non-blank logical line ends
// with TokNewline. All open levels are closed with TokDedent before
// TokEOF, even when the text does not end in a newline.
type Lexer struct {
	source string
	tokens []Token
	pos    int
}

// NewLexer normalizes the source to NFC and tokenizes it.
func NewLexer(source string) (*Lexer, error) {
	l := &Lexer{source: norm.NFC.String(source)}
	if err := l.tokenize(); err != nil {
		return nil, err
	}
	return l, nil
}

// Source returns the normalized source text.
func (l *Lexer) Source() string { return l.source }

// Cur returns the current token without consuming it.
func (l *Lexer) Cur() Token { return l.tokens[l.pos] }

// Next consumes and returns the current token.
func (l *Lexer) Next() Token {
	t := l.tokens[l.pos]
	if t.Kind != TokEOF {
		l.pos++
	}
	return t
}

// Lookahead returns the token after the current one.
func (l *Lexer) Lookahead() Token {
	if l.pos+1 < len(l.tokens) {
		return l.tokens[l.pos+1]
	}
	return l.tokens[len(l.tokens)-1]
}

// NextIf consumes the current token when it has the given kind.
func (l *Lexer) NextIf(kind TokenKind) bool {
	if l.Cur().Kind == kind {
		l.Next()
		return true
	}
	return false
}

// Expect consumes a token of the given kind or fails with a positioned
// error.
func (l *Lexer) Expect(kind TokenKind) (Token, error) {
	if l.Cur().Kind != kind {
		return Token{}, errorAt(l.Cur().Range, "expected %s but found %s", kind, l.Cur().Kind)
	}
	return l.Next(), nil
}

func (l *Lexer) rangeAt(start, end int) SourceRange {
	return SourceRange{Source: l.source, Start: start, End: end}
}

func (l *Lexer) emit(kind TokenKind, start, end int) {
	l.tokens = append(l.tokens, Token{Kind: kind, Text: l.source[start:end], Range: l.rangeAt(start, end)})
}

// multi-character operators, longest first so '<=' wins over '<'.
var operators = []struct {
	text string
	kind TokenKind
}{
	{"+=", TokPlusEq},
	{"-=", TokMinusEq},
	{"*=", TokStarEq},
	{"/=", TokSlashEq},
	{"<=", TokLE},
	{">=", TokGE},
	{"==", TokEQ},
	{"!=", TokNE},
	{"(", TokLParen},
	{")", TokRParen},
	{"[", TokLBracket},
	{"]", TokRBracket},
	{":", TokColon},
	{",", TokComma},
	{".", TokDot},
	{"=", TokAssign},
	{"+", TokPlus},
	{"-", TokMinus},
	{"*", TokStar},
	{"/", TokSlash},
	{"<", TokLT},
	{">", TokGT},
}

func (l *Lexer) tokenize() error {
	src := l.source
	indents := []int{0}
	depth := 0      // open bracket groups suppress layout
	atLineStart := true
	i := 0

	for i < len(src) {
		if atLineStart && depth == 0 {
			lineStart := i
			indent := 0
			for i < len(src) && (src[i] == ' ' || src[i] == '\t') {
				indent++
				i++
			}
			// blank and comment-only lines do not affect layout
			if i < len(src) && src[i] == '\n' {
				i++
				continue
			}
			if i < len(src) && src[i] == '#' {
				for i < len(src) && src[i] != '\n' {
					i++
				}
				continue
			}
			if i >= len(src) {
				break
			}
			if indent > indents[len(indents)-1] {
				indents = append(indents, indent)
				l.emit(TokIndent, lineStart, i)
			}
			for indent < indents[len(indents)-1] {
				indents = indents[:len(indents)-1]
				l.emit(TokDedent, lineStart, i)
			}
			if indent != indents[len(indents)-1] {
				return errorAt(l.rangeAt(lineStart, i), "unindent does not match any outer indentation level")
			}
			atLineStart = false
		}

		c := src[i]
		switch {
		case c == '\n':
			if depth == 0 {
				l.emit(TokNewline, i, i+1)
				atLineStart = true
			}
			i++
		case c == ' ' || c == '\t':
			i++
		case c == '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c >= '0' && c <= '9':
			start := i
			for i < len(src) && src[i] >= '0' && src[i] <= '9' {
				i++
			}
			if i < len(src) && src[i] == '.' {
				i++
				for i < len(src) && src[i] >= '0' && src[i] <= '9' {
					i++
				}
			}
			if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
				j := i + 1
				if j < len(src) && (src[j] == '+' || src[j] == '-') {
					j++
				}
				if j < len(src) && src[j] >= '0' && src[j] <= '9' {
					for j < len(src) && src[j] >= '0' && src[j] <= '9' {
						j++
					}
					i = j
				}
			}
			l.emit(TokNumber, start, i)
		default:
			r, size := utf8.DecodeRuneInString(src[i:])
			if isIdentStart(r) {
				start := i
				i += size
				for i < len(src) {
					r, size = utf8.DecodeRuneInString(src[i:])
					if !isIdentPart(r) {
						break
					}
					i += size
				}
				text := src[start:i]
				kind := TokIdent
				if k, ok := keywords[text]; ok {
					kind = k
				}
				l.emit(kind, start, i)
				break
			}
			matched := false
			for _, op := range operators {
				if len(src)-i >= len(op.text) && src[i:i+len(op.text)] == op.text {
					l.emit(op.kind, i, i+len(op.text))
					switch op.kind {
					case TokLParen, TokLBracket:
						depth++
					case TokRParen, TokRBracket:
						if depth > 0 {
							depth--
						}
					}
					i += len(op.text)
					matched = true
					break
				}
			}
			if !matched {
				return errorAt(l.rangeAt(i, i+size), "unexpected character %q", r)
			}
		}
	}

	// close the last logical line, then every open level
	end := len(src)
	if n := len(l.tokens); n > 0 {
		last := l.tokens[n-1].Kind
		if last != TokNewline && last != TokDedent {
			l.emit(TokNewline, end, end)
		}
	}
	for len(indents) > 1 {
		indents = indents[:len(indents)-1]
		l.emit(TokDedent, end, end)
	}
	l.tokens = append(l.tokens, Token{Kind: TokEOF, Range: l.rangeAt(end, end)})
	return nil
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
