package script

import (
	"fmt"
	"strconv"

	"github.com/weft-ml/weft/internal/ir"
)

// SourceRange locates a construct in the original source text. It is
// the same structure the IR uses for node provenance, so compiled
// nodes carry their ranges without translation.
type SourceRange = ir.SourceLocation

// TokenKind enumerates the lexical vocabulary.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokIdent
	TokNumber
	TokNewline
	TokIndent
	TokDedent

	// keywords
	TokDef
	TokIf
	TokElse
	TokWhile
	TokReturn
	TokGlobal
	TokTrue
	TokFalse

	// punctuation
	TokLParen
	TokRParen
	TokLBracket
	TokRBracket
	TokColon
	TokComma
	TokDot
	TokAssign

	// operators
	TokPlus
	TokMinus
	TokStar
	TokSlash
	TokLT
	TokGT
	TokLE
	TokGE
	TokEQ
	TokNE

	// augmented assignment
	TokPlusEq
	TokMinusEq
	TokStarEq
	TokSlashEq
)

var tokenNames = map[TokenKind]string{
	TokEOF:      "<eof>",
	TokIdent:    "identifier",
	TokNumber:   "number",
	TokNewline:  "newline",
	TokIndent:   "indent",
	TokDedent:   "dedent",
	TokDef:      "def",
	TokIf:       "if",
	TokElse:     "else",
	TokWhile:    "while",
	TokReturn:   "return",
	TokGlobal:   "global",
	TokTrue:     "True",
	TokFalse:    "False",
	TokLParen:   "'('",
	TokRParen:   "')'",
	TokLBracket: "'['",
	TokRBracket: "']'",
	TokColon:    "':'",
	TokComma:    "','",
	TokDot:      "'.'",
	TokAssign:   "'='",
	TokPlus:     "'+'",
	TokMinus:    "'-'",
	TokStar:     "'*'",
	TokSlash:    "'/'",
	TokLT:       "'<'",
	TokGT:       "'>'",
	TokLE:       "'<='",
	TokGE:       "'>='",
	TokEQ:       "'=='",
	TokNE:       "'!='",
	TokPlusEq:   "'+='",
	TokMinusEq:  "'-='",
	TokStarEq:   "'*='",
	TokSlashEq:  "'/='",
}

// String returns the display name used in error messages.
func (k TokenKind) String() string {
	if s, ok := tokenNames[k]; ok {
		return s
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

var keywords = map[string]TokenKind{
	"def":    TokDef,
	"if":     TokIf,
	"else":   TokElse,
	"while":  TokWhile,
	"return": TokReturn,
	"global": TokGlobal,
	"True":   TokTrue,
	"False":  TokFalse,
}

// Token is one lexeme with its source range.
type Token struct {
	Kind  TokenKind
	Text  string
	Range SourceRange
}

// Double parses the numeric text of a TokNumber token.
func (t Token) Double() float64 {
	v, err := strconv.ParseFloat(t.Text, 64)
	if err != nil {
		panic(fmt.Sprintf("script: token %q lexed as number but does not parse: %v", t.Text, err))
	}
	return v
}
