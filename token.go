package pongo3

import "fmt"

// TokenType classifies a single lexical element produced by the lexer.
type TokenType int

const (
	// TokenError indicates a lexical error; Val carries the message.
	TokenError TokenType = iota
	// TokenText is raw template text outside of any delimiter.
	TokenText
	// TokenKeyword is a reserved word (in, and, or, not, is, true, false, none, recursive, ...).
	TokenKeyword
	// TokenIdentifier is a variable, filter, test, tag or attribute name.
	TokenIdentifier
	// TokenString is a quoted string literal.
	TokenString
	// TokenInt is an integer literal.
	TokenInt
	// TokenFloat is a floating point literal.
	TokenFloat
	// TokenSymbol is an operator or punctuation symbol.
	TokenSymbol
	// TokenEOF marks end of input.
	TokenEOF
)

func (t TokenType) String() string {
	switch t {
	case TokenError:
		return "Error"
	case TokenText:
		return "Text"
	case TokenKeyword:
		return "Keyword"
	case TokenIdentifier:
		return "Identifier"
	case TokenString:
		return "String"
	case TokenInt:
		return "Int"
	case TokenFloat:
		return "Float"
	case TokenSymbol:
		return "Symbol"
	case TokenEOF:
		return "EOF"
	default:
		return "Unknown"
	}
}

// Span is a source position range attached to tokens and AST nodes, used for
// diagnostics and debug-mode error snippets.
type Span struct {
	StartLine, StartCol, StartOffset int
	EndLine, EndCol, EndOffset       int
}

// Join returns the smallest span covering both a and b.
func (a Span) Join(b Span) Span {
	out := a
	if b.EndOffset > out.EndOffset {
		out.EndLine, out.EndCol, out.EndOffset = b.EndLine, b.EndCol, b.EndOffset
	}
	return out
}

// Token is one lexical element with its source span.
type Token struct {
	Typ   TokenType
	Val   string
	Span  Span
	Trim  bool // delimiter carried a '-' whitespace-trim marker
	Plus  bool // delimiter carried a '+' whitespace-trim-suppress marker
}

func (t *Token) String() string {
	val := t.Val
	if len(val) > 60 {
		val = val[:57] + "..."
	}
	return fmt.Sprintf("<Token %s %q line=%d col=%d>", t.Typ, val, t.Span.StartLine, t.Span.StartCol)
}

var keywordSet = map[string]struct{}{
	"in": {}, "and": {}, "or": {}, "not": {}, "is": {}, "if": {}, "else": {},
	"true": {}, "True": {}, "false": {}, "False": {}, "none": {}, "None": {},
	"recursive": {}, "as": {}, "import": {}, "with": {}, "without": {}, "context": {},
	"ignore": {}, "missing": {},
}

func isKeyword(s string) bool {
	_, ok := keywordSet[s]
	return ok
}
