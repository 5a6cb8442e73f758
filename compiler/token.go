package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the assembler lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenError

	TokenWord   // iload, .limit, java/lang/Object, L1:, -5
	TokenString // "hello\n", escapes decoded
	TokenQuoted // 'name with spaces', taken literally
	TokenEOL
)

var tokenNames = map[TokenType]string{
	TokenEOF:    "EOF",
	TokenError:  "ERROR",
	TokenWord:   "WORD",
	TokenString: "STRING",
	TokenQuoted: "QUOTED",
	TokenEOL:    "EOL",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Position is a location in the source.
type Position struct {
	Offset int
	Line   int
	Column int
}

func (p Position) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Column) }

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // decoded text
	Pos     Position // start position
}

func (t Token) String() string {
	switch t.Type {
	case TokenEOF, TokenEOL:
		return t.Type.String()
	case TokenError:
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Line is one logical source line: a directive or mnemonic keyword and its
// operand tokens. A label definition followed by an instruction on the same
// line yields two Lines with the same number.
type Line struct {
	Num     int
	Keyword string
	Tokens  []Token
}

// IsLabel reports whether the line defines a label.
func (l Line) IsLabel() bool {
	n := len(l.Keyword)
	return n > 1 && l.Keyword[n-1] == ':' && l.Keyword[0] != '.'
}

// LabelName returns the label a label line defines.
func (l Line) LabelName() string { return l.Keyword[:len(l.Keyword)-1] }

// Words returns the literal text of the operand tokens.
func (l Line) Words() []string {
	out := make([]string, len(l.Tokens))
	for i, t := range l.Tokens {
		out[i] = t.Literal
	}
	return out
}

// isSeparator reports whether r ends a word.
func isSeparator(r rune) bool {
	switch r {
	case ' ', '\t', '\r', '\n', '"', 0:
		return true
	}
	return false
}
