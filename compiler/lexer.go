package compiler

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: line tokenizer for assembler source
// ---------------------------------------------------------------------------

// Lexer splits assembler source into tokens. Words run to the next blank or
// double quote; ";" at the start of a word begins a comment running to the
// end of the line. "..." is a string constant with Java escapes, '...' a
// name that may contain blanks or reserved characters.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // current line (1-based)
	col     int  // current column (1-based)
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0
		l.pos = l.readPos
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
	l.col++
}

// atEOF reports whether the whole input has been consumed. A NUL character
// inside the input is not the end.
func (l *Lexer) atEOF() bool { return l.pos >= len(l.input) }

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

func (l *Lexer) position() Position {
	return Position{Offset: l.pos, Line: l.line, Column: l.col}
}

// NextToken returns the next token. Line ends are reported as TokenEOL.
func (l *Lexer) NextToken() Token {
	l.skipBlanksAndComments()

	pos := l.position()
	if l.atEOF() {
		return Token{Type: TokenEOF, Pos: pos}
	}
	switch l.ch {
	case 0:
		l.readChar()
		return Token{Type: TokenError, Literal: "NUL character in source", Pos: pos}
	case '\n':
		l.readChar()
		return Token{Type: TokenEOL, Pos: pos}
	case '"':
		return l.readString(pos)
	case '\'':
		return l.readQuoted(pos)
	}
	return l.readWord(pos)
}

func (l *Lexer) skipBlanksAndComments() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
		l.readChar()
	}
	if l.ch == ';' {
		for l.ch != '\n' && !l.atEOF() {
			l.readChar()
		}
	}
}

func (l *Lexer) readWord(pos Position) Token {
	start := l.pos
	for !isSeparator(l.ch) {
		l.readChar()
	}
	return Token{Type: TokenWord, Literal: l.input[start:l.pos], Pos: pos}
}

// readString reads a double-quoted string constant, decoding escapes.
func (l *Lexer) readString(pos Position) Token {
	l.readChar() // consume opening "

	var sb strings.Builder
	for l.ch != '"' {
		if l.atEOF() || l.ch == '\n' {
			return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
		}
		if l.ch != '\\' {
			sb.WriteRune(l.ch)
			l.readChar()
			continue
		}

		l.readChar() // consume backslash
		switch l.ch {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case '"', '\'', '\\':
			sb.WriteRune(l.ch)
		case 'u':
			hex := l.input[l.readPos:min(l.readPos+4, len(l.input))]
			r, err := strconv.ParseUint(hex, 16, 16)
			if err != nil || len(hex) < 4 {
				return Token{Type: TokenError, Literal: "bad unicode escape in string", Pos: pos}
			}
			sb.WriteRune(rune(r))
			for i := 0; i < 4; i++ {
				l.readChar()
			}
		default:
			return Token{Type: TokenError, Literal: "bad escape \\" + string(l.ch) + " in string", Pos: pos}
		}
		l.readChar()
	}
	l.readChar() // consume closing "

	return Token{Type: TokenString, Literal: sb.String(), Pos: pos}
}

// readQuoted reads a single-quoted name. No escapes are recognised.
func (l *Lexer) readQuoted(pos Position) Token {
	l.readChar() // consume opening '

	start := l.pos
	for l.ch != '\'' {
		if l.atEOF() || l.ch == '\n' {
			return Token{Type: TokenError, Literal: "unterminated quoted name", Pos: pos}
		}
		l.readChar()
	}
	lit := l.input[start:l.pos]
	l.readChar() // consume closing '

	// a quoted label definition keeps its colon
	if l.ch == ':' && isSeparator(l.peekChar()) {
		l.readChar()
		lit += ":"
	}
	return Token{Type: TokenQuoted, Literal: lit, Pos: pos}
}

// Lines tokenizes the whole input into logical lines. Blank and
// comment-only lines are dropped.
func (l *Lexer) Lines() []Line {
	var lines []Line
	var cur []Token

	flush := func() {
		if len(cur) > 0 {
			lines = append(lines, splitLine(cur)...)
		}
		cur = nil
	}

	for {
		tok := l.NextToken()
		switch tok.Type {
		case TokenEOF:
			flush()
			return lines
		case TokenEOL:
			flush()
		default:
			cur = append(cur, tok)
		}
	}
}

// splitLine builds the Line for a token run, splitting off a leading label
// definition.
func splitLine(toks []Token) []Line {
	num := toks[0].Pos.Line
	head := Line{Num: num, Keyword: toks[0].Literal, Tokens: toks[1:]}
	if toks[0].Type == TokenError || toks[0].Type == TokenString {
		head = Line{Num: num, Tokens: toks}
	}
	if !head.IsLabel() || len(head.Tokens) == 0 {
		return []Line{head}
	}
	rest := head.Tokens
	head.Tokens = nil
	return append([]Line{head}, splitLine(rest)...)
}

// Tokenize is shorthand for NewLexer(src).Lines().
func Tokenize(src string) []Line {
	return NewLexer(src).Lines()
}
