package compiler

import (
	"testing"
)

func TestLexerBasicTokens(t *testing.T) {
	input := ".limit stack 2 ; trailing comment\n  iload_0\n"
	expected := []struct {
		typ TokenType
		lit string
	}{
		{TokenWord, ".limit"},
		{TokenWord, "stack"},
		{TokenWord, "2"},
		{TokenEOL, ""},
		{TokenWord, "iload_0"},
		{TokenEOL, ""},
		{TokenEOF, ""},
	}

	l := NewLexer(input)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != exp.typ {
			t.Errorf("token[%d] type = %v, want %v", i, tok.Type, exp.typ)
		}
		if tok.Literal != exp.lit {
			t.Errorf("token[%d] literal = %q, want %q", i, tok.Literal, exp.lit)
		}
	}
}

func TestLexerSemicolonInsideWord(t *testing.T) {
	l := NewLexer("getstatic java/lang/System/out Ljava/io/PrintStream; ; comment")
	var lits []string
	for tok := l.NextToken(); tok.Type != TokenEOF; tok = l.NextToken() {
		lits = append(lits, tok.Literal)
	}
	want := []string{"getstatic", "java/lang/System/out", "Ljava/io/PrintStream;"}
	if len(lits) != len(want) {
		t.Fatalf("tokens = %q, want %q", lits, want)
	}
	for i := range want {
		if lits[i] != want[i] {
			t.Errorf("token[%d] = %q, want %q", i, lits[i], want[i])
		}
	}
}

func TestLexerStrings(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
		want  string
	}{
		{`"hello"`, TokenString, "hello"},
		{`"a\tb\n"`, TokenString, "a\tb\n"},
		{`"say \"hi\""`, TokenString, `say "hi"`},
		{`"\u0041BC"`, TokenString, "ABC"},
		{`"semi ; colon"`, TokenString, "semi ; colon"},
		{`"open`, TokenError, "unterminated string"},
		{`"bad \q"`, TokenError, `bad escape \q in string`},
		{`'odd name'`, TokenQuoted, "odd name"},
		{`'has"quote'`, TokenQuoted, `has"quote`},
		{`'open`, TokenError, "unterminated quoted name"},
	}

	for _, tc := range tests {
		tok := NewLexer(tc.input).NextToken()
		if tok.Type != tc.typ {
			t.Errorf("Lexer(%q): type = %v, want %v", tc.input, tok.Type, tc.typ)
		}
		if tok.Literal != tc.want {
			t.Errorf("Lexer(%q): literal = %q, want %q", tc.input, tok.Literal, tc.want)
		}
	}
}

func TestLexerPositions(t *testing.T) {
	l := NewLexer("a\n  b c")
	a := l.NextToken()
	l.NextToken() // EOL
	b := l.NextToken()
	c := l.NextToken()
	if a.Pos.Line != 1 || a.Pos.Column != 1 {
		t.Errorf("a at %s", a.Pos)
	}
	if b.Pos.Line != 2 || b.Pos.Column != 3 {
		t.Errorf("b at %s", b.Pos)
	}
	if c.Pos.Line != 2 || c.Pos.Column != 5 {
		t.Errorf("c at %s", c.Pos)
	}
}

func TestLexerLines(t *testing.T) {
	src := `
; header comment
.method public static f()V

Loop: iinc 0 1
  Done:
'a b': goto Loop
.end method
`
	lines := Tokenize(src)
	want := []struct {
		num     int
		keyword string
		words   int
	}{
		{3, ".method", 3},
		{5, "Loop:", 0},
		{5, "iinc", 2},
		{6, "Done:", 0},
		{7, "a b:", 0},
		{7, "goto", 1},
		{8, ".end", 1},
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %+v", len(lines), len(want), lines)
	}
	for i, w := range want {
		ln := lines[i]
		if ln.Num != w.num || ln.Keyword != w.keyword || len(ln.Tokens) != w.words {
			t.Errorf("line[%d] = {%d %q %d tokens}, want {%d %q %d}",
				i, ln.Num, ln.Keyword, len(ln.Tokens), w.num, w.keyword, w.words)
		}
	}
	if !lines[1].IsLabel() || lines[1].LabelName() != "Loop" {
		t.Errorf("Loop: not recognised as a label")
	}
	if !lines[4].IsLabel() || lines[4].LabelName() != "a b" {
		t.Errorf("quoted label = %q", lines[4].Keyword)
	}
	if lines[0].IsLabel() {
		t.Error(".method is not a label")
	}
}

func TestLexerNulIsNotEndOfInput(t *testing.T) {
	l := NewLexer("nop\x00 iconst_0\nreturn")
	want := []TokenType{TokenWord, TokenError, TokenWord, TokenEOL, TokenWord, TokenEOF}
	for i, typ := range want {
		if tok := l.NextToken(); tok.Type != typ {
			t.Fatalf("token[%d] = %v %q, want %v", i, tok.Type, tok.Literal, typ)
		}
	}

	res, _ := Assemble("N.j", ".class N\n.super java/lang/Object\n.method static f()V\n  nop\x00\n  return\n.end method\n", Options{})
	if res.OK() {
		t.Fatal("NUL in source should fail the unit")
	}
	diags := res.Log.Diagnostics()
	if diags[0].Pos.Line != 4 || diags[0].Message != "NUL character in source" {
		t.Errorf("diagnostic = %v", diags[0])
	}
}
