package server

import (
	"strings"

	"github.com/chazu/jasm/compiler"
)

// span is the token lines of one .method ... .end method block.
type span struct {
	start, end int
	lines      [][]compiler.Token
}

func (s *span) contains(line int) bool { return line >= s.start && line <= s.end }

// symbols indexes the labels of one method: where each is defined and
// every word token in the method body.
type symbols struct {
	defs  map[string]compiler.Token
	words map[string][]compiler.Token
}

// methodSymbols indexes the method enclosing line (1-based). Outside any
// method the index is empty.
func methodSymbols(text string, line int) symbols {
	syms := symbols{
		defs:  make(map[string]compiler.Token),
		words: make(map[string][]compiler.Token),
	}
	sp := methodSpan(text, line)
	if sp == nil {
		return syms
	}
	for _, toks := range sp.lines {
		for i, t := range toks {
			if t.Type != compiler.TokenWord {
				continue
			}
			if name, ok := strings.CutSuffix(t.Literal, ":"); ok && i == 0 && name != "" && !strings.HasPrefix(name, ".") {
				def := t
				def.Literal = name
				if _, dup := syms.defs[name]; !dup {
					syms.defs[name] = def
				}
				continue
			}
			if i == 0 {
				continue
			}
			syms.words[t.Literal] = append(syms.words[t.Literal], t)
		}
	}
	return syms
}

// methodSpan returns the method block containing line, or nil.
func methodSpan(text string, line int) *span {
	lx := compiler.NewLexer(text)
	var (
		cur  *span
		toks []compiler.Token
	)
	for {
		tok := lx.NextToken()
		if tok.Type != compiler.TokenEOL && tok.Type != compiler.TokenEOF {
			toks = append(toks, tok)
			continue
		}
		if len(toks) > 0 {
			switch {
			case toks[0].Literal == ".method":
				cur = &span{start: toks[0].Pos.Line, end: -1}
			case toks[0].Literal == ".end" && len(toks) > 1 && toks[1].Literal == "method":
				if cur != nil {
					cur.end = toks[0].Pos.Line
					if cur.contains(line) {
						return cur
					}
				}
				cur = nil
			case cur != nil:
				// a leading label may share its line with an instruction
				if n := len(toks[0].Literal); n > 1 && toks[0].Literal[n-1] == ':' && len(toks) > 1 {
					cur.lines = append(cur.lines, toks[:1], toks[1:])
				} else {
					cur.lines = append(cur.lines, toks)
				}
			}
		}
		toks = nil
		if tok.Type == compiler.TokenEOF {
			break
		}
	}
	if cur != nil && line >= cur.start {
		// unterminated method runs to the end of the text
		cur.end = line
		return cur
	}
	return nil
}
