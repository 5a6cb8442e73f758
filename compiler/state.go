package compiler

import "fmt"

// State is the position of the method-body state machine.
type State uint8

const (
	Header           State = iota // before the first label or instruction
	Code                          // instructions and labels
	CatchBlock                    // directly after .catch
	StackFrameBlock               // inside .stack ... .end stack
	ReachableIfBlock              // inside .ifreachable ... .endif
	numStates
)

var stateNames = [...]string{
	Header:           "header",
	Code:             "code",
	CatchBlock:       "catch block",
	StackFrameBlock:  "stack frame block",
	ReachableIfBlock: "reachable-if block",
}

func (s State) String() string {
	if s < numStates {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

// Directive is the kind of one method-body line.
type Directive uint8

const (
	DirLimit Directive = iota
	DirCatch
	DirTypeAnno
	DirStack
	DirFrameLocals
	DirFrameStack
	DirEndStack
	DirLine
	DirVar
	DirIfReachable
	DirEndIf
	DirLabel
	DirInstruction
	DirEndMethod
	DirUnknown
	numDirectives
)

var directiveNames = [...]string{
	DirLimit:       ".limit",
	DirCatch:       ".catch",
	DirTypeAnno:    ".typeanno",
	DirStack:       ".stack",
	DirFrameLocals: "locals",
	DirFrameStack:  "stack",
	DirEndStack:    ".end stack",
	DirLine:        ".line",
	DirVar:         ".var",
	DirIfReachable: ".ifreachable",
	DirEndIf:       ".endif",
	DirLabel:       "label",
	DirInstruction: "instruction",
	DirEndMethod:   ".end method",
	DirUnknown:     "unknown directive",
}

func (d Directive) String() string {
	if d < numDirectives {
		return directiveNames[d]
	}
	return fmt.Sprintf("Directive(%d)", d)
}

// classify maps a method-body line to its directive kind.
func classify(ln Line) Directive {
	if ln.IsLabel() {
		return DirLabel
	}
	switch ln.Keyword {
	case ".limit":
		return DirLimit
	case ".catch":
		return DirCatch
	case ".typeanno":
		return DirTypeAnno
	case ".stack":
		return DirStack
	case "locals":
		return DirFrameLocals
	case "stack":
		return DirFrameStack
	case ".line":
		return DirLine
	case ".var":
		return DirVar
	case ".ifreachable":
		return DirIfReachable
	case ".endif":
		return DirEndIf
	case ".end":
		if len(ln.Tokens) > 0 {
			switch ln.Tokens[0].Literal {
			case "stack":
				return DirEndStack
			case "method":
				return DirEndMethod
			}
		}
		return DirUnknown
	}
	if ln.Keyword == "" || ln.Keyword[0] == '.' {
		return DirUnknown
	}
	return DirInstruction
}

// action is what the state machine does with a directive in a state.
type action uint8

const (
	illegal action = iota
	accept
	leave // close the current block, then dispatch in the enclosing state
)

// transitions is the (state, directive) table. Anything not listed is
// illegal.
var transitions [numStates][numDirectives]action

func allow(s State, a action, ds ...Directive) {
	for _, d := range ds {
		transitions[s][d] = a
	}
}

func init() {
	body := []Directive{DirCatch, DirStack, DirLine, DirVar, DirIfReachable, DirLabel,
		DirInstruction, DirEndMethod}

	allow(Header, accept, body...)
	allow(Header, accept, DirLimit)
	allow(Code, accept, body...)

	allow(CatchBlock, leave, body...)
	allow(CatchBlock, leave, DirLimit)
	allow(CatchBlock, accept, DirTypeAnno)

	allow(StackFrameBlock, accept, DirFrameLocals, DirFrameStack, DirEndStack, DirEndMethod)

	allow(ReachableIfBlock, accept, DirInstruction, DirLine, DirIfReachable, DirEndIf, DirEndMethod)
}

// lookup returns the action for d in s.
func lookup(s State, d Directive) action { return transitions[s][d] }
