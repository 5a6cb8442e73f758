package compiler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/chazu/jasm/pkg/bytecode"
	"github.com/chazu/jasm/pkg/diag"
	"github.com/chazu/jasm/pkg/frame"
	"github.com/chazu/jasm/pkg/label"
	"github.com/chazu/jasm/pkg/sim"
	"github.com/chazu/jasm/pkg/version"
)

// construct is the kind of the last thing seen in a method body, for the
// end-of-method completeness check.
type construct uint8

const (
	constNone construct = iota
	constTransfer
	constFallthrough
	constLabel
	constLine
)

// pendingFrame collects a .stack block.
type pendingFrame struct {
	stack, locals []frame.Element
	valid         bool
}

// methodAsm is the assembly state of one method body.
type methodAsm struct {
	log    *diag.Log
	cat    *bytecode.Catalog
	res    OpResolver
	v      version.Version
	name   string
	desc   bytecode.MethodType
	flags  map[string]bool
	body   *bytecode.MethodBody
	sim    *sim.Method
	states []State
	skip   []bool // one per open .ifreachable: contents are dropped

	line      int // current source line
	lineNote  int // last .line number
	last      construct
	lastLabel string
	pc        int
	frame     *pendingFrame
	catch     *label.Catch
	done      bool
}

func newMethodAsm(a *Assembler, name, desc string, mt bytecode.MethodType, flags map[string]bool) *methodAsm {
	static := flags["static"]
	return &methodAsm{
		log:    a.log,
		cat:    a.opts.Catalog,
		res:    a.opts.Resolver,
		v:      a.version,
		name:   name,
		desc:   mt,
		flags:  flags,
		body:   bytecode.NewMethodBody(a.class, name, desc, static, a.version),
		sim:    sim.NewMethod(a.log, static, mt.Params),
		states: []State{Header},
	}
}

func (m *methodAsm) state() State { return m.states[len(m.states)-1] }

func (m *methodAsm) push(s State) { m.states = append(m.states, s) }

func (m *methodAsm) pop() {
	switch m.state() {
	case ReachableIfBlock:
		m.skip = m.skip[:len(m.skip)-1]
	case CatchBlock:
		m.catch = nil
	}
	m.states = m.states[:len(m.states)-1]
}

// handle runs one line through the state table.
func (m *methodAsm) handle(ln Line) {
	m.line = ln.Num
	d := classify(ln)
	if d == DirUnknown {
		m.log.Errorf(diag.Syntax, "unknown directive %s", strings.TrimSpace(ln.Keyword+" "+strings.Join(ln.Words(), " ")))
		return
	}

	for {
		s := m.state()
		switch lookup(s, d) {
		case accept:
			m.dispatch(d, ln)
			return
		case leave:
			m.pop()
		default:
			m.log.Errorf(diag.Syntax, "%s not allowed in %s", d, s)
			return
		}
	}
}

func (m *methodAsm) dispatch(d Directive, ln Line) {
	if m.states[0] == Header && (d == DirLabel || d == DirInstruction) {
		m.states[0] = Code
	}

	switch d {
	case DirLimit:
		m.limit(ln)
	case DirCatch:
		m.addCatch(ln)
	case DirTypeAnno:
		m.catch.Annotations = append(m.catch.Annotations, strings.Join(ln.Words(), " "))
	case DirStack:
		m.startFrame(ln)
	case DirFrameLocals, DirFrameStack:
		m.frameLine(d, ln)
	case DirEndStack:
		m.endFrame()
	case DirLine:
		m.lineDirective(ln)
	case DirVar:
		m.addVar(ln)
	case DirIfReachable:
		skip := !m.sim.Reachable()
		if n := len(m.skip); n > 0 && m.skip[n-1] {
			skip = true
		}
		m.skip = append(m.skip, skip)
		m.push(ReachableIfBlock)
	case DirEndIf:
		m.pop()
	case DirLabel:
		m.defineLabel(ln)
	case DirInstruction:
		if n := len(m.skip); n > 0 && m.skip[n-1] {
			logger.Debugf("line %d: %s skipped, not reachable", ln.Num, ln.Keyword)
			return
		}
		m.instruction(ln)
	case DirEndMethod:
		m.endMethod()
	}
}

func (m *methodAsm) limit(ln Line) {
	words := ln.Words()
	if len(words) != 2 {
		m.log.Errorf(diag.Syntax, ".limit: want stack|locals N")
		return
	}
	n, err := strconv.Atoi(words[1])
	if err != nil || n < 0 || n > 65535 {
		m.log.Errorf(diag.Syntax, ".limit %s: bad count %q", words[0], words[1])
		return
	}
	switch words[0] {
	case "stack":
		m.sim.Stack.SetDeclared(n)
	case "locals":
		m.sim.Locals.SetDeclared(n)
	default:
		m.log.Errorf(diag.Syntax, ".limit: unknown limit %q", words[0])
	}
}

// addCatch parses ".catch type from L1 to L2 using L3". The type "all"
// catches everything.
func (m *methodAsm) addCatch(ln Line) {
	w := ln.Words()
	if len(w) != 7 || w[1] != "from" || w[3] != "to" || w[5] != "using" {
		m.log.Errorf(diag.Syntax, ".catch: want type from L1 to L2 using L3")
		return
	}
	typ := w[0]
	if typ == "all" {
		typ = ""
	}
	labels := m.sim.Labels
	c := labels.AddCatch(label.Catch{
		From:    labels.Ref(w[2], ln.Num),
		To:      labels.Ref(w[4], ln.Num),
		Handler: labels.Ref(w[6], ln.Num),
		Type:    typ,
		Line:    ln.Num,
	})
	m.body.Catches = append(m.body.Catches, bytecode.CatchEntry{From: w[2], To: w[4], Handler: w[6], Type: typ})
	m.catch = c
	m.push(CatchBlock)
}

func (m *methodAsm) startFrame(ln Line) {
	m.push(StackFrameBlock)
	m.frame = &pendingFrame{valid: true}
	if len(ln.Tokens) > 0 {
		m.log.Errorf(diag.Syntax, ".stack takes no operands")
	}
	if m.sim.PendingLabel() == label.None {
		m.log.Errorf(diag.Label, ".stack must directly follow a label")
		m.frame.valid = false
	}
	m.log.CheckSupported(".stack", version.StackMapTable, m.v)
}

// frameElements parses verification type names.
func (m *methodAsm) frameElements(ln Line) ([]frame.Element, bool) {
	var out []frame.Element
	w := ln.Words()
	for i := 0; i < len(w); i++ {
		switch w[i] {
		case "Top":
			out = append(out, frame.Top)
		case "Integer":
			out = append(out, frame.Integer)
		case "Float":
			out = append(out, frame.Float)
		case "Long":
			out = append(out, frame.Long, frame.Top)
		case "Double":
			out = append(out, frame.Double, frame.Top)
		case "Null", "UninitializedThis":
			out = append(out, frame.Object)
		case "Object":
			if i+1 >= len(w) {
				m.log.Errorf(diag.Syntax, "%s: Object needs a class name", ln.Keyword)
				return nil, false
			}
			i++
			out = append(out, frame.Object)
		case "Uninitialized":
			if i+1 >= len(w) {
				m.log.Errorf(diag.Syntax, "%s: Uninitialized needs a label", ln.Keyword)
				return nil, false
			}
			i++
			m.sim.Labels.Ref(w[i], ln.Num)
			out = append(out, frame.Object)
		default:
			m.log.Errorf(diag.Syntax, "%s: unknown verification type %q", ln.Keyword, w[i])
			return nil, false
		}
	}
	return out, true
}

func (m *methodAsm) frameLine(d Directive, ln Line) {
	es, ok := m.frameElements(ln)
	if !ok {
		m.frame.valid = false
		return
	}
	if d == DirFrameLocals {
		m.frame.locals = append(m.frame.locals, es...)
	} else {
		m.frame.stack = append(m.frame.stack, es...)
	}
}

func (m *methodAsm) endFrame() {
	f := m.frame
	m.frame = nil
	m.pop()
	if !f.valid {
		return
	}
	if err := m.sim.DeclareFrame(frame.Of(f.stack...), frame.Of(f.locals...)); err != nil {
		m.log.ReportErr(err)
	}
}

func (m *methodAsm) lineDirective(ln Line) {
	w := ln.Words()
	if len(w) != 1 {
		m.log.Errorf(diag.Syntax, ".line: want a line number")
		return
	}
	n, err := strconv.Atoi(w[0])
	if err != nil || n < 0 || n > 65535 {
		m.log.Errorf(diag.Syntax, ".line: bad line number %q", w[0])
		return
	}
	m.lineNote = n
	m.last = constLine
}

// addVar parses ".var N is name desc [signature sig] from L1 to L2".
func (m *methodAsm) addVar(ln Line) {
	w := ln.Words()
	if len(w) >= 6 && w[4] == "signature" {
		w = append(w[:4:4], w[6:]...)
	}
	if len(w) != 8 || w[1] != "is" || w[4] != "from" || w[6] != "to" {
		m.log.Errorf(diag.Syntax, ".var: want N is name descriptor from L1 to L2")
		return
	}
	n, err := strconv.Atoi(w[0])
	if err != nil || n < 0 || n > 65535 {
		m.log.Errorf(diag.Syntax, ".var: bad index %q", w[0])
		return
	}
	if _, err := bytecode.FieldElement(w[3]); err != nil {
		m.log.Errorf(diag.Syntax, ".var %s: %v", w[2], err)
		return
	}
	m.sim.Labels.Ref(w[5], ln.Num)
	m.sim.Labels.Ref(w[7], ln.Num)
	m.body.Vars = append(m.body.Vars, bytecode.VarEntry{Index: n, Name: w[2], Desc: w[3], From: w[5], To: w[7]})
}

func (m *methodAsm) defineLabel(ln Line) {
	name := ln.LabelName()
	if _, err := m.sim.DefineLabel(name, ln.Num, m.pc); err != nil {
		m.log.ReportErr(err)
		return
	}
	m.body.MarkLabel(name, ln.Num)
	m.last = constLabel
	m.lastLabel = name
}

// instruction resolves a mnemonic and assembles each resulting operation.
func (m *methodAsm) instruction(ln Line) {
	res, err := m.res.Resolve(ln.Keyword)
	if err != nil {
		if errors.Is(err, ErrUnknownMnemonic) {
			m.log.Errorf(diag.Syntax, "unknown instruction %s", ln.Keyword)
			return
		}
		m.log.ReportErr(err)
		return
	}
	if !res.Feature.IsZero() {
		m.log.CheckSupported(ln.Keyword, res.Feature, m.v)
	}

	for _, st := range res.Steps {
		if m.log.Aborted() {
			return
		}
		toks := ln.Tokens
		if !st.Operands {
			toks = make([]Token, len(st.Args))
			for i, a := range st.Args {
				toks[i] = Token{Type: TokenWord, Literal: a}
			}
		}
		m.assemble(st.Op, toks)
	}
}

// assemble checks, simulates and records one concrete operation. An
// operation whose simulation reports errors is dropped.
func (m *methodAsm) assemble(op *bytecode.OpInfo, toks []Token) {
	if !m.sim.StartInstruction() {
		if op.IsTransfer() {
			m.log.Errorf(diag.Unreachable, "unreachable %s", op.Name)
		} else {
			m.log.Warnf(diag.UnreachableCode, diag.Unreachable, "unreachable %s dropped", op.Name)
		}
		return
	}
	m.log.CheckSupported(op.Name, op.Feature, m.v)

	before := m.log.ErrorCount()
	o, ok := m.operands(op, toks)
	if ok {
		m.simulate(o)
		if m.log.ErrorCount() == before {
			m.body.Append(bytecode.Instruction{
				Op:       o.op.Name,
				Opcode:   o.op.Opcode,
				Wide:     o.op.Wide,
				Args:     o.args,
				Line:     m.line,
				LineNote: m.lineNote,
			})
			m.pc++
		}
	}

	// Reachability follows the Transfer flag alone. Conditional branches and
	// jsr fall through; their edges were already committed by simulate. The
	// frame carried past a transfer is adopted only by a label nothing
	// reached.
	if op.IsTransfer() {
		m.sim.Transfer()
		m.last = constTransfer
	} else {
		m.last = constFallthrough
	}
}

func (m *methodAsm) endMethod() {
	for len(m.states) > 1 {
		switch m.state() {
		case StackFrameBlock:
			m.log.Errorf(diag.Syntax, ".stack without .end stack")
		case ReachableIfBlock:
			m.log.Errorf(diag.Syntax, ".ifreachable without .endif")
		}
		m.pop()
	}
	m.finish()
}

// finish runs the end-of-method checks and fills in the body.
func (m *methodAsm) finish() {
	m.done = true
	switch m.last {
	case constTransfer:
	case constNone:
		if !m.flags["abstract"] && !m.flags["native"] {
			m.log.Errorf(diag.Structural, "method %s has no code", m.name)
		}
	case constLabel:
		m.log.Errorf(diag.Structural, "method %s ends on label %s with no instruction after it", m.name, m.lastLabel)
	case constLine:
		m.log.Errorf(diag.Structural, "method %s ends on a .line directive", m.name)
	default:
		m.log.Errorf(diag.Structural, "control falls off the end of method %s", m.name)
	}

	m.body.MaxStack, m.body.MaxLocals = m.sim.Finish()
	for _, c := range m.sim.Labels.Frames() {
		m.body.Frames = append(m.body.Frames, bytecode.FrameEntry{
			Label:  c.Name,
			Stack:  c.Stack.String(),
			Locals: c.Locals.String(),
		})
	}
}
