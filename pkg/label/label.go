// Package label tracks the symbolic program points of one method body:
// definitions and uses, aliasing of consecutive labels, the frames committed
// at each label as control flow arrives, and exception regions.
//
// Labels live in an arena indexed by ID. Aliasing is a union-find link, so
// every operation first resolves an ID to its base label; only base labels
// carry frames.
package label

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chazu/jasm/pkg/diag"
	"github.com/chazu/jasm/pkg/frame"
)

// ID indexes a label in its Map.
type ID int32

// None is the absent label.
const None ID = -1

type entry struct {
	name    string
	defined bool
	line    int // definition line
	pc      int // operation index at definition
	uses    []int
	parent  ID

	stack, locals frame.Frame
	committed     bool
	declared      bool
	entered       bool
	entryLocals   frame.Frame
	preds         int
	frozen        bool
	deferred      []string // divergence warnings awaiting the definition
}

// Catch is one exception region.
type Catch struct {
	From, To, Handler ID
	Type              string   // empty catches everything
	Annotations       []string // opaque type annotation lines
	Line              int

	applied bool
}

// Map is the label arena of one method.
type Map struct {
	entries []entry
	byName  map[string]ID
	catches []*Catch
	log     *diag.Log
}

// NewMap returns an empty arena reporting to log.
func NewMap(log *diag.Log) *Map {
	return &Map{byName: make(map[string]ID), log: log}
}

func (m *Map) get(name string) ID {
	if id, ok := m.byName[name]; ok {
		return id
	}
	id := ID(len(m.entries))
	m.entries = append(m.entries, entry{name: name, parent: id, pc: -1})
	m.byName[name] = id
	return id
}

// Lookup returns the label called name without recording a use.
func (m *Map) Lookup(name string) (ID, bool) {
	id, ok := m.byName[name]
	return id, ok
}

// Ref returns the label called name, creating it if unseen, and records a
// use at line.
func (m *Map) Ref(name string, line int) ID {
	id := m.get(name)
	m.entries[id].uses = append(m.entries[id].uses, line)
	return id
}

// Define marks name as defined at line, before operation pc. A second
// definition is an error.
func (m *Map) Define(name string, line, pc int) (ID, error) {
	id := m.get(name)
	e := &m.entries[id]
	if e.defined {
		return id, diag.Errorf(diag.Label, "label %s already defined at line %d", name, e.line)
	}
	e.defined = true
	e.line = line
	e.pc = pc
	for _, msg := range e.deferred {
		m.log.WarnAt(line, diag.FrameDivergence, diag.TypeVerification, "%s", msg)
	}
	e.deferred = nil
	return id, nil
}

// Find resolves id to its base label.
func (m *Map) Find(id ID) ID {
	root := id
	for m.entries[root].parent != root {
		root = m.entries[root].parent
	}
	for id != root {
		next := m.entries[id].parent
		m.entries[id].parent = root
		id = next
	}
	return root
}

// Alias makes alias an alternate name for base. Frames, uses and
// predecessors already recorded on alias fold into base.
func (m *Map) Alias(alias, base ID) {
	a, b := m.Find(alias), m.Find(base)
	if a == b {
		return
	}
	ae := m.entries[a]
	m.entries[a].parent = b
	be := &m.entries[b]
	be.uses = append(be.uses, ae.uses...)
	switch {
	case ae.declared:
		m.Declare(b, ae.stack, ae.locals)
		be.preds += ae.preds
	case ae.committed:
		m.Arrive(b, ae.stack, ae.locals)
		be.preds += max(ae.preds-1, 0)
	}
	if be.preds >= 2 {
		be.frozen = true
	}
}

// Name returns the label's own name.
func (m *Map) Name(id ID) string { return m.entries[id].name }

// IsAlias reports whether id resolves to a different base label.
func (m *Map) IsAlias(id ID) bool { return m.Find(id) != id }

// IsDefined reports whether the base label of id has been defined.
func (m *Map) IsDefined(id ID) bool { return m.entries[m.Find(id)].defined }

// IsFrozen reports whether the base label of id is frozen.
func (m *Map) IsFrozen(id ID) bool { return m.entries[m.Find(id)].frozen }

// IsDeclared reports whether the base label of id carries a declared frame.
func (m *Map) IsDeclared(id ID) bool { return m.entries[m.Find(id)].declared }

// Preds returns the number of control flow arrivals at id.
func (m *Map) Preds(id ID) int { return m.entries[m.Find(id)].preds }

// Uses returns the lines at which id (and its aliases) were referenced.
func (m *Map) Uses(id ID) []int {
	return append([]int(nil), m.entries[m.Find(id)].uses...)
}

// Frame returns the committed stack and locals frames of id.
func (m *Map) Frame(id ID) (stack, locals frame.Frame, ok bool) {
	e := &m.entries[m.Find(id)]
	return e.stack, e.locals, e.committed
}

// Declare installs a user-declared frame. Arrivals already merged must be
// accepted by it; the declared frame wins either way.
func (m *Map) Declare(id ID, stack, locals frame.Frame) {
	id = m.Find(id)
	e := &m.entries[id]
	merged, mergedLocals, had := e.stack, e.locals, e.committed
	e.stack, e.locals = stack, locals
	e.committed = true
	e.declared = true
	if had {
		m.checkDeclared(e, merged, mergedLocals)
	}
}

func (m *Map) checkDeclared(e *entry, stack, locals frame.Frame) {
	if e.stack.Len() != stack.Len() || !e.stack.Accepts(stack) {
		m.log.Errorf(diag.TypeVerification, "stack %s does not match declared frame %s at label %s",
			stack, e.stack, e.name)
	}
	if !e.locals.Accepts(locals) {
		m.log.Errorf(diag.TypeVerification, "locals %s do not match declared frame %s at label %s",
			locals, e.locals, e.name)
	}
}

// Arrive records a control flow edge into id carrying the given frames.
//
// Declared frames are authoritative and only checked. The first arrival
// commits its frames. Later arrivals combine pointwise until the label is
// frozen or its block has been simulated; after that they are only checked,
// and committed types never change.
func (m *Map) Arrive(id ID, stack, locals frame.Frame) {
	id = m.Find(id)
	e := &m.entries[id]
	e.preds++

	switch {
	case e.declared:
		m.checkDeclared(e, stack, locals)
	case !e.committed:
		e.stack, e.locals = stack, locals
		e.committed = true
	case e.frozen || e.entered:
		if !e.stack.IsCompatibleWith(stack) {
			m.log.Errorf(diag.TypeVerification, "stack %s does not match %s committed at label %s",
				stack, e.stack, e.name)
		}
		if slots := divergent(e.locals, locals); len(slots) > 0 {
			m.diverged(e, fmt.Sprintf("locals %s differ from %s committed at label %s (slots %v)",
				locals, e.locals, e.name, slots))
		}
	default:
		merged := frame.Combine(e.stack, stack)
		if !merged.Equal(e.stack) || !merged.Equal(stack) {
			m.log.Errorf(diag.TypeVerification, "stack mismatch at label %s: %s vs %s",
				e.name, e.stack, stack)
		}
		if slots := divergent(e.locals, locals); len(slots) > 0 {
			m.diverged(e, fmt.Sprintf("locals merge at label %s: %s vs %s (slots %v)",
				e.name, e.locals, locals, slots))
		}
		e.stack = merged
		e.locals = frame.Combine(e.locals, locals)
	}

	if e.preds >= 2 {
		e.frozen = true
	}
}

// diverged reports a locals divergence at the label's definition line,
// naming the arriving line when it differs. Before the label is defined the
// warning waits for Define.
func (m *Map) diverged(e *entry, msg string) {
	if from := m.log.Pos().Line; !e.defined || from != e.line {
		msg = fmt.Sprintf("%s, arriving from line %d", msg, from)
	}
	if !e.defined {
		e.deferred = append(e.deferred, msg)
		return
	}
	m.log.WarnAt(e.line, diag.FrameDivergence, diag.TypeVerification, "%s", msg)
}

// divergent returns the slots where both frames hold a type and the types
// differ.
func divergent(a, b frame.Frame) []int {
	var out []int
	for _, i := range frame.Mismatches(a, b) {
		x, y := a.At(i), b.At(i)
		if x == frame.Unused || y == frame.Unused || x == frame.Error || y == frame.Error {
			continue
		}
		out = append(out, i)
	}
	return out
}

// Adopt commits frames to a label that has none, without counting a
// predecessor. Used when a block inherits the frame carried past an
// unconditional transfer.
func (m *Map) Adopt(id ID, stack, locals frame.Frame) {
	e := &m.entries[m.Find(id)]
	if e.committed {
		return
	}
	e.stack, e.locals = stack, locals
	e.committed = true
}

// Enter marks the block headed by id as simulated from locals and applies
// every catch region starting at id.
func (m *Map) Enter(id ID, locals frame.Frame) {
	id = m.Find(id)
	e := &m.entries[id]
	e.entered = true
	e.entryLocals = locals
	for _, c := range m.catches {
		if !c.applied && m.Find(c.From) == id {
			m.applyCatch(c, locals)
		}
	}
}

// Refine upgrades a committed Unused local slot of a frozen label. Any other
// slot is left as committed.
func (m *Map) Refine(id ID, slot int, e frame.Element) {
	ent := &m.entries[m.Find(id)]
	if !ent.frozen || !ent.committed || ent.declared {
		return
	}
	if ent.locals.At(slot) != frame.Unused {
		return
	}
	locals := ent.locals.With(slot, e)
	if e.IsTwoSlot() && locals.At(slot+1) == frame.Unused {
		locals = locals.With(slot+1, e.Next())
	}
	ent.locals = locals
}

// AddCatch registers an exception region. Its handler receives the
// exception reference and the locals in effect when from is entered.
func (m *Map) AddCatch(c Catch) *Catch {
	cp := &c
	m.catches = append(m.catches, cp)
	from := &m.entries[m.Find(c.From)]
	if from.entered {
		m.applyCatch(cp, from.entryLocals)
	}
	return cp
}

func (m *Map) applyCatch(c *Catch, locals frame.Frame) {
	c.applied = true
	m.Arrive(c.Handler, frame.Of(frame.Object), locals)
}

// Catches returns the registered exception regions in declaration order.
func (m *Map) Catches() []*Catch { return m.catches }

// Committed is one base label's committed frame.
type Committed struct {
	Name          string
	Stack, Locals frame.Frame
}

// Frames returns the committed frames of every defined base label, in
// definition order.
func (m *Map) Frames() []Committed {
	ids := m.bases()
	var out []Committed
	for _, id := range ids {
		e := &m.entries[id]
		if !e.defined || !e.committed {
			continue
		}
		out = append(out, Committed{Name: e.name, Stack: e.stack, Locals: e.locals})
	}
	return out
}

// bases returns base label IDs ordered by definition position, undefined
// labels last in creation order.
func (m *Map) bases() []ID {
	var ids []ID
	for i := range m.entries {
		if m.Find(ID(i)) == ID(i) {
			ids = append(ids, ID(i))
		}
	}
	sort.SliceStable(ids, func(a, b int) bool {
		ea, eb := &m.entries[ids[a]], &m.entries[ids[b]]
		if ea.defined != eb.defined {
			return ea.defined
		}
		return ea.line < eb.line
	})
	return ids
}

// Check runs the end-of-method label diagnostics: undefined labels (one
// error listing every use), unused labels, and empty or inverted catch
// ranges. It returns the number of undefined labels.
func (m *Map) Check() int {
	undefined := 0
	for _, id := range m.bases() {
		e := &m.entries[id]
		switch {
		case !e.defined:
			undefined++
			m.log.ErrorAt(firstOr(e.uses, 0), diag.Label, "label %s is not defined (used at %s)",
				e.name, joinLines(e.uses))
		case len(e.uses) == 0:
			m.log.WarnAt(e.line, diag.UnusedLabel, diag.Label, "label %s is never used", e.name)
		}
	}

	for _, c := range m.catches {
		from, to := &m.entries[m.Find(c.From)], &m.entries[m.Find(c.To)]
		if !from.defined || !to.defined {
			continue
		}
		switch {
		case from.pc == to.pc:
			m.log.ErrorAt(c.Line, diag.Label, "catch range %s..%s is empty", m.Name(c.From), m.Name(c.To))
		case from.pc > to.pc:
			m.log.ErrorAt(c.Line, diag.Label, "catch range %s..%s is inverted", m.Name(c.From), m.Name(c.To))
		}
	}
	return undefined
}

func firstOr(xs []int, def int) int {
	if len(xs) == 0 {
		return def
	}
	return xs[0]
}

func joinLines(lines []int) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = fmt.Sprint(l)
	}
	return "lines " + strings.Join(parts, ", ")
}
