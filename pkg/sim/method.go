package sim

import (
	"github.com/chazu/jasm/pkg/diag"
	"github.com/chazu/jasm/pkg/frame"
	"github.com/chazu/jasm/pkg/label"
)

// Method is the simulation state of one method body: operand stack, local
// variables, labels, and the block bookkeeping that decides which frame the
// next instruction starts from.
//
// A block ends at every unconditional transfer and at every label
// definition. The first instruction of the next block adopts, in order, the
// frame committed at its label, the frame carried past the preceding
// transfer, or an empty frame. A frame committed at the label is never
// compared with the carried one: no edge connects the transfer to the label.
// A carried frame that is adopted is committed, so later arrivals are checked
// against it by the label map.
type Method struct {
	Stack  *OperandStack
	Locals *LocalVars
	Labels *label.Map

	reachable bool
	awaiting  bool
	pending   label.ID // label defined since the last instruction
	entry     label.ID // label heading the current block

	carried                 bool
	carryStack, carryLocals frame.Frame
}

// NewMethod starts simulation at method entry.
func NewMethod(log *diag.Log, static bool, params []frame.Element) *Method {
	return &Method{
		Stack:     NewOperandStack(log),
		Locals:    NewLocalVars(log, static, params),
		Labels:    label.NewMap(log),
		reachable: true,
		pending:   label.None,
		entry:     label.None,
	}
}

// Reachable reports whether the next instruction can be reached: control
// falls through to it, or a label was defined since the last transfer.
func (m *Method) Reachable() bool { return m.reachable }

// PendingLabel returns the label defined since the last instruction, if any.
func (m *Method) PendingLabel() label.ID { return m.pending }

// Entry returns the label heading the current block, or label.None.
func (m *Method) Entry() label.ID { return m.entry }

// DefineLabel defines name before operation pc. A label following another
// with no instruction in between becomes its alias. When control falls
// through into the label, the current frames arrive at it.
func (m *Method) DefineLabel(name string, line, pc int) (label.ID, error) {
	id, err := m.Labels.Define(name, line, pc)
	if err != nil {
		return id, err
	}

	if m.awaiting && m.pending != label.None {
		m.Labels.Alias(id, m.pending)
		return m.pending, nil
	}
	if m.reachable && !m.awaiting {
		m.Labels.Arrive(id, m.Stack.Frame(), m.Locals.Frame())
		m.carried = false
	}
	m.reachable = true
	m.awaiting = true
	m.pending = id
	return id, nil
}

// DeclareFrame attaches a user-declared frame to the pending label.
func (m *Method) DeclareFrame(stack, locals frame.Frame) error {
	if m.pending == label.None {
		return diag.Errorf(diag.Label, "frame declaration must follow a label")
	}
	m.Labels.Declare(m.pending, stack, locals)
	return nil
}

// StartInstruction prepares the frames for the next instruction. It returns
// false when the instruction is unreachable.
func (m *Method) StartInstruction() bool {
	if !m.reachable {
		return false
	}
	if m.awaiting {
		m.adopt()
	}
	return true
}

func (m *Method) adopt() {
	m.awaiting = false
	id := m.pending
	m.pending = label.None
	if id == label.None {
		return
	}

	stack, locals, ok := m.Labels.Frame(id)
	switch {
	case ok:
	case m.carried:
		stack, locals = m.carryStack, m.carryLocals
		m.Labels.Adopt(id, stack, locals)
	default:
		stack, locals = frame.Empty, frame.Empty
	}
	m.carried = false

	m.Stack.Reset(stack)
	m.Locals.Reset(locals)
	m.entry = m.Labels.Find(id)
	m.Labels.Enter(id, locals)
}

// Transfer ends the block after an unconditional control transfer. The
// current frames are carried to the next block.
func (m *Method) Transfer() {
	m.carried = true
	m.carryStack = m.Stack.Frame()
	m.carryLocals = m.Locals.Frame()
	m.Stack.Clear()
	m.reachable = false
	m.awaiting = true
	m.pending = label.None
	m.entry = label.None
}

// Branch records an edge to target carrying the current frames.
func (m *Method) Branch(target label.ID) {
	m.Labels.Arrive(target, m.Stack.Frame(), m.Locals.Frame())
}

// BranchWith records an edge to target with extra values pushed, as jsr
// pushes its return address.
func (m *Method) BranchWith(target label.ID, extra ...frame.Element) {
	stack := append(m.Stack.Frame().Slots(), frame.OfValues(extra...).Slots()...)
	m.Labels.Arrive(target, frame.Of(stack...), m.Locals.Frame())
}

// Load reads local i. Inside a block headed by a frozen label, a committed
// Unused slot is refined to the loaded type.
func (m *Method) Load(i int, e frame.Element, line int) error {
	err := m.Locals.Load(i, e, line)
	if m.entry != label.None && m.Labels.IsFrozen(m.entry) {
		m.Labels.Refine(m.entry, i, e)
	}
	return err
}

// Store writes local i in the current block only.
func (m *Method) Store(i int, e frame.Element, line int) error {
	return m.Locals.Store(i, e, line)
}

// Finish runs the end-of-method checks on labels and locals and returns the
// maxima to report.
func (m *Method) Finish() (maxStack, maxLocals int) {
	m.Labels.Check()
	m.Locals.CheckUsage()
	return m.Stack.Max(), m.Locals.Max()
}
