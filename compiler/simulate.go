package compiler

import (
	"github.com/chazu/jasm/pkg/bytecode"
	"github.com/chazu/jasm/pkg/diag"
	"github.com/chazu/jasm/pkg/frame"
)

// simulate applies o to the current frames and records its control-flow
// edges. Errors are reported to the log; the caller decides from the error
// count whether o is kept.
func (m *methodAsm) simulate(o *operation) {
	op := o.op
	stack := m.sim.Stack

	switch {
	case op.Is(bytecode.Shuffle):
		m.log.ReportErr(stack.Shuffle(op.Canonical()))

	case op.Kind == bytecode.ArgIncr:
		m.sim.Load(o.local, frame.Integer, m.line)
		m.sim.Store(o.local, frame.Integer, m.line)

	case op.Is(bytecode.Load):
		m.sim.Load(o.local, op.Type, m.line)
		if !op.IsTransfer() {
			stack.Push(op.Type)
		}

	case op.Is(bytecode.Store):
		want := op.Type
		// astore also stores the return address pushed by jsr
		if want == frame.Object && stack.Peek() == frame.ReturnAddress {
			want = frame.ReturnAddress
		}
		stack.Pop(want)
		m.sim.Store(o.local, want, m.line)

	case op.Is(bytecode.Computed):
		m.computed(o)

	default:
		stack.PopAll(op.Pops())
		stack.PushAll(op.Pushes())
	}

	if op.IsBranch() {
		for _, name := range o.targets {
			id, _ := m.sim.Labels.Lookup(name)
			if op.Is(bytecode.Subroutine) {
				m.sim.BranchWith(id, frame.ReturnAddress)
			} else {
				m.sim.Branch(id)
			}
		}
	}

	if op.IsReturn() && op.Type != m.desc.Return {
		m.log.Errorf(diag.TypeVerification, "%s does not match return type %s of %s%s",
			op.Name, returnName(m.desc), m.name, m.body.Descriptor)
	}
}

func returnName(mt bytecode.MethodType) string {
	if mt.ReturnDesc == "" || mt.ReturnDesc == "V" {
		return "void"
	}
	return mt.ReturnDesc
}

// computed simulates operations whose effect depends on their operands.
func (m *methodAsm) computed(o *operation) {
	stack := m.sim.Stack

	switch o.op.Canonical() {
	case "getstatic":
		stack.Push(o.field)
	case "putstatic":
		stack.Pop(o.field)
	case "getfield":
		stack.Pop(frame.Object)
		stack.Push(o.field)
	case "putfield":
		stack.Pop(o.field)
		stack.Pop(frame.Object)

	case "invokevirtual", "invokespecial", "invokenonvirtual", "invokeinterface", "invokestatic", "invokedynamic":
		stack.PopAll(o.method.Params)
		switch o.op.Canonical() {
		case "invokestatic", "invokedynamic":
		default:
			stack.Pop(frame.Object)
		}
		if o.method.Return != frame.Unused {
			stack.Push(o.method.Return)
		}

	case "ldc", "ldc2_w":
		stack.Push(o.konst)

	case "multianewarray":
		for i := 0; i < o.dims; i++ {
			stack.Pop(frame.Integer)
		}
		stack.Push(frame.Object)

	default:
		m.log.Errorf(diag.Structural, "%s: no simulation for computed operation", o.op.Name)
	}
}
