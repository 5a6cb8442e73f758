package hash

import (
	"github.com/chazu/jasm/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Normalization: bytecode.MethodBody → frozen hashing form
//
// Labels are numbered in order of first appearance, marks and references
// alike, walking the code and then the exception table. Source lines, the
// local variable table and committed frames are dropped.
// ---------------------------------------------------------------------------

type normalizer struct {
	labels map[string]uint16
}

func (n *normalizer) label(name string) uint16 {
	if i, ok := n.labels[name]; ok {
		return i
	}
	i := uint16(len(n.labels))
	n.labels[name] = i
	return i
}

// NormalizeBody transforms a method body into its frozen hashing form.
func NormalizeBody(b *bytecode.MethodBody) *HBody {
	n := &normalizer{labels: make(map[string]uint16)}
	hb := &HBody{
		Descriptor: b.Descriptor,
		Static:     b.Static,
		MaxStack:   uint16(b.MaxStack),
		MaxLocals:  uint16(b.MaxLocals),
		Code:       make([]HNode, 0, len(b.Code)),
	}

	for _, in := range b.Code {
		if in.IsLabel() {
			hb.Code = append(hb.Code, &HLabelMark{Index: n.label(in.Label)})
			continue
		}
		hb.Code = append(hb.Code, n.operation(in))
	}

	for _, c := range b.Catches {
		hb.Catches = append(hb.Catches, &HCatch{
			From:    n.label(c.From),
			To:      n.label(c.To),
			Handler: n.label(c.Handler),
			Type:    c.Type,
		})
	}
	return hb
}

func (n *normalizer) operation(in bytecode.Instruction) *HOperation {
	op := &HOperation{Mnemonic: in.Op, Opcode: in.Opcode, Wide: in.Wide}
	for i, a := range in.Args {
		switch {
		case a.Label != "" && in.Op == "lookupswitch" && i > 0:
			op.Args = append(op.Args, &HPairArg{Key: a.Int, Target: n.label(a.Label)})
		case a.Label != "":
			op.Args = append(op.Args, &HLabelRef{Index: n.label(a.Label)})
		case a.Text != "":
			op.Args = append(op.Args, &HTextArg{Value: a.Text})
		default:
			op.Args = append(op.Args, &HIntArg{Value: a.Int})
		}
	}
	return op
}
