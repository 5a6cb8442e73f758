package hash

// ---------------------------------------------------------------------------
// Frozen hashing form of a method body.
//
// These are stripped-down parallels of bytecode.MethodBody with no source
// positions or debug tables, and positional indices instead of label names.
// Two bodies that differ only in label names or line numbers produce
// identical hashing forms.
// ---------------------------------------------------------------------------

// HNode is the interface implemented by all hashing nodes.
type HNode interface {
	hnode() // marker method
}

// HBody is a normalized method body.
type HBody struct {
	Descriptor string
	Static     bool
	MaxStack   uint16
	MaxLocals  uint16
	Code       []HNode
	Catches    []*HCatch
}

// HLabelMark marks the position of the label with the given index.
type HLabelMark struct{ Index uint16 }

// HOperation is one operation. Opcode and Wide identify the encoding; the
// mnemonic is kept so that shared opcodes stay distinct.
type HOperation struct {
	Mnemonic string
	Opcode   uint8
	Wide     bool
	Args     []HNode
}

// HCatch is one exception table entry. An empty Type catches everything.
type HCatch struct {
	From, To, Handler uint16
	Type              string
}

// Operand nodes.
type HIntArg struct{ Value int64 }
type HTextArg struct{ Value string }
type HLabelRef struct{ Index uint16 }

// HPairArg is a lookupswitch key and its target.
type HPairArg struct {
	Key    int64
	Target uint16
}

func (*HBody) hnode()      {}
func (*HLabelMark) hnode() {}
func (*HOperation) hnode() {}
func (*HCatch) hnode()     {}
func (*HIntArg) hnode()    {}
func (*HTextArg) hnode()   {}
func (*HLabelRef) hnode()  {}
func (*HPairArg) hnode()   {}
