package bytecode

import "github.com/chazu/jasm/pkg/version"

// FormatVersion is the version of the method body record handed to emitters.
// Increment when making incompatible changes to the record.
const FormatVersion uint16 = 1

// Arg is one resolved operand. Label operands stay symbolic; the emitter
// resolves them to offsets.
type Arg struct {
	Int   int64  `cbor:"1,keyasint,omitempty"`
	Text  string `cbor:"2,keyasint,omitempty"`
	Label string `cbor:"3,keyasint,omitempty"`
}

// Instruction is one entry of the output list: either an operation or a
// label marker (Op empty, Label set).
type Instruction struct {
	Label    string `cbor:"1,keyasint,omitempty"`
	Op       string `cbor:"2,keyasint,omitempty"`
	Opcode   uint8  `cbor:"3,keyasint,omitempty"`
	Wide     bool   `cbor:"4,keyasint,omitempty"`
	Args     []Arg  `cbor:"5,keyasint,omitempty"`
	Line     int    `cbor:"6,keyasint,omitempty"` // assembler source line
	LineNote int    `cbor:"7,keyasint,omitempty"` // last .line number in effect
}

// IsLabel reports whether the entry marks a label position.
func (in Instruction) IsLabel() bool { return in.Op == "" && in.Label != "" }

// CatchEntry is one exception table entry.
type CatchEntry struct {
	From    string `cbor:"1,keyasint"`
	To      string `cbor:"2,keyasint"`
	Handler string `cbor:"3,keyasint"`
	Type    string `cbor:"4,keyasint,omitempty"` // empty catches everything
}

// VarEntry is one local variable table entry.
type VarEntry struct {
	Index int    `cbor:"1,keyasint"`
	Name  string `cbor:"2,keyasint"`
	Desc  string `cbor:"3,keyasint"`
	From  string `cbor:"4,keyasint"`
	To    string `cbor:"5,keyasint"`
}

// FrameEntry records the committed frame at a label, as element letters.
type FrameEntry struct {
	Label  string `cbor:"1,keyasint"`
	Stack  string `cbor:"2,keyasint"`
	Locals string `cbor:"3,keyasint"`
}

// MethodBody is the verified output of one method.
type MethodBody struct {
	Format     uint16          `cbor:"1,keyasint"`
	Class      string          `cbor:"2,keyasint"`
	Name       string          `cbor:"3,keyasint"`
	Descriptor string          `cbor:"4,keyasint"`
	Static     bool            `cbor:"5,keyasint,omitempty"`
	Version    version.Version `cbor:"6,keyasint"`
	MaxStack   int             `cbor:"7,keyasint"`
	MaxLocals  int             `cbor:"8,keyasint"`
	Code       []Instruction   `cbor:"9,keyasint"`
	Catches    []CatchEntry    `cbor:"10,keyasint,omitempty"`
	Vars       []VarEntry      `cbor:"11,keyasint,omitempty"`
	Frames     []FrameEntry    `cbor:"12,keyasint,omitempty"`
}

// NewMethodBody creates an empty body for class.name desc.
func NewMethodBody(class, name, desc string, static bool, v version.Version) *MethodBody {
	return &MethodBody{
		Format:     FormatVersion,
		Class:      class,
		Name:       name,
		Descriptor: desc,
		Static:     static,
		Version:    v,
		Code:       make([]Instruction, 0, 32),
	}
}

// Append adds an operation and returns its index in Code.
func (b *MethodBody) Append(in Instruction) int {
	b.Code = append(b.Code, in)
	return len(b.Code) - 1
}

// MarkLabel records a label position.
func (b *MethodBody) MarkLabel(name string, line int) {
	b.Code = append(b.Code, Instruction{Label: name, Line: line})
}

// OpCount returns the number of operations, excluding label markers.
func (b *MethodBody) OpCount() int {
	n := 0
	for _, in := range b.Code {
		if !in.IsLabel() {
			n++
		}
	}
	return n
}

// CodeLen estimates the code length in bytes. Switch padding is computed
// from the running offset; branch widths are taken as written.
func (b *MethodBody) CodeLen(c *Catalog) int {
	offset := 0
	for _, in := range b.Code {
		if in.IsLabel() {
			continue
		}
		offset += instructionLen(c, in, offset)
	}
	return offset
}

func instructionLen(c *Catalog, in Instruction, offset int) int {
	info, ok := c.Lookup(in.Op)
	if !ok {
		return 0
	}
	if info.Length > 0 {
		return info.Length
	}
	pad := (4 - (offset+1)%4) % 4
	switch info.Kind {
	case ArgTableSwitch:
		// default, low, high, then one offset per target
		return 1 + pad + 12 + 4*(len(in.Args)-2)
	case ArgLookupSwitch:
		// default, npairs, then key/offset pairs
		return 1 + pad + 8 + 8*(len(in.Args)-1)
	}
	return 1
}
