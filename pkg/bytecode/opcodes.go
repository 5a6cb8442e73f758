package bytecode

import (
	"fmt"
	"strings"

	"github.com/chazu/jasm/pkg/frame"
	"github.com/chazu/jasm/pkg/version"
)

// ArgKind is the shape of an instruction's operands.
type ArgKind uint8

const (
	ArgNone         ArgKind = iota
	ArgLocal                // local variable index
	ArgIncr                 // local variable index and signed delta
	ArgByte                 // signed byte immediate (bipush)
	ArgShort                // signed short immediate (sipush)
	ArgConst                // single-slot constant pool entry
	ArgConstWide            // two-slot constant pool entry (ldc2_w)
	ArgField                // field reference and descriptor
	ArgMethod               // method reference and descriptor
	ArgInterface            // interface method reference (invokeinterface)
	ArgDynamic              // bootstrap-linked call site (invokedynamic)
	ArgClass                // class reference
	ArgMultiArray           // class reference and dimension count
	ArgArrayType            // primitive array type (newarray)
	ArgBranch               // 16-bit branch target
	ArgBranchWide           // 32-bit branch target
	ArgTableSwitch          // low bound, default and jump table
	ArgLookupSwitch         // default and key/target pairs
)

var argKindNames = [...]string{
	ArgNone:         "none",
	ArgLocal:        "local",
	ArgIncr:         "incr",
	ArgByte:         "byte",
	ArgShort:        "short",
	ArgConst:        "const",
	ArgConstWide:    "const2",
	ArgField:        "field",
	ArgMethod:       "method",
	ArgInterface:    "interface",
	ArgDynamic:      "dynamic",
	ArgClass:        "class",
	ArgMultiArray:   "multiarray",
	ArgArrayType:    "arraytype",
	ArgBranch:       "branch",
	ArgBranchWide:   "branch_w",
	ArgTableSwitch:  "tableswitch",
	ArgLookupSwitch: "lookupswitch",
}

func (k ArgKind) String() string {
	if int(k) < len(argKindNames) {
		return argKindNames[k]
	}
	return fmt.Sprintf("ArgKind(%d)", k)
}

// Flags describe control flow and simulation behaviour.
type Flags uint16

const (
	// Transfer marks unconditional control transfers: nothing falls through.
	Transfer Flags = 1 << iota
	// Branch marks instructions with label operands.
	Branch
	Return
	Load
	Store
	// Shuffle marks stack manipulation ops simulated by category.
	Shuffle
	// Computed marks effects derived from operands rather than the template.
	Computed
	Subroutine
)

// WidePrefix is the opcode of the wide modifier that precedes wide forms.
const WidePrefix uint8 = 0xC4

// OpInfo describes one concrete instruction encoding.
type OpInfo struct {
	Name    string
	Opcode  uint8
	Kind    ArgKind
	Type    frame.Element // operand category loaded, stored, returned or compared
	Length  int           // bytes including any wide prefix; 0 when variable
	Effect  string        // "pops>pushes" in element letters, bottom to top
	Feature version.Range
	Base    string // base form for compact, wide and alternate encodings
	Implied int    // local index fixed by a compact form, -1 otherwise
	Wide    bool   // encoded behind the wide prefix; owns no opcode slot
	Flags   Flags

	pops, pushes []frame.Element
}

// Is reports whether all of f are set.
func (o *OpInfo) Is(f Flags) bool { return o.Flags&f == f }

// IsTransfer reports whether o never falls through.
func (o *OpInfo) IsTransfer() bool { return o.Flags&Transfer != 0 }

// IsReturn reports whether o is one of the return forms.
func (o *OpInfo) IsReturn() bool { return o.Flags&Return != 0 }

// IsBranch reports whether o takes label operands.
func (o *OpInfo) IsBranch() bool { return o.Flags&Branch != 0 }

// IsCompact reports whether o is an immediate form with a fixed local index.
func (o *OpInfo) IsCompact() bool { return o.Implied >= 0 }

// Pops returns the template's popped elements, bottom to top.
func (o *OpInfo) Pops() []frame.Element { return o.pops }

// Pushes returns the template's pushed elements, bottom to top.
func (o *OpInfo) Pushes() []frame.Element { return o.pushes }

// Canonical returns the name of the form o is an alternate of, or o's own name.
func (o *OpInfo) Canonical() string {
	if o.Base != "" {
		return o.Base
	}
	return o.Name
}

func (o *OpInfo) String() string { return o.Name }

// parseEffect splits a "pops>pushes" template into element lists.
func parseEffect(tmpl string) (pops, pushes []frame.Element, err error) {
	if tmpl == "" {
		return nil, nil, nil
	}
	in, out, ok := strings.Cut(tmpl, ">")
	if !ok || strings.Contains(out, ">") {
		return nil, nil, fmt.Errorf("template %q: want pops>pushes", tmpl)
	}
	if pops, err = parseLetters(in); err != nil {
		return nil, nil, fmt.Errorf("template %q: %w", tmpl, err)
	}
	if pushes, err = parseLetters(out); err != nil {
		return nil, nil, fmt.Errorf("template %q: %w", tmpl, err)
	}
	return pops, pushes, nil
}

func parseLetters(s string) ([]frame.Element, error) {
	var out []frame.Element
	for i := 0; i < len(s); i++ {
		e, ok := frame.FromLetter(s[i])
		if !ok || !e.IsValue() {
			return nil, fmt.Errorf("bad type letter %q", s[i])
		}
		out = append(out, e)
	}
	return out, nil
}

func op(name string, code uint8, effect string) OpInfo {
	return OpInfo{Name: name, Opcode: code, Length: 1, Effect: effect, Feature: version.Always, Implied: -1}
}

func (o OpInfo) arg(k ArgKind, length int) OpInfo {
	o.Kind = k
	o.Length = length
	return o
}

func (o OpInfo) typed(e frame.Element) OpInfo {
	o.Type = e
	return o
}

func (o OpInfo) with(f Flags) OpInfo {
	o.Flags |= f
	return o
}

func (o OpInfo) since(r version.Range) OpInfo {
	o.Feature = r
	return o
}

func (o OpInfo) alt(base string) OpInfo {
	o.Base = base
	return o
}

type typedPrefix struct {
	prefix string
	elem   frame.Element
}

var localTypes = []typedPrefix{
	{"i", frame.Integer}, {"l", frame.Long}, {"f", frame.Float}, {"d", frame.Double}, {"a", frame.Object},
}

var arithTypes = []typedPrefix{
	{"i", frame.Integer}, {"l", frame.Long}, {"f", frame.Float}, {"d", frame.Double},
}

func letter(e frame.Element) string { return string(e.Letter()) }

// jvmOps returns the JVM instruction set. Compact, wide and alternate forms
// follow their base.
func jvmOps() []OpInfo {
	ops := []OpInfo{
		op("nop", 0x00, ""),
		op("aconst_null", 0x01, ">A"),
		op("iconst_m1", 0x02, ">I"),
		op("iconst_0", 0x03, ">I"),
		op("iconst_1", 0x04, ">I"),
		op("iconst_2", 0x05, ">I"),
		op("iconst_3", 0x06, ">I"),
		op("iconst_4", 0x07, ">I"),
		op("iconst_5", 0x08, ">I"),
		op("lconst_0", 0x09, ">J"),
		op("lconst_1", 0x0A, ">J"),
		op("fconst_0", 0x0B, ">F"),
		op("fconst_1", 0x0C, ">F"),
		op("fconst_2", 0x0D, ">F"),
		op("dconst_0", 0x0E, ">D"),
		op("dconst_1", 0x0F, ">D"),
		op("bipush", 0x10, ">I").arg(ArgByte, 2),
		op("sipush", 0x11, ">I").arg(ArgShort, 3),
		op("ldc", 0x12, "").arg(ArgConst, 2).with(Computed),
		op("ldc_w", 0x13, "").arg(ArgConst, 3).with(Computed).alt("ldc"),
		op("ldc2_w", 0x14, "").arg(ArgConstWide, 3).with(Computed),
	}

	// local loads 0x15..0x2D
	for i, t := range localTypes {
		base := t.prefix + "load"
		ops = append(ops, op(base, 0x15+uint8(i), ">"+letter(t.elem)).arg(ArgLocal, 2).typed(t.elem).with(Load))
	}
	for i, t := range localTypes {
		base := t.prefix + "load"
		for n := 0; n < 4; n++ {
			c := op(fmt.Sprintf("%s_%d", base, n), 0x1A+uint8(4*i+n), ">"+letter(t.elem)).
				typed(t.elem).with(Load).alt(base)
			c.Kind = ArgLocal
			c.Implied = n
			ops = append(ops, c)
		}
	}

	// array loads
	for i, name := range []string{"iaload", "laload", "faload", "daload", "aaload", "baload", "caload", "saload"} {
		push := []string{"I", "J", "F", "D", "A", "I", "I", "I"}[i]
		ops = append(ops, op(name, 0x2E+uint8(i), "AI>"+push))
	}

	// local stores 0x36..0x4E
	for i, t := range localTypes {
		base := t.prefix + "store"
		ops = append(ops, op(base, 0x36+uint8(i), letter(t.elem)+">").arg(ArgLocal, 2).typed(t.elem).with(Store))
	}
	for i, t := range localTypes {
		base := t.prefix + "store"
		for n := 0; n < 4; n++ {
			c := op(fmt.Sprintf("%s_%d", base, n), 0x3B+uint8(4*i+n), letter(t.elem)+">").
				typed(t.elem).with(Store).alt(base)
			c.Kind = ArgLocal
			c.Implied = n
			ops = append(ops, c)
		}
	}

	// array stores
	for i, name := range []string{"iastore", "lastore", "fastore", "dastore", "aastore", "bastore", "castore", "sastore"} {
		val := []string{"I", "J", "F", "D", "A", "I", "I", "I"}[i]
		ops = append(ops, op(name, 0x4F+uint8(i), "AI"+val+">"))
	}

	for i, name := range []string{"pop", "pop2", "dup", "dup_x1", "dup_x2", "dup2", "dup2_x1", "dup2_x2", "swap"} {
		ops = append(ops, op(name, 0x57+uint8(i), "").with(Shuffle))
	}

	// arithmetic 0x60..0x77
	for g, name := range []string{"add", "sub", "mul", "div", "rem"} {
		for i, t := range arithTypes {
			l := letter(t.elem)
			ops = append(ops, op(t.prefix+name, 0x60+uint8(4*g+i), l+l+">"+l).typed(t.elem))
		}
	}
	for i, t := range arithTypes {
		l := letter(t.elem)
		ops = append(ops, op(t.prefix+"neg", 0x74+uint8(i), l+">"+l).typed(t.elem))
	}

	// shifts and bitwise 0x78..0x83
	for i, name := range []string{"shl", "shr", "ushr"} {
		ops = append(ops,
			op("i"+name, 0x78+uint8(2*i), "II>I").typed(frame.Integer),
			op("l"+name, 0x79+uint8(2*i), "JI>J").typed(frame.Long))
	}
	for i, name := range []string{"and", "or", "xor"} {
		ops = append(ops,
			op("i"+name, 0x7E+uint8(2*i), "II>I").typed(frame.Integer),
			op("l"+name, 0x7F+uint8(2*i), "JJ>J").typed(frame.Long))
	}

	ops = append(ops, op("iinc", 0x84, "").arg(ArgIncr, 3).typed(frame.Integer).with(Load|Store))

	conversions := []struct {
		name   string
		effect string
	}{
		{"i2l", "I>J"}, {"i2f", "I>F"}, {"i2d", "I>D"},
		{"l2i", "J>I"}, {"l2f", "J>F"}, {"l2d", "J>D"},
		{"f2i", "F>I"}, {"f2l", "F>J"}, {"f2d", "F>D"},
		{"d2i", "D>I"}, {"d2l", "D>J"}, {"d2f", "D>F"},
		{"i2b", "I>I"}, {"i2c", "I>I"}, {"i2s", "I>I"},
	}
	for i, c := range conversions {
		ops = append(ops, op(c.name, 0x85+uint8(i), c.effect))
	}

	ops = append(ops,
		op("lcmp", 0x94, "JJ>I").typed(frame.Long),
		op("fcmpl", 0x95, "FF>I").typed(frame.Float),
		op("fcmpg", 0x96, "FF>I").typed(frame.Float),
		op("dcmpl", 0x97, "DD>I").typed(frame.Double),
		op("dcmpg", 0x98, "DD>I").typed(frame.Double),
	)

	for i, cond := range []string{"eq", "ne", "lt", "ge", "gt", "le"} {
		ops = append(ops,
			op("if"+cond, 0x99+uint8(i), "I>").arg(ArgBranch, 3).typed(frame.Integer).with(Branch),
			op("if_icmp"+cond, 0x9F+uint8(i), "II>").arg(ArgBranch, 3).typed(frame.Integer).with(Branch))
	}

	ops = append(ops,
		op("if_acmpeq", 0xA5, "AA>").arg(ArgBranch, 3).typed(frame.Object).with(Branch),
		op("if_acmpne", 0xA6, "AA>").arg(ArgBranch, 3).typed(frame.Object).with(Branch),
		op("goto", 0xA7, "").arg(ArgBranch, 3).with(Branch|Transfer),
		op("jsr", 0xA8, "").arg(ArgBranch, 3).with(Branch|Subroutine).since(version.Jsr),
		op("ret", 0xA9, "").arg(ArgLocal, 2).typed(frame.ReturnAddress).with(Load|Transfer).since(version.Jsr),
		op("tableswitch", 0xAA, "I>").arg(ArgTableSwitch, 0).typed(frame.Integer).with(Branch|Transfer),
		op("lookupswitch", 0xAB, "I>").arg(ArgLookupSwitch, 0).typed(frame.Integer).with(Branch|Transfer),
	)

	for i, t := range append(append([]typedPrefix(nil), arithTypes...), typedPrefix{"a", frame.Object}) {
		ops = append(ops, op(t.prefix+"return", 0xAC+uint8(i), letter(t.elem)+">").typed(t.elem).with(Return|Transfer))
	}
	ops = append(ops, op("return", 0xB1, "").typed(frame.Unused).with(Return|Transfer))

	ops = append(ops,
		op("getstatic", 0xB2, "").arg(ArgField, 3).with(Computed),
		op("putstatic", 0xB3, "").arg(ArgField, 3).with(Computed),
		op("getfield", 0xB4, "").arg(ArgField, 3).with(Computed),
		op("putfield", 0xB5, "").arg(ArgField, 3).with(Computed),
		op("invokevirtual", 0xB6, "").arg(ArgMethod, 3).with(Computed),
		op("invokespecial", 0xB7, "").arg(ArgMethod, 3).with(Computed),
		op("invokenonvirtual", 0xB7, "").arg(ArgMethod, 3).with(Computed).since(version.LegacyMnemonic),
		op("invokestatic", 0xB8, "").arg(ArgMethod, 3).with(Computed),
		op("invokeinterface", 0xB9, "").arg(ArgInterface, 5).with(Computed),
		op("invokedynamic", 0xBA, "").arg(ArgDynamic, 5).with(Computed).since(version.InvokeDynamic),
		op("new", 0xBB, ">A").arg(ArgClass, 3),
		op("newarray", 0xBC, "I>A").arg(ArgArrayType, 2),
		op("anewarray", 0xBD, "I>A").arg(ArgClass, 3),
		op("arraylength", 0xBE, "A>I"),
		op("athrow", 0xBF, "A>").with(Transfer),
		op("checkcast", 0xC0, "A>A").arg(ArgClass, 3),
		op("instanceof", 0xC1, "A>I").arg(ArgClass, 3),
		op("monitorenter", 0xC2, "A>"),
		op("monitorexit", 0xC3, "A>"),
		op("multianewarray", 0xC5, "").arg(ArgMultiArray, 4).with(Computed),
		op("ifnull", 0xC6, "A>").arg(ArgBranch, 3).typed(frame.Object).with(Branch),
		op("ifnonnull", 0xC7, "A>").arg(ArgBranch, 3).typed(frame.Object).with(Branch),
		op("goto_w", 0xC8, "").arg(ArgBranchWide, 5).with(Branch|Transfer).alt("goto"),
		op("jsr_w", 0xC9, "").arg(ArgBranchWide, 5).with(Branch|Subroutine).since(version.Jsr).alt("jsr"),
	)

	// wide forms share their base's opcode behind the wide prefix
	for _, t := range localTypes {
		for _, kind := range []string{"load", "store"} {
			base := t.prefix + kind
			w := OpInfo{Name: base + "_w", Implied: -1, Feature: version.Always, Base: base, Wide: true}
			ops = append(ops, w)
		}
	}
	ops = append(ops,
		OpInfo{Name: "iinc_w", Implied: -1, Feature: version.Always, Base: "iinc", Wide: true},
		OpInfo{Name: "ret_w", Implied: -1, Feature: version.Jsr, Base: "ret", Wide: true},
	)
	return ops
}

// widen fills in a wide form from its base: same opcode, kind, effect and
// flags, with 16-bit operands.
func widen(w OpInfo, base *OpInfo) OpInfo {
	out := *base
	out.Name = w.Name
	out.Base = base.Name
	out.Wide = true
	out.Implied = -1
	out.Feature = w.Feature
	out.Length = 4
	if base.Kind == ArgIncr {
		out.Length = 6
	}
	return out
}

// Entries returns a fresh copy of the standard instruction table, for
// building catalogs with adjusted availability.
func Entries() []OpInfo { return jvmOps() }
