package bytecode

import (
	"errors"
	"strings"
	"testing"

	"github.com/chazu/jasm/pkg/frame"
	"github.com/chazu/jasm/pkg/version"
)

func TestDefaultCatalogOpcodes(t *testing.T) {
	c := Default()
	tests := []struct {
		name   string
		opcode uint8
	}{
		{"nop", 0x00},
		{"iconst_m1", 0x02},
		{"ldc2_w", 0x14},
		{"aload", 0x19},
		{"iload_0", 0x1A},
		{"aload_3", 0x2D},
		{"saload", 0x35},
		{"astore_3", 0x4E},
		{"swap", 0x5F},
		{"drem", 0x73},
		{"lxor", 0x83},
		{"iinc", 0x84},
		{"i2s", 0x93},
		{"if_acmpne", 0xA6},
		{"lookupswitch", 0xAB},
		{"return", 0xB1},
		{"invokedynamic", 0xBA},
		{"multianewarray", 0xC5},
		{"jsr_w", 0xC9},
	}

	for _, tt := range tests {
		info, ok := c.Lookup(tt.name)
		if !ok {
			t.Errorf("%s missing", tt.name)
			continue
		}
		if info.Opcode != tt.opcode {
			t.Errorf("%s opcode = 0x%02X, want 0x%02X", tt.name, info.Opcode, tt.opcode)
		}
	}
}

func TestByOpcodeIsCanonical(t *testing.T) {
	c := Default()
	info, ok := c.ByOpcode(0xB7)
	if !ok || info.Name != "invokespecial" {
		t.Errorf("0xB7 = %v, want invokespecial", info)
	}
	if _, ok := c.ByOpcode(WidePrefix); ok {
		t.Error("wide prefix should not be a catalog entry")
	}
	legacy, ok := c.Lookup("invokenonvirtual")
	if !ok || legacy.Opcode != 0xB7 {
		t.Fatal("invokenonvirtual should share 0xB7")
	}
	if legacy.Feature.Status(version.V8) != version.Deprecated {
		t.Error("invokenonvirtual should be deprecated")
	}
}

func TestEffectsParsed(t *testing.T) {
	c := Default()
	info, _ := c.Lookup("laload")
	if got := frame.Of(info.Pops()...); !got.Equal(frame.Of(frame.Object, frame.Integer)) {
		t.Errorf("laload pops %s", got)
	}
	if p := info.Pushes(); len(p) != 1 || p[0] != frame.Long {
		t.Errorf("laload pushes %v", p)
	}
	w, _ := c.Lookup("lload_w")
	if !w.Wide || w.Opcode != 0x16 || w.Length != 4 || w.Type != frame.Long || w.Base != "lload" {
		t.Errorf("lload_w = %+v", *w)
	}
	if p := w.Pushes(); len(p) != 1 || p[0] != frame.Long {
		t.Errorf("lload_w pushes %v", p)
	}
}

func TestTransferFlags(t *testing.T) {
	c := Default()
	for _, name := range []string{"goto", "goto_w", "athrow", "ireturn", "return", "tableswitch", "ret"} {
		info, _ := c.Lookup(name)
		if !info.IsTransfer() {
			t.Errorf("%s should be a transfer", name)
		}
	}
	for _, name := range []string{"ifeq", "jsr", "iadd", "invokestatic"} {
		info, _ := c.Lookup(name)
		if info.IsTransfer() {
			t.Errorf("%s should fall through", name)
		}
	}
}

func TestSelectLocal(t *testing.T) {
	c := Default()
	tests := []struct {
		base  string
		index int
		want  string
	}{
		{"iload", 0, "iload_0"},
		{"astore", 3, "astore_3"},
		{"iload", 4, "iload"},
		{"dstore", 255, "dstore"},
		{"lload", 256, "lload_w"},
		{"ret", 3, "ret"},
		{"ret", 1000, "ret_w"},
		{"aload_2", 7, "aload"},
	}

	for _, tt := range tests {
		got, err := c.SelectLocal(tt.base, tt.index, version.V5)
		if err != nil {
			t.Errorf("SelectLocal(%s, %d): %v", tt.base, tt.index, err)
			continue
		}
		if got.Name != tt.want {
			t.Errorf("SelectLocal(%s, %d) = %s, want %s", tt.base, tt.index, got.Name, tt.want)
		}
	}

	if _, err := c.SelectLocal("iload", 65536, version.V8); !errors.Is(err, ErrNoEncoding) {
		t.Errorf("index 65536 should have no encoding, got %v", err)
	}
	if _, err := c.SelectLocal("iadd", 1, version.V8); err == nil {
		t.Error("iadd takes no local index")
	}
}

func TestSelectLocalHonoursCompactFeature(t *testing.T) {
	ops := jvmOps()
	for i := range ops {
		if ops[i].Base == "istore" && ops[i].Implied >= 0 {
			ops[i].Feature = version.Since("compact-store", version.V5)
		}
	}
	c, err := NewCatalog(ops)
	if err != nil {
		t.Fatal(err)
	}

	got, err := c.SelectLocal("istore", 2, version.V1_4)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "istore" {
		t.Errorf("SelectLocal at 48.0 = %s, want generic istore", got.Name)
	}
	got, _ = c.SelectLocal("istore", 2, version.V5)
	if got.Name != "istore_2" {
		t.Errorf("SelectLocal at 49.0 = %s, want istore_2", got.Name)
	}
}

func TestSelectIncrement(t *testing.T) {
	c := Default()
	tests := []struct {
		index, delta int
		want         string
	}{
		{1, 1, "iinc"},
		{1, -128, "iinc"},
		{1, 127, "iinc"},
		{1, 128, "iinc_w"},
		{1, -129, "iinc_w"},
		{256, 1, "iinc_w"},
	}

	for _, tt := range tests {
		got, err := c.SelectIncrement("iinc", tt.index, tt.delta, version.V8)
		if err != nil {
			t.Errorf("SelectIncrement(%d, %d): %v", tt.index, tt.delta, err)
			continue
		}
		if got.Name != tt.want {
			t.Errorf("SelectIncrement(%d, %d) = %s, want %s", tt.index, tt.delta, got.Name, tt.want)
		}
	}
	if _, err := c.SelectIncrement("iinc", 1, 40000, version.V8); !errors.Is(err, ErrNoEncoding) {
		t.Errorf("delta 40000 should have no encoding, got %v", err)
	}
}

func TestNewCatalogRejectsDuplicateOpcode(t *testing.T) {
	ops := append(jvmOps(), op("bogus", 0x60, "II>I"))
	_, err := NewCatalog(ops)
	if !errors.Is(err, version.ErrStructural) {
		t.Fatalf("expected structural error, got %v", err)
	}
	if !strings.Contains(err.Error(), "0x60") {
		t.Errorf("error should name the opcode: %v", err)
	}
}

func TestNewCatalogRejectsWeakerAlternate(t *testing.T) {
	ops := []OpInfo{
		op("newer", 0x01, "").since(version.InvokeDynamic),
		op("older", 0x02, "").alt("newer"),
	}
	if _, err := NewCatalog(ops); !errors.Is(err, version.ErrStructural) {
		t.Errorf("expected structural error, got %v", err)
	}
}

func TestNewCatalogRejectsBadTemplate(t *testing.T) {
	for _, effect := range []string{"II", "I>I>I", "Q>I", "T>I"} {
		if _, err := NewCatalog([]OpInfo{op("x", 0x01, effect)}); !errors.Is(err, version.ErrStructural) {
			t.Errorf("template %q should be rejected, got %v", effect, err)
		}
	}
	if _, err := NewCatalog([]OpInfo{op("x", 0x01, "").alt("missing")}); !errors.Is(err, version.ErrStructural) {
		t.Errorf("unknown base should be rejected, got %v", err)
	}
}

func TestParseMethodDescriptor(t *testing.T) {
	m, err := ParseMethodDescriptor("(IJ[Ljava/lang/String;Ljava/lang/Object;D)Z")
	if err != nil {
		t.Fatal(err)
	}
	want := []frame.Element{frame.Integer, frame.Long, frame.Object, frame.Object, frame.Double}
	if len(m.Params) != len(want) {
		t.Fatalf("params = %v", m.Params)
	}
	for i := range want {
		if m.Params[i] != want[i] {
			t.Errorf("param %d = %s, want %s", i, m.Params[i], want[i])
		}
	}
	if m.ParamSlots() != 7 || m.Return != frame.Integer {
		t.Errorf("slots = %d, return = %s", m.ParamSlots(), m.Return)
	}
	if m.ParamDescs[2] != "[Ljava/lang/String;" {
		t.Errorf("param desc = %q", m.ParamDescs[2])
	}

	v, err := ParseMethodDescriptor("()V")
	if err != nil || v.Return != frame.Unused || len(v.Params) != 0 {
		t.Errorf("()V = %+v, %v", v, err)
	}

	for _, bad := range []string{"I", "(I", "(Q)V", "(L;)V", "()", "()II"} {
		if _, err := ParseMethodDescriptor(bad); err == nil {
			t.Errorf("ParseMethodDescriptor(%q) should fail", bad)
		}
	}
}

func TestListing(t *testing.T) {
	b := NewMethodBody("Demo", "sum", "()I", true, version.V8)
	b.Append(Instruction{Op: "iconst_1", Opcode: 0x04})
	b.MarkLabel("L1", 3)
	b.Append(Instruction{Op: "bipush", Opcode: 0x10, Args: []Arg{{Int: 2}}, LineNote: 12})
	b.Append(Instruction{Op: "iadd", Opcode: 0x60})
	b.Append(Instruction{Op: "ireturn", Opcode: 0xAC})
	b.Frames = []FrameEntry{{Label: "L1", Stack: "[I]", Locals: "[]"}}

	out := b.Listing(nil)
	for _, want := range []string{"Demo.sum()I", "0000  iconst_1", "L1:", "stack [I]", "0001  bipush 2", "; line 12", "0003  iadd"} {
		if !strings.Contains(out, want) {
			t.Errorf("listing missing %q:\n%s", want, out)
		}
	}
	if b.OpCount() != 4 || b.CodeLen(Default()) != 5 {
		t.Errorf("OpCount = %d, CodeLen = %d", b.OpCount(), b.CodeLen(Default()))
	}
}

func TestSwitchLength(t *testing.T) {
	b := NewMethodBody("Demo", "s", "(I)V", true, version.V8)
	b.Append(Instruction{Op: "iload_0"})
	b.Append(Instruction{Op: "tableswitch", Args: []Arg{{Int: 0}, {Label: "D"}, {Label: "A"}, {Label: "B"}}})
	// offset 1: 1 opcode + 2 pad + 12 + 2*4
	if got := b.CodeLen(Default()); got != 1+23 {
		t.Errorf("CodeLen = %d, want 24", got)
	}
}
