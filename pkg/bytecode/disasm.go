package bytecode

import (
	"fmt"
	"strings"
)

// Listing returns a human-readable listing of the method body, using c for
// offsets. A nil catalog uses Default.
func (b *MethodBody) Listing(c *Catalog) string {
	if c == nil {
		c = Default()
	}
	var sb strings.Builder

	static := ""
	if b.Static {
		static = "static "
	}
	sb.WriteString(fmt.Sprintf("; === %s.%s%s ===\n", b.Class, b.Name, b.Descriptor))
	sb.WriteString(fmt.Sprintf("; %sversion %s, stack %d, locals %d\n", static, b.Version, b.MaxStack, b.MaxLocals))

	if len(b.Catches) > 0 {
		sb.WriteString("; Catches:\n")
		for _, ct := range b.Catches {
			typ := ct.Type
			if typ == "" {
				typ = "all"
			}
			sb.WriteString(fmt.Sprintf(";   %s from %s to %s using %s\n", typ, ct.From, ct.To, ct.Handler))
		}
	}
	if len(b.Vars) > 0 {
		sb.WriteString("; Vars:\n")
		for _, v := range b.Vars {
			sb.WriteString(fmt.Sprintf(";   [%3d] %s %s from %s to %s\n", v.Index, v.Name, v.Desc, v.From, v.To))
		}
	}
	sb.WriteString("\n")

	frames := make(map[string]FrameEntry, len(b.Frames))
	for _, f := range b.Frames {
		frames[f.Label] = f
	}

	offset := 0
	for _, in := range b.Code {
		if in.IsLabel() {
			if f, ok := frames[in.Label]; ok {
				sb.WriteString(fmt.Sprintf("%-21s ; stack %s locals %s\n", in.Label+":", f.Stack, f.Locals))
			} else {
				sb.WriteString(in.Label + ":\n")
			}
			continue
		}
		text := formatInstruction(in)
		if in.LineNote > 0 {
			sb.WriteString(fmt.Sprintf("%04X  %-30s ; line %d\n", offset, text, in.LineNote))
		} else {
			sb.WriteString(fmt.Sprintf("%04X  %s\n", offset, text))
		}
		offset += instructionLen(c, in, offset)
	}
	return sb.String()
}

func formatInstruction(in Instruction) string {
	if len(in.Args) == 0 {
		return in.Op
	}
	parts := make([]string, 0, len(in.Args)+1)
	parts = append(parts, in.Op)
	for _, a := range in.Args {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, " ")
}

func (a Arg) String() string {
	switch {
	case a.Label != "" && a.Text == "" && a.Int == 0:
		return a.Label
	case a.Label != "":
		return fmt.Sprintf("%d:%s", a.Int, a.Label)
	case a.Text != "" && a.Int != 0:
		return fmt.Sprintf("%s %d", a.Text, a.Int)
	case a.Text != "":
		return a.Text
	}
	return fmt.Sprint(a.Int)
}
