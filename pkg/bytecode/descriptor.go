package bytecode

import (
	"fmt"
	"strings"

	"github.com/chazu/jasm/pkg/frame"
)

// MethodType is a parsed method descriptor.
type MethodType struct {
	Params     []frame.Element
	ParamDescs []string
	Return     frame.Element // Unused for void
	ReturnDesc string
}

// ParamSlots is the number of local slots the parameters occupy, excluding
// any receiver.
func (m MethodType) ParamSlots() int {
	n := 0
	for _, p := range m.Params {
		n += p.Slots()
	}
	return n
}

// ArgFrame returns the parameters as a frame, two-slot values expanded.
func (m MethodType) ArgFrame() frame.Frame {
	return frame.OfValues(m.Params...)
}

// ParseMethodDescriptor parses "(params)ret".
func ParseMethodDescriptor(desc string) (MethodType, error) {
	if !strings.HasPrefix(desc, "(") {
		return MethodType{}, fmt.Errorf("bytecode: method descriptor %q must start with (", desc)
	}
	end := strings.IndexByte(desc, ')')
	if end < 0 {
		return MethodType{}, fmt.Errorf("bytecode: method descriptor %q has no )", desc)
	}

	var m MethodType
	params := desc[1:end]
	for len(params) > 0 {
		n, err := fieldLen(params)
		if err != nil {
			return MethodType{}, fmt.Errorf("bytecode: method descriptor %q: %w", desc, err)
		}
		e, _ := frame.FromDescriptor(params[0])
		m.Params = append(m.Params, e)
		m.ParamDescs = append(m.ParamDescs, params[:n])
		params = params[n:]
	}

	ret := desc[end+1:]
	m.ReturnDesc = ret
	if ret == "V" {
		m.Return = frame.Unused
		return m, nil
	}
	e, err := FieldElement(ret)
	if err != nil {
		return MethodType{}, fmt.Errorf("bytecode: method descriptor %q: %w", desc, err)
	}
	m.Return = e
	return m, nil
}

// FieldElement returns the element for a single field descriptor.
func FieldElement(desc string) (frame.Element, error) {
	n, err := fieldLen(desc)
	if err != nil {
		return frame.Error, err
	}
	if n != len(desc) {
		return frame.Error, fmt.Errorf("trailing characters in field descriptor %q", desc)
	}
	e, _ := frame.FromDescriptor(desc[0])
	return e, nil
}

// fieldLen returns the length of the field descriptor at the start of s.
func fieldLen(s string) (int, error) {
	i := 0
	for i < len(s) && s[i] == '[' {
		i++
	}
	if i > 255 {
		return 0, fmt.Errorf("array descriptor %q has more than 255 dimensions", s)
	}
	if i >= len(s) {
		return 0, fmt.Errorf("incomplete field descriptor %q", s)
	}
	switch s[i] {
	case 'Z', 'B', 'C', 'S', 'I', 'F', 'J', 'D':
		return i + 1, nil
	case 'L':
		semi := strings.IndexByte(s[i:], ';')
		if semi <= 1 {
			return 0, fmt.Errorf("malformed class descriptor %q", s)
		}
		return i + semi + 1, nil
	}
	return 0, fmt.Errorf("bad descriptor character %q in %q", s[i], s)
}

// ClassDescriptor returns the descriptor naming a class or array type:
// "java/lang/String" becomes "Ljava/lang/String;", arrays are unchanged.
func ClassDescriptor(name string) string {
	if strings.HasPrefix(name, "[") {
		return name
	}
	return "L" + name + ";"
}
