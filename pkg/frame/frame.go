package frame

import (
	"fmt"
	"strings"
)

// Frame is an immutable snapshot of operand stack or local variable slots.
// Two-slot values are stored as the value element followed by Top.
type Frame struct {
	slots []Element
}

// Empty is the frame with no slots.
var Empty = Frame{}

// Of builds a frame from raw slot elements. The slice is copied.
func Of(slots ...Element) Frame {
	if len(slots) == 0 {
		return Empty
	}
	return Frame{slots: append([]Element(nil), slots...)}
}

// OfValues builds a frame from value elements, inserting Top after every
// two-slot value.
func OfValues(values ...Element) Frame {
	var slots []Element
	for _, v := range values {
		slots = append(slots, Expand(v)...)
	}
	return Frame{slots: slots}
}

// Len returns the number of slots.
func (f Frame) Len() int { return len(f.slots) }

// At returns slot i, or Unused past the end.
func (f Frame) At(i int) Element {
	if i < 0 || i >= len(f.slots) {
		return Unused
	}
	return f.slots[i]
}

// Slots returns a copy of the slot elements.
func (f Frame) Slots() []Element {
	return append([]Element(nil), f.slots...)
}

// With returns a copy of f with slot i set to e, growing with Unused as needed.
func (f Frame) With(i int, e Element) Frame {
	n := max(len(f.slots), i+1)
	slots := make([]Element, n)
	copy(slots, f.slots)
	slots[i] = e
	return Frame{slots: slots}
}

// Trimmed drops trailing Unused slots.
func (f Frame) Trimmed() Frame {
	n := len(f.slots)
	for n > 0 && f.slots[n-1] == Unused {
		n--
	}
	return Frame{slots: f.slots[:n:n]}
}

// Equal compares slot tags structurally. Missing tail slots count as Unused.
func (f Frame) Equal(o Frame) bool {
	n := max(f.Len(), o.Len())
	for i := 0; i < n; i++ {
		if f.At(i) != o.At(i) {
			return false
		}
	}
	return true
}

// Combine merges two frames pointwise: equal tags are kept, mismatches
// become Error, and missing tail slots are treated as Unused.
func Combine(a, b Frame) Frame {
	n := max(a.Len(), b.Len())
	if n == 0 {
		return Empty
	}
	slots := make([]Element, n)
	for i := range slots {
		x, y := a.At(i), b.At(i)
		if x == y {
			slots[i] = x
		} else {
			slots[i] = Error
		}
	}
	return Frame{slots: slots}
}

// Mismatches returns the slot indices at which a and b differ.
func Mismatches(a, b Frame) []int {
	var out []int
	n := max(a.Len(), b.Len())
	for i := 0; i < n; i++ {
		if a.At(i) != b.At(i) {
			out = append(out, i)
		}
	}
	return out
}

// IsCompatibleWith checks f against o pointwise. Error and Irrelevant act as
// wildcards on either side.
func (f Frame) IsCompatibleWith(o Frame) bool {
	n := max(f.Len(), o.Len())
	for i := 0; i < n; i++ {
		x, y := f.At(i), o.At(i)
		if x == y || isWildcard(x) || isWildcard(y) {
			continue
		}
		return false
	}
	return true
}

// Accepts reports whether an arriving frame satisfies f when f is a
// user-declared frame. Declared Unused, Top, Irrelevant and Error slots
// accept anything; the arriving side may carry Error.
func (f Frame) Accepts(arriving Frame) bool {
	n := max(f.Len(), arriving.Len())
	for i := 0; i < n; i++ {
		d, a := f.At(i), arriving.At(i)
		switch {
		case d == a, a == Error, isWildcard(d), d == Unused, d == Top:
		default:
			return false
		}
	}
	return true
}

func isWildcard(e Element) bool { return e == Error || e == Irrelevant }

// Validate checks that every Long/Double is immediately followed by Top.
func (f Frame) Validate() error {
	for i := 0; i < len(f.slots); i++ {
		e := f.slots[i]
		if e.IsTwoSlot() {
			if !e.IsPairedWith(f.At(i + 1)) {
				return fmt.Errorf("frame: %s at slot %d is not followed by top", e, i)
			}
			i++
		}
	}
	return nil
}

// Values returns the value elements of f, collapsing each two-slot pair.
func (f Frame) Values() []Element {
	var out []Element
	for i := 0; i < len(f.slots); i++ {
		e := f.slots[i]
		out = append(out, e)
		if e.IsPairedWith(f.At(i + 1)) {
			i++
		}
	}
	return out
}

// String renders the frame as template letters, e.g. "[IJTA]".
func (f Frame) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for _, e := range f.slots {
		sb.WriteByte(e.Letter())
	}
	sb.WriteByte(']')
	return sb.String()
}
