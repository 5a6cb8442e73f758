// Package frame defines the symbolic value categories tracked while
// verifying a method body, and immutable snapshots of operand stack and
// local variable slots.
package frame

import "fmt"

// Element is the verification category of one frame slot.
type Element uint8

const (
	Unused Element = iota
	Integer
	Float
	Long
	Double
	Object
	ReturnAddress
	Top // second slot of a Long or Double
	Irrelevant
	Error
)

type elementInfo struct {
	name   string
	letter byte
	slots  int
	next   Element // element required in the following slot
}

// elementTable is the per-variant dispatch table for Element.
var elementTable = [...]elementInfo{
	Unused:        {"unused", '_', 1, Unused},
	Integer:       {"int", 'I', 1, Unused},
	Float:         {"float", 'F', 1, Unused},
	Long:          {"long", 'J', 2, Top},
	Double:        {"double", 'D', 2, Top},
	Object:        {"object", 'A', 1, Unused},
	ReturnAddress: {"returnAddress", 'R', 1, Unused},
	Top:           {"top", 'T', 1, Unused},
	Irrelevant:    {"irrelevant", '*', 1, Unused},
	Error:         {"error", 'X', 1, Unused},
}

func (e Element) info() elementInfo {
	if int(e) < len(elementTable) {
		return elementTable[e]
	}
	return elementInfo{name: fmt.Sprintf("Element(%d)", e), letter: '?', slots: 1}
}

func (e Element) String() string { return e.info().name }

// Letter returns the single-character code used in stack-effect templates
// and frame listings.
func (e Element) Letter() byte { return e.info().letter }

// Slots returns the number of frame slots e occupies (2 for Long/Double).
func (e Element) Slots() int { return e.info().slots }

// IsTwoSlot reports whether e is a Long or Double.
func (e Element) IsTwoSlot() bool { return e.Slots() == 2 }

// Next returns the element that must follow e, or Unused when e is a
// single-slot element.
func (e Element) Next() Element { return e.info().next }

// IsPairedWith reports whether next is the required continuation of e.
func (e Element) IsPairedWith(next Element) bool {
	return e.IsTwoSlot() && next == e.Next()
}

// IsValue reports whether e can be the type of a pushed or stored value.
func (e Element) IsValue() bool {
	switch e {
	case Integer, Float, Long, Double, Object, ReturnAddress:
		return true
	}
	return false
}

// FromLetter maps a template letter back to its element.
func FromLetter(c byte) (Element, bool) {
	for e, info := range elementTable {
		if info.letter == c {
			return Element(e), true
		}
	}
	return Error, false
}

// FromDescriptor returns the element for a field descriptor's leading
// character. Sub-int types (Z, B, C, S) are Integer.
func FromDescriptor(c byte) (Element, bool) {
	switch c {
	case 'Z', 'B', 'C', 'S', 'I':
		return Integer, true
	case 'F':
		return Float, true
	case 'J':
		return Long, true
	case 'D':
		return Double, true
	case 'L', '[':
		return Object, true
	}
	return Error, false
}

// Expand returns e followed by its continuation slot, if any.
func Expand(e Element) []Element {
	if e.IsTwoSlot() {
		return []Element{e, e.Next()}
	}
	return []Element{e}
}
