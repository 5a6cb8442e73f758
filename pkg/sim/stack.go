// Package sim simulates the operand stack and local variables of one method
// body, one operation at a time, reporting type errors to a diag.Log and
// substituting best-effort values so simulation can continue.
package sim

import (
	"github.com/chazu/jasm/pkg/diag"
	"github.com/chazu/jasm/pkg/frame"
)

// MaxStackSlots is the largest operand stack the class file format can
// describe.
const MaxStackSlots = 65536

// OperandStack is the simulated operand stack. Two-slot values occupy a value
// slot followed by Top.
type OperandStack struct {
	slots    []frame.Element
	max      int
	declared int // -1 when no .limit stack was given
	log      *diag.Log
}

// NewOperandStack returns an empty stack reporting to log.
func NewOperandStack(log *diag.Log) *OperandStack {
	return &OperandStack{declared: -1, log: log}
}

// Depth returns the current number of slots.
func (s *OperandStack) Depth() int { return len(s.slots) }

// Frame snapshots the stack.
func (s *OperandStack) Frame() frame.Frame { return frame.Of(s.slots...) }

// Reset replaces the stack contents with f.
func (s *OperandStack) Reset(f frame.Frame) {
	s.slots = f.Slots()
	s.touch()
}

// Clear empties the stack.
func (s *OperandStack) Clear() { s.slots = s.slots[:0] }

func (s *OperandStack) touch() {
	if len(s.slots) > s.max {
		s.max = len(s.slots)
	}
}

// Push pushes a value, adding Top after two-slot values. Exceeding
// MaxStackSlots is fatal.
func (s *OperandStack) Push(e frame.Element) error {
	n := e.Slots()
	if len(s.slots)+n > MaxStackSlots {
		s.log.Fatalf(diag.Limit, "operand stack exceeds %d slots", MaxStackSlots)
		return diag.ErrAborted
	}
	s.slots = append(s.slots, frame.Expand(e)...)
	s.touch()
	return nil
}

// PushAll pushes values bottom to top.
func (s *OperandStack) PushAll(es []frame.Element) error {
	for _, e := range es {
		if err := s.Push(e); err != nil {
			return err
		}
	}
	return nil
}

// Pop removes the top value, which should be of category want. On underflow
// or mismatch it reports a type error and returns want so the caller can
// continue. Error slots match anything silently.
func (s *OperandStack) Pop(want frame.Element) frame.Element {
	if len(s.slots) == 0 {
		s.log.Errorf(diag.TypeVerification, "stack underflow: expected %s", want)
		return want
	}

	top := s.slots[len(s.slots)-1]
	got := top
	n := 1
	if top == frame.Top && len(s.slots) >= 2 && s.slots[len(s.slots)-2].IsPairedWith(top) {
		got = s.slots[len(s.slots)-2]
		n = 2
	}
	s.slots = s.slots[:len(s.slots)-n]
	if want.IsTwoSlot() && n == 1 && len(s.slots) > 0 {
		s.slots = s.slots[:len(s.slots)-1]
	}

	switch got {
	case want, frame.Error:
		return got
	}
	if want == frame.Irrelevant || want == frame.Error {
		return got
	}
	s.log.Errorf(diag.TypeVerification, "expected %s on stack, found %s", want, got)
	return want
}

// PopAll pops values listed bottom to top.
func (s *OperandStack) PopAll(want []frame.Element) {
	for i := len(want) - 1; i >= 0; i-- {
		s.Pop(want[i])
	}
}

// Peek returns the top value without popping it.
func (s *OperandStack) Peek() frame.Element {
	if len(s.slots) == 0 {
		return frame.Unused
	}
	top := s.slots[len(s.slots)-1]
	if top == frame.Top && len(s.slots) >= 2 {
		return s.slots[len(s.slots)-2]
	}
	return top
}

// shuffle describes a stack manipulation by slot groups: the top group of
// top slots and the group of below slots under it.
type shuffle struct {
	top, below int
	discard    bool
	dup        bool
}

var shuffles = map[string]shuffle{
	"pop":     {top: 1, discard: true},
	"pop2":    {top: 2, discard: true},
	"dup":     {top: 1, dup: true},
	"dup_x1":  {top: 1, below: 1, dup: true},
	"dup_x2":  {top: 1, below: 2, dup: true},
	"dup2":    {top: 2, dup: true},
	"dup2_x1": {top: 2, below: 1, dup: true},
	"dup2_x2": {top: 2, below: 2, dup: true},
	"swap":    {top: 1, below: 1},
}

// IsShuffle reports whether name is a stack manipulation op.
func IsShuffle(name string) bool {
	_, ok := shuffles[name]
	return ok
}

// Shuffle applies one of pop, pop2, dup, dup_x1, dup_x2, dup2, dup2_x1,
// dup2_x2 or swap. Groups are taken by slot, so pop2 removes either one
// two-slot value or two single-slot values; a group that would split a
// two-slot value is reported and its slots replaced by Error.
func (s *OperandStack) Shuffle(name string) error {
	sh, ok := shuffles[name]
	if !ok {
		return diag.Errorf(diag.Structural, "%s is not a stack manipulation", name)
	}

	g1 := s.take(name, sh.top)
	var g2 []frame.Element
	if sh.below > 0 {
		g2 = s.take(name, sh.below)
	}

	var out []frame.Element
	switch {
	case sh.discard:
	case sh.dup:
		out = append(out, g1...)
		out = append(out, g2...)
		out = append(out, g1...)
	default: // swap
		out = append(out, g1...)
		out = append(out, g2...)
	}
	if len(s.slots)+len(out) > MaxStackSlots {
		s.log.Fatalf(diag.Limit, "operand stack exceeds %d slots", MaxStackSlots)
		return diag.ErrAborted
	}
	s.slots = append(s.slots, out...)
	s.touch()
	return nil
}

// take removes the top n slots as a group. Missing slots are an underflow
// and are substituted with Error. A group whose bottom slot is the Top half
// of a value below it splits that value.
func (s *OperandStack) take(op string, n int) []frame.Element {
	group := make([]frame.Element, n)
	have := min(n, len(s.slots))
	if have < n {
		s.log.Errorf(diag.TypeVerification, "%s: stack underflow, need %d slot(s), have %d", op, n, have)
		for i := range group {
			group[i] = frame.Error
		}
	}
	copy(group[n-have:], s.slots[len(s.slots)-have:])
	s.slots = s.slots[:len(s.slots)-have]

	if group[0] == frame.Top && len(s.slots) > 0 && s.slots[len(s.slots)-1].IsTwoSlot() {
		s.log.Errorf(diag.TypeVerification, "%s splits a two-slot value", op)
		s.slots[len(s.slots)-1] = frame.Error
		group[0] = frame.Error
	}
	return group
}

// SetDeclared records the .limit stack ceiling.
func (s *OperandStack) SetDeclared(n int) { s.declared = n }

// Declared returns the .limit stack ceiling, or -1.
func (s *OperandStack) Declared() int { return s.declared }

// Required returns the deepest stack seen.
func (s *OperandStack) Required() int { return s.max }

// Max returns the value reported onward: the larger of the declared ceiling
// and the requirement. A ceiling below the requirement is reported.
func (s *OperandStack) Max() int {
	if s.declared >= 0 && s.declared < s.max {
		s.log.Warnf(diag.LimitBelowActual, diag.Limit,
			"declared ceiling lower than required: .limit stack %d, need %d", s.declared, s.max)
	}
	return max(s.declared, s.max)
}
