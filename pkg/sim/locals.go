package sim

import (
	"github.com/chazu/jasm/pkg/diag"
	"github.com/chazu/jasm/pkg/frame"
)

// MaxLocalSlots is the largest local variable array a method can declare.
const MaxLocalSlots = 65536

type usage struct {
	read, written bool
	param         bool
	line          int // first access
}

// LocalVars is the simulated local variable array. Slots are absolute;
// two-slot values are followed by Top.
type LocalVars struct {
	slots     []frame.Element
	highWater int // one past the highest slot ever written or materialized
	declared  int // -1 when no .limit locals was given
	receiver  bool
	params    []frame.Element
	usage     map[int]*usage
	log       *diag.Log
}

// NewLocalVars sets up the entry locals for a method: the receiver in slot 0
// unless static, then the parameters.
func NewLocalVars(log *diag.Log, static bool, params []frame.Element) *LocalVars {
	lv := &LocalVars{
		declared: -1,
		receiver: !static,
		params:   params,
		usage:    make(map[int]*usage),
		log:      log,
	}
	if lv.receiver {
		lv.slots = append(lv.slots, frame.Object)
	}
	for _, p := range params {
		lv.slots = append(lv.slots, frame.Expand(p)...)
	}
	for i := range lv.slots {
		if lv.slots[i] != frame.Top {
			lv.usage[i] = &usage{written: true, param: true}
		}
	}
	lv.highWater = len(lv.slots)
	return lv
}

// Entry returns the locals in effect at method entry.
func (lv *LocalVars) Entry() frame.Frame {
	var slots []frame.Element
	if lv.receiver {
		slots = append(slots, frame.Object)
	}
	for _, p := range lv.params {
		slots = append(slots, frame.Expand(p)...)
	}
	return frame.Of(slots...)
}

// Frame snapshots the current locals.
func (lv *LocalVars) Frame() frame.Frame { return frame.Of(lv.slots...).Trimmed() }

// Reset replaces the current locals with f.
func (lv *LocalVars) Reset(f frame.Frame) {
	lv.slots = f.Slots()
	if n := f.Len(); n > lv.highWater {
		lv.highWater = n
	}
}

// Absolute translates a relative parameter index ($n) to an absolute slot,
// accounting for the receiver and two-slot parameters.
func (lv *LocalVars) Absolute(rel int) (int, error) {
	if rel < 0 || rel >= len(lv.params) {
		return 0, diag.Errorf(diag.Syntax, "parameter $%d out of range (method has %d)", rel, len(lv.params))
	}
	abs := 0
	if lv.receiver {
		abs = 1
	}
	for _, p := range lv.params[:rel] {
		abs += p.Slots()
	}
	return abs, nil
}

func (lv *LocalVars) at(i int) frame.Element {
	if i < len(lv.slots) {
		return lv.slots[i]
	}
	return frame.Unused
}

func (lv *LocalVars) set(i int, e frame.Element) {
	for len(lv.slots) <= i {
		lv.slots = append(lv.slots, frame.Unused)
	}
	lv.slots[i] = e
}

func (lv *LocalVars) note(i, line int) *usage {
	u, ok := lv.usage[i]
	if !ok {
		u = &usage{line: line}
		lv.usage[i] = u
	}
	return u
}

// Load reads slot i expecting e. Reading at or beyond the high-water mark,
// or a slot holding another type, is an error; the slot is then
// materialized as e so analysis can continue.
func (lv *LocalVars) Load(i int, e frame.Element, line int) error {
	if err := checkIndex(i, e); err != nil {
		lv.log.ReportErr(err)
		return err
	}
	lv.note(i, line).read = true

	var err error
	got := lv.at(i)
	switch {
	case i+e.Slots() > lv.highWater:
		err = diag.Errorf(diag.TypeVerification, "local %d read before any store", i)
		lv.note(i, line).written = true
	case got == e && (!e.IsTwoSlot() || lv.at(i+1) == frame.Top):
		return nil
	case got == frame.Unused:
		err = diag.Errorf(diag.TypeVerification, "local %d is not assigned on every path here", i)
	case got == frame.Error:
		err = diag.Errorf(diag.TypeVerification, "local %d holds conflicting types here", i)
	default:
		err = diag.Errorf(diag.TypeVerification, "local %d is %s, expected %s", i, got, e)
	}
	lv.log.ReportErr(err)
	lv.write(i, e)
	return err
}

// Store writes e to slot i, extending the high-water mark.
func (lv *LocalVars) Store(i int, e frame.Element, line int) error {
	if err := checkIndex(i, e); err != nil {
		lv.log.ReportErr(err)
		return err
	}
	lv.note(i, line).written = true
	lv.write(i, e)
	return nil
}

func (lv *LocalVars) write(i int, e frame.Element) {
	// overwriting either half of a two-slot value invalidates the other half
	if i > 0 && lv.at(i) == frame.Top && lv.at(i-1).IsTwoSlot() {
		lv.set(i-1, frame.Unused)
	}
	end := i + e.Slots()
	if lv.at(end-1).IsTwoSlot() {
		lv.set(end, frame.Unused)
	}
	for j, x := range frame.Expand(e) {
		lv.set(i+j, x)
	}
	if end > lv.highWater {
		lv.highWater = end
	}
}

func checkIndex(i int, e frame.Element) error {
	if i < 0 || i+e.Slots() > MaxLocalSlots {
		return diag.Errorf(diag.Limit, "local index %d out of range", i)
	}
	return nil
}

// SetDeclared records the .limit locals ceiling.
func (lv *LocalVars) SetDeclared(n int) { lv.declared = n }

// Declared returns the .limit locals ceiling, or -1.
func (lv *LocalVars) Declared() int { return lv.declared }

// Required returns the number of local slots the method needs.
func (lv *LocalVars) Required() int { return lv.highWater }

// Max returns the larger of the declared ceiling and the requirement,
// reporting a ceiling below the requirement.
func (lv *LocalVars) Max() int {
	if lv.declared >= 0 && lv.declared < lv.highWater {
		lv.log.Warnf(diag.LimitBelowActual, diag.Limit,
			"declared ceiling lower than required: .limit locals %d, need %d", lv.declared, lv.highWater)
	}
	return max(lv.declared, lv.highWater)
}

// CheckUsage reports locals written but never read and read but never
// written. Parameters are exempt from the first.
func (lv *LocalVars) CheckUsage() {
	for i := 0; i < lv.highWater; i++ {
		u, ok := lv.usage[i]
		if !ok {
			continue
		}
		switch {
		case u.written && !u.read && !u.param:
			lv.log.WarnAt(u.line, diag.UnusedLocal, diag.Usage, "local %d is written but never read", i)
		case u.read && !u.written:
			lv.log.WarnAt(u.line, diag.UnusedLocal, diag.Usage, "local %d is read but never written", i)
		}
	}
}
