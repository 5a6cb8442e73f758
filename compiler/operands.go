package compiler

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/chazu/jasm/pkg/bytecode"
	"github.com/chazu/jasm/pkg/diag"
	"github.com/chazu/jasm/pkg/frame"
	"github.com/chazu/jasm/pkg/version"
)

// operation is one concrete operation with its operands parsed.
type operation struct {
	op      *bytecode.OpInfo
	args    []bytecode.Arg
	local   int           // absolute local index
	field   frame.Element // field type for field access
	method  bytecode.MethodType
	konst   frame.Element // loaded constant type
	dims    int
	targets []string
}

var arrayTypes = map[string]int64{
	"boolean": 4, "char": 5, "float": 6, "double": 7,
	"byte": 8, "short": 9, "int": 10, "long": 11,
}

// operandReader walks an operation's operand tokens, reporting syntax
// errors against the operation.
type operandReader struct {
	m    *methodAsm
	op   *bytecode.OpInfo
	toks []Token
	i    int
	bad  bool
}

func (r *operandReader) errorf(format string, args ...any) {
	if !r.bad {
		r.m.log.Errorf(diag.Syntax, r.op.Name+": "+format, args...)
	}
	r.bad = true
}

func (r *operandReader) more() bool { return r.i < len(r.toks) }

func (r *operandReader) peek() string {
	if r.more() {
		return r.toks[r.i].Literal
	}
	return ""
}

func (r *operandReader) next(what string) Token {
	if !r.more() {
		r.errorf("missing %s", what)
		return Token{}
	}
	t := r.toks[r.i]
	r.i++
	return t
}

func (r *operandReader) word(what string) string { return r.next(what).Literal }

func (r *operandReader) number(what string, lo, hi int64) int64 {
	s := r.word(what)
	if r.bad {
		return 0
	}
	n, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		r.errorf("bad %s %q", what, s)
		return 0
	}
	if n < lo || n > hi {
		r.errorf("%s %d out of range [%d, %d]", what, n, lo, hi)
		return 0
	}
	return n
}

// local reads a local index: an absolute number or $n for the n'th
// parameter.
func (r *operandReader) local() int {
	s := r.word("local index")
	if r.bad {
		return 0
	}
	if rel, ok := strings.CutPrefix(s, "$"); ok {
		n, err := strconv.Atoi(rel)
		if err != nil {
			r.errorf("bad parameter reference %q", s)
			return 0
		}
		abs, err := r.m.sim.Locals.Absolute(n)
		if err != nil {
			r.m.log.ReportErr(err)
			r.bad = true
			return 0
		}
		return abs
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		r.errorf("bad local index %q", s)
		return 0
	}
	return n
}

func (r *operandReader) target() string {
	name := r.word("label")
	if !r.bad {
		r.m.sim.Labels.Ref(name, r.m.line)
	}
	return name
}

func (r *operandReader) end() {
	if r.more() && !r.bad {
		r.errorf("unexpected operand %q", r.peek())
	}
}

// operands parses the operands of op, selecting the shortest encoding for
// local variable operations. It returns false after reporting an error.
func (m *methodAsm) operands(op *bytecode.OpInfo, toks []Token) (*operation, bool) {
	r := &operandReader{m: m, op: op, toks: toks}
	o := &operation{op: op}

	switch op.Kind {
	case bytecode.ArgNone:

	case bytecode.ArgLocal:
		if op.IsCompact() {
			o.local = op.Implied
			break
		}
		o.local = r.local()
		if r.bad {
			break
		}
		if !op.Wide {
			sel, err := m.cat.SelectLocal(op.Name, o.local, m.v)
			if err != nil {
				m.reportEncoding(op, err)
				return nil, false
			}
			o.op = sel
		}
		if !o.op.IsCompact() {
			o.args = []bytecode.Arg{{Int: int64(o.local)}}
		}

	case bytecode.ArgIncr:
		o.local = r.local()
		delta := r.number("increment", math.MinInt16, math.MaxInt16)
		if r.bad {
			break
		}
		if !op.Wide {
			sel, err := m.cat.SelectIncrement(op.Name, o.local, int(delta), m.v)
			if err != nil {
				m.reportEncoding(op, err)
				return nil, false
			}
			o.op = sel
		} else if o.local > math.MaxUint16 {
			r.errorf("local index %d out of range", o.local)
		}
		o.args = []bytecode.Arg{{Int: int64(o.local)}, {Int: delta}}

	case bytecode.ArgByte:
		o.args = []bytecode.Arg{{Int: r.number("value", math.MinInt8, math.MaxInt8)}}

	case bytecode.ArgShort:
		o.args = []bytecode.Arg{{Int: r.number("value", math.MinInt16, math.MaxInt16)}}

	case bytecode.ArgConst, bytecode.ArgConstWide:
		m.constant(r, o)

	case bytecode.ArgField:
		ref := r.word("field reference")
		desc := r.word("field descriptor")
		if r.bad {
			break
		}
		e, err := bytecode.FieldElement(desc)
		if err != nil {
			r.errorf("%v", err)
			break
		}
		o.field = e
		o.args = []bytecode.Arg{{Text: ref}, {Text: desc}}

	case bytecode.ArgMethod, bytecode.ArgInterface, bytecode.ArgDynamic:
		m.methodRef(r, o)

	case bytecode.ArgClass:
		o.args = []bytecode.Arg{{Text: r.word("class name")}}

	case bytecode.ArgMultiArray:
		desc := r.word("array descriptor")
		dims := r.number("dimensions", 1, 255)
		if r.bad {
			break
		}
		depth := len(desc) - len(strings.TrimLeft(desc, "["))
		if _, err := bytecode.FieldElement(desc); err != nil || depth == 0 {
			r.errorf("bad array descriptor %q", desc)
			break
		}
		if int(dims) > depth {
			r.errorf("%d dimensions for %d-dimensional %s", dims, depth, desc)
			break
		}
		o.dims = int(dims)
		o.args = []bytecode.Arg{{Text: desc}, {Int: dims}}

	case bytecode.ArgArrayType:
		name := r.word("array type")
		code, ok := arrayTypes[name]
		if !r.bad && !ok {
			r.errorf("unknown array type %q", name)
		}
		o.args = []bytecode.Arg{{Int: code, Text: name}}

	case bytecode.ArgBranch, bytecode.ArgBranchWide:
		t := r.target()
		o.targets = []string{t}
		o.args = []bytecode.Arg{{Label: t}}

	case bytecode.ArgTableSwitch:
		m.tableSwitch(r, o)

	case bytecode.ArgLookupSwitch:
		m.lookupSwitch(r, o)
	}

	r.end()
	return o, !r.bad
}

func (m *methodAsm) reportEncoding(op *bytecode.OpInfo, err error) {
	if errors.Is(err, bytecode.ErrNoEncoding) {
		m.log.Errorf(diag.Limit, "%s: %v", op.Name, err)
		return
	}
	m.log.ReportErr(err)
}

// constant parses an ldc operand and derives the type it loads: numbers
// by their suffix and form, "strings", method types, method handles,
// dynamic constants and class names.
func (m *methodAsm) constant(r *operandReader, o *operation) {
	wide := o.op.Kind == bytecode.ArgConstWide
	t := r.next("constant")
	if r.bad {
		return
	}
	s := t.Literal

	switch {
	case t.Type == TokenString:
		o.konst = frame.Object
		o.args = []bytecode.Arg{{Text: s}}
		if wide {
			r.errorf("string constant needs ldc")
		}
		return

	case s == "dynamic" || s == "Dynamic":
		name := r.word("dynamic constant name")
		desc := r.word("dynamic constant descriptor")
		if r.bad {
			return
		}
		e, err := bytecode.FieldElement(desc)
		if err != nil {
			r.errorf("%v", err)
			return
		}
		m.log.CheckSupported("dynamic constant", version.DynamicConstant, m.v)
		o.konst = e
		o.args = []bytecode.Arg{{Text: name}, {Text: desc}}
		for r.more() {
			o.args = append(o.args, bytecode.Arg{Text: r.word("bootstrap argument")})
		}

	case isNumeric(s):
		e, arg, ok := numericConstant(s, wide)
		if !ok {
			r.errorf("bad numeric constant %q", s)
			return
		}
		o.konst = e
		o.args = []bytecode.Arg{arg}

	case strings.HasPrefix(s, "("):
		if _, err := bytecode.ParseMethodDescriptor(s); err != nil {
			r.errorf("%v", err)
			return
		}
		m.log.CheckSupported("method type constant", version.LdcMethodHandle, m.v)
		o.konst = frame.Object
		o.args = []bytecode.Arg{{Text: s}}

	case strings.HasPrefix(s, "REF_"):
		m.log.CheckSupported("method handle constant", version.LdcMethodHandle, m.v)
		o.konst = frame.Object
		o.args = []bytecode.Arg{{Text: s}}

	default:
		m.log.CheckSupported("class constant", version.LdcClass, m.v)
		o.konst = frame.Object
		o.args = []bytecode.Arg{{Text: s}}
	}

	switch {
	case wide && !o.konst.IsTwoSlot():
		r.errorf("%s loads long or double constants only", o.op.Name)
	case !wide && o.konst.IsTwoSlot():
		r.errorf("%s cannot load a two-slot constant, use ldc2_w", o.op.Name)
	}
}

func isNumeric(s string) bool {
	switch s {
	case "NaN", "Infinity", "+Infinity", "-Infinity":
		return true
	}
	if s == "" {
		return false
	}
	c := s[0]
	if c == '-' || c == '+' {
		if len(s) == 1 {
			return false
		}
		c = s[1]
	}
	return c >= '0' && c <= '9' || c == '.'
}

// numericConstant types a number: integers are int, or long for ldc2_w or
// an L suffix; F and D suffixes pick float and double, other decimals are
// float, or double for ldc2_w.
func numericConstant(s string, wide bool) (frame.Element, bytecode.Arg, bool) {
	if n, err := strconv.ParseInt(s, 0, 64); err == nil {
		if wide {
			return frame.Long, bytecode.Arg{Int: n}, true
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return frame.Error, bytecode.Arg{}, false
		}
		return frame.Integer, bytecode.Arg{Int: n}, true
	}

	last := s[len(s)-1]
	body := s[:len(s)-1]
	switch last {
	case 'L', 'l':
		n, err := strconv.ParseInt(body, 0, 64)
		return frame.Long, bytecode.Arg{Int: n}, err == nil
	case 'F', 'f':
		_, err := strconv.ParseFloat(body, 32)
		return frame.Float, bytecode.Arg{Text: s}, err == nil
	case 'D', 'd':
		_, err := strconv.ParseFloat(body, 64)
		return frame.Double, bytecode.Arg{Text: s}, err == nil
	}
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return frame.Error, bytecode.Arg{}, false
	}
	if wide {
		return frame.Double, bytecode.Arg{Text: s}, true
	}
	return frame.Float, bytecode.Arg{Text: s}, true
}

// methodRef parses "owner/name(desc)" or "owner/name desc". invokeinterface
// takes an optional argument count; invokedynamic takes the call site name
// and bootstrap arguments.
func (m *methodAsm) methodRef(r *operandReader, o *operation) {
	ref := r.word("method reference")
	if r.bad {
		return
	}
	desc := ""
	if i := strings.IndexByte(ref, '('); i >= 0 {
		ref, desc = ref[:i], ref[i:]
	} else {
		desc = r.word("method descriptor")
	}
	if r.bad {
		return
	}
	mt, err := bytecode.ParseMethodDescriptor(desc)
	if err != nil {
		r.errorf("%v", err)
		return
	}
	o.method = mt
	o.args = []bytecode.Arg{{Text: ref}, {Text: desc}}

	switch o.op.Kind {
	case bytecode.ArgInterface:
		want := int64(mt.ParamSlots() + 1)
		if r.more() {
			n := r.number("argument count", 1, 255)
			if !r.bad && n != want {
				r.errorf("argument count %d does not match descriptor (%d)", n, want)
			}
		}
		o.args = append(o.args, bytecode.Arg{Int: want})
	case bytecode.ArgDynamic:
		for r.more() {
			o.args = append(o.args, bytecode.Arg{Text: r.word("bootstrap argument")})
		}
	}
}

// switchKey strips the ":" that may follow a key or default.
func (r *operandReader) switchKey(what string) string {
	s := strings.TrimSuffix(r.word(what), ":")
	if r.peek() == ":" {
		r.i++
	}
	return s
}

// tableSwitch parses "low L0 L1 ... default Ld". Args: low, default, then
// targets.
func (m *methodAsm) tableSwitch(r *operandReader, o *operation) {
	low := r.number("low bound", math.MinInt32, math.MaxInt32)
	var targets []string
	for r.more() && strings.TrimSuffix(r.peek(), ":") != "default" {
		targets = append(targets, r.target())
	}
	if r.bad {
		return
	}
	if len(targets) == 0 {
		r.errorf("no jump targets")
		return
	}
	if low+int64(len(targets))-1 > math.MaxInt32 {
		r.errorf("jump table overflows int")
		return
	}
	r.switchKey("default")
	def := r.target()
	if r.bad {
		return
	}

	o.args = []bytecode.Arg{{Int: low}, {Label: def}}
	for _, t := range targets {
		o.args = append(o.args, bytecode.Arg{Label: t})
	}
	o.targets = append([]string{def}, targets...)
}

// lookupSwitch parses "k0: L0 k1: L1 ... default: Ld". Pairs are sorted by
// key. Args: default, then key/label pairs.
func (m *methodAsm) lookupSwitch(r *operandReader, o *operation) {
	type pair struct {
		key   int64
		label string
	}
	var pairs []pair
	for r.more() && strings.TrimSuffix(r.peek(), ":") != "default" {
		ks := r.switchKey("key")
		k, err := strconv.ParseInt(ks, 0, 32)
		if err != nil {
			r.errorf("bad key %q", ks)
			return
		}
		pairs = append(pairs, pair{k, r.target()})
	}
	if r.bad {
		return
	}
	r.switchKey("default")
	def := r.target()
	if r.bad {
		return
	}

	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })
	for i := 1; i < len(pairs); i++ {
		if pairs[i].key == pairs[i-1].key {
			r.errorf("duplicate key %d", pairs[i].key)
			return
		}
	}

	o.args = []bytecode.Arg{{Label: def}}
	o.targets = []string{def}
	for _, p := range pairs {
		o.args = append(o.args, bytecode.Arg{Int: p.key, Label: p.label})
		o.targets = append(o.targets, p.label)
	}
}
