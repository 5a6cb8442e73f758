// Package compiler assembles directive-based JVM assembler source into
// verified method bodies. Each method body is driven through a strict
// directive state machine; every instruction is resolved, version-checked
// and simulated against the operand stack and local variables before it is
// accepted.
package compiler

import (
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/jasm/pkg/bytecode"
	"github.com/chazu/jasm/pkg/diag"
	"github.com/chazu/jasm/pkg/version"
)

var logger = commonlog.GetLogger("jasm.compiler")

// Emitter consumes verified method bodies.
type Emitter interface {
	Emit(body *bytecode.MethodBody) error
}

// Options configure an Assembler.
type Options struct {
	// Target is the class file version used until a .version directive.
	Target version.Version
	// MaxErrors is the per-method error flood threshold. Zero means
	// diag.DefaultMaxErrors; negative disables the check.
	MaxErrors int
	// Classes overrides the default warning classes.
	Classes  map[diag.Class]bool
	Catalog  *bytecode.Catalog
	Resolver OpResolver
	Emitter  Emitter
}

// Result is the outcome of assembling one unit. Bodies holds every method
// assembled, including failed ones; they are emitted only when the unit has
// no errors.
type Result struct {
	Class   string
	Super   string
	Version version.Version
	Bodies  []*bytecode.MethodBody
	Log     *diag.Log
}

// OK reports whether the unit assembled without errors.
func (r *Result) OK() bool { return r.Log.ErrorCount() == 0 && !r.Log.Aborted() }

// Body returns the assembled method with the given name, or nil.
func (r *Result) Body(name string) *bytecode.MethodBody {
	for _, b := range r.Bodies {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// Assembler assembles one compilation unit.
type Assembler struct {
	opts    Options
	log     *diag.Log
	version version.Version
	class   string
	super   string
	method  *methodAsm
	bodies  []*bytecode.MethodBody
}

// NewAssembler returns an assembler for the unit read from file.
func NewAssembler(file string, opts Options) *Assembler {
	if opts.Catalog == nil {
		opts.Catalog = bytecode.Default()
	}
	if opts.Resolver == nil {
		opts.Resolver = NewCatalogResolver(opts.Catalog)
	}
	if opts.Target == (version.Version{}) {
		opts.Target = version.Default
	}
	switch {
	case opts.MaxErrors == 0:
		opts.MaxErrors = diag.DefaultMaxErrors
	case opts.MaxErrors < 0:
		opts.MaxErrors = 0
	}

	log := diag.NewLog(file, opts.MaxErrors)
	for c, on := range opts.Classes {
		log.SetClass(c, on)
	}
	return &Assembler{opts: opts, log: log, version: opts.Target}
}

// Log returns the unit's diagnostic log.
func (a *Assembler) Log() *diag.Log { return a.log }

// Assemble runs every line through the unit and method state machines.
// The returned error is diag.ErrAborted after an error flood, or an emitter
// failure; assembly errors are reported through Result.Log.
func (a *Assembler) Assemble(lines []Line) (*Result, error) {
	for _, ln := range lines {
		if a.log.Aborted() {
			break
		}
		a.log.SetLine(ln.Num)
		if badTokens(a.log, ln) {
			continue
		}

		if a.method != nil {
			a.method.handle(ln)
			if a.method.done {
				a.endMethod()
			}
			continue
		}
		a.unitLine(ln)
	}

	if a.method != nil && !a.log.Aborted() {
		a.log.Errorf(diag.Structural, "method %s has no .end method", a.method.name)
		a.method.finish()
		a.endMethod()
	}

	res := &Result{
		Class:   a.class,
		Super:   a.super,
		Version: a.version,
		Bodies:  a.bodies,
		Log:     a.log,
	}
	if a.log.Aborted() {
		return res, diag.ErrAborted
	}
	if !res.OK() || a.opts.Emitter == nil {
		return res, nil
	}
	for _, b := range a.bodies {
		if err := a.opts.Emitter.Emit(b); err != nil {
			return res, fmt.Errorf("compiler: emit %s: %w", b.Name, err)
		}
	}
	return res, nil
}

// Assemble tokenizes src and assembles it as one unit.
func Assemble(file, src string, opts Options) (*Result, error) {
	return NewAssembler(file, opts).Assemble(Tokenize(src))
}

func badTokens(log *diag.Log, ln Line) bool {
	bad := false
	for _, t := range ln.Tokens {
		if t.Type == TokenError {
			log.Errorf(diag.Syntax, "%s", t.Literal)
			bad = true
		}
	}
	if ln.Keyword == "" && !bad {
		log.Errorf(diag.Syntax, "line does not start with a directive or instruction")
		bad = true
	}
	return bad
}

// unitLine handles a line outside any method body.
func (a *Assembler) unitLine(ln Line) {
	words := ln.Words()
	switch ln.Keyword {
	case ".version":
		s := strings.Join(words, ".")
		v, err := version.Parse(s)
		if err != nil {
			a.log.Errorf(diag.Syntax, ".version: %v", err)
			return
		}
		a.version = v

	case ".class", ".interface":
		if len(words) == 0 {
			a.log.Errorf(diag.Syntax, "%s: missing class name", ln.Keyword)
			return
		}
		a.class = words[len(words)-1]

	case ".super":
		if len(words) != 1 {
			a.log.Errorf(diag.Syntax, ".super: want one class name")
			return
		}
		a.super = words[0]

	case ".method":
		a.startMethod(ln)

	case ".end":
		if len(words) > 0 && words[0] == "method" {
			a.log.Errorf(diag.Structural, ".end method outside a method")
		}

	default:
		if ln.IsLabel() || ln.Keyword[0] != '.' {
			a.log.Errorf(diag.Structural, "%s outside a method", ln.Keyword)
			return
		}
		logger.Debugf("skipping %s at line %d", ln.Keyword, ln.Num)
	}
}

var accessFlags = map[string]bool{
	"public": true, "private": true, "protected": true, "static": true,
	"final": true, "synchronized": true, "bridge": true, "varargs": true,
	"native": true, "abstract": true, "strict": true, "synthetic": true,
}

// startMethod parses ".method flags... name descriptor". The descriptor may
// be attached to the name.
func (a *Assembler) startMethod(ln Line) {
	words := ln.Words()
	flags := make(map[string]bool)
	for len(words) > 0 && accessFlags[words[0]] {
		flags[words[0]] = true
		words = words[1:]
	}

	var name, desc string
	switch len(words) {
	case 1:
		if i := strings.IndexByte(words[0], '('); i > 0 {
			name, desc = words[0][:i], words[0][i:]
		}
	case 2:
		name, desc = words[0], words[1]
	}
	if name == "" {
		a.log.Errorf(diag.Syntax, ".method: want [flags] name descriptor")
		name = "?"
	}

	mt, err := bytecode.ParseMethodDescriptor(desc)
	if err != nil && desc != "" {
		a.log.Errorf(diag.Syntax, ".method %s: %v", name, err)
	}

	a.log.StartMethod()
	a.method = newMethodAsm(a, name, desc, mt, flags)
	logger.Debugf("method %s%s", name, desc)
}

func (a *Assembler) endMethod() {
	m := a.method
	a.method = nil
	a.bodies = append(a.bodies, m.body)
	logger.Debugf("method %s: %d ops, max stack %d, max locals %d, %d error(s)",
		m.name, m.body.OpCount(), m.body.MaxStack, m.body.MaxLocals, a.log.MethodErrors())
}
