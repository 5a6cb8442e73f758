package compiler

import (
	"errors"
	"fmt"

	"github.com/chazu/jasm/pkg/bytecode"
	"github.com/chazu/jasm/pkg/version"
)

// ErrUnknownMnemonic is returned by resolvers for names they cannot expand.
var ErrUnknownMnemonic = errors.New("unknown mnemonic")

// ResolutionKind says how a mnemonic was expanded.
type ResolutionKind uint8

const (
	Single ResolutionKind = iota // a catalog entry
	Alias                        // another name for a catalog entry
	Macro                        // a fixed sequence of operations
)

func (k ResolutionKind) String() string {
	switch k {
	case Single:
		return "single"
	case Alias:
		return "alias"
	case Macro:
		return "macro"
	}
	return fmt.Sprintf("ResolutionKind(%d)", k)
}

// Step is one concrete operation of a resolution.
type Step struct {
	Op *bytecode.OpInfo
	// Args are fixed operand words. When Operands is set the line's own
	// operands are used instead.
	Args     []string
	Operands bool
}

// Resolution is the expansion of one mnemonic.
type Resolution struct {
	Kind  ResolutionKind
	Steps []Step
	// Feature is the availability of the mnemonic itself, on top of each
	// step's own.
	Feature version.Range
}

// OpResolver expands mnemonics into concrete operations.
type OpResolver interface {
	Resolve(mnemonic string) (Resolution, error)
}

type aliasDef struct {
	target  string
	feature version.Range
}

// MacroStep is one operation of a macro definition.
type MacroStep struct {
	Name     string
	Args     []string
	Operands bool // takes the operands written after the macro
}

type macroDef struct {
	steps   []MacroStep
	feature version.Range
}

// CatalogResolver resolves catalog names directly, plus a table of aliases
// and macros.
type CatalogResolver struct {
	catalog *bytecode.Catalog
	aliases map[string]aliasDef
	macros  map[string]macroDef
}

// NewCatalogResolver returns a resolver over c with the standard aliases
// and macros. A nil catalog means bytecode.Default().
func NewCatalogResolver(c *bytecode.Catalog) *CatalogResolver {
	if c == nil {
		c = bytecode.Default()
	}
	r := &CatalogResolver{
		catalog: c,
		aliases: make(map[string]aliasDef),
		macros:  make(map[string]macroDef),
	}

	for alias, target := range map[string]string{
		"itol": "i2l", "itof": "i2f", "itod": "i2d",
		"ltoi": "l2i", "ltof": "l2f", "ltod": "l2d",
		"ftoi": "f2i", "ftol": "f2l", "ftod": "f2d",
		"dtoi": "d2i", "dtol": "d2l", "dtof": "d2f",
		"itob": "i2b", "itoc": "i2c", "itos": "i2s",
		"goto_near": "goto",
	} {
		r.AddAlias(alias, target, version.Always)
	}

	r.AddMacro("inot", version.Always, MacroStep{Name: "iconst_m1"}, MacroStep{Name: "ixor"})
	r.AddMacro("lnot", version.Always, MacroStep{Name: "ldc2_w", Args: []string{"-1"}}, MacroStep{Name: "lxor"})
	for _, cond := range []string{"eq", "ne", "lt", "ge", "gt", "le"} {
		r.AddMacro("if_lcmp"+cond, version.Always,
			MacroStep{Name: "lcmp"}, MacroStep{Name: "if" + cond, Operands: true})
	}
	return r
}

// AddAlias makes alias another name for target, which may itself be an
// alias. feature restricts where the alias may be used.
func (r *CatalogResolver) AddAlias(alias, target string, feature version.Range) {
	r.aliases[alias] = aliasDef{target: target, feature: feature}
}

// AddMacro defines name as a sequence of catalog operations.
func (r *CatalogResolver) AddMacro(name string, feature version.Range, steps ...MacroStep) {
	r.macros[name] = macroDef{steps: steps, feature: feature}
}

// Resolve implements OpResolver.
func (r *CatalogResolver) Resolve(mnemonic string) (Resolution, error) {
	if op, ok := r.catalog.Lookup(mnemonic); ok {
		return Resolution{
			Kind:    Single,
			Steps:   []Step{{Op: op, Operands: true}},
			Feature: version.Always,
		}, nil
	}

	if _, ok := r.aliases[mnemonic]; ok {
		op, feature, err := r.followAlias(mnemonic)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Kind: Alias, Steps: []Step{{Op: op, Operands: true}}, Feature: feature}, nil
	}

	if m, ok := r.macros[mnemonic]; ok {
		res := Resolution{Kind: Macro, Feature: m.feature}
		for _, s := range m.steps {
			op, ok := r.catalog.Lookup(s.Name)
			if !ok {
				return Resolution{}, fmt.Errorf("macro %s: %w: %s", mnemonic, ErrUnknownMnemonic, s.Name)
			}
			res.Steps = append(res.Steps, Step{Op: op, Args: s.Args, Operands: s.Operands})
		}
		return res, nil
	}

	return Resolution{}, fmt.Errorf("%w: %s", ErrUnknownMnemonic, mnemonic)
}

// followAlias walks an alias chain to its catalog entry, narrowing the
// feature range at each hop. Overlong or cyclic chains fail when the range
// nesting limit is reached.
func (r *CatalogResolver) followAlias(name string) (*bytecode.OpInfo, version.Range, error) {
	feature := version.Always
	for {
		a, ok := r.aliases[name]
		if !ok {
			op, ok := r.catalog.Lookup(name)
			if !ok {
				return nil, feature, fmt.Errorf("%w: %s", ErrUnknownMnemonic, name)
			}
			return op, feature, nil
		}
		var err error
		feature, err = feature.Intersect(a.feature)
		if err != nil {
			return nil, feature, fmt.Errorf("alias %s: %w", name, err)
		}
		name = a.target
	}
}
