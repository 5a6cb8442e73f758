package bytecode

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/chazu/jasm/pkg/version"
)

// sharedOpcodes lists historical mnemonics that share an opcode with a
// canonical instruction.
var sharedOpcodes = map[string]string{
	"invokenonvirtual": "invokespecial",
}

// ErrNoEncoding is returned when no form of an instruction covers the
// requested operand values.
var ErrNoEncoding = errors.New("bytecode: no encoding covers operands")

// Catalog indexes instruction encodings by opcode and name.
type Catalog struct {
	byOpcode [256]*OpInfo
	byName   map[string]*OpInfo
	forms    map[string][]*OpInfo // base name -> compact, wide and alternate forms
}

// NewCatalog validates entries and builds a catalog. All failures wrap
// version.ErrStructural.
func NewCatalog(entries []OpInfo) (*Catalog, error) {
	c := &Catalog{
		byName: make(map[string]*OpInfo, len(entries)),
		forms:  make(map[string][]*OpInfo),
	}

	for i := range entries {
		e := entries[i]
		if e.Name == "" {
			return nil, fmt.Errorf("%w: entry %d has no name", version.ErrStructural, i)
		}
		if _, dup := c.byName[e.Name]; dup {
			return nil, fmt.Errorf("%w: mnemonic %s defined twice", version.ErrStructural, e.Name)
		}
		c.byName[e.Name] = &e
	}

	// wide placeholders inherit from their base
	for name, e := range c.byName {
		if !e.Wide || e.Length != 0 {
			continue
		}
		base, ok := c.byName[e.Base]
		if !ok {
			return nil, fmt.Errorf("%w: %s: unknown base %s", version.ErrStructural, name, e.Base)
		}
		w := widen(*e, base)
		c.byName[name] = &w
	}

	names := make([]string, 0, len(c.byName))
	for name := range c.byName {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		e := c.byName[name]
		pops, pushes, err := parseEffect(e.Effect)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", version.ErrStructural, name, err)
		}
		e.pops, e.pushes = pops, pushes

		if e.Base != "" {
			base, ok := c.byName[e.Base]
			if !ok {
				return nil, fmt.Errorf("%w: %s: unknown base %s", version.ErrStructural, name, e.Base)
			}
			if base.Base != "" {
				return nil, fmt.Errorf("%w: %s: base %s is itself an alternate", version.ErrStructural, name, e.Base)
			}
			if !e.Feature.Within(base.Feature) {
				return nil, fmt.Errorf("%w: %s is available where its base %s is not (%s vs %s)",
					version.ErrStructural, name, base.Name, e.Feature, base.Feature)
			}
			c.forms[e.Base] = append(c.forms[e.Base], e)
		}

		if e.Wide {
			continue
		}
		if prev := c.byOpcode[e.Opcode]; prev != nil {
			switch {
			case sharedOpcodes[e.Name] == prev.Name:
				continue
			case sharedOpcodes[prev.Name] == e.Name:
				c.byOpcode[e.Opcode] = e
				continue
			}
			return nil, fmt.Errorf("%w: opcode 0x%02X used by both %s and %s",
				version.ErrStructural, e.Opcode, prev.Name, e.Name)
		}
		c.byOpcode[e.Opcode] = e
	}
	return c, nil
}

var defaultCatalog *Catalog

func init() {
	c, err := NewCatalog(jvmOps())
	if err != nil {
		panic(err)
	}
	defaultCatalog = c
}

// Default returns the JVM instruction catalog.
func Default() *Catalog { return defaultCatalog }

// Lookup returns the encoding named name.
func (c *Catalog) Lookup(name string) (*OpInfo, bool) {
	e, ok := c.byName[name]
	return e, ok
}

// ByOpcode returns the canonical encoding for opcode.
func (c *Catalog) ByOpcode(opcode uint8) (*OpInfo, bool) {
	e := c.byOpcode[opcode]
	return e, e != nil
}

// Forms returns the compact, wide and alternate forms of base, sorted by name.
func (c *Catalog) Forms(base string) []*OpInfo {
	return append([]*OpInfo(nil), c.forms[base]...)
}

// Names returns every mnemonic in the catalog, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.byName))
	for name := range c.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of encodings.
func (c *Catalog) Len() int { return len(c.byName) }

// SelectLocal picks the shortest encoding of the local variable instruction
// base that covers index at v: the compact form for indices 0-3, the
// one-byte generic form up to 255, else the wide form.
func (c *Catalog) SelectLocal(base string, index int, v version.Version) (*OpInfo, error) {
	b, err := c.localBase(base)
	if err != nil {
		return nil, err
	}
	if index < 0 || index > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %s local index %d out of range", ErrNoEncoding, base, index)
	}

	for _, f := range c.forms[b.Name] {
		if f.Implied == index && f.Feature.IsSupported(v) {
			return f, nil
		}
	}
	if index <= math.MaxUint8 {
		return b, nil
	}
	return c.wideForm(b)
}

// SelectIncrement picks the iinc encoding for index and delta. The wide
// form is needed when index exceeds a byte or delta a signed byte.
func (c *Catalog) SelectIncrement(base string, index, delta int, v version.Version) (*OpInfo, error) {
	b, err := c.localBase(base)
	if err != nil {
		return nil, err
	}
	if b.Kind != ArgIncr {
		return nil, fmt.Errorf("bytecode: %s is not an increment", base)
	}
	if index < 0 || index > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %s local index %d out of range", ErrNoEncoding, base, index)
	}
	if delta < math.MinInt16 || delta > math.MaxInt16 {
		return nil, fmt.Errorf("%w: %s delta %d out of range", ErrNoEncoding, base, delta)
	}
	if index <= math.MaxUint8 && delta >= math.MinInt8 && delta <= math.MaxInt8 {
		return b, nil
	}
	return c.wideForm(b)
}

func (c *Catalog) localBase(name string) (*OpInfo, error) {
	e, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("bytecode: unknown instruction %s", name)
	}
	if e.Base != "" {
		e = c.byName[e.Base]
	}
	if e.Kind != ArgLocal && e.Kind != ArgIncr {
		return nil, fmt.Errorf("bytecode: %s takes no local index", name)
	}
	return e, nil
}

func (c *Catalog) wideForm(b *OpInfo) (*OpInfo, error) {
	for _, f := range c.forms[b.Name] {
		if f.Wide {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %s has no wide form", ErrNoEncoding, b.Name)
}
