// Package manifest handles jasm.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/chazu/jasm/compiler"
	"github.com/chazu/jasm/pkg/bytecode"
	"github.com/chazu/jasm/pkg/diag"
	"github.com/chazu/jasm/pkg/version"
)

// FileName is the name of the project configuration file.
const FileName = "jasm.toml"

// Manifest represents a jasm.toml project configuration.
type Manifest struct {
	Project   Project           `toml:"project"`
	Source    Source            `toml:"source"`
	Assembler Assembler         `toml:"assembler"`
	Warnings  map[string]bool   `toml:"warnings"`
	Aliases   map[string]string `toml:"aliases"`
	Macros    map[string]Macro  `toml:"macros"`

	// Dir is the directory containing the jasm.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures source file locations.
type Source struct {
	Dirs      []string `toml:"dirs"`
	Extension string   `toml:"extension"`
}

// Assembler configures assembly.
type Assembler struct {
	Target    string `toml:"target"`
	MaxErrors int    `toml:"max-errors"`
	Output    string `toml:"output"`
}

// Macro is a project-defined instruction sequence. Each step is a mnemonic
// with fixed operands; a trailing "..." passes the operands written after
// the macro instead.
type Macro struct {
	Steps []string `toml:"steps"`
	Since string   `toml:"since"`
}

// Load parses a jasm.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{"src"}
	}
	if m.Source.Extension == "" {
		m.Source.Extension = ".j"
	}
	if m.Assembler.Output == "" {
		m.Assembler.Output = "out"
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a jasm.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, filepath.Join(m.Dir, d))
	}
	return paths
}

// OutputPath returns the absolute path of the output directory.
func (m *Manifest) OutputPath() string {
	if filepath.IsAbs(m.Assembler.Output) {
		return m.Assembler.Output
	}
	return filepath.Join(m.Dir, m.Assembler.Output)
}

// SourceFiles lists the assembler sources under the source directories,
// sorted by path. Missing directories are skipped.
func (m *Manifest) SourceFiles() ([]string, error) {
	var files []string
	for _, dir := range m.SourceDirPaths() {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(path, m.Source.Extension) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", dir, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

// Apply configures opts from the manifest: target version, error limit,
// warning classes, aliases and macros. Settings already present in opts
// are kept.
func (m *Manifest) Apply(opts *compiler.Options) error {
	if m.Assembler.Target != "" && opts.Target == (version.Version{}) {
		v, err := version.Parse(m.Assembler.Target)
		if err != nil {
			return fmt.Errorf("%s: [assembler] target: %w", FileName, err)
		}
		opts.Target = v
	}
	if m.Assembler.MaxErrors != 0 && opts.MaxErrors == 0 {
		opts.MaxErrors = m.Assembler.MaxErrors
	}

	known := diag.DefaultClasses()
	for name, on := range m.Warnings {
		c := diag.Class(name)
		if _, ok := known[c]; !ok {
			return fmt.Errorf("%s: [warnings] unknown class %q", FileName, name)
		}
		if opts.Classes == nil {
			opts.Classes = make(map[diag.Class]bool)
		}
		if _, set := opts.Classes[c]; !set {
			opts.Classes[c] = on
		}
	}

	if len(m.Aliases) == 0 && len(m.Macros) == 0 {
		return nil
	}
	if opts.Resolver != nil {
		return fmt.Errorf("%s: aliases and macros need the catalog resolver", FileName)
	}
	r, err := m.Resolver(opts.Catalog)
	if err != nil {
		return err
	}
	opts.Resolver = r
	return nil
}

// Resolver returns a catalog resolver extended with the manifest's aliases
// and macros.
func (m *Manifest) Resolver(c *bytecode.Catalog) (*compiler.CatalogResolver, error) {
	r := compiler.NewCatalogResolver(c)
	for alias, target := range m.Aliases {
		r.AddAlias(alias, target, version.Always)
	}

	for name, def := range m.Macros {
		feature := version.Always
		if def.Since != "" {
			v, err := version.Parse(def.Since)
			if err != nil {
				return nil, fmt.Errorf("%s: macro %s: %w", FileName, name, err)
			}
			feature = version.Since(name, v)
		}
		if len(def.Steps) == 0 {
			return nil, fmt.Errorf("%s: macro %s has no steps", FileName, name)
		}
		steps := make([]compiler.MacroStep, 0, len(def.Steps))
		for i, s := range def.Steps {
			step, ok := parseStep(s)
			if !ok {
				return nil, fmt.Errorf("%s: macro %s: step %d is empty", FileName, name, i+1)
			}
			steps = append(steps, step)
		}
		r.AddMacro(name, feature, steps...)
	}
	return r, nil
}

func parseStep(s string) (compiler.MacroStep, bool) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return compiler.MacroStep{}, false
	}
	step := compiler.MacroStep{Name: fields[0], Args: fields[1:]}
	if n := len(step.Args); n > 0 && step.Args[n-1] == "..." {
		step.Args = nil
		step.Operands = true
	}
	return step, true
}
