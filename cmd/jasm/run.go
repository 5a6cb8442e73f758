package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tebeka/atexit"
	"github.com/tliron/commonlog"

	"github.com/chazu/jasm/compiler"
	"github.com/chazu/jasm/compiler/hash"
	"github.com/chazu/jasm/manifest"
	"github.com/chazu/jasm/pkg/bytecode"
	"github.com/chazu/jasm/pkg/diag"
	"github.com/chazu/jasm/pkg/emit"
	"github.com/chazu/jasm/pkg/version"
	"github.com/chazu/jasm/server"

	_ "github.com/tliron/commonlog/simple"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

type cliFlags struct {
	verbose   bool
	target    string
	maxErrors int
	output    string
	lsp       bool
	list      bool
	hashes    bool
	listing   bool
	check     bool
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("jasm", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var f cliFlags
	fs.BoolVar(&f.verbose, "v", false, "Verbose output")
	fs.StringVar(&f.target, "target", "", "Class file version to assemble for (e.g. 52, 1.8, 17-preview)")
	fs.IntVar(&f.maxErrors, "max-errors", 0, "Errors per method before assembly is abandoned (negative: no limit)")
	fs.StringVar(&f.output, "o", "", "Write method records to this file")
	fs.BoolVar(&f.lsp, "lsp", false, "Start language server on stdio")
	fs.BoolVar(&f.list, "list", false, "List the instruction catalog and exit")
	fs.BoolVar(&f.hashes, "hash", false, "Print the content hash of each assembled method")
	fs.BoolVar(&f.listing, "S", false, "Print a listing of each assembled method")
	fs.BoolVar(&f.check, "check", false, "Verify only; write no output")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: jasm [options] [files...]\n\n")
		fmt.Fprintf(stderr, "Assembles and verifies method bodies. Without files, assembles the\n")
		fmt.Fprintf(stderr, "sources listed by the nearest %s.\n\n", manifest.FileName)
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  jasm Foo.j                  # verify, write Foo.jrec\n")
		fmt.Fprintf(stderr, "  jasm -target 50 -o out.jrec src/*.j\n")
		fmt.Fprintf(stderr, "  jasm -check -hash Foo.j     # print method hashes only\n")
		fmt.Fprintf(stderr, "  jasm -check -S Foo.j        # print listings with label frames\n")
		fmt.Fprintf(stderr, "  jasm -lsp                   # editor integration\n")
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	verbosity := 0
	if f.verbose {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	opts, m, err := configure(f)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	switch {
	case f.list:
		listCatalog(stdout, opts.Catalog)
		return exitOK
	case f.lsp:
		if err := server.NewLSP(opts).Run(); err != nil {
			fmt.Fprintf(stderr, "Server error: %v\n", err)
			return exitFailed
		}
		return exitOK
	}

	files := fs.Args()
	if len(files) == 0 && m != nil {
		files, err = m.SourceFiles()
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFailed
		}
	}
	if len(files) == 0 {
		fs.Usage()
		return exitUsage
	}

	b := &build{flags: f, opts: opts, manifest: m, stdout: stdout, stderr: stderr}
	if err := b.open(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailed
	}
	ok := true
	for _, file := range files {
		if !b.assemble(file) {
			ok = false
		}
	}
	if f.verbose {
		fmt.Fprintf(stdout, "%d file(s), %d method(s) written\n", len(files), b.written)
	}
	if !ok {
		return exitFailed
	}
	return exitOK
}

// configure merges flags over the nearest manifest. Flags win.
func configure(f cliFlags) (compiler.Options, *manifest.Manifest, error) {
	opts := compiler.Options{Catalog: bytecode.Default(), MaxErrors: f.maxErrors}
	if f.target != "" {
		v, err := version.Parse(f.target)
		if err != nil {
			return opts, nil, fmt.Errorf("-target: %w", err)
		}
		opts.Target = v
	}

	cwd, err := os.Getwd()
	if err != nil {
		return opts, nil, err
	}
	m, err := manifest.FindAndLoad(cwd)
	if err != nil {
		return opts, nil, err
	}
	if m != nil {
		if err := m.Apply(&opts); err != nil {
			return opts, nil, err
		}
	}
	return opts, m, nil
}

func listCatalog(w io.Writer, c *bytecode.Catalog) {
	for _, name := range c.Names() {
		op, _ := c.Lookup(name)
		wide := ""
		if op.Wide {
			wide = "wide "
		}
		fmt.Fprintf(w, "%-16s %s0x%02x  %-10s %s\n", name, wide, op.Opcode, op.Effect, op.Feature)
	}
}

// build assembles files one unit at a time. With -o every unit appends to
// one record file; otherwise each unit gets its own file, under the
// manifest's output directory when there is one.
type build struct {
	flags    cliFlags
	opts     compiler.Options
	manifest *manifest.Manifest
	stdout   io.Writer
	stderr   io.Writer

	shared  *emit.Writer
	written int
}

func (b *build) open() error {
	if b.flags.check || b.flags.output == "" {
		return nil
	}
	out, err := os.Create(b.flags.output)
	if err != nil {
		return err
	}
	atexit.Register(func() { out.Close() })
	b.shared = emit.NewWriter(out)
	return nil
}

func (b *build) outputPath(file string) string {
	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)) + ".jrec"
	if b.manifest != nil {
		return filepath.Join(b.manifest.OutputPath(), name)
	}
	return filepath.Join(filepath.Dir(file), name)
}

// assemble runs one unit and reports whether it succeeded.
func (b *build) assemble(file string) bool {
	src, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintf(b.stderr, "Error: %v\n", err)
		return false
	}

	collected := &emit.Collector{}
	opts := b.opts
	opts.Emitter = collected

	res, err := compiler.Assemble(file, string(src), opts)
	if len(res.Log.Diagnostics()) > 0 || err != nil {
		res.Log.Summary(b.stderr)
	}
	if err != nil {
		if !errors.Is(err, diag.ErrAborted) {
			fmt.Fprintf(b.stderr, "Error: %v\n", err)
		}
		return false
	}
	if !res.OK() {
		return false
	}

	bodies := collected.Bodies()
	if b.flags.hashes {
		for _, body := range bodies {
			fmt.Fprintf(b.stdout, "%s  %s.%s%s\n", hash.String(body), body.Class, body.Name, body.Descriptor)
		}
	}
	if b.flags.listing {
		for _, body := range bodies {
			fmt.Fprintln(b.stdout, body.Listing(b.opts.Catalog))
		}
	}
	if b.flags.check {
		return true
	}
	if err := b.write(file, bodies); err != nil {
		fmt.Fprintf(b.stderr, "Error: %s: %v\n", file, err)
		return false
	}
	return true
}

func (b *build) write(file string, bodies []*bytecode.MethodBody) error {
	w := b.shared
	if w == nil {
		path := b.outputPath(file)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		out, err := os.Create(path)
		if err != nil {
			return err
		}
		defer out.Close()
		w = emit.NewWriter(out)
	}
	for _, body := range bodies {
		if err := w.Emit(body); err != nil {
			return err
		}
		b.written++
	}
	return nil
}
