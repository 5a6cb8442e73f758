package server

import (
	"github.com/tliron/commonlog"

	"github.com/chazu/jasm/compiler"
	"github.com/chazu/jasm/pkg/bytecode"
)

var logger = commonlog.GetLogger("jasm.server")

// Document is one open source file and its latest assembly.
type Document struct {
	URI    string
	Text   string
	Result *compiler.Result
	Err    error // diag.ErrAborted after a flood
}

// Workspace holds the open documents and the assembler configuration used
// to check them. It is owned by a Worker.
type Workspace struct {
	opts    compiler.Options
	catalog *bytecode.Catalog
	docs    map[string]*Document
}

// NewWorkspace returns an empty workspace assembling with opts. Bodies are
// never emitted from the editor, so any emitter in opts is dropped.
func NewWorkspace(opts compiler.Options) *Workspace {
	opts.Emitter = nil
	c := opts.Catalog
	if c == nil {
		c = bytecode.Default()
	}
	return &Workspace{opts: opts, catalog: c, docs: make(map[string]*Document)}
}

// Catalog returns the operation catalog the workspace assembles against.
func (w *Workspace) Catalog() *bytecode.Catalog { return w.catalog }

// Update stores text for uri and reassembles it.
func (w *Workspace) Update(uri, text string) *Document {
	doc := &Document{URI: uri, Text: text}
	doc.Result, doc.Err = compiler.Assemble(uri, text, w.opts)
	w.docs[uri] = doc
	logger.Debugf("assembled %s: %d diagnostics", uri, len(doc.Result.Log.Diagnostics()))
	return doc
}

// Document returns the open document at uri.
func (w *Workspace) Document(uri string) (*Document, bool) {
	doc, ok := w.docs[uri]
	return doc, ok
}

// Close forgets uri.
func (w *Workspace) Close(uri string) { delete(w.docs, uri) }

// Len returns the number of open documents.
func (w *Workspace) Len() int { return len(w.docs) }

// BodyAt returns the assembled method whose code spans source line (1-based).
func (d *Document) BodyAt(line int) *bytecode.MethodBody {
	if d.Result == nil {
		return nil
	}
	for _, b := range d.Result.Bodies {
		lo, hi := 0, 0
		for _, in := range b.Code {
			if in.Line == 0 {
				continue
			}
			if lo == 0 || in.Line < lo {
				lo = in.Line
			}
			if in.Line > hi {
				hi = in.Line
			}
		}
		if lo != 0 && line >= lo && line <= hi {
			return b
		}
	}
	return nil
}
