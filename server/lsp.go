package server

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/jasm/compiler"
	"github.com/chazu/jasm/pkg/bytecode"
	"github.com/chazu/jasm/pkg/diag"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "jasm-lsp"

// directives offered by completion.
var directives = []string{
	".version", ".class", ".interface", ".super", ".method", ".end method",
	".limit stack", ".limit locals", ".catch", ".typeanno",
	".stack", ".end stack", ".line", ".var", ".ifreachable", ".endif",
}

// LspServer bridges LSP editor features to the assembler via a Worker.
type LspServer struct {
	worker *Worker

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server checking documents with opts.
func NewLSP(opts compiler.Options) *LspServer {
	s := &LspServer{
		worker:  NewWorker(NewWorkspace(opts)),
		docs:    make(map[string]string),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
		TextDocumentReferences: s.textDocumentReferences,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	commonlog.NewInfoMessage(0, "jasm LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{"."},
	}

	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			text := whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	s.worker.Do(func(ws *Workspace) any {
		ws.Close(string(uri))
		return nil
	})

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// --- Language features ---

func (s *LspServer) text(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.text(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}

	line := int(params.Position.Line) + 1
	result, err := s.worker.Do(func(ws *Workspace) any {
		return s.complete(ws, text, line, prefix)
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	uri := params.TextDocument.URI
	text, ok := s.text(uri)
	if !ok {
		return nil, nil
	}

	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}

	line := int(params.Position.Line) + 1
	result, err := s.worker.Do(func(ws *Workspace) any {
		return s.hover(ws, string(uri), line, word)
	})
	if err != nil || result == nil {
		return nil, nil
	}

	return result.(*protocol.Hover), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	text, ok := s.text(uri)
	if !ok {
		return nil, nil
	}

	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}

	locations := definition(uri, text, int(params.Position.Line)+1, word)
	if len(locations) == 0 {
		return nil, nil
	}
	return locations, nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	uri := params.TextDocument.URI
	text, ok := s.text(uri)
	if !ok {
		return nil, nil
	}

	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}

	return references(uri, text, int(params.Position.Line)+1, word, params.Context.IncludeDeclaration), nil
}

// --- Workspace-backed logic (called on worker goroutine) ---

func (s *LspServer) complete(ws *Workspace, text string, line int, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem

	if strings.HasPrefix(prefix, ".") {
		kind := protocol.CompletionItemKindKeyword
		detail := "directive"
		for _, d := range directives {
			if strings.HasPrefix(d, prefix) {
				items = append(items, protocol.CompletionItem{
					Label:      d,
					Kind:       &kind,
					Detail:     &detail,
					InsertText: &d,
				})
			}
		}
		return items
	}

	// Labels of the enclosing method
	syms := methodSymbols(text, line)
	var labels []string
	for name := range syms.defs {
		if strings.HasPrefix(name, prefix) {
			labels = append(labels, name)
		}
	}
	sort.Strings(labels)
	for _, name := range labels {
		kind := protocol.CompletionItemKindReference
		detail := "label"
		items = append(items, protocol.CompletionItem{
			Label:      name,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &name,
		})
	}

	// Mnemonics
	lowerPrefix := strings.ToLower(prefix)
	for _, name := range ws.Catalog().Names() {
		if !strings.HasPrefix(name, lowerPrefix) {
			continue
		}
		op, _ := ws.Catalog().Lookup(name)
		kind := protocol.CompletionItemKindFunction
		detail := opSummary(op)
		items = append(items, protocol.CompletionItem{
			Label:      name,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &name,
		})
	}

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	return items
}

func opSummary(op *bytecode.OpInfo) string {
	if op.Wide {
		return fmt.Sprintf("wide 0x%02x %s", op.Opcode, op.Effect)
	}
	return fmt.Sprintf("0x%02x %s", op.Opcode, op.Effect)
}

func (s *LspServer) hover(ws *Workspace, uri string, line int, word string) *protocol.Hover {
	var b strings.Builder

	if op, ok := ws.Catalog().Lookup(word); ok {
		fmt.Fprintf(&b, "**%s**", op.Name)
		if op.Wide {
			b.WriteString(" (wide)")
		}
		fmt.Fprintf(&b, "\n\nOpcode `0x%02x`", op.Opcode)
		if op.Length > 0 {
			fmt.Fprintf(&b, ", %d bytes", op.Length)
		}
		if op.Effect != "" {
			fmt.Fprintf(&b, "\n\nStack: `%s`", op.Effect)
		}
		if op.Base != "" && op.Base != op.Name {
			fmt.Fprintf(&b, "\n\nForm of `%s`", op.Base)
		}
		if !op.Feature.IsZero() {
			fmt.Fprintf(&b, "\n\nAvailable: %s", op.Feature)
		}
		return markdown(b.String())
	}

	doc, ok := ws.Document(uri)
	if !ok {
		return nil
	}
	body := doc.BodyAt(line)
	if body == nil {
		return nil
	}
	for _, f := range body.Frames {
		if f.Label != word {
			continue
		}
		fmt.Fprintf(&b, "**%s** in `%s%s`\n\n", f.Label, body.Name, body.Descriptor)
		fmt.Fprintf(&b, "Stack: `%s`\n\nLocals: `%s`", f.Stack, f.Locals)
		return markdown(b.String())
	}
	return nil
}

func markdown(s string) *protocol.Hover {
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: s,
		},
	}
}

// --- Label navigation (pure text, no workspace state) ---

func tokenRange(t compiler.Token, name string) protocol.Range {
	line := protocol.UInteger(t.Pos.Line - 1)
	col := protocol.UInteger(t.Pos.Column - 1)
	return protocol.Range{
		Start: protocol.Position{Line: line, Character: col},
		End:   protocol.Position{Line: line, Character: col + protocol.UInteger(len(name))},
	}
}

func definition(uri protocol.DocumentUri, text string, line int, word string) []protocol.Location {
	def, ok := methodSymbols(text, line).defs[word]
	if !ok {
		return nil
	}
	return []protocol.Location{{URI: uri, Range: tokenRange(def, word)}}
}

func references(uri protocol.DocumentUri, text string, line int, word string, includeDecl bool) []protocol.Location {
	syms := methodSymbols(text, line)
	def, ok := syms.defs[word]
	if !ok {
		return nil
	}

	var locations []protocol.Location
	if includeDecl {
		locations = append(locations, protocol.Location{URI: uri, Range: tokenRange(def, word)})
	}
	for _, t := range syms.words[word] {
		locations = append(locations, protocol.Location{URI: uri, Range: tokenRange(t, word)})
	}
	return locations
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	result, err := s.worker.Do(func(ws *Workspace) any {
		return toProtocol(ws.Update(string(uri), text))
	})
	if err != nil {
		logger.Errorf("assembling %s: %s", uri, err)
		return
	}

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: result.([]protocol.Diagnostic),
	})
}

// toProtocol converts a document's assembler diagnostics. Each covers the
// whole source line it was reported at.
func toProtocol(doc *Document) []protocol.Diagnostic {
	lines := strings.Split(doc.Text, "\n")
	source := lspName

	diagnostics := []protocol.Diagnostic{}
	for _, d := range doc.Result.Log.Diagnostics() {
		line := max(d.Pos.Line-1, 0)
		width := 0
		if line < len(lines) {
			width = len(strings.TrimRight(lines[line], "\r"))
		}
		severity := severityOf(d.Severity)
		code := protocol.IntegerOrString{Value: d.Kind.String()}
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range: protocol.Range{
				Start: protocol.Position{Line: protocol.UInteger(line), Character: 0},
				End:   protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(width)},
			},
			Severity: &severity,
			Code:     &code,
			Source:   &source,
			Message:  d.Message,
		})
	}
	return diagnostics
}

func severityOf(s diag.Severity) protocol.DiagnosticSeverity {
	switch s {
	case diag.Info:
		return protocol.DiagnosticSeverityInformation
	case diag.Warning:
		return protocol.DiagnosticSeverityWarning
	}
	return protocol.DiagnosticSeverityError
}

// --- Text extraction helpers ---

func isPrefixChar(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' || ch == '$' || ch == '.'
}

func isWordChar(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' || ch == '$'
}

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := min(int(pos.Character), len(line))

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isPrefixChar(rune(line[start-1])) {
		start--
	}

	if start == col {
		return ""
	}

	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := min(int(pos.Character), len(line))

	start := col
	for start > 0 && isWordChar(rune(line[start-1])) {
		start--
	}

	end := col
	for end < len(line) && isWordChar(rune(line[end])) {
		end++
	}

	if start == end {
		return ""
	}

	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}
