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

	"github.com/chazu/lox/compiler"
	"github.com/chazu/lox/driver"
	"github.com/chazu/lox/interpreter"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "lox-lsp"

// Commands accepted by workspace/executeCommand. Both take the document
// URI as their only argument.
const (
	CommandRun   = "lox.run"
	CommandReset = "lox.reset"
)

var log = commonlog.GetLogger("lox.server")

// LspServer bridges LSP editor features to the Lox front end via Worker.
type LspServer struct {
	worker *Worker

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server. Documents run with lox.run execute on
// engine.
func NewLSP(engine driver.Engine) *LspServer {
	worker := NewWorker(NewWorkspace(engine))
	s := &LspServer{
		worker:  worker,
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

		WorkspaceExecuteCommand: s.workspaceExecuteCommand,
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
	log.Info("Lox LSP initializing")

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
	capabilities.ExecuteCommandProvider = &protocol.ExecuteCommandOptions{
		Commands: []string{CommandRun, CommandReset},
	}

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
	log.Info("Lox LSP shutting down")
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

	_, _ = s.worker.Do(func(ws *Workspace) interface{} {
		ws.Forget(string(uri))
		return nil
	})

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) text(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	uri := params.TextDocument.URI
	text, ok := s.text(uri)
	if !ok {
		return nil, nil
	}

	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}

	result, err := s.worker.Do(func(ws *Workspace) interface{} {
		return s.complete(ws, string(uri), prefix)
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

	result, err := s.worker.Do(func(ws *Workspace) interface{} {
		return s.hover(ws, string(uri), word)
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

	result, err := s.worker.Do(func(ws *Workspace) interface{} {
		return s.definition(ws, uri, word)
	})
	if err != nil || result == nil {
		return nil, nil
	}

	return result, nil
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

	result, err := s.worker.Do(func(ws *Workspace) interface{} {
		return s.references(ws, uri, word)
	})
	if err != nil || result == nil {
		return nil, nil
	}

	return result.([]protocol.Location), nil
}

func (s *LspServer) workspaceExecuteCommand(ctx *glsp.Context, params *protocol.ExecuteCommandParams) (any, error) {
	if len(params.Arguments) != 1 {
		return nil, fmt.Errorf("%s expects one document URI argument", params.Command)
	}
	uri, ok := params.Arguments[0].(string)
	if !ok {
		return nil, fmt.Errorf("%s: argument must be a document URI", params.Command)
	}

	switch params.Command {
	case CommandRun:
		text, ok := s.text(protocol.DocumentUri(uri))
		if !ok {
			return nil, fmt.Errorf("%s: document %s is not open", params.Command, uri)
		}
		return s.worker.Do(func(ws *Workspace) interface{} {
			return ws.Sessions().Run(uri, text)
		})
	case CommandReset:
		return s.worker.Do(func(ws *Workspace) interface{} {
			ws.Sessions().Destroy(uri)
			return nil
		})
	}
	return nil, fmt.Errorf("unknown command %q", params.Command)
}

// --- Workspace-backed logic (called on worker goroutine) ---

func (s *LspServer) complete(ws *Workspace, uri, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	seen := make(map[string]bool)
	add := func(label string, kind protocol.CompletionItemKind, detail string) {
		if seen[label] || !strings.HasPrefix(label, prefix) {
			return
		}
		seen[label] = true
		labelCopy := label
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &labelCopy,
		})
	}

	// Declarations from the document
	if a, ok := ws.Get(uri); ok {
		for _, d := range a.Decls {
			add(d.Name, completionKind(d.Kind), d.Signature())
		}
	}

	// Natives
	for _, name := range interpreter.NativeNames() {
		add(name, protocol.CompletionItemKindFunction, "native function")
	}

	// Globals defined by lox.run
	for _, name := range ws.Sessions().Globals(uri) {
		add(name, protocol.CompletionItemKindVariable, "global")
	}

	// Keywords
	for _, kw := range compiler.Keywords() {
		add(kw, protocol.CompletionItemKindKeyword, "keyword")
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Label < items[j].Label })

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	return items
}

func completionKind(k DeclKind) protocol.CompletionItemKind {
	switch k {
	case DeclFunction:
		return protocol.CompletionItemKindFunction
	case DeclClass:
		return protocol.CompletionItemKindClass
	case DeclMethod:
		return protocol.CompletionItemKindMethod
	}
	return protocol.CompletionItemKindVariable
}

func (s *LspServer) hover(ws *Workspace, uri, word string) *protocol.Hover {
	var b strings.Builder

	switch {
	case isKeyword(word):
		fmt.Fprintf(&b, "**%s** keyword", word)
	case isNative(word):
		fmt.Fprintf(&b, "```lox\nfun %s()\n```\n\nnative function", word)
	default:
		a, ok := ws.Get(uri)
		if !ok {
			return nil
		}
		decls := a.Lookup(word)
		if len(decls) == 0 {
			return nil
		}
		d := decls[0]
		fmt.Fprintf(&b, "```lox\n%s\n```\n\n", d.Signature())
		scope := "local"
		if d.Global {
			scope = "global"
		}
		fmt.Fprintf(&b, "%s %s, line %d", scope, d.Kind, d.Token.Line())
		if d.Kind == DeclClass && len(d.Methods) > 0 {
			fmt.Fprintf(&b, "\n\nMethods: `%s`", strings.Join(d.Methods, "`, `"))
		}
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

func (s *LspServer) definition(ws *Workspace, uri protocol.DocumentUri, word string) []protocol.Location {
	a, ok := ws.Get(string(uri))
	if !ok {
		return nil
	}

	var locations []protocol.Location
	for _, d := range a.Lookup(word) {
		locations = append(locations, protocol.Location{URI: uri, Range: tokenRange(d.Token)})
	}
	return locations
}

func (s *LspServer) references(ws *Workspace, uri protocol.DocumentUri, word string) []protocol.Location {
	a, ok := ws.Get(string(uri))
	if !ok {
		return nil
	}

	var locations []protocol.Location
	for _, tok := range a.References(word) {
		locations = append(locations, protocol.Location{URI: uri, Range: tokenRange(tok)})
	}
	return locations
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	result, err := s.worker.Do(func(ws *Workspace) interface{} {
		return toProtocolDiagnostics(ws.Analyze(string(uri), text).Diagnostics)
	})
	if err != nil {
		log.Errorf("analyzing %s: %s", uri, err)
		return
	}

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: result.([]protocol.Diagnostic),
	})
}

func toProtocolDiagnostics(diags []compiler.Diagnostic) []protocol.Diagnostic {
	out := []protocol.Diagnostic{}
	source := lspName
	for _, d := range diags {
		severity := protocol.DiagnosticSeverityError
		if d.Severity == compiler.SeverityWarning {
			severity = protocol.DiagnosticSeverityWarning
		}
		out = append(out, protocol.Diagnostic{
			Range:    spanRange(d.Span),
			Severity: &severity,
			Source:   &source,
			Message:  d.Message,
		})
	}
	return out
}

// --- Positions ---

func toPosition(p compiler.Position) protocol.Position {
	line, col := p.Line-1, p.Column-1
	if line < 0 {
		line = 0
	}
	if col < 0 {
		col = 0
	}
	return protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col)}
}

func spanRange(sp compiler.Span) protocol.Range {
	return protocol.Range{Start: toPosition(sp.Start), End: toPosition(sp.End)}
}

func tokenRange(tok compiler.Token) protocol.Range {
	end := tok.Pos
	end.Column += len(tok.Lexeme)
	return protocol.Range{Start: toPosition(tok.Pos), End: toPosition(end)}
}

func isKeyword(word string) bool {
	for _, kw := range compiler.Keywords() {
		if kw == word {
			return true
		}
	}
	return false
}

func isNative(word string) bool {
	for _, name := range interpreter.NativeNames() {
		if name == word {
			return true
		}
	}
	return false
}

// --- Text extraction helpers ---

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isIdentRune(rune(line[start-1])) {
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
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Find start
	start := col
	for start > 0 && isIdentRune(rune(line[start-1])) {
		start--
	}

	// Find end
	end := col
	for end < len(line) && isIdentRune(rune(line[end])) {
		end++
	}

	if start == end {
		return ""
	}

	return line[start:end]
}

func isIdentRune(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

func boolPtr(b bool) *bool {
	return &b
}
