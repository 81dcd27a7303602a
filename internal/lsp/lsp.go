// Package lsp implements a PEBBL language server: diagnostics (parse and
// runtime errors with line numbers), hover (the value and type of the
// whole program's final result, whatever word is under the cursor), and
// completion (keywords and
// built-in names), wired through glsp's protocol.Handler with its own
// document-sync bookkeeping and cursor-scanning helpers.
package lsp

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	_ "github.com/tliron/commonlog/simple"

	"github.com/pebbl-lang/pebbl/internal/engine"
	"github.com/pebbl-lang/pebbl/pkg/object"
	"github.com/pebbl-lang/pebbl/pkg/syntax"
)

const serverName = "pebbl-lsp"

var keywords = []string{
	"and", "or", "if", "else", "true", "false", "for", "in", "while",
	"func", "return", "let", "var", "nil",
}

var builtins = []string{"print", "length", "type", "str", "push", "pop", "keys", "range"}

// Server bridges LSP editor requests to PEBBL's syntax/engine packages.
type Server struct {
	mu   sync.Mutex
	docs map[string]string

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewServer constructs an LSP Server, wiring every handler this package
// implements.
func NewServer() *Server {
	s := &Server{docs: make(map[string]string), version: "0.1.0"}

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
	}

	s.server = glspserver.NewServer(&s.handler, serverName, false)
	return s
}

// Run starts the LSP server on stdio and blocks until the client
// disconnects.
func (s *Server) Run() error {
	return s.server.RunStdio()
}

func (s *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	commonlog.NewInfoMessage(0, "PEBBL LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    serverName,
			Version: &s.version,
		},
	}, nil
}

func (s *Server) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error { return nil }

func (s *Server) shutdown(ctx *glsp.Context) error { return nil }

func (s *Server) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error { return nil }

func (s *Server) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text
	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()
	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *Server) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI
	if len(params.ContentChanges) == 0 {
		return nil
	}
	last := params.ContentChanges[len(params.ContentChanges)-1]
	whole, ok := last.(protocol.TextDocumentContentChangeEventWhole)
	if !ok {
		return nil
	}
	s.mu.Lock()
	s.docs[string(uri)] = whole.Text
	s.mu.Unlock()
	s.publishDiagnostics(ctx, uri, whole.Text)
	return nil
}

func (s *Server) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI
	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// lineRe extracts the 1-based line number embedded in a pkg/syntax parse
// error's message ("line 3: ...", per the parser's errorf), for placing
// the diagnostic range precisely instead of at (0,0).
var lineRe = regexp.MustCompile(`line (\d+):`)

func (s *Server) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	var diagnostics []protocol.Diagnostic

	prog, parseErr := syntax.NewParser(text).ParseProgram()
	if parseErr != nil {
		diagnostics = append(diagnostics, diagnosticFor(parseErr.Error()))
	} else {
		eng := engine.New(engine.ModeVM)
		if _, runErr := eng.Run(prog); runErr != nil {
			diagnostics = append(diagnostics, diagnosticFor(runErr.Error()))
		}
	}

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

func diagnosticFor(msg string) protocol.Diagnostic {
	line := 0
	if m := lineRe.FindStringSubmatch(msg); m != nil {
		fmt.Sscanf(m[1], "%d", &line)
		if line > 0 {
			line--
		}
	}
	severity := protocol.DiagnosticSeverityError
	source := serverName
	return protocol.Diagnostic{
		Range: protocol.Range{
			Start: protocol.Position{Line: protocol.UInteger(line), Character: 0},
			End:   protocol.Position{Line: protocol.UInteger(line), Character: 0},
		},
		Severity: &severity,
		Source:   &source,
		Message:  msg,
	}
}

func (s *Server) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	uri := params.TextDocument.URI
	pos := params.Position

	s.mu.Lock()
	text, ok := s.docs[string(uri)]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}

	prefix := extractPrefix(text, pos)
	return completionItems(prefix), nil
}

func completionItems(prefix string) []protocol.CompletionItem {
	lower := strings.ToLower(prefix)
	var items []protocol.CompletionItem

	kwKind := protocol.CompletionItemKindKeyword
	for _, kw := range keywords {
		if strings.HasPrefix(kw, lower) {
			name := kw
			items = append(items, protocol.CompletionItem{Label: kw, Kind: &kwKind, InsertText: &name})
		}
	}

	fnKind := protocol.CompletionItemKindFunction
	for _, b := range builtins {
		if strings.HasPrefix(b, lower) {
			name := b
			detail := "built-in"
			items = append(items, protocol.CompletionItem{Label: b, Kind: &fnKind, Detail: &detail, InsertText: &name})
		}
	}
	return items
}

// textDocumentHover runs the document, then reports the value and runtime
// type of the program's final result — a coarse
// "type()"-style summary, since PEBBL has no static type system to query
// per-identifier without actually running the program.
func (s *Server) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	uri := params.TextDocument.URI
	pos := params.Position

	s.mu.Lock()
	text, ok := s.docs[string(uri)]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}

	word := extractWord(text, pos)
	if word == "" {
		return nil, nil
	}

	prog, err := syntax.NewParser(text).ParseProgram()
	if err != nil {
		return nil, nil
	}
	eng := engine.New(engine.ModeVM)
	result, runErr := eng.Run(prog)
	if runErr != nil {
		return nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n\nprogram result: `%s` (type `%s`)", word, object.Stringify(result), object.TypeName(result))
	return &protocol.Hover{
		Contents: protocol.MarkupContent{Kind: protocol.MarkupKindMarkdown, Value: b.String()},
	}, nil
}

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
	start := col
	for start > 0 {
		ch := rune(line[start-1])
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' {
			start--
		} else {
			break
		}
	}
	return line[start:col]
}

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
	start := col
	for start > 0 {
		ch := rune(line[start-1])
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' {
			start--
		} else {
			break
		}
	}
	end := col
	for end < len(line) {
		ch := rune(line[end])
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' {
			end++
		} else {
			break
		}
	}
	return line[start:end]
}

func boolPtr(b bool) *bool { return &b }
