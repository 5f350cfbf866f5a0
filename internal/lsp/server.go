package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/leapstack-labs/texmacros/internal/config"
	"github.com/leapstack-labs/texmacros/internal/index"
)

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// ErrExitWithoutShutdown is returned by Run when the client sent exit
// before shutdown.
var ErrExitWithoutShutdown = errors.New("exit received before shutdown")

// texLanguages are the client language identifiers the server analyses.
var texLanguages = map[string]bool{"latex": true, "tex": true}

// Server implements the Language Server Protocol for LaTeX macros. It is the
// editor-side index host: it owns the open buffers and forwards their
// lifecycle to the macro index.
type Server struct {
	// Document management
	documents *DocumentStore

	// Macro index, created on initialize
	index       *index.Index
	cfg         *config.Config
	projectRoot string
	initialized bool
	snippets    bool

	listenersMu sync.Mutex
	listeners   []index.Listener

	fixes *fixCache

	// I/O
	ctx     context.Context
	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex

	// Logging
	logger *slog.Logger

	// Shutdown state
	shutdown   bool
	exited     bool
	shutdownMu sync.RWMutex
}

// NewServer creates a new LSP server instance.
func NewServer(reader io.Reader, writer io.Writer) *Server {
	return NewServerWithLogger(reader, writer, nil)
}

// NewServerWithLogger creates a new LSP server instance with a custom logger.
func NewServerWithLogger(reader io.Reader, writer io.Writer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &Server{
		documents: NewDocumentStore(),
		fixes:     newFixCache(),
		ctx:       context.Background(),
		reader:    bufio.NewReader(reader),
		writer:    writer,
		logger:    logger,
	}
}

// Run processes JSON-RPC messages until the client exits, disconnects or
// ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.ctx = ctx
	s.logger.Info("texmacros LSP server starting")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := s.readMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info("Client disconnected")
				return nil
			}
			s.logger.Error("Error reading message", "error", err)
			continue
		}

		if err := s.handleMessage(msg); err != nil {
			s.logger.Error("Error handling message", "method", msg.Method, "error", err)
		}

		s.shutdownMu.RLock()
		exited, shutdown := s.exited, s.shutdown
		s.shutdownMu.RUnlock()
		if exited {
			if !shutdown {
				return ErrExitWithoutShutdown
			}
			return nil
		}
	}
}

// JSONRPCMessage represents a JSON-RPC 2.0 message.
type JSONRPCMessage struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  json.RawMessage  `json:"params,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *JSONRPCError    `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC error.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *JSONRPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// readMessage reads a JSON-RPC message from the input stream.
func (s *Server) readMessage() (*JSONRPCMessage, error) {
	// Read headers
	var contentLength int
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			break // End of headers
		}

		if strings.HasPrefix(line, "Content-Length: ") {
			lengthStr := strings.TrimPrefix(line, "Content-Length: ")
			contentLength, err = strconv.Atoi(lengthStr)
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length: %w", err)
			}
		}
	}

	if contentLength == 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	// Read body
	body := make([]byte, contentLength)
	if _, err := io.ReadFull(s.reader, body); err != nil {
		return nil, fmt.Errorf("error reading body: %w", err)
	}

	var msg JSONRPCMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		s.sendResponse(nil, nil, &JSONRPCError{Code: CodeParseError, Message: err.Error()})
		return nil, fmt.Errorf("error parsing message: %w", err)
	}

	return &msg, nil
}

// sendResponse sends a JSON-RPC response.
func (s *Server) sendResponse(id *json.RawMessage, result any, err *JSONRPCError) {
	msg := JSONRPCMessage{
		JSONRPC: "2.0",
		ID:      id,
	}

	if err != nil {
		msg.Error = err
	} else {
		resultBytes, mErr := json.Marshal(result)
		if mErr != nil {
			s.logger.Error("Error marshaling result", "error", mErr)
			msg.Error = &JSONRPCError{Code: CodeInternalError, Message: mErr.Error()}
		} else {
			msg.Result = resultBytes
		}
	}

	s.writeMessage(&msg)
}

// sendNotification sends a JSON-RPC notification (no ID).
func (s *Server) sendNotification(method string, params any) {
	msg := JSONRPCMessage{
		JSONRPC: "2.0",
		Method:  method,
	}

	if params != nil {
		paramsBytes, _ := json.Marshal(params)
		msg.Params = paramsBytes
	}

	s.writeMessage(&msg)
}

// writeMessage writes a JSON-RPC message to the output stream.
func (s *Server) writeMessage(msg *JSONRPCMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	body, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("Error marshaling message", "error", err)
		return
	}

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))
	_, _ = s.writer.Write([]byte(header))
	_, _ = s.writer.Write(body)
}

// handleMessage dispatches a message to the appropriate handler.
func (s *Server) handleMessage(msg *JSONRPCMessage) error {
	s.logger.Debug("Received", "method", msg.Method)

	s.shutdownMu.RLock()
	shutdown := s.shutdown
	s.shutdownMu.RUnlock()
	if shutdown && msg.Method != "exit" {
		if msg.ID != nil {
			s.sendResponse(msg.ID, nil, &JSONRPCError{Code: CodeInvalidRequest, Message: "server is shutting down"})
		}
		return nil
	}

	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		return s.handleInitialized(msg)
	case "shutdown":
		return s.handleShutdown(msg)
	case "exit":
		return s.handleExit(msg)
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didSave":
		return s.handleDidSave(msg)
	case "workspace/didCreateFiles":
		return s.handleDidCreateFiles(msg)
	case "workspace/didRenameFiles":
		return s.handleDidRenameFiles(msg)
	case "workspace/didDeleteFiles":
		return s.handleDidDeleteFiles(msg)
	case "workspace/didChangeWatchedFiles":
		return s.handleDidChangeWatchedFiles(msg)
	case "textDocument/completion":
		return s.handleCompletion(msg)
	case "textDocument/hover":
		return s.handleHover(msg)
	case "textDocument/signatureHelp":
		return s.handleSignatureHelp(msg)
	case "textDocument/definition", "textDocument/implementation":
		return s.handleDefinition(msg)
	case "textDocument/references":
		return s.handleReferences(msg)
	case "textDocument/codeLens":
		return s.handleCodeLens(msg)
	case "textDocument/codeAction":
		return s.handleCodeAction(msg)
	default:
		if msg.ID != nil {
			// Unknown method with ID - respond with method not found
			s.sendResponse(msg.ID, nil, &JSONRPCError{
				Code:    CodeMethodNotFound,
				Message: "Method not found: " + msg.Method,
			})
		}
		return nil
	}
}

// decodeParams unmarshals request params, answering invalid params itself.
func (s *Server) decodeParams(msg *JSONRPCMessage, v any) error {
	if err := json.Unmarshal(msg.Params, v); err != nil {
		if msg.ID != nil {
			s.sendResponse(msg.ID, nil, &JSONRPCError{Code: CodeInvalidParams, Message: err.Error()})
		}
		return err
	}
	return nil
}

// --- Lifecycle handlers ---

func (s *Server) handleInitialize(msg *JSONRPCMessage) error {
	var params InitializeParams
	if err := s.decodeParams(msg, &params); err != nil {
		return err
	}

	s.projectRoot = workspaceRoot(params)
	s.snippets = params.Capabilities.TextDocument.Completion.CompletionItem.SnippetSupport
	s.logger.Info("Project root", "path", s.projectRoot)

	s.cfg = s.loadConfig()
	s.index = index.New(
		index.OSFileSystem{
			Extensions:       s.cfg.Extensions,
			Exclude:          s.cfg.Exclude,
			RespectGitignore: s.cfg.RespectGitignore,
		},
		index.WithLogger(s.logger),
		index.WithReferenceTTL(s.cfg.ReferenceTTL),
		index.WithExtensions(s.cfg.Extensions...),
		index.WithWorkspaceRoot(s.cfg.Root),
	)

	fileFilter := &FileOperationRegistrationOptions{
		Filters: []FileOperationFilter{{Scheme: "file", Pattern: FileOperationPattern{Glob: "**/*"}}},
	}
	result := InitializeResult{
		Capabilities: ServerCapabilities{
			TextDocumentSync: &TextDocumentSyncOptions{
				OpenClose: true,
				Change:    TextDocumentSyncKindFull,
				Save:      &SaveOptions{},
			},
			CompletionProvider: &CompletionOptions{
				TriggerCharacters: []string{`\`},
			},
			HoverProvider: true,
			SignatureHelpProvider: &SignatureHelpOptions{
				TriggerCharacters: []string{"{", "["},
			},
			DefinitionProvider:     true,
			ImplementationProvider: true,
			ReferencesProvider:     true,
			CodeActionProvider: &CodeActionOptions{
				CodeActionKinds: []CodeActionKind{CodeActionKindQuickFix},
			},
			CodeLensProvider: &CodeLensOptions{},
			Workspace: &WorkspaceServerCapabilities{
				FileOperations: &FileOperationOptions{
					DidCreate: fileFilter,
					DidRename: fileFilter,
					DidDelete: fileFilter,
				},
			},
		},
		ServerInfo: &ServerInfo{Name: "texmacros"},
	}

	s.sendResponse(msg.ID, result, nil)
	return nil
}

// loadConfig reads texmacros.yaml for the workspace, falling back to
// defaults when it is missing or broken.
func (s *Server) loadConfig() *config.Config {
	if s.projectRoot == "" {
		return config.Default("")
	}
	cfg, err := config.LoadFromDir(s.projectRoot)
	if err != nil {
		s.logger.Warn("Using default configuration", "error", err)
		s.sendNotification("window/showMessage", &ShowMessageParams{
			Type:    MessageTypeWarning,
			Message: "texmacros: " + err.Error(),
		})
		return config.Default(s.projectRoot)
	}
	return cfg
}

// workspaceRoot picks the root folder, preferring rootUri.
func workspaceRoot(params InitializeParams) string {
	switch {
	case params.RootURI != "":
		return URIToPath(params.RootURI)
	case len(params.WorkspaceFolders) > 0:
		return URIToPath(params.WorkspaceFolders[0].URI)
	default:
		return params.RootPath
	}
}

func (s *Server) handleInitialized(_ *JSONRPCMessage) error {
	if s.index == nil || s.initialized {
		return nil
	}
	s.initialized = true

	s.index.Initialize(s, config.MainFileResolver(s.cfg))
	s.logger.Info("Server initialized")

	for _, doc := range s.documents.All() {
		s.publishDiagnostics(doc.URI)
	}
	return nil
}

func (s *Server) handleShutdown(msg *JSONRPCMessage) error {
	s.shutdownMu.Lock()
	s.shutdown = true
	s.shutdownMu.Unlock()

	s.sendResponse(msg.ID, nil, nil)
	s.logger.Info("Server shutdown")
	return nil
}

func (s *Server) handleExit(_ *JSONRPCMessage) error {
	s.shutdownMu.Lock()
	s.exited = true
	s.shutdownMu.Unlock()

	s.logger.Info("Server exit")
	return nil
}

// --- Document handlers ---

func (s *Server) handleDidOpen(msg *JSONRPCMessage) error {
	var params DidOpenTextDocumentParams
	if err := s.decodeParams(msg, &params); err != nil {
		return err
	}

	item := params.TextDocument
	doc := s.documents.Open(item.URI, item.LanguageID, item.Text, item.Version)
	s.logger.Debug("Opened", "uri", item.URI)

	s.notify(func(l index.Listener) { l.DocumentOpened(doc) })
	s.publishDiagnostics(item.URI)
	return nil
}

func (s *Server) handleDidClose(msg *JSONRPCMessage) error {
	var params DidCloseTextDocumentParams
	if err := s.decodeParams(msg, &params); err != nil {
		return err
	}

	uri := params.TextDocument.URI
	s.documents.Close(uri)
	s.fixes.clearURI(uri)
	s.logger.Debug("Closed", "uri", uri)

	s.notify(func(l index.Listener) { l.DocumentClosed(URIToPath(uri)) })

	// Clear diagnostics
	s.sendNotification("textDocument/publishDiagnostics", &PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []Diagnostic{},
	})
	return nil
}

func (s *Server) handleDidChange(msg *JSONRPCMessage) error {
	var params DidChangeTextDocumentParams
	if err := s.decodeParams(msg, &params); err != nil {
		return err
	}
	if len(params.ContentChanges) == 0 {
		return nil
	}

	// We use full sync, so take the last change
	last := params.ContentChanges[len(params.ContentChanges)-1]
	doc := s.documents.Update(params.TextDocument.URI, last.Text, params.TextDocument.Version)
	if doc == nil {
		return fmt.Errorf("change for unopened document %s", params.TextDocument.URI)
	}

	s.notify(func(l index.Listener) { l.DocumentChanged(doc) })
	s.publishDiagnostics(doc.URI)
	return nil
}

func (s *Server) handleDidSave(msg *JSONRPCMessage) error {
	var params DidSaveTextDocumentParams
	if err := s.decodeParams(msg, &params); err != nil {
		return err
	}

	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil {
		return nil
	}
	s.notify(func(l index.Listener) { l.DocumentSaved(doc) })
	s.publishDiagnostics(doc.URI)
	return nil
}

// --- Workspace file handlers ---

func (s *Server) handleDidCreateFiles(msg *JSONRPCMessage) error {
	var params CreateFilesParams
	if err := s.decodeParams(msg, &params); err != nil {
		return err
	}

	paths := make([]string, 0, len(params.Files))
	for _, f := range params.Files {
		paths = append(paths, URIToPath(f.URI))
	}
	s.notify(func(l index.Listener) { l.FilesCreated(paths) })
	return nil
}

func (s *Server) handleDidRenameFiles(msg *JSONRPCMessage) error {
	var params RenameFilesParams
	if err := s.decodeParams(msg, &params); err != nil {
		return err
	}

	renames := make([]index.Rename, 0, len(params.Files))
	for _, f := range params.Files {
		renames = append(renames, index.Rename{Old: URIToPath(f.OldURI), New: URIToPath(f.NewURI)})
	}
	s.notify(func(l index.Listener) { l.FilesRenamed(renames) })
	return nil
}

func (s *Server) handleDidDeleteFiles(msg *JSONRPCMessage) error {
	var params DeleteFilesParams
	if err := s.decodeParams(msg, &params); err != nil {
		return err
	}

	paths := make([]string, 0, len(params.Files))
	for _, f := range params.Files {
		paths = append(paths, URIToPath(f.URI))
	}
	s.notify(func(l index.Listener) { l.FilesDeleted(paths) })
	return nil
}

func (s *Server) handleDidChangeWatchedFiles(msg *JSONRPCMessage) error {
	var params DidChangeWatchedFilesParams
	if err := s.decodeParams(msg, &params); err != nil {
		return err
	}

	var created, changed, deleted []string
	for _, ev := range params.Changes {
		path := URIToPath(ev.URI)
		switch ev.Type {
		case FileChangeTypeCreated:
			created = append(created, path)
		case FileChangeTypeChanged:
			changed = append(changed, path)
		case FileChangeTypeDeleted:
			deleted = append(deleted, path)
		}
	}

	if len(created) > 0 {
		s.notify(func(l index.Listener) { l.FilesCreated(created) })
	}
	if len(changed) > 0 {
		s.notify(func(l index.Listener) { l.FilesChanged(changed) })
	}
	if len(deleted) > 0 {
		s.notify(func(l index.Listener) { l.FilesDeleted(deleted) })
	}
	return nil
}

// --- index.Host ---

// OpenDocuments returns the current snapshot of every open buffer.
func (s *Server) OpenDocuments() []index.Document {
	docs := s.documents.All()
	out := make([]index.Document, len(docs))
	for i, d := range docs {
		out[i] = d
	}
	return out
}

// Subscribe registers a listener for document and file events.
func (s *Server) Subscribe(l index.Listener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Server) notify(fn func(index.Listener)) {
	s.listenersMu.Lock()
	listeners := append([]index.Listener(nil), s.listeners...)
	s.listenersMu.Unlock()

	for _, l := range listeners {
		fn(l)
	}
}

// isTeX reports whether the server analyses doc.
func isTeX(doc *Document) bool {
	return doc != nil && texLanguages[doc.Language]
}
