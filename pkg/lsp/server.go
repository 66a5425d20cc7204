// Package lsp provides a Language Server Protocol server that surfaces
// unused dependencies and unused files as editor diagnostics. The
// workspace is scanned when the client finishes initializing and again
// on every save; results are published against package.json and the
// flagged source files.
package lsp

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"github.com/Sumatoshi-tech/deadwood/pkg/config"
	"github.com/Sumatoshi-tech/deadwood/pkg/refcache"
	"github.com/Sumatoshi-tech/deadwood/pkg/version"
)

// serverName identifies the server to LSP clients.
const serverName = "deadwood"

// DocumentStore is a thread-safe store for document contents keyed by URI.
type DocumentStore struct {
	documents map[string]string // URI -> content.
	mu        sync.RWMutex
}

// NewDocumentStore creates a new empty DocumentStore.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]string),
	}
}

// Set stores document content for the given URI.
func (ds *DocumentStore) Set(uri, content string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	ds.documents[uri] = content
}

// Get retrieves document content by URI.
func (ds *DocumentStore) Get(uri string) (string, bool) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	content, ok := ds.documents[uri]

	return content, ok
}

// Delete removes document content by URI.
func (ds *DocumentStore) Delete(uri string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	delete(ds.documents, uri)
}

// ServerDeps holds injectable dependencies for the LSP server.
// Zero-value fields use production defaults.
type ServerDeps struct {
	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger

	// Cache is an optional reference cache shared across rescans.
	Cache *refcache.Cache

	// Scan configures the workspace scans.
	Scan config.ScanConfig
}

// Server implements the deadwood LSP server.
type Server struct {
	store   *DocumentStore
	handler protocol.Handler
	logger  *slog.Logger
	cache   *refcache.Cache
	scanCfg config.ScanConfig

	mu      sync.Mutex
	root    string
	current map[string][]protocol.Diagnostic
}

// NewServer creates a new deadwood LSP server with default handlers.
func NewServer(deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	srv := &Server{
		store:   NewDocumentStore(),
		logger:  logger,
		cache:   deps.Cache,
		scanCfg: deps.Scan,
		current: make(map[string][]protocol.Diagnostic),
	}

	srv.handler = protocol.Handler{
		Initialize:            srv.initialize,
		Initialized:           srv.initialized,
		Shutdown:              srv.shutdown,
		SetTrace:              srv.setTrace,
		TextDocumentDidOpen:   srv.didOpen,
		TextDocumentDidChange: srv.didChange,
		TextDocumentDidSave:   srv.didSave,
		TextDocumentDidClose:  srv.didClose,
	}

	return srv
}

// Run starts the LSP server on stdio. It blocks until the connection
// closes.
func (srv *Server) Run() error {
	lspServer := server.NewServer(&srv.handler, serverName, false)

	err := lspServer.RunStdio()
	if err != nil {
		return fmt.Errorf("lsp server: %w", err)
	}

	return nil
}

func (srv *Server) initialize(_ *glsp.Context, params *protocol.InitializeParams) (any, error) {
	root := ""
	if params.RootURI != nil {
		root = pathFromURI(string(*params.RootURI))
	}

	if root == "" && params.RootPath != nil {
		root = *params.RootPath
	}

	srv.mu.Lock()
	srv.root = root
	srv.mu.Unlock()

	capabilities := srv.handler.CreateServerCapabilities()

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    serverName,
			Version: &version.Version,
		},
	}, nil
}

func (srv *Server) initialized(ctx *glsp.Context, _ *protocol.InitializedParams) error {
	srv.rescan(ctx)

	return nil
}

func (srv *Server) shutdown(_ *glsp.Context) error {
	protocol.SetTraceValue(protocol.TraceValueOff)

	return nil
}

func (srv *Server) setTrace(_ *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)

	return nil
}

func (srv *Server) didOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := string(params.TextDocument.URI)
	srv.store.Set(uri, params.TextDocument.Text)

	// Re-announce what the last scan already knows about this file.
	srv.mu.Lock()
	fileDiags, known := srv.current[uri]
	srv.mu.Unlock()

	if known {
		notifyDiagnostics(ctx, uri, fileDiags)
	}

	return nil
}

func (srv *Server) didChange(_ *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := string(params.TextDocument.URI)

	if len(params.ContentChanges) > 0 {
		if change, changeOK := params.ContentChanges[0].(map[string]any); changeOK {
			if text, textOK := change["text"].(string); textOK {
				srv.store.Set(uri, text)
			}
		}
	}

	return nil
}

func (srv *Server) didSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	uri := string(params.TextDocument.URI)

	if params.Text != nil {
		srv.store.Set(uri, *params.Text)
	}

	srv.rescan(ctx)

	return nil
}

func (srv *Server) didClose(_ *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	srv.store.Delete(string(params.TextDocument.URI))

	return nil
}

func (srv *Server) projectRoot() string {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	return srv.root
}
