package mcp

import (
	"context"
	"io"
	"log"
	"sync"

	"github.com/mark3labs/mcp-go/server"

	"github.com/codedogQBY/ReadAny/internal/config"
	"github.com/codedogQBY/ReadAny/internal/engine"
	"github.com/codedogQBY/ReadAny/internal/indexer"
	"github.com/codedogQBY/ReadAny/internal/searcher"
	"github.com/codedogQBY/ReadAny/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "readany"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// DocumentLister enumerates the documents a reader can serve
type DocumentLister interface {
	Documents(ctx context.Context) ([]string, error)
}

// Deps are the components a Server dispatches to
type Deps struct {
	Store    storage.VectorStore
	Indexer  *indexer.Indexer
	Searcher *searcher.Searcher
	Library  DocumentLister // Optional; enables the library listing of list_documents
	Search   config.SearchConfig
	Closers  []io.Closer // Closed after the indexer and before the store
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	store    storage.VectorStore
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	library  DocumentLister
	search   config.SearchConfig
	closers  []io.Closer

	closeOnce sync.Once
	closeErr  error
}

// New creates a server around already constructed components
func New(deps Deps) *Server {
	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		store:    deps.Store,
		indexer:  deps.Indexer,
		searcher: deps.Searcher,
		library:  deps.Library,
		search:   deps.Search,
		closers:  deps.Closers,
	}
	if s.search.DefaultTopK <= 0 {
		s.search.DefaultTopK = 5
	}
	s.registerTools()
	return s
}

// NewServer builds the store, library, embedder, indexer and searcher from cfg
func NewServer(cfg *config.Config, logger *log.Logger) (*Server, error) {
	eng, err := engine.Open(cfg, engine.Options{Logger: logger})
	if err != nil {
		return nil, err
	}
	return FromEngine(eng, cfg.Search), nil
}

// FromEngine serves an already opened engine. Closing the server closes it.
func FromEngine(eng *engine.Engine, search config.SearchConfig) *Server {
	return New(Deps{
		Store:    eng.Store,
		Indexer:  eng.Indexer,
		Searcher: eng.Searcher,
		Library:  eng.Library,
		Search:   search,
		Closers:  []io.Closer{eng.Embedder},
	})
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.Close() }()
	return server.ServeStdio(s.mcp)
}

// Close stops running vectorizations and releases the store. It is safe to
// call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		if s.indexer != nil {
			s.closeErr = s.indexer.Close()
		}
		for _, c := range s.closers {
			if err := c.Close(); err != nil && s.closeErr == nil {
				s.closeErr = err
			}
		}
		if s.store != nil {
			if err := s.store.Close(); err != nil && s.closeErr == nil {
				s.closeErr = err
			}
		}
	})
	return s.closeErr
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(vectorizeDocumentTool(), s.handleVectorizeDocument)
	s.mcp.AddTool(cancelVectorizationTool(), s.handleCancelVectorization)
	s.mcp.AddTool(getVectorizationStatusTool(), s.handleGetVectorizationStatus)
	s.mcp.AddTool(searchDocumentTool(), s.handleSearchDocument)
	s.mcp.AddTool(deleteDocumentTool(), s.handleDeleteDocument)
	s.mcp.AddTool(listDocumentsTool(), s.handleListDocuments)
}
