package mcp

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/olemoy/craigpy/internal/config"
	"github.com/olemoy/craigpy/internal/embedder"
	"github.com/olemoy/craigpy/internal/indexer"
	"github.com/olemoy/craigpy/internal/searcher"
	"github.com/olemoy/craigpy/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "craig"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server exposes the read-only query surface over MCP stdio. Ingest
// stays on the CLI; the only write the server performs is embedding the
// query text. Logs go to stderr since stdout carries JSON-RPC frames.
type Server struct {
	mcp      *server.MCPServer
	storage  storage.Storage
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	logger   *log.Logger
}

// NewServer creates an MCP server wired to the index at the configured
// data directory.
func NewServer(settings *config.Settings) (*Server, error) {
	if err := settings.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := storage.NewSQLiteStorage(settings.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	emb, err := embedder.New(settings.Embedding)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		storage:  store,
		indexer:  indexer.New(store, emb, settings, logger),
		searcher: searcher.New(store, emb),
		logger:   logger,
	}
	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.storage.Close() }()
	s.logger.Printf("%s %s serving on stdio", ServerName, ServerVersion)
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(queryTool(), s.handleQuery)
	s.mcp.AddTool(similarTool(), s.handleSimilar)
	s.mcp.AddTool(similarSnippetTool(), s.handleSimilarSnippet)
	s.mcp.AddTool(findSymbolTool(), s.handleFindSymbol)
	s.mcp.AddTool(reposTool(), s.handleRepos)
	s.mcp.AddTool(filesTool(), s.handleFiles)
	s.mcp.AddTool(statsTool(), s.handleStats)
	s.mcp.AddTool(readFileTool(), s.handleReadFile)
	s.mcp.AddTool(statusTool(), s.handleStatus)
}
