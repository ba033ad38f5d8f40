package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/olemoy/craigpy/internal/searcher"
	"github.com/olemoy/craigpy/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams    = -32602 // Invalid method parameters
	ErrorCodeInternalError    = -32603 // Internal JSON-RPC error
	ErrorCodeRepoNotFound     = -32001 // Repository name not indexed
	ErrorCodeIngestInProgress = -32002 // An ingest holds the repository lock
	ErrorCodeFileNotFound     = -32003 // File not tracked by the index
	ErrorCodeEmptyQuery       = -32004 // Query parameter is empty
)

// MCPError carries a JSON-RPC error code; the framework handles encoding.
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{Code: code, Message: message, Data: data}
}

// mapDomainError converts known domain errors to coded MCP errors.
func mapDomainError(err error) error {
	switch {
	case errors.Is(err, types.ErrRepositoryNotFound):
		return newMCPError(ErrorCodeRepoNotFound, err.Error(), nil)
	case errors.Is(err, types.ErrFileNotFound):
		return newMCPError(ErrorCodeFileNotFound, err.Error(), nil)
	case errors.Is(err, types.ErrEmptyQuery):
		return newMCPError(ErrorCodeEmptyQuery, err.Error(), nil)
	case errors.Is(err, types.ErrIngestInProgress):
		return newMCPError(ErrorCodeIngestInProgress, err.Error(), nil)
	default:
		return newMCPError(ErrorCodeInternalError, err.Error(), nil)
	}
}

func (s *Server) handleQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param": "query",
		})
	}

	opts := searcher.Options{
		Repository:    getStringDefault(args, "repo", ""),
		Limit:         getIntDefault(args, "limit", searcher.DefaultLimit),
		Language:      getStringDefault(args, "language", ""),
		PathPrefix:    getStringDefault(args, "path_prefix", ""),
		MinSimilarity: getFloatDefault(args, "min_similarity", 0),
	}
	if opts.Limit < 1 || opts.Limit > searcher.MaxLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit", "value": opts.Limit,
		})
	}

	results, err := s.searcher.SemanticSearch(ctx, query, opts)
	if err != nil {
		return nil, mapDomainError(err)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"results": formatResults(results),
		"count":   len(results),
	})), nil
}

func (s *Server) handleSimilar(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	repo := getStringDefault(args, "repo", "")
	file := getStringDefault(args, "file", "")
	line := getIntDefault(args, "line", 0)
	if repo == "" || file == "" || line < 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "repo, file, and line are required", nil)
	}

	opts := searcher.Options{
		Repository: repo,
		Limit:      getIntDefault(args, "limit", searcher.DefaultLimit),
	}
	results, err := s.searcher.FindSimilar(ctx, repo, file, line, opts)
	if err != nil {
		return nil, mapDomainError(err)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"results": formatResults(results),
		"count":   len(results),
	})), nil
}

func (s *Server) handleSimilarSnippet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	snippet := getStringDefault(args, "snippet", "")
	if snippet == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "snippet parameter is required", map[string]interface{}{
			"param": "snippet",
		})
	}

	opts := searcher.Options{
		Repository: getStringDefault(args, "repo", ""),
		Limit:      getIntDefault(args, "limit", searcher.DefaultLimit),
	}
	results, err := s.searcher.SimilarToSnippet(ctx, snippet, opts)
	if err != nil {
		return nil, mapDomainError(err)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"results": formatResults(results),
		"count":   len(results),
	})), nil
}

func (s *Server) handleFindSymbol(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	name := getStringDefault(args, "name", "")
	if name == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "name parameter is required", map[string]interface{}{
			"param": "name",
		})
	}

	opts := searcher.Options{
		Repository: getStringDefault(args, "repo", ""),
		Limit:      getIntDefault(args, "limit", searcher.DefaultLimit),
		Language:   getStringDefault(args, "language", ""),
		SymbolKind: getStringDefault(args, "kind", ""),
	}
	results, err := s.searcher.FindSymbol(ctx, name, opts)
	if err != nil {
		return nil, mapDomainError(err)
	}

	formatted := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		formatted = append(formatted, map[string]interface{}{
			"repo":       r.Repository,
			"file":       r.FilePath,
			"start_line": r.StartLine,
			"end_line":   r.EndLine,
			"language":   r.Language,
			"symbol":     r.SymbolName,
			"kind":       r.SymbolKind,
		})
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"symbols": formatted,
		"count":   len(formatted),
	})), nil
}

func (s *Server) handleRepos(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repos, err := s.searcher.ListRepositories(ctx)
	if err != nil {
		return nil, mapDomainError(err)
	}

	formatted := make([]map[string]interface{}, 0, len(repos))
	for _, r := range repos {
		entry := map[string]interface{}{
			"name":      r.Name,
			"root_path": r.RootPath,
		}
		if !r.IngestedAt.IsZero() {
			entry["ingested_at"] = r.IngestedAt.UTC().Format("2006-01-02T15:04:05Z")
		}
		formatted = append(formatted, entry)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"repositories": formatted,
		"count":        len(formatted),
	})), nil
}

func (s *Server) handleFiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	repo := getStringDefault(args, "repo", "")
	if repo == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "repo parameter is required", map[string]interface{}{
			"param": "repo",
		})
	}

	files, err := s.searcher.ListFiles(ctx, repo,
		getStringDefault(args, "prefix", ""),
		getStringDefault(args, "pattern", ""))
	if err != nil {
		return nil, mapDomainError(err)
	}

	formatted := make([]map[string]interface{}, 0, len(files))
	for _, f := range files {
		entry := map[string]interface{}{
			"path":        f.FilePath,
			"language":    f.Language,
			"size_bytes":  f.SizeBytes,
			"chunk_count": f.ChunkCount,
		}
		if f.Skipped {
			entry["skipped"] = true
			entry["skip_reason"] = f.SkipReason
		}
		formatted = append(formatted, entry)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"files": formatted,
		"count": len(formatted),
	})), nil
}

func (s *Server) handleStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	repo := getStringDefault(args, "repo", "")

	stats, err := s.searcher.Stats(ctx, repo)
	if err != nil {
		return nil, mapDomainError(err)
	}

	response := map[string]interface{}{
		"files":         stats.Files,
		"skipped_files": stats.SkippedFiles,
		"chunk_refs":    stats.ChunkRefs,
		"unique_chunks": stats.UniqueChunks,
		"embeddings":    stats.Embeddings,
		"total_tokens":  stats.TotalTokens,
		"languages":     stats.Languages,
	}
	if stats.Repository != "" {
		response["repository"] = stats.Repository
	}
	if !stats.IngestedAt.IsZero() {
		response["ingested_at"] = stats.IngestedAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

func (s *Server) handleReadFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	repo := getStringDefault(args, "repo", "")
	file := getStringDefault(args, "file", "")
	if repo == "" || file == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "repo and file are required", nil)
	}

	content, err := s.searcher.ReadFile(ctx, repo, file)
	if err != nil {
		return nil, mapDomainError(err)
	}
	return mcp.NewToolResultText(content), nil
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	repo := getStringDefault(args, "repo", "")
	if repo != "" {
		cs, err := s.indexer.Status(ctx, repo)
		if err != nil {
			return nil, mapDomainError(err)
		}
		return mcp.NewToolResultText(formatJSON(statusEntry(repo, cs))), nil
	}

	repos, err := s.searcher.ListRepositories(ctx)
	if err != nil {
		return nil, mapDomainError(err)
	}
	entries := make([]map[string]interface{}, 0, len(repos))
	for _, r := range repos {
		cs, err := s.indexer.Status(ctx, r.Name)
		if err != nil {
			return nil, mapDomainError(err)
		}
		entries = append(entries, statusEntry(r.Name, cs))
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"repositories": entries,
		"count":        len(entries),
	})), nil
}

func statusEntry(name string, cs *types.Changeset) map[string]interface{} {
	return map[string]interface{}{
		"repo":      name,
		"added":     cs.Added,
		"modified":  cs.Modified,
		"deleted":   cs.Deleted,
		"unchanged": len(cs.Unchanged),
		"clean":     !cs.HasChanges(),
	}
}

func formatResults(results []types.SearchResult) []map[string]interface{} {
	formatted := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		entry := map[string]interface{}{
			"repo":       r.Repository,
			"file":       r.FilePath,
			"start_line": r.StartLine,
			"end_line":   r.EndLine,
			"language":   r.Language,
			"similarity": r.Similarity,
			"content":    r.Content,
		}
		if r.SymbolName != "" {
			entry["symbol"] = r.SymbolName
			entry["kind"] = r.SymbolKind
		}
		formatted = append(formatted, entry)
	}
	return formatted
}

func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key].(float64); ok {
		return val
	}
	return defaultValue
}

func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
