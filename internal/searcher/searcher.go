package searcher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/olemoy/craigpy/internal/embedder"
	"github.com/olemoy/craigpy/internal/storage"
	"github.com/olemoy/craigpy/pkg/types"
)

const (
	// DefaultLimit caps result counts when the caller passes none.
	DefaultLimit = 10
	// MaxLimit is the hard ceiling on any result count.
	MaxLimit = 100
)

// Searcher answers read-only queries against the index. It never
// mutates stored state, so it is safe to serve while an ingest runs.
type Searcher struct {
	store storage.Storage
	embed embedder.Embedder
}

// Options narrow a search.
type Options struct {
	Repository    string // empty searches all repositories
	Limit         int
	MinSimilarity float64
	Language      string // filter results to one language tag
	PathPrefix    string // filter results to paths under this prefix
	SymbolKind    string // symbol searches only: function, method, class, ...
}

// New creates a Searcher.
func New(store storage.Storage, embed embedder.Embedder) *Searcher {
	return &Searcher{store: store, embed: embed}
}

func (s *Searcher) clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// resolveRepo maps an optional repository name to its id. Empty name
// means all repositories.
func (s *Searcher) resolveRepo(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", nil
	}
	repo, err := s.store.GetRepository(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", fmt.Errorf("repository %q: %w", name, types.ErrRepositoryNotFound)
		}
		return "", err
	}
	return repo.ID, nil
}

// SemanticSearch embeds the query text and returns the closest chunks.
func (s *Searcher) SemanticSearch(ctx context.Context, query string, opts Options) ([]types.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, types.ErrEmptyQuery
	}
	repoID, err := s.resolveRepo(ctx, opts.Repository)
	if err != nil {
		return nil, err
	}

	emb, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	return s.vectorSearch(ctx, repoID, emb.Vector, opts)
}

// SimilarToSnippet ranks stored chunks against arbitrary input text.
// The snippet does not need to exist anywhere in the index.
func (s *Searcher) SimilarToSnippet(ctx context.Context, snippet string, opts Options) ([]types.SearchResult, error) {
	if strings.TrimSpace(snippet) == "" {
		return nil, types.ErrEmptyQuery
	}
	repoID, err := s.resolveRepo(ctx, opts.Repository)
	if err != nil {
		return nil, err
	}

	emb, err := s.embed.Embed(ctx, snippet)
	if err != nil {
		return nil, fmt.Errorf("embedding snippet: %w", err)
	}
	return s.vectorSearch(ctx, repoID, emb.Vector, opts)
}

// FindSimilar looks up the chunk covering a file location and returns
// the chunks nearest to its stored vector, excluding the chunk itself.
func (s *Searcher) FindSimilar(ctx context.Context, repoName, filePath string, line int, opts Options) ([]types.SearchResult, error) {
	if repoName == "" {
		return nil, fmt.Errorf("repository name required")
	}
	repoID, err := s.resolveRepo(ctx, repoName)
	if err != nil {
		return nil, err
	}

	detail, err := s.store.GetChunkAtLine(ctx, repoID, filePath, line)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s:%d: %w", filePath, line, types.ErrFileNotFound)
		}
		return nil, err
	}

	emb, err := s.store.GetEmbedding(ctx, detail.ChunkHash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// No stored vector yet; embed the chunk text directly.
			fresh, embErr := s.embed.Embed(ctx, detail.Content)
			if embErr != nil {
				return nil, embErr
			}
			emb = &storage.Embedding{ChunkHash: detail.ChunkHash, Vector: fresh.Vector}
		} else {
			return nil, err
		}
	}

	// Fetch extra rows so dropping the source chunk still fills the limit.
	searchOpts := opts
	searchOpts.Repository = opts.Repository
	searchOpts.Limit = s.clampLimit(opts.Limit) + 1

	scopeID := repoID
	if opts.Repository == "" {
		scopeID = ""
	}
	results, err := s.vectorSearch(ctx, scopeID, emb.Vector, searchOpts)
	if err != nil {
		return nil, err
	}

	limit := s.clampLimit(opts.Limit)
	out := make([]types.SearchResult, 0, limit)
	for _, r := range results {
		if r.FilePath == filePath && r.StartLine == detail.StartLine && r.Repository == repoName {
			continue
		}
		out = append(out, r)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Searcher) vectorSearch(ctx context.Context, repoID string, vector []float32, opts Options) ([]types.SearchResult, error) {
	limit := s.clampLimit(opts.Limit)

	// Over-fetch when post-ranking filters apply, since filtering
	// happens after ranking.
	fetchLimit := limit
	if opts.Language != "" || opts.PathPrefix != "" {
		fetchLimit = limit * 4
		if fetchLimit > MaxLimit*4 {
			fetchLimit = MaxLimit * 4
		}
	}

	rows, err := s.store.SearchVector(ctx, repoID, vector, fetchLimit, opts.MinSimilarity)
	if err != nil {
		return nil, err
	}

	results := make([]types.SearchResult, 0, limit)
	for _, row := range rows {
		if opts.Language != "" && row.Language != opts.Language {
			continue
		}
		if opts.PathPrefix != "" && !strings.HasPrefix(row.FilePath, opts.PathPrefix) {
			continue
		}
		results = append(results, types.SearchResult{
			Repository: row.Repository,
			FilePath:   row.FilePath,
			StartLine:  row.StartLine,
			EndLine:    row.EndLine,
			Language:   row.Language,
			SymbolName: row.SymbolName,
			SymbolKind: row.SymbolKind,
			Similarity: row.Similarity,
			Content:    row.Content,
		})
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

// FindSymbol returns symbol occurrences whose name matches a glob
// pattern. A pattern with no metacharacters matches exactly.
func (s *Searcher) FindSymbol(ctx context.Context, pattern string, opts Options) ([]types.SearchResult, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, types.ErrEmptyQuery
	}
	repoID, err := s.resolveRepo(ctx, opts.Repository)
	if err != nil {
		return nil, err
	}

	matcher, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid symbol pattern %q: %w", pattern, err)
	}

	symbols, err := s.store.ListSymbols(ctx, repoID)
	if err != nil {
		return nil, err
	}

	limit := s.clampLimit(opts.Limit)
	results := make([]types.SearchResult, 0, limit)
	for _, sym := range symbols {
		if !matcher.Match(sym.SymbolName) {
			continue
		}
		if opts.Language != "" && sym.Language != opts.Language {
			continue
		}
		if opts.SymbolKind != "" && sym.SymbolKind != opts.SymbolKind {
			continue
		}
		results = append(results, types.SearchResult{
			Repository: sym.Repository,
			FilePath:   sym.FilePath,
			StartLine:  sym.StartLine,
			EndLine:    sym.EndLine,
			Language:   sym.Language,
			SymbolName: sym.SymbolName,
			SymbolKind: sym.SymbolKind,
		})
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

// ListRepositories returns all registered repositories.
func (s *Searcher) ListRepositories(ctx context.Context) ([]*storage.Repository, error) {
	return s.store.ListRepositories(ctx)
}

// ListFiles returns the tracked files of one repository, optionally
// narrowed by a path prefix and a glob pattern. Either filter may be
// empty.
func (s *Searcher) ListFiles(ctx context.Context, repoName, pathPrefix, globPattern string) ([]*storage.File, error) {
	repoID, err := s.resolveRepo(ctx, repoName)
	if err != nil {
		return nil, err
	}
	if repoID == "" {
		return nil, fmt.Errorf("repository name required")
	}

	var matcher glob.Glob
	if globPattern != "" {
		matcher, err = glob.Compile(globPattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid file pattern %q: %w", globPattern, err)
		}
	}

	files, err := s.store.ListFiles(ctx, repoID)
	if err != nil {
		return nil, err
	}
	if pathPrefix == "" && matcher == nil {
		return files, nil
	}

	filtered := make([]*storage.File, 0, len(files))
	for _, f := range files {
		if pathPrefix != "" && !strings.HasPrefix(f.FilePath, pathPrefix) {
			continue
		}
		if matcher != nil && !matcher.Match(f.FilePath) {
			continue
		}
		filtered = append(filtered, f)
	}
	return filtered, nil
}

// Stats summarizes one repository, or the whole index when repoName is
// empty.
func (s *Searcher) Stats(ctx context.Context, repoName string) (*storage.RepoStats, error) {
	repoID, err := s.resolveRepo(ctx, repoName)
	if err != nil {
		return nil, err
	}
	return s.store.GetStats(ctx, repoID)
}

// ReadFile reassembles a tracked file's indexed content from its chunks
// in ordinal order. Overlapping chunk boundaries mean the result is the
// indexed view, not a byte-exact copy of the file.
func (s *Searcher) ReadFile(ctx context.Context, repoName, filePath string) (string, error) {
	repoID, err := s.resolveRepo(ctx, repoName)
	if err != nil {
		return "", err
	}
	if repoID == "" {
		return "", fmt.Errorf("repository name required")
	}

	file, err := s.store.GetFile(ctx, repoID, filePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", fmt.Errorf("%s: %w", filePath, types.ErrFileNotFound)
		}
		return "", err
	}
	if file.Skipped {
		return "", fmt.Errorf("%s was skipped (%s), no content indexed", filePath, file.SkipReason)
	}

	details, err := s.store.GetFileChunks(ctx, repoID, filePath)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	lastLine := 0
	for _, d := range details {
		content := d.Content
		// Trim leading lines already emitted by the previous chunk's
		// overlap window.
		if d.StartLine <= lastLine && lastLine > 0 {
			skip := lastLine - d.StartLine + 1
			lines := strings.SplitAfter(content, "\n")
			if skip < len(lines) {
				content = strings.Join(lines[skip:], "")
			} else {
				content = ""
			}
		}
		sb.WriteString(content)
		if !strings.HasSuffix(content, "\n") && content != "" {
			sb.WriteString("\n")
		}
		if d.EndLine > lastLine {
			lastLine = d.EndLine
		}
	}
	return sb.String(), nil
}
