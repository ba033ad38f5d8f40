package searcher

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olemoy/craigpy/internal/embedder"
	"github.com/olemoy/craigpy/internal/storage"
	"github.com/olemoy/craigpy/pkg/types"
)

const (
	handlerSrc = "func HandleRequest(w http.ResponseWriter, r *http.Request) {\n\tw.WriteHeader(200)\n}\n"
	parserSrc  = "func parseBody(r io.Reader) ([]byte, error) {\n\treturn io.ReadAll(r)\n}\n"
	pythonSrc  = "class Handler:\n    def serve(self):\n        pass\n"
)

type fixture struct {
	store    *storage.SQLiteStorage
	searcher *Searcher
	repoID   string
}

func sealChunk(content string, ordinal, startLine, endLine int, language, symName, symKind string) types.Chunk {
	c := types.Chunk{
		Content:    content,
		Ordinal:    ordinal,
		StartLine:  startLine,
		EndLine:    endLine,
		Language:   language,
		SymbolName: symName,
		SymbolKind: symKind,
	}
	c.Seal()
	return c
}

// newFixture seeds one repository: a.go and dup.go share the handler
// chunk content, b.py carries a python symbol, and skipped.bin is a
// recorded skip.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "search.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	embed := embedder.NewLocalProvider(nil)

	repo := &storage.Repository{ID: uuid.NewString(), Name: "proj", RootPath: "/src/proj"}
	require.NoError(t, store.CreateRepository(ctx, repo))

	embedFor := func(chunks ...types.Chunk) []*storage.Embedding {
		out := make([]*storage.Embedding, len(chunks))
		for i, c := range chunks {
			emb, err := embed.Embed(ctx, c.Content)
			require.NoError(t, err)
			out[i] = &storage.Embedding{
				ChunkHash: c.ContentHash,
				Vector:    emb.Vector,
				Dimension: emb.Dimension,
				Provider:  emb.Provider,
				Model:     emb.Model,
			}
		}
		return out
	}

	handler := sealChunk(handlerSrc, 0, 1, 3, "go", "HandleRequest", "function")
	parser := sealChunk(parserSrc, 1, 5, 7, "go", "parseBody", "function")
	require.NoError(t, store.UpsertFileChunks(ctx, &storage.File{
		RepositoryID: repo.ID, FilePath: "a.go", ContentHash: "ha", Language: "go", ChunkCount: 2,
	}, []types.Chunk{handler, parser}, embedFor(handler, parser)))

	dupHandler := sealChunk(handlerSrc, 0, 1, 3, "go", "HandleRequest", "function")
	require.NoError(t, store.UpsertFileChunks(ctx, &storage.File{
		RepositoryID: repo.ID, FilePath: "dup.go", ContentHash: "hd", Language: "go", ChunkCount: 1,
	}, []types.Chunk{dupHandler}, nil))

	pyClass := sealChunk(pythonSrc, 0, 1, 3, "python", "Handler", "class")
	require.NoError(t, store.UpsertFileChunks(ctx, &storage.File{
		RepositoryID: repo.ID, FilePath: "b.py", ContentHash: "hb", Language: "python", ChunkCount: 1,
	}, []types.Chunk{pyClass}, embedFor(pyClass)))

	require.NoError(t, store.UpsertSkippedFile(ctx, &storage.File{
		RepositoryID: repo.ID, FilePath: "skipped.bin", SkipReason: "binary content",
	}))

	return &fixture{store: store, searcher: New(store, embed), repoID: repo.ID}
}

func TestSemanticSearchExactMatch(t *testing.T) {
	fx := newFixture(t)

	// The query text equals an indexed chunk, so the deterministic
	// embedder scores it at similarity 1.
	results, err := fx.searcher.SemanticSearch(context.Background(), handlerSrc, Options{
		Repository:    "proj",
		MinSimilarity: 0.99,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	paths := []string{results[0].FilePath, results[1].FilePath}
	assert.ElementsMatch(t, []string{"a.go", "dup.go"}, paths)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-4)
	assert.Equal(t, "HandleRequest", results[0].SymbolName)
}

func TestSemanticSearchEmptyQuery(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.searcher.SemanticSearch(context.Background(), "   ", Options{})
	assert.ErrorIs(t, err, types.ErrEmptyQuery)
}

func TestSemanticSearchUnknownRepository(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.searcher.SemanticSearch(context.Background(), "anything", Options{Repository: "ghost"})
	assert.ErrorIs(t, err, types.ErrRepositoryNotFound)
}

func TestSemanticSearchLanguageFilter(t *testing.T) {
	fx := newFixture(t)

	results, err := fx.searcher.SemanticSearch(context.Background(), pythonSrc, Options{
		Repository:    "proj",
		Language:      "python",
		MinSimilarity: 0.99,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b.py", results[0].FilePath)
}

func TestSemanticSearchLimit(t *testing.T) {
	fx := newFixture(t)

	results, err := fx.searcher.SemanticSearch(context.Background(), handlerSrc, Options{
		Repository:    "proj",
		Limit:         1,
		MinSimilarity: 0.99,
	})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSemanticSearchPathPrefix(t *testing.T) {
	fx := newFixture(t)

	results, err := fx.searcher.SemanticSearch(context.Background(), handlerSrc, Options{
		Repository:    "proj",
		PathPrefix:    "dup",
		MinSimilarity: 0.99,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "dup.go", results[0].FilePath)
}

func TestSimilarToSnippet(t *testing.T) {
	fx := newFixture(t)

	results, err := fx.searcher.SimilarToSnippet(context.Background(), handlerSrc, Options{
		Repository:    "proj",
		MinSimilarity: 0.99,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	_, err = fx.searcher.SimilarToSnippet(context.Background(), "  ", Options{})
	assert.ErrorIs(t, err, types.ErrEmptyQuery)
}

func TestFindSimilarExcludesSource(t *testing.T) {
	fx := newFixture(t)

	results, err := fx.searcher.FindSimilar(context.Background(), "proj", "a.go", 2, Options{
		Repository:    "proj",
		MinSimilarity: 0.99,
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		if r.FilePath == "a.go" && r.StartLine == 1 {
			t.Fatalf("source chunk leaked into results: %+v", r)
		}
	}
	assert.Equal(t, "dup.go", results[0].FilePath)
}

func TestFindSimilarUnknownLocation(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.searcher.FindSimilar(context.Background(), "proj", "a.go", 999, Options{Repository: "proj"})
	assert.ErrorIs(t, err, types.ErrFileNotFound)
}

func TestFindSymbolExact(t *testing.T) {
	fx := newFixture(t)

	results, err := fx.searcher.FindSymbol(context.Background(), "HandleRequest", Options{Repository: "proj"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "HandleRequest", results[0].SymbolName)
	assert.Equal(t, "function", results[0].SymbolKind)
}

func TestFindSymbolGlob(t *testing.T) {
	fx := newFixture(t)

	results, err := fx.searcher.FindSymbol(context.Background(), "parse*", Options{Repository: "proj"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "parseBody", results[0].SymbolName)

	all, err := fx.searcher.FindSymbol(context.Background(), "*", Options{Repository: "proj"})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestFindSymbolLanguageFilter(t *testing.T) {
	fx := newFixture(t)

	results, err := fx.searcher.FindSymbol(context.Background(), "*", Options{
		Repository: "proj",
		Language:   "python",
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Handler", results[0].SymbolName)
	assert.Equal(t, "class", results[0].SymbolKind)
}

func TestFindSymbolKindFilter(t *testing.T) {
	fx := newFixture(t)

	functions, err := fx.searcher.FindSymbol(context.Background(), "*", Options{
		Repository: "proj",
		SymbolKind: "function",
	})
	require.NoError(t, err)
	require.Len(t, functions, 3)

	classes, err := fx.searcher.FindSymbol(context.Background(), "*", Options{
		Repository: "proj",
		SymbolKind: "class",
	})
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, "Handler", classes[0].SymbolName)
}

func TestFindSymbolEmptyPattern(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.searcher.FindSymbol(context.Background(), "", Options{})
	assert.ErrorIs(t, err, types.ErrEmptyQuery)
}

func TestListRepositoriesAndFiles(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	repos, err := fx.searcher.ListRepositories(ctx)
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, "proj", repos[0].Name)

	files, err := fx.searcher.ListFiles(ctx, "proj", "", "")
	require.NoError(t, err)
	assert.Len(t, files, 4)

	_, err = fx.searcher.ListFiles(ctx, "ghost", "", "")
	assert.ErrorIs(t, err, types.ErrRepositoryNotFound)

	_, err = fx.searcher.ListFiles(ctx, "", "", "")
	assert.Error(t, err)
}

func TestListFilesFilters(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	goFiles, err := fx.searcher.ListFiles(ctx, "proj", "", "*.go")
	require.NoError(t, err)
	require.Len(t, goFiles, 2)

	prefixed, err := fx.searcher.ListFiles(ctx, "proj", "a", "")
	require.NoError(t, err)
	require.Len(t, prefixed, 1)
	assert.Equal(t, "a.go", prefixed[0].FilePath)

	_, err = fx.searcher.ListFiles(ctx, "proj", "", "[bad")
	assert.Error(t, err)
}

func TestStats(t *testing.T) {
	fx := newFixture(t)

	stats, err := fx.searcher.Stats(context.Background(), "proj")
	require.NoError(t, err)
	assert.Equal(t, "proj", stats.Repository)
	assert.Equal(t, 3, stats.Files)
	assert.Equal(t, 1, stats.SkippedFiles)
	assert.Equal(t, 4, stats.ChunkRefs)
	assert.Equal(t, 3, stats.UniqueChunks)
	assert.Equal(t, 3, stats.Embeddings)
	assert.Equal(t, map[string]int{"go": 2, "python": 1}, stats.Languages)

	global, err := fx.searcher.Stats(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 3, global.UniqueChunks)
}

func TestReadFile(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	// Two chunks overlapping at line 4 reassemble without duplication.
	first := sealChunk("l1\nl2\nl3\nl4\n", 0, 1, 4, "text", "", "")
	second := sealChunk("l4\nl5\nl6\n", 1, 4, 6, "text", "", "")
	require.NoError(t, fx.store.UpsertFileChunks(ctx, &storage.File{
		RepositoryID: fx.repoID, FilePath: "notes.txt", ContentHash: "hn", ChunkCount: 2,
	}, []types.Chunk{first, second}, nil))

	content, err := fx.searcher.ReadFile(ctx, "proj", "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "l1\nl2\nl3\nl4\nl5\nl6\n", content)
}

func TestReadFileSkipped(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.searcher.ReadFile(context.Background(), "proj", "skipped.bin")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, types.ErrFileNotFound)
}

func TestReadFileMissing(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.searcher.ReadFile(context.Background(), "proj", "absent.go")
	assert.ErrorIs(t, err, types.ErrFileNotFound)
}
