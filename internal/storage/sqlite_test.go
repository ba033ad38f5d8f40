package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olemoy/craigpy/pkg/types"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestRepo(t *testing.T, s *SQLiteStorage, name string) *Repository {
	t.Helper()
	repo := &Repository{ID: uuid.NewString(), Name: name, RootPath: "/src/" + name}
	require.NoError(t, s.CreateRepository(context.Background(), repo))
	return repo
}

func makeChunk(content string, ordinal, startLine, endLine int) types.Chunk {
	c := types.Chunk{
		Content:   content,
		Ordinal:   ordinal,
		StartLine: startLine,
		EndLine:   endLine,
		Language:  "go",
	}
	c.Seal()
	return c
}

func makeEmbedding(chunkHash string, seed float32) *Embedding {
	return &Embedding{
		ChunkHash: chunkHash,
		Vector:    []float32{seed, seed * 2, seed * 3},
		Dimension: 3,
		Provider:  "local",
		Model:     "local-hash",
	}
}

func TestRepositoryLifecycle(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	repo := newTestRepo(t, s, "alpha")

	got, err := s.GetRepository(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, repo.ID, got.ID)
	assert.Equal(t, "/src/alpha", got.RootPath)
	assert.True(t, got.IngestedAt.IsZero())

	byPath, err := s.GetRepositoryByPath(ctx, "/src/alpha")
	require.NoError(t, err)
	assert.Equal(t, repo.ID, byPath.ID)

	now := time.Now().Truncate(time.Second)
	require.NoError(t, s.TouchRepository(ctx, repo.ID, now))
	got, err = s.GetRepository(ctx, "alpha")
	require.NoError(t, err)
	assert.False(t, got.IngestedAt.IsZero())

	_, err = s.GetRepository(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateRepositoryDuplicateName(t *testing.T) {
	s := newTestStorage(t)
	newTestRepo(t, s, "dup")

	err := s.CreateRepository(context.Background(), &Repository{
		ID: uuid.NewString(), Name: "dup", RootPath: "/elsewhere",
	})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestListRepositories(t *testing.T) {
	s := newTestStorage(t)
	newTestRepo(t, s, "beta")
	newTestRepo(t, s, "alpha")

	repos, err := s.ListRepositories(context.Background())
	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, "alpha", repos[0].Name)
	assert.Equal(t, "beta", repos[1].Name)
}

func TestUpsertFileChunks(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	repo := newTestRepo(t, s, "proj")

	c1 := makeChunk("func A() {}\n", 0, 1, 1)
	c2 := makeChunk("func B() {}\n", 1, 3, 3)
	file := &File{
		RepositoryID: repo.ID,
		FilePath:     "main.go",
		ContentHash:  "filehash1",
		SizeBytes:    24,
		Language:     "go",
		ChunkCount:   2,
		LastModified: time.Now(),
	}
	embs := []*Embedding{makeEmbedding(c1.ContentHash, 0.1), makeEmbedding(c2.ContentHash, 0.2)}
	require.NoError(t, s.UpsertFileChunks(ctx, file, []types.Chunk{c1, c2}, embs))
	assert.NotZero(t, file.ID)

	got, err := s.GetFile(ctx, repo.ID, "main.go")
	require.NoError(t, err)
	assert.Equal(t, 2, got.ChunkCount)
	assert.Equal(t, "go", got.Language)
	assert.False(t, got.Skipped)

	details, err := s.GetFileChunks(ctx, repo.ID, "main.go")
	require.NoError(t, err)
	require.Len(t, details, 2)
	assert.Equal(t, c1.ContentHash, details[0].ChunkHash)
	assert.Equal(t, "func A() {}\n", details[0].Content)
	assert.Equal(t, 1, details[1].Ordinal)
}

func TestChunkDedupAcrossFiles(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	repo := newTestRepo(t, s, "proj")

	shared := makeChunk("// identical license header\n", 0, 1, 1)
	for _, name := range []string{"a.go", "b.go"} {
		file := &File{RepositoryID: repo.ID, FilePath: name, ContentHash: "h-" + name, ChunkCount: 1}
		require.NoError(t, s.UpsertFileChunks(ctx, file, []types.Chunk{shared},
			[]*Embedding{makeEmbedding(shared.ContentHash, 0.5)}))
	}

	stats, err := s.GetStats(ctx, repo.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 2, stats.ChunkRefs)
	assert.Equal(t, 1, stats.UniqueChunks)
	assert.Equal(t, 1, stats.Embeddings)
}

func TestOrphanCollectionOnDelete(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	repo := newTestRepo(t, s, "proj")

	shared := makeChunk("shared content\n", 0, 1, 1)
	unique := makeChunk("only in a\n", 1, 2, 2)

	fileA := &File{RepositoryID: repo.ID, FilePath: "a.go", ContentHash: "ha", ChunkCount: 2}
	require.NoError(t, s.UpsertFileChunks(ctx, fileA, []types.Chunk{shared, unique},
		[]*Embedding{makeEmbedding(shared.ContentHash, 0.1), makeEmbedding(unique.ContentHash, 0.2)}))

	fileB := &File{RepositoryID: repo.ID, FilePath: "b.go", ContentHash: "hb", ChunkCount: 1}
	require.NoError(t, s.UpsertFileChunks(ctx, fileB, []types.Chunk{shared}, nil))

	require.NoError(t, s.DeleteFile(ctx, repo.ID, "a.go"))

	// The shared chunk survives via b.go; the unique one is collected
	// along with its embedding.
	stats, err := s.GetStats(ctx, repo.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, 1, stats.UniqueChunks)

	_, err = s.GetEmbedding(ctx, unique.ContentHash)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetEmbedding(ctx, shared.ContentHash)
	assert.NoError(t, err)
}

func TestUpsertReplacesChunks(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	repo := newTestRepo(t, s, "proj")

	old := makeChunk("old version\n", 0, 1, 1)
	file := &File{RepositoryID: repo.ID, FilePath: "main.go", ContentHash: "v1", ChunkCount: 1}
	require.NoError(t, s.UpsertFileChunks(ctx, file, []types.Chunk{old},
		[]*Embedding{makeEmbedding(old.ContentHash, 0.1)}))

	updated := makeChunk("new version\n", 0, 1, 1)
	file2 := &File{RepositoryID: repo.ID, FilePath: "main.go", ContentHash: "v2", ChunkCount: 1}
	require.NoError(t, s.UpsertFileChunks(ctx, file2, []types.Chunk{updated},
		[]*Embedding{makeEmbedding(updated.ContentHash, 0.3)}))

	details, err := s.GetFileChunks(ctx, repo.ID, "main.go")
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, updated.ContentHash, details[0].ChunkHash)

	// Old chunk and its vector are gone.
	_, err = s.GetEmbedding(ctx, old.ContentHash)
	assert.ErrorIs(t, err, ErrNotFound)

	stats, err := s.GetStats(ctx, repo.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.UniqueChunks)
}

func TestUpsertSkippedFile(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	repo := newTestRepo(t, s, "proj")

	file := &File{RepositoryID: repo.ID, FilePath: "huge.sql", SizeBytes: 1 << 24, SkipReason: "too large (16777216 bytes)"}
	require.NoError(t, s.UpsertSkippedFile(ctx, file))

	got, err := s.GetFile(ctx, repo.ID, "huge.sql")
	require.NoError(t, err)
	assert.True(t, got.Skipped)
	assert.Equal(t, "too large (16777216 bytes)", got.SkipReason)
	assert.Equal(t, 0, got.ChunkCount)

	stats, err := s.GetStats(ctx, repo.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Files)
	assert.Equal(t, 1, stats.SkippedFiles)
}

func TestDeleteRepositoryCascades(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	repoA := newTestRepo(t, s, "keep")
	repoB := newTestRepo(t, s, "drop")

	shared := makeChunk("cross-repo content\n", 0, 1, 1)
	for _, repo := range []*Repository{repoA, repoB} {
		file := &File{RepositoryID: repo.ID, FilePath: "x.go", ContentHash: "h", ChunkCount: 1}
		require.NoError(t, s.UpsertFileChunks(ctx, file, []types.Chunk{shared},
			[]*Embedding{makeEmbedding(shared.ContentHash, 0.4)}))
	}
	require.NoError(t, s.UpsertMerkleNodes(ctx, repoB.ID, []MerkleNode{{NodePath: ".", Hash: "r", IsDir: true}}))

	require.NoError(t, s.DeleteRepository(ctx, repoB.ID))

	_, err := s.GetRepository(ctx, "drop")
	assert.ErrorIs(t, err, ErrNotFound)

	// Shared content survives through the other repository.
	_, err = s.GetEmbedding(ctx, shared.ContentHash)
	assert.NoError(t, err)

	details, err := s.GetFileChunks(ctx, repoA.ID, "x.go")
	require.NoError(t, err)
	assert.Len(t, details, 1)

	nodes, err := s.GetMerkleNodes(ctx, repoB.ID)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestMerkleNodeRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	repo := newTestRepo(t, s, "proj")

	nodes := []MerkleNode{
		{NodePath: ".", Hash: "root1", IsDir: true},
		{NodePath: "src", Hash: "dir1", IsDir: true},
		{NodePath: "src/main.go", Hash: "leaf1", IsDir: false},
	}
	require.NoError(t, s.UpsertMerkleNodes(ctx, repo.ID, nodes))

	got, err := s.GetMerkleNodes(ctx, repo.ID)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	// Upsert updates in place.
	require.NoError(t, s.UpsertMerkleNodes(ctx, repo.ID, []MerkleNode{
		{NodePath: ".", Hash: "root2", IsDir: true},
	}))
	got, err = s.GetMerkleNodes(ctx, repo.ID)
	require.NoError(t, err)
	byPath := map[string]MerkleNode{}
	for _, n := range got {
		byPath[n.NodePath] = n
	}
	assert.Equal(t, "root2", byPath["."].Hash)
	assert.Len(t, got, 3)

	require.NoError(t, s.DeleteMerkleNodes(ctx, repo.ID, []string{"src/main.go"}))
	got, err = s.GetMerkleNodes(ctx, repo.ID)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	require.NoError(t, s.ReplaceMerkleNodes(ctx, repo.ID, []MerkleNode{
		{NodePath: ".", Hash: "root3", IsDir: true},
	}))
	got, err = s.GetMerkleNodes(ctx, repo.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "root3", got[0].Hash)
}

func TestFilterMissingEmbeddings(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	repo := newTestRepo(t, s, "proj")

	stored := makeChunk("already embedded\n", 0, 1, 1)
	file := &File{RepositoryID: repo.ID, FilePath: "a.go", ContentHash: "h", ChunkCount: 1}
	require.NoError(t, s.UpsertFileChunks(ctx, file, []types.Chunk{stored},
		[]*Embedding{makeEmbedding(stored.ContentHash, 0.1)}))

	missing, err := s.FilterMissingEmbeddings(ctx, []string{stored.ContentHash, "newhash1", "newhash2", "newhash1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"newhash1", "newhash2"}, missing)

	missing, err = s.FilterMissingEmbeddings(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGetChunkAtLine(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	repo := newTestRepo(t, s, "proj")

	c1 := makeChunk("func A() {}\n", 0, 1, 5)
	c2 := makeChunk("func B() {}\n", 1, 6, 12)
	file := &File{RepositoryID: repo.ID, FilePath: "main.go", ContentHash: "h", ChunkCount: 2}
	require.NoError(t, s.UpsertFileChunks(ctx, file, []types.Chunk{c1, c2}, nil))

	d, err := s.GetChunkAtLine(ctx, repo.ID, "main.go", 8)
	require.NoError(t, err)
	assert.Equal(t, c2.ContentHash, d.ChunkHash)

	d, err = s.GetChunkAtLine(ctx, repo.ID, "main.go", 1)
	require.NoError(t, err)
	assert.Equal(t, c1.ContentHash, d.ChunkHash)

	_, err = s.GetChunkAtLine(ctx, repo.ID, "main.go", 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSymbols(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	repo := newTestRepo(t, s, "proj")

	withSym := types.Chunk{Content: "func Parse() {}\n", Ordinal: 0, StartLine: 1, EndLine: 3,
		Language: "go", SymbolName: "Parse", SymbolKind: "function"}
	withSym.Seal()
	noSym := makeChunk("// just a comment\n", 1, 4, 4)

	file := &File{RepositoryID: repo.ID, FilePath: "parse.go", ContentHash: "h", ChunkCount: 2}
	require.NoError(t, s.UpsertFileChunks(ctx, file, []types.Chunk{withSym, noSym}, nil))

	symbols, err := s.ListSymbols(ctx, repo.ID)
	require.NoError(t, err)
	require.Len(t, symbols, 1)
	assert.Equal(t, "Parse", symbols[0].SymbolName)
	assert.Equal(t, "function", symbols[0].SymbolKind)
	assert.Equal(t, "proj", symbols[0].Repository)
	assert.Equal(t, "parse.go", symbols[0].FilePath)
}

func TestSearchVectorFallback(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	repo := newTestRepo(t, s, "proj")

	near := makeChunk("near the query\n", 0, 1, 1)
	far := makeChunk("far from everything\n", 1, 2, 2)
	file := &File{RepositoryID: repo.ID, FilePath: "a.go", ContentHash: "h", ChunkCount: 2}
	require.NoError(t, s.UpsertFileChunks(ctx, file, []types.Chunk{near, far}, []*Embedding{
		{ChunkHash: near.ContentHash, Vector: []float32{1, 0, 0}, Dimension: 3, Provider: "local", Model: "m"},
		{ChunkHash: far.ContentHash, Vector: []float32{0, 0, 1}, Dimension: 3, Provider: "local", Model: "m"},
	}))

	results, err := s.SearchVector(ctx, repo.ID, []float32{0.9, 0.1, 0}, 10, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, near.ContentHash, results[0].ChunkHash)
	assert.Equal(t, "a.go", results[0].FilePath)
	assert.Greater(t, results[0].Similarity, 0.9)

	// Zero limit returns nothing.
	results, err = s.SearchVector(ctx, repo.ID, []float32{1, 0, 0}, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchVectorRanking(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	repo := newTestRepo(t, s, "proj")

	chunks := []types.Chunk{
		makeChunk("alpha\n", 0, 1, 1),
		makeChunk("bravo\n", 1, 2, 2),
		makeChunk("charlie\n", 2, 3, 3),
	}
	vectors := [][]float32{{1, 0, 0}, {0.7, 0.7, 0}, {0, 1, 0}}
	embs := make([]*Embedding, len(chunks))
	for i := range chunks {
		embs[i] = &Embedding{ChunkHash: chunks[i].ContentHash, Vector: vectors[i], Dimension: 3, Provider: "p", Model: "m"}
	}
	file := &File{RepositoryID: repo.ID, FilePath: "a.go", ContentHash: "h", ChunkCount: 3}
	require.NoError(t, s.UpsertFileChunks(ctx, file, chunks, embs))

	results, err := s.SearchVector(ctx, repo.ID, []float32{1, 0, 0}, 2, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, chunks[0].ContentHash, results[0].ChunkHash)
	assert.Equal(t, chunks[1].ContentHash, results[1].ChunkHash)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-6)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, cosineSimilarity(nil, nil))
}

func TestVectorSerialization(t *testing.T) {
	original := []float32{0.1, -2.5, 3.14159, 0}
	blob := serializeVector(original)
	assert.Len(t, blob, 16)

	restored, err := deserializeVector(blob)
	require.NoError(t, err)
	assert.Equal(t, original, restored)

	_, err = deserializeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestMigrationsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "migrate.db")
	s1, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	// Reopening applies no duplicate migrations.
	s2, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	repo := &Repository{ID: uuid.NewString(), Name: "after-reopen", RootPath: "/x"}
	assert.NoError(t, s2.CreateRepository(context.Background(), repo))
}
