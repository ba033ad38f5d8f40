package storage

import (
	"context"
	"time"

	"github.com/olemoy/craigpy/pkg/types"
)

// Storage defines the interface for persisting and querying indexed repositories.
type Storage interface {
	// Repository operations
	CreateRepository(ctx context.Context, repo *Repository) error
	GetRepository(ctx context.Context, name string) (*Repository, error)
	GetRepositoryByPath(ctx context.Context, rootPath string) (*Repository, error)
	ListRepositories(ctx context.Context) ([]*Repository, error)
	TouchRepository(ctx context.Context, repoID string, ingestedAt time.Time) error
	DeleteRepository(ctx context.Context, repoID string) error

	// File operations
	GetFile(ctx context.Context, repoID, filePath string) (*File, error)
	ListFiles(ctx context.Context, repoID string) ([]*File, error)
	DeleteFile(ctx context.Context, repoID, filePath string) error
	UpsertFileChunks(ctx context.Context, file *File, chunks []types.Chunk, embeddings []*Embedding) error
	UpsertSkippedFile(ctx context.Context, file *File) error

	// Merkle tree operations
	GetMerkleNodes(ctx context.Context, repoID string) ([]MerkleNode, error)
	UpsertMerkleNodes(ctx context.Context, repoID string, nodes []MerkleNode) error
	DeleteMerkleNodes(ctx context.Context, repoID string, nodePaths []string) error
	ReplaceMerkleNodes(ctx context.Context, repoID string, nodes []MerkleNode) error

	// Chunk and embedding operations
	FilterMissingEmbeddings(ctx context.Context, chunkHashes []string) ([]string, error)
	GetEmbedding(ctx context.Context, chunkHash string) (*Embedding, error)
	GetFileChunks(ctx context.Context, repoID, filePath string) ([]ChunkDetail, error)
	GetChunkAtLine(ctx context.Context, repoID, filePath string, line int) (*ChunkDetail, error)

	// Query operations
	SearchVector(ctx context.Context, repoID string, vector []float32, limit int, minSimilarity float64) ([]VectorResult, error)
	ListSymbols(ctx context.Context, repoID string) ([]SymbolRow, error)
	GetStats(ctx context.Context, repoID string) (*RepoStats, error)

	// Database operations
	Close() error
}

// Repository is a registered codebase root.
type Repository struct {
	ID         string // uuid
	Name       string
	RootPath   string
	IngestedAt time.Time
	CreatedAt  time.Time
}

// File is one tracked file within a repository. Skipped files are
// recorded with a reason and carry no chunks.
type File struct {
	ID           int64
	RepositoryID string
	FilePath     string // relative to repository root, forward slashes
	ContentHash  string // hex SHA-256 of file bytes
	SizeBytes    int64
	Language     string
	ChunkCount   int
	Skipped      bool
	SkipReason   string
	LastModified time.Time
	UpdatedAt    time.Time
}

// MerkleNode is a persisted hash-tree node.
type MerkleNode struct {
	NodePath string
	Hash     string
	IsDir    bool
}

// Embedding is a stored vector keyed by chunk content hash.
type Embedding struct {
	ChunkHash string
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
}

// ChunkDetail joins a chunk occurrence with its shared content.
type ChunkDetail struct {
	RefID      int64
	ChunkHash  string
	Ordinal    int
	StartLine  int
	EndLine    int
	Language   string
	SymbolName string
	SymbolKind string
	Content    string
	TokenCount int
}

// VectorResult is one similarity search hit, hydrated for presentation.
type VectorResult struct {
	Repository string
	FilePath   string
	ChunkHash  string
	StartLine  int
	EndLine    int
	Language   string
	SymbolName string
	SymbolKind string
	Similarity float64
	Content    string
}

// SymbolRow is one named symbol occurrence.
type SymbolRow struct {
	Repository string
	FilePath   string
	StartLine  int
	EndLine    int
	Language   string
	SymbolName string
	SymbolKind string
	ChunkHash  string
}

// RepoStats summarizes stored state for one repository or, when
// aggregated, the whole index.
type RepoStats struct {
	Repository   string
	Files        int
	SkippedFiles int
	ChunkRefs    int
	UniqueChunks int
	Embeddings   int
	TotalTokens  int
	Languages    map[string]int // indexed file count per language tag
	IngestedAt   time.Time
}
