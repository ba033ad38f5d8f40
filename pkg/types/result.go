package types

import "time"

// SearchResult is a ranked chunk returned from a query operation.
type SearchResult struct {
	Repository string
	FilePath   string // relative to repository root
	StartLine  int
	EndLine    int
	Language   string
	SymbolName string
	SymbolKind string
	Similarity float64 // cosine similarity, higher is better
	Content    string
}

// SkippedFile records a policy skip (binary, oversized, unreadable) with a
// human-readable reason. Skips are not errors.
type SkippedFile struct {
	Path   string
	Reason string
}

// FileFailure records a file whose ingest was aborted. The file retains
// its previously indexed state.
type FileFailure struct {
	Path string
	Err  string
}

// IngestSummary reports the outcome of one ingest operation. Skips and
// failures are kept distinct: skips are policy decisions, failures mean
// the file's upsert was rolled back.
type IngestSummary struct {
	Repository     string
	Added          int
	Modified       int
	Deleted        int
	Unchanged      int
	ChunksCreated  int
	VectorsReused  int
	Skipped        []SkippedFile
	Failed         []FileFailure
	Duration       time.Duration
}
