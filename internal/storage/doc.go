// Package storage persists repositories, files, chunks, embeddings, and
// hash trees in a single SQLite database.
//
// # Schema
//
// Six tables:
//   - repositories: registered repository roots
//   - files: tracked files, including recorded skips
//   - chunks: chunk text keyed by content hash, shared globally
//   - chunk_refs: where a chunk appears (file, lines, ordinal, symbol)
//   - embeddings: one vector per chunk hash
//   - merkle_nodes: the persisted hash tree per repository
//
// Chunk content is deduplicated across files and repositories: two
// files containing the same text share one chunks row and one vector.
// chunk_refs carries the per-occurrence position and symbol metadata.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage("~/.local/share/craig/craig.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	err = store.UpsertFileChunks(ctx, file, chunks, embeddings)
//
// UpsertFileChunks replaces a file's row, refs, and any new chunk
// contents in one transaction. Chunk contents the replacement leaves
// without references are garbage collected inside the same transaction,
// so a failed upsert leaves the previous state intact.
//
// # Vector Search
//
// SearchVector returns fully hydrated hits ordered by cosine
// similarity:
//
//	results, err := store.SearchVector(ctx, repoID, queryVector, 10, 0.3)
//
// # Build Tags
//
// Two build configurations select the SQLite driver:
//
// CGO build (sqlite_vec tag):
//
//   - github.com/mattn/go-sqlite3 driver
//
//   - sqlite-vec extension scores vectors inside SQL
//
//     CGO_ENABLED=1 go build -tags "sqlite_vec"
//
// Pure Go build (default, purego tag):
//
//   - modernc.org/sqlite driver
//
//   - cosine similarity computed in Go
//
//     CGO_ENABLED=0 go build
//
// # Migrations
//
// The schema is versioned with semver. Opening the database applies any
// migrations newer than the stored version, each in its own
// transaction.
package storage
