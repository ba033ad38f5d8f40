// Package indexer coordinates the ingest pipeline: walk, hash, diff,
// chunk, embed, store.
//
// # Incremental Ingest
//
// An ingest hashes every included file concurrently, builds a merkle
// tree, and diffs it against the tree from the previous run. Only
// added and modified files are re-chunked; unchanged subtrees are never
// touched. Chunks whose content hash already has a stored vector skip
// the embedding provider entirely.
//
//	idx := indexer.New(store, embed, settings, nil)
//	summary, err := idx.Ingest(ctx, "myrepo", "/path/to/repo", nil)
//
// # Failure Handling
//
// Each file commits in its own transaction. A file that fails to chunk
// or embed is logged and reported in the summary; the rest of the run
// continues and the failed file keeps its previously indexed state.
// Cancelling the context stops the run but loses nothing already
// committed.
//
// # Locking
//
// One ingest per repository at a time. A second concurrent ingest of
// the same repository fails immediately with ErrIngestInProgress
// instead of queueing; different repositories never contend.
package indexer
