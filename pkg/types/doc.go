// Package types provides shared type definitions for the craig indexer.
//
// It defines the domain vocabulary used across components: Chunk (a
// bounded segment of a file destined for embedding), Changeset (the
// output of a merkle diff), SearchResult, and the ingest summary types.
// Content hashes are hex-encoded SHA-256 digests and serve double duty as
// change-detection fingerprints and deduplication identity.
package types
