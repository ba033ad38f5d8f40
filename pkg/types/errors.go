package types

import "errors"

// Domain errors shared across components.
var (
	// ErrRepositoryNotFound is returned when a repository identifier or
	// name does not match any indexed repository.
	ErrRepositoryNotFound = errors.New("repository not found")

	// ErrFileNotFound is returned when a requested file is not tracked
	// or no longer exists on disk.
	ErrFileNotFound = errors.New("file not found")

	// ErrIngestInProgress is returned when an ingest is requested for a
	// repository that is already being ingested.
	ErrIngestInProgress = errors.New("ingest already in progress for repository")

	// ErrEmptyQuery is returned when a search operation receives an
	// empty query string.
	ErrEmptyQuery = errors.New("query cannot be empty")
)
