package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.0.0"
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
		Down:    migrationV1Down,
	},
}

const migrationV1Up = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Repositories table
CREATE TABLE IF NOT EXISTS repositories (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    root_path TEXT NOT NULL,
    ingested_at TIMESTAMP,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_repositories_root_path ON repositories(root_path);

-- Files table
CREATE TABLE IF NOT EXISTS files (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    repository_id TEXT NOT NULL,
    file_path TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    size_bytes INTEGER NOT NULL DEFAULT 0,
    language TEXT,
    chunk_count INTEGER NOT NULL DEFAULT 0,
    skipped INTEGER NOT NULL DEFAULT 0,
    skip_reason TEXT,
    last_modified TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (repository_id) REFERENCES repositories(id) ON DELETE CASCADE,
    UNIQUE(repository_id, file_path)
);

CREATE INDEX IF NOT EXISTS idx_files_repository ON files(repository_id);
CREATE INDEX IF NOT EXISTS idx_files_hash ON files(content_hash);

-- Merkle tree nodes, one row per path per repository
CREATE TABLE IF NOT EXISTS merkle_nodes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    repository_id TEXT NOT NULL,
    node_path TEXT NOT NULL,
    hash TEXT NOT NULL,
    is_dir INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (repository_id) REFERENCES repositories(id) ON DELETE CASCADE,
    UNIQUE(repository_id, node_path)
);

CREATE INDEX IF NOT EXISTS idx_merkle_repository ON merkle_nodes(repository_id);

-- Chunk contents, shared across files by content hash
CREATE TABLE IF NOT EXISTS chunks (
    content_hash TEXT PRIMARY KEY,
    content TEXT NOT NULL,
    token_count INTEGER NOT NULL DEFAULT 0
);

-- Chunk occurrences within files
CREATE TABLE IF NOT EXISTS chunk_refs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    file_id INTEGER NOT NULL,
    chunk_hash TEXT NOT NULL,
    ordinal INTEGER NOT NULL,
    start_line INTEGER NOT NULL DEFAULT 0,
    end_line INTEGER NOT NULL DEFAULT 0,
    language TEXT,
    symbol_name TEXT,
    symbol_kind TEXT,
    FOREIGN KEY (file_id) REFERENCES files(id) ON DELETE CASCADE,
    FOREIGN KEY (chunk_hash) REFERENCES chunks(content_hash),
    UNIQUE(file_id, ordinal)
);

CREATE INDEX IF NOT EXISTS idx_chunk_refs_file ON chunk_refs(file_id);
CREATE INDEX IF NOT EXISTS idx_chunk_refs_hash ON chunk_refs(chunk_hash);
CREATE INDEX IF NOT EXISTS idx_chunk_refs_symbol ON chunk_refs(symbol_name);

-- Embeddings, one per unique chunk
CREATE TABLE IF NOT EXISTS embeddings (
    chunk_hash TEXT PRIMARY KEY,
    vector BLOB NOT NULL,
    dimension INTEGER NOT NULL,
    provider TEXT NOT NULL,
    model TEXT NOT NULL,
    FOREIGN KEY (chunk_hash) REFERENCES chunks(content_hash) ON DELETE CASCADE
);
`

const migrationV1Down = `
DROP TABLE IF EXISTS embeddings;
DROP TABLE IF EXISTS chunk_refs;
DROP TABLE IF EXISTS chunks;
DROP TABLE IF EXISTS merkle_nodes;
DROP TABLE IF EXISTS files;
DROP TABLE IF EXISTS repositories;
DROP TABLE IF EXISTS schema_version;
`

// ApplyMigrations applies all pending migrations to the database
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	current, err := getCurrentVersion(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, migration := range AllMigrations {
		pending, err := isVersionNewer(migration.Version, current)
		if err != nil {
			return fmt.Errorf("failed to compare versions: %w", err)
		}
		if !pending {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration transaction: %w", err)
		}
		if _, err := tx.ExecContext(ctx, migration.Up); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", migration.Version, err)
		}
	}

	return nil
}

// getCurrentVersion returns the highest applied schema version, or ""
// for a fresh database.
func getCurrentVersion(ctx context.Context, db *sql.DB) (string, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return "", err
	}
	defer func() { _ = rows.Close() }()

	var highest *semver.Version
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return "", err
		}
		v, err := semver.NewVersion(raw)
		if err != nil {
			return "", fmt.Errorf("invalid stored schema version %q: %w", raw, err)
		}
		if highest == nil || v.GreaterThan(highest) {
			highest = v
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if highest == nil {
		return "", nil
	}
	return highest.String(), nil
}

// isVersionNewer reports whether candidate is strictly newer than current.
func isVersionNewer(candidate, current string) (bool, error) {
	if current == "" {
		return true, nil
	}
	cv, err := semver.NewVersion(candidate)
	if err != nil {
		return false, err
	}
	cur, err := semver.NewVersion(current)
	if err != nil {
		return false, err
	}
	return cv.GreaterThan(cur), nil
}
