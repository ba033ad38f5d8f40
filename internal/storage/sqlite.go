package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/olemoy/craigpy/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Repository operations

func (s *SQLiteStorage) CreateRepository(ctx context.Context, repo *Repository) error {
	query := `
		INSERT INTO repositories (id, name, root_path, created_at)
		VALUES (?, ?, ?, ?)
	`
	now := time.Now()
	_, err := s.db.ExecContext(ctx, query, repo.ID, repo.Name, repo.RootPath, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("repository %q: %w", repo.Name, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create repository: %w", err)
	}
	repo.CreatedAt = now
	return nil
}

func scanRepository(row interface{ Scan(...interface{}) error }) (*Repository, error) {
	var repo Repository
	var ingestedAt sql.NullTime
	err := row.Scan(&repo.ID, &repo.Name, &repo.RootPath, &ingestedAt, &repo.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if ingestedAt.Valid {
		repo.IngestedAt = ingestedAt.Time
	}
	return &repo, nil
}

func (s *SQLiteStorage) GetRepository(ctx context.Context, name string) (*Repository, error) {
	query := `
		SELECT id, name, root_path, ingested_at, created_at
		FROM repositories
		WHERE name = ?
	`
	return scanRepository(s.db.QueryRowContext(ctx, query, name))
}

func (s *SQLiteStorage) GetRepositoryByPath(ctx context.Context, rootPath string) (*Repository, error) {
	query := `
		SELECT id, name, root_path, ingested_at, created_at
		FROM repositories
		WHERE root_path = ?
	`
	return scanRepository(s.db.QueryRowContext(ctx, query, rootPath))
}

func (s *SQLiteStorage) ListRepositories(ctx context.Context) ([]*Repository, error) {
	query := `
		SELECT id, name, root_path, ingested_at, created_at
		FROM repositories
		ORDER BY name
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var repos []*Repository
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, err
		}
		repos = append(repos, repo)
	}
	return repos, rows.Err()
}

func (s *SQLiteStorage) TouchRepository(ctx context.Context, repoID string, ingestedAt time.Time) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE repositories SET ingested_at = ? WHERE id = ?", ingestedAt, repoID)
	if err != nil {
		return fmt.Errorf("failed to update repository: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRepository removes a repository and everything attached to it.
// Files, chunk refs, and merkle nodes cascade; chunk contents shared
// with no other repository are garbage collected afterwards.
func (s *SQLiteStorage) DeleteRepository(ctx context.Context, repoID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, "DELETE FROM repositories WHERE id = ?", repoID)
	if err != nil {
		return fmt.Errorf("failed to delete repository: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM chunks
		WHERE content_hash NOT IN (SELECT DISTINCT chunk_hash FROM chunk_refs)
	`); err != nil {
		return fmt.Errorf("failed to collect orphaned chunks: %w", err)
	}

	return tx.Commit()
}

// File operations

func scanFile(row interface{ Scan(...interface{}) error }) (*File, error) {
	var f File
	var language, skipReason sql.NullString
	var lastModified, updatedAt sql.NullTime
	err := row.Scan(&f.ID, &f.RepositoryID, &f.FilePath, &f.ContentHash, &f.SizeBytes,
		&language, &f.ChunkCount, &f.Skipped, &skipReason, &lastModified, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	f.Language = language.String
	f.SkipReason = skipReason.String
	if lastModified.Valid {
		f.LastModified = lastModified.Time
	}
	if updatedAt.Valid {
		f.UpdatedAt = updatedAt.Time
	}
	return &f, nil
}

const fileColumns = `id, repository_id, file_path, content_hash, size_bytes,
       language, chunk_count, skipped, skip_reason, last_modified, updated_at`

func (s *SQLiteStorage) GetFile(ctx context.Context, repoID, filePath string) (*File, error) {
	query := "SELECT " + fileColumns + " FROM files WHERE repository_id = ? AND file_path = ?"
	return scanFile(s.db.QueryRowContext(ctx, query, repoID, filePath))
}

func (s *SQLiteStorage) ListFiles(ctx context.Context, repoID string) ([]*File, error) {
	query := "SELECT " + fileColumns + " FROM files WHERE repository_id = ? ORDER BY file_path"
	rows, err := s.db.QueryContext(ctx, query, repoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// DeleteFile removes one file row. Its chunk refs cascade; chunk
// contents no longer referenced anywhere are garbage collected.
func (s *SQLiteStorage) DeleteFile(ctx context.Context, repoID, filePath string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	hashes, err := fileChunkHashes(ctx, tx, repoID, filePath)
	if err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx,
		"DELETE FROM files WHERE repository_id = ? AND file_path = ?", repoID, filePath)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	if err := collectOrphans(ctx, tx, hashes); err != nil {
		return err
	}
	return tx.Commit()
}

// UpsertFileChunks replaces a file's row, chunk refs, and any new chunk
// contents and embeddings in one transaction. Chunk contents left
// without references by the replacement are garbage collected inside
// the same transaction, so a failure leaves the previous state intact.
func (s *SQLiteStorage) UpsertFileChunks(ctx context.Context, file *File, chunks []types.Chunk, embeddings []*Embedding) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	oldHashes, err := fileChunkHashes(ctx, tx, file.RepositoryID, file.FilePath)
	if err != nil {
		return err
	}

	fileID, err := upsertFileRow(ctx, tx, file)
	if err != nil {
		return err
	}
	file.ID = fileID

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunk_refs WHERE file_id = ?", fileID); err != nil {
		return fmt.Errorf("failed to clear chunk refs: %w", err)
	}

	for _, chunk := range chunks {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chunks (content_hash, content, token_count)
			VALUES (?, ?, ?)
			ON CONFLICT(content_hash) DO NOTHING
		`, chunk.ContentHash, chunk.Content, chunk.TokenCount); err != nil {
			return fmt.Errorf("failed to upsert chunk: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chunk_refs (file_id, chunk_hash, ordinal, start_line, end_line, language, symbol_name, symbol_kind)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, fileID, chunk.ContentHash, chunk.Ordinal, chunk.StartLine, chunk.EndLine,
			chunk.Language, chunk.SymbolName, chunk.SymbolKind); err != nil {
			return fmt.Errorf("failed to insert chunk ref: %w", err)
		}
	}

	for _, emb := range embeddings {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO embeddings (chunk_hash, vector, dimension, provider, model)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(chunk_hash) DO NOTHING
		`, emb.ChunkHash, serializeVector(emb.Vector), emb.Dimension, emb.Provider, emb.Model); err != nil {
			return fmt.Errorf("failed to upsert embedding: %w", err)
		}
	}

	if err := collectOrphans(ctx, tx, oldHashes); err != nil {
		return err
	}
	return tx.Commit()
}

// UpsertSkippedFile records a file excluded from chunking, clearing any
// chunks a previous ingest produced for it.
func (s *SQLiteStorage) UpsertSkippedFile(ctx context.Context, file *File) error {
	file.Skipped = true
	file.ChunkCount = 0
	return s.UpsertFileChunks(ctx, file, nil, nil)
}

// upsertFileRow writes the files row and returns its id.
func upsertFileRow(ctx context.Context, q querier, file *File) (int64, error) {
	now := time.Now()
	_, err := q.ExecContext(ctx, `
		INSERT INTO files (repository_id, file_path, content_hash, size_bytes, language,
		                   chunk_count, skipped, skip_reason, last_modified, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repository_id, file_path) DO UPDATE SET
			content_hash = excluded.content_hash,
			size_bytes = excluded.size_bytes,
			language = excluded.language,
			chunk_count = excluded.chunk_count,
			skipped = excluded.skipped,
			skip_reason = excluded.skip_reason,
			last_modified = excluded.last_modified,
			updated_at = excluded.updated_at
	`, file.RepositoryID, file.FilePath, file.ContentHash, file.SizeBytes, file.Language,
		file.ChunkCount, file.Skipped, file.SkipReason, file.LastModified, now)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert file: %w", err)
	}
	file.UpdatedAt = now

	var id int64
	err = q.QueryRowContext(ctx,
		"SELECT id FROM files WHERE repository_id = ? AND file_path = ?",
		file.RepositoryID, file.FilePath).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to read file id: %w", err)
	}
	return id, nil
}

// fileChunkHashes returns the distinct chunk hashes a file currently references.
func fileChunkHashes(ctx context.Context, q querier, repoID, filePath string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT DISTINCT cr.chunk_hash
		FROM chunk_refs cr
		INNER JOIN files f ON cr.file_id = f.id
		WHERE f.repository_id = ? AND f.file_path = ?
	`, repoID, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk hashes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

// collectOrphans removes chunk contents from the candidate set that no
// ref points at anymore. Embeddings cascade with their chunk.
func collectOrphans(ctx context.Context, q querier, candidates []string) error {
	for _, hash := range candidates {
		if _, err := q.ExecContext(ctx, `
			DELETE FROM chunks
			WHERE content_hash = ?
			  AND NOT EXISTS (SELECT 1 FROM chunk_refs WHERE chunk_hash = ?)
		`, hash, hash); err != nil {
			return fmt.Errorf("failed to collect orphaned chunk: %w", err)
		}
	}
	return nil
}

// Merkle tree operations

func (s *SQLiteStorage) GetMerkleNodes(ctx context.Context, repoID string) ([]MerkleNode, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT node_path, hash, is_dir FROM merkle_nodes WHERE repository_id = ?", repoID)
	if err != nil {
		return nil, fmt.Errorf("failed to query merkle nodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var nodes []MerkleNode
	for rows.Next() {
		var n MerkleNode
		if err := rows.Scan(&n.NodePath, &n.Hash, &n.IsDir); err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func upsertMerkleNodes(ctx context.Context, q querier, repoID string, nodes []MerkleNode) error {
	for _, n := range nodes {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO merkle_nodes (repository_id, node_path, hash, is_dir)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(repository_id, node_path) DO UPDATE SET
				hash = excluded.hash,
				is_dir = excluded.is_dir
		`, repoID, n.NodePath, n.Hash, n.IsDir); err != nil {
			return fmt.Errorf("failed to upsert merkle node: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStorage) UpsertMerkleNodes(ctx context.Context, repoID string, nodes []MerkleNode) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := upsertMerkleNodes(ctx, tx, repoID, nodes); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) DeleteMerkleNodes(ctx context.Context, repoID string, nodePaths []string) error {
	if len(nodePaths) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, p := range nodePaths {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM merkle_nodes WHERE repository_id = ? AND node_path = ?", repoID, p); err != nil {
			return fmt.Errorf("failed to delete merkle node: %w", err)
		}
	}
	return tx.Commit()
}

// ReplaceMerkleNodes swaps the full stored tree for a repository.
func (s *SQLiteStorage) ReplaceMerkleNodes(ctx context.Context, repoID string, nodes []MerkleNode) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM merkle_nodes WHERE repository_id = ?", repoID); err != nil {
		return fmt.Errorf("failed to clear merkle nodes: %w", err)
	}
	if err := upsertMerkleNodes(ctx, tx, repoID, nodes); err != nil {
		return err
	}
	return tx.Commit()
}

// Chunk and embedding operations

// FilterMissingEmbeddings returns the subset of hashes that have no
// stored vector, preserving input order.
func (s *SQLiteStorage) FilterMissingEmbeddings(ctx context.Context, chunkHashes []string) ([]string, error) {
	if len(chunkHashes) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(chunkHashes))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(chunkHashes))
	for i, h := range chunkHashes {
		args[i] = h
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT chunk_hash FROM embeddings WHERE chunk_hash IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	present := make(map[string]bool, len(chunkHashes))
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		present[h] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []string
	seen := make(map[string]bool, len(chunkHashes))
	for _, h := range chunkHashes {
		if !present[h] && !seen[h] {
			missing = append(missing, h)
			seen[h] = true
		}
	}
	return missing, nil
}

func (s *SQLiteStorage) GetEmbedding(ctx context.Context, chunkHash string) (*Embedding, error) {
	var emb Embedding
	var blob []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT chunk_hash, vector, dimension, provider, model
		FROM embeddings WHERE chunk_hash = ?
	`, chunkHash).Scan(&emb.ChunkHash, &blob, &emb.Dimension, &emb.Provider, &emb.Model)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	emb.Vector, err = deserializeVector(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize vector: %w", err)
	}
	return &emb, nil
}

func (s *SQLiteStorage) GetFileChunks(ctx context.Context, repoID, filePath string) ([]ChunkDetail, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cr.id, cr.chunk_hash, cr.ordinal, cr.start_line, cr.end_line,
		       cr.language, cr.symbol_name, cr.symbol_kind, c.content, c.token_count
		FROM chunk_refs cr
		INNER JOIN chunks c ON cr.chunk_hash = c.content_hash
		INNER JOIN files f ON cr.file_id = f.id
		WHERE f.repository_id = ? AND f.file_path = ?
		ORDER BY cr.ordinal
	`, repoID, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to query file chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var details []ChunkDetail
	for rows.Next() {
		d, err := scanChunkDetail(rows)
		if err != nil {
			return nil, err
		}
		details = append(details, *d)
	}
	return details, rows.Err()
}

func (s *SQLiteStorage) GetChunkAtLine(ctx context.Context, repoID, filePath string, line int) (*ChunkDetail, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT cr.id, cr.chunk_hash, cr.ordinal, cr.start_line, cr.end_line,
		       cr.language, cr.symbol_name, cr.symbol_kind, c.content, c.token_count
		FROM chunk_refs cr
		INNER JOIN chunks c ON cr.chunk_hash = c.content_hash
		INNER JOIN files f ON cr.file_id = f.id
		WHERE f.repository_id = ? AND f.file_path = ?
		  AND cr.start_line <= ? AND cr.end_line >= ?
		ORDER BY cr.ordinal
		LIMIT 1
	`, repoID, filePath, line, line)
	d, err := scanChunkDetail(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return d, err
}

func scanChunkDetail(row interface{ Scan(...interface{}) error }) (*ChunkDetail, error) {
	var d ChunkDetail
	var language, symbolName, symbolKind sql.NullString
	err := row.Scan(&d.RefID, &d.ChunkHash, &d.Ordinal, &d.StartLine, &d.EndLine,
		&language, &symbolName, &symbolKind, &d.Content, &d.TokenCount)
	if err != nil {
		return nil, err
	}
	d.Language = language.String
	d.SymbolName = symbolName.String
	d.SymbolKind = symbolKind.String
	return &d, nil
}

// Query operations

func (s *SQLiteStorage) SearchVector(ctx context.Context, repoID string, vector []float32, limit int, minSimilarity float64) ([]VectorResult, error) {
	return searchVector(ctx, s.db, repoID, vector, limit, minSimilarity)
}

func (s *SQLiteStorage) ListSymbols(ctx context.Context, repoID string) ([]SymbolRow, error) {
	query := `
		SELECT r.name, f.file_path, cr.start_line, cr.end_line,
		       cr.language, cr.symbol_name, cr.symbol_kind, cr.chunk_hash
		FROM chunk_refs cr
		INNER JOIN files f ON cr.file_id = f.id
		INNER JOIN repositories r ON f.repository_id = r.id
		WHERE cr.symbol_name IS NOT NULL AND cr.symbol_name != ''
	`
	args := []interface{}{}
	if repoID != "" {
		query += " AND f.repository_id = ?"
		args = append(args, repoID)
	}
	query += " ORDER BY r.name, f.file_path, cr.start_line"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var symbols []SymbolRow
	for rows.Next() {
		var sym SymbolRow
		var language, kind sql.NullString
		if err := rows.Scan(&sym.Repository, &sym.FilePath, &sym.StartLine, &sym.EndLine,
			&language, &sym.SymbolName, &kind, &sym.ChunkHash); err != nil {
			return nil, err
		}
		sym.Language = language.String
		sym.SymbolKind = kind.String
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

func (s *SQLiteStorage) GetStats(ctx context.Context, repoID string) (*RepoStats, error) {
	stats := &RepoStats{}

	fileFilter := ""
	args := []interface{}{}
	if repoID != "" {
		fileFilter = " WHERE repository_id = ?"
		args = append(args, repoID)

		repo, err := s.db.QueryContext(ctx, "SELECT name, ingested_at FROM repositories WHERE id = ?", repoID)
		if err != nil {
			return nil, err
		}
		if repo.Next() {
			var ingestedAt sql.NullTime
			if err := repo.Scan(&stats.Repository, &ingestedAt); err != nil {
				_ = repo.Close()
				return nil, err
			}
			if ingestedAt.Valid {
				stats.IngestedAt = ingestedAt.Time
			}
		}
		_ = repo.Close()
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(skipped), 0), COALESCE(SUM(chunk_count), 0)
		FROM files`+fileFilter, args...).Scan(&stats.Files, &stats.SkippedFiles, &stats.ChunkRefs)
	if err != nil {
		return nil, fmt.Errorf("failed to count files: %w", err)
	}
	stats.Files -= stats.SkippedFiles

	langQuery := "SELECT language, COUNT(*) FROM files"
	if fileFilter != "" {
		langQuery += fileFilter + " AND skipped = 0"
	} else {
		langQuery += " WHERE skipped = 0"
	}
	langQuery += " GROUP BY language"
	langRows, err := s.db.QueryContext(ctx, langQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count languages: %w", err)
	}
	stats.Languages = make(map[string]int)
	for langRows.Next() {
		var lang sql.NullString
		var count int
		if err := langRows.Scan(&lang, &count); err != nil {
			_ = langRows.Close()
			return nil, err
		}
		if lang.String != "" {
			stats.Languages[lang.String] = count
		}
	}
	if err := langRows.Err(); err != nil {
		_ = langRows.Close()
		return nil, err
	}
	_ = langRows.Close()

	if repoID == "" {
		err = s.db.QueryRowContext(ctx,
			"SELECT COUNT(*), COALESCE(SUM(token_count), 0) FROM chunks").
			Scan(&stats.UniqueChunks, &stats.TotalTokens)
		if err != nil {
			return nil, fmt.Errorf("failed to count chunks: %w", err)
		}
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&stats.Embeddings)
		if err != nil {
			return nil, fmt.Errorf("failed to count embeddings: %w", err)
		}
		return stats, nil
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(token_count), 0)
		FROM chunks
		WHERE content_hash IN (
			SELECT DISTINCT cr.chunk_hash
			FROM chunk_refs cr
			INNER JOIN files f ON cr.file_id = f.id
			WHERE f.repository_id = ?
		)
	`, repoID).Scan(&stats.UniqueChunks, &stats.TotalTokens)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT e.chunk_hash)
		FROM embeddings e
		INNER JOIN chunk_refs cr ON e.chunk_hash = cr.chunk_hash
		INNER JOIN files f ON cr.file_id = f.id
		WHERE f.repository_id = ?
	`, repoID).Scan(&stats.Embeddings)
	if err != nil {
		return nil, fmt.Errorf("failed to count embeddings: %w", err)
	}

	return stats, nil
}
