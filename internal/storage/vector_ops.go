package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// searchVector performs vector similarity search using cosine similarity
func searchVector(ctx context.Context, db *sql.DB, repoID string, queryVector []float32, limit int, minSimilarity float64) ([]VectorResult, error) {
	if limit <= 0 {
		return []VectorResult{}, nil
	}
	// Use SQL-based search when sqlite-vec is available, otherwise
	// compute similarities in Go for purego builds.
	if VectorExtensionAvailable {
		return searchVectorOptimized(ctx, db, repoID, queryVector, limit, minSimilarity)
	}
	return searchVectorFallback(ctx, db, repoID, queryVector, limit, minSimilarity)
}

// searchVectorOptimized computes distances at the database layer with
// sqlite-vec. vec_distance_cosine returns distance, converted here to
// similarity (1 - distance).
func searchVectorOptimized(ctx context.Context, db *sql.DB, repoID string, queryVector []float32, limit int, minSimilarity float64) ([]VectorResult, error) {
	blob := serializeVector(queryVector)

	query := `
		SELECT r.name, f.file_path, cr.chunk_hash, cr.start_line, cr.end_line,
		       cr.language, cr.symbol_name, cr.symbol_kind, c.content,
		       1.0 - vec_distance_cosine(e.vector, ?) AS similarity
		FROM chunk_refs cr
		INNER JOIN chunks c ON cr.chunk_hash = c.content_hash
		INNER JOIN embeddings e ON cr.chunk_hash = e.chunk_hash
		INNER JOIN files f ON cr.file_id = f.id
		INNER JOIN repositories r ON f.repository_id = r.id
		WHERE 1=1
	`
	args := []interface{}{blob}
	if repoID != "" {
		query += " AND f.repository_id = ?"
		args = append(args, repoID)
	}
	if minSimilarity > 0 {
		query += " AND (1.0 - vec_distance_cosine(e.vector, ?)) >= ?"
		args = append(args, blob, minSimilarity)
	}
	query += " ORDER BY similarity DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]VectorResult, 0, limit)
	for rows.Next() {
		res, err := scanVectorResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *res)
	}
	return results, rows.Err()
}

// searchVectorFallback scores each distinct embedded chunk in Go, then
// hydrates file locations for the best ones.
func searchVectorFallback(ctx context.Context, db *sql.DB, repoID string, queryVector []float32, limit int, minSimilarity float64) ([]VectorResult, error) {
	query := `
		SELECT DISTINCT e.chunk_hash, e.vector
		FROM embeddings e
	`
	args := []interface{}{}
	if repoID != "" {
		query += `
		INNER JOIN chunk_refs cr ON e.chunk_hash = cr.chunk_hash
		INNER JOIN files f ON cr.file_id = f.id
		WHERE f.repository_id = ?`
		args = append(args, repoID)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	type scored struct {
		hash       string
		similarity float64
	}
	var candidates []scored
	for rows.Next() {
		var hash string
		var blob []byte
		if err := rows.Scan(&hash, &blob); err != nil {
			return nil, err
		}
		vector, err := deserializeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize vector for %s: %w", hash, err)
		}
		sim := cosineSimilarity(queryVector, vector)
		if sim >= minSimilarity {
			candidates = append(candidates, scored{hash: hash, similarity: sim})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].similarity > candidates[j].similarity
	})

	results := make([]VectorResult, 0, limit)
	for _, cand := range candidates {
		if len(results) >= limit {
			break
		}
		refs, err := chunkRefLocations(ctx, db, repoID, cand.hash)
		if err != nil {
			return nil, err
		}
		for i := range refs {
			if len(results) >= limit {
				break
			}
			refs[i].Similarity = cand.similarity
			results = append(results, refs[i])
		}
	}
	return results, nil
}

// chunkRefLocations returns every location a chunk appears at, scoped
// to one repository when repoID is set.
func chunkRefLocations(ctx context.Context, db *sql.DB, repoID, chunkHash string) ([]VectorResult, error) {
	query := `
		SELECT r.name, f.file_path, cr.chunk_hash, cr.start_line, cr.end_line,
		       cr.language, cr.symbol_name, cr.symbol_kind, c.content, 0.0
		FROM chunk_refs cr
		INNER JOIN chunks c ON cr.chunk_hash = c.content_hash
		INNER JOIN files f ON cr.file_id = f.id
		INNER JOIN repositories r ON f.repository_id = r.id
		WHERE cr.chunk_hash = ?
	`
	args := []interface{}{chunkHash}
	if repoID != "" {
		query += " AND f.repository_id = ?"
		args = append(args, repoID)
	}
	query += " ORDER BY r.name, f.file_path, cr.start_line"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunk locations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []VectorResult
	for rows.Next() {
		res, err := scanVectorResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *res)
	}
	return results, rows.Err()
}

func scanVectorResult(rows *sql.Rows) (*VectorResult, error) {
	var res VectorResult
	var language, symbolName, symbolKind sql.NullString
	if err := rows.Scan(&res.Repository, &res.FilePath, &res.ChunkHash,
		&res.StartLine, &res.EndLine, &language, &symbolName, &symbolKind,
		&res.Content, &res.Similarity); err != nil {
		return nil, fmt.Errorf("failed to scan result: %w", err)
	}
	res.Language = language.String
	res.SymbolName = symbolName.String
	res.SymbolKind = symbolKind.String
	return &res, nil
}

// cosineSimilarity computes cosine similarity between two vectors.
// Returns 0 on dimension mismatch or zero-magnitude input.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// serializeVector encodes a float32 slice as a little-endian BLOB.
func serializeVector(vector []float32) []byte {
	buf := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// deserializeVector decodes a little-endian BLOB back to float32s.
func deserializeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector blob length %d", len(data))
	}
	vector := make([]float32, len(data)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vector, nil
}
