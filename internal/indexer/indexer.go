package indexer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/olemoy/craigpy/internal/chunker"
	"github.com/olemoy/craigpy/internal/config"
	"github.com/olemoy/craigpy/internal/embedder"
	"github.com/olemoy/craigpy/internal/filter"
	"github.com/olemoy/craigpy/internal/merkle"
	"github.com/olemoy/craigpy/internal/storage"
	"github.com/olemoy/craigpy/pkg/types"
)

// embedBatchSize is how many chunk texts go to the provider per call.
const embedBatchSize = 50

// Indexer coordinates the ingest pipeline: walk -> hash -> diff ->
// chunk -> embed -> store.
type Indexer struct {
	store    storage.Storage
	embed    embedder.Embedder
	chunkers *chunker.Registry
	settings *config.Settings
	locks    *lockRegistry
	logger   *log.Logger
}

// Options tune one ingest run.
type Options struct {
	Force   bool     // re-chunk and re-embed everything
	Workers int      // concurrent file workers (default: runtime.NumCPU())
	Exclude []string // extra ignore patterns for this run
}

// New creates an Indexer.
func New(store storage.Storage, embed embedder.Embedder, settings *config.Settings, logger *log.Logger) *Indexer {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &Indexer{
		store:    store,
		embed:    embed,
		chunkers: chunker.NewRegistry(),
		settings: settings,
		locks:    newLockRegistry(),
		logger:   logger,
	}
}

// Ingest indexes a repository incrementally. rootPath may be empty for
// a repository that was registered by a previous ingest. A second
// concurrent ingest of the same repository fails fast.
func (idx *Indexer) Ingest(ctx context.Context, name, rootPath string, opts *Options) (*types.IngestSummary, error) {
	if opts == nil {
		opts = &Options{}
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	lock := idx.locks.lockFor(name)
	if !lock.TryAcquire() {
		return nil, fmt.Errorf("repository %q: %w", name, types.ErrIngestInProgress)
	}
	defer lock.Release()

	start := time.Now()

	repo, err := idx.getOrCreateRepository(ctx, name, rootPath)
	if err != nil {
		return nil, err
	}
	root := repo.RootPath

	repoCfg := idx.settings.RepoConfigFor(root)
	f, err := filter.New(root, repoCfg, opts.Exclude)
	if err != nil {
		return nil, fmt.Errorf("building filter: %w", err)
	}

	walk, err := f.Walk()
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	leaves, err := hashFiles(ctx, root, walk.Included, workers)
	if err != nil {
		return nil, err
	}
	tree := merkle.Build(leaves)

	stored, err := idx.loadStoredNodes(ctx, repo, opts.Force)
	if err != nil {
		return nil, err
	}

	cs := merkle.Diff(tree, stored)

	summary := &types.IngestSummary{
		Repository: name,
		Added:      len(cs.Added),
		Modified:   len(cs.Modified),
		Unchanged:  len(cs.Unchanged),
		Skipped:    walk.Skipped,
	}

	var chunksCreated, vectorsReused atomic.Int64
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, relPath := range append(append([]string{}, cs.Added...), cs.Modified...) {
		g.Go(func() error {
			err := idx.processFile(gctx, repo, root, relPath, leaves[relPath], repoCfg, &chunksCreated, &vectorsReused)
			if err != nil {
				if errors.Is(err, context.Canceled) || gctx.Err() != nil {
					return err
				}
				idx.logger.Printf("ingest %s: %s: %v", name, relPath, err)
				mu.Lock()
				summary.Failed = append(summary.Failed, types.FileFailure{Path: relPath, Err: err.Error()})
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := idx.recordSkipped(ctx, repo, root, walk.Skipped); err != nil {
		return nil, err
	}

	deleted, err := idx.reconcileDeleted(ctx, repo, cs, walk)
	if err != nil {
		return nil, err
	}
	summary.Deleted = deleted

	if len(summary.Failed) > 0 {
		// Failed files keep their previous leaf hash, or none, so the
		// next run sees them as changed and retries.
		for _, fail := range summary.Failed {
			if old, ok := stored[fail.Path]; ok && !old.IsDir {
				leaves[fail.Path] = old.Hash
			} else {
				delete(leaves, fail.Path)
			}
		}
		if err := idx.persistFullTree(ctx, repo, merkle.Build(leaves)); err != nil {
			return nil, err
		}
	} else if err := idx.persistTree(ctx, repo, tree, stored, cs, opts.Force); err != nil {
		return nil, err
	}

	if err := idx.store.TouchRepository(ctx, repo.ID, time.Now()); err != nil {
		return nil, err
	}

	summary.ChunksCreated = int(chunksCreated.Load())
	summary.VectorsReused = int(vectorsReused.Load())
	summary.Duration = time.Since(start)
	return summary, nil
}

// IngestFile indexes a single file inside a registered repository,
// optionally bypassing the size threshold.
func (idx *Indexer) IngestFile(ctx context.Context, name, path string, force bool) (*types.IngestSummary, error) {
	lock := idx.locks.lockFor(name)
	if !lock.TryAcquire() {
		return nil, fmt.Errorf("repository %q: %w", name, types.ErrIngestInProgress)
	}
	defer lock.Release()

	start := time.Now()

	repo, err := idx.store.GetRepository(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("repository %q: %w", name, types.ErrRepositoryNotFound)
		}
		return nil, err
	}

	relPath, err := repoRelPath(repo.RootPath, path)
	if err != nil {
		return nil, err
	}

	absPath := filepath.Join(repo.RootPath, filepath.FromSlash(relPath))
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("file %s: %w", relPath, types.ErrFileNotFound)
	}

	repoCfg := idx.settings.RepoConfigFor(repo.RootPath)
	f, err := filter.New(repo.RootPath, repoCfg, nil)
	if err != nil {
		return nil, err
	}
	switch verdict := f.Check(relPath, info.Size()); verdict {
	case filter.Include:
	case filter.ExcludeOversized:
		if !force {
			return nil, fmt.Errorf("file %s exceeds size limits; use --force to index anyway", relPath)
		}
	default:
		return nil, fmt.Errorf("file %s excluded (%s)", relPath, verdict)
	}

	hash, err := merkle.HashFile(absPath)
	if err != nil {
		return nil, err
	}

	var chunksCreated, vectorsReused atomic.Int64
	if err := idx.processFile(ctx, repo, repo.RootPath, relPath, hash, repoCfg, &chunksCreated, &vectorsReused); err != nil {
		return nil, err
	}

	// Refresh the hash tree with the new leaf so the next status or
	// ingest sees this file as unchanged.
	stored, err := idx.loadStoredNodes(ctx, repo, false)
	if err != nil {
		return nil, err
	}
	leaves := map[string]string{}
	for p, n := range stored {
		if !n.IsDir {
			leaves[p] = n.Hash
		}
	}
	leaves[relPath] = hash
	if err := idx.persistFullTree(ctx, repo, merkle.Build(leaves)); err != nil {
		return nil, err
	}

	if err := idx.store.TouchRepository(ctx, repo.ID, time.Now()); err != nil {
		return nil, err
	}

	return &types.IngestSummary{
		Repository:    name,
		Added:         1,
		ChunksCreated: int(chunksCreated.Load()),
		VectorsReused: int(vectorsReused.Load()),
		Duration:      time.Since(start),
	}, nil
}

// Status computes what an ingest would do without writing anything.
func (idx *Indexer) Status(ctx context.Context, name string) (*types.Changeset, error) {
	repo, err := idx.store.GetRepository(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("repository %q: %w", name, types.ErrRepositoryNotFound)
		}
		return nil, err
	}

	repoCfg := idx.settings.RepoConfigFor(repo.RootPath)
	f, err := filter.New(repo.RootPath, repoCfg, nil)
	if err != nil {
		return nil, err
	}
	walk, err := f.Walk()
	if err != nil {
		return nil, err
	}

	leaves, err := hashFiles(ctx, repo.RootPath, walk.Included, runtime.NumCPU())
	if err != nil {
		return nil, err
	}
	tree := merkle.Build(leaves)

	stored, err := idx.loadStoredNodes(ctx, repo, false)
	if err != nil {
		return nil, err
	}
	return merkle.Diff(tree, stored), nil
}

// Purge removes a repository and all derived data.
func (idx *Indexer) Purge(ctx context.Context, name string) error {
	repo, err := idx.store.GetRepository(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("repository %q: %w", name, types.ErrRepositoryNotFound)
		}
		return err
	}
	return idx.store.DeleteRepository(ctx, repo.ID)
}

func (idx *Indexer) getOrCreateRepository(ctx context.Context, name, rootPath string) (*storage.Repository, error) {
	repo, err := idx.store.GetRepository(ctx, name)
	if err == nil {
		if rootPath != "" {
			abs, absErr := filepath.Abs(rootPath)
			if absErr != nil {
				return nil, absErr
			}
			if abs != repo.RootPath {
				return nil, fmt.Errorf("repository %q is registered at %s, not %s", name, repo.RootPath, abs)
			}
		}
		return repo, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	if rootPath == "" {
		return nil, fmt.Errorf("repository %q: %w", name, types.ErrRepositoryNotFound)
	}
	abs, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("root path %s is not a directory", abs)
	}

	repo = &storage.Repository{
		ID:       uuid.NewString(),
		Name:     name,
		RootPath: abs,
	}
	if err := idx.store.CreateRepository(ctx, repo); err != nil {
		return nil, err
	}
	return repo, nil
}

// loadStoredNodes returns the persisted hash tree as a path-keyed map.
// Force ingests see an empty tree so everything re-processes. A
// non-empty files table with no tree is treated as lost index state:
// the run degrades to a full re-ingest with a warning.
func (idx *Indexer) loadStoredNodes(ctx context.Context, repo *storage.Repository, force bool) (map[string]merkle.Node, error) {
	if force {
		return map[string]merkle.Node{}, nil
	}
	rows, err := idx.store.GetMerkleNodes(ctx, repo.ID)
	if err != nil {
		return nil, err
	}
	nodes := make(map[string]merkle.Node, len(rows))
	for _, r := range rows {
		nodes[r.NodePath] = merkle.Node{Path: r.NodePath, Hash: r.Hash, IsDir: r.IsDir}
	}
	if len(nodes) == 0 {
		files, err := idx.store.ListFiles(ctx, repo.ID)
		if err != nil {
			return nil, err
		}
		if len(files) > 0 {
			idx.logger.Printf("repository %s: hash tree missing for %d tracked files, re-ingesting everything", repo.Name, len(files))
		}
	}
	return nodes, nil
}

// processFile chunks one file, embeds chunks with no stored vector, and
// commits the result in a single transaction.
func (idx *Indexer) processFile(ctx context.Context, repo *storage.Repository, root, relPath, contentHash string, repoCfg config.RepoConfig, chunksCreated, vectorsReused *atomic.Int64) error {
	absPath := filepath.Join(root, filepath.FromSlash(relPath))
	content, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return err
	}
	if contentHash == "" {
		contentHash, err = merkle.HashFile(absPath)
		if err != nil {
			return err
		}
	}

	language := filter.Language(relPath)
	chunks := idx.chunkers.Chunk(string(content), language, chunker.Config{
		TokenTarget:   repoCfg.TokenTarget,
		OverlapTokens: repoCfg.OverlapTokens,
	})

	uniqueHashes := make([]string, 0, len(chunks))
	contentByHash := make(map[string]string, len(chunks))
	for _, c := range chunks {
		if _, ok := contentByHash[c.ContentHash]; !ok {
			uniqueHashes = append(uniqueHashes, c.ContentHash)
			contentByHash[c.ContentHash] = c.Content
		}
	}

	missing, err := idx.store.FilterMissingEmbeddings(ctx, uniqueHashes)
	if err != nil {
		return err
	}

	embeddings, err := idx.embedMissing(ctx, missing, contentByHash)
	if err != nil {
		return err
	}

	file := &storage.File{
		RepositoryID: repo.ID,
		FilePath:     relPath,
		ContentHash:  contentHash,
		SizeBytes:    info.Size(),
		Language:     language,
		ChunkCount:   len(chunks),
		LastModified: info.ModTime(),
	}
	if err := idx.store.UpsertFileChunks(ctx, file, chunks, embeddings); err != nil {
		return err
	}

	chunksCreated.Add(int64(len(missing)))
	vectorsReused.Add(int64(len(uniqueHashes) - len(missing)))
	return nil
}

// embedMissing calls the provider in fixed-size batches.
func (idx *Indexer) embedMissing(ctx context.Context, hashes []string, contentByHash map[string]string) ([]*storage.Embedding, error) {
	var out []*storage.Embedding
	for start := 0; start < len(hashes); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(hashes) {
			end = len(hashes)
		}
		batch := hashes[start:end]
		texts := make([]string, len(batch))
		for i, h := range batch {
			texts[i] = contentByHash[h]
		}
		embs, err := idx.embed.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embedding batch: %w", err)
		}
		for i, emb := range embs {
			out = append(out, &storage.Embedding{
				ChunkHash: batch[i],
				Vector:    emb.Vector,
				Dimension: emb.Dimension,
				Provider:  emb.Provider,
				Model:     emb.Model,
			})
		}
	}
	return out, nil
}

// recordSkipped writes rows for files excluded by size or content so
// the skip is inspectable later. Only rows whose reason or hash-bearing
// state changed are touched.
func (idx *Indexer) recordSkipped(ctx context.Context, repo *storage.Repository, root string, skipped []types.SkippedFile) error {
	for _, sk := range skipped {
		existing, err := idx.store.GetFile(ctx, repo.ID, sk.Path)
		if err == nil && existing.Skipped && existing.SkipReason == sk.Reason {
			continue
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		var size int64
		var modTime time.Time
		if info, statErr := os.Stat(filepath.Join(root, filepath.FromSlash(sk.Path))); statErr == nil {
			size = info.Size()
			modTime = info.ModTime()
		}
		file := &storage.File{
			RepositoryID: repo.ID,
			FilePath:     sk.Path,
			ContentHash:  "",
			SizeBytes:    size,
			Language:     filter.Language(sk.Path),
			SkipReason:   sk.Reason,
			LastModified: modTime,
		}
		if err := idx.store.UpsertSkippedFile(ctx, file); err != nil {
			return err
		}
	}
	return nil
}

// reconcileDeleted removes rows for files the walk no longer sees:
// leaves the diff marked deleted, plus tracked files (including
// previously skipped ones) absent from the current walk entirely.
func (idx *Indexer) reconcileDeleted(ctx context.Context, repo *storage.Repository, cs *types.Changeset, walk *filter.WalkResult) (int, error) {
	current := make(map[string]bool, len(walk.Included)+len(walk.Skipped))
	for _, p := range walk.Included {
		current[p] = true
	}
	for _, sk := range walk.Skipped {
		current[sk.Path] = true
	}

	// A path in cs.Deleted that the walk still sees left the leaf set
	// because its filter verdict changed (newly binary or oversized).
	// recordSkipped already replaced its row; deleting it here would
	// undo that.
	toDelete := make(map[string]bool, len(cs.Deleted))
	for _, p := range cs.Deleted {
		if !current[p] {
			toDelete[p] = true
		}
	}
	tracked, err := idx.store.ListFiles(ctx, repo.ID)
	if err != nil {
		return 0, err
	}
	for _, f := range tracked {
		if !current[f.FilePath] {
			toDelete[f.FilePath] = true
		}
	}

	paths := make([]string, 0, len(toDelete))
	for p := range toDelete {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	deleted := 0
	for _, p := range paths {
		err := idx.store.DeleteFile(ctx, repo.ID, p)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// persistTree writes the new hash tree. An incremental run only touches
// dirty directories and changed leaves; force and recovery runs replace
// the stored tree wholesale.
func (idx *Indexer) persistTree(ctx context.Context, repo *storage.Repository, tree *merkle.Tree, stored map[string]merkle.Node, cs *types.Changeset, force bool) error {
	if force || len(stored) == 0 {
		return idx.persistFullTree(ctx, repo, tree)
	}

	var nodes []storage.MerkleNode
	for _, dir := range merkle.DirtyDirs(tree, stored) {
		n := tree.Nodes[dir]
		nodes = append(nodes, storage.MerkleNode{NodePath: n.Path, Hash: n.Hash, IsDir: true})
	}
	for _, p := range append(append([]string{}, cs.Added...), cs.Modified...) {
		n := tree.Nodes[p]
		nodes = append(nodes, storage.MerkleNode{NodePath: n.Path, Hash: n.Hash, IsDir: false})
	}
	if err := idx.store.UpsertMerkleNodes(ctx, repo.ID, nodes); err != nil {
		return err
	}

	var removed []string
	for p := range stored {
		if _, ok := tree.Nodes[p]; !ok {
			removed = append(removed, p)
		}
	}
	return idx.store.DeleteMerkleNodes(ctx, repo.ID, removed)
}

func (idx *Indexer) persistFullTree(ctx context.Context, repo *storage.Repository, tree *merkle.Tree) error {
	nodes := make([]storage.MerkleNode, 0, len(tree.Nodes))
	for _, n := range tree.Nodes {
		nodes = append(nodes, storage.MerkleNode{NodePath: n.Path, Hash: n.Hash, IsDir: n.IsDir})
	}
	return idx.store.ReplaceMerkleNodes(ctx, repo.ID, nodes)
}

// hashFiles computes leaf hashes for the included files concurrently.
func hashFiles(ctx context.Context, root string, relPaths []string, workers int) (map[string]string, error) {
	leaves := make(map[string]string, len(relPaths))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, relPath := range relPaths {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			hash, err := merkle.HashFile(filepath.Join(root, filepath.FromSlash(relPath)))
			if err != nil {
				return fmt.Errorf("hashing %s: %w", relPath, err)
			}
			mu.Lock()
			leaves[relPath] = hash
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return leaves, nil
}

// repoRelPath normalizes a possibly absolute file path to a
// slash-separated path relative to the repository root.
func repoRelPath(root, path string) (string, error) {
	if filepath.IsAbs(path) {
		rel, err := filepath.Rel(root, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			return "", fmt.Errorf("path %s is outside repository root %s", path, root)
		}
		return filepath.ToSlash(rel), nil
	}
	return filepath.ToSlash(filepath.Clean(path)), nil
}
