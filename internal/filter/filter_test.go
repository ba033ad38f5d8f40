package filter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olemoy/craigpy/internal/config"
)

func writeFile(t *testing.T, root, rel string, content []byte) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, content, 0644))
}

func newTestFilter(t *testing.T, root string) *Filter {
	t.Helper()
	f, err := New(root, config.DefaultRepoConfig(), nil)
	require.NoError(t, err)
	return f
}

func TestCheckInclude(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", []byte("package main\n"))

	f := newTestFilter(t, root)
	assert.Equal(t, Include, f.Check("main.go", 13))
}

func TestCheckGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", []byte("secret.txt\nlogs/\n"))
	writeFile(t, root, "secret.txt", []byte("data\n"))
	writeFile(t, root, "kept.txt", []byte("data\n"))

	f := newTestFilter(t, root)
	assert.Equal(t, ExcludeIgnored, f.Check("secret.txt", 5))
	assert.Equal(t, Include, f.Check("kept.txt", 5))
	assert.True(t, f.SkipDir("logs"))
}

func TestCheckExcludePatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "gen.sql", []byte("select 1;\n"))

	f, err := New(root, config.DefaultRepoConfig(), []string{"*.sql"})
	require.NoError(t, err)
	assert.Equal(t, ExcludeIgnored, f.Check("gen.sql", 10))
}

func TestCheckBinaryMagic(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "image.png", []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a})
	writeFile(t, root, "archive.zip", []byte("PK\x03\x04junk"))

	f := newTestFilter(t, root)
	assert.Equal(t, ExcludeBinary, f.Check("image.png", 6))
	assert.Equal(t, ExcludeBinary, f.Check("archive.zip", 8))
}

func TestCheckNulByteSniff(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "blob.dat", []byte("text\x00more"))

	f := newTestFilter(t, root)
	assert.Equal(t, ExcludeBinary, f.Check("blob.dat", 9))
}

func TestCheckSniffOverridesExtension(t *testing.T) {
	root := t.TempDir()
	// The extension is advisory; content sniffing decides.
	writeFile(t, root, "notes.md", []byte("# notes\n"))
	writeFile(t, root, "renamed.go", []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a})

	f := newTestFilter(t, root)
	assert.Equal(t, Include, f.Check("notes.md", 8))
	assert.Equal(t, ExcludeBinary, f.Check("renamed.go", 6))
}

func TestCheckEmptyFileUsesExtensionHint(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "empty.go", nil)
	writeFile(t, root, "empty.xyz", nil)

	f := newTestFilter(t, root)
	assert.Equal(t, Include, f.Check("empty.go", 0))
	assert.Equal(t, ExcludeBinary, f.Check("empty.xyz", 0))
}

func TestCheckUnreadableExcluded(t *testing.T) {
	root := t.TempDir()

	f := newTestFilter(t, root)
	assert.Equal(t, ExcludeBinary, f.Check("vanished.go", 10))
}

func TestCheckOversized(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "big.go", []byte("package big\n"))

	cfg := config.DefaultRepoConfig()
	f, err := New(root, cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, ExcludeOversized, f.Check("big.go", int64(cfg.MaxFileSizeBytes)+1))

	// Estimated chunk count above the threshold also skips.
	overThreshold := int64(cfg.TokenTarget*4) * int64(cfg.ChunkThreshold+1)
	assert.Equal(t, ExcludeOversized, f.Check("big.go", overThreshold))
}

func TestCheckHiddenFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".env", []byte("KEY=value\n"))

	f := newTestFilter(t, root)
	assert.Equal(t, ExcludeIgnored, f.Check(".env", 10))
}

func TestSkipDirDefaults(t *testing.T) {
	root := t.TempDir()
	f := newTestFilter(t, root)

	assert.True(t, f.SkipDir("node_modules"))
	assert.True(t, f.SkipDir(".git"))
	assert.True(t, f.SkipDir("src/__pycache__"))
	assert.True(t, f.SkipDir(".hidden"))
	assert.False(t, f.SkipDir("src"))
}

func TestEstimateChunks(t *testing.T) {
	// 500 tokens/chunk at 4 chars/token = 2000 bytes per chunk.
	assert.Equal(t, 1, EstimateChunks(100, 500))
	assert.Equal(t, 1, EstimateChunks(2000, 500))
	assert.Equal(t, 5, EstimateChunks(10000, 500))
}

func TestLanguage(t *testing.T) {
	assert.Equal(t, "go", Language("cmd/main.go"))
	assert.Equal(t, "python", Language("src/app.py"))
	assert.Equal(t, "typescript", Language("web/index.tsx"))
	assert.Equal(t, "", Language("LICENSE"))
}

func TestWalk(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", []byte("ignored.txt\n"))
	writeFile(t, root, "main.go", []byte("package main\n"))
	writeFile(t, root, "pkg/util.go", []byte("package pkg\n"))
	writeFile(t, root, "ignored.txt", []byte("nope\n"))
	writeFile(t, root, "logo.png", []byte{0x89, 'P', 'N', 'G'})
	writeFile(t, root, "node_modules/dep/index.js", []byte("module.exports = {}\n"))

	f := newTestFilter(t, root)
	result, err := f.Walk()
	require.NoError(t, err)

	assert.Equal(t, []string{"main.go", "pkg/util.go"}, result.Included)

	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "logo.png", result.Skipped[0].Path)
	assert.Equal(t, "binary", result.Skipped[0].Reason)
}

func TestWalkDeterministicOrder(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"c.go", "a.go", "b.go"} {
		writeFile(t, root, name, []byte("package x\n"))
	}

	f := newTestFilter(t, root)
	result, err := f.Walk()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go", "b.go", "c.go"}, result.Included)
}

func TestWalkLargeTextFile(t *testing.T) {
	root := t.TempDir()
	big := strings.Repeat("some source text on a line\n", 100000) // ~2.7 MB
	writeFile(t, root, "big.md", []byte(big))

	cfg := config.DefaultRepoConfig()
	cfg.ChunkThreshold = 10
	f, err := New(root, cfg, nil)
	require.NoError(t, err)

	result, err := f.Walk()
	require.NoError(t, err)
	assert.Empty(t, result.Included)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "estimated 1350 chunks > threshold 10", result.Skipped[0].Reason)
}

func TestSkipReasonOversizeCauses(t *testing.T) {
	root := t.TempDir()
	cfg := config.DefaultRepoConfig()
	f, err := New(root, cfg, nil)
	require.NoError(t, err)

	tooLarge := int64(cfg.MaxFileSizeBytes) + 1
	assert.Equal(t, fmt.Sprintf("too large (%d bytes)", tooLarge),
		f.skipReason(ExcludeOversized, tooLarge))

	overThreshold := int64(cfg.TokenTarget*4) * int64(cfg.ChunkThreshold+1)
	assert.Equal(t, fmt.Sprintf("estimated %d chunks > threshold %d", cfg.ChunkThreshold+1, cfg.ChunkThreshold),
		f.skipReason(ExcludeOversized, overThreshold))

	assert.Equal(t, "binary", f.skipReason(ExcludeBinary, 0))
}
