package filter

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/olemoy/craigpy/internal/config"
	"github.com/olemoy/craigpy/pkg/types"
)

// Verdict is the Filter's per-path decision.
type Verdict int

const (
	// Include means the path should be indexed.
	Include Verdict = iota
	// ExcludeIgnored means an ignore rule matched the path.
	ExcludeIgnored
	// ExcludeBinary means content sniffing classified the file as binary.
	ExcludeBinary
	// ExcludeOversized means the estimated chunk count exceeds the
	// configured threshold; a forced ingest bypasses this verdict.
	ExcludeOversized
)

// String returns the verdict name as used in skip reasons.
func (v Verdict) String() string {
	switch v {
	case Include:
		return "include"
	case ExcludeIgnored:
		return "ignored"
	case ExcludeBinary:
		return "binary"
	case ExcludeOversized:
		return "oversized"
	default:
		return "unknown"
	}
}

// Directories never descended into, regardless of ignore files.
var excludedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"__pycache__":  true,
	"venv":         true,
	".venv":        true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"vendor":       true,
}

// sniffLen is how many leading bytes are examined for binary detection.
const sniffLen = 512

// Magic prefixes that mark a file binary regardless of extension.
var binaryMagic = [][]byte{
	{0x89, 'P', 'N', 'G'},
	{0xff, 0xd8, 0xff},       // JPEG
	[]byte("GIF8"),
	[]byte("PK\x03\x04"),     // ZIP family
	[]byte("PK\x05\x06"),
	{0x7f, 'E', 'L', 'F'},
	{0xfe, 0xed, 0xfa},       // Mach-O
	{0xcf, 0xfa, 0xed},
	{0xca, 0xfe, 0xba},       // fat Mach-O / Java class
	[]byte("%PDF"),
	{0x1f, 0x8b},             // gzip
	[]byte("BZh"),
	{0xfd, '7', 'z', 'X', 'Z'},
	[]byte("Rar!"),
	{0x00, 'a', 's', 'm'},    // WASM
}

// Filter decides per-path whether content should be indexed. It is a pure
// decision component: it reads file headers for sniffing but never writes.
type Filter struct {
	root      string
	cfg       config.RepoConfig
	gitignore *ignore.GitIgnore // nil when the repo has no .gitignore
	excludes  *ignore.GitIgnore // tool-level excludes, nil when none
}

// New creates a Filter for a repository root, loading the repository's
// .gitignore if present and compiling extra tool-level exclude patterns.
func New(root string, cfg config.RepoConfig, excludePatterns []string) (*Filter, error) {
	f := &Filter{root: root, cfg: cfg}

	gitignorePath := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(gitignorePath); err == nil {
		gi, err := ignore.CompileIgnoreFile(gitignorePath)
		if err != nil {
			return nil, err
		}
		f.gitignore = gi
	}

	if len(excludePatterns) > 0 {
		f.excludes = ignore.CompileIgnoreLines(excludePatterns...)
	}

	return f, nil
}

// SkipDir reports whether a directory should not be descended into.
// relPath is the directory path relative to the repository root.
func (f *Filter) SkipDir(relPath string) bool {
	base := filepath.Base(relPath)
	if strings.HasPrefix(base, ".") && base != "." {
		return true
	}
	if excludedDirs[base] {
		return true
	}
	if f.excludes != nil && f.excludes.MatchesPath(relPath+"/") {
		return true
	}
	if f.gitignore != nil && f.gitignore.MatchesPath(relPath+"/") {
		return true
	}
	return false
}

// Check returns the verdict for one file. relPath is relative to the
// repository root; size is the file's byte size from stat.
func (f *Filter) Check(relPath string, size int64) Verdict {
	base := filepath.Base(relPath)
	if strings.HasPrefix(base, ".") {
		return ExcludeIgnored
	}
	if f.excludes != nil && f.excludes.MatchesPath(relPath) {
		return ExcludeIgnored
	}
	if f.gitignore != nil && f.gitignore.MatchesPath(relPath) {
		return ExcludeIgnored
	}

	if f.isBinary(relPath) {
		return ExcludeBinary
	}

	if size > int64(f.cfg.MaxFileSizeBytes) {
		return ExcludeOversized
	}
	if EstimateChunks(size, f.cfg.TokenTarget) > f.cfg.ChunkThreshold {
		return ExcludeOversized
	}

	return Include
}

// skipReason renders the recorded reason for a non-include verdict.
// The two oversize causes stay distinguishable in stats and status
// output.
func (f *Filter) skipReason(v Verdict, size int64) string {
	if v != ExcludeOversized {
		return v.String()
	}
	if size > int64(f.cfg.MaxFileSizeBytes) {
		return fmt.Sprintf("too large (%d bytes)", size)
	}
	return fmt.Sprintf("estimated %d chunks > threshold %d",
		EstimateChunks(size, f.cfg.TokenTarget), f.cfg.ChunkThreshold)
}

// EstimateChunks predicts how many chunks a file of the given size would
// produce at the given token target. The estimate uses the chars/4 token
// heuristic, so it is approximate by design.
func EstimateChunks(size int64, tokenTarget int) int {
	if tokenTarget <= 0 {
		tokenTarget = config.DefaultTokenTarget
	}
	bytesPerChunk := int64(tokenTarget * types.BytesPerToken)
	n := int(size / bytesPerChunk)
	if n < 1 {
		n = 1
	}
	return n
}

// isBinary combines the extension allow-list with content sniffing.
// The extension is advisory; the sniff is authoritative when they
// disagree, so an allow-listed file whose content turned binary is
// still excluded.
func (f *Filter) isBinary(relPath string) bool {
	file, err := os.Open(filepath.Join(f.root, relPath))
	if err != nil {
		return true // unreadable content is never indexed
	}
	defer func() { _ = file.Close() }()

	header := make([]byte, sniffLen)
	n, err := file.Read(header)
	if n == 0 {
		if err != nil && err != io.EOF {
			return true // unreadable content is never indexed
		}
		// Nothing to sniff; the extension hint decides.
		return !isTextPath(relPath)
	}
	header = header[:n]

	for _, magic := range binaryMagic {
		if bytes.HasPrefix(header, magic) {
			return true
		}
	}
	if bytes.IndexByte(header, 0x00) >= 0 {
		return true
	}

	// High ratio of non-text bytes in the header also marks binary.
	nonText := 0
	for _, b := range header {
		if b < 0x07 || (b > 0x0d && b < 0x20) {
			nonText++
		}
	}
	return len(header) > 0 && nonText*10 > len(header)*3
}
