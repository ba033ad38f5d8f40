package chunker

import (
	"strings"
	"sync"

	"github.com/olemoy/craigpy/pkg/types"
)

// Config bounds the chunker's output. TokenTarget is the approximate
// chunk size budget (chars/4 estimate); OverlapTokens is the trailing
// context re-seeded into the next chunk for continuity.
type Config struct {
	TokenTarget   int
	OverlapTokens int
}

// Policy segments file text into chunks along language-appropriate
// boundaries. Implementations must be deterministic: identical input and
// config always produce the identical chunk sequence, same hashes
// included — the cross-run dedup contract depends on it.
type Policy interface {
	Chunk(content string, cfg Config) []types.Chunk
}

// Registry maps language tags to chunking policies. Unknown tags fall
// back to the generic blank-line policy. Adding an AST-based policy later
// is a Register call; the orchestrator never changes.
type Registry struct {
	mu       sync.RWMutex
	policies map[string]Policy
	fallback Policy
}

// NewRegistry creates a registry preloaded with the built-in heuristic
// policies.
func NewRegistry() *Registry {
	r := &Registry{
		policies: make(map[string]Policy),
		fallback: genericPolicy{},
	}
	r.Register("go", blockPolicy{lang: goLang{}})
	r.Register("python", blockPolicy{lang: pythonLang{}})
	r.Register("typescript", blockPolicy{lang: typescriptLang{}})
	r.Register("javascript", blockPolicy{lang: typescriptLang{}})
	r.Register("java", blockPolicy{lang: javaLang{}})
	r.Register("kotlin", blockPolicy{lang: javaLang{}})
	return r
}

// Register installs a policy for a language tag, replacing any existing
// one.
func (r *Registry) Register(language string, p Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[language] = p
}

// Lookup returns the policy for a language tag, or the generic fallback.
func (r *Registry) Lookup(language string) Policy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.policies[language]; ok {
		return p
	}
	return r.fallback
}

// Chunk segments content using the policy registered for the language
// tag, then stamps each chunk with its ordinal, language, hash, and token
// count. Empty or whitespace-only content yields no chunks.
func (r *Registry) Chunk(content, language string, cfg Config) []types.Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	if cfg.TokenTarget <= 0 {
		cfg.TokenTarget = 500
	}

	chunks := r.Lookup(language).Chunk(content, cfg)
	for i := range chunks {
		chunks[i].Ordinal = i
		chunks[i].Language = language
		chunks[i].Seal()
	}
	return chunks
}

// splitLines splits content keeping line terminators, so rejoining
// chunks reproduces the original bytes.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.SplitAfter(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
