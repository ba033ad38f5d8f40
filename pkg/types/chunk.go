package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// BytesPerToken is the heuristic divisor for estimating token counts
// (chars/4). It is an approximation, not tokenizer output; the chunk
// budget and the oversize estimate both trade precision for speed.
const BytesPerToken = 4

// Chunk is one bounded, contiguous segment of a file's text. Chunks are
// immutable once created; a changed file is re-chunked wholesale.
type Chunk struct {
	// Content
	Content     string
	ContentHash string // hex SHA-256 of Content, the global dedup key
	TokenCount  int

	// Position within the owning file
	Ordinal   int
	StartLine int // 1-based, inclusive
	EndLine   int // 1-based, inclusive

	// Metadata
	Language   string
	SymbolName string // optional, populated by language-aware policies
	SymbolKind string // function, method, class, struct, interface, type
}

// HashContent computes the hex SHA-256 digest used as chunk identity.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// EstimateTokens estimates the token count of text using the chars/4
// heuristic. Always returns at least 1 for non-empty text.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	n := len(text) / BytesPerToken
	if n < 1 {
		n = 1
	}
	return n
}

// Seal computes the chunk's content hash and token count from its content.
func (c *Chunk) Seal() {
	c.ContentHash = HashContent(c.Content)
	c.TokenCount = EstimateTokens(c.Content)
}

// Validate checks structural invariants of the chunk.
func (c *Chunk) Validate() error {
	if c.Content == "" {
		return errors.New("chunk content cannot be empty")
	}
	if c.StartLine <= 0 || c.EndLine <= 0 {
		return errors.New("line numbers must be positive")
	}
	if c.StartLine > c.EndLine {
		return errors.New("start line must be before or equal to end line")
	}
	if c.ContentHash == "" {
		return errors.New("content hash must be computed")
	}
	if c.Ordinal < 0 {
		return errors.New("ordinal must be non-negative")
	}
	return nil
}
