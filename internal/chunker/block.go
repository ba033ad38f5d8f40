package chunker

import (
	"strings"

	"github.com/olemoy/craigpy/pkg/types"
)

// blockLimitFactor is the forced-split allowance for language-aware
// policies; boundaries are preferred, so the leash is longer than the
// generic policy's.
const blockLimitFactor = 1.5

// blockLang describes one language's boundary heuristics for blockPolicy.
type blockLang interface {
	// BlockStart reports whether a line opens a new top-level unit.
	BlockStart(line string) bool
	// Symbol extracts (name, kind) from a boundary line, or ("", "").
	Symbol(line string) (string, string)
	// Prologue returns the number of leading lines forming a file header
	// (package clause, imports), or 0 when the language has none.
	Prologue(lines []string) int
}

// blockPolicy accumulates lines into units closed at language boundaries
// or at the token budget, whichever comes first.
type blockPolicy struct {
	lang blockLang
}

func (p blockPolicy) Chunk(content string, cfg Config) []types.Chunk {
	lines := splitLines(content)
	var chunks []types.Chunk

	start := 0
	if n := p.lang.Prologue(lines); n > 0 {
		header := strings.Join(lines[:n], "")
		if types.EstimateTokens(header) > 10 {
			chunks = append(chunks, types.Chunk{
				Content:   header,
				StartLine: 1,
				EndLine:   n,
			})
		}
		start = n
	}

	var current []string
	currentStart := start + 1
	currentTokens := 0
	symName, symKind := "", ""

	flush := func(endLine int) {
		text := strings.Join(current, "")
		if strings.TrimSpace(text) == "" {
			return
		}
		chunks = append(chunks, types.Chunk{
			Content:    text,
			StartLine:  currentStart,
			EndLine:    endLine,
			SymbolName: symName,
			SymbolKind: symKind,
		})
	}

	hardLimit := int(float64(cfg.TokenTarget) * blockLimitFactor)

	for i := start; i < len(lines); i++ {
		line := lines[i]
		lineNum := i + 1
		lineTokens := types.EstimateTokens(line)

		if p.lang.BlockStart(line) && len(current) > 0 {
			flush(lineNum - 1)
			current = []string{line}
			currentStart = lineNum
			symName, symKind = p.lang.Symbol(line)
			currentTokens = lineTokens
			continue
		}

		if currentTokens+lineTokens > hardLimit && len(current) > 0 {
			flush(lineNum - 1)
			current = []string{line}
			currentStart = lineNum
			symName, symKind = "", ""
			currentTokens = lineTokens
			continue
		}

		if len(current) == 0 {
			currentStart = lineNum
			symName, symKind = p.lang.Symbol(line)
		}
		current = append(current, line)
		currentTokens += lineTokens
	}

	if len(current) > 0 {
		flush(len(lines))
	}
	return chunks
}

// indentOf returns the leading whitespace width of a line, tabs counted
// as one column.
func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}
