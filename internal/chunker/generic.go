package chunker

import (
	"strings"

	"github.com/olemoy/craigpy/pkg/types"
)

// hardLimitFactor allows a chunk to run somewhat past the token target
// before a forced split, so boundaries land on blank lines when possible.
const hardLimitFactor = 1.2

// softBreakFactor is the fill fraction after which a blank line is taken
// as a natural break.
const softBreakFactor = 0.6

// genericPolicy is the fallback for unknown languages: blank-line
// separated blocks bounded by the token target, with overlap re-seeding.
type genericPolicy struct{}

func (genericPolicy) Chunk(content string, cfg Config) []types.Chunk {
	lines := splitLines(content)

	var chunks []types.Chunk
	var current []string
	currentStart := 1
	currentTokens := 0

	flush := func(endLine int) {
		text := strings.Join(current, "")
		if strings.TrimSpace(text) == "" {
			return
		}
		chunks = append(chunks, types.Chunk{
			Content:   text,
			StartLine: currentStart,
			EndLine:   endLine,
		})
	}

	hardLimit := int(float64(cfg.TokenTarget) * hardLimitFactor)
	softBreak := int(float64(cfg.TokenTarget) * softBreakFactor)

	for i, line := range lines {
		lineNum := i + 1
		lineTokens := types.EstimateTokens(line)

		// Forced split past the hard limit; carry overlap forward.
		if currentTokens+lineTokens > hardLimit && len(current) > 0 {
			flush(lineNum - 1)

			overlap, overlapTokens := trailingOverlap(current, cfg.OverlapTokens)
			current = append(overlap, line)
			currentStart = lineNum - len(overlap)
			currentTokens = overlapTokens + lineTokens
			continue
		}

		// Blank line is a natural break once the chunk is mostly full.
		if strings.TrimSpace(line) == "" && currentTokens >= softBreak && len(current) > 0 {
			flush(lineNum - 1)
			current = nil
			currentStart = lineNum + 1
			currentTokens = 0
			continue
		}

		current = append(current, line)
		currentTokens += lineTokens
	}

	if len(current) > 0 {
		flush(currentStart + len(current) - 1)
	}
	return chunks
}

// trailingOverlap returns the trailing lines worth at most overlapTokens,
// with their token total.
func trailingOverlap(lines []string, overlapTokens int) ([]string, int) {
	if overlapTokens <= 0 {
		return nil, 0
	}
	var overlap []string
	total := 0
	for i := len(lines) - 1; i >= 0; i-- {
		lt := types.EstimateTokens(lines[i])
		if total+lt > overlapTokens {
			break
		}
		overlap = append([]string{lines[i]}, overlap...)
		total += lt
	}
	return overlap, total
}
