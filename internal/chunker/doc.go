// Package chunker divides source text into bounded chunks for embedding
// and search.
//
// Chunking is heuristic and line-based: no parsing, no syntax trees.
// A registry maps language tags to policies; languages with a policy
// get symbol-aware splitting, everything else falls back to a generic
// token-budget splitter.
//
// # Basic Usage
//
//	reg := chunker.NewRegistry()
//	chunks := reg.Chunk(content, "go", chunker.Config{
//	    TokenTarget:   500,
//	    OverlapTokens: 64,
//	})
//
//	for _, c := range chunks {
//	    fmt.Printf("%d-%d %s %s\n", c.StartLine, c.EndLine, c.SymbolKind, c.SymbolName)
//	}
//
// # Policies
//
// The block policy handles go, python, typescript, javascript, java,
// and kotlin. It opens a new chunk at top-level block starts (func,
// class, def, and friends), attaches the preceding comment prologue,
// and records the symbol name and kind when the block start line yields
// one. Blocks are still subject to the token budget: a block past 1.5x
// the target is split by the generic rules.
//
// The generic policy accumulates lines toward the token target,
// preferring to break on blank lines once the chunk is past 0.6x of
// the target, and hard-splits at 1.2x. Consecutive chunks overlap by
// roughly OverlapTokens worth of trailing lines so no statement is
// stranded at a boundary.
//
// # Sizing
//
// Token counts are estimated at chars/4. The estimate is deliberately
// cheap; the budget bounds chunk size for the embedding model, it does
// not need tokenizer precision.
//
// # Identity
//
// Chunks are sealed with the hex SHA-256 of their content. Identical
// text always produces the identical hash regardless of which file or
// repository it came from, which is what makes storage-level dedup
// work.
package chunker
