// Package embedder generates vector embeddings for text chunks using
// pluggable providers.
//
// Three providers are built in: OpenAI, Jina AI, and a deterministic
// local provider for offline use. All of them batch, cache, and retry
// the same way; only the HTTP call differs.
//
// # Basic Usage
//
//	emb, err := embedder.New(cfg.Embedding)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	result, err := emb.Embed(ctx, "func ParseFile(path string) error { ... }")
//	fmt.Printf("dimension: %d\n", result.Dimension)
//
// # Batching
//
// EmbedBatch sends up to 100 texts per provider call and is the path
// the indexer uses:
//
//	results, err := emb.EmbedBatch(ctx, texts)
//
// Cache hits are filled in before the provider is called, so a batch
// of already-seen texts costs no network traffic at all.
//
// # Provider Selection
//
// The factory resolves the provider in order:
//
//  1. config embedding.provider, when set
//  2. OPENAI_API_KEY in the environment
//  3. JINA_API_KEY in the environment
//  4. the local provider
//
// The local provider expands a SHA-256 digest of the text into a
// unit-normalized 384-dimension vector. It is fully deterministic and
// needs no network, which keeps tests and air-gapped use working, but
// the vectors carry no semantic signal.
//
// # Retries
//
// Provider calls retry up to 3 times with exponential backoff (500ms,
// 1s, 2s). HTTP 429 and 5xx responses and transient network errors are
// retryable; 4xx responses and context cancellation are not.
package embedder
