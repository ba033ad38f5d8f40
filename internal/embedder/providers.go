package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// Provider names.
const (
	ProviderOpenAI = "openai"
	ProviderJina   = "jina"
	ProviderLocal  = "local"
)

// Provider defaults.
const (
	OpenAIModel     = "text-embedding-3-small"
	OpenAIDimension = 1536
	OpenAIEndpoint  = "https://api.openai.com/v1/embeddings"

	JinaModel     = "jina-embeddings-v3"
	JinaDimension = 1024
	JinaEndpoint  = "https://api.jina.ai/v1/embeddings"

	LocalModel     = "local-hash"
	LocalDimension = 384

	maxBatchSize   = 100
	requestTimeout = 60 * time.Second
)

// OpenAIProvider calls the OpenAI embeddings API.
type OpenAIProvider struct {
	apiKey string
	model  string
	client *http.Client
	cache  *Cache
}

// NewOpenAIProvider creates an OpenAI-backed embedder.
func NewOpenAIProvider(apiKey string, cache *Cache) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key required", ErrInvalidInput)
	}
	return &OpenAIProvider{
		apiKey: apiKey,
		model:  OpenAIModel,
		client: &http.Client{Timeout: requestTimeout},
		cache:  cache,
	}, nil
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) (*Embedding, error) {
	embeddings, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([]*Embedding, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}
	if len(texts) > maxBatchSize {
		return nil, fmt.Errorf("%w: %d texts (max %d)", ErrBatchTooLarge, len(texts), maxBatchSize)
	}

	results, pending, pendingIdx := splitCached(p.cache, texts)
	if len(pending) == 0 {
		return results, nil
	}

	vectors, err := retryWithBackoff(ctx, func() ([][]float32, error) {
		return p.callAPI(ctx, pending)
	})
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(pending) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrProviderFailed, len(vectors), len(pending))
	}

	fillResults(p.cache, results, pending, pendingIdx, vectors, ProviderOpenAI, p.model)
	return results, nil
}

func (p *OpenAIProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := map[string]any{
		"model": p.model,
		"input": texts,
	}
	body, err := postJSON(ctx, p.client, OpenAIEndpoint, p.apiKey, reqBody)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding OpenAI response: %w", err)
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrProviderFailed, d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("%w: missing embedding for text %d", ErrProviderFailed, i)
		}
	}
	return vectors, nil
}

func (p *OpenAIProvider) Dimension() int   { return OpenAIDimension }
func (p *OpenAIProvider) Provider() string { return ProviderOpenAI }
func (p *OpenAIProvider) Model() string    { return p.model }
func (p *OpenAIProvider) Close() error     { return nil }

// JinaProvider calls the Jina AI embeddings API.
type JinaProvider struct {
	apiKey string
	model  string
	client *http.Client
	cache  *Cache
}

// NewJinaProvider creates a Jina-backed embedder.
func NewJinaProvider(apiKey string, cache *Cache) (*JinaProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: Jina API key required", ErrInvalidInput)
	}
	return &JinaProvider{
		apiKey: apiKey,
		model:  JinaModel,
		client: &http.Client{Timeout: requestTimeout},
		cache:  cache,
	}, nil
}

func (p *JinaProvider) Embed(ctx context.Context, text string) (*Embedding, error) {
	embeddings, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (p *JinaProvider) EmbedBatch(ctx context.Context, texts []string) ([]*Embedding, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}
	if len(texts) > maxBatchSize {
		return nil, fmt.Errorf("%w: %d texts (max %d)", ErrBatchTooLarge, len(texts), maxBatchSize)
	}

	results, pending, pendingIdx := splitCached(p.cache, texts)
	if len(pending) == 0 {
		return results, nil
	}

	vectors, err := retryWithBackoff(ctx, func() ([][]float32, error) {
		return p.callAPI(ctx, pending)
	})
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(pending) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrProviderFailed, len(vectors), len(pending))
	}

	fillResults(p.cache, results, pending, pendingIdx, vectors, ProviderJina, p.model)
	return results, nil
}

func (p *JinaProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := map[string]any{
		"model": p.model,
		"input": texts,
		"task":  "retrieval.passage",
	}
	body, err := postJSON(ctx, p.client, JinaEndpoint, p.apiKey, reqBody)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding Jina response: %w", err)
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrProviderFailed, d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("%w: missing embedding for text %d", ErrProviderFailed, i)
		}
	}
	return vectors, nil
}

func (p *JinaProvider) Dimension() int   { return JinaDimension }
func (p *JinaProvider) Provider() string { return ProviderJina }
func (p *JinaProvider) Model() string    { return p.model }
func (p *JinaProvider) Close() error     { return nil }

// LocalProvider produces deterministic hash-derived vectors. It needs
// no network or API key; identical text always yields the identical
// vector, which keeps tests and offline use reproducible. The vectors
// carry no semantic signal.
type LocalProvider struct {
	cache *Cache
}

// NewLocalProvider creates the offline deterministic embedder.
func NewLocalProvider(cache *Cache) *LocalProvider {
	return &LocalProvider{cache: cache}
}

func (p *LocalProvider) Embed(ctx context.Context, text string) (*Embedding, error) {
	embeddings, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (p *LocalProvider) EmbedBatch(ctx context.Context, texts []string) ([]*Embedding, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}

	results := make([]*Embedding, len(texts))
	for i, text := range texts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		hash := HashText(text)
		if p.cache != nil {
			if cached, ok := p.cache.Get(hash); ok {
				results[i] = cached
				continue
			}
		}

		emb := &Embedding{
			Vector:    localVector(text),
			Dimension: LocalDimension,
			Provider:  ProviderLocal,
			Model:     LocalModel,
			Hash:      hash,
		}
		if p.cache != nil {
			p.cache.Set(hash, emb)
		}
		results[i] = emb
	}
	return results, nil
}

// localVector expands a SHA-256 digest into a unit-normalized vector by
// rehashing with a counter until all dimensions are filled.
func localVector(text string) []float32 {
	vector := make([]float32, LocalDimension)
	digest := sha256.Sum256([]byte(text))
	filled := 0
	counter := byte(0)
	for filled < LocalDimension {
		for _, b := range digest {
			if filled >= LocalDimension {
				break
			}
			vector[filled] = float32(b)/127.5 - 1.0
			filled++
		}
		counter++
		digest = sha256.Sum256(append(digest[:], counter))
	}

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vector {
			vector[i] = float32(float64(vector[i]) / norm)
		}
	}
	return vector
}

func (p *LocalProvider) Dimension() int   { return LocalDimension }
func (p *LocalProvider) Provider() string { return ProviderLocal }
func (p *LocalProvider) Model() string    { return LocalModel }
func (p *LocalProvider) Close() error     { return nil }

// splitCached partitions a batch into cache hits (placed directly into
// results) and texts that still need an API call.
func splitCached(cache *Cache, texts []string) (results []*Embedding, pending []string, pendingIdx []int) {
	results = make([]*Embedding, len(texts))
	for i, text := range texts {
		hash := HashText(text)
		if cache != nil {
			if cached, ok := cache.Get(hash); ok {
				results[i] = cached
				continue
			}
		}
		pending = append(pending, text)
		pendingIdx = append(pendingIdx, i)
	}
	return results, pending, pendingIdx
}

// fillResults writes freshly fetched vectors back into the batch result
// slice and the cache.
func fillResults(cache *Cache, results []*Embedding, pending []string, pendingIdx []int, vectors [][]float32, provider, model string) {
	for j, vec := range vectors {
		hash := HashText(pending[j])
		emb := &Embedding{
			Vector:    vec,
			Dimension: len(vec),
			Provider:  provider,
			Model:     model,
			Hash:      hash,
		}
		if cache != nil {
			cache.Set(hash, emb)
		}
		results[pendingIdx[j]] = emb
	}
}

// postJSON sends an authorized JSON POST and returns the response body,
// wrapping non-2xx statuses in httpStatusError for retry decisions.
func postJSON(ctx context.Context, client *http.Client, url, apiKey string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &httpStatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
