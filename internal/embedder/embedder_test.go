package embedder

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olemoy/craigpy/internal/config"
)

func TestLocalProviderDeterministic(t *testing.T) {
	p := NewLocalProvider(nil)
	ctx := context.Background()

	a, err := p.Embed(ctx, "func main() {}")
	require.NoError(t, err)
	b, err := p.Embed(ctx, "func main() {}")
	require.NoError(t, err)

	assert.Equal(t, a.Vector, b.Vector)
	assert.Equal(t, LocalDimension, a.Dimension)
	assert.Len(t, a.Vector, LocalDimension)
	assert.Equal(t, ProviderLocal, a.Provider)
	assert.Equal(t, a.Hash, b.Hash)
}

func TestLocalProviderDistinctTexts(t *testing.T) {
	p := NewLocalProvider(nil)
	ctx := context.Background()

	a, err := p.Embed(ctx, "one")
	require.NoError(t, err)
	b, err := p.Embed(ctx, "two")
	require.NoError(t, err)
	assert.NotEqual(t, a.Vector, b.Vector)
}

func TestLocalProviderUnitNorm(t *testing.T) {
	p := NewLocalProvider(nil)
	emb, err := p.Embed(context.Background(), "normalize me")
	require.NoError(t, err)

	var norm float64
	for _, v := range emb.Vector {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 1e-4)
}

func TestLocalProviderBatch(t *testing.T) {
	p := NewLocalProvider(NewCache(10))
	ctx := context.Background()

	embs, err := p.EmbedBatch(ctx, []string{"a", "b", "a"})
	require.NoError(t, err)
	require.Len(t, embs, 3)
	assert.Equal(t, embs[0].Vector, embs[2].Vector)
	assert.NotEqual(t, embs[0].Vector, embs[1].Vector)
}

func TestEmbedBatchValidation(t *testing.T) {
	p := NewLocalProvider(nil)
	ctx := context.Background()

	_, err := p.EmbedBatch(ctx, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = p.EmbedBatch(ctx, []string{"ok", ""})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCacheGetSet(t *testing.T) {
	c := NewCache(2)
	emb := &Embedding{Vector: []float32{1, 2, 3}, Dimension: 3, Hash: "h1"}
	c.Set("h1", emb)

	got, ok := c.Get("h1")
	require.True(t, ok)
	assert.Equal(t, emb.Vector, got.Vector)

	// Mutating the returned copy must not affect the cached value.
	got.Vector[0] = 99
	again, ok := c.Get("h1")
	require.True(t, ok)
	assert.Equal(t, float32(1), again.Vector[0])
}

func TestCacheEviction(t *testing.T) {
	c := NewCache(2)
	c.Set("a", &Embedding{Hash: "a"})
	c.Set("b", &Embedding{Hash: "b"})
	c.Set("c", &Embedding{Hash: "c"})

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestCacheMiss(t *testing.T) {
	c := NewCache(10)
	_, ok := c.Get("absent")
	assert.False(t, ok)
}

func TestHashText(t *testing.T) {
	h := HashText("hello")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashText("hello"))
	assert.NotEqual(t, h, HashText("hello "))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, isRetryable(nil))
	assert.False(t, isRetryable(context.Canceled))
	assert.False(t, isRetryable(context.DeadlineExceeded))
	assert.False(t, isRetryable(errors.New("bad request")))
	assert.False(t, isRetryable(&httpStatusError{Code: http.StatusUnauthorized}))

	assert.True(t, isRetryable(&httpStatusError{Code: http.StatusTooManyRequests}))
	assert.True(t, isRetryable(&httpStatusError{Code: http.StatusInternalServerError}))
	assert.True(t, isRetryable(&httpStatusError{Code: http.StatusBadGateway}))
	assert.True(t, isRetryable(errors.New("dial tcp: connection refused")))
}

func TestRetryWithBackoffPermanentError(t *testing.T) {
	calls := 0
	_, err := retryWithBackoff(context.Background(), func() (int, error) {
		calls++
		return 0, errors.New("permanent failure")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoffEventualSuccess(t *testing.T) {
	calls := 0
	result, err := retryWithBackoff(context.Background(), func() (string, error) {
		calls++
		if calls < 3 {
			return "", &httpStatusError{Code: http.StatusServiceUnavailable}
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoffExhaustion(t *testing.T) {
	calls := 0
	_, err := retryWithBackoff(context.Background(), func() (int, error) {
		calls++
		return 0, &httpStatusError{Code: http.StatusInternalServerError}
	})
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.Equal(t, maxRetries+1, calls)
}

func TestRetryWithBackoffContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := retryWithBackoff(ctx, func() (int, error) {
		calls++
		return 0, &httpStatusError{Code: http.StatusInternalServerError}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestNewFactoryLocal(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("JINA_API_KEY", "")

	emb, err := New(config.EmbeddingConfig{})
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, emb.Provider())
}

func TestNewFactoryExplicitOpenAI(t *testing.T) {
	emb, err := New(config.EmbeddingConfig{Provider: ProviderOpenAI, APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, emb.Provider())
	assert.Equal(t, OpenAIDimension, emb.Dimension())
}

func TestNewFactoryOpenAIMissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := New(config.EmbeddingConfig{Provider: ProviderOpenAI})
	assert.Error(t, err)
}

func TestNewFactoryUnknownProvider(t *testing.T) {
	_, err := New(config.EmbeddingConfig{Provider: "quantum"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
