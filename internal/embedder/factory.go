package embedder

import (
	"fmt"
	"os"

	"github.com/olemoy/craigpy/internal/config"
)

const defaultCacheSize = 10000

// New builds an embedder from settings. An explicit provider in config
// wins; otherwise the first available API key (OpenAI, then Jina)
// selects the provider, falling back to the offline local embedder.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	cache := NewCache(defaultCacheSize)

	provider := cfg.Provider
	if provider == "" {
		provider = detectProvider()
	}

	switch provider {
	case ProviderOpenAI:
		key := cfg.APIKey
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		return NewOpenAIProvider(key, cache)
	case ProviderJina:
		key := cfg.APIKey
		if key == "" {
			key = os.Getenv("JINA_API_KEY")
		}
		return NewJinaProvider(key, cache)
	case ProviderLocal:
		return NewLocalProvider(cache), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
}

func detectProvider() string {
	if os.Getenv("OPENAI_API_KEY") != "" {
		return ProviderOpenAI
	}
	if os.Getenv("JINA_API_KEY") != "" {
		return ProviderJina
	}
	return ProviderLocal
}
