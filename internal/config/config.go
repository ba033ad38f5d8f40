package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Default values for chunking options. Per-repository overrides may
// replace any subset; unset keys inherit these.
const (
	DefaultTokenTarget      = 500
	DefaultOverlapTokens    = 64
	DefaultChunkThreshold   = 200
	DefaultMaxFileSizeBytes = 10 << 20 // 10 MiB
)

// RepoConfig is the resolved chunking configuration for one repository.
// It is an explicit value threaded into the orchestrator and chunker; no
// component reads ambient global state.
type RepoConfig struct {
	TokenTarget      int `mapstructure:"token_target"`
	OverlapTokens    int `mapstructure:"overlap_tokens"`
	ChunkThreshold   int `mapstructure:"chunk_threshold"`
	MaxFileSizeBytes int `mapstructure:"max_file_size_bytes"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider string `mapstructure:"provider"` // openai, jina, local
	APIKey   string `mapstructure:"api_key"`
}

// Settings is the application-level configuration.
type Settings struct {
	DataDir   string                `mapstructure:"data_dir"`
	Defaults  RepoConfig            `mapstructure:"defaults"`
	Embedding EmbeddingConfig       `mapstructure:"embedding"`
	Repos     map[string]RepoConfig `mapstructure:"repos"` // keyed by absolute repo path
}

// DefaultRepoConfig returns the built-in chunking defaults.
func DefaultRepoConfig() RepoConfig {
	return RepoConfig{
		TokenTarget:      DefaultTokenTarget,
		OverlapTokens:    DefaultOverlapTokens,
		ChunkThreshold:   DefaultChunkThreshold,
		MaxFileSizeBytes: DefaultMaxFileSizeBytes,
	}
}

// DefaultSettings returns settings with built-in defaults and the
// standard data directory.
func DefaultSettings() *Settings {
	return &Settings{
		DataDir:   defaultDataDir(),
		Defaults:  DefaultRepoConfig(),
		Embedding: EmbeddingConfig{Provider: "local"},
		Repos:     map[string]RepoConfig{},
	}
}

// RepoConfigFor resolves the configuration for a repository path, merging
// per-repo overrides over the global defaults. Zero-valued override
// fields inherit the default.
func (s *Settings) RepoConfigFor(repoPath string) RepoConfig {
	resolved := s.Defaults
	if resolved.TokenTarget <= 0 {
		resolved.TokenTarget = DefaultTokenTarget
	}
	if resolved.OverlapTokens < 0 {
		resolved.OverlapTokens = DefaultOverlapTokens
	}
	if resolved.ChunkThreshold <= 0 {
		resolved.ChunkThreshold = DefaultChunkThreshold
	}
	if resolved.MaxFileSizeBytes <= 0 {
		resolved.MaxFileSizeBytes = DefaultMaxFileSizeBytes
	}

	override, ok := s.Repos[repoPath]
	if !ok {
		return resolved
	}
	if override.TokenTarget > 0 {
		resolved.TokenTarget = override.TokenTarget
	}
	if override.OverlapTokens > 0 {
		resolved.OverlapTokens = override.OverlapTokens
	}
	if override.ChunkThreshold > 0 {
		resolved.ChunkThreshold = override.ChunkThreshold
	}
	if override.MaxFileSizeBytes > 0 {
		resolved.MaxFileSizeBytes = override.MaxFileSizeBytes
	}
	return resolved
}

// DatabasePath returns the location of the single SQLite database holding
// both relational metadata and vectors.
func (s *Settings) DatabasePath() string {
	return filepath.Join(s.DataDir, "craig.db")
}

// EnsureDirs creates the data directory if it does not exist.
func (s *Settings) EnsureDirs() error {
	return os.MkdirAll(s.DataDir, 0o755)
}

// Load reads settings from the given config file (or the default search
// path when cfgFile is empty) with CRAIG_* environment overrides. A
// missing config file is not an error; defaults apply.
func Load(cfgFile string) (*Settings, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAIG")
	v.AutomaticEnv()

	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("defaults.token_target", DefaultTokenTarget)
	v.SetDefault("defaults.overlap_tokens", DefaultOverlapTokens)
	v.SetDefault("defaults.chunk_threshold", DefaultChunkThreshold)
	v.SetDefault("defaults.max_file_size_bytes", DefaultMaxFileSizeBytes)
	v.SetDefault("embedding.provider", "local")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "craig"))
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		// An absent config file on the default search path is fine; an
		// explicit --config file that cannot be read is not.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	settings := DefaultSettings()
	if err := v.Unmarshal(settings); err != nil {
		return nil, err
	}
	if settings.Repos == nil {
		settings.Repos = map[string]RepoConfig{}
	}
	return settings, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".craig"
	}
	return filepath.Join(home, ".local", "share", "craig")
}
