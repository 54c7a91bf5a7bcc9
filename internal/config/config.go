// Package config loads whycontext settings from a config file, the environment and defaults.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. WHYCONTEXT_CACHE_SIZE
const EnvPrefix = "WHYCONTEXT"

// FileName is the config file looked up in the repository root and the working directory
const FileName = "whycontext"

// Config is the full application configuration
type Config struct {
	RepoPath      string              `mapstructure:"repo_path"`
	CacheSize     int                 `mapstructure:"cache_size"`
	QueryTimeout  time.Duration       `mapstructure:"query_timeout"`
	HistoryLimit  int                 `mapstructure:"history_limit"`
	Semantic      SemanticConfig      `mapstructure:"semantic"`
	SemanticCache SemanticCacheConfig `mapstructure:"semantic_cache"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	Index         IndexConfig         `mapstructure:"index"`
	Synth         SynthConfig         `mapstructure:"synth"`
	Log           LogConfig           `mapstructure:"log"`
}

// SemanticConfig toggles embedding-based candidate narrowing
type SemanticConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// SemanticCacheConfig configures the similar-question answer cache
type SemanticCacheConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Size      int           `mapstructure:"size"`
	Threshold float64       `mapstructure:"threshold"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// EmbeddingConfig configures the embedding generator
type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	Dimension int    `mapstructure:"dimension"`
	CacheDir  string `mapstructure:"cache_dir"`
	APIKey    string `mapstructure:"api_key"`
}

// IndexConfig configures the commit vector index
type IndexConfig struct {
	Dir      string `mapstructure:"dir"`
	Metric   string `mapstructure:"metric"`
	Disabled bool   `mapstructure:"disabled"`
}

// SynthConfig selects the answer synthesizer
type SynthConfig struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
}

// LogConfig configures logging
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Error reports an invalid setting
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		RepoPath:     ".",
		CacheSize:    1000,
		QueryTimeout: 2 * time.Second,
		HistoryLimit: 10000,
		Semantic:     SemanticConfig{Enabled: true},
		SemanticCache: SemanticCacheConfig{
			Enabled:   true,
			Size:      500,
			Threshold: 0.85,
			TTL:       time.Hour,
		},
		Embedding: EmbeddingConfig{
			Provider:  "local",
			Dimension: 384,
			CacheDir:  filepath.Join(".whycontext", "cache"),
		},
		Index: IndexConfig{
			Dir:    filepath.Join(".whycontext", "index"),
			Metric: "cosine",
		},
		Synth: SynthConfig{Provider: "extractive"},
		Log:   LogConfig{Level: "info", Format: "text"},
	}
}

// New returns a viper instance with defaults and environment binding applied
func New() *viper.Viper {
	v := viper.New()
	d := Default()

	v.SetDefault("repo_path", d.RepoPath)
	v.SetDefault("cache_size", d.CacheSize)
	v.SetDefault("query_timeout", d.QueryTimeout)
	v.SetDefault("history_limit", d.HistoryLimit)
	v.SetDefault("semantic.enabled", d.Semantic.Enabled)
	v.SetDefault("semantic_cache.enabled", d.SemanticCache.Enabled)
	v.SetDefault("semantic_cache.size", d.SemanticCache.Size)
	v.SetDefault("semantic_cache.threshold", d.SemanticCache.Threshold)
	v.SetDefault("semantic_cache.ttl", d.SemanticCache.TTL)
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimension", d.Embedding.Dimension)
	v.SetDefault("embedding.cache_dir", d.Embedding.CacheDir)
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("index.dir", d.Index.Dir)
	v.SetDefault("index.metric", d.Index.Metric)
	v.SetDefault("index.disabled", d.Index.Disabled)
	v.SetDefault("synth.provider", d.Synth.Provider)
	v.SetDefault("synth.model", d.Synth.Model)
	v.SetDefault("synth.api_key", "")
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file from the given directories, then applies
// environment overrides. An explicit configFile must exist.
func Load(v *viper.Viper, configFile string, searchDirs ...string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		for _, dir := range searchDirs {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that cannot be corrected silently
func (c *Config) Validate() error {
	if c.RepoPath == "" {
		return &Error{Field: "repo_path", Message: "must not be empty"}
	}
	if c.CacheSize < 0 {
		return &Error{Field: "cache_size", Message: "must not be negative"}
	}
	if c.QueryTimeout < 0 {
		return &Error{Field: "query_timeout", Message: "must not be negative"}
	}
	if c.HistoryLimit < 0 {
		return &Error{Field: "history_limit", Message: "must not be negative"}
	}
	if c.SemanticCache.Size < 0 {
		return &Error{Field: "semantic_cache.size", Message: "must not be negative"}
	}
	if c.SemanticCache.Threshold < 0 || c.SemanticCache.Threshold > 1 {
		return &Error{Field: "semantic_cache.threshold", Message: "must be between 0 and 1"}
	}
	if c.SemanticCache.TTL < 0 {
		return &Error{Field: "semantic_cache.ttl", Message: "must not be negative"}
	}
	if c.Embedding.Dimension < 0 {
		return &Error{Field: "embedding.dimension", Message: "must not be negative"}
	}
	switch c.Index.Metric {
	case "", "cosine", "ip", "l2":
	default:
		return &Error{Field: "index.metric", Message: fmt.Sprintf("unknown metric %q", c.Index.Metric)}
	}
	switch c.Synth.Provider {
	case "", "extractive", "gemini":
	default:
		return &Error{Field: "synth.provider", Message: fmt.Sprintf("unknown provider %q", c.Synth.Provider)}
	}
	return nil
}

// ResolvePath anchors a relative path setting at the repository root
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.RepoPath, p)
}
