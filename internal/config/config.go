// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.intelrag/config.yaml or ./config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - Embedding: provider selection, model, vector dimension, cache location
//   - Index: backend selection (local or elastic) and connection settings
//   - Chunking: maximum chunk size for document splitting
//   - Retrieval: top-K, similarity threshold, score fusion weights
//   - Context: token budget and chars-per-token estimate
//
// Security: the Elasticsearch password is only read from the environment and
// never logged. Validation happens at load time (fail-fast) with sentinel
// errors usable via errors.Is().
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidProvider indicates the embedding provider is not supported.
	ErrInvalidProvider = errors.New("invalid embedding provider")

	// ErrInvalidBackend indicates the index backend is not supported.
	ErrInvalidBackend = errors.New("invalid index backend")

	// ErrInvalidDimension indicates the embedding dimension is out of range.
	ErrInvalidDimension = errors.New("invalid embedding dimension")

	// ErrInvalidChunking indicates a sizing parameter (chunk size, context
	// budget, workers, timeout) is out of range.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidThreshold indicates the similarity threshold is out of [0,1].
	ErrInvalidThreshold = errors.New("invalid similarity threshold")

	// ErrInvalidWeights indicates the score fusion weights are unusable.
	ErrInvalidWeights = errors.New("invalid score weights")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidElasticAddress indicates no Elasticsearch address was given.
	ErrInvalidElasticAddress = errors.New("invalid elasticsearch address")
)

// Embedding provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// Index backend identifiers used in Config.IndexBackend.
const (
	BackendLocal   = "local"
	BackendElastic = "elastic"
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 supports truncation to 768 dimensions via
	// OutputDimensionality (Matryoshka Representation Learning), which is
	// what both index backends are provisioned for.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultDimension is the vector dimension both backends are created with.
	DefaultDimension = 768

	// DefaultChunkSize is the maximum chunk size in characters.
	DefaultChunkSize = 1024
)

// ElasticConfig holds Elasticsearch connection settings for the distributed
// index backend.
type ElasticConfig struct {
	Addresses []string `mapstructure:"addresses" json:"addresses"`
	Username  string   `mapstructure:"username" json:"username"`
	Password  string   `mapstructure:"password" json:"-"` // SENSITIVE: env only, never serialized
	Index     string   `mapstructure:"index" json:"index"`
}

// WeightsConfig holds the score fusion weights. They are a policy constant
// with defaults 0.5/0.3/0.2 but deliberately overridable for tuning without
// a redeploy.
type WeightsConfig struct {
	Similarity float64 `mapstructure:"similarity" json:"similarity"`
	Authority  float64 `mapstructure:"authority" json:"authority"`
	Temporal   float64 `mapstructure:"temporal" json:"temporal"`
}

// Config stores application configuration.
type Config struct {
	// Embedding configuration
	Provider      string  `mapstructure:"provider" json:"provider"`             // "gemini" (default) or "ollama"
	EmbedderModel string  `mapstructure:"embedder_model" json:"embedder_model"` // model identifier
	Dimension     int     `mapstructure:"dimension" json:"dimension"`
	OllamaHost    string  `mapstructure:"ollama_host" json:"ollama_host"`
	EmbedRate     float64 `mapstructure:"embed_rate" json:"embed_rate"` // max embedding calls per second
	CacheDir      string  `mapstructure:"cache_dir" json:"cache_dir"`

	// Index configuration
	IndexBackend string        `mapstructure:"index_backend" json:"index_backend"` // "local" (default) or "elastic"
	DataDir      string        `mapstructure:"data_dir" json:"data_dir"`           // local backend persistence
	Elastic      ElasticConfig `mapstructure:"elastic" json:"elastic"`

	// Chunking configuration
	ChunkSize int `mapstructure:"chunk_size" json:"chunk_size"`

	// Retrieval configuration
	TopK                int           `mapstructure:"top_k" json:"top_k"`
	SimilarityThreshold float64       `mapstructure:"similarity_threshold" json:"similarity_threshold"`
	Weights             WeightsConfig `mapstructure:"weights" json:"weights"`

	// Context assembly configuration
	ContextTokens int `mapstructure:"context_tokens" json:"context_tokens"`
	CharsPerToken int `mapstructure:"chars_per_token" json:"chars_per_token"`

	// Ingestion configuration
	IngestWorkers  int `mapstructure:"ingest_workers" json:"ingest_workers"`
	TimeoutSeconds int `mapstructure:"timeout_seconds" json:"timeout_seconds"` // per backend call
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".intelrag")

	// Ensure directory exists (0750 keeps cache and config private)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".") // Also support current directory

	setDefaults(v, configDir)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper, configDir string) {
	// Embedding defaults
	v.SetDefault("provider", ProviderGemini)
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("dimension", DefaultDimension)
	v.SetDefault("ollama_host", "http://localhost:11434")
	v.SetDefault("embed_rate", 10.0)
	v.SetDefault("cache_dir", filepath.Join(configDir, "cache"))

	// Index defaults
	v.SetDefault("index_backend", BackendLocal)
	v.SetDefault("data_dir", filepath.Join(configDir, "index"))
	v.SetDefault("elastic.addresses", []string{"http://localhost:9200"})
	v.SetDefault("elastic.username", "elastic")
	v.SetDefault("elastic.index", "intelrag-chunks")

	// Chunking defaults
	v.SetDefault("chunk_size", DefaultChunkSize)

	// Retrieval defaults
	v.SetDefault("top_k", 10)
	v.SetDefault("similarity_threshold", 0.7)
	v.SetDefault("weights.similarity", 0.5)
	v.SetDefault("weights.authority", 0.3)
	v.SetDefault("weights.temporal", 0.2)

	// Context defaults
	v.SetDefault("context_tokens", 2000)
	v.SetDefault("chars_per_token", 4)

	// Ingestion defaults
	v.SetDefault("ingest_workers", 4)
	v.SetDefault("timeout_seconds", 30)
}

// bindEnvVariables binds sensitive environment variables explicitly.
// Secrets stay out of the config file:
//  1. GEMINI_API_KEY - read directly by the genai client, validated in Validate()
//  2. ELASTIC_PASSWORD - Elasticsearch password for the distributed backend
func bindEnvVariables(v *viper.Viper) {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics, it's a BUG in our code, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("elastic.password", "ELASTIC_PASSWORD")
	mustBind("elastic.addresses", "INTELRAG_ELASTIC_ADDRESSES")
	mustBind("index_backend", "INTELRAG_INDEX_BACKEND")
	mustBind("provider", "INTELRAG_PROVIDER")
	mustBind("embedder_model", "INTELRAG_EMBEDDER_MODEL")
	mustBind("ollama_host", "INTELRAG_OLLAMA_HOST")

	// NOTE: GEMINI_API_KEY is read directly by the genai client, not via
	// viper. Validate() checks its presence when the provider is "gemini".
}
