package config

import (
	"errors"
	"testing"
)

// validConfig returns a configuration that passes Validate. Tests mutate one
// field at a time from this baseline.
func validConfig() Config {
	return Config{
		Provider:            ProviderOllama, // avoids the GEMINI_API_KEY requirement
		EmbedderModel:       "nomic-embed-text",
		Dimension:           768,
		OllamaHost:          "http://localhost:11434",
		EmbedRate:           10,
		IndexBackend:        BackendLocal,
		ChunkSize:           1024,
		TopK:                10,
		SimilarityThreshold: 0.7,
		Weights:             WeightsConfig{Similarity: 0.5, Authority: 0.3, Temporal: 0.2},
		ContextTokens:       2000,
		CharsPerToken:       4,
		IngestWorkers:       4,
		TimeoutSeconds:      30,
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid configuration rejected: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Provider = "openrouter" },
			wantErr: ErrInvalidProvider,
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.IndexBackend = "pinecone" },
			wantErr: ErrInvalidBackend,
		},
		{
			name: "elastic without addresses",
			mutate: func(c *Config) {
				c.IndexBackend = BackendElastic
				c.Elastic = ElasticConfig{Index: "chunks"}
			},
			wantErr: ErrInvalidElasticAddress,
		},
		{
			name: "elastic without index name",
			mutate: func(c *Config) {
				c.IndexBackend = BackendElastic
				c.Elastic = ElasticConfig{Addresses: []string{"http://localhost:9200"}}
			},
			wantErr: ErrInvalidElasticAddress,
		},
		{
			name:    "zero dimension",
			mutate:  func(c *Config) { c.Dimension = 0 },
			wantErr: ErrInvalidDimension,
		},
		{
			name:    "zero chunk size",
			mutate:  func(c *Config) { c.ChunkSize = 0 },
			wantErr: ErrInvalidChunking,
		},
		{
			name:    "threshold above one",
			mutate:  func(c *Config) { c.SimilarityThreshold = 1.5 },
			wantErr: ErrInvalidThreshold,
		},
		{
			name:    "negative weight",
			mutate:  func(c *Config) { c.Weights.Authority = -0.1 },
			wantErr: ErrInvalidWeights,
		},
		{
			name: "all-zero weights",
			mutate: func(c *Config) {
				c.Weights = WeightsConfig{}
			},
			wantErr: ErrInvalidWeights,
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.IngestWorkers = 0 },
			wantErr: ErrInvalidChunking,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateOllamaRequiresHost(t *testing.T) {
	cfg := validConfig()
	cfg.OllamaHost = ""

	if err := cfg.Validate(); !errors.Is(err, ErrInvalidProvider) {
		t.Errorf("expected ErrInvalidProvider, got %v", err)
	}
}
