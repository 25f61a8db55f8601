package config

import (
	"fmt"
	"os"
)

// Validate checks the configuration for out-of-range or inconsistent values.
// It is called from Load() so an invalid configuration fails before any
// backend connection is attempted.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGemini:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY not set (required for provider %q)",
				ErrMissingAPIKey, c.Provider)
		}
	case ProviderOllama:
		if c.OllamaHost == "" {
			return fmt.Errorf("%w: ollama_host must not be empty", ErrInvalidProvider)
		}
	default:
		return fmt.Errorf("%w: %q (expected %q or %q)",
			ErrInvalidProvider, c.Provider, ProviderGemini, ProviderOllama)
	}

	switch c.IndexBackend {
	case BackendLocal:
		// DataDir is created lazily; nothing to check here.
	case BackendElastic:
		if len(c.Elastic.Addresses) == 0 {
			return fmt.Errorf("%w: elastic.addresses must not be empty", ErrInvalidElasticAddress)
		}
		if c.Elastic.Index == "" {
			return fmt.Errorf("%w: elastic.index must not be empty", ErrInvalidElasticAddress)
		}
	default:
		return fmt.Errorf("%w: %q (expected %q or %q)",
			ErrInvalidBackend, c.IndexBackend, BackendLocal, BackendElastic)
	}

	if c.Dimension < 1 || c.Dimension > 8192 {
		return fmt.Errorf("%w: %d (must be 1-8192)", ErrInvalidDimension, c.Dimension)
	}

	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk_size %d must be positive", ErrInvalidChunking, c.ChunkSize)
	}

	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: %.3f (must be 0.0-1.0)", ErrInvalidThreshold, c.SimilarityThreshold)
	}

	if err := validateWeights(c.Weights); err != nil {
		return err
	}

	if c.TopK < 1 {
		return fmt.Errorf("%w: top_k %d must be positive", ErrInvalidThreshold, c.TopK)
	}
	if c.ContextTokens < 1 || c.CharsPerToken < 1 {
		return fmt.Errorf("%w: context_tokens and chars_per_token must be positive", ErrInvalidChunking)
	}
	if c.IngestWorkers < 1 {
		return fmt.Errorf("%w: ingest_workers %d must be positive", ErrInvalidChunking, c.IngestWorkers)
	}
	if c.TimeoutSeconds < 1 {
		return fmt.Errorf("%w: timeout_seconds %d must be positive", ErrInvalidChunking, c.TimeoutSeconds)
	}

	return nil
}

// validateWeights checks each fusion weight is in [0,1] and the sum is
// positive. Weights need not sum to exactly 1.0.
func validateWeights(w WeightsConfig) error {
	for name, v := range map[string]float64{
		"similarity": w.Similarity,
		"authority":  w.Authority,
		"temporal":   w.Temporal,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: weights.%s %.3f must be 0.0-1.0", ErrInvalidWeights, name, v)
		}
	}
	if w.Similarity+w.Authority+w.Temporal <= 0 {
		return fmt.Errorf("%w: weights must not all be zero", ErrInvalidWeights)
	}
	return nil
}
