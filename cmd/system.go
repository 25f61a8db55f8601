package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/sable-sec/intelrag/internal/assemble"
	"github.com/sable-sec/intelrag/internal/config"
	"github.com/sable-sec/intelrag/internal/document"
	"github.com/sable-sec/intelrag/internal/embed"
	"github.com/sable-sec/intelrag/internal/index"
	"github.com/sable-sec/intelrag/internal/log"
	"github.com/sable-sec/intelrag/internal/rag"
	"github.com/sable-sec/intelrag/internal/rank"
)

// newSystem builds the full retrieval system from configuration. The caller
// owns the returned System and must Close it.
func newSystem(ctx context.Context) (*rag.System, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	logger := log.New(log.Config{Level: logLevel(), JSON: flagJSONLogs})

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	var model embed.Model
	switch cfg.Provider {
	case config.ProviderGemini:
		model, err = embed.NewGeminiModel(ctx, cfg.EmbedderModel, cfg.Dimension)
		if err != nil {
			return nil, nil, fmt.Errorf("gemini embedder: %w", err)
		}
	case config.ProviderOllama:
		model = embed.NewOllamaModel(cfg.OllamaHost, cfg.EmbedderModel, cfg.Dimension, timeout)
	default:
		return nil, nil, fmt.Errorf("%w: %s", config.ErrInvalidProvider, cfg.Provider)
	}

	cache := embed.NewCache(cfg.CacheDir, model.Name())
	if err := cache.Load(); err != nil {
		// A corrupt cache costs re-embedding, not correctness.
		logger.Warn("embedding cache unreadable, starting empty", "error", err)
	}
	provider := embed.NewProvider(model, cache, cfg.EmbedRate, log.For(logger, "embed"))

	var idx index.VectorIndex
	switch cfg.IndexBackend {
	case config.BackendLocal:
		idx = index.NewLocal(cfg.DataDir, cfg.Dimension, log.For(logger, "index"))
	case config.BackendElastic:
		idx = index.NewElastic(index.ElasticConfig{
			Addresses: cfg.Elastic.Addresses,
			Username:  cfg.Elastic.Username,
			Password:  cfg.Elastic.Password,
			Index:     cfg.Elastic.Index,
			Dimension: cfg.Dimension,
		}, log.For(logger, "index"))
	default:
		return nil, nil, fmt.Errorf("%w: %s", config.ErrInvalidBackend, cfg.IndexBackend)
	}

	openCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := idx.Open(openCtx); err != nil {
		return nil, nil, fmt.Errorf("open %s index: %w", cfg.IndexBackend, err)
	}

	processor := document.NewProcessor(
		document.NewChunker(cfg.ChunkSize), log.For(logger, "document"))
	scorer := rank.New(
		rank.WithThreshold(cfg.SimilarityThreshold),
		rank.WithWeights(rank.Weights{
			Similarity: cfg.Weights.Similarity,
			Authority:  cfg.Weights.Authority,
			Temporal:   cfg.Weights.Temporal,
		}))
	assembler := assemble.New(cfg.CharsPerToken)

	system := rag.New(processor, provider, idx, scorer, assembler, rag.Options{
		TopK:    cfg.TopK,
		Timeout: timeout,
		Workers: cfg.IngestWorkers,
	}, log.For(logger, "rag"))

	return system, cfg, nil
}
