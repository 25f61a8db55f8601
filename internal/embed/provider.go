package embed

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/sable-sec/intelrag/internal/log"
)

// Provider wraps a Model with content-addressed caching and request rate
// limiting. Cache hits never touch the model. Safe for concurrent use.
type Provider struct {
	model   Model
	cache   *Cache
	limiter *rate.Limiter
	logger  log.Logger
}

// NewProvider creates a Provider. ratePerSec bounds model calls per second;
// zero or negative means unlimited. The cache starts with whatever its file
// held at the last save; call Cache().Load() before heavy use.
func NewProvider(model Model, cache *Cache, ratePerSec float64, logger log.Logger) *Provider {
	if logger == nil {
		logger = log.NewNop()
	}
	limit := rate.Inf
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
	}
	return &Provider{
		model:   model,
		cache:   cache,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Cache exposes the underlying cache for lifecycle calls (Load, Save).
func (p *Provider) Cache() *Cache { return p.cache }

// Dimension returns the model's fixed output vector length.
func (p *Provider) Dimension() int { return p.model.Dimension() }

// ModelName returns the wrapped model's identifier.
func (p *Provider) ModelName() string { return p.model.Name() }

// Embed returns the vector for text, from cache when possible.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}

	key := Key(text)
	if v := p.cache.Get(key); v != nil {
		return v, nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embed rate wait: %w", err)
	}

	v, err := p.model.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(v) != p.model.Dimension() {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), p.model.Dimension())
	}

	p.cache.Put(key, v)
	return v, nil
}

// EmbedBatch returns one vector per text, in input order. Cached texts are
// served locally and only the misses go to the model, preserving order in
// the merged result. A dimension mismatch on any vector fails the batch so
// no undersized vector is ever cached.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		if text == "" {
			return nil, fmt.Errorf("%w: text %d", ErrEmptyInput, i)
		}
		if v := p.cache.Get(Key(text)); v != nil {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embed rate wait: %w", err)
	}

	vectors, err := p.model.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("model returned %d vectors for %d texts", len(vectors), len(missTexts))
	}

	for j, v := range vectors {
		if len(v) != p.model.Dimension() {
			return nil, fmt.Errorf("%w: vector %d has %d dims, want %d",
				ErrDimensionMismatch, j, len(v), p.model.Dimension())
		}
		p.cache.Put(Key(missTexts[j]), v)
		out[missIdx[j]] = v
	}

	p.logger.Debug("embedded batch",
		"total", len(texts),
		"cache_hits", len(texts)-len(missTexts),
		"model", p.model.Name())

	return out, nil
}
