package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sable-sec/intelrag/internal/assemble"
	"github.com/sable-sec/intelrag/internal/document"
	"github.com/sable-sec/intelrag/internal/embed"
	"github.com/sable-sec/intelrag/internal/index"
	"github.com/sable-sec/intelrag/internal/log"
	"github.com/sable-sec/intelrag/internal/rank"
)

// Embedder is the embedding surface System needs. *embed.Provider
// satisfies it; tests substitute their own.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// System is the retrieval facade. Safe for concurrent use.
type System struct {
	processor *document.Processor
	embedder  Embedder
	index     index.VectorIndex
	scorer    *rank.Scorer
	assembler *assemble.Assembler
	logger    log.Logger

	topK    int
	timeout time.Duration
	workers int
}

// Options tune System behavior beyond its collaborators.
type Options struct {
	TopK    int           // default result count for Search
	Timeout time.Duration // per backend call
	Workers int           // directory ingestion concurrency
}

// New assembles a System from its collaborators. Zero options fall back to
// sane defaults.
func New(processor *document.Processor, embedder Embedder, idx index.VectorIndex,
	scorer *rank.Scorer, assembler *assemble.Assembler, opts Options, logger log.Logger) *System {
	if logger == nil {
		logger = log.NewNop()
	}
	if opts.TopK < 1 {
		opts.TopK = 10
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Workers < 1 {
		opts.Workers = 4
	}
	return &System{
		processor: processor,
		embedder:  embedder,
		index:     idx,
		scorer:    scorer,
		assembler: assembler,
		logger:    logger,
		topK:      opts.TopK,
		timeout:   opts.Timeout,
		workers:   opts.Workers,
	}
}

// SearchResult is one query's outcome. Degraded marks results produced by
// the lexical fallback because the embedding backend was unreachable.
type SearchResult struct {
	Query    string
	Results  []rank.Result
	Degraded bool
}

// SearchOption configures a single search.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK    int
	filters index.Filters
}

// WithTopK overrides the result count for one search.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithFilter restricts results to chunks whose metadata field holds any of
// the values. Repeated calls on the same field accumulate values; calls on
// different fields combine with AND.
func WithFilter(field string, values ...string) SearchOption {
	return func(c *searchConfig) {
		if c.filters == nil {
			c.filters = index.Filters{}
		}
		c.filters[field] = append(c.filters[field], values...)
	}
}

// AddDocumentFromText chunks, embeds and indexes raw text. It returns the
// number of chunks written. Re-ingesting identical (source, content) fully
// replaces the prior chunks.
func (s *System) AddDocumentFromText(ctx context.Context, content, title, source, sourceType string) (int, error) {
	doc := document.FromText(content, title, source, sourceType)
	return s.addDocument(ctx, doc)
}

// AddDocumentFromFile normalizes a file by its extension and indexes it.
func (s *System) AddDocumentFromFile(ctx context.Context, path string) (int, error) {
	doc, err := s.processor.FromFile(path)
	if err != nil {
		return 0, err
	}
	return s.addDocument(ctx, doc)
}

func (s *System) addDocument(ctx context.Context, doc *document.Document) (int, error) {
	chunks := s.processor.Chunks(doc)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("document %q has no indexable content", doc.Title)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	embedCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	vectors, err := s.embedder.EmbedBatch(embedCtx, texts)
	if err != nil {
		// Ingestion without vectors would poison the index; defer instead.
		return 0, fmt.Errorf("embed document %q: %w", doc.Title, err)
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	addCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	written, err := s.index.Add(addCtx, doc, chunks)
	if err != nil {
		return 0, fmt.Errorf("index document %q: %w", doc.Title, err)
	}

	s.logger.Info("document indexed",
		"document_id", doc.ID,
		"title", doc.Title,
		"chunks", written)
	return written, nil
}

// Search embeds the query and returns ranked results. When the embedding
// backend is unavailable the search degrades to the index's lexical path
// and the result is flagged accordingly; no fabricated vectors, ever.
func (s *System) Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResult, error) {
	cfg := &searchConfig{topK: s.topK}
	for _, opt := range opts {
		opt(cfg)
	}

	embedCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var degraded bool
	vector, err := s.embedder.Embed(embedCtx, query)
	if err != nil {
		if !errors.Is(err, embed.ErrUnavailable) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		degraded = true
		vector = nil
		s.logger.Warn("embedding backend unavailable, using lexical search", "error", err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	candidates, err := s.index.Search(searchCtx, index.Query{
		Vector:  vector,
		Text:    query,
		TopK:    cfg.topK,
		Filters: cfg.filters,
	})
	if err != nil {
		if errors.Is(err, index.ErrUnavailable) {
			// Backend down: structured empty outcome, not a crash path.
			return &SearchResult{Query: query, Degraded: true}, nil
		}
		return nil, fmt.Errorf("search index: %w", err)
	}

	return &SearchResult{
		Query:    query,
		Results:  s.scorer.Rank(candidates, cfg.topK),
		Degraded: degraded,
	}, nil
}

// ContextForQuery searches and assembles a generation-ready context string
// within the token budget.
func (s *System) ContextForQuery(ctx context.Context, query string, budgetTokens int, opts ...SearchOption) (string, error) {
	res, err := s.Search(ctx, query, opts...)
	if err != nil {
		return "", err
	}
	if len(res.Results) == 0 {
		return "", nil
	}
	return s.assembler.Optimize(res.Results, budgetTokens), nil
}

// DeleteDocument removes a document and all of its chunks.
func (s *System) DeleteDocument(ctx context.Context, documentID string) error {
	delCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.index.Delete(delCtx, documentID)
}

// Stats reports index contents.
func (s *System) Stats(ctx context.Context) (index.Stats, error) {
	statsCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.index.Stats(statsCtx)
}

// Close flushes the embedding cache and releases the index.
func (s *System) Close() error {
	var errs []error
	if p, ok := s.embedder.(*embed.Provider); ok {
		if err := p.Cache().Save(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.index.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
