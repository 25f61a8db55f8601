package embed

import (
	"context"
	"errors"
)

// Sentinel errors returned by models and the provider.
var (
	// ErrUnavailable indicates the embedding backend cannot be reached.
	// Callers decide whether to abort or continue in degraded mode.
	ErrUnavailable = errors.New("embedding backend unavailable")

	// ErrDimensionMismatch indicates a model returned a vector whose length
	// differs from the configured dimension. Fatal for the affected text
	// only, not the whole batch.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmptyInput indicates there was no text to embed.
	ErrEmptyInput = errors.New("empty embedding input")
)

// Model is the minimal surface an embedding backend must provide.
// Implementations must be deterministic for a fixed model version and safe
// for concurrent use.
type Model interface {
	// Embed returns the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension is the fixed output vector length.
	Dimension() int

	// Name identifies the model, used to key the on-disk cache.
	Name() string
}
