package embed

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// mockModel implements Model for testing.
type mockModel struct {
	dimension  int
	embedErr   error
	callCount  int // model invocations, not per-text
	textsSeen  []string
	shortByOne bool // return vectors one element short
}

func (m *mockModel) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (m *mockModel) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.callCount++
	m.textsSeen = append(m.textsSeen, texts...)
	if m.embedErr != nil {
		return nil, m.embedErr
	}

	dim := m.dimension
	if m.shortByOne {
		dim--
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, dim)
		// Deterministic per-text marker so tests can tell vectors apart.
		v[0] = float32(len(text))
		out[i] = v
	}
	return out, nil
}

func (m *mockModel) Dimension() int { return m.dimension }
func (m *mockModel) Name() string   { return "mock-model" }

func newTestProvider(t *testing.T, model *mockModel) *Provider {
	t.Helper()
	cache := NewCache(t.TempDir(), model.Name())
	return NewProvider(model, cache, 0, nil)
}

func TestEmbedCachesResult(t *testing.T) {
	model := &mockModel{dimension: 4}
	p := newTestProvider(t, model)

	first, err := p.Embed(context.Background(), "some text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	second, err := p.Embed(context.Background(), "some text")
	if err != nil {
		t.Fatalf("Embed (cached): %v", err)
	}

	if model.callCount != 1 {
		t.Errorf("model called %d times, want 1", model.callCount)
	}
	if len(first) != 4 || first[0] != second[0] {
		t.Errorf("cached vector differs from original")
	}
}

func TestEmbedEmptyText(t *testing.T) {
	p := newTestProvider(t, &mockModel{dimension: 4})

	if _, err := p.Embed(context.Background(), ""); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
}

func TestEmbedDimensionMismatch(t *testing.T) {
	model := &mockModel{dimension: 4, shortByOne: true}
	p := newTestProvider(t, model)

	_, err := p.Embed(context.Background(), "text")
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if p.Cache().Len() != 0 {
		t.Error("mismatched vector was cached")
	}
}

func TestEmbedUnavailablePropagates(t *testing.T) {
	model := &mockModel{dimension: 4, embedErr: fmt.Errorf("%w: dial refused", ErrUnavailable)}
	p := newTestProvider(t, model)

	if _, err := p.Embed(context.Background(), "text"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestEmbedBatchOnlyMissesHitModel(t *testing.T) {
	model := &mockModel{dimension: 4}
	p := newTestProvider(t, model)

	if _, err := p.Embed(context.Background(), "cached text"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	model.textsSeen = nil

	vectors, err := p.EmbedBatch(context.Background(), []string{"cached text", "new text"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("got %d vectors, want 2", len(vectors))
	}
	if len(model.textsSeen) != 1 || model.textsSeen[0] != "new text" {
		t.Errorf("model saw %v, want only the cache miss", model.textsSeen)
	}
	// Order of results must follow input order, not cache-hit order.
	if vectors[0][0] != float32(len("cached text")) || vectors[1][0] != float32(len("new text")) {
		t.Error("batch results out of input order")
	}
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	p := newTestProvider(t, &mockModel{dimension: 4})

	vectors, err := p.EmbedBatch(context.Background(), nil)
	if err != nil || vectors != nil {
		t.Errorf("EmbedBatch(nil) = %v, %v; want nil, nil", vectors, err)
	}
}

func TestEmbedBatchAllCached(t *testing.T) {
	model := &mockModel{dimension: 4}
	p := newTestProvider(t, model)

	texts := []string{"alpha", "beta"}
	if _, err := p.EmbedBatch(context.Background(), texts); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	calls := model.callCount

	if _, err := p.EmbedBatch(context.Background(), texts); err != nil {
		t.Fatalf("EmbedBatch (cached): %v", err)
	}
	if model.callCount != calls {
		t.Error("model invoked despite full cache coverage")
	}
}

func TestEmbedCanceledContext(t *testing.T) {
	p := newTestProvider(t, &mockModel{dimension: 4})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Embed(ctx, "text"); err == nil {
		t.Error("expected error for canceled context")
	}
}
