package index

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sable-sec/intelrag/internal/document"
)

const testDim = 3

func testDoc(id, sourceType string) *document.Document {
	return &document.Document{
		ID:         id,
		Title:      "test document " + id,
		Source:     "memory://" + id,
		SourceType: sourceType,
		CreatedAt:  time.Now(),
	}
}

func testChunk(docID string, idx int, content string, vec []float32, sourceType string) document.Chunk {
	return document.Chunk{
		ID:         document.ChunkID(docID, idx),
		DocumentID: docID,
		Index:      idx,
		Content:    content,
		Embedding:  vec,
		CreatedAt:  time.Now(),
		Metadata: document.ChunkMetadata{
			SourceType: sourceType,
		},
	}
}

func openLocal(t *testing.T) *Local {
	t.Helper()
	l := NewLocal(t.TempDir(), testDim, nil)
	if err := l.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() }) //nolint:errcheck
	return l
}

func TestLocalOperationsRequireOpen(t *testing.T) {
	l := NewLocal(t.TempDir(), testDim, nil)
	ctx := context.Background()

	if _, err := l.Add(ctx, testDoc("d1", "manual"), nil); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Add before Open: %v", err)
	}
	if _, err := l.Search(ctx, Query{TopK: 1}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Search before Open: %v", err)
	}
	if err := l.Delete(ctx, "d1"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Delete before Open: %v", err)
	}
	if _, err := l.Stats(ctx); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Stats before Open: %v", err)
	}
}

func TestLocalAddAndSearch(t *testing.T) {
	l := openLocal(t)
	ctx := context.Background()

	doc := testDoc("d1", "manual")
	written, err := l.Add(ctx, doc, []document.Chunk{
		testChunk("d1", 0, "credential dumping on windows", []float32{1, 0, 0}, "manual"),
		testChunk("d1", 1, "lateral movement over smb", []float32{0, 1, 0}, "manual"),
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if written != 2 {
		t.Fatalf("written = %d, want 2", written)
	}

	candidates, err := l.Search(ctx, Query{Vector: []float32{1, 0, 0}, TopK: 1})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(candidates))
	}
	if candidates[0].Chunk.ID != document.ChunkID("d1", 0) {
		t.Errorf("top candidate = %q", candidates[0].Chunk.ID)
	}
	if candidates[0].Similarity < 0.99 {
		t.Errorf("similarity = %f, want ~1.0", candidates[0].Similarity)
	}
	if candidates[0].Chunk.Embedding != nil {
		t.Error("candidate carries the stored vector")
	}
}

func TestLocalReAddReplacesChunks(t *testing.T) {
	l := openLocal(t)
	ctx := context.Background()

	doc := testDoc("d1", "manual")
	chunks := []document.Chunk{
		testChunk("d1", 0, "first version", []float32{1, 0, 0}, "manual"),
		testChunk("d1", 1, "first version part two", []float32{0, 1, 0}, "manual"),
	}
	if _, err := l.Add(ctx, doc, chunks); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if _, err := l.Add(ctx, doc, chunks[:1]); err != nil {
		t.Fatalf("second Add: %v", err)
	}

	stats, err := l.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Chunks != 1 {
		t.Errorf("Chunks = %d, want 1 after replacement", stats.Chunks)
	}
	if stats.Documents != 1 {
		t.Errorf("Documents = %d, want 1", stats.Documents)
	}
}

func TestLocalDelete(t *testing.T) {
	l := openLocal(t)
	ctx := context.Background()

	if _, err := l.Add(ctx, testDoc("d1", "manual"), []document.Chunk{
		testChunk("d1", 0, "content", []float32{1, 0, 0}, "manual"),
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := l.Delete(ctx, "d1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	stats, _ := l.Stats(ctx)
	if stats.Chunks != 0 || stats.Documents != 0 {
		t.Errorf("stats after delete = %+v", stats)
	}

	// Deleting an absent document is not an error.
	if err := l.Delete(ctx, "never-existed"); err != nil {
		t.Errorf("Delete absent document: %v", err)
	}
}

func TestLocalFiltersBeforeTopK(t *testing.T) {
	l := openLocal(t)
	ctx := context.Background()

	// The closest chunk is CTI; filtering on manual must still return the
	// manual chunk rather than an empty cut.
	if _, err := l.Add(ctx, testDoc("d1", "cti"), []document.Chunk{
		testChunk("d1", 0, "closest but wrong type", []float32{1, 0, 0}, "cti"),
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Add(ctx, testDoc("d2", "manual"), []document.Chunk{
		testChunk("d2", 0, "further but right type", []float32{0.5, 0.5, 0}, "manual"),
	}); err != nil {
		t.Fatal(err)
	}

	candidates, err := l.Search(ctx, Query{
		Vector:  []float32{1, 0, 0},
		TopK:    1,
		Filters: Filters{"source_type": {"manual"}},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(candidates))
	}
	if candidates[0].Chunk.DocumentID != "d2" {
		t.Errorf("filtered search returned %q", candidates[0].Chunk.ID)
	}
}

func TestLocalLexicalFallback(t *testing.T) {
	l := openLocal(t)
	ctx := context.Background()

	if _, err := l.Add(ctx, testDoc("d1", "manual"), []document.Chunk{
		testChunk("d1", 0, "kerberoasting abuses service tickets", []float32{1, 0, 0}, "manual"),
		testChunk("d1", 1, "phishing delivers the initial payload", []float32{0, 1, 0}, "manual"),
	}); err != nil {
		t.Fatal(err)
	}

	// No vector: degraded mode, lexical overlap only.
	candidates, err := l.Search(ctx, Query{Text: "kerberoasting service tickets", TopK: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(candidates) == 0 {
		t.Fatal("lexical fallback returned nothing")
	}
	if candidates[0].Chunk.ID != document.ChunkID("d1", 0) {
		t.Errorf("top lexical candidate = %q", candidates[0].Chunk.ID)
	}
}

func TestLocalSkipsMismatchedVectors(t *testing.T) {
	l := openLocal(t)
	ctx := context.Background()

	written, err := l.Add(ctx, testDoc("d1", "manual"), []document.Chunk{
		testChunk("d1", 0, "good vector", []float32{1, 0, 0}, "manual"),
		testChunk("d1", 1, "bad vector", []float32{1, 0}, "manual"),
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if written != 1 {
		t.Errorf("written = %d, want 1 (mismatched chunk skipped)", written)
	}
}

func TestLocalQueryDimensionMismatch(t *testing.T) {
	l := openLocal(t)

	if _, err := l.Add(context.Background(), testDoc("d1", "manual"), []document.Chunk{
		testChunk("d1", 0, "content", []float32{1, 0, 0}, "manual"),
	}); err != nil {
		t.Fatal(err)
	}

	_, err := l.Search(context.Background(), Query{Vector: []float32{1, 0}, TopK: 1})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestLocalSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	l := NewLocal(dir, testDim, nil)
	if err := l.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := l.Add(ctx, testDoc("d1", "manual"), []document.Chunk{
		testChunk("d1", 0, "persistent content", []float32{1, 0, 0}, "manual"),
	}); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := NewLocal(dir, testDim, nil)
	if err := reopened.Open(ctx); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close() //nolint:errcheck

	stats, err := reopened.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Chunks != 1 || stats.Documents != 1 {
		t.Errorf("stats after reopen = %+v", stats)
	}

	candidates, err := reopened.Search(ctx, Query{Vector: []float32{1, 0, 0}, TopK: 1})
	if err != nil {
		t.Fatalf("Search after reopen: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Chunk.Content != "persistent content" {
		t.Errorf("unexpected candidates after reopen: %+v", candidates)
	}
}

func TestLocalEmptyIndexSearch(t *testing.T) {
	l := openLocal(t)

	candidates, err := l.Search(context.Background(), Query{Vector: []float32{1, 0, 0}, TopK: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("empty index returned %d candidates", len(candidates))
	}
}
