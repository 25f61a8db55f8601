package index

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/sable-sec/intelrag/internal/document"
	"github.com/sable-sec/intelrag/internal/log"
)

const localCollection = "chunks"

// Local is the single-node VectorIndex backed by a persistent chromem-go
// collection. A sidecar registry file mirrors chunk content and metadata so
// lexical-fallback scans and document-level bookkeeping survive restarts.
//
// Local is safe for concurrent use.
type Local struct {
	dir       string
	dimension int
	logger    log.Logger
	state     atomic.Int32

	db  *chromem.DB
	col *chromem.Collection

	mu     sync.RWMutex
	chunks map[string]document.Chunk // chunk ID -> chunk, embedding omitted
}

// NewLocal creates a Local index storing data under dir. Open must be
// called before any other operation.
func NewLocal(dir string, dimension int, logger log.Logger) *Local {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Local{
		dir:       dir,
		dimension: dimension,
		logger:    logger,
		chunks:    make(map[string]document.Chunk),
	}
}

// Open initializes the persistent store and loads the chunk registry.
func (l *Local) Open(_ context.Context) error {
	if err := os.MkdirAll(l.dir, 0o750); err != nil {
		return fmt.Errorf("%w: create data dir: %v", ErrUnavailable, err)
	}
	db, err := chromem.NewPersistentDB(filepath.Join(l.dir, "vectors"), false)
	if err != nil {
		return fmt.Errorf("%w: open local store: %v", ErrUnavailable, err)
	}
	l.db = db
	l.state.Store(int32(StateConnected))

	col, err := db.GetOrCreateCollection(localCollection, nil, nil)
	if err != nil {
		l.state.Store(int32(StateUninitialized))
		return fmt.Errorf("%w: create collection: %v", ErrUnavailable, err)
	}
	l.col = col

	if err := l.loadRegistry(); err != nil {
		l.state.Store(int32(StateUninitialized))
		return err
	}

	l.state.Store(int32(StateReady))
	l.logger.Debug("local index ready", "dir", l.dir, "chunks", l.col.Count())
	return nil
}

// Add replaces any prior chunks of the document and writes the new ones.
// Chunks whose embedding does not match the configured dimension are
// skipped and counted against the return value, never against the batch.
func (l *Local) Add(ctx context.Context, doc *document.Document, chunks []document.Chunk) (int, error) {
	if l.currentState() != StateReady {
		return 0, ErrUnavailable
	}

	if err := l.Delete(ctx, doc.ID); err != nil {
		return 0, err
	}

	var accepted []chromem.Document
	var kept []document.Chunk
	for _, c := range chunks {
		if len(c.Embedding) != l.dimension {
			l.logger.Warn("skipping chunk with mismatched vector",
				"chunk_id", c.ID, "got", len(c.Embedding), "want", l.dimension)
			continue
		}
		accepted = append(accepted, chromem.Document{
			ID:        c.ID,
			Content:   c.Content,
			Embedding: c.Embedding,
			Metadata:  map[string]string{"document_id": c.DocumentID},
		})
		kept = append(kept, c)
	}
	if len(accepted) == 0 {
		return 0, nil
	}

	if err := l.col.AddDocuments(ctx, accepted, 1); err != nil {
		return 0, fmt.Errorf("%w: add chunks: %v", ErrUnavailable, err)
	}

	l.mu.Lock()
	for _, c := range kept {
		c.Embedding = nil // the vector lives in the collection only
		l.chunks[c.ID] = c
	}
	l.mu.Unlock()

	if err := l.saveRegistry(); err != nil {
		return len(kept), err
	}
	return len(kept), nil
}

// Search answers a top-K query. With a vector it queries the ANN structure;
// without one (embedding backend degraded) it falls back to an exact scan
// with lexical-overlap scoring. Filters apply before the top-K cut.
func (l *Local) Search(ctx context.Context, q Query) ([]Candidate, error) {
	if l.currentState() != StateReady {
		return nil, ErrUnavailable
	}
	if q.TopK < 1 {
		return nil, nil
	}

	if q.Vector == nil {
		return l.lexicalScan(q), nil
	}
	if len(q.Vector) != l.dimension {
		return nil, fmt.Errorf("%w: query has %d dims, want %d",
			ErrDimensionMismatch, len(q.Vector), l.dimension)
	}

	total := l.col.Count()
	if total == 0 {
		return nil, nil
	}

	// Filters must apply before the top-K cut, so widen the candidate set
	// to the whole collection when any filter is present.
	n := q.TopK
	if len(q.Filters) > 0 || n > total {
		n = total
	}

	results, err := l.col.QueryEmbedding(ctx, q.Vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", ErrUnavailable, err)
	}

	l.mu.RLock()
	candidates := make([]Candidate, 0, len(results))
	for _, r := range results {
		chunk, ok := l.chunks[r.ID]
		if !ok || !matchesFilters(chunk, q.Filters) {
			continue
		}
		candidates = append(candidates, Candidate{
			Chunk:      chunk,
			Similarity: float64(r.Similarity),
		})
	}
	l.mu.RUnlock()

	sortCandidates(candidates)
	if len(candidates) > q.TopK {
		candidates = candidates[:q.TopK]
	}
	return candidates, nil
}

// Delete removes every chunk belonging to the document.
func (l *Local) Delete(ctx context.Context, documentID string) error {
	if l.currentState() != StateReady {
		return ErrUnavailable
	}

	l.mu.Lock()
	var stale []string
	for id, c := range l.chunks {
		if c.DocumentID == documentID {
			stale = append(stale, id)
			delete(l.chunks, id)
		}
	}
	l.mu.Unlock()

	if len(stale) == 0 {
		return nil
	}
	if err := l.col.Delete(ctx, map[string]string{"document_id": documentID}, nil); err != nil {
		return fmt.Errorf("%w: delete document %s: %v", ErrUnavailable, documentID, err)
	}
	return l.saveRegistry()
}

// Stats reports collection size and distinct document count.
func (l *Local) Stats(_ context.Context) (Stats, error) {
	if l.currentState() != StateReady {
		return Stats{Backend: "local", State: l.currentState().String()}, ErrUnavailable
	}

	l.mu.RLock()
	docs := make(map[string]struct{}, len(l.chunks))
	for _, c := range l.chunks {
		docs[c.DocumentID] = struct{}{}
	}
	chunkCount := len(l.chunks)
	l.mu.RUnlock()

	return Stats{
		Backend:   "local",
		State:     l.currentState().String(),
		Chunks:    chunkCount,
		Documents: len(docs),
		Dimension: l.dimension,
	}, nil
}

// Close persists the registry and returns the index to uninitialized.
func (l *Local) Close() error {
	if l.currentState() != StateReady {
		return nil
	}
	err := l.saveRegistry()
	l.state.Store(int32(StateUninitialized))
	l.db = nil
	l.col = nil
	return err
}

func (l *Local) currentState() State {
	return State(l.state.Load())
}

// lexicalScan is the degraded-mode path: exact linear scan scoring each
// chunk by word overlap with the query. Lower precision than vector
// search, but always available.
func (l *Local) lexicalScan(q Query) []Candidate {
	queryWords := tokenize(q.Text)
	if len(queryWords) == 0 {
		return nil
	}

	l.mu.RLock()
	var candidates []Candidate
	for _, chunk := range l.chunks {
		if !matchesFilters(chunk, q.Filters) {
			continue
		}
		score := overlapScore(queryWords, tokenize(chunk.Content))
		if score <= 0 {
			continue
		}
		candidates = append(candidates, Candidate{Chunk: chunk, Similarity: score})
	}
	l.mu.RUnlock()

	sortCandidates(candidates)
	if len(candidates) > q.TopK {
		candidates = candidates[:q.TopK]
	}
	return candidates
}

// sortCandidates orders by similarity descending, then chunk ID for a
// stable total order.
func sortCandidates(cs []Candidate) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Similarity != cs[j].Similarity {
			return cs[i].Similarity > cs[j].Similarity
		}
		return cs[i].Chunk.ID < cs[j].Chunk.ID
	})
}

func tokenize(s string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?\"'()[]")
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

// overlapScore is the fraction of query words present in the content.
func overlapScore(query, content map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	hits := 0
	for w := range query {
		if _, ok := content[w]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}

// Registry persistence. The registry mirrors chunk content and metadata
// next to the vector store so scans and stats work across restarts.

func (l *Local) registryPath() string {
	return filepath.Join(l.dir, "registry.json")
}

func (l *Local) loadRegistry() error {
	raw, err := os.ReadFile(l.registryPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read registry: %w", err)
	}

	chunks := make(map[string]document.Chunk)
	if err := json.Unmarshal(raw, &chunks); err != nil {
		return fmt.Errorf("decode registry: %w", err)
	}

	l.mu.Lock()
	l.chunks = chunks
	l.mu.Unlock()
	return nil
}

func (l *Local) saveRegistry() error {
	l.mu.RLock()
	raw, err := json.Marshal(l.chunks)
	l.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}

	tmp := fmt.Sprintf("%s.tmp.%d", l.registryPath(), time.Now().UnixNano())
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	if err := os.Rename(tmp, l.registryPath()); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return fmt.Errorf("replace registry: %w", err)
	}
	return nil
}
