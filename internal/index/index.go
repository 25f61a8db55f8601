package index

import (
	"context"
	"errors"

	"github.com/sable-sec/intelrag/internal/document"
)

// Sentinel errors shared by both backends.
var (
	// ErrUnavailable is returned when the backend cannot be reached or the
	// index is not in the ready state.
	ErrUnavailable = errors.New("index backend unavailable")

	// ErrDimensionMismatch is returned for a chunk whose embedding length
	// differs from the index's configured dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// State describes where an index is in its lifecycle.
type State int32

const (
	StateUninitialized State = iota
	StateConnected
	StateReady
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// Filters restrict a search to chunks whose metadata field matches any of
// the listed values. Multiple keys combine with AND, values within a key
// with OR. Filterable fields: source_type, document_id, frameworks,
// techniques, cves.
type Filters map[string][]string

// Query is one similarity search. Vector may be nil when the embedding
// backend is degraded; backends then fall back to lexical matching only.
type Query struct {
	Vector  []float32
	Text    string
	TopK    int
	Filters Filters
}

// Candidate is a raw search hit: the stored chunk (without its vector) and
// the backend-reported similarity. Score fusion happens downstream.
type Candidate struct {
	Chunk      document.Chunk
	Similarity float64
}

// Stats summarizes index contents.
type Stats struct {
	Backend   string `json:"backend"`
	State     string `json:"state"`
	Chunks    int    `json:"chunks"`
	Documents int    `json:"documents"`
	Dimension int    `json:"dimension"`
}

// VectorIndex is the capability set both backends provide. Callers select
// a backend at construction time and never branch on its type afterwards.
type VectorIndex interface {
	// Open connects to the backend and creates the schema, moving the
	// index into the ready state.
	Open(ctx context.Context) error

	// Add replaces the document's prior chunks with the given ones and
	// returns how many were written. Chunks with a mismatched embedding
	// dimension are skipped, not fatal to the rest.
	Add(ctx context.Context, doc *document.Document, chunks []document.Chunk) (int, error)

	// Search returns up to TopK candidates matching the query, filters
	// applied before the top-K cut.
	Search(ctx context.Context, q Query) ([]Candidate, error)

	// Delete removes a document and all of its chunks.
	Delete(ctx context.Context, documentID string) error

	// Stats reports index contents.
	Stats(ctx context.Context) (Stats, error)

	// Close releases backend resources. The index returns to the
	// uninitialized state.
	Close() error
}

// matchesFilters reports whether a chunk satisfies every filter key.
func matchesFilters(c document.Chunk, f Filters) bool {
	for key, accepted := range f {
		if len(accepted) == 0 {
			continue
		}
		var present []string
		switch key {
		case "document_id":
			present = []string{c.DocumentID}
		case "source_type":
			present = []string{c.Metadata.SourceType}
		case "document_type":
			present = []string{c.Metadata.DocumentType}
		case "frameworks":
			present = c.Metadata.Frameworks
		case "techniques":
			present = c.Metadata.Techniques
		case "cves":
			present = c.Metadata.CVEs
		default:
			return false
		}
		if !anyOverlap(present, accepted) {
			return false
		}
	}
	return true
}

func anyOverlap(present, accepted []string) bool {
	for _, p := range present {
		for _, a := range accepted {
			if p == a {
				return true
			}
		}
	}
	return false
}
