package document

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Source type tags. A document's source type feeds the authority scoring
// table, so the set here must stay aligned with the ranking defaults.
const (
	SourceTypeAcademic = "academic"
	SourceTypeCTI      = "cti"
	SourceTypeGitHub   = "github"
	SourceTypeBlog     = "blog"
	SourceTypeManual   = "manual"
)

// Document type tags recorded in metadata by the format adapters.
const (
	TypeMarkdown  = "markdown"
	TypeHTML      = "html"
	TypePDF       = "pdf"
	TypePlaintext = "plaintext"
)

// Document is a normalized unit of ingested content. Once indexed it is
// immutable; re-ingesting content with the same ID replaces all of its
// chunks atomically from the caller's point of view.
type Document struct {
	ID             string    // sha256(source, content), truncated
	Title          string    //
	Content        string    // normalized text, format noise removed
	Source         string    // URI or file path
	SourceType     string    // one of the SourceType* constants
	AuthorityScore float64   // 0.0-1.0, set by caller or defaulted
	CreatedAt      time.Time //
	LastUpdated    time.Time //
	Metadata       Metadata  //
}

// Metadata holds the structured fields extracted from document content.
// Extraction is idempotent: the same content always yields the same values.
type Metadata struct {
	Techniques   []string `json:"techniques"`    // ATT&CK technique IDs, e.g. T1003.001
	CVEs         []string `json:"cves"`          // CVE identifiers
	Frameworks   []string `json:"frameworks"`    // recognized framework names
	URLs         []string `json:"urls"`          // referenced URLs
	WordCount    int      `json:"word_count"`    //
	CharCount    int      `json:"char_count"`    //
	DocumentType string   `json:"document_type"` // one of the Type* constants
}

// Chunk is a bounded-size slice of a document's text, the unit of embedding
// and retrieval. Chunks never outlive their document: deleting a document
// deletes all of its chunks.
type Chunk struct {
	ID         string        // "<document ID>-NNNN"
	DocumentID string        //
	Index      int           // 0-based, contiguous per document
	Content    string        //
	Metadata   ChunkMetadata //
	Embedding  []float32     // nil until embedded
	CreatedAt  time.Time     //
}

// ChunkMetadata is the document metadata inherited by a chunk plus
// chunk-local derived fields.
type ChunkMetadata struct {
	Metadata

	DocumentTitle  string  `json:"document_title"`
	Source         string  `json:"source"`
	SourceType     string  `json:"source_type"`
	ChunkWordCount int     `json:"chunk_word_count"`
	ChunkCharCount int     `json:"chunk_char_count"`
	Position       float64 `json:"position"` // relative position in document, 0.0-1.0
}

// NewID derives a document ID from its source and content. Identical
// (source, content) pairs always map to the same ID, which is what makes
// re-ingestion idempotent.
func NewID(source, content string) string {
	h := sha256.New()
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// ChunkID builds the identifier for the chunk at the given ordinal.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s-%04d", documentID, index)
}
