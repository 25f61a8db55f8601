package document

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sable-sec/intelrag/internal/log"
)

// Processor turns raw input into Documents and Documents into Chunks.
type Processor struct {
	chunker *Chunker
	logger  log.Logger
}

// NewProcessor creates a Processor with the given chunker.
func NewProcessor(chunker *Chunker, logger log.Logger) *Processor {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Processor{chunker: chunker, logger: logger}
}

// FromFile reads a file and normalizes it based on its extension.
// Unknown extensions are treated as plain text.
func (p *Processor) FromFile(path string) (*Document, error) {
	ext := strings.ToLower(filepath.Ext(path))

	if ext == ".pdf" {
		return FromPDF(path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	switch ext {
	case ".md", ".markdown":
		return FromMarkdown(string(raw), path), nil
	case ".html", ".htm":
		return FromHTML(string(raw), path)
	default:
		title := strings.TrimSuffix(filepath.Base(path), ext)
		return FromText(string(raw), title, path, SourceTypeManual), nil
	}
}

// Chunks splits a document's content and materializes one Chunk per piece.
// Chunk indices form a contiguous 0-based sequence and every chunk inherits
// the document's metadata alongside its own derived counts and relative
// position.
func (p *Processor) Chunks(doc *Document) []Chunk {
	pieces := p.chunker.Split(doc.Content)
	if len(pieces) == 0 {
		return nil
	}

	now := time.Now()
	chunks := make([]Chunk, len(pieces))
	for i, text := range pieces {
		chunks[i] = Chunk{
			ID:         ChunkID(doc.ID, i),
			DocumentID: doc.ID,
			Index:      i,
			Content:    text,
			CreatedAt:  now,
			Metadata: ChunkMetadata{
				Metadata:       doc.Metadata,
				DocumentTitle:  doc.Title,
				Source:         doc.Source,
				SourceType:     doc.SourceType,
				ChunkWordCount: len(strings.Fields(text)),
				ChunkCharCount: len(text),
				Position:       float64(i) / float64(len(pieces)),
			},
		}
	}

	p.logger.Debug("document chunked",
		"document_id", doc.ID,
		"chunks", len(chunks),
		"chunk_size", p.chunker.Size())

	return chunks
}
