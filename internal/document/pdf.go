package document

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// FromPDF extracts plain text from a PDF file and wraps it in a Document.
// The title is the file name without extension. Corrupt or empty PDFs
// return an error so batch ingestion can skip just that file.
func FromPDF(path string) (*Document, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	r, err := reader.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extract pdf text %s: %w", path, err)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf text %s: %w", path, err)
	}

	text := normalizeWhitespace(string(raw))
	if text == "" {
		return nil, fmt.Errorf("no extractable text in %s", path)
	}

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	md := ExtractMetadata(text)
	md.DocumentType = TypePDF

	now := time.Now()
	return &Document{
		ID:          NewID(path, text),
		Title:       title,
		Content:     text,
		Source:      path,
		SourceType:  SourceTypeManual,
		CreatedAt:   now,
		LastUpdated: now,
		Metadata:    md,
	}, nil
}
