package document

import (
	"strings"
	"time"
)

// FromText wraps already-clean text in a Document. Empty sourceType
// defaults to "manual".
func FromText(content, title, source, sourceType string) *Document {
	if sourceType == "" {
		sourceType = SourceTypeManual
	}

	content = strings.TrimSpace(content)
	md := ExtractMetadata(content)
	md.DocumentType = TypePlaintext

	now := time.Now()
	return &Document{
		ID:          NewID(source, content),
		Title:       title,
		Content:     content,
		Source:      source,
		SourceType:  sourceType,
		CreatedAt:   now,
		LastUpdated: now,
		Metadata:    md,
	}
}
