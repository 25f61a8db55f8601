package document

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var (
	mdTitle      = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	mdCodeFence  = regexp.MustCompile("(?s)```.*?```")
	mdInlineCode = regexp.MustCompile("`[^`]+`")
	mdImage      = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	mdLink       = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
)

// FromMarkdown normalizes markdown content into a Document. The title comes
// from the first level-1 heading, falling back to the source's base name.
// Metadata is extracted from the raw content before code blocks and link
// markup are stripped, so identifiers inside fences still count.
func FromMarkdown(content, source string) *Document {
	title := filepath.Base(source)
	if m := mdTitle.FindStringSubmatch(content); m != nil {
		title = strings.TrimSpace(m[1])
	}

	md := ExtractMetadata(content)
	md.DocumentType = TypeMarkdown

	clean := mdCodeFence.ReplaceAllString(content, "")
	clean = mdInlineCode.ReplaceAllString(clean, "")
	clean = mdImage.ReplaceAllString(clean, "")
	clean = mdLink.ReplaceAllString(clean, "$1")
	clean = strings.TrimSpace(clean)

	now := time.Now()
	return &Document{
		ID:          NewID(source, clean),
		Title:       title,
		Content:     clean,
		Source:      source,
		SourceType:  SourceTypeManual,
		CreatedAt:   now,
		LastUpdated: now,
		Metadata:    md,
	}
}
