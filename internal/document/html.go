package document

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

var multiBlank = regexp.MustCompile(`\n{3,}`)

// FromHTML extracts readable text from an HTML page and wraps it in a
// Document. Readability extraction is tried first; pages it cannot parse
// (fragments, pages without an article body) fall back to a plain
// tag-stripping pass. A page that yields no text at all is an error, so a
// corrupt file skips only itself during batch ingestion.
func FromHTML(content, source string) (*Document, error) {
	title, text := extractReadable(content, source)
	if text == "" {
		var err error
		title, text, err = stripTags(content)
		if err != nil {
			return nil, fmt.Errorf("parse html %s: %w", source, err)
		}
	}
	if text == "" {
		return nil, fmt.Errorf("no readable text in %s", source)
	}
	if title == "" {
		title = filepath.Base(source)
	}

	md := ExtractMetadata(text)
	md.DocumentType = TypeHTML

	now := time.Now()
	return &Document{
		ID:          NewID(source, text),
		Title:       title,
		Content:     text,
		Source:      source,
		SourceType:  SourceTypeManual,
		CreatedAt:   now,
		LastUpdated: now,
		Metadata:    md,
	}, nil
}

func extractReadable(content, source string) (title, text string) {
	pageURL, err := url.Parse(source)
	if err != nil {
		pageURL = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(content), pageURL)
	if err != nil {
		return "", ""
	}
	return strings.TrimSpace(article.Title), normalizeWhitespace(article.TextContent)
}

func stripTags(content string) (title, text string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", "", err
	}
	title = strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find("script, style, noscript").Remove()
	return title, normalizeWhitespace(doc.Text()), nil
}

// normalizeWhitespace trims each line and collapses runs of blank lines so
// paragraph boundaries survive for the chunker.
func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	out := strings.Join(lines, "\n")
	out = multiBlank.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
