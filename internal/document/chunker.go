package document

import (
	"regexp"
	"strings"
)

var (
	paragraphSep  = regexp.MustCompile(`\n\s*\n`)
	sentenceTerms = regexp.MustCompile(`[.!?]+`)
)

// Chunker splits text into bounded pieces along semantic boundaries.
// Splitting is deterministic: the same input always yields the same chunks.
// Chunks never share text; the packer aligns them to paragraph and sentence
// boundaries, so joining them reconstructs the input modulo separator
// normalization.
type Chunker struct {
	size int
}

// NewChunker creates a Chunker with the given maximum chunk size in
// characters.
func NewChunker(size int) *Chunker {
	return &Chunker{size: size}
}

// Size returns the maximum chunk size in characters.
func (c *Chunker) Size() int { return c.size }

// Split divides content into chunks no longer than the configured size.
// Paragraphs (blank-line separated) are packed greedily left to right; a
// paragraph longer than the size is further split on sentence terminators.
// A chunk exceeds the size only when a single sentence alone does, since a
// sentence is never split. Empty input yields no chunks.
func (c *Chunker) Split(content string) []string {
	var chunks []string
	var buf strings.Builder

	flush := func() {
		s := strings.TrimSpace(buf.String())
		if s != "" {
			chunks = append(chunks, s)
		}
		buf.Reset()
	}

	for _, para := range paragraphSep.Split(content, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if len(para) > c.size {
			// Oversized paragraph: pack at sentence granularity.
			for _, sentence := range splitSentences(para) {
				if buf.Len() > 0 && buf.Len()+len(sentence)+1 > c.size {
					flush()
				}
				if buf.Len() > 0 {
					buf.WriteByte(' ')
				}
				buf.WriteString(sentence)
			}
			continue
		}

		if buf.Len() > 0 && buf.Len()+len(para)+2 > c.size {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(para)
	}

	flush()
	return chunks
}

// splitSentences breaks a paragraph on sentence terminators, trimming
// whitespace and dropping empty fragments. Terminator characters are not
// preserved; chunk boundaries matter more than punctuation fidelity.
func splitSentences(paragraph string) []string {
	parts := sentenceTerms.Split(paragraph, -1)
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			sentences = append(sentences, p)
		}
	}
	return sentences
}
