package assemble

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sable-sec/intelrag/internal/rank"
)

// DefaultCharsPerToken is the fixed token estimation ratio.
const DefaultCharsPerToken = 4

// ellipsisThreshold is the minimum remaining budget worth filling with a
// truncated paragraph. Anything shorter gets dropped instead.
const ellipsisThreshold = 100

// partSeparator joins context parts. Its length counts against the budget
// like any other output characters.
const partSeparator = "\n\n---\n\n"

// paragraphSeparator splits and rejoins paragraphs during compression.
const paragraphSeparator = "\n\n"

// Keywords that mark a paragraph as worth keeping under compression.
var securityKeywords = []string{
	"mitre", "attack", "technique", "detection", "exploit", "vulnerability",
}

// Assembler builds and shrinks context strings.
type Assembler struct {
	charsPerToken int
}

// New creates an Assembler. charsPerToken below 1 falls back to the
// default ratio.
func New(charsPerToken int) *Assembler {
	if charsPerToken < 1 {
		charsPerToken = DefaultCharsPerToken
	}
	return &Assembler{charsPerToken: charsPerToken}
}

// Optimize greedily appends results in rank order, each prefixed with its
// source attribution, until the next addition would push the output past
// budgetTokens. The check covers the joining separator, so the estimated
// token count of the full output never exceeds the budget. It stops early
// rather than truncating mid-chunk.
func (a *Assembler) Optimize(results []rank.Result, budgetTokens int) string {
	if budgetTokens < 1 {
		return ""
	}

	var parts []string
	chars := 0
	for _, r := range results {
		part := attribution(r) + "\n" + r.Chunk.Content
		next := chars + len(part)
		if len(parts) > 0 {
			next += len(partSeparator)
		}
		if a.estimateTokens(next) > budgetTokens {
			break
		}
		parts = append(parts, part)
		chars = next
	}
	return strings.Join(parts, partSeparator)
}

// Compress shrinks a pre-built context to at most targetLength characters
// plus a bounded ellipsis marker. Paragraphs are kept highest keyword
// score first; the last paragraph is truncated only when at least 100
// characters of budget remain, otherwise dropped.
func (a *Assembler) Compress(context string, targetLength int) string {
	if len(context) <= targetLength {
		return context
	}
	if targetLength < 1 {
		return ""
	}

	paragraphs := strings.Split(context, paragraphSeparator)

	type scored struct {
		score int
		pos   int
		text  string
	}
	sections := make([]scored, len(paragraphs))
	for i, p := range paragraphs {
		lower := strings.ToLower(p)
		score := 0
		for _, kw := range securityKeywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		sections[i] = scored{score: score, pos: i, text: p}
	}

	// Highest keyword density first; original position as a deterministic
	// tie-break.
	sort.Slice(sections, func(i, j int) bool {
		if sections[i].score != sections[j].score {
			return sections[i].score > sections[j].score
		}
		return sections[i].pos < sections[j].pos
	})

	var kept []string
	used := 0
	for _, s := range sections {
		sep := 0
		if len(kept) > 0 {
			sep = len(paragraphSeparator)
		}
		if used+sep+len(s.text) <= targetLength {
			kept = append(kept, s.text)
			used += sep + len(s.text)
			continue
		}
		if remaining := targetLength - used - sep; remaining > ellipsisThreshold {
			kept = append(kept, s.text[:remaining]+"...")
		}
		break
	}
	return strings.Join(kept, paragraphSeparator)
}

// estimateTokens converts a character count to the token estimate used for
// budget checks.
func (a *Assembler) estimateTokens(chars int) int {
	return chars / a.charsPerToken
}

// attribution formats the source prefix for one result.
func attribution(r rank.Result) string {
	info := fmt.Sprintf("[Source: %s]", r.Chunk.Metadata.Source)
	if len(r.Chunk.Metadata.Techniques) > 0 {
		info += fmt.Sprintf(" [MITRE: %s]", strings.Join(r.Chunk.Metadata.Techniques, ", "))
	}
	return info
}
