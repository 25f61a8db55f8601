package document

import (
	"regexp"
	"sort"
	"strings"
)

var (
	techniquePattern = regexp.MustCompile(`(?i)\bT\d{4}(?:\.\d{3})?\b`)
	cvePattern       = regexp.MustCompile(`(?i)\bCVE-\d{4}-\d{4,}\b`)
	urlPattern       = regexp.MustCompile(`https?://[^\s<>"')\]]+`)
)

// Recognized security frameworks and the patterns that detect a mention.
// Map iteration order is irrelevant here because results are sorted.
var frameworkPatterns = map[string]*regexp.Regexp{
	"MITRE_ATTACK": regexp.MustCompile(`(?i)\b(?:MITRE|ATT&CK|ATTACK)\b`),
	"NIST":         regexp.MustCompile(`(?i)\bNIST\b`),
	"OWASP":        regexp.MustCompile(`(?i)\bOWASP\b`),
	"CIS":          regexp.MustCompile(`(?i)\bCIS\b`),
}

// ExtractMetadata scans content for domain identifiers and basic counts.
// It is a pure function: no side effects, and repeated calls on the same
// content return identical results. Identifier lists are deduplicated,
// uppercased where the identifier scheme is case-insensitive, and sorted.
func ExtractMetadata(content string) Metadata {
	md := Metadata{
		WordCount: len(strings.Fields(content)),
		CharCount: len(content),
	}

	md.Techniques = dedupeUpper(techniquePattern.FindAllString(content, -1))
	md.CVEs = dedupeUpper(cvePattern.FindAllString(content, -1))

	for name, pattern := range frameworkPatterns {
		if pattern.MatchString(content) {
			md.Frameworks = append(md.Frameworks, name)
		}
	}
	sort.Strings(md.Frameworks)

	urls := urlPattern.FindAllString(content, -1)
	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		u = strings.TrimRight(u, ".,;")
		if _, ok := seen[u]; !ok {
			seen[u] = struct{}{}
			md.URLs = append(md.URLs, u)
		}
	}
	sort.Strings(md.URLs)

	return md
}

func dedupeUpper(matches []string) []string {
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.ToUpper(m)
		if _, ok := seen[m]; !ok {
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out
}
