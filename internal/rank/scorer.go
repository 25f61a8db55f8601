package rank

import (
	"sort"
	"time"

	"github.com/sable-sec/intelrag/internal/document"
	"github.com/sable-sec/intelrag/internal/index"
)

// Weights control how the three signals combine. They need not sum to 1.
type Weights struct {
	Similarity float64
	Authority  float64
	Temporal   float64
}

// DefaultWeights is the tuned production policy.
var DefaultWeights = Weights{Similarity: 0.5, Authority: 0.3, Temporal: 0.2}

// Base credibility per source type, before the 0.4 weighting.
var sourceCredibility = map[string]float64{
	document.SourceTypeAcademic: 0.9,
	document.SourceTypeCTI:      0.8,
	document.SourceTypeGitHub:   0.7,
	document.SourceTypeBlog:     0.6,
	document.SourceTypeManual:   0.5,
}

// Result wraps a retrieved chunk with its score breakdown. Results are
// ephemeral and never persisted.
type Result struct {
	Chunk      document.Chunk
	Similarity float64
	Authority  float64
	Temporal   float64
	Combined   float64
	Rank       int // 1-based, assigned after truncation
}

// Scorer ranks index candidates. The zero value is not usable; construct
// with New.
type Scorer struct {
	weights   Weights
	threshold float64
	now       func() time.Time
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithWeights overrides the default fusion weights.
func WithWeights(w Weights) Option {
	return func(s *Scorer) { s.weights = w }
}

// WithThreshold sets the minimum similarity a candidate needs to be ranked
// at all. The threshold applies before ranking and truncation, so it
// interacts predictably with top-K.
func WithThreshold(t float64) Option {
	return func(s *Scorer) { s.threshold = t }
}

// withClock fixes the scorer's notion of now. Tests only.
func withClock(now func() time.Time) Option {
	return func(s *Scorer) { s.now = now }
}

// New creates a Scorer with the default weights and no threshold.
func New(opts ...Option) *Scorer {
	s := &Scorer{
		weights: DefaultWeights,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rank scores, filters, orders and truncates candidates to topK.
// Candidates below the similarity threshold are dropped first. Ordering is
// a total order: combined score descending, ties broken by similarity then
// chunk ID, so identical inputs always produce identical output.
func (s *Scorer) Rank(candidates []index.Candidate, topK int) []Result {
	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		sim := clamp01(c.Similarity)
		if sim < s.threshold {
			continue
		}
		authority := s.authorityScore(c.Chunk)
		temporal := s.temporalScore(c.Chunk.CreatedAt)
		results = append(results, Result{
			Chunk:      c.Chunk,
			Similarity: sim,
			Authority:  authority,
			Temporal:   temporal,
			Combined: s.weights.Similarity*sim +
				s.weights.Authority*authority +
				s.weights.Temporal*temporal,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Combined != results[j].Combined {
			return results[i].Combined > results[j].Combined
		}
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

// authorityScore derives credibility from the chunk's source type and the
// density of recognized domain signals. Capped at 1.0.
func (s *Scorer) authorityScore(c document.Chunk) float64 {
	md := c.Metadata

	base, ok := sourceCredibility[md.SourceType]
	if !ok {
		base = sourceCredibility[document.SourceTypeManual]
	}
	score := base * 0.4

	var mitre, other bool
	for _, fw := range md.Frameworks {
		if fw == "MITRE_ATTACK" {
			mitre = true
		} else {
			other = true
		}
	}
	if mitre {
		score += 0.3
	}
	if other {
		score += 0.2
	}

	if n := len(md.Techniques); n > 0 {
		score += min(0.2, float64(n)*0.05)
	}
	if n := len(md.CVEs); n > 0 {
		score += min(0.1, float64(n)*0.02)
	}

	return clamp01(score)
}

// temporalScore is a step function of document age in days. Deterministic
// for a fixed clock; no decay curve, just bands.
func (s *Scorer) temporalScore(createdAt time.Time) float64 {
	if createdAt.IsZero() {
		return 0.2
	}
	ageDays := s.now().Sub(createdAt).Hours() / 24

	switch {
	case ageDays <= 30:
		return 1.0
	case ageDays <= 90:
		return 0.8
	case ageDays <= 365:
		return 0.6
	case ageDays <= 730:
		return 0.4
	default:
		return 0.2
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
