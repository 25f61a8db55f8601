package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"

	"github.com/sable-sec/intelrag/internal/document"
	"github.com/sable-sec/intelrag/internal/log"
)

// ElasticConfig configures the distributed backend.
type ElasticConfig struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
	Dimension int

	// Transport overrides the HTTP transport, used by tests to fake the
	// cluster without a network.
	Transport http.RoundTripper
}

// Elastic is the distributed VectorIndex. Each chunk is one Elasticsearch
// document carrying both a dense vector and analyzed full text, so a query
// can match by semantic closeness or lexically. Metadata fields are keyword
// facets used only for filtering, never for scoring.
type Elastic struct {
	cfg    ElasticConfig
	logger log.Logger
	state  atomic.Int32
	client *elasticsearch.Client
}

// NewElastic creates an Elastic index. Open must be called before use.
func NewElastic(cfg ElasticConfig, logger log.Logger) *Elastic {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Elastic{cfg: cfg, logger: logger}
}

// Open connects to the cluster and creates the index mapping if absent.
func (e *Elastic) Open(ctx context.Context) error {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: e.cfg.Addresses,
		Username:  e.cfg.Username,
		Password:  e.cfg.Password,
		Transport: e.cfg.Transport,
	})
	if err != nil {
		return fmt.Errorf("%w: create client: %v", ErrUnavailable, err)
	}
	e.client = client

	ping, err := client.Ping(client.Ping.WithContext(ctx))
	if err != nil {
		e.state.Store(int32(StateUninitialized))
		return fmt.Errorf("%w: ping: %v", ErrUnavailable, err)
	}
	ping.Body.Close() //nolint:errcheck
	if ping.IsError() {
		e.state.Store(int32(StateUninitialized))
		return fmt.Errorf("%w: ping status %s", ErrUnavailable, ping.Status())
	}
	e.state.Store(int32(StateConnected))

	if err := e.ensureIndex(ctx); err != nil {
		e.state.Store(int32(StateUninitialized))
		return err
	}

	e.state.Store(int32(StateReady))
	e.logger.Debug("elastic index ready", "index", e.cfg.Index)
	return nil
}

func (e *Elastic) ensureIndex(ctx context.Context) error {
	exists, err := e.client.Indices.Exists([]string{e.cfg.Index},
		e.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: check index: %v", ErrUnavailable, err)
	}
	exists.Body.Close() //nolint:errcheck
	if exists.StatusCode == http.StatusOK {
		return nil
	}

	mapping := fmt.Sprintf(chunkMapping, e.cfg.Dimension)
	created, err := e.client.Indices.Create(e.cfg.Index,
		e.client.Indices.Create.WithContext(ctx),
		e.client.Indices.Create.WithBody(strings.NewReader(mapping)))
	if err != nil {
		return fmt.Errorf("%w: create index: %v", ErrUnavailable, err)
	}
	defer created.Body.Close() //nolint:errcheck
	if created.IsError() {
		body, _ := io.ReadAll(io.LimitReader(created.Body, 4096))
		return fmt.Errorf("%w: create index %s: %s", ErrUnavailable, created.Status(), body)
	}
	return nil
}

// chunkRecord is the wire form of a chunk in the index. The vector field is
// excluded from result projections; only writes carry it.
type chunkRecord struct {
	ChunkID    string    `json:"chunk_id"`
	Content    string    `json:"content"`
	Vector     []float32 `json:"vector,omitempty"`
	Source     string    `json:"source"`
	DocumentID string    `json:"document_id"`
	Title      string    `json:"title"`
	ChunkIndex int       `json:"chunk_index"`
	CreatedAt  time.Time `json:"created_at"`
	SourceType string    `json:"source_type"`
	Authority  float64   `json:"authority_score"`
	Techniques []string  `json:"techniques"`
	Frameworks []string  `json:"frameworks"`
	CVEs       []string  `json:"cves"`
	WordCount  int       `json:"word_count"`
	CharCount  int       `json:"char_count"`
	Position   float64   `json:"position"`
}

// Add bulk-indexes the document's chunks after removing any prior ones.
// Chunks with a mismatched vector dimension are skipped and logged.
func (e *Elastic) Add(ctx context.Context, doc *document.Document, chunks []document.Chunk) (int, error) {
	if e.currentState() != StateReady {
		return 0, ErrUnavailable
	}

	if err := e.Delete(ctx, doc.ID); err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	written := 0
	for _, c := range chunks {
		if len(c.Embedding) != e.cfg.Dimension {
			e.logger.Warn("skipping chunk with mismatched vector",
				"chunk_id", c.ID, "got", len(c.Embedding), "want", e.cfg.Dimension)
			continue
		}
		meta := map[string]map[string]string{
			"index": {"_index": e.cfg.Index, "_id": c.ID},
		}
		if err := json.NewEncoder(&buf).Encode(meta); err != nil {
			return written, fmt.Errorf("encode bulk action: %w", err)
		}
		rec := chunkRecord{
			ChunkID:    c.ID,
			Content:    c.Content,
			Vector:     c.Embedding,
			Source:     doc.Source,
			DocumentID: c.DocumentID,
			Title:      doc.Title,
			ChunkIndex: c.Index,
			CreatedAt:  c.CreatedAt,
			SourceType: c.Metadata.SourceType,
			Authority:  doc.AuthorityScore,
			Techniques: c.Metadata.Techniques,
			Frameworks: c.Metadata.Frameworks,
			CVEs:       c.Metadata.CVEs,
			WordCount:  c.Metadata.ChunkWordCount,
			CharCount:  c.Metadata.ChunkCharCount,
			Position:   c.Metadata.Position,
		}
		if err := json.NewEncoder(&buf).Encode(rec); err != nil {
			return written, fmt.Errorf("encode bulk record: %w", err)
		}
		written++
	}
	if written == 0 {
		return 0, nil
	}

	res, err := e.client.Bulk(bytes.NewReader(buf.Bytes()),
		e.client.Bulk.WithContext(ctx),
		e.client.Bulk.WithRefresh("true"))
	if err != nil {
		return 0, fmt.Errorf("%w: bulk index: %v", ErrUnavailable, err)
	}
	defer res.Body.Close() //nolint:errcheck
	if res.IsError() {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return 0, fmt.Errorf("%w: bulk index %s: %s", ErrUnavailable, res.Status(), body)
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return 0, fmt.Errorf("decode bulk response: %w", err)
	}
	if bulkResp.Errors {
		failed := 0
		for _, item := range bulkResp.Items {
			for _, op := range item {
				if op.Status >= 300 {
					failed++
				}
			}
		}
		written -= failed
		e.logger.Warn("bulk index partial failure", "failed", failed, "document_id", doc.ID)
	}
	return written, nil
}

// Search issues one hybrid query: a script-scored cosine similarity clause
// plus a weighted full-text clause, with filters as non-scoring facets.
func (e *Elastic) Search(ctx context.Context, q Query) ([]Candidate, error) {
	if e.currentState() != StateReady {
		return nil, ErrUnavailable
	}
	if q.TopK < 1 {
		return nil, nil
	}
	if q.Vector != nil && len(q.Vector) != e.cfg.Dimension {
		return nil, fmt.Errorf("%w: query has %d dims, want %d",
			ErrDimensionMismatch, len(q.Vector), e.cfg.Dimension)
	}

	body, err := json.Marshal(buildSearchBody(q))
	if err != nil {
		return nil, fmt.Errorf("encode search body: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(e.cfg.Index),
		e.client.Search.WithBody(bytes.NewReader(body)))
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", ErrUnavailable, err)
	}
	defer res.Body.Close() //nolint:errcheck
	if res.IsError() {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, fmt.Errorf("%w: search %s: %s", ErrUnavailable, res.Status(), raw)
	}

	var decoded struct {
		Hits struct {
			Hits []struct {
				Score  float64     `json:"_score"`
				Source chunkRecord `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	candidates := make([]Candidate, 0, len(decoded.Hits.Hits))
	for _, hit := range decoded.Hits.Hits {
		sim := hit.Score
		if q.Vector != nil {
			// The script score is cosine+1.0 in [0,2]; shift back.
			sim = hit.Score - 1.0
		}
		if sim < 0 {
			sim = 0
		}
		if sim > 1 {
			sim = 1
		}
		candidates = append(candidates, Candidate{
			Chunk:      recordToChunk(hit.Source),
			Similarity: sim,
		})
	}

	sortCandidates(candidates)
	if len(candidates) > q.TopK {
		candidates = candidates[:q.TopK]
	}
	return candidates, nil
}

// Delete removes all chunks of a document via delete-by-query.
func (e *Elastic) Delete(ctx context.Context, documentID string) error {
	if e.currentState() != StateReady {
		return ErrUnavailable
	}

	body := fmt.Sprintf(`{"query":{"term":{"document_id":%q}}}`, documentID)
	res, err := e.client.DeleteByQuery([]string{e.cfg.Index}, strings.NewReader(body),
		e.client.DeleteByQuery.WithContext(ctx),
		e.client.DeleteByQuery.WithRefresh(true))
	if err != nil {
		return fmt.Errorf("%w: delete document %s: %v", ErrUnavailable, documentID, err)
	}
	defer res.Body.Close() //nolint:errcheck
	if res.IsError() {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("%w: delete document %s: %s", ErrUnavailable, res.Status(), raw)
	}
	return nil
}

// Stats reports chunk and distinct document counts.
func (e *Elastic) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		Backend:   "elastic",
		State:     e.currentState().String(),
		Dimension: e.cfg.Dimension,
	}
	if e.currentState() != StateReady {
		return stats, ErrUnavailable
	}

	body := `{"size":0,"aggs":{"documents":{"cardinality":{"field":"document_id"}}}}`
	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(e.cfg.Index),
		e.client.Search.WithBody(strings.NewReader(body)),
		e.client.Search.WithTrackTotalHits(true))
	if err != nil {
		return stats, fmt.Errorf("%w: stats: %v", ErrUnavailable, err)
	}
	defer res.Body.Close() //nolint:errcheck
	if res.IsError() {
		return stats, fmt.Errorf("%w: stats %s", ErrUnavailable, res.Status())
	}

	var decoded struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
		} `json:"hits"`
		Aggregations struct {
			Documents struct {
				Value float64 `json:"value"`
			} `json:"documents"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return stats, fmt.Errorf("decode stats response: %w", err)
	}

	stats.Chunks = decoded.Hits.Total.Value
	stats.Documents = int(decoded.Aggregations.Documents.Value)
	return stats, nil
}

// Close returns the index to the uninitialized state. The HTTP client
// holds no resources needing explicit release.
func (e *Elastic) Close() error {
	e.state.Store(int32(StateUninitialized))
	return nil
}

func (e *Elastic) currentState() State {
	return State(e.state.Load())
}

// buildSearchBody assembles the hybrid bool query. Either clause can
// surface a chunk; filters never contribute to the score.
func buildSearchBody(q Query) map[string]any {
	var should []map[string]any

	if q.Vector != nil {
		should = append(should, map[string]any{
			"script_score": map[string]any{
				"query": map[string]any{"match_all": map[string]any{}},
				"script": map[string]any{
					"source": "cosineSimilarity(params.query_vector, 'vector') + 1.0",
					"params": map[string]any{"query_vector": q.Vector},
				},
			},
		})
	}
	if q.Text != "" {
		should = append(should, map[string]any{
			"multi_match": map[string]any{
				"query":  q.Text,
				"fields": []string{"content^2", "title"},
				"type":   "best_fields",
				"boost":  0.3,
			},
		})
	}

	boolQuery := map[string]any{"should": should}
	if len(q.Filters) > 0 {
		var filters []map[string]any
		for field, values := range q.Filters {
			filters = append(filters, map[string]any{
				"terms": map[string]any{field: values},
			})
		}
		boolQuery["filter"] = filters
	}

	return map[string]any{
		// Fetch extra so the similarity threshold applied downstream still
		// leaves enough candidates for the top-K cut.
		"size":    q.TopK * 2,
		"query":   map[string]any{"bool": boolQuery},
		"_source": map[string]any{"excludes": []string{"vector"}},
	}
}

func recordToChunk(r chunkRecord) document.Chunk {
	return document.Chunk{
		ID:         r.ChunkID,
		DocumentID: r.DocumentID,
		Index:      r.ChunkIndex,
		Content:    r.Content,
		CreatedAt:  r.CreatedAt,
		Metadata: document.ChunkMetadata{
			Metadata: document.Metadata{
				Techniques: r.Techniques,
				CVEs:       r.CVEs,
				Frameworks: r.Frameworks,
				WordCount:  r.WordCount,
				CharCount:  r.CharCount,
			},
			DocumentTitle:  r.Title,
			Source:         r.Source,
			SourceType:     r.SourceType,
			ChunkWordCount: r.WordCount,
			ChunkCharCount: r.CharCount,
			Position:       r.Position,
		},
	}
}

// chunkMapping is the index schema: one record per chunk with an analyzed
// text field, a cosine dense vector, and keyword facets for filtering.
const chunkMapping = `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0
  },
  "mappings": {
    "properties": {
      "chunk_id":       {"type": "keyword"},
      "content":        {"type": "text", "analyzer": "standard"},
      "vector":         {"type": "dense_vector", "dims": %d, "index": true, "similarity": "cosine"},
      "source":         {"type": "keyword"},
      "document_id":    {"type": "keyword"},
      "title":          {"type": "text"},
      "chunk_index":    {"type": "integer"},
      "created_at":     {"type": "date"},
      "source_type":    {"type": "keyword"},
      "authority_score":{"type": "float"},
      "techniques":     {"type": "keyword"},
      "frameworks":     {"type": "keyword"},
      "cves":           {"type": "keyword"},
      "word_count":     {"type": "integer"},
      "char_count":     {"type": "integer"},
      "position":       {"type": "float"}
    }
  }
}`
