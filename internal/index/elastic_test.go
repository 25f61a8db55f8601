package index

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/sable-sec/intelrag/internal/document"
)

// fakeTransport serves canned Elasticsearch responses and records every
// request so tests can assert on the wire traffic.
type fakeTransport struct {
	handler  func(r *http.Request) (int, string)
	requests []*http.Request
	bodies   []string
}

func (f *fakeTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	var body string
	if r.Body != nil {
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
	}
	f.requests = append(f.requests, r)
	f.bodies = append(f.bodies, body)

	status, resp := f.handler(r)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(resp)),
		Header: http.Header{
			"X-Elastic-Product": []string{"Elasticsearch"},
			"Content-Type":      []string{"application/json"},
		},
		Request: r,
	}, nil
}

func defaultHandler(t *testing.T) func(r *http.Request) (int, string) {
	return func(r *http.Request) (int, string) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/":
			return http.StatusOK, `{"version":{"number":"8.17.1"}}`
		case r.Method == http.MethodHead:
			return http.StatusNotFound, ""
		case r.Method == http.MethodPut:
			return http.StatusOK, `{"acknowledged":true}`
		case strings.HasSuffix(r.URL.Path, "/_delete_by_query"):
			return http.StatusOK, `{"deleted":0}`
		case strings.HasSuffix(r.URL.Path, "/_bulk"):
			return http.StatusOK, `{"errors":false,"items":[]}`
		case strings.HasSuffix(r.URL.Path, "/_search"):
			return http.StatusOK, `{"hits":{"total":{"value":0},"hits":[]}}`
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			return http.StatusInternalServerError, "{}"
		}
	}
}

func openElastic(t *testing.T, ft *fakeTransport) *Elastic {
	t.Helper()
	e := NewElastic(ElasticConfig{
		Addresses: []string{"http://elastic.test:9200"},
		Index:     "intelrag-chunks",
		Dimension: testDim,
		Transport: ft,
	}, nil)
	if err := e.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	return e
}

func TestElasticOpenCreatesIndex(t *testing.T) {
	ft := &fakeTransport{handler: defaultHandler(t)}
	openElastic(t, ft)

	var sawCreate bool
	for i, r := range ft.requests {
		if r.Method == http.MethodPut && r.URL.Path == "/intelrag-chunks" {
			sawCreate = true
			if !strings.Contains(ft.bodies[i], `"dense_vector"`) {
				t.Error("mapping missing dense_vector field")
			}
			if !strings.Contains(ft.bodies[i], `"cosine"`) {
				t.Error("mapping missing cosine similarity")
			}
		}
	}
	if !sawCreate {
		t.Error("index was never created")
	}
}

func TestElasticOpenSkipsExistingIndex(t *testing.T) {
	ft := &fakeTransport{handler: func(r *http.Request) (int, string) {
		if r.Method == http.MethodHead {
			return http.StatusOK, "" // index exists
		}
		return http.StatusOK, `{"version":{"number":"8.17.1"}}`
	}}
	openElastic(t, ft)

	for _, r := range ft.requests {
		if r.Method == http.MethodPut {
			t.Error("tried to create an existing index")
		}
	}
}

func TestElasticOperationsRequireOpen(t *testing.T) {
	e := NewElastic(ElasticConfig{Index: "x", Dimension: testDim}, nil)
	ctx := context.Background()

	if _, err := e.Add(ctx, testDoc("d1", "manual"), nil); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Add before Open: %v", err)
	}
	if _, err := e.Search(ctx, Query{TopK: 1}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Search before Open: %v", err)
	}
	if err := e.Delete(ctx, "d1"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Delete before Open: %v", err)
	}
}

func TestElasticAddDeletesThenBulks(t *testing.T) {
	ft := &fakeTransport{handler: defaultHandler(t)}
	e := openElastic(t, ft)

	written, err := e.Add(context.Background(), testDoc("d1", "cti"), []document.Chunk{
		testChunk("d1", 0, "credential dumping", []float32{1, 0, 0}, "cti"),
		testChunk("d1", 1, "short vector", []float32{1, 0}, "cti"),
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if written != 1 {
		t.Errorf("written = %d, want 1 (mismatched chunk skipped)", written)
	}

	var deleteIdx, bulkIdx = -1, -1
	for i, r := range ft.requests {
		switch {
		case strings.HasSuffix(r.URL.Path, "/_delete_by_query"):
			deleteIdx = i
		case strings.HasSuffix(r.URL.Path, "/_bulk"):
			bulkIdx = i
		}
	}
	if deleteIdx == -1 || bulkIdx == -1 {
		t.Fatal("expected both delete-by-query and bulk requests")
	}
	if deleteIdx > bulkIdx {
		t.Error("prior chunks were not deleted before the bulk write")
	}
	if !strings.Contains(ft.bodies[deleteIdx], `"document_id":"d1"`) {
		t.Errorf("delete body = %s", ft.bodies[deleteIdx])
	}
	if !strings.Contains(ft.bodies[bulkIdx], `"chunk_id":"`+document.ChunkID("d1", 0)+`"`) {
		t.Errorf("bulk body missing chunk: %s", ft.bodies[bulkIdx])
	}
}

func TestElasticSearchHybridQuery(t *testing.T) {
	searchResponse := `{
		"hits": {"total": {"value": 2}, "hits": [
			{"_score": 1.95, "_source": {
				"chunk_id": "d1-0000", "document_id": "d1", "chunk_index": 0,
				"content": "credential dumping", "source_type": "cti",
				"techniques": ["T1003"]
			}},
			{"_score": 1.40, "_source": {
				"chunk_id": "d2-0000", "document_id": "d2", "chunk_index": 0,
				"content": "unrelated", "source_type": "blog"
			}}
		]}
	}`
	ft := &fakeTransport{handler: func(r *http.Request) (int, string) {
		if strings.HasSuffix(r.URL.Path, "/_search") {
			return http.StatusOK, searchResponse
		}
		return defaultHandler(t)(r)
	}}
	e := openElastic(t, ft)

	candidates, err := e.Search(context.Background(), Query{
		Vector:  []float32{1, 0, 0},
		Text:    "credential dumping",
		TopK:    2,
		Filters: Filters{"source_type": {"cti", "blog"}},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(candidates))
	}

	// Script score offset removed: 1.95 -> 0.95.
	if candidates[0].Similarity < 0.94 || candidates[0].Similarity > 0.96 {
		t.Errorf("similarity = %f, want 0.95", candidates[0].Similarity)
	}
	if candidates[0].Chunk.ID != "d1-0000" {
		t.Errorf("top candidate = %q", candidates[0].Chunk.ID)
	}
	if len(candidates[0].Chunk.Metadata.Techniques) != 1 {
		t.Error("facet metadata not decoded")
	}

	// Inspect the query body sent to the cluster.
	var body map[string]any
	var searchBody string
	for i, r := range ft.requests {
		if strings.HasSuffix(r.URL.Path, "/_search") {
			searchBody = ft.bodies[i]
		}
	}
	if err := json.Unmarshal([]byte(searchBody), &body); err != nil {
		t.Fatalf("decode search body: %v", err)
	}
	raw := searchBody
	for _, want := range []string{"script_score", "cosineSimilarity", "multi_match", `"content^2"`, "terms", `"excludes":["vector"]`} {
		if !strings.Contains(raw, want) {
			t.Errorf("search body missing %s", want)
		}
	}
}

func TestElasticSearchUnavailableBackend(t *testing.T) {
	calls := 0
	ft := &fakeTransport{handler: func(r *http.Request) (int, string) {
		calls++
		if strings.HasSuffix(r.URL.Path, "/_search") {
			return http.StatusServiceUnavailable, `{"error":"unavailable"}`
		}
		return defaultHandler(t)(r)
	}}
	e := openElastic(t, ft)

	if _, err := e.Search(context.Background(), Query{Text: "x", TopK: 1}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestElasticStats(t *testing.T) {
	ft := &fakeTransport{handler: func(r *http.Request) (int, string) {
		if strings.HasSuffix(r.URL.Path, "/_search") {
			return http.StatusOK, `{
				"hits": {"total": {"value": 7}},
				"aggregations": {"documents": {"value": 3}}
			}`
		}
		return defaultHandler(t)(r)
	}}
	e := openElastic(t, ft)

	stats, err := e.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Chunks != 7 || stats.Documents != 3 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Backend != "elastic" || stats.State != "ready" {
		t.Errorf("stats identity = %+v", stats)
	}
}
