package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lazypower/groundtruth/internal/config"
	"github.com/lazypower/groundtruth/internal/engine"
	"github.com/lazypower/groundtruth/internal/store"
)

type fixedEmbedder struct {
	vecs map[string][]float64
}

func (f *fixedEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	if v, ok := f.vecs[text]; ok {
		return v, nil
	}
	return []float64{0, 0, 1}, nil
}

func (f *fixedEmbedder) Model() string   { return "fixed" }
func (f *fixedEmbedder) Dimensions() int { return 3 }

func testServer(t *testing.T, vecs map[string][]float64) (*Server, *store.DB) {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	eng := engine.New(db, &fixedEmbedder{vecs: vecs}, config.DefaultThresholds())
	return New(db, eng, "test"), db
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s, _ := testServer(t, nil)

	w := get(t, s, "/api/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if body["db"] != true {
		t.Errorf("db field = %v, want true", body["db"])
	}
}

func TestQueryEndpoint(t *testing.T) {
	fragText := "grpc streaming notes"
	s, _ := testServer(t, map[string][]float64{
		"grpc":   {1, 0, 0},
		fragText: {0.95, 0.2, 0},
	})

	body := `{"bundle": {"fragments": [{"id": "frag-1", "text": "` + fragText + `"}]}}`
	req := httptest.NewRequest("POST", "/api/sync", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("sync status = %d: %s", w.Code, w.Body.String())
	}

	w = get(t, s, "/api/query?q=grpc")
	if w.Code != http.StatusOK {
		t.Fatalf("query status = %d: %s", w.Code, w.Body.String())
	}

	var result engine.Result
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Buckets) != 1 {
		t.Fatalf("buckets = %+v, want one fragment bucket", result.Buckets)
	}
	if result.Buckets[0].Entries[0].ID != "frag-1" {
		t.Errorf("entry = %+v, want frag-1", result.Buckets[0].Entries[0])
	}
}

func TestQueryRequiresQ(t *testing.T) {
	s, _ := testServer(t, nil)
	if w := get(t, s, "/api/query"); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if w := get(t, s, "/api/query?q=x&limit=bogus"); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for bad limit", w.Code)
	}
}

func TestEntityEndpoints(t *testing.T) {
	s, db := testServer(t, nil)

	db.InsertQuestion(&store.Question{ID: "q-1", Text: "which queue"})
	db.InsertDecision(&store.Decision{ID: "dec-1", Text: "use nats"})
	db.InsertRelation(&store.Relation{Type: store.RelResolves, FromID: "dec-1", ToID: "q-1"})

	w := get(t, s, "/api/entities/q-1")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Kind   store.Kind      `json:"kind"`
		Entity json.RawMessage `json:"entity"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Kind != store.KindQuestion {
		t.Errorf("kind = %q, want question", body.Kind)
	}

	if w := get(t, s, "/api/entities/ghost"); w.Code != http.StatusNotFound {
		t.Errorf("missing entity status = %d, want 404", w.Code)
	}

	w = get(t, s, "/api/entities/q-1/relations")
	if w.Code != http.StatusOK {
		t.Fatalf("relations status = %d", w.Code)
	}
	var rels struct {
		Incoming []store.Relation `json:"incoming"`
		Outgoing []store.Relation `json:"outgoing"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &rels); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rels.Incoming) != 1 || rels.Incoming[0].FromID != "dec-1" {
		t.Errorf("incoming = %+v, want RESOLVES from dec-1", rels.Incoming)
	}
}

func TestSyncEndpointPartialFailure(t *testing.T) {
	s, _ := testServer(t, nil)

	body := `{"bundle": {"assessments": [{"id": "as-bad", "subtype": "horoscope", "summary": "nope"}]}}`
	req := httptest.NewRequest("POST", "/api/sync", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	if w.Code != http.StatusMultiStatus {
		t.Fatalf("status = %d, want 207: %s", w.Code, w.Body.String())
	}
	var report engine.Report
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(report.Failures) != 1 {
		t.Errorf("failures = %+v, want one", report.Failures)
	}
}

func TestSyncEndpointBadRequest(t *testing.T) {
	s, _ := testServer(t, nil)

	req := httptest.NewRequest("POST", "/api/sync", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}

	req = httptest.NewRequest("POST", "/api/sync", strings.NewReader("not json"))
	w = httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for bad json", w.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	s, db := testServer(t, nil)

	db.InsertFragment(&store.Fragment{ID: "f1", Text: "t"})

	w := get(t, s, "/api/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var stats store.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Entities["fragment"] != 1 {
		t.Errorf("fragments = %d, want 1", stats.Entities["fragment"])
	}
}
