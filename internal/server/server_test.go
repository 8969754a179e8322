package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/inquiry-labs/researchdb/internal/storage"
)

func newTestServer(t *testing.T, mutate func(*storage.ServerConfig)) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	cfg, err := storage.LoadServerConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	if mutate != nil {
		mutate(cfg)
	}
	schemas, err := storage.NewSchemas()
	if err != nil {
		t.Fatal(err)
	}
	srv := New(storage.New(dir), schemas, cfg, nil, "test")
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("%s %s: decoding response: %v", method, url, err)
	}
	return resp, decoded
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestDocumentLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)

	doc := map[string]any{
		"id":        "H-S1-001",
		"sessionId": "S1",
		"statement": "the cache is stale",
		"status":    "proposed",
	}
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/hypotheses", map[string]any{"document": doc})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create: status = %d", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/hypotheses/H-S1-001", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: status = %d", resp.StatusCode)
	}
	got := body["document"].(map[string]any)
	if got["statement"] != "the cache is stale" {
		t.Errorf("document = %v", got)
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/hypotheses?status=proposed", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("query: status = %d", resp.StatusCode)
	}
	if docs := body["documents"].([]any); len(docs) != 1 {
		t.Errorf("query returned %d documents, want 1", len(docs))
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/hypotheses/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats: status = %d", resp.StatusCode)
	}
	stats := body["stats"].(map[string]any)
	if stats["total"].(float64) != 1 {
		t.Errorf("stats = %v", stats)
	}

	resp, body = doJSON(t, http.MethodDelete, ts.URL+"/api/hypotheses/H-S1-001", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: status = %d", resp.StatusCode)
	}
	if body["deleted"] != true {
		t.Errorf("deleted = %v", body["deleted"])
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/hypotheses/H-S1-001", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete: status = %d, want 404", resp.StatusCode)
	}
}

func TestSchemaRejectsBadPayload(t *testing.T) {
	ts := newTestServer(t, nil)
	doc := map[string]any{
		"id":        "H-S1-001",
		"sessionId": "S1",
		"statement": "x",
		"status":    "definitely-not-a-status",
	}
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/hypotheses", map[string]any{"document": doc})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSessionEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/sessions", map[string]any{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("mint: status = %d", resp.StatusCode)
	}
	if body["sessionId"] == "" {
		t.Error("empty session id")
	}

	docs := []map[string]any{
		{"id": "AN-S1-001", "sessionId": "S1", "description": "spike", "status": "open", "severity": "major"},
		{"id": "AN-S1-002", "sessionId": "S1", "description": "drop", "status": "dismissed", "severity": "minor"},
	}
	resp, _ = doJSON(t, http.MethodPut, ts.URL+"/api/anomalies/sessions/S1", map[string]any{"documents": docs})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put session: status = %d", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/anomalies/sessions", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list sessions: status = %d", resp.StatusCode)
	}
	if sessions := body["sessions"].([]any); len(sessions) != 1 || sessions[0] != "S1" {
		t.Errorf("sessions = %v", sessions)
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/anomalies/sessions/S1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get session: status = %d", resp.StatusCode)
	}
	if got := body["documents"].([]any); len(got) != 2 {
		t.Errorf("documents = %v", got)
	}
}

func TestUnknownCollection(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/widgets/stats", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestReportAndRebuild(t *testing.T) {
	ts := newTestServer(t, nil)
	doc := map[string]any{
		"id": "C-S1-001", "sessionId": "S1", "targetId": "H-S1-001",
		"targetKind": "hypotheses", "content": "weak evidence",
		"severity": "blocking", "status": "open",
	}
	if resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/critiques", map[string]any{"document": doc}); resp.StatusCode != http.StatusOK {
		t.Fatalf("create: status = %d", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/report", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("report: status = %d", resp.StatusCode)
	}
	colls := body["collections"].(map[string]any)
	if len(colls) != 5 {
		t.Errorf("report covers %d collections, want 5", len(colls))
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/critiques/unaddressed?target=H-S1-001", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unaddressed: status = %d", resp.StatusCode)
	}
	if body["count"].(float64) != 1 {
		t.Errorf("count = %v, want 1", body["count"])
	}

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/rebuild", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rebuild: status = %d", resp.StatusCode)
	}
	if colls := body["collections"].([]any); len(colls) != 5 {
		t.Errorf("rebuild covered %d collections, want 5", len(colls))
	}
}

func TestSchemasEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/schemas/tests", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["schema"] == nil {
		t.Error("no schema in response")
	}
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/schemas/widgets", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown schema: status = %d, want 404", resp.StatusCode)
	}
}

func TestGitHistoryDisabled(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/git/history", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	var secret []byte
	ts := newTestServer(t, func(cfg *storage.ServerConfig) {
		cfg.RequireAuth = true
		secret = cfg.JWTSecret
	})

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/hypotheses/stats", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", resp.StatusCode)
	}

	token, err := MintToken(secret, "tester", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/hypotheses/stats", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	authed, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = authed.Body.Close() }()
	if authed.StatusCode != http.StatusOK {
		t.Errorf("with token: status = %d, want 200", authed.StatusCode)
	}

	req.Header.Set("Authorization", "Bearer not.a.token")
	bad, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = bad.Body.Close() }()
	if bad.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", bad.StatusCode)
	}
}

func TestWriteRateLimit(t *testing.T) {
	ts := newTestServer(t, func(cfg *storage.ServerConfig) {
		cfg.RateLimits.WriteRatePerMin = 10 // burst of 1
	})
	limited := false
	for i := range 3 {
		doc := map[string]any{
			"id":        fmt.Sprintf("H-S1-%03d", i),
			"sessionId": "S1",
			"statement": "x",
			"status":    "proposed",
		}
		resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/hypotheses", map[string]any{"document": doc})
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
		}
	}
	if !limited {
		t.Error("no request was rate limited")
	}
}
