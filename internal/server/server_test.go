package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cliffyan/go-meta-search/internal/cache"
	"github.com/cliffyan/go-meta-search/internal/config"
	"github.com/cliffyan/go-meta-search/internal/engine"
	"github.com/cliffyan/go-meta-search/internal/search"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := *config.DefaultConfig
	c := cache.New(cache.Options{CheckPeriod: time.Hour})
	t.Cleanup(c.Close)

	svc := search.New(&cfg, c)
	return New(&cfg, svc)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	return body
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Errorf("status field = %v", body["status"])
	}
	engines, ok := body["engines"].([]any)
	if !ok || len(engines) == 0 {
		t.Errorf("engines field = %v, want non-empty list", body["engines"])
	}
}

func TestHandleEngines(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handleEngines(rec, httptest.NewRequest(http.MethodGet, "/api/engines", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["default"] != "duckduckgo" {
		t.Errorf("default engine = %v", body["default"])
	}
	engines := body["engines"].([]any)
	names := make(map[string]bool, len(engines))
	for _, e := range engines {
		names[e.(string)] = true
	}
	for _, want := range []string{"duckduckgo", "bing", "google"} {
		if !names[want] {
			t.Errorf("engine %s missing from %v", want, engines)
		}
	}
}

func TestHandleSearchEmptyQuery(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handleSearch(rec, httptest.NewRequest(http.MethodGet, "/api/search", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["success"] != false {
		t.Error("expected success false")
	}
	if body["code"] != "INVALID_REQUEST" {
		t.Errorf("code = %v, want INVALID_REQUEST", body["code"])
	}
}

func TestHandleSearchUnknownEngine(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handleSearch(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=test&engine=bogus", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != "UNKNOWN_ENGINE" {
		t.Errorf("code = %v, want UNKNOWN_ENGINE", body["code"])
	}
}

func TestHandleSearchMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handleSearch(rec, httptest.NewRequest(http.MethodPost, "/api/search?q=test", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestHandleCacheStats(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handleCacheStats(rec, httptest.NewRequest(http.MethodGet, "/api/cache/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	stats, ok := body["stats"].(map[string]any)
	if !ok {
		t.Fatalf("stats field = %v", body["stats"])
	}
	if stats["hitRate"] != "0%" {
		t.Errorf("hitRate = %v, want 0%% on fresh cache", stats["hitRate"])
	}
}

func TestHandleCacheClear(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handleCacheClear(rec, httptest.NewRequest(http.MethodPost, "/api/cache/clear", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.handleCacheClear(rec, httptest.NewRequest(http.MethodGet, "/api/cache/clear", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status = %d, want 405", rec.Code)
	}
}

func TestWriteErrorUpstreamMapsTo503(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.writeError(rec, &engine.UpstreamError{Engine: "duckduckgo", Op: engine.TypeWeb, Err: errors.New("connection refused")})

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["code"] != "UPSTREAM_UNAVAILABLE" {
		t.Errorf("code = %v", body["code"])
	}
	if body["message"] != "Search service temporarily unavailable" {
		t.Errorf("message = %v", body["message"])
	}
	if body["suggestion"] == nil {
		t.Error("expected suggestion field")
	}
}

func TestWriteErrorDefaultsTo500(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.writeError(rec, errors.New("something odd"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != "INTERNAL_ERROR" {
		t.Errorf("code = %v", body["code"])
	}
}

func TestClampLimit(t *testing.T) {
	srv := newTestServer(t)

	if got := srv.clampLimit(500); got != srv.config.Search.MaxResults {
		t.Errorf("clampLimit(500) = %d, want %d", got, srv.config.Search.MaxResults)
	}
	if got := srv.clampLimit(10); got != 10 {
		t.Errorf("clampLimit(10) = %d, want 10", got)
	}
}

func TestSplitEngines(t *testing.T) {
	got := splitEngines(" duckduckgo, bing ,,google")
	want := []string{"duckduckgo", "bing", "google"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("engine[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
