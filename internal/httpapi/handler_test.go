package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"doiver/internal/config"
	"doiver/internal/database"
	"doiver/internal/debounce"
	"doiver/internal/doiver"
	"doiver/internal/testutil"
)

type testServer struct {
	handler *Handler
	clock   *testutil.StubClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := database.NewStoreFromConfig(config.DatabaseConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	clock := testutil.NewStubClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	deb := debounce.NewMemoryDebouncer(5*time.Second, clock)
	doigen := doiver.NewDOIGenerator("10.1234", testutil.NewStubIDGenerator("suffix"))
	svc := doiver.NewService(store, deb, nil, nil, doigen,
		doiver.NewNopLogger(), clock, testutil.NewStubIDGenerator("id"))

	tokens, err := NewTokenSource("test-secret", time.Hour, clock)
	if err != nil {
		t.Fatalf("creating token source: %v", err)
	}

	return &testServer{
		handler: NewHandler(svc, tokens, doiver.NewNopLogger()),
		clock:   clock,
	}
}

type response struct {
	Success bool
	Data    map[string]any
	Code    int
}

func (ts *testServer) do(t *testing.T, req *http.Request) *response {
	t.Helper()
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	resp := &response{Success: env.Success, Code: rec.Code}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &resp.Data); err != nil {
			t.Fatalf("decoding data %q: %v", env.Data, err)
		}
	}
	return resp
}

func (ts *testServer) postJSON(t *testing.T, path string, body string) *response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return ts.do(t, req)
}

// publish seeds an article and returns its ID.
func (ts *testServer) publish(t *testing.T, slug, content string) string {
	t.Helper()
	resp := ts.postJSON(t, "/events/published",
		`{"slug":"`+slug+`","title":"Title","content":"`+content+`"}`)
	if !resp.Success {
		t.Fatalf("publish failed: %+v", resp)
	}
	return resp.Data["article_id"].(string)
}

func (ts *testServer) update(t *testing.T, slug, content string) *response {
	t.Helper()
	ts.clock.Advance(10 * time.Second)
	return ts.postJSON(t, "/events/updated",
		`{"slug":"`+slug+`","content":"`+content+`","previous_status":"publish"}`)
}

func TestPublishedEndpoint(t *testing.T) {
	t.Run("mints a doi and reports version 1", func(t *testing.T) {
		ts := newTestServer(t)
		resp := ts.postJSON(t, "/events/published", `{"slug":"alpha","title":"Alpha","content":"v1-text"}`)

		if !resp.Success || resp.Code != http.StatusOK {
			t.Fatalf("response = %+v", resp)
		}
		doi, _ := resp.Data["doi"].(string)
		if !strings.HasPrefix(doi, "10.1234/") {
			t.Errorf("doi = %q, want prefix 10.1234/", doi)
		}
		if v := resp.Data["version"].(float64); v != 1 {
			t.Errorf("version = %v, want 1", v)
		}
	})

	t.Run("re-delivery is a no-op success", func(t *testing.T) {
		ts := newTestServer(t)
		first := ts.postJSON(t, "/events/published", `{"slug":"alpha","title":"Alpha","content":"v1-text"}`)
		second := ts.postJSON(t, "/events/published", `{"slug":"alpha","title":"Alpha","content":"other"}`)

		if !second.Success {
			t.Fatalf("re-delivery failed: %+v", second)
		}
		if first.Data["doi"] != second.Data["doi"] {
			t.Errorf("doi changed: %v != %v", first.Data["doi"], second.Data["doi"])
		}
	})

	t.Run("missing slug", func(t *testing.T) {
		ts := newTestServer(t)
		resp := ts.postJSON(t, "/events/published", `{"title":"Alpha"}`)
		if resp.Success || resp.Code != http.StatusBadRequest {
			t.Errorf("response = %+v, want 400 failure", resp)
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		ts := newTestServer(t)
		resp := ts.do(t, httptest.NewRequest(http.MethodGet, "/events/published", nil))
		if resp.Code != http.StatusMethodNotAllowed {
			t.Errorf("code = %d, want 405", resp.Code)
		}
	})
}

func TestUpdatedEndpoint(t *testing.T) {
	t.Run("accepts a changed body", func(t *testing.T) {
		ts := newTestServer(t)
		ts.publish(t, "alpha", "v1-text")

		resp := ts.update(t, "alpha", "v2-text")
		if !resp.Success {
			t.Fatalf("response = %+v", resp)
		}
		if accepted := resp.Data["accepted"].(bool); !accepted {
			t.Error("accepted = false, want true")
		}
		if v := resp.Data["version"].(float64); v != 2 {
			t.Errorf("version = %v, want 2", v)
		}
	})

	t.Run("redundant notification is not an error", func(t *testing.T) {
		ts := newTestServer(t)
		ts.publish(t, "alpha", "v1-text")

		resp := ts.update(t, "alpha", "v1-text")
		if !resp.Success {
			t.Fatalf("response = %+v", resp)
		}
		if accepted := resp.Data["accepted"].(bool); accepted {
			t.Error("accepted = true, want false")
		}
	})
}

func TestArticleRoutes(t *testing.T) {
	t.Run("bare slug redirects to the current release", func(t *testing.T) {
		ts := newTestServer(t)
		ts.publish(t, "alpha", "v1-text")
		ts.update(t, "alpha", "v2-text")

		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/articles/alpha", nil))

		if rec.Code != http.StatusFound {
			t.Fatalf("code = %d, want 302", rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "/articles/alpha/release/2/" {
			t.Errorf("Location = %q, want /articles/alpha/release/2/", loc)
		}
	})

	t.Run("release url renders the requested version", func(t *testing.T) {
		ts := newTestServer(t)
		ts.publish(t, "alpha", "v1-text")
		ts.update(t, "alpha", "v2-text")

		resp := ts.do(t, httptest.NewRequest(http.MethodGet, "/articles/alpha/release/1/", nil))
		if !resp.Success {
			t.Fatalf("response = %+v", resp)
		}
		if resp.Data["content"] != "v1-text" {
			t.Errorf("content = %v, want v1-text", resp.Data["content"])
		}
		if v := resp.Data["version"].(float64); v != 1 {
			t.Errorf("version = %v, want 1", v)
		}
		if token, _ := resp.Data["fetch_token"].(string); token == "" {
			t.Error("render payload has no fetch_token")
		}
		versions, _ := resp.Data["versions"].([]any)
		if len(versions) != 2 {
			t.Errorf("versions = %v, want 2 entries", versions)
		}
	})

	t.Run("invalid release falls back to current without redirecting", func(t *testing.T) {
		ts := newTestServer(t)
		ts.publish(t, "alpha", "v1-text")
		ts.update(t, "alpha", "v2-text")

		resp := ts.do(t, httptest.NewRequest(http.MethodGet, "/articles/alpha/release/99/", nil))
		if resp.Code != http.StatusOK || !resp.Success {
			t.Fatalf("response = %+v, want 200 success", resp)
		}
		if v := resp.Data["version"].(float64); v != 2 {
			t.Errorf("version = %v, want 2 (fallback)", v)
		}
	})

	t.Run("unknown slug", func(t *testing.T) {
		ts := newTestServer(t)
		resp := ts.do(t, httptest.NewRequest(http.MethodGet, "/articles/missing", nil))
		if resp.Code != http.StatusNotFound {
			t.Errorf("code = %d, want 404", resp.Code)
		}
	})
}

func TestFetchVersionEndpoint(t *testing.T) {
	t.Run("returns the requested version", func(t *testing.T) {
		ts := newTestServer(t)
		articleID := ts.publish(t, "alpha", "v1-text")
		ts.update(t, "alpha", "v2-text")

		resp := ts.postJSON(t, "/fetch-version",
			`{"article_id":"`+articleID+`","version":"1","token":"`+ts.handler.tokens.Issue()+`"}`)
		if !resp.Success {
			t.Fatalf("response = %+v", resp)
		}
		if resp.Data["content"] != "v1-text" {
			t.Errorf("content = %v, want v1-text", resp.Data["content"])
		}
	})

	t.Run("accepts form encoding", func(t *testing.T) {
		ts := newTestServer(t)
		articleID := ts.publish(t, "alpha", "v1-text")

		form := url.Values{
			"article_id": {articleID},
			"version":    {"1"},
			"token":      {ts.handler.tokens.Issue()},
		}
		req := httptest.NewRequest(http.MethodPost, "/fetch-version", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp := ts.do(t, req)
		if !resp.Success {
			t.Fatalf("response = %+v", resp)
		}
		if resp.Data["content"] != "v1-text" {
			t.Errorf("content = %v, want v1-text", resp.Data["content"])
		}
	})

	t.Run("invalid token is rejected before any lookup", func(t *testing.T) {
		ts := newTestServer(t)
		articleID := ts.publish(t, "alpha", "v1-text")

		resp := ts.postJSON(t, "/fetch-version",
			`{"article_id":"`+articleID+`","version":"1","token":"bogus"}`)
		if resp.Code != http.StatusForbidden || resp.Success {
			t.Fatalf("response = %+v, want 403 failure", resp)
		}
		if resp.Data["message"] != "Invalid security token." {
			t.Errorf("message = %v, want %q", resp.Data["message"], "Invalid security token.")
		}
	})

	t.Run("unknown article", func(t *testing.T) {
		ts := newTestServer(t)
		resp := ts.postJSON(t, "/fetch-version",
			`{"article_id":"nope","version":"1","token":"`+ts.handler.tokens.Issue()+`"}`)
		if resp.Success {
			t.Fatal("lookup of unknown article succeeded")
		}
		if resp.Data["message"] != "Version history not found." {
			t.Errorf("message = %v, want %q", resp.Data["message"], "Version history not found.")
		}
	})

	t.Run("unknown version", func(t *testing.T) {
		ts := newTestServer(t)
		articleID := ts.publish(t, "alpha", "v1-text")

		resp := ts.postJSON(t, "/fetch-version",
			`{"article_id":"`+articleID+`","version":"99","token":"`+ts.handler.tokens.Issue()+`"}`)
		if resp.Success {
			t.Fatal("lookup of unknown version succeeded")
		}
		if resp.Data["message"] != "Version not found." {
			t.Errorf("message = %v, want %q", resp.Data["message"], "Version not found.")
		}
	})
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if !resp.Success || resp.Data["status"] != "ok" {
		t.Errorf("response = %+v, want status ok", resp)
	}
}
