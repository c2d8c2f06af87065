package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/starford/orgsync/internal/coverage"
	"github.com/starford/orgsync/internal/testutil"
)

var vault = map[string]string{
	"work.org": `#+TITLE: Work
#+CATEGORY: job
* TODO Write report :writing:
draft the quarterly numbers
** DONE Collect data
* Meeting :people:
`,
	"home.org": `* Garden :garden:
`,
}

// testEnv sets up a scanned temp vault, SQLite DB, service, and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*testutil.Env, http.Handler) {
	t.Helper()
	env := testutil.NewEnv(t, vault)
	router := NewRouter(env.Service, authToken != "", authToken, nil)
	return env, router
}

func get(t *testing.T, router http.Handler, target string, out any) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if out != nil && w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s: %v", target, err)
		}
	}
	return w.Code
}

func TestListAndGetDocument(t *testing.T) {
	env, router := testEnv(t, "")

	var list DocumentListResponse
	if code := get(t, router, "/documents", &list); code != http.StatusOK {
		t.Fatalf("list status = %d", code)
	}
	if list.Total != 2 || len(list.Documents) != 2 {
		t.Fatalf("list = %+v", list)
	}

	var byTag DocumentListResponse
	get(t, router, "/documents?tag=garden", &byTag)
	if byTag.Total != 1 || byTag.Documents[0].Path != env.Path("home.org") {
		t.Errorf("tag filter = %+v", byTag)
	}

	var doc map[string]any
	if code := get(t, router, "/documents/"+list.Documents[1].ID, &doc); code != http.StatusOK {
		t.Fatalf("get status = %d", code)
	}
	if doc["title"] != "Work" {
		t.Errorf("title = %v, want Work", doc["title"])
	}

	// Encoded path works as well as the id.
	encoded := url.PathEscape(env.Path("work.org"))
	if code := get(t, router, "/documents/"+encoded, &doc); code != http.StatusOK {
		t.Errorf("get by path status = %d", code)
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	if code := get(t, router, "/documents/nonexistent", nil); code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", code)
	}
}

func TestGetHeadline(t *testing.T) {
	env, router := testEnv(t, "")
	work, _ := env.Repo.GetByPath(env.Path("work.org"))

	var h HeadlineDetail
	if code := get(t, router, "/documents/"+work.ID+"/headlines/1.1", &h); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if h.Title.Raw != "Collect data" || h.Status == nil || !h.Status.IsClosed() {
		t.Errorf("headline = %+v", h)
	}
	if h.Category != "job" {
		t.Errorf("category = %q, want job", h.Category)
	}
}

func TestDocumentForHeadline(t *testing.T) {
	env, router := testEnv(t, "")

	var item DocumentListItem
	if code := get(t, router, "/headlines/1.1/document", &item); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if item.Path != env.Path("work.org") {
		t.Errorf("path = %q", item.Path)
	}
	if code := get(t, router, "/headlines/abc/document", nil); code != http.StatusBadRequest {
		t.Errorf("invalid id = %d, want 400", code)
	}
	if code := get(t, router, "/headlines/7.7/document", nil); code != http.StatusNotFound {
		t.Errorf("unknown id = %d, want 404", code)
	}
}

func TestTagsAndCategories(t *testing.T) {
	_, router := testEnv(t, "")

	var tags TagListResponse
	get(t, router, "/tags", &tags)
	if len(tags.Tags) != 3 {
		t.Errorf("tags = %+v, want 3", tags.Tags)
	}

	var hs HeadlineListResponse
	get(t, router, "/tags/writing/headlines", &hs)
	if len(hs.Headlines) != 1 || hs.Headlines[0].ID != "1" {
		t.Errorf("writing headlines = %+v", hs.Headlines)
	}

	var cats CategoryListResponse
	get(t, router, "/categories", &cats)
	found := false
	for _, c := range cats.Categories {
		if c.Name == "job" && len(c.Headlines) == 3 {
			found = true
		}
	}
	if !found {
		t.Errorf("categories = %+v, want job with 3 headlines", cats.Categories)
	}

	get(t, router, "/categories/job/headlines", &hs)
	if len(hs.Headlines) != 3 {
		t.Errorf("job headlines = %d, want 3", len(hs.Headlines))
	}
}

func TestUpdatesEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	var all UpdateListResponse
	if code := get(t, router, "/updates", &all); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(all.Updates) != 2 || all.LastSeq != 2 {
		t.Errorf("updates = %+v", all)
	}

	var since UpdateListResponse
	get(t, router, "/updates?since=1", &since)
	if len(since.Updates) != 1 || since.Updates[0].Seq != 2 {
		t.Errorf("since=1 = %+v", since.Updates)
	}

	if code := get(t, router, "/updates?since=-1", nil); code != http.StatusBadRequest {
		t.Errorf("bad since = %d, want 400", code)
	}
}

func TestFailuresEndpoint(t *testing.T) {
	env, router := testEnv(t, "")
	testutil.WriteFile(t, env.Dir, "work.org", "* Broken \xff\n")
	env.Loop.Notify(env.Path("work.org"))

	deadline := time.Now().Add(3 * time.Second)
	var resp FailureListResponse
	for time.Now().Before(deadline) {
		get(t, router, "/failures", &resp)
		if len(resp.Failures) == 1 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if len(resp.Failures) != 1 || resp.Failures[0].Kind != "parse_failure" {
		t.Fatalf("failures = %+v", resp.Failures)
	}

	// The previous revision stays queryable.
	var doc map[string]any
	if code := get(t, router, "/documents/"+url.PathEscape(env.Path("work.org")), &doc); code != http.StatusOK {
		t.Fatalf("get status = %d", code)
	}
	if doc["failure"] == nil {
		t.Error("document detail should carry the failure")
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	var resp SearchResponse
	if code := get(t, router, "/search?q=quarterly", &resp); code != http.StatusOK {
		t.Fatalf("search status = %d", code)
	}
	if len(resp.Results) != 1 || resp.Results[0].HeadlineID != "1" {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")
	if code := get(t, router, "/search", nil); code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", code)
	}
}

func TestTodoKeywordsEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	var cfg map[string]any
	if code := get(t, router, "/todo-keywords", &cfg); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if cfg["default_sequence"] == nil && cfg["sequences"] == nil {
		t.Errorf("unexpected config %v", cfg)
	}
	if code := get(t, router, "/todo-keywords?document=missing", nil); code != http.StatusNotFound {
		t.Errorf("unknown document = %d, want 404", code)
	}
}

func TestPathsEndpoints(t *testing.T) {
	env, router := testEnv(t, "")

	var paths PathsResponse
	get(t, router, "/paths", &paths)
	if len(paths.Paths) != 1 || paths.Paths[0].Path != env.Dir {
		t.Fatalf("paths = %+v", paths)
	}

	body, _ := json.Marshal(PathsRequest{Paths: []coverage.MonitoredPath{
		{Path: env.Path("home.org"), Type: coverage.TypeFile, ParseEnabled: true},
	}})
	req := httptest.NewRequest(http.MethodPut, "/paths", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("put status = %d, body = %s", w.Code, w.Body.String())
	}

	var list DocumentListResponse
	get(t, router, "/documents", &list)
	if list.Total != 1 || list.Documents[0].Path != env.Path("home.org") {
		t.Errorf("documents after narrowing = %+v", list)
	}

	body, _ = json.Marshal(PathsRequest{Paths: []coverage.MonitoredPath{{Path: "/x", Type: "socket"}}})
	req = httptest.NewRequest(http.MethodPut, "/paths", bytes.NewReader(body))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid coverage = %d, want 422", w.Code)
	}

	req = httptest.NewRequest(http.MethodPut, "/paths", bytes.NewReader([]byte("{")))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	if code := get(t, router, "/documents", nil); code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")
	if code := get(t, router, "/documents", nil); code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", code)
	}
}

// SSE endpoint auth tests.

func TestSSEEvents_AuthProtected(t *testing.T) {
	router := testEnvWithSSE(t, true, "secret")

	// No token → 401.
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthDisabled(t *testing.T) {
	router := testEnvWithSSE(t, false, "")

	// Disabled mode → should not 401. SSE handler will write 200 and block,
	// so we cancel the context after a short time.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE should not require auth when disabled")
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router := testEnvWithSSE(t, true, "tok")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

// testEnvWithSSE creates a router with a dummy SSE handler to test auth on /events.
func testEnvWithSSE(t *testing.T, authEnabled bool, token string) http.Handler {
	t.Helper()
	env := testutil.NewEnv(t, nil)

	// Minimal SSE handler: writes headers and blocks until context done.
	sseHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
	return NewRouter(env.Service, authEnabled, token, sseHandler)
}
