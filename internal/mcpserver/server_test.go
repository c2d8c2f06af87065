package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/orgsync/internal/orgservice"
	"github.com/starford/orgsync/internal/testutil"
)

var vault = map[string]string{
	"projects.org": `#+TITLE: Projects
#+CATEGORY: work
* TODO Ship release :release:
write the changelog
** DONE Tag commit
* Ideas :someday:
`,
	"home.org": `* Groceries :errand:
`,
}

func testServer(t *testing.T) (*Server, *testutil.Env) {
	t.Helper()
	env := testutil.NewEnv(t, vault)
	return New(env.Service, "test"), env
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"list_documents":               srv.listDocuments,
		"get_document":                 srv.getDocument,
		"get_headline":                 srv.getHeadline,
		"find_headlines_with_tag":      srv.findByTag,
		"find_headlines_with_category": srv.findByCategory,
		"find_headlines_with_status":   srv.findByStatus,
		"list_tags":                    srv.listTags,
		"list_categories":              srv.listCategories,
		"search_headlines":             srv.searchHeadlines,
		"get_updates":                  srv.getUpdates,
		"list_failures":                srv.listFailures,
		"get_model_contract":           srv.getModelContract,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func decode(t *testing.T, r *mcp.CallToolResult, v any) {
	t.Helper()
	if r.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(r))
	}
	if err := json.Unmarshal([]byte(resultText(r)), v); err != nil {
		t.Fatalf("decode %q: %v", resultText(r), err)
	}
}

func TestListAndGetDocument(t *testing.T) {
	srv, env := testServer(t)

	var items []orgservice.DocumentListItem
	decode(t, callTool(t, srv, "list_documents", map[string]interface{}{}), &items)
	if len(items) != 2 {
		t.Fatalf("documents = %d, want 2", len(items))
	}

	decode(t, callTool(t, srv, "list_documents", map[string]interface{}{"tag": "release"}), &items)
	if len(items) != 1 || items[0].Path != env.Path("projects.org") {
		t.Fatalf("tagged documents = %+v", items)
	}

	var doc struct {
		ID        string `json:"id"`
		Title     string `json:"title"`
		Headlines []struct {
			Children []struct {
				ID string `json:"id"`
			} `json:"children"`
		} `json:"headlines"`
	}
	decode(t, callTool(t, srv, "get_document", map[string]interface{}{"document": env.Path("projects.org")}), &doc)
	if doc.Title != "Projects" {
		t.Errorf("title = %q", doc.Title)
	}
	if len(doc.Headlines) != 2 || len(doc.Headlines[0].Children) != 1 || doc.Headlines[0].Children[0].ID != "1.1" {
		t.Errorf("unexpected tree: %+v", doc.Headlines)
	}

	var h orgservice.HeadlineDetail
	decode(t, callTool(t, srv, "get_headline", map[string]interface{}{"document": doc.ID, "headline": "1.1"}), &h)
	if h.Title.Raw != "Tag commit" || h.Status == nil || !h.Status.IsClosed() {
		t.Errorf("headline = %+v", h)
	}
	if h.Category != "work" {
		t.Errorf("category = %q, want work", h.Category)
	}
}

func TestGetDocumentMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_document", map[string]interface{}{"document": "nope"})
	if !r.IsError {
		t.Fatal("expected error for missing document")
	}
	if !strings.Contains(resultText(r), "not found") {
		t.Errorf("error = %q", resultText(r))
	}

	r = callTool(t, srv, "get_document", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error for missing argument")
	}
}

func TestFindHeadlines(t *testing.T) {
	srv, _ := testServer(t)

	var hs []orgservice.HeadlineDetail
	decode(t, callTool(t, srv, "find_headlines_with_tag", map[string]interface{}{"tag": "errand"}), &hs)
	if len(hs) != 1 || hs[0].Title.Raw != "Groceries" {
		t.Fatalf("errand headlines = %+v", hs)
	}
	if hs[0].Category != "" {
		t.Errorf("category = %q, want empty without #+CATEGORY", hs[0].Category)
	}

	decode(t, callTool(t, srv, "find_headlines_with_category", map[string]interface{}{"category": "work"}), &hs)
	if len(hs) != 3 {
		t.Errorf("work headlines = %d, want 3", len(hs))
	}

	decode(t, callTool(t, srv, "find_headlines_with_status", map[string]interface{}{"state": "active"}), &hs)
	if len(hs) != 1 || hs[0].ID != "1" {
		t.Errorf("active = %+v", hs)
	}

	r := callTool(t, srv, "find_headlines_with_status", map[string]interface{}{"state": "waiting"})
	if !r.IsError {
		t.Error("expected error for unknown state")
	}
}

func TestListTagsAndSearch(t *testing.T) {
	srv, _ := testServer(t)

	var tags []struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	decode(t, callTool(t, srv, "list_tags", map[string]interface{}{}), &tags)
	names := map[string]bool{}
	for _, tg := range tags {
		names[tg.Name] = true
	}
	for _, want := range []string{"release", "someday", "errand"} {
		if !names[want] {
			t.Errorf("tag %q missing from %+v", want, tags)
		}
	}

	var res []struct {
		HeadlineID string `json:"headline_id"`
	}
	decode(t, callTool(t, srv, "search_headlines", map[string]interface{}{"query": "changelog"}), &res)
	if len(res) != 1 || res[0].HeadlineID != "1" {
		t.Errorf("search = %+v", res)
	}
}

func TestUpdatesAndContract(t *testing.T) {
	srv, _ := testServer(t)

	var entries []struct {
		Seq uint64 `json:"seq"`
	}
	decode(t, callTool(t, srv, "get_updates", map[string]interface{}{"since": float64(0)}), &entries)
	if len(entries) != 2 {
		t.Fatalf("updates = %d, want 2", len(entries))
	}
	decode(t, callTool(t, srv, "get_updates", map[string]interface{}{"since": float64(entries[0].Seq)}), &entries)
	if len(entries) != 1 {
		t.Errorf("updates since first = %d, want 1", len(entries))
	}

	var failures []any
	decode(t, callTool(t, srv, "list_failures", map[string]interface{}{}), &failures)
	if len(failures) != 0 {
		t.Errorf("failures = %+v", failures)
	}

	text := resultText(callTool(t, srv, "get_model_contract", map[string]interface{}{}))
	if !strings.Contains(text, "Headline id") {
		t.Error("contract text missing identifiers section")
	}
}
