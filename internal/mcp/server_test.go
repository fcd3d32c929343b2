package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/spetr/grounded-context-mcp/internal/config"
	"github.com/spetr/grounded-context-mcp/internal/corpus"
	"github.com/spetr/grounded-context-mcp/internal/toolset"
	"github.com/spetr/grounded-context-mcp/pkg/types"
)

type stubProber struct{}

func (stubProber) Snapshot(ctx context.Context, root string) types.VcsSnapshot {
	return types.VcsSnapshot{
		OK:                   false,
		Root:                 root,
		StatusPorcelain:      []string{},
		WorktreeChangedFiles: []string{},
		LastCommitFiles:      []string{},
		Error:                "[git error] rc=128",
	}
}

func newTestServer(t *testing.T, root string) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	ts := toolset.New(toolset.Config{
		Scanner: corpus.NewFSScanner(cfg.Scan, nil),
		Prober:  stubProber{},
		Config:  cfg,
	})
	s, err := New(Config{Toolset: ts, Config: cfg, DefaultRoot: root})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func setupRepo(t *testing.T) string {
	t.Helper()
	root, err := corpus.ResolveRoot(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"a.py":       "print('hello')",
		"a.txt":      "hello world",
		"service.py": "def handler(): raise Exception('error')",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

// callTool sends a tools/call request through the JSON-RPC entry point.
func callTool(t *testing.T, s *Server, name string, args map[string]any) mcp.CallToolResult {
	t.Helper()
	msg, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": name, "arguments": args},
	})
	if err != nil {
		t.Fatal(err)
	}

	resp, ok := s.HandleMessage(context.Background(), msg).(mcp.JSONRPCResponse)
	if !ok {
		t.Fatalf("tools/call %s did not return a JSON-RPC response", name)
	}
	result, ok := resp.Result.(mcp.CallToolResult)
	if !ok {
		t.Fatalf("unexpected result type %T", resp.Result)
	}
	return result
}

func resultText(t *testing.T, r mcp.CallToolResult) string {
	t.Helper()
	if len(r.Content) == 0 {
		t.Fatal("empty result content")
	}
	tc, ok := mcp.AsTextContent(r.Content[0])
	if !ok {
		t.Fatalf("unexpected content type %T", r.Content[0])
	}
	return tc.Text
}

func TestNewRequiresToolset(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error without toolset")
	}
}

func TestRegisteredTools(t *testing.T) {
	s := newTestServer(t, t.TempDir())

	var names []string
	for _, d := range s.Descriptors() {
		names = append(names, d.Name())
		if d.Description() == "" {
			t.Errorf("tool %s has no description", d.Name())
		}
		if !json.Valid(d.InputSchema()) {
			t.Errorf("tool %s has invalid input schema", d.Name())
		}
		if out := d.OutputSchema(); out == nil || !strings.Contains(string(out), "properties") {
			t.Errorf("tool %s has no structured output schema: %s", d.Name(), out)
		}
	}

	want := []string{"env_specs", "get_grounded_context", "git_insights", "recommend_context", "search_repo"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("tool names mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarizeArguments(t *testing.T) {
	s := newTestServer(t, t.TempDir())

	tests := []struct {
		tool string
		want ToolInfo
	}{
		{ToolSearchRepo, ToolInfo{Required: []string{"query"}, Optional: []string{"file_globs", "max_results", "root"}}},
		{ToolGitInsights, ToolInfo{Optional: []string{"root"}}},
		{ToolGetGroundedContext, ToolInfo{Required: []string{"paths"}, Optional: []string{"max_chars", "root"}}},
		{ToolEnvSpecs, ToolInfo{}},
		{ToolRecommendContext, ToolInfo{Required: []string{"query"}, Optional: []string{"intent", "max_chars", "max_files_for_context", "max_results", "root"}}},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			d, err := s.Describe(tt.tool)
			if err != nil {
				t.Fatalf("Describe failed: %v", err)
			}
			got := Summarize(d)
			if diff := cmp.Diff(tt.want.Required, got.Required); diff != "" {
				t.Errorf("required mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.want.Optional, got.Optional); diff != "" {
				t.Errorf("optional mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDescribeUnknownSuggestsSimilar(t *testing.T) {
	s := newTestServer(t, t.TempDir())

	_, err := s.Describe("serch_repo")
	if err == nil {
		t.Fatal("expected error for unknown tool")
	}
	if !strings.Contains(err.Error(), "search_repo") {
		t.Errorf("error %q should suggest search_repo", err)
	}

	if _, err := s.Describe("zzzzzzzzzzzzzzzzzzzzzzzz"); err == nil || strings.Contains(err.Error(), "did you mean") {
		t.Errorf("unexpected suggestion for unrelated name: %v", err)
	}
}

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"", "", 0},
		{"a", "", 1},
		{"", "a", 1},
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"abc", "adc", 1},
		{"search", "serach", 2},
		{"env_specs", "envspecs", 1},
	}

	for _, tt := range tests {
		result := levenshteinDistance(tt.a, tt.b)
		if result != tt.expected {
			t.Errorf("levenshteinDistance(%q, %q) = %d, expected %d", tt.a, tt.b, result, tt.expected)
		}
	}
}

func TestCallSearchRepo(t *testing.T) {
	root := setupRepo(t)
	s := newTestServer(t, root)

	res := callTool(t, s, ToolSearchRepo, map[string]any{"query": "hello", "file_globs": []any{"*.py"}})
	if res.IsError {
		t.Fatalf("unexpected error: %s", resultText(t, res))
	}

	got, ok := res.StructuredContent.(*types.SearchResult)
	if !ok {
		t.Fatalf("structured content is %T", res.StructuredContent)
	}
	// service.py carries only the definition-marker bonus.
	wantHits := []types.SearchHit{
		{Path: "a.py", Score: 0.5},
		{Path: "service.py", Score: 0.25},
	}
	if len(got.Results) != len(wantHits) {
		t.Fatalf("results = %+v, want %d hits", got.Results, len(wantHits))
	}
	for i, want := range wantHits {
		if got.Results[i].Path != want.Path || got.Results[i].Score != want.Score {
			t.Errorf("result %d = {%s %v}, want {%s %v}", i, got.Results[i].Path, got.Results[i].Score, want.Path, want.Score)
		}
	}

	var decoded types.SearchResult
	if err := json.Unmarshal([]byte(resultText(t, res)), &decoded); err != nil {
		t.Fatalf("text fallback is not JSON: %v", err)
	}
	if diff := cmp.Diff(*got, decoded); diff != "" {
		t.Errorf("text fallback differs from structured content (-structured +text):\n%s", diff)
	}
}

func TestCallGetGroundedContext(t *testing.T) {
	root := setupRepo(t)
	s := newTestServer(t, root)

	res := callTool(t, s, ToolGetGroundedContext, map[string]any{"paths": []any{"a.txt", "missing.txt"}, "max_chars": 5})
	if res.IsError {
		t.Fatalf("unexpected error: %s", resultText(t, res))
	}
	got := res.StructuredContent.(*types.GroundedContext)

	want := []types.ContextItem{
		{Path: "a.txt", OK: true, Content: "hello"},
		{Path: "missing.txt", OK: false, Error: "unreadable or missing"},
	}
	if diff := cmp.Diff(want, got.Items); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	if got.MaxChars != 5 {
		t.Errorf("MaxChars = %d, want 5", got.MaxChars)
	}
}

func TestCallRecommendContext(t *testing.T) {
	root := setupRepo(t)
	s := newTestServer(t, root)

	res := callTool(t, s, ToolRecommendContext, map[string]any{"query": "error", "intent": "debug", "root": root})
	if res.IsError {
		t.Fatalf("unexpected error: %s", resultText(t, res))
	}
	got := res.StructuredContent.(*types.RecommendationResult)

	if got.Intent != types.IntentDebug {
		t.Errorf("Intent = %q, want debug", got.Intent)
	}
	if got.Confidence < 0.35 {
		t.Errorf("Confidence = %v, want >= 0.35", got.Confidence)
	}
	if len(got.RecommendedFiles) == 0 || got.RecommendedFiles[0].Path != "service.py" {
		t.Errorf("RecommendedFiles = %+v, want service.py first", got.RecommendedFiles)
	}
	if got.Git.OK {
		t.Error("expected failed git snapshot")
	}
}

func TestCallEnvSpecsAndGitInsights(t *testing.T) {
	root := setupRepo(t)
	s := newTestServer(t, root)

	env := callTool(t, s, ToolEnvSpecs, nil).StructuredContent.(*types.EnvSpecs)
	if env.Server != "grounded-coding-context" || env.Scope != "local repo only" {
		t.Errorf("env = %+v", env)
	}

	snap := callTool(t, s, ToolGitInsights, map[string]any{}).StructuredContent.(*types.VcsSnapshot)
	if snap.Root != root {
		t.Errorf("Root = %q, want default root %q", snap.Root, root)
	}
}

func TestCallArgumentErrors(t *testing.T) {
	root := setupRepo(t)
	s := newTestServer(t, root)

	tests := []struct {
		tool string
		args map[string]any
		want string
	}{
		{ToolSearchRepo, map[string]any{}, "query"},
		{ToolRecommendContext, map[string]any{}, "query"},
		{ToolRecommendContext, map[string]any{"query": "x", "intent": "refactor"}, "invalid intent"},
		{ToolGetGroundedContext, map[string]any{}, "paths"},
		{ToolGetGroundedContext, map[string]any{"paths": []any{"a.txt", 7}}, "not a string"},
		{ToolSearchRepo, map[string]any{"query": "x", "root": filepath.Join(root, "missing")}, "invalid root"},
	}

	for i, tt := range tests {
		t.Run(fmt.Sprintf("%s_%d", tt.tool, i), func(t *testing.T) {
			res := callTool(t, s, tt.tool, tt.args)
			if !res.IsError {
				t.Fatalf("expected tool error, got %+v", res)
			}
			if text := resultText(t, res); !strings.Contains(text, tt.want) {
				t.Errorf("error %q should mention %q", text, tt.want)
			}
		})
	}
}

func TestToolsListOverJSONRPC(t *testing.T) {
	s := newTestServer(t, t.TempDir())

	resp, ok := s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)).(mcp.JSONRPCResponse)
	if !ok {
		t.Fatal("tools/list did not return a JSON-RPC response")
	}
	list, ok := resp.Result.(mcp.ListToolsResult)
	if !ok {
		t.Fatalf("unexpected result type %T", resp.Result)
	}
	if len(list.Tools) != 5 {
		t.Errorf("tools = %d, want 5", len(list.Tools))
	}
}
