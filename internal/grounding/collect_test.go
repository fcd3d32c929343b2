package grounding

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/spetr/grounded-context-mcp/internal/corpus"
	"github.com/spetr/grounded-context-mcp/pkg/types"
)

func setupRoot(t *testing.T, files map[string]string) string {
	t.Helper()
	root, err := corpus.ResolveRoot(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestCollectReadsFiles(t *testing.T) {
	root := setupRoot(t, map[string]string{"a.txt": "hello world"})

	got, err := NewCollector(nil).Collect(context.Background(), root, []string{"a.txt"}, 6000)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	want := &types.GroundedContext{
		Root:     root,
		Items:    []types.ContextItem{{Path: "a.txt", OK: true, Content: "hello world"}},
		MaxChars: 6000,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Collect mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectMissingFile(t *testing.T) {
	root := setupRoot(t, map[string]string{"a.txt": "hello"})

	got, err := NewCollector(nil).Collect(context.Background(), root, []string{"missing.txt", "a.txt"}, 6000)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	want := []types.ContextItem{
		{Path: "missing.txt", OK: false, Error: "unreadable or missing"},
		{Path: "a.txt", OK: true, Content: "hello"},
	}
	if diff := cmp.Diff(want, got.Items); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectRejectsTraversal(t *testing.T) {
	root := setupRoot(t, map[string]string{"a.txt": "hello"})

	got, err := NewCollector(nil).Collect(context.Background(), root, []string{"../etc/passwd", "/etc/hosts"}, 6000)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(got.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got.Items))
	}
	for _, item := range got.Items {
		if item.OK || item.Error != "path outside root" {
			t.Errorf("item %q = %+v, want path outside root", item.Path, item)
		}
	}
}

func TestCollectRejectsSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on windows")
	}
	outside := setupRoot(t, map[string]string{"secret.txt": "secret"})
	root := setupRoot(t, nil)
	if err := os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(root, "link.txt")); err != nil {
		t.Fatal(err)
	}

	got, err := NewCollector(nil).Collect(context.Background(), root, []string{"link.txt"}, 6000)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if got.Items[0].OK || strings.Contains(got.Items[0].Content, "secret") {
		t.Errorf("symlink escape was read: %+v", got.Items[0])
	}
}

func TestCollectBudget(t *testing.T) {
	root := setupRoot(t, map[string]string{
		"a.txt": strings.Repeat("a", 40),
		"b.txt": strings.Repeat("b", 40),
		"c.txt": strings.Repeat("c", 40),
		"u.txt": strings.Repeat("é", 40),
	})

	tests := []struct {
		name      string
		paths     []string
		maxChars  int
		wantItems int
		wantTotal int
	}{
		{"fits", []string{"a.txt", "b.txt"}, 100, 2, 80},
		{"truncates last", []string{"a.txt", "b.txt", "c.txt"}, 100, 3, 100},
		{"stops when exhausted", []string{"a.txt", "b.txt", "c.txt"}, 80, 2, 80},
		{"zero budget", []string{"a.txt"}, 0, 0, 0},
		{"counts runes", []string{"u.txt"}, 10, 1, 10},
		{"failures do not consume budget", []string{"nope.txt", "a.txt"}, 40, 2, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewCollector(nil).Collect(context.Background(), root, tt.paths, tt.maxChars)
			if err != nil {
				t.Fatalf("Collect failed: %v", err)
			}
			if len(got.Items) != tt.wantItems {
				t.Errorf("items = %d, want %d", len(got.Items), tt.wantItems)
			}
			if got.TotalChars() != tt.wantTotal {
				t.Errorf("total chars = %d, want %d", got.TotalChars(), tt.wantTotal)
			}
			if got.TotalChars() > tt.maxChars {
				t.Errorf("budget exceeded: %d > %d", got.TotalChars(), tt.maxChars)
			}
		})
	}
}

func TestCollectCancelled(t *testing.T) {
	root := setupRoot(t, map[string]string{"a.txt": "hello"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewCollector(nil).Collect(ctx, root, []string{"a.txt"}, 100); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
