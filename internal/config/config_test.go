package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spetr/grounded-context-mcp/pkg/types"
)

func TestValidateLogging(t *testing.T) {
	tests := []struct {
		level   string
		format  string
		wantErr bool
	}{
		{"info", "text", false},
		{"debug", "json", false},
		{"warn", "text", false},
		{"error", "json", false},
		{"verbose", "text", true},
		{"INFO", "text", true}, // case sensitive
		{"info", "xml", true},
	}

	for _, tt := range tests {
		t.Run(tt.level+"_"+tt.format, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Logging.Level = tt.level
			cfg.Logging.Format = tt.format
			errs := Validate(cfg)

			if hasErr := len(errs) > 0; hasErr != tt.wantErr {
				t.Errorf("Validate(level=%q, format=%q) hasErr=%v, want %v (%v)", tt.level, tt.format, hasErr, tt.wantErr, errs)
			}
			for _, err := range errs {
				if !errors.Is(err, types.ErrInvalidConfig) {
					t.Errorf("error %v does not wrap ErrInvalidConfig", err)
				}
			}
		})
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if errs := Validate(DefaultConfig()); len(errs) != 0 {
		t.Errorf("DefaultConfig() invalid: %v", errs)
	}
}

func TestDefaultTuningConstants(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.VCS.Timeout != 2*time.Second {
		t.Errorf("VCS.Timeout = %v, want 2s", cfg.VCS.Timeout)
	}
	if cfg.Limits.PreviewChars != 400 || cfg.Limits.SnippetChars != 800 {
		t.Errorf("preview/snippet = %d/%d, want 400/800", cfg.Limits.PreviewChars, cfg.Limits.SnippetChars)
	}
	if cfg.Scoring.ConfidenceFloor != 0.35 || cfg.Scoring.ConfidenceCeil != 0.95 || cfg.Scoring.ConfidenceEmpty != 0.25 {
		t.Errorf("unexpected confidence constants: %+v", cfg.Scoring)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scan.TextExtensions = []string{"go"}
	cfg.Limits.SnippetChars = 0
	cfg.Scoring.DebugBoost = -1
	cfg.Scoring.ConfidenceFloor = 0.99

	if errs := Validate(cfg); len(errs) != 4 {
		t.Errorf("expected 4 errors, got %d: %v", len(errs), errs)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, warnings, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(warnings) == 0 {
		t.Error("expected a warning about the missing config file")
	}
	if cfg.VCS.Binary != "git" {
		t.Errorf("VCS.Binary = %q, want git", cfg.VCS.Binary)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(ConfigDir(dir), 0755); err != nil {
		t.Fatal(err)
	}
	content := `vcs:
  timeout: 5s
limits:
  snippet_chars: 120
scoring:
  implement_boost: 1.5
logging:
  level: debug
`
	if err := os.WriteFile(ConfigPath(dir), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, _, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.VCS.Timeout != 5*time.Second {
		t.Errorf("VCS.Timeout = %v, want 5s", cfg.VCS.Timeout)
	}
	if cfg.Limits.SnippetChars != 120 {
		t.Errorf("SnippetChars = %d, want 120", cfg.Limits.SnippetChars)
	}
	if cfg.Limits.PreviewChars != 400 {
		t.Errorf("PreviewChars = %d, want default 400", cfg.Limits.PreviewChars)
	}
	if cfg.Scoring.ImplementBoost != 1.5 {
		t.Errorf("ImplementBoost = %v, want 1.5", cfg.Scoring.ImplementBoost)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("GROUNDED_VCS_BINARY", "/usr/local/bin/git")

	cfg, _, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.VCS.Binary != "/usr/local/bin/git" {
		t.Errorf("VCS.Binary = %q, want env override", cfg.VCS.Binary)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Limits.FileList = 42

	if err := Save(dir, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".grounded-context", "config.yaml")); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	loaded, _, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Limits.FileList != 42 {
		t.Errorf("FileList = %d, want 42", loaded.Limits.FileList)
	}
}

func TestCopyIsDeep(t *testing.T) {
	cfg := DefaultConfig()
	cp := cfg.Copy()
	cp.Scan.IgnoreDirs[0] = "changed"
	if cfg.Scan.IgnoreDirs[0] == "changed" {
		t.Error("Copy shares IgnoreDirs backing array")
	}
}

func TestCheckRejectsNegativeWeightsFromFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(ConfigDir(dir), 0755); err != nil {
		t.Fatal(err)
	}
	content := `scoring:
  path_match: -3.0
  definition_bonus: -0.25
`
	if err := os.WriteFile(ConfigPath(dir), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, _, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	err = Check(cfg)
	if !errors.Is(err, types.ErrInvalidConfig) {
		t.Fatalf("Check() = %v, want ErrInvalidConfig", err)
	}
	for _, key := range []string{"scoring.path_match", "scoring.definition_bonus"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("Check() error %q does not mention %s", err, key)
		}
	}

	if err := Check(DefaultConfig()); err != nil {
		t.Errorf("Check(DefaultConfig()) = %v, want nil", err)
	}
}
