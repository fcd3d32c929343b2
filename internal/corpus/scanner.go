// Package corpus enumerates and reads the text files of a repository.
package corpus

import (
	"context"
	"io/fs"
	"iter"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spetr/grounded-context-mcp/internal/config"
	"github.com/spetr/grounded-context-mcp/pkg/types"
)

// Scanner yields candidate text files under a root.
type Scanner interface {
	// Scan lazily yields files under root. When globs is non-empty only
	// files matching at least one glob are yielded; otherwise the
	// extension allow-list applies. Unreadable entries are skipped.
	Scan(ctx context.Context, root string, globs []string) iter.Seq[types.CandidateFile]
}

// FSScanner scans the local filesystem.
type FSScanner struct {
	ignoreDirs  []string
	extensions  map[string]bool
	maxFileSize int64
	logger      *slog.Logger
}

// NewFSScanner creates a filesystem scanner from scan configuration.
func NewFSScanner(cfg config.ScanConfig, logger *slog.Logger) *FSScanner {
	if logger == nil {
		logger = slog.Default()
	}
	exts := make(map[string]bool, len(cfg.TextExtensions))
	for _, ext := range cfg.TextExtensions {
		exts[strings.ToLower(ext)] = true
	}
	return &FSScanner{
		ignoreDirs:  cfg.IgnoreDirs,
		extensions:  exts,
		maxFileSize: cfg.MaxFileSize,
		logger:      logger,
	}
}

// Scan implements Scanner. Files are yielded in lexical walk order, which
// makes ranking tie-breaks deterministic.
func (s *FSScanner) Scan(ctx context.Context, root string, globs []string) iter.Seq[types.CandidateFile] {
	return func(yield func(types.CandidateFile) bool) {
		stopped := false
		scanned, yielded := 0, 0

		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				s.logger.Debug("skipping unreadable entry", "path", path, "error", err)
				if d != nil && d.IsDir() && path != root {
					return filepath.SkipDir
				}
				return nil
			}
			if ctx.Err() != nil {
				return filepath.SkipAll
			}

			if d.IsDir() {
				if path != root && s.ignored(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}

			// Symlinks and special files are never followed.
			if !d.Type().IsRegular() {
				return nil
			}
			if s.ignored(d.Name()) {
				return nil
			}

			relPath, err := filepath.Rel(root, path)
			if err != nil {
				return nil
			}
			relPath = filepath.ToSlash(relPath)

			if len(globs) > 0 {
				if !matchAnyGlob(globs, relPath) {
					return nil
				}
			} else if !s.extensions[strings.ToLower(filepath.Ext(relPath))] {
				return nil
			}

			scanned++
			info, err := d.Info()
			if err != nil {
				return nil
			}
			if s.maxFileSize > 0 && info.Size() > s.maxFileSize {
				s.logger.Debug("skipping large file", "path", relPath, "size", info.Size())
				return nil
			}

			content, err := ReadText(path)
			if err != nil {
				s.logger.Debug("skipping unreadable file", "path", relPath, "error", err)
				return nil
			}

			yielded++
			if !yield(types.CandidateFile{Path: relPath, Content: content, Size: info.Size()}) {
				stopped = true
				return filepath.SkipAll
			}
			return nil
		})

		s.logger.Debug("corpus scan finished", "root", root, "matched", scanned, "yielded", yielded, "stopped", stopped)
	}
}

// ignored reports whether a path segment is in the ignore set.
func (s *FSScanner) ignored(name string) bool {
	return Ignored(s.ignoreDirs, name)
}

// Ignored reports whether a single path segment matches any ignore pattern,
// either literally or as a filepath.Match glob.
func Ignored(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if pattern == name {
			return true
		}
		if m, _ := filepath.Match(pattern, name); m {
			return true
		}
	}
	return false
}

func matchAnyGlob(globs []string, relPath string) bool {
	for _, g := range globs {
		if matchGlobPath(g, relPath) {
			return true
		}
	}
	return false
}
