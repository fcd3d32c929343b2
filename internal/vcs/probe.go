package vcs

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spetr/grounded-context-mcp/internal/config"
	"github.com/spetr/grounded-context-mcp/pkg/types"
)

// statusScanLines bounds how many porcelain lines are parsed for changed files.
const statusScanLines = 200

// Prober produces a snapshot of version control state for a root.
type Prober interface {
	// Snapshot never fails: problems are reported through OK and Error.
	Snapshot(ctx context.Context, root string) types.VcsSnapshot
}

// Probe runs the fixed set of read-only git queries.
type Probe struct {
	runner      Runner
	timeout     time.Duration
	statusLines int
	fileList    int
	logger      *slog.Logger
}

// NewProbe creates a probe from a runner and configuration.
func NewProbe(runner Runner, cfg *config.Config, logger *slog.Logger) *Probe {
	if logger == nil {
		logger = slog.Default()
	}
	return &Probe{
		runner:      runner,
		timeout:     cfg.VCS.Timeout,
		statusLines: cfg.Limits.StatusLines,
		fileList:    cfg.Limits.FileList,
		logger:      logger,
	}
}

// Snapshot implements Prober. Each query has its own timeout; one failing
// query never prevents the others from running.
func (p *Probe) Snapshot(ctx context.Context, root string) types.VcsSnapshot {
	snap := types.VcsSnapshot{
		Root:                 root,
		StatusPorcelain:      []string{},
		WorktreeChangedFiles: []string{},
		LastCommitFiles:      []string{},
	}

	queries := [][]string{
		{"rev-parse", "--abbrev-ref", "HEAD"},
		{"log", "-1", "--pretty=format:%h %s (%an)"},
		{"status", "--porcelain"},
		{"show", "--name-only", "--pretty=format:", "HEAD"},
	}

	var markers []string
	succeeded := 0
	for i, args := range queries {
		res := p.runner.Run(ctx, root, args, p.timeout)
		if !res.OK() {
			markers = append(markers, res.Marker())
			continue
		}
		succeeded++
		switch i {
		case 0:
			snap.Branch = strings.TrimSpace(res.Output)
		case 1:
			snap.LastCommit = strings.TrimSpace(res.Output)
		case 2:
			lines := splitLines(res.Output)
			snap.Dirty = len(lines) > 0
			snap.StatusPorcelain = head(lines, p.statusLines)
			snap.WorktreeChangedFiles = head(ParseStatusFiles(head(lines, statusScanLines)), p.fileList)
		case 3:
			snap.LastCommitFiles = head(splitLines(res.Output), p.fileList)
		}
	}

	snap.OK = succeeded > 0
	if len(markers) > 0 {
		snap.Error = strings.Join(markers, "; ")
	}

	p.logger.Debug("vcs snapshot", "root", root, "ok", snap.OK, "branch", snap.Branch, "dirty", snap.Dirty, "failed", len(markers))
	return snap
}

// ParseStatusFiles extracts file paths from `git status --porcelain` lines,
// de-duplicated in first-seen order. For renames the destination path is
// used; quoted paths are unquoted.
func ParseStatusFiles(lines []string) []string {
	seen := make(map[string]bool)
	files := []string{}
	for _, line := range lines {
		if len(line) < 4 {
			continue
		}
		path := strings.TrimSpace(line[3:])
		if i := strings.Index(path, " -> "); i >= 0 {
			path = path[i+4:]
		}
		if strings.HasPrefix(path, `"`) {
			if unq, err := strconv.Unquote(path); err == nil {
				path = unq
			}
		}
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		files = append(files, path)
	}
	return files
}

func splitLines(out string) []string {
	lines := []string{}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func head(s []string, n int) []string {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}
