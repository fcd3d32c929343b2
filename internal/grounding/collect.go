// Package grounding assembles literal file content under a shared character budget.
package grounding

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spetr/grounded-context-mcp/internal/corpus"
	"github.com/spetr/grounded-context-mcp/pkg/types"
)

// Collector reads files under a root into a GroundedContext.
type Collector struct {
	logger *slog.Logger
}

// NewCollector creates a collector.
func NewCollector(logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{logger: logger}
}

// Collect reads paths in order and appends their content until maxChars
// characters have been emitted in total. root must already be resolved.
//
// A path that escapes root or cannot be read yields an item with OK=false
// and does not consume budget. Once the budget is exhausted collection
// stops, so later paths get no item at all.
func (c *Collector) Collect(ctx context.Context, root string, paths []string, maxChars int) (*types.GroundedContext, error) {
	out := &types.GroundedContext{
		Root:     root,
		Items:    []types.ContextItem{},
		MaxChars: maxChars,
	}

	total := 0
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rel, err := corpus.Resolve(root, p)
		if err != nil {
			out.Items = append(out.Items, failed(p, err))
			continue
		}

		content, err := corpus.ReadUnder(root, rel)
		if err != nil {
			c.logger.Debug("grounded read failed", "path", p, "error", err)
			out.Items = append(out.Items, failed(p, err))
			continue
		}

		remaining := maxChars - total
		if remaining <= 0 {
			c.logger.Debug("grounded context budget exhausted", "path", p, "max_chars", maxChars)
			break
		}

		chunk := types.Truncate(content, remaining)
		total += len([]rune(chunk))
		out.Items = append(out.Items, types.ContextItem{Path: p, OK: true, Content: chunk})
	}

	return out, nil
}

// failed renders an error as a context item with a stable message.
func failed(path string, err error) types.ContextItem {
	msg := types.ErrUnreadable.Error()
	if errors.Is(err, types.ErrPathOutsideRoot) {
		msg = types.ErrPathOutsideRoot.Error()
	}
	return types.ContextItem{Path: path, OK: false, Error: msg}
}
