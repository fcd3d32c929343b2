package corpus

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"github.com/spetr/grounded-context-mcp/pkg/types"
)

// ResolveRoot returns the absolute, symlink-free form of root. The root must
// exist and be a directory.
func ResolveRoot(root string) (string, error) {
	if strings.TrimSpace(root) == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrInvalidRoot, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrInvalidRoot, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrInvalidRoot, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", types.ErrInvalidRoot, root)
	}
	return resolved, nil
}

// Resolve resolves a caller supplied path against a resolved root and returns
// it relative to root. Paths that resolve outside root, lexically or through
// symlinks, are rejected with ErrPathOutsideRoot.
func Resolve(root, p string) (string, error) {
	candidate := p
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(root, candidate)
	}
	candidate = filepath.Clean(candidate)

	if resolved, err := filepath.EvalSymlinks(candidate); err == nil {
		candidate = resolved
	}

	rel, err := filepath.Rel(root, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %s", types.ErrPathOutsideRoot, p)
	}
	return rel, nil
}

// ReadText reads a file and decodes it as UTF-8, replacing ill-formed bytes.
func ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return decode(data), nil
}

// ReadUnder reads rel (as returned by Resolve) through an os.Root confined to
// root, so a symlink swapped in after resolution still cannot escape.
func ReadUnder(root, rel string) (string, error) {
	r, err := os.OpenRoot(root)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrUnreadable, err)
	}
	defer r.Close()

	info, err := r.Stat(rel)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrUnreadable, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s is not a regular file", types.ErrUnreadable, rel)
	}

	f, err := r.Open(rel)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrUnreadable, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrUnreadable, err)
	}
	return decode(data), nil
}

func decode(data []byte) string {
	s, _, err := transform.Bytes(runes.ReplaceIllFormed(), data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "\uFFFD")
	}
	return string(s)
}
