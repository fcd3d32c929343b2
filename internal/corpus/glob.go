package corpus

import (
	"path"
	"strings"
)

// matchGlobPath matches a glob pattern against a slash separated relative path.
// A pattern without "**" matches when it matches the whole path or any
// trailing run of path segments ("*.go" matches "internal/main.go",
// "src/*.ts" matches "web/src/app.ts").
func matchGlobPath(pattern, relPath string) bool {
	pattern = strings.TrimPrefix(pattern, "./")

	// Handle ** for recursive matching
	if strings.Contains(pattern, "**") {
		parts := strings.Split(pattern, "**")

		// Pattern is "**/something/**" (match anywhere in path)
		if len(parts) == 3 && parts[0] == "" && parts[2] == "" {
			middle := strings.Trim(parts[1], "/")
			return strings.HasPrefix(relPath, middle+"/") || strings.Contains(relPath, "/"+middle+"/")
		}

		if len(parts) == 2 {
			prefix := strings.TrimSuffix(parts[0], "/")
			suffix := strings.TrimPrefix(parts[1], "/")

			if prefix != "" && relPath != prefix && !strings.HasPrefix(relPath, prefix+"/") {
				return false
			}
			if suffix == "" {
				return true
			}

			rest := relPath
			if prefix != "" {
				rest = strings.TrimPrefix(strings.TrimPrefix(relPath, prefix), "/")
			}
			return matchSuffixSegments(suffix, rest)
		}
		return false
	}

	if strings.HasPrefix(pattern, "/") {
		matched, _ := path.Match(strings.TrimPrefix(pattern, "/"), relPath)
		return matched
	}
	return matchSuffixSegments(pattern, relPath)
}

// matchSuffixSegments reports whether pattern matches relPath or any of its
// trailing segment runs.
func matchSuffixSegments(pattern, relPath string) bool {
	segments := strings.Split(relPath, "/")
	for i := range segments {
		if matched, _ := path.Match(pattern, strings.Join(segments[i:], "/")); matched {
			return true
		}
	}
	return false
}
