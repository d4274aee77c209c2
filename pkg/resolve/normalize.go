package resolve

import (
	"path"
	"strings"
)

// NormalizePath canonicalizes a logical resource path for comparison:
// backslashes become forward slashes, the result is lowercased, cleaned,
// and stripped of any leading "./" or "/". Game data is case-insensitive,
// so all resolver maps are keyed by normalized paths.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.ToLower(p)
	p = path.Clean(p)
	p = strings.TrimPrefix(p, "/")
	if p == "." {
		return ""
	}
	return p
}
