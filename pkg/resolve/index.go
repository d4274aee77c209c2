package resolve

import (
	"sort"
	"strings"
)

// Index is the global path-listing of every native path known to exist in
// the currently loaded game version. Bundle import uses it to guess the
// true native path of a file that was dropped outside the reserved
// prefixes.
type Index struct {
	paths []string // normalized, sorted
}

// NewIndex builds an Index from a raw path listing. Paths are normalized
// and deduplicated.
func NewIndex(paths []string) *Index {
	seen := make(map[string]struct{}, len(paths))
	norm := make([]string, 0, len(paths))
	for _, p := range paths {
		n := NormalizePath(p)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		norm = append(norm, n)
	}
	sort.Strings(norm)
	return &Index{paths: norm}
}

// Len returns the number of indexed paths.
func (ix *Index) Len() int { return len(ix.paths) }

// FindByFilenameSuffix returns up to max indexed paths whose tail matches
// pattern: either the bare filename or a trailing sub-path such as
// "stm/character/body.mesh". Matching is on normalized forms.
func (ix *Index) FindByFilenameSuffix(pattern string, max int) []string {
	pat := NormalizePath(pattern)
	if pat == "" || max <= 0 {
		return nil
	}

	var out []string
	for _, p := range ix.paths {
		if p == pat || strings.HasSuffix(p, "/"+pat) {
			out = append(out, p)
			if len(out) >= max {
				break
			}
		}
	}
	return out
}
