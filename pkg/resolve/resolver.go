package resolve

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// SourceKind identifies where a resolved resource physically lives.
type SourceKind int

const (
	// KindBundle is a file provided by the active bundle overlay.
	KindBundle SourceKind = iota
	// KindLoose is a loose file on disk under the game root.
	KindLoose
	// KindArchive is an entry inside a mounted game archive.
	KindArchive
)

func (k SourceKind) String() string {
	switch k {
	case KindBundle:
		return "bundle"
	case KindLoose:
		return "loose"
	case KindArchive:
		return "archive"
	default:
		return "unknown"
	}
}

// Source is the physical location a logical path resolved to.
type Source struct {
	Kind    SourceKind
	Logical string // normalized logical path that matched
	Path    string // filesystem path (bundle/loose) or entry path (archive)
	Archive string // archive label, set only for KindArchive
}

// ErrUnresolved is returned when no precedence level matches a logical path.
var ErrUnresolved = errors.New("resource not found in any source")

// ResolutionError reports a path that matched a source but could not be
// used, or did not match at all. A match at a higher precedence level never
// falls through to a lower one, even when invalid: masking a broken bundle
// entry behind a loose file hides mod misconfiguration.
type ResolutionError struct {
	Logical string
	Reason  string
	Err     error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve %q: %s: %v", e.Logical, e.Reason, e.Err)
	}
	return fmt.Sprintf("resolve %q: %s", e.Logical, e.Reason)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// OverlayEntry is one bundle-provided override consulted at the highest
// precedence level.
type OverlayEntry struct {
	Target string // native path this entry stands in for
	Path   string // filesystem path of the overriding file
}

// Overlay is the resolver's view of an active bundle's resource listing.
type Overlay interface {
	// LookupOverride returns the entry for a normalized logical path.
	LookupOverride(norm string) (OverlayEntry, bool)
}

// Archive is the resolver's view of one mounted game archive.
type Archive interface {
	Label() string
	HasEntry(norm string) bool
}

// Resolver maps logical resource paths to physical sources in strict
// precedence order: bundle overlay, then loose files under the game root,
// then mounted archives.
type Resolver struct {
	gameRoot string
	overlay  Overlay // nil when no bundle is active
	archives []Archive
	logger   zerolog.Logger
}

// New creates a Resolver over the given game root and mounted archives.
// The overlay starts empty; swap one in with WithOverlay.
func New(gameRoot string, archives []Archive, logger zerolog.Logger) *Resolver {
	return &Resolver{
		gameRoot: gameRoot,
		archives: archives,
		logger:   logger,
	}
}

// WithOverlay returns a copy of the resolver using the given overlay.
// A nil overlay removes any active one. The receiver is not modified, so
// bundle-scoped views and background-worker clones never share state.
func (r *Resolver) WithOverlay(o Overlay) *Resolver {
	dup := *r
	dup.overlay = o
	return &dup
}

// GameRoot returns the loose-file root this resolver searches.
func (r *Resolver) GameRoot() string { return r.gameRoot }

const maxIndirection = 16

// Resolve returns the highest-precedence physical source for a logical
// path. Overlay entries whose target differs from the logical path are
// followed recursively, so a bundle may redirect one native path to
// another.
func (r *Resolver) Resolve(logical string) (Source, error) {
	return r.resolve(logical, 0)
}

func (r *Resolver) resolve(logical string, depth int) (Source, error) {
	norm := NormalizePath(logical)
	if norm == "" {
		return Source{}, &ResolutionError{Logical: logical, Reason: "empty path"}
	}
	if depth >= maxIndirection {
		return Source{}, &ResolutionError{Logical: logical, Reason: "indirection loop in bundle listing"}
	}

	if r.overlay != nil {
		if entry, ok := r.overlay.LookupOverride(norm); ok {
			if entry.Target != "" && NormalizePath(entry.Target) != norm {
				r.logger.Debug().
					Str("logical", norm).
					Str("target", entry.Target).
					Msg("following bundle indirection")
				return r.resolve(entry.Target, depth+1)
			}
			info, err := os.Stat(entry.Path)
			if err != nil || info.IsDir() {
				return Source{}, &ResolutionError{
					Logical: norm,
					Reason:  fmt.Sprintf("bundle override %q is unusable", entry.Path),
					Err:     err,
				}
			}
			return Source{Kind: KindBundle, Logical: norm, Path: entry.Path}, nil
		}
	}

	loose := filepath.Join(r.gameRoot, filepath.FromSlash(norm))
	if info, err := os.Stat(loose); err == nil {
		if info.IsDir() {
			return Source{}, &ResolutionError{
				Logical: norm,
				Reason:  fmt.Sprintf("loose path %q is a directory", loose),
			}
		}
		return Source{Kind: KindLoose, Logical: norm, Path: loose}, nil
	}

	for _, a := range r.archives {
		if a.HasEntry(norm) {
			return Source{Kind: KindArchive, Logical: norm, Path: norm, Archive: a.Label()}, nil
		}
	}

	return Source{}, &ResolutionError{Logical: norm, Reason: "no source", Err: ErrUnresolved}
}
