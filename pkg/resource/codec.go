package resource

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrElementMissing marks one patch element whose named target is absent
// from the current base. Codecs log and skip such elements instead of
// aborting the whole apply, so a bundle still applies everything it can
// against a slightly different game version.
var ErrElementMissing = errors.New("patch element target missing from base")

// ErrNoCodec is returned when no registered codec handles a path's format.
var ErrNoCodec = errors.New("no codec registered for format")

// ParseError reports a resource whose backing bytes resolved but could not
// be parsed by the owning format codec. Recoverable: the caller reports it
// and continues with other resolutions.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Codec is the per-format diff strategy. One implementation exists per
// asset kind; the engine treats parsed state and patches as opaque.
type Codec interface {
	// Tag identifies the format, e.g. "motlist" or "document".
	Tag() string
	// LoadBase parses h.Raw into the handle's editable state.
	LoadBase(h *Handle) error
	// FindDiff computes the patch between the handle's current state and
	// its baseline. A nil patch means no change.
	FindDiff(h *Handle) (*Patch, error)
	// ApplyDiff re-applies a saved patch to a freshly loaded handle.
	// Elements whose named target is missing are skipped, not fatal.
	ApplyDiff(h *Handle, p *Patch) error
}

// Registry maps file extensions to codecs. It is populated at startup and
// read-only afterward; it is passed into the workspace explicitly rather
// than living in a process-wide table.
type Registry struct {
	byExt map[string]Codec
}

// NewRegistry creates an empty codec registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]Codec)}
}

// Register binds a codec to a file extension (without the dot).
func (r *Registry) Register(ext string, c Codec) {
	r.byExt[strings.ToLower(strings.TrimPrefix(ext, "."))] = c
}

// ForPath selects the codec for a logical path by extension.
func (r *Registry) ForPath(p string) (Codec, bool) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	c, ok := r.byExt[ext]
	return c, ok
}
