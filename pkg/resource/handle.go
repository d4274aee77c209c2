package resource

import "github.com/halvect/remod/pkg/resolve"

// Holder is a consumer that registered interest in keeping a handle open.
// Holding a raw *Handle without registering is a lifetime-safety
// violation: the holder set is the only mechanism for expressing "still
// needed".
type Holder interface {
	// ResourceClosed notifies the holder its handle was released or
	// reloaded underneath it.
	ResourceClosed(h *Handle)
}

// Handle is one opened resource owned by the Cache. All mutation of the
// modified flag and holder set goes through the Cache.
type Handle struct {
	Logical string         // normalized logical path
	Source  resolve.Source // physical source the path resolved to
	Raw     []byte         // underlying byte stream
	State   any            // parsed representation, owned by the codec

	codec    Codec
	modified bool
	stale    bool // backing loose file changed outside this session
	retain   bool // keep open even with zero holders
	holders  map[Holder]struct{}
	released bool
}

// Codec returns the format codec that parsed this handle.
func (h *Handle) Codec() Codec { return h.codec }

// Modified reports whether the handle carries unsaved changes.
func (h *Handle) Modified() bool { return h.modified }

// Stale reports whether the backing file changed outside the session.
func (h *Handle) Stale() bool { return h.stale }

// Retained reports whether the handle is pinned open regardless of its
// holder count.
func (h *Handle) Retained() bool { return h.retain }

// HolderCount returns the number of registered holders.
func (h *Handle) HolderCount() int { return len(h.holders) }
