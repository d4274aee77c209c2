package resource

import (
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog"

	"github.com/halvect/remod/pkg/resolve"
)

// ArchiveReader reads one entry out of a mounted archive by label.
type ArchiveReader func(label, entryPath string) ([]byte, error)

// Cache owns every opened resource handle. It is the sole mutator of
// handle modified flags and holder sets. A cache is single-owner: a
// background worker needs its own cache over a cloned resolver, never a
// shared one.
type Cache struct {
	resolver    *resolve.Resolver
	codecs      *Registry
	readArchive ArchiveReader
	logger      zerolog.Logger

	handles map[string]*Handle // normalized logical path to handle
}

// NewCache creates a Cache over the given resolver and codec registry.
func NewCache(resolver *resolve.Resolver, codecs *Registry, readArchive ArchiveReader, logger zerolog.Logger) *Cache {
	return &Cache{
		resolver:    resolver,
		codecs:      codecs,
		readArchive: readArchive,
		logger:      logger,
		handles:     make(map[string]*Handle),
	}
}

// Resolver returns the resolver this cache opens paths through.
func (c *Cache) Resolver() *resolve.Resolver { return c.resolver }

// Clone returns an empty cache over the given resolver, for background
// workers that must not touch the interactive session's handles.
func (c *Cache) Clone(r *resolve.Resolver) *Cache {
	return NewCache(r, c.codecs, c.readArchive, c.logger)
}

// Open resolves and opens a logical path, registering holder. Repeat
// calls for the same resolved path return the same handle with the holder
// added. A resolved path whose bytes the codec rejects yields a
// *ParseError; the caller may continue with other resolutions.
func (c *Cache) Open(logical string, holder Holder) (*Handle, error) {
	norm := resolve.NormalizePath(logical)
	if h, ok := c.handles[norm]; ok {
		c.addHolder(h, holder)
		return h, nil
	}

	src, err := c.resolver.Resolve(norm)
	if err != nil {
		return nil, err
	}

	raw, err := c.readSource(src)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", norm, err)
	}

	codec, ok := c.codecs.ForPath(norm)
	if !ok {
		return nil, &ParseError{Path: norm, Err: ErrNoCodec}
	}

	h := &Handle{
		Logical: norm,
		Source:  src,
		Raw:     raw,
		codec:   codec,
		holders: make(map[Holder]struct{}),
	}
	if err := codec.LoadBase(h); err != nil {
		return nil, &ParseError{Path: norm, Err: err}
	}

	c.handles[norm] = h
	c.addHolder(h, holder)
	c.logger.Debug().Str("path", norm).Str("source", src.Kind.String()).Msg("resource opened")
	return h, nil
}

func (c *Cache) readSource(src resolve.Source) ([]byte, error) {
	switch src.Kind {
	case resolve.KindArchive:
		if c.readArchive == nil {
			return nil, fmt.Errorf("no archive reader mounted for %q", src.Archive)
		}
		return c.readArchive(src.Archive, src.Path)
	default:
		return os.ReadFile(src.Path)
	}
}

func (c *Cache) addHolder(h *Handle, holder Holder) {
	if holder == nil {
		return
	}
	h.holders[holder] = struct{}{}
}

// Close unregisters holder from the handle. The handle is physically
// released only when no holders remain and the retain flag is clear: a
// zero holder count alone is not sufficient, since some consumers pin
// resources open across interactions.
func (c *Cache) Close(h *Handle, holder Holder) {
	if holder != nil {
		delete(h.holders, holder)
	}
	if len(h.holders) == 0 && !h.retain {
		c.release(h)
	}
}

// Retain pins or unpins a handle. Unpinning a handle with no holders
// releases it.
func (c *Cache) Retain(h *Handle, retain bool) {
	h.retain = retain
	if !retain && len(h.holders) == 0 {
		c.release(h)
	}
}

func (c *Cache) release(h *Handle) {
	if h.released {
		return
	}
	h.released = true
	delete(c.handles, h.Logical)
	for holder := range h.holders {
		holder.ResourceClosed(h)
	}
	h.holders = nil
	h.Raw = nil
	h.State = nil
	c.logger.Debug().Str("path", h.Logical).Msg("resource released")
}

// ReleaseAll releases every open handle regardless of holders or retain
// flags, notifying holders. Called when the resolver scope the cache was
// built over is torn down: handles must not outlive their scope.
func (c *Cache) ReleaseAll() {
	for _, h := range c.handles {
		h.retain = false
		c.release(h)
	}
}

// MarkModified flags a handle as carrying unsaved changes.
func (c *Cache) MarkModified(h *Handle) { h.modified = true }

// ClearModified resets the flag after a successful save.
func (c *Cache) ClearModified(h *Handle) { h.modified = false }

// MarkStale flags the open handle for a normalized path, if any, as
// changed outside the session.
func (c *Cache) MarkStale(norm string) {
	if h, ok := c.handles[norm]; ok {
		h.stale = true
	}
}

// Reload re-resolves and re-parses a handle in place, clearing the
// modified and stale flags. Registered holders are notified.
func (c *Cache) Reload(h *Handle) error {
	src, err := c.resolver.Resolve(h.Logical)
	if err != nil {
		return err
	}
	raw, err := c.readSource(src)
	if err != nil {
		return fmt.Errorf("reload %q: %w", h.Logical, err)
	}

	h.Source = src
	h.Raw = raw
	h.State = nil
	if err := h.codec.LoadBase(h); err != nil {
		return &ParseError{Path: h.Logical, Err: err}
	}
	h.modified = false
	h.stale = false
	for holder := range h.holders {
		holder.ResourceClosed(h)
	}
	return nil
}

// Get returns the open handle for a logical path without registering a
// holder.
func (c *Cache) Get(logical string) (*Handle, bool) {
	h, ok := c.handles[resolve.NormalizePath(logical)]
	return h, ok
}

// Modified enumerates all currently modified handles in path order, for
// the save cycle.
func (c *Cache) Modified() []*Handle {
	var out []*Handle
	for _, h := range c.handles {
		if h.modified {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Logical < out[j].Logical })
	return out
}

// Len returns the number of open handles.
func (c *Cache) Len() int { return len(c.handles) }
