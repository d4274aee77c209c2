// Package bundle implements the persisted unit of mod distribution: a
// named overlay owning a resource listing and a list of modified game
// entities, plus the manager that enumerates, saves, and imports bundles.
package bundle

import (
	"encoding/json"
	"path/filepath"

	"github.com/halvect/remod/pkg/resolve"
	"github.com/halvect/remod/pkg/resource"
)

// ResourceListItem is one bundle-owned override of a single logical
// resource. A nil Diff means the bundle's file replaces the target
// wholesale.
type ResourceListItem struct {
	Target   string          `json:"target"`
	Diff     *resource.Patch `json:"diff,omitempty"`
	DiffTime int64           `json:"diff_time,omitempty"` // unix seconds of last diff change
}

// EntityRecord tracks one modified game entity. A record whose Data comes
// out empty after a save pass is pruned: a bundle never persists a no-op
// change.
type EntityRecord struct {
	Type string          `json:"type"` // entity type short key
	Key  string          `json:"key"`  // instance identity within the type
	Data json.RawMessage `json:"data,omitempty"`
}

// Bundle is a named overlay of resource and entity modifications.
type Bundle struct {
	Name            string                       `json:"name"`
	Author          string                       `json:"author,omitempty"`
	Description     string                       `json:"description,omitempty"`
	GameVersion     string                       `json:"game_version"`
	ResourceListing map[string]*ResourceListItem `json:"resource_listing"`
	Entities        []*EntityRecord              `json:"entities"`

	dir string // payload directory holding the bundle's files
}

// Dir returns the directory holding the bundle's payload files.
func (b *Bundle) Dir() string { return b.dir }

// AddResource records an override: the bundle's file at local stands in
// for the native path target. Paths are normalized on insert.
func (b *Bundle) AddResource(local, target string) *ResourceListItem {
	norm := resolve.NormalizePath(local)
	item := &ResourceListItem{Target: resolve.NormalizePath(target)}
	if b.ResourceListing == nil {
		b.ResourceListing = make(map[string]*ResourceListItem)
	}
	b.ResourceListing[norm] = item
	return item
}

// AddEntity appends an entity record, replacing any existing record with
// the same type and key.
func (b *Bundle) AddEntity(rec *EntityRecord) {
	for i, e := range b.Entities {
		if e.Type == rec.Type && e.Key == rec.Key {
			b.Entities[i] = rec
			return
		}
	}
	b.Entities = append(b.Entities, rec)
}

// LookupOverride implements resolve.Overlay: a logical path matching a
// listing key resolves to the bundle's payload file, unless the entry
// redirects to a different target.
func (b *Bundle) LookupOverride(norm string) (resolve.OverlayEntry, bool) {
	item, ok := b.ResourceListing[norm]
	if !ok {
		return resolve.OverlayEntry{}, false
	}
	return resolve.OverlayEntry{
		Target: item.Target,
		Path:   filepath.Join(b.dir, filepath.FromSlash(norm)),
	}, true
}
