package bundle

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/halvect/remod/pkg/resource"
)

// EntityInstance is a live, editable entity tracked for diffing against
// a bundle's entity records.
type EntityInstance interface {
	TypeKey() string
	EntityKey() string
	// CalculateDiff returns the entity-specific diff against its
	// baseline, or nil when nothing changed.
	CalculateDiff() (json.RawMessage, error)
}

// InstanceLookup resolves the live instance for an entity record, if one
// exists in the current session.
type InstanceLookup func(typeKey, key string) (EntityInstance, bool)

// now is swapped out by tests.
var now = func() int64 { return time.Now().Unix() }

// SaveBundle recomputes every diff the bundle owns and persists it.
//
// Resource pass: without force, only currently open modified handles that
// back a listing entry are re-diffed. With force, every listed target is
// reopened fresh, the stored diff is re-applied to the clean baseline,
// and the diff is recomputed from there. Either way a stored diff is
// replaced, and its timestamp stamped, only when the canonical form
// actually changed.
//
// Entity pass: records whose live instance is gone, or whose recomputed
// diff is empty, are pruned in reverse index order. A bundle never
// persists a record that represents a no-op change.
func (m *Manager) SaveBundle(b *Bundle, cache *resource.Cache, lookup InstanceLookup, gameVersion string, force bool) error {
	if err := m.saveResources(b, cache, force); err != nil {
		return err
	}
	m.saveEntities(b, lookup)
	b.GameVersion = gameVersion
	return m.Persist(b)
}

func (m *Manager) saveResources(b *Bundle, cache *resource.Cache, force bool) error {
	byTarget := make(map[string]string, len(b.ResourceListing)) // target to listing key
	for local, item := range b.ResourceListing {
		byTarget[item.Target] = local
	}

	if !force {
		for _, h := range cache.Modified() {
			local, listed := byTarget[h.Logical]
			if !listed {
				continue
			}
			if err := m.rediff(b, local, h); err != nil {
				return err
			}
			cache.ClearModified(h)
		}
		return nil
	}

	locals := make([]string, 0, len(b.ResourceListing))
	for local := range b.ResourceListing {
		locals = append(locals, local)
	}
	sort.Strings(locals)

	for _, local := range locals {
		item := b.ResourceListing[local]
		h, open := cache.Get(item.Target)
		if !open {
			fresh, err := cache.Open(item.Target, nil)
			if err != nil {
				m.logger.Warn().Err(err).Str("target", item.Target).
					Msg("listed resource skipped during forced save")
				continue
			}
			// Rebuild from the clean baseline: re-apply the stored diff,
			// then recompute. An unchanged resource reproduces the same
			// canonical form and stamps nothing.
			if item.Diff != nil {
				if err := fresh.Codec().ApplyDiff(fresh, item.Diff); err != nil {
					m.logger.Warn().Err(err).Str("target", item.Target).
						Msg("stored diff could not be re-applied")
				}
			}
			if err := m.rediff(b, local, fresh); err != nil {
				return err
			}
			cache.Close(fresh, nil)
			continue
		}

		if err := m.rediff(b, local, h); err != nil {
			return err
		}
		cache.ClearModified(h)
	}
	return nil
}

// rediff computes the handle's current diff and stores it on the listing
// entry when its canonical form changed.
func (m *Manager) rediff(b *Bundle, local string, h *resource.Handle) error {
	patch, err := h.Codec().FindDiff(h)
	if err != nil {
		return fmt.Errorf("save bundle %s: diff %s: %w", b.Name, h.Logical, err)
	}

	item := b.ResourceListing[local]
	if patch.Canonical() == item.Diff.Canonical() {
		return nil
	}
	item.Diff = patch
	item.DiffTime = now()
	m.logger.Debug().Str("bundle", b.Name).Str("resource", local).Msg("resource diff updated")
	return nil
}

func (m *Manager) saveEntities(b *Bundle, lookup InstanceLookup) {
	var deletions []int
	for i, rec := range b.Entities {
		if lookup == nil {
			deletions = append(deletions, i)
			continue
		}
		inst, alive := lookup(rec.Type, rec.Key)
		if !alive {
			deletions = append(deletions, i)
			continue
		}

		data, err := inst.CalculateDiff()
		if err != nil {
			m.logger.Warn().Err(err).Str("type", rec.Type).Str("key", rec.Key).
				Msg("entity diff failed, record kept")
			continue
		}
		if len(data) == 0 || string(data) == "null" {
			deletions = append(deletions, i)
			continue
		}
		rec.Data = data
	}

	// Reverse index order keeps remaining indices valid while removing
	// from the positional list.
	for i := len(deletions) - 1; i >= 0; i-- {
		idx := deletions[i]
		b.Entities = append(b.Entities[:idx], b.Entities[idx+1:]...)
	}
}
