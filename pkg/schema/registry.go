package schema

import (
	"fmt"
	"strings"
)

// Registry is a hierarchical namespace of entity types. Each registered
// type is reachable by a unique short key: the shortest dotted suffix of
// its full name that distinguishes it from every other type sharing the
// same leaf segment.
type Registry struct {
	byKey  map[string]*EntityType
	byFull map[string]*EntityType
	leaves map[string][]*EntityType // leaf segment to members, insertion order
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byKey:  make(map[string]*EntityType),
		byFull: make(map[string]*EntityType),
		leaves: make(map[string][]*EntityType),
	}
}

// Add registers an entity type under its full dotted name and returns the
// resolved short key, which callers must use for storage and lookup.
// Re-adding an existing full name replaces its definition and keeps its
// key. A new leaf collision re-keys every member of that leaf group to a
// longer suffix, so previously returned keys for other full names stay
// valid only when no collision appeared; lookups by full name always work.
func (r *Registry) Add(fullName string, et *EntityType) (string, error) {
	fullName = strings.Trim(fullName, ".")
	if fullName == "" {
		return "", fmt.Errorf("add entity type: empty name")
	}
	et.FullName = fullName

	if existing, ok := r.byFull[fullName]; ok {
		et.ShortKey = existing.ShortKey
		r.byFull[fullName] = et
		r.byKey[existing.ShortKey] = et
		leaf := lastSegment(fullName)
		for i, m := range r.leaves[leaf] {
			if m.FullName == fullName {
				r.leaves[leaf][i] = et
			}
		}
		return et.ShortKey, nil
	}

	leaf := lastSegment(fullName)
	r.byFull[fullName] = et
	r.leaves[leaf] = append(r.leaves[leaf], et)
	r.rekeyLeaf(leaf)
	return et.ShortKey, nil
}

// Get resolves a short key or a full dotted name.
func (r *Registry) Get(key string) (*EntityType, bool) {
	if et, ok := r.byKey[key]; ok {
		return et, true
	}
	et, ok := r.byFull[strings.Trim(key, ".")]
	return et, ok
}

// Len returns the number of registered entity types.
func (r *Registry) Len() int { return len(r.byFull) }

// All returns every registered entity type keyed by short key.
func (r *Registry) All() map[string]*EntityType {
	out := make(map[string]*EntityType, len(r.byKey))
	for k, v := range r.byKey {
		out[k] = v
	}
	return out
}

// rekeyLeaf reassigns short keys for all members sharing a leaf segment,
// walking from the leaf outward and prefixing additional dotted segments
// until each member's key is unique within the group.
func (r *Registry) rekeyLeaf(leaf string) {
	members := r.leaves[leaf]
	for _, m := range members {
		if m.ShortKey != "" {
			delete(r.byKey, m.ShortKey)
			m.ShortKey = ""
		}
	}

	for _, m := range members {
		segs := strings.Split(m.FullName, ".")
		for n := 1; n <= len(segs); n++ {
			candidate := strings.Join(segs[len(segs)-n:], ".")
			if r.uniqueWithin(candidate, m, members, n) {
				m.ShortKey = candidate
				break
			}
		}
		// A full name that is itself a dotted suffix of a longer member
		// exhausts every candidate. Its full name is still free: the
		// longer member needs at least one extra segment to stand apart
		// from this one, so it never keys as this member's full name.
		if m.ShortKey == "" {
			m.ShortKey = m.FullName
		}
		r.byKey[m.ShortKey] = m
	}
}

// uniqueWithin reports whether no other group member produces the same
// n-segment suffix as candidate.
func (r *Registry) uniqueWithin(candidate string, self *EntityType, members []*EntityType, n int) bool {
	for _, other := range members {
		if other == self {
			continue
		}
		segs := strings.Split(other.FullName, ".")
		k := n
		if k > len(segs) {
			k = len(segs)
		}
		if strings.Join(segs[len(segs)-k:], ".") == candidate {
			return false
		}
	}
	return true
}

func lastSegment(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}
