package resource

import (
	"encoding/json"
	"fmt"
)

// Patch is a structured, serializable description of the difference
// between a resource's current state and its baseline. The engine never
// inspects its contents; codecs produce and consume it. Two patches are
// the same change when their canonical serialized forms are equal, so a
// formatting or ordering difference in a no-op edit never registers as a
// new diff.
type Patch struct {
	value any // JSON-shaped: maps, slices, strings, numbers, bools, nil
}

// NewPatch builds a Patch from any JSON-marshalable value. The value is
// round-tripped through JSON immediately so the stored form is already
// canonical-shaped.
func NewPatch(v any) (*Patch, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("patch: %w", err)
	}
	var canon any
	if err := json.Unmarshal(data, &canon); err != nil {
		return nil, fmt.Errorf("patch: %w", err)
	}
	return &Patch{value: canon}, nil
}

// Value returns the patch's decoded JSON value.
func (p *Patch) Value() any {
	if p == nil {
		return nil
	}
	return p.value
}

// Canonical returns the deterministic serialized form: JSON with object
// keys sorted (encoding/json map ordering). Value equality on this form
// is the engine's "no change" test.
func (p *Patch) Canonical() string {
	if p == nil {
		return ""
	}
	data, err := json.Marshal(p.value)
	if err != nil {
		// value came out of json.Unmarshal, so this cannot fail
		return ""
	}
	return string(data)
}

// Equal reports canonical-form equality.
func (p *Patch) Equal(other *Patch) bool {
	return p.Canonical() == other.Canonical()
}

// MarshalJSON serializes the canonical value.
func (p *Patch) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.value)
}

// UnmarshalJSON restores a persisted patch.
func (p *Patch) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &p.value)
}
