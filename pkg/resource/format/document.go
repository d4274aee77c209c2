// Package format holds built-in format codecs. Concrete binary asset
// codecs (mesh, texture, animation) are registered by the host
// application; the generic document codec here covers JSON-backed keyed
// record files such as motion lists exported to the editable form.
package format

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/halvect/remod/pkg/resource"
)

// Record is one named element of a document. The "name" key identifies it
// across revisions.
type Record map[string]any

// Name returns the record's identity, or "" when unnamed.
func (r Record) Name() string {
	s, _ := r["name"].(string)
	return s
}

// Document is the editable state of a document-format handle: an ordered
// list of named records plus the immutable baseline it was loaded from.
type Document struct {
	Records []Record
	base    []Record
}

// Find returns the current record with the given name.
func (d *Document) Find(name string) (Record, bool) {
	for _, r := range d.Records {
		if r.Name() == name {
			return r, true
		}
	}
	return nil, false
}

// Set replaces the named record, or appends it when absent.
func (d *Document) Set(rec Record) {
	for i, r := range d.Records {
		if r.Name() == rec.Name() {
			d.Records[i] = rec
			return
		}
	}
	d.Records = append(d.Records, rec)
}

// Remove deletes the named record. Returns false when absent.
func (d *Document) Remove(name string) bool {
	for i, r := range d.Records {
		if r.Name() == name {
			d.Records = append(d.Records[:i], d.Records[i+1:]...)
			return true
		}
	}
	return false
}

// DocumentCodec diffs and patches document-format resources. Patches name
// their target records, so applying against a different game version
// skips records that no longer exist instead of failing.
type DocumentCodec struct {
	logger zerolog.Logger
}

// NewDocumentCodec creates the codec.
func NewDocumentCodec(logger zerolog.Logger) *DocumentCodec {
	return &DocumentCodec{logger: logger}
}

// Tag implements resource.Codec.
func (c *DocumentCodec) Tag() string { return "document" }

type documentFile struct {
	Records []Record `json:"records"`
}

// LoadBase parses h.Raw and installs an editable Document as the handle
// state. The baseline is a deep copy of the parsed records.
func (c *DocumentCodec) LoadBase(h *resource.Handle) error {
	var file documentFile
	if err := json.Unmarshal(h.Raw, &file); err != nil {
		return fmt.Errorf("document %q: %w", h.Logical, err)
	}

	doc := &Document{Records: file.Records}
	doc.base = deepCopyRecords(file.Records)
	h.State = doc
	return nil
}

// Edit returns the editable document state of a handle opened with this
// codec.
func Edit(h *resource.Handle) (*Document, error) {
	doc, ok := h.State.(*Document)
	if !ok {
		return nil, fmt.Errorf("handle %q is not a document resource", h.Logical)
	}
	return doc, nil
}

// FindDiff compares current records against the baseline by name. The
// patch carries whole replacement records rather than field-level edits:
// documents are rebuilt from the baseline on apply, never patched in
// place.
func (c *DocumentCodec) FindDiff(h *resource.Handle) (*resource.Patch, error) {
	doc, err := Edit(h)
	if err != nil {
		return nil, err
	}

	baseByName := recordIndex(doc.base)
	curByName := recordIndex(doc.Records)

	replace := make(map[string]Record)
	var add []Record
	var remove []string

	for _, rec := range doc.Records {
		name := rec.Name()
		baseRec, inBase := baseByName[name]
		if !inBase {
			add = append(add, rec)
			continue
		}
		if canonical(rec) != canonical(baseRec) {
			replace[name] = rec
		}
	}
	for _, rec := range doc.base {
		if _, still := curByName[rec.Name()]; !still {
			remove = append(remove, rec.Name())
		}
	}

	if len(replace) == 0 && len(add) == 0 && len(remove) == 0 {
		return nil, nil
	}

	body := map[string]any{}
	if len(replace) > 0 {
		body["replace"] = replace
	}
	if len(add) > 0 {
		body["add"] = add
	}
	if len(remove) > 0 {
		body["remove"] = remove
	}
	return resource.NewPatch(body)
}

// ApplyDiff re-applies a saved patch to a freshly loaded document. A
// replace or remove element naming a record absent from the current base
// is logged and skipped; the rest of the patch still applies.
func (c *DocumentCodec) ApplyDiff(h *resource.Handle, p *resource.Patch) error {
	doc, err := Edit(h)
	if err != nil {
		return err
	}

	body, ok := p.Value().(map[string]any)
	if !ok {
		return fmt.Errorf("document %q: malformed patch", h.Logical)
	}

	if replace, ok := body["replace"].(map[string]any); ok {
		for name, v := range replace {
			rec, ok := v.(map[string]any)
			if !ok {
				continue
			}
			if _, exists := doc.Find(name); !exists {
				c.logger.Warn().Str("path", h.Logical).Str("record", name).
					Err(resource.ErrElementMissing).Msg("patch element skipped")
				continue
			}
			doc.Set(Record(rec))
		}
	}

	if add, ok := body["add"].([]any); ok {
		for _, v := range add {
			rec, ok := v.(map[string]any)
			if !ok {
				continue
			}
			doc.Set(Record(rec))
		}
	}

	if remove, ok := body["remove"].([]any); ok {
		for _, v := range remove {
			name, ok := v.(string)
			if !ok {
				continue
			}
			if !doc.Remove(name) {
				c.logger.Warn().Str("path", h.Logical).Str("record", name).
					Err(resource.ErrElementMissing).Msg("patch element skipped")
			}
		}
	}

	return nil
}

func recordIndex(recs []Record) map[string]Record {
	out := make(map[string]Record, len(recs))
	for _, r := range recs {
		out[r.Name()] = r
	}
	return out
}

func canonical(r Record) string {
	data, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	return string(data)
}

func deepCopyRecords(recs []Record) []Record {
	data, err := json.Marshal(recs)
	if err != nil {
		return nil
	}
	var out []Record
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
