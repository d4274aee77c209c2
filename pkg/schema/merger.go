package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
)

// document is the on-disk shape of one TOML definition file.
type document struct {
	Types    map[string]typeDef  `toml:"types"`
	Entities map[string]typeDef  `toml:"entities"`
	Classes  map[string]classDef `toml:"classes"`
}

type typeDef struct {
	Fields []FieldDesc `toml:"fields"`
}

type classDef struct {
	ToString   string               `toml:"to_string"`
	Fields     map[string]FieldDesc `toml:"fields"`
	Subclasses map[string]classDef  `toml:"subclasses"`
}

// enumDocument is the on-disk shape of one enum label file.
type enumDocument struct {
	Enum   string            `toml:"enum"`
	Labels map[string]string `toml:"labels"`
}

// Merger builds a runtime schema Set from layered definition directories.
type Merger struct {
	provider ClassProvider
	logger   zerolog.Logger

	// to_string values and fields assigned directly by a definition, as
	// opposed to inherited from a parent class. Inheritance is propagated
	// once, after all layers merged, so a later layer that changes a
	// parent field still reaches every subclass.
	ownToString map[string]bool
	ownFields   map[string]map[string]bool
}

// NewMerger creates a Merger backed by the given binary-class provider.
func NewMerger(provider ClassProvider, logger zerolog.Logger) *Merger {
	return &Merger{provider: provider, logger: logger}
}

// Load parses every definition file under the given directories, in
// increasing precedence order, and merges them into a single Set. Files
// that fail to parse are logged and skipped; a zero-field entity or custom
// type aborts the whole load. Enum label files live under an "enums"
// subdirectory of each definitions directory.
func (m *Merger) Load(dirs []string) (*Set, error) {
	set := &Set{
		Classes:     make(map[string]*ClassSchema),
		Entities:    NewRegistry(),
		CustomTypes: make(map[string]*CustomType),
		EnumLabels:  make(map[string]map[string]string),
	}
	m.ownToString = make(map[string]bool)
	m.ownFields = make(map[string]map[string]bool)

	for _, dir := range dirs {
		files, err := listTOML(dir)
		if err != nil {
			m.logger.Warn().Err(err).Str("dir", dir).Msg("skipping unreadable definitions directory")
			continue
		}
		for _, file := range files {
			if err := m.loadFile(set, file); err != nil {
				return nil, err
			}
		}

		enumFiles, err := listTOML(filepath.Join(dir, "enums"))
		if err == nil {
			for _, file := range enumFiles {
				m.loadEnumFile(set, file)
			}
		}
	}

	m.propagateInheritance(set)
	return set, nil
}

func listTOML(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".toml") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// loadFile merges one definition file into the set. Parse failures are
// non-fatal; zero-field definitions are.
func (m *Merger) loadFile(set *Set, file string) error {
	var doc document
	if _, err := toml.DecodeFile(file, &doc); err != nil {
		m.logger.Warn().Err(err).Str("file", file).Msg("malformed definition file skipped")
		return nil
	}

	for _, name := range sortedKeys(doc.Types) {
		def := doc.Types[name]
		if len(def.Fields) == 0 {
			return fmt.Errorf("%s: custom type %q: %w", file, name, ErrZeroFields)
		}
		ct := set.CustomTypes[name]
		if ct == nil {
			ct = &CustomType{Name: name}
			set.CustomTypes[name] = ct
		}
		ct.Fields = mergeFieldList(ct.Fields, def.Fields)
	}

	for _, name := range sortedKeys(doc.Entities) {
		def := doc.Entities[name]
		if len(def.Fields) == 0 {
			return fmt.Errorf("%s: entity %q: %w", file, name, ErrZeroFields)
		}
		et := &EntityType{FullName: name, Fields: def.Fields}
		if prev, ok := set.Entities.Get(name); ok {
			et.Fields = mergeFieldList(prev.Fields, def.Fields)
		}
		key, err := set.Entities.Add(name, et)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		m.logger.Debug().Str("entity", name).Str("key", key).Msg("entity type registered")
	}

	for _, name := range sortedKeys(doc.Classes) {
		def := doc.Classes[name]
		if m.provider.GetClass(name) == nil {
			m.logger.Warn().Str("class", name).Str("file", file).
				Msg("class not present in game schema, definition skipped")
			continue
		}
		m.mergeClass(set, name, def)
	}

	return nil
}

// mergeClass merges one class definition block into the runtime entry for
// its name, creating it if absent. Only the class's own assignments are
// recorded here; what subclasses inherit is resolved by the propagation
// pass after every layer has merged.
func (m *Merger) mergeClass(set *Set, name string, def classDef) {
	cs := set.Classes[name]
	if cs == nil {
		cs = &ClassSchema{Name: name, Fields: make(map[string]FieldDesc)}
		set.Classes[name] = cs
	}

	for _, fname := range sortedKeys(def.Fields) {
		fd := def.Fields[fname]
		fd.Name = fname
		cs.Fields[fname] = overlayField(cs.Fields[fname], fd)
		if m.ownFields[name] == nil {
			m.ownFields[name] = make(map[string]bool)
		}
		m.ownFields[name][fname] = true
	}

	if def.ToString != "" {
		cs.ToString = def.ToString
		m.ownToString[name] = true
	}

	for _, subName := range sortedKeys(def.Subclasses) {
		subDef := def.Subclasses[subName]
		if m.provider.GetClass(subName) == nil {
			m.logger.Warn().Str("class", subName).Msg("subclass not present in game schema, skipped")
			continue
		}
		m.mergeClass(set, subName, subDef)
		if !containsString(cs.Subclasses, subName) {
			cs.Subclasses = append(cs.Subclasses, subName)
		}
	}
}

// propagateInheritance walks the subclass tree top-down once all layers
// are merged: a subclass without its own template takes the nearest
// ancestor's, and parent fields are copied down in their final merged
// form with subclass-specific attributes overlaid on top.
func (m *Merger) propagateInheritance(set *Set) {
	isSub := make(map[string]bool)
	for _, cs := range set.Classes {
		for _, s := range cs.Subclasses {
			isSub[s] = true
		}
	}

	var roots []string
	for name := range set.Classes {
		if !isSub[name] {
			roots = append(roots, name)
		}
	}
	sort.Strings(roots)

	var walk func(name string)
	walk = func(name string) {
		cs := set.Classes[name]
		for _, subName := range cs.Subclasses {
			sub := set.Classes[subName]
			if !m.ownToString[subName] {
				sub.ToString = cs.ToString
			}
			for fname, fd := range cs.Fields {
				if m.ownFields[subName][fname] {
					// Subclass-specific attributes win; unset ones
					// keep the parent's final values.
					sub.Fields[fname] = overlayField(fd, sub.Fields[fname])
				} else {
					sub.Fields[fname] = fd
				}
			}
			walk(subName)
		}
	}
	for _, root := range roots {
		walk(root)
	}
}

// loadEnumFile merges one enum label file. Unknown enum names are skipped
// with a notice.
func (m *Merger) loadEnumFile(set *Set, file string) {
	var doc enumDocument
	if _, err := toml.DecodeFile(file, &doc); err != nil {
		m.logger.Warn().Err(err).Str("file", file).Msg("malformed enum label file skipped")
		return
	}
	if doc.Enum == "" || !m.provider.HasEnum(doc.Enum) {
		m.logger.Info().Str("enum", doc.Enum).Str("file", file).
			Msg("enum not registered in game schema, labels skipped")
		return
	}

	labels := set.EnumLabels[doc.Enum]
	if labels == nil {
		labels = make(map[string]string)
		set.EnumLabels[doc.Enum] = labels
	}
	for value, label := range doc.Labels {
		labels[value] = label
	}
}

// overlayField merges a later field descriptor over an earlier one:
// set attributes win, unset ones keep the earlier value.
func overlayField(base, over FieldDesc) FieldDesc {
	out := base
	out.Name = over.Name
	if over.Type != "" {
		out.Type = over.Type
	}
	if over.Default != nil {
		out.Default = over.Default
	}
	if over.Display != "" {
		out.Display = over.Display
	}
	return out
}

// mergeFieldList overlays an ordered field list by name: existing fields
// are updated in place, new ones appended.
func mergeFieldList(base, over []FieldDesc) []FieldDesc {
	out := append([]FieldDesc(nil), base...)
	index := make(map[string]int, len(out))
	for i, f := range out {
		index[f.Name] = i
	}
	for _, f := range over {
		if i, ok := index[f.Name]; ok {
			out[i] = overlayField(out[i], f)
		} else {
			index[f.Name] = len(out)
			out = append(out, f)
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
