// Package schema loads layered definition files and merges them into the
// runtime schema used to interpret opaque binary object data: per-class
// field overrides, user-defined entity types, custom composite field
// types, and enum display labels.
package schema

import "errors"

// ErrZeroFields marks an entity or custom type declared with no fields.
// This is a definition-authoring error and aborts the whole load.
var ErrZeroFields = errors.New("definition declares zero fields")

// FieldDesc describes one field of a class, entity, or custom type.
type FieldDesc struct {
	Name    string `toml:"name,omitempty"`
	Type    string `toml:"type"`
	Default any    `toml:"default,omitempty"`
	Display string `toml:"display,omitempty"`
}

// ClassSchema is the merged runtime configuration for one binary class.
// Mutated only during load; immutable for the process lifetime afterward.
type ClassSchema struct {
	Name       string
	Fields     map[string]FieldDesc
	ToString   string   // label template, e.g. "{name} ({hp})"
	Subclasses []string // names of classes merged as subclasses of this one
}

// CustomType is a user-defined composite field type. At least one field is
// required.
type CustomType struct {
	Name   string
	Fields []FieldDesc
}

// EntityType is a user/schema-defined logical game object type, registered
// under a dotted hierarchical name.
type EntityType struct {
	FullName string
	ShortKey string // assigned by the registry on Add
	Fields   []FieldDesc
}

// Set is the immutable output of a merge pass.
type Set struct {
	Classes     map[string]*ClassSchema
	Entities    *Registry
	CustomTypes map[string]*CustomType
	EnumLabels  map[string]map[string]string // keyed by enum name, then value
}

// ClassDesc is a binary-class descriptor from the game's own schema.
type ClassDesc struct {
	Name   string
	Fields map[string]string // field name to binary type
}

// ClassProvider is the binary-schema collaborator backing the game data.
// GetClass returns nil for classes absent from the loaded game version.
type ClassProvider interface {
	GetClass(name string) *ClassDesc
	HasEnum(name string) bool
}
