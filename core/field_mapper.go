package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// maxMappingFileSize protects the loader against YAML bombs
	maxMappingFileSize = 5 * 1024 * 1024
	// maxFieldsPerEntity bounds a single entity's table
	maxFieldsPerEntity = 1000
)

// FieldMapper resolves logical field names to concrete record paths per
// entity type. It is read-only after construction.
type FieldMapper struct {
	fields map[EntityType][]FieldDef
	index  map[EntityType]map[string]int
}

// NewFieldMapper builds an immutable mapper from per-entity definitions.
// Definitions are deep-copied so later mutation of the input has no effect.
func NewFieldMapper(defs map[EntityType][]FieldDef) (*FieldMapper, error) {
	fm := &FieldMapper{
		fields: make(map[EntityType][]FieldDef, len(defs)),
		index:  make(map[EntityType]map[string]int, len(defs)),
	}

	for et, list := range defs {
		if !et.IsValid() {
			return nil, fmt.Errorf("unknown entity type %q in field table", et)
		}
		if len(list) > maxFieldsPerEntity {
			return nil, fmt.Errorf("entity %q has too many fields (%d, max %d)", et, len(list), maxFieldsPerEntity)
		}

		copied := make([]FieldDef, 0, len(list))
		idx := make(map[string]int, len(list))
		for _, def := range list {
			if err := def.validate(); err != nil {
				return nil, fmt.Errorf("entity %q: %w", et, err)
			}
			if _, dup := idx[def.Name]; dup {
				return nil, fmt.Errorf("entity %q: duplicate field %q", et, def.Name)
			}
			def.Paths = append([]string(nil), def.Paths...)
			idx[def.Name] = len(copied)
			copied = append(copied, def)
		}
		fm.fields[et] = copied
		fm.index[et] = idx
	}

	return fm, nil
}

// Resolve returns the ordered candidate paths for field on entity type t.
// The returned slice must not be modified.
func (fm *FieldMapper) Resolve(field string, t EntityType) ([]string, bool) {
	def, ok := fm.Lookup(field, t)
	if !ok {
		return nil, false
	}
	return def.Paths, true
}

// Lookup returns the full field definition
func (fm *FieldMapper) Lookup(field string, t EntityType) (FieldDef, bool) {
	idx, ok := fm.index[t]
	if !ok {
		return FieldDef{}, false
	}
	i, ok := idx[field]
	if !ok {
		return FieldDef{}, false
	}
	return fm.fields[t][i], true
}

// IsValidField reports whether field exists for entity type t
func (fm *FieldMapper) IsValidField(field string, t EntityType) bool {
	_, ok := fm.Lookup(field, t)
	return ok
}

// Fields returns the field names of t in declaration order
func (fm *FieldMapper) Fields(t EntityType) []string {
	defs := fm.fields[t]
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	return names
}

// Definitions returns a copy of the field definitions of t in declaration order
func (fm *FieldMapper) Definitions(t EntityType) []FieldDef {
	return append([]FieldDef(nil), fm.fields[t]...)
}

// ResolveValue returns the value of the first candidate path that is present
// and non-null, plus the path that produced it.
func (fm *FieldMapper) ResolveValue(record Record, field string, t EntityType) (interface{}, string, bool) {
	paths, ok := fm.Resolve(field, t)
	if !ok {
		return nil, "", false
	}
	for _, p := range paths {
		if v, ok := GetNested(record, p); ok {
			return v, p, true
		}
	}
	return nil, "", false
}

// CompatibleFields returns the fields defined for both entity types, in the
// declaration order of a.
func (fm *FieldMapper) CompatibleFields(a, b EntityType) []string {
	var out []string
	for _, def := range fm.fields[a] {
		if fm.IsValidField(def.Name, b) {
			out = append(out, def.Name)
		}
	}
	return out
}

// EntityTypesFor lists the entity types defining field, in declaration order
func (fm *FieldMapper) EntityTypesFor(field string) []EntityType {
	var out []EntityType
	for _, et := range AllEntityTypes {
		if fm.IsValidField(field, et) {
			out = append(out, et)
		}
	}
	return out
}

// EntityTypes lists the entity types present in the table, in declaration order
func (fm *FieldMapper) EntityTypes() []EntityType {
	var out []EntityType
	for _, et := range AllEntityTypes {
		if _, ok := fm.fields[et]; ok {
			out = append(out, et)
		}
	}
	return out
}

// mappingFileField is the YAML shape of one field override
type mappingFileField struct {
	Name  string             `yaml:"name"`
	Type  string             `yaml:"type"`
	Class string             `yaml:"class"`
	Paths []string           `yaml:"paths"`
	Units string             `yaml:"units"`
	Ranks map[string]float64 `yaml:"ranks"`
}

// LoadFieldMapper builds a mapper from the built-in table merged with the
// overrides in a YAML file. A field with an existing name replaces the
// built-in definition in place; new fields are appended.
//
// File format:
//
//	flows:
//	  - name: source_ip
//	    type: string
//	    class: ip
//	    paths: [src.addr, source.ip]
func LoadFieldMapper(configPath string) (*FieldMapper, error) {
	cleanPath := filepath.Clean(configPath)
	if strings.Contains(configPath, "..") {
		return nil, fmt.Errorf("invalid field mapping path: path traversal detected")
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read field mappings config %q: %w", configPath, err)
	}
	if len(data) > maxMappingFileSize {
		return nil, fmt.Errorf("field mappings config exceeds maximum size of %d bytes", maxMappingFileSize)
	}

	var raw map[string][]mappingFileField
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse field mappings YAML: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("field mappings config is empty or invalid")
	}

	merged := DefaultFieldTable()
	for name, entries := range raw {
		et, err := ParseEntityType(name)
		if err != nil {
			return nil, fmt.Errorf("field mappings config: %w", err)
		}
		for _, entry := range entries {
			def, err := entry.toFieldDef()
			if err != nil {
				return nil, fmt.Errorf("field mappings config, entity %q: %w", et, err)
			}
			merged[et] = upsertField(merged[et], def)
		}
	}

	return NewFieldMapper(merged)
}

func (f mappingFileField) toFieldDef() (FieldDef, error) {
	def := FieldDef{
		Name:  strings.TrimSpace(f.Name),
		Type:  FieldType(strings.ToLower(f.Type)),
		Class: MatchClass(strings.ToLower(f.Class)),
		Paths: f.Paths,
		Ranks: f.Ranks,
	}
	if def.Class == "" {
		def.Class = MatchExact
	}
	if f.Units != "" {
		table, ok := unitTables[strings.ToLower(f.Units)]
		if !ok {
			return FieldDef{}, fmt.Errorf("field %q: unknown unit table %q", f.Name, f.Units)
		}
		def.Units = table
	}
	return def, nil
}

func upsertField(list []FieldDef, def FieldDef) []FieldDef {
	for i := range list {
		if list[i].Name == def.Name {
			list[i] = def
			return list
		}
	}
	return append(list, def)
}
