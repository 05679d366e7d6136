package infrastructure

import (
	"bytes"
	_ "embed"
	"os"
	"path/filepath"
	"reflect"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/typeinfo"
)

//go:embed mapping_schema.cue
var mappingSchema string

// Mapping is the relational mapping of record types, keyed by Go type name.
//
//	entities:
//	  Course:
//	    table: courses
//	    navigations:
//	      Enrollments: {relation: hasMany, foreignKeys: [{child: course_id}]}
type Mapping struct {
	Entities map[string]EntityConfig `yaml:"entities" json:"entities"`
}

type EntityConfig struct {
	Table       string                      `yaml:"table,omitempty" json:"table,omitempty"`
	Alias       string                      `yaml:"alias,omitempty" json:"alias,omitempty"`
	Key         *KeyConfig                  `yaml:"key,omitempty" json:"key,omitempty"`
	Columns     map[string]string           `yaml:"columns,omitempty" json:"columns,omitempty"`
	Navigations map[string]NavigationConfig `yaml:"navigations,omitempty" json:"navigations,omitempty"`
}

type KeyConfig struct {
	Field  string `yaml:"field" json:"field"`
	Column string `yaml:"column" json:"column"`
}

type NavigationConfig struct {
	Relation    string             `yaml:"relation" json:"relation"`
	Column      string             `yaml:"column,omitempty" json:"column,omitempty"`
	ForeignKeys []ForeignKeyConfig `yaml:"foreignKeys,omitempty" json:"foreignKeys,omitempty"`
}

type ForeignKeyConfig struct {
	Child  string `yaml:"child" json:"child"`
	Parent string `yaml:"parent,omitempty" json:"parent,omitempty"`
}

// LoadMapping reads a .yaml/.yml or .cue mapping file.
func LoadMapping(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "mapping: failed to read file")
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return ParseYAMLMapping(data)
	case ".cue":
		return ParseCUEMapping(data, path)
	}
	return nil, errors.Errorf("mapping: unsupported file type %q", filepath.Ext(path))
}

// ParseYAMLMapping rejects unknown fields.
func ParseYAMLMapping(data []byte) (*Mapping, error) {
	var m Mapping
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&m); err != nil {
		return nil, errors.Wrap(err, "mapping: failed to parse YAML")
	}
	return &m, nil
}

// ParseCUEMapping unifies the document with the mapping schema and decodes
// it once it is concrete.
func ParseCUEMapping(data []byte, filename string) (*Mapping, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(mappingSchema, cue.Filename("mapping_schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, errors.Wrap(err, "mapping: invalid schema")
	}
	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, errors.Wrap(err, "mapping: failed to compile CUE")
	}
	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, errors.Wrap(err, "mapping: invalid CUE mapping")
	}
	var m Mapping
	if err := unified.Decode(&m); err != nil {
		return nil, errors.Wrap(err, "mapping: failed to decode CUE")
	}
	return &m, nil
}

func ParseRelation(name string) (Relation, error) {
	for _, r := range []Relation{BelongsTo, HasMany, Embedded} {
		if r.String() == name {
			return r, nil
		}
	}
	return 0, errors.Errorf("mapping: unknown relation %q", name)
}

// Apply registers the mapped entities among types in s. Every entity of the
// mapping must name one of types.
func (m *Mapping) Apply(s *Schema, types ...reflect.Type) error {
	byName := make(map[string]reflect.Type, len(types))
	for _, t := range types {
		t = typeinfo.Core(t)
		byName[t.Name()] = t
	}
	names := make([]string, 0, len(m.Entities))
	for name := range m.Entities {
		names = append(names, name)
	}
	sort.Strings(names)

	var result error
	for _, name := range names {
		t, ok := byName[name]
		if !ok {
			result = multierror.Append(result, errors.Errorf("mapping: entity %s matches none of the given types", name))
			continue
		}
		opts, err := m.Entities[name].options()
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "entity %s", name))
			continue
		}
		s.Register(t, opts...)
	}
	return result
}

func (c EntityConfig) options() ([]EntityOption, error) {
	var opts []EntityOption
	if c.Table != "" {
		opts = append(opts, WithTable(c.Table))
	}
	if c.Alias != "" {
		opts = append(opts, WithAlias(c.Alias))
	}
	if c.Key != nil {
		opts = append(opts, WithKey(c.Key.Field, c.Key.Column))
	}
	for field, column := range c.Columns {
		opts = append(opts, WithColumn(field, column))
	}
	for field, nav := range c.Navigations {
		relation, err := ParseRelation(nav.Relation)
		if err != nil {
			return nil, err
		}
		if relation == Embedded {
			opts = append(opts, WithEmbedded(field, nav.Column))
			continue
		}
		keys := make([]ForeignKeyPair, len(nav.ForeignKeys))
		for i, fk := range nav.ForeignKeys {
			keys[i] = ForeignKeyPair{ChildColumn: fk.Child, ParentColumn: fk.Parent}
		}
		opts = append(opts, WithForeignKeys(field, relation, keys...))
	}
	return opts, nil
}
