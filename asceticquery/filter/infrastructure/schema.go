package infrastructure

import (
	"reflect"
	"strings"

	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/typeinfo"
)

var ErrEntityNotMapped = errors.New("infrastructure: entity not mapped")

// Relation defines how a navigation field maps to storage
type Relation int

const (
	// BelongsTo is a many-to-one reference; the owner row holds the FK
	BelongsTo Relation = iota + 1
	// HasMany is a one-to-many collection stored in a separate table
	HasMany
	// Embedded is a collection of values stored as an array in the owner row
	Embedded
)

func (r Relation) String() string {
	switch r {
	case BelongsTo:
		return "belongsTo"
	case HasMany:
		return "hasMany"
	case Embedded:
		return "embedded"
	}
	return "unknown"
}

// ForeignKeyPair represents a single FK column mapping
type ForeignKeyPair struct {
	// ChildColumn is the column of the row holding the reference (e.g., "course_id")
	ChildColumn string
	// ParentColumn is the referenced column (e.g., "id")
	ParentColumn string
}

// NavigationMapping defines how a navigation field maps to storage
type NavigationMapping struct {
	Field    string
	Relation Relation

	// Target is the referenced record type, or the element type of an
	// embedded collection.
	Target reflect.Type

	// Column is the array column of an embedded collection.
	Column string

	// ForeignKeys defines the FK relationship (supports composite keys).
	// For BelongsTo the child is the owner, for HasMany the child is the target.
	ForeignKeys []ForeignKeyPair
}

// FieldColumn pairs a scalar field with its column.
type FieldColumn struct {
	Field  reflect.StructField
	Column string
}

// EntityMapping maps a record type onto a table.
type EntityMapping struct {
	Type  reflect.Type
	Table string

	// Alias prefixes the aliases generated for this table (defaults to the
	// singularized table name).
	Alias string

	KeyField string
	Key      string

	columns     map[string]string
	navigations map[string]NavigationMapping
	schema      *Schema
}

type EntityOption func(*EntityMapping)

func WithTable(table string) EntityOption {
	return func(m *EntityMapping) {
		m.Table = table
	}
}

func WithAlias(alias string) EntityOption {
	return func(m *EntityMapping) {
		m.Alias = alias
	}
}

// WithKey sets the key field and its column (defaults to Id and id).
func WithKey(field, column string) EntityOption {
	return func(m *EntityMapping) {
		m.KeyField = field
		m.Key = column
		m.columns[field] = column
	}
}

func WithColumn(field, column string) EntityOption {
	return func(m *EntityMapping) {
		m.columns[field] = column
	}
}

// WithBelongsTo maps a many-to-one navigation whose FK column lives on the
// owner table.
func WithBelongsTo(field, column string) EntityOption {
	return func(m *EntityMapping) {
		m.navigations[field] = NavigationMapping{
			Field:       field,
			Relation:    BelongsTo,
			ForeignKeys: []ForeignKeyPair{{ChildColumn: column}},
		}
	}
}

// WithHasMany maps a one-to-many navigation whose FK column lives on the
// target table.
func WithHasMany(field, column string) EntityOption {
	return func(m *EntityMapping) {
		m.navigations[field] = NavigationMapping{
			Field:       field,
			Relation:    HasMany,
			ForeignKeys: []ForeignKeyPair{{ChildColumn: column}},
		}
	}
}

// WithForeignKeys maps a navigation with a composite FK.
func WithForeignKeys(field string, relation Relation, foreignKeys ...ForeignKeyPair) EntityOption {
	return func(m *EntityMapping) {
		m.navigations[field] = NavigationMapping{
			Field:       field,
			Relation:    relation,
			ForeignKeys: foreignKeys,
		}
	}
}

// WithEmbedded maps a collection of values stored as an array column.
func WithEmbedded(field, column string) EntityOption {
	return func(m *EntityMapping) {
		m.navigations[field] = NavigationMapping{
			Field:    field,
			Relation: Embedded,
			Column:   column,
		}
	}
}

// Schema holds the table mappings of the record types a repository reads.
// Unregistered types fall back to naming conventions: table "courses" for
// Course, column "last_name" for LastName, key "id".
type Schema struct {
	entities map[reflect.Type]*EntityMapping
}

func NewSchema() *Schema {
	return &Schema{entities: make(map[reflect.Type]*EntityMapping)}
}

// Register maps t, replacing an earlier registration.
func (s *Schema) Register(t reflect.Type, opts ...EntityOption) *EntityMapping {
	t = typeinfo.Core(t)
	m := s.defaultMapping(t)
	for i := range opts {
		opts[i](m)
	}
	s.entities[t] = m
	return m
}

func (s *Schema) defaultMapping(t reflect.Type) *EntityMapping {
	return &EntityMapping{
		Type:        t,
		Table:       tableName(t.Name()),
		KeyField:    "Id",
		Key:         "id",
		columns:     make(map[string]string),
		navigations: make(map[string]NavigationMapping),
		schema:      s,
	}
}

// Entity returns the mapping of t, or the conventional one when t was
// never registered.
func (s *Schema) Entity(t reflect.Type) *EntityMapping {
	t = typeinfo.Core(t)
	if m, ok := s.entities[t]; ok {
		return m
	}
	return s.defaultMapping(t)
}

// Mapped returns the registered mapping of t.
func (s *Schema) Mapped(t reflect.Type) (*EntityMapping, error) {
	if m, ok := s.entities[typeinfo.Core(t)]; ok {
		return m, nil
	}
	return nil, errors.Wrapf(ErrEntityNotMapped, "%s", typeinfo.Core(t))
}

// Types lists the registered record types.
func (s *Schema) Types() []reflect.Type {
	result := make([]reflect.Type, 0, len(s.entities))
	for t := range s.entities {
		result = append(result, t)
	}
	return result
}

func (m *EntityMapping) AliasBase() string {
	if m.Alias != "" {
		return m.Alias
	}
	return aliasBase(m.Table)
}

// Column returns the column of a scalar field: an explicit mapping, a `db`
// struct tag or the snake-cased field name.
func (m *EntityMapping) Column(field reflect.StructField) string {
	if c, ok := m.columns[field.Name]; ok {
		return c
	}
	if tag := field.Tag.Get("db"); tag != "" && tag != "-" {
		return strings.Split(tag, ",")[0]
	}
	return snakeCase(field.Name)
}

// Fields lists the scalar fields of the record with their columns, in
// declaration order. Fields tagged `db:"-"` are skipped.
func (m *EntityMapping) Fields() []FieldColumn {
	var result []FieldColumn
	for _, f := range reflect.VisibleFields(m.Type) {
		if !f.IsExported() || f.Anonymous || f.Tag.Get("db") == "-" {
			continue
		}
		if !typeinfo.IsScalar(f.Type) {
			if n, ok := m.navigations[f.Name]; !ok || n.Relation != Embedded {
				continue
			}
		}
		result = append(result, FieldColumn{Field: f, Column: m.Column(f)})
	}
	return result
}

// FieldByColumn returns the scalar field stored in column.
func (m *EntityMapping) FieldByColumn(column string) (FieldColumn, error) {
	for _, f := range m.Fields() {
		if f.Column == column {
			return f, nil
		}
	}
	return FieldColumn{}, errors.Errorf("infrastructure: %s has no field for column %s", m.Type.Name(), column)
}

// KeyFieldColumn returns the key field of the record.
func (m *EntityMapping) KeyFieldColumn() (FieldColumn, error) {
	f, ok := m.Type.FieldByName(m.KeyField)
	if !ok {
		return FieldColumn{}, errors.Errorf("infrastructure: %s has no key field %s", m.Type, m.KeyField)
	}
	return FieldColumn{Field: f, Column: m.Key}, nil
}

// Navigation returns the mapping of a navigation field, completing
// registered mappings and inferring unregistered ones: a record reference
// belongs to the target through "<field>_id", a record collection is owned
// through "<owner>_id" on the target table, a value collection is an
// embedded array.
func (m *EntityMapping) Navigation(field reflect.StructField) (NavigationMapping, error) {
	n, registered := m.navigations[field.Name]
	if !registered {
		n = NavigationMapping{Field: field.Name}
		switch {
		case typeinfo.IsCollection(field.Type) && typeinfo.IsRecord(field.Type.Elem()):
			n.Relation = HasMany
		case typeinfo.IsCollection(field.Type):
			n.Relation = Embedded
		case typeinfo.IsRecord(field.Type):
			n.Relation = BelongsTo
		default:
			return NavigationMapping{}, errors.Errorf("infrastructure: %s.%s is not a navigation", m.Type.Name(), field.Name)
		}
	}
	switch n.Relation {
	case Embedded:
		n.Target = typeinfo.ElemType(typeinfo.Core(field.Type))
		if n.Column == "" {
			n.Column = m.Column(field)
		}
		return n, nil
	case HasMany:
		n.Target = typeinfo.Core(typeinfo.ElemType(typeinfo.Core(field.Type)))
		if len(n.ForeignKeys) == 0 {
			n.ForeignKeys = []ForeignKeyPair{{ChildColumn: snakeCase(m.Type.Name()) + "_id"}}
		}
		n.ForeignKeys = completeKeys(n.ForeignKeys, m.Key)
	case BelongsTo:
		n.Target = typeinfo.Core(field.Type)
		if len(n.ForeignKeys) == 0 {
			n.ForeignKeys = []ForeignKeyPair{{ChildColumn: snakeCase(field.Name) + "_id"}}
		}
		n.ForeignKeys = completeKeys(n.ForeignKeys, m.schema.Entity(n.Target).Key)
	}
	return n, nil
}

func completeKeys(keys []ForeignKeyPair, parent string) []ForeignKeyPair {
	result := make([]ForeignKeyPair, len(keys))
	for i, k := range keys {
		if k.ParentColumn == "" {
			k.ParentColumn = parent
		}
		result[i] = k
	}
	return result
}
