package repository

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/typeinfo"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/infrastructure"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/query"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/session"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/session/identitymap"
)

// loader materializes rows into record pointers. Records already in the
// session's identity map are reused, so a record reached twice is one
// pointer.
type loader struct {
	ctx     context.Context
	session session.DbSession
	schema  *infrastructure.Schema
	dialect infrastructure.Dialect
	logger  *slog.Logger

	// assignments set the loaded navigations once every directive ran, the
	// deepest first, so that records held by value are copied complete.
	assignments []func()
}

// selection accumulates the parts of one SELECT.
type selection struct {
	mapping *infrastructure.EntityMapping
	alias   string
	where   []string
	params  []any
}

func (l *loader) selection(t reflect.Type) *selection {
	m := l.schema.Entity(t)
	return &selection{mapping: m, alias: m.AliasBase()}
}

func (s *selection) filter(f *filter.Filter, opts ...infrastructure.VisitorOption) error {
	opts = append(opts, infrastructure.WithRootAlias(s.alias), infrastructure.PlaceholderIndex(len(s.params)))
	sql, params, err := infrastructure.Compile(f, opts...)
	if err != nil {
		return err
	}
	if sql != "" {
		s.where = append(s.where, sql)
		s.params = append(s.params, params...)
	}
	return nil
}

func (s *selection) in(dialect infrastructure.Dialect, column string, values []any) {
	placeholders := make([]string, len(values))
	for i, v := range values {
		s.params = append(s.params, v)
		placeholders[i] = dialect.Placeholder(len(s.params))
	}
	s.where = append(s.where, s.alias+"."+column+" IN ("+strings.Join(placeholders, ", ")+")")
}

func (s *selection) sql() string {
	fields := s.mapping.Fields()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = s.alias + "." + f.Column
	}
	var b strings.Builder
	b.WriteString("SELECT " + strings.Join(columns, ", "))
	b.WriteString(" FROM " + s.mapping.Table + " AS " + s.alias)
	if len(s.where) == 1 {
		b.WriteString(" WHERE " + s.where[0])
	} else if len(s.where) > 1 {
		b.WriteString(" WHERE (" + strings.Join(s.where, ") AND (") + ")")
	}
	b.WriteString(" ORDER BY " + s.alias + "." + s.mapping.Key)
	return b.String()
}

func (l *loader) compileOptions() []infrastructure.VisitorOption {
	return []infrastructure.VisitorOption{infrastructure.WithDialect(l.dialect), infrastructure.WithSchema(l.schema)}
}

func (l *loader) rootSelection(t reflect.Type, filters []*filter.Filter) (*selection, error) {
	s := l.selection(t)
	for _, f := range filters {
		if err := s.filter(f, l.compileOptions()...); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (l *loader) roots(t reflect.Type, filters []*filter.Filter) ([]reflect.Value, error) {
	s, err := l.rootSelection(t, filters)
	if err != nil {
		return nil, err
	}
	return l.fetch(s)
}

// Statement renders the root SELECT issued for q. Navigations are loaded by
// further statements whose keys depend on the root rows.
func Statement(schema *infrastructure.Schema, dialect infrastructure.Dialect, q *query.Query) (string, []any, error) {
	l := &loader{schema: schema, dialect: dialect}
	s, err := l.rootSelection(q.RecordType(), q.Filters())
	if err != nil {
		return "", nil, err
	}
	return s.sql(), s.params, nil
}

func (l *loader) byKey(m *infrastructure.EntityMapping, column string, key any) ([]reflect.Value, error) {
	s := l.selection(m.Type)
	s.params = append(s.params, key)
	s.where = append(s.where, s.alias+"."+column+" = "+l.dialect.Placeholder(1))
	return l.fetch(s)
}

// fetch runs s and returns one record pointer per row.
func (l *loader) fetch(s *selection) ([]reflect.Value, error) {
	if err := l.ctx.Err(); err != nil {
		return nil, err
	}
	keyField, err := s.mapping.KeyFieldColumn()
	if err != nil {
		return nil, err
	}
	statement := s.sql()
	l.logger.Debug("fetching", "type", s.mapping.Type.Name(), "sql", statement, "params", len(s.params))

	rows, err := l.session.Connection().Query(statement, s.params...)
	if err != nil {
		return nil, errors.Wrapf(err, "repository: query %s failed", s.mapping.Table)
	}
	defer rows.Close()

	fields := s.mapping.Fields()
	identities := l.session.IdentityMap()
	var result []reflect.Value
	for rows.Next() {
		record := reflect.New(s.mapping.Type)
		dest := make([]any, len(fields))
		for i, f := range fields {
			dest[i] = record.Elem().FieldByIndex(f.Field.Index).Addr().Interface()
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.Wrapf(err, "repository: scanning %s failed", s.mapping.Table)
		}
		identity := identitymap.KeyOf(s.mapping.Type, record.Elem().FieldByIndex(keyField.Field.Index).Interface())
		if existing, err := identities.Get(identity); err == nil {
			record = reflect.ValueOf(existing)
		} else {
			identities.Add(identity, record.Interface())
		}
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "repository: reading %s failed", s.mapping.Table)
	}
	return result, nil
}

// include follows every directive in order; a chained directive starts
// from the records its parent directive reached.
func (l *loader) include(directives []*query.Directive, roots []reflect.Value) error {
	reached := map[string][]reflect.Value{"": roots}
	for _, d := range directives {
		parent := ""
		if d.Chained() {
			parent = "." + strings.Join(d.Path[:len(d.Path)-1], ".")
		}
		owners := distinct(reached[parent])
		if len(owners) == 0 {
			continue
		}
		nav, err := l.schema.Entity(d.Owner).Navigation(d.Field)
		if err != nil {
			return err
		}
		l.logger.Debug("including", "path", d.String(), "relation", nav.Relation.String(), "owners", len(owners))
		var records []reflect.Value
		switch nav.Relation {
		case infrastructure.HasMany:
			records, err = l.hasMany(d, nav, owners)
		case infrastructure.BelongsTo:
			records, err = l.belongsTo(d, nav, owners)
		default:
			err = errors.Errorf("repository: %s is stored with its owner and cannot be included", d)
		}
		if err != nil {
			return err
		}
		reached[d.String()] = append(reached[d.String()], records...)
	}
	for i := len(l.assignments) - 1; i >= 0; i-- {
		l.assignments[i]()
	}
	l.assignments = nil
	return nil
}

func singleKey(d *query.Directive, nav infrastructure.NavigationMapping) (infrastructure.ForeignKeyPair, error) {
	if len(nav.ForeignKeys) != 1 {
		return infrastructure.ForeignKeyPair{}, errors.Errorf("repository: %s has a composite foreign key, which eager loading does not support", d)
	}
	return nav.ForeignKeys[0], nil
}

func (l *loader) hasMany(d *query.Directive, nav infrastructure.NavigationMapping, owners []reflect.Value) ([]reflect.Value, error) {
	fk, err := singleKey(d, nav)
	if err != nil {
		return nil, err
	}
	parentField, err := l.schema.Entity(d.Owner).FieldByColumn(fk.ParentColumn)
	if err != nil {
		return nil, err
	}
	s := l.selection(nav.Target)
	childField, err := s.mapping.FieldByColumn(fk.ChildColumn)
	if err != nil {
		return nil, err
	}

	values, _ := fieldValues(owners, parentField)
	var children []reflect.Value
	if len(values) > 0 {
		s.in(l.dialect, fk.ChildColumn, values)
		if d.Filter != nil {
			if err := s.filter(d.Filter, l.compileOptions()...); err != nil {
				return nil, err
			}
		}
		if children, err = l.fetch(s); err != nil {
			return nil, err
		}
	}

	groups := make(map[string][]reflect.Value)
	for _, child := range children {
		if k, ok := groupKey(child.Elem().FieldByIndex(childField.Field.Index)); ok {
			groups[k] = append(groups[k], child)
		}
	}
	l.assignments = append(l.assignments, func() {
		for _, owner := range owners {
			collection := owner.Elem().FieldByIndex(d.Field.Index)
			k, _ := groupKey(owner.Elem().FieldByIndex(parentField.Field.Index))
			items := reflect.MakeSlice(collection.Type(), 0, len(groups[k]))
			for _, child := range groups[k] {
				items = reflect.Append(items, element(child, collection.Type().Elem()))
			}
			collection.Set(items)
		}
	})
	return children, nil
}

func (l *loader) belongsTo(d *query.Directive, nav infrastructure.NavigationMapping, owners []reflect.Value) ([]reflect.Value, error) {
	fk, err := singleKey(d, nav)
	if err != nil {
		return nil, err
	}
	childField, err := l.schema.Entity(d.Owner).FieldByColumn(fk.ChildColumn)
	if err != nil {
		return nil, err
	}
	s := l.selection(nav.Target)
	parentField, err := s.mapping.FieldByColumn(fk.ParentColumn)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]reflect.Value)
	var pending []any
	values, keys := fieldValues(owners, childField)
	for i, v := range values {
		if parent, ok := l.cached(s.mapping, fk.ParentColumn, parentField, v); ok {
			byKey[keys[i]] = parent
			continue
		}
		pending = append(pending, v)
	}
	if len(pending) > 0 {
		s.in(l.dialect, fk.ParentColumn, pending)
		parents, err := l.fetch(s)
		if err != nil {
			return nil, err
		}
		for _, parent := range parents {
			if k, ok := groupKey(parent.Elem().FieldByIndex(parentField.Field.Index)); ok {
				byKey[k] = parent
			}
		}
	}

	var result []reflect.Value
	var linked [][2]reflect.Value
	for _, owner := range owners {
		k, ok := groupKey(owner.Elem().FieldByIndex(childField.Field.Index))
		if !ok {
			continue
		}
		parent, ok := byKey[k]
		if !ok {
			continue
		}
		linked = append(linked, [2]reflect.Value{owner, parent})
		result = append(result, parent)
	}
	l.assignments = append(l.assignments, func() {
		for _, link := range linked {
			field := link[0].Elem().FieldByIndex(d.Field.Index)
			field.Set(element(link[1], field.Type()))
		}
	})
	return result, nil
}

// cached looks a referenced record up in the identity map; only references
// to the key column can be resolved there.
func (l *loader) cached(m *infrastructure.EntityMapping, column string, field infrastructure.FieldColumn, value any) (reflect.Value, bool) {
	if column != m.Key {
		return reflect.Value{}, false
	}
	key, err := typeinfo.ChangeType(value, field.Field.Type)
	if err != nil || key == nil {
		return reflect.Value{}, false
	}
	record, err := l.session.IdentityMap().Get(identitymap.KeyOf(m.Type, key))
	if err != nil {
		return reflect.Value{}, false
	}
	return reflect.ValueOf(record), true
}

// fieldValues collects the distinct non-null values of field across
// records, with their grouping keys.
func fieldValues(records []reflect.Value, field infrastructure.FieldColumn) (values []any, keys []string) {
	seen := make(map[string]struct{})
	for _, r := range records {
		v := r.Elem().FieldByIndex(field.Field.Index)
		k, ok := groupKey(v)
		if !ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		values = append(values, reflect.Indirect(v).Interface())
		keys = append(keys, k)
	}
	return values, keys
}

// groupKey renders a key value so that a nullable FK and the key it
// references group together; null has no key.
func groupKey(v reflect.Value) (string, bool) {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return "", false
		}
		v = v.Elem()
	}
	return fmt.Sprint(v.Interface()), true
}

// element adapts a record pointer to a field or slice element type.
func element(record reflect.Value, t reflect.Type) reflect.Value {
	if t.Kind() == reflect.Pointer {
		return record
	}
	return record.Elem()
}

func distinct(records []reflect.Value) []reflect.Value {
	seen := make(map[uintptr]struct{}, len(records))
	var result []reflect.Value
	for _, r := range records {
		if _, ok := seen[r.Pointer()]; ok {
			continue
		}
		seen[r.Pointer()] = struct{}{}
		result = append(result, r)
	}
	return result
}
