// Package query describes what to fetch: a root record type, filters over
// it and the navigations to load eagerly.
package query

import (
	"reflect"
	"strings"

	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/typeinfo"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/projection"
)

// Directive loads one navigation. Path holds the field names from the
// root record; the navigation itself is the last one.
type Directive struct {
	Path  []string
	Field reflect.StructField

	// Owner is the record type declaring Field.
	Owner reflect.Type
	// Target is the navigated record type (the element type for collections).
	Target reflect.Type
	// Collection is true for one-to-many navigations.
	Collection bool
	// Filter restricts a collection navigation; nil loads every element.
	Filter *filter.Filter
}

// Chained reports whether the directive continues from a previous
// navigation rather than from the root.
func (d *Directive) Chained() bool {
	return len(d.Path) > 1
}

// String renders the dotted path, ".A.B".
func (d *Directive) String() string {
	return "." + strings.Join(d.Path, ".")
}

// Query is immutable; Where and ApplyIncludes return extended copies.
type Query struct {
	recordType reflect.Type
	filters    []*filter.Filter
	directives []*Directive
}

func New[T any]() *Query {
	return For(reflect.TypeOf((*T)(nil)).Elem())
}

func For(recordType reflect.Type) *Query {
	return &Query{recordType: recordType}
}

func (q *Query) RecordType() reflect.Type {
	return q.recordType
}

func (q *Query) clone() *Query {
	c := *q
	c.filters = append([]*filter.Filter(nil), q.filters...)
	c.directives = append([]*Directive(nil), q.directives...)
	return &c
}

// Where adds a filter; several filters are combined with and.
func (q *Query) Where(f *filter.Filter) (*Query, error) {
	if f == nil || f.IsMatchAll() {
		return q, nil
	}
	if typeinfo.Core(f.RecordType()) != typeinfo.Core(q.recordType) {
		return nil, errors.Errorf("query: filter over %s cannot restrict %s", f.RecordType(), q.recordType)
	}
	c := q.clone()
	c.filters = append(c.filters, f)
	return c, nil
}

func (q *Query) Filters() []*filter.Filter {
	return q.filters
}

// Match reports whether record satisfies every filter.
func (q *Query) Match(record any) (bool, error) {
	for _, f := range q.filters {
		ok, err := f.Match(record)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (q *Query) Directives() []*Directive {
	return q.directives
}

// IncludedPaths lists every requested navigation path and its prefixes,
// deduplicated in order of first appearance.
func (q *Query) IncludedPaths() []string {
	seen := make(map[string]struct{})
	var result []string
	for _, d := range q.directives {
		path := d.String()
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		result = append(result, path)
	}
	return result
}

// RemoveCycles prunes fetched results down to the included paths.
func (q *Query) RemoveCycles(results any, opts ...projection.Option) error {
	return projection.RemoveCycles(results, q.IncludedPaths(), opts...)
}

// Prepare builds the query a List call runs: includes first, then the
// filter over recordType. opts apply to both.
func Prepare(recordType reflect.Type, includes []string, filterText string, opts ...filter.Option) (*Query, error) {
	q, err := ApplyIncludes(For(recordType), includes, opts...)
	if err != nil {
		return nil, err
	}
	f, err := filter.ParseType(filterText, recordType, opts...)
	if err != nil {
		return nil, err
	}
	return q.Where(f)
}
