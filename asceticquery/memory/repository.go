// Package memory runs queries against records held in memory.
package memory

import (
	"context"
	"reflect"
	"strings"

	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/typeinfo"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/query"
)

var ErrNotFound = errors.New("memory: record not found")

// Repository serves List and Get over a fixed set of linked records. The
// source graph is never modified: results are copies of the records along
// the included paths, with filtered collections narrowed and every other
// navigation cleared.
type Repository[T any] struct {
	source  []T
	options []filter.Option
	keyName string
}

// NewRepository serves source; opts configure the compilation of filters
// and filtered includes.
func NewRepository[T any](source []T, opts ...filter.Option) *Repository[T] {
	return &Repository[T]{source: source, options: opts, keyName: "Id"}
}

// WithKey names the key field Get looks up (Id by default).
func (r *Repository[T]) WithKey(field string) *Repository[T] {
	c := *r
	c.keyName = field
	return &c
}

func (r *Repository[T]) recordType() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func (r *Repository[T]) List(ctx context.Context, includes []string, filterText string) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q, err := query.Prepare(r.recordType(), includes, filterText, r.options...)
	if err != nil {
		return nil, err
	}
	var roots []T
	for _, record := range r.source {
		ok, err := q.Match(record)
		if err != nil {
			return nil, err
		}
		if ok {
			roots = append(roots, record)
		}
	}
	return r.materialize(q, roots)
}

// Get returns the record whose key field equals id.
func (r *Repository[T]) Get(ctx context.Context, id any, includes []string) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	field, ok := typeinfo.Core(r.recordType()).FieldByName(r.keyName)
	if !ok {
		return zero, errors.Errorf("memory: %s has no key field %s", r.recordType(), r.keyName)
	}
	key, err := typeinfo.ChangeType(id, field.Type)
	if err != nil {
		return zero, errors.Wrapf(err, "memory: invalid key %v", id)
	}
	q, err := query.ApplyIncludes(query.New[T](), includes, r.options...)
	if err != nil {
		return zero, err
	}
	for _, record := range r.source {
		v := reflect.Indirect(reflect.ValueOf(record))
		if !v.IsValid() || v.FieldByIndex(field.Index).Interface() != key {
			continue
		}
		result, err := r.materialize(q, []T{record})
		if err != nil {
			return zero, err
		}
		return result[0], nil
	}
	return zero, errors.Wrapf(ErrNotFound, "%s %v", r.keyName, id)
}

func (r *Repository[T]) materialize(q *query.Query, roots []T) ([]T, error) {
	g := newGraph()
	result := make([]T, len(roots))
	level := make(map[string][]reflect.Value)
	for i, record := range roots {
		result[i] = g.copy(reflect.ValueOf(record)).Interface().(T)
		if owner, ok := g.record(reflect.ValueOf(&result[i]).Elem()); ok {
			level[""] = append(level[""], owner)
		}
	}
	for _, d := range q.Directives() {
		parent := ""
		if d.Chained() {
			parent = "." + strings.Join(d.Path[:len(d.Path)-1], ".")
		}
		path := d.String()
		for _, owner := range level[parent] {
			reached, err := g.follow(owner, d)
			if err != nil {
				return nil, err
			}
			level[path] = append(level[path], reached...)
		}
		level[path] = g.distinct(level[path])
	}
	if err := q.RemoveCycles(result); err != nil {
		return nil, err
	}
	return result, nil
}
