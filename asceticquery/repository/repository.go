// Package repository runs queries against a relational database: one
// SELECT for the root records, then one per included navigation.
package repository

import (
	"context"
	"io"
	"log/slog"
	"reflect"

	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/typeinfo"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/infrastructure"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/projection"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/query"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/session"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/session/identitymap"
)

var ErrNotFound = errors.New("repository: record not found")

type Option func(*options)

type options struct {
	logger        *slog.Logger
	filterOptions []filter.Option
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithFilterOptions configures the compilation of filters and filtered
// includes.
func WithFilterOptions(opts ...filter.Option) Option {
	return func(o *options) {
		o.filterOptions = append(o.filterOptions, opts...)
	}
}

type Repository[T any] struct {
	schema  *infrastructure.Schema
	dialect infrastructure.Dialect
	options
}

func NewRepository[T any](schema *infrastructure.Schema, dialect infrastructure.Dialect, opts ...Option) *Repository[T] {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for i := range opts {
		opts[i](&o)
	}
	return &Repository[T]{schema: schema, dialect: dialect, options: o}
}

func (r *Repository[T]) recordType() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// List returns the records matching filterText with the navigations named
// by includes loaded; navigations outside includes are left empty.
func (r *Repository[T]) List(ctx context.Context, s session.DbSession, includes []string, filterText string) ([]T, error) {
	q, err := query.Prepare(r.recordType(), includes, filterText, r.filterOptions...)
	if err != nil {
		return nil, err
	}
	l := r.loader(ctx, s)
	roots, err := l.roots(q.RecordType(), q.Filters())
	if err != nil {
		return nil, err
	}
	return r.finish(l, q, roots)
}

// Get returns the record whose key equals id.
func (r *Repository[T]) Get(ctx context.Context, s session.DbSession, id any, includes []string) (T, error) {
	var zero T
	q, err := query.ApplyIncludes(query.New[T](), includes, r.filterOptions...)
	if err != nil {
		return zero, err
	}
	m := r.schema.Entity(r.recordType())
	keyField, err := m.KeyFieldColumn()
	if err != nil {
		return zero, err
	}
	key, err := typeinfo.ChangeType(id, keyField.Field.Type)
	if err != nil {
		return zero, errors.Wrapf(err, "repository: invalid key %v", id)
	}
	identity := identitymap.KeyOf(m.Type, key)
	if _, err := s.IdentityMap().Get(identity); errors.Is(err, identitymap.ErrObjectNotFound) {
		return zero, errors.Wrapf(ErrNotFound, "%s", identity)
	}

	l := r.loader(ctx, s)
	roots, err := l.byKey(m, keyField.Column, key)
	if err != nil {
		return zero, err
	}
	if len(roots) == 0 {
		s.IdentityMap().AddAbsent(identity)
		return zero, errors.Wrapf(ErrNotFound, "%s", identity)
	}
	result, err := r.finish(l, q, roots[:1])
	if err != nil {
		return zero, err
	}
	return result[0], nil
}

func (r *Repository[T]) loader(ctx context.Context, s session.DbSession) *loader {
	return &loader{
		ctx:     ctx,
		session: s,
		schema:  r.schema,
		dialect: r.dialect,
		logger:  r.logger,
	}
}

// finish loads the included navigations of roots, prunes the rest and
// converts the records to T.
func (r *Repository[T]) finish(l *loader, q *query.Query, roots []reflect.Value) ([]T, error) {
	if err := l.include(q.Directives(), roots); err != nil {
		return nil, err
	}
	if err := projection.RemoveCycles(recordSlice(roots), q.IncludedPaths(), projection.WithLogger(r.logger)); err != nil {
		return nil, err
	}
	pointers := r.recordType().Kind() == reflect.Pointer
	result := make([]T, len(roots))
	for i, record := range roots {
		if pointers {
			result[i] = record.Interface().(T)
		} else {
			result[i] = record.Elem().Interface().(T)
		}
	}
	return result, nil
}

// recordSlice collects record pointers into a typed slice.
func recordSlice(records []reflect.Value) any {
	if len(records) == 0 {
		return nil
	}
	s := reflect.MakeSlice(reflect.SliceOf(records[0].Type()), len(records), len(records))
	for i, r := range records {
		s.Index(i).Set(r)
	}
	return s.Interface()
}
