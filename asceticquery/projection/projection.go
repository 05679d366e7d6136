// Package projection prunes a fetched record graph down to the requested
// include paths.
package projection

import (
	"io"
	"log/slog"
	"reflect"

	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/typeinfo"
)

var ErrUnsupportedResult = errors.New("projection: results must be a pointer, a slice or a pointer to a slice")

type Option func(*options)

type options struct {
	logger *slog.Logger
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

type identity struct {
	addr uintptr
	typ  reflect.Type
}

type pending struct {
	value reflect.Value
	path  string
}

// RemoveCycles walks results breadth first and clears every navigation
// field whose dotted path (".A", ".A.B") is not in paths. Each record is
// visited once, so cyclic graphs terminate. Navigation fields are
// pointers to records, collections of records and maps; scalar fields,
// scalar slices and embedded struct values are left alone.
func RemoveCycles(results any, paths []string, opts ...Option) error {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for i := range opts {
		opts[i](&o)
	}
	if results == nil {
		return nil
	}
	requested := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		requested[p] = struct{}{}
	}

	var queue []pending
	root := reflect.ValueOf(results)
	switch {
	case root.Kind() == reflect.Pointer && root.IsNil():
		return nil
	case root.Kind() == reflect.Pointer && root.Elem().Kind() == reflect.Slice:
		queue = enqueueElements(queue, root.Elem(), "")
	case root.Kind() == reflect.Slice:
		queue = enqueueElements(queue, root, "")
	case root.Kind() == reflect.Pointer && root.Elem().Kind() == reflect.Struct:
		queue = enqueue(queue, root, "")
	default:
		return errors.Wrapf(ErrUnsupportedResult, "got %s", root.Type())
	}

	visited := make(map[identity]struct{})
	pruned := 0
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		id := identity{addr: next.value.Addr().Pointer(), typ: next.value.Type()}
		if _, ok := visited[id]; ok {
			continue
		}
		visited[id] = struct{}{}

		for _, field := range reflect.VisibleFields(next.value.Type()) {
			if !field.IsExported() || field.Anonymous || !IsNavigation(field.Type) {
				continue
			}
			fv, err := next.value.FieldByIndexErr(field.Index)
			if err != nil || fv.IsZero() {
				continue
			}
			path := next.path + "." + field.Name
			if _, ok := requested[path]; !ok {
				if fv.CanSet() {
					fv.SetZero()
					pruned++
				}
				continue
			}
			switch fv.Kind() {
			case reflect.Pointer:
				queue = enqueue(queue, fv, path)
			case reflect.Map:
				iter := fv.MapRange()
				for iter.Next() {
					queue = enqueue(queue, iter.Value(), path)
				}
			default:
				queue = enqueueElements(queue, fv, path)
			}
		}
	}
	o.logger.Debug("graph projected", "paths", paths, "records", len(visited), "pruned", pruned)
	return nil
}

func enqueueElements(queue []pending, collection reflect.Value, path string) []pending {
	for i := 0; i < collection.Len(); i++ {
		queue = enqueue(queue, collection.Index(i), path)
	}
	return queue
}

// enqueue dereferences item down to an addressable struct; map values of
// struct type and nil references are skipped.
func enqueue(queue []pending, item reflect.Value, path string) []pending {
	for item.Kind() == reflect.Pointer || item.Kind() == reflect.Interface {
		if item.IsNil() {
			return queue
		}
		item = item.Elem()
	}
	if item.Kind() == reflect.Struct && item.CanAddr() {
		queue = append(queue, pending{value: item, path: path})
	}
	return queue
}

// IsNavigation reports whether a field of type t references other records.
func IsNavigation(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer:
		return typeinfo.IsRecord(t.Elem())
	case reflect.Slice, reflect.Array:
		return typeinfo.IsCollection(t) && typeinfo.IsRecord(t.Elem())
	case reflect.Map:
		return typeinfo.IsRecord(t.Elem())
	}
	return false
}
