package memory

import (
	"reflect"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/query"
)

// graph copies records on first sight and hands out the same copy for
// every later reference, so shared records stay shared.
type graph struct {
	copies map[uintptr]reflect.Value
}

func newGraph() *graph {
	return &graph{copies: make(map[uintptr]reflect.Value)}
}

// copy returns a shallow copy of a record pointer; struct values are
// copied by assignment already.
func (g *graph) copy(v reflect.Value) reflect.Value {
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return v
	}
	if c, ok := g.copies[v.Pointer()]; ok {
		return c
	}
	c := reflect.New(v.Type().Elem())
	c.Elem().Set(v.Elem())
	g.copies[v.Pointer()] = c
	g.copies[c.Pointer()] = c
	return c
}

// record dereferences v down to an addressable struct.
func (g *graph) record(v reflect.Value) (reflect.Value, bool) {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	return v, v.Kind() == reflect.Struct && v.CanAddr()
}

// follow replaces the navigation of owner named by d with copies,
// narrowing collections to the elements d's filter matches, and returns
// the records reached.
func (g *graph) follow(owner reflect.Value, d *query.Directive) ([]reflect.Value, error) {
	fv := owner.FieldByIndex(d.Field.Index)
	var reached []reflect.Value
	if !d.Collection {
		if fv.Kind() != reflect.Pointer || fv.IsNil() {
			return nil, nil
		}
		c := g.copy(fv)
		fv.Set(c)
		if s, ok := g.record(c); ok {
			reached = append(reached, s)
		}
		return reached, nil
	}
	if fv.Kind() != reflect.Slice || fv.IsNil() {
		return nil, nil
	}
	narrowed := reflect.MakeSlice(fv.Type(), 0, fv.Len())
	for i := 0; i < fv.Len(); i++ {
		item := fv.Index(i)
		if d.Filter != nil {
			if item.Kind() == reflect.Pointer && item.IsNil() {
				continue
			}
			ok, err := d.Filter.Match(item.Interface())
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		narrowed = reflect.Append(narrowed, g.copy(item))
	}
	fv.Set(narrowed)
	for i := 0; i < narrowed.Len(); i++ {
		if s, ok := g.record(narrowed.Index(i)); ok {
			reached = append(reached, s)
		}
	}
	return reached, nil
}

func (g *graph) distinct(values []reflect.Value) []reflect.Value {
	seen := make(map[uintptr]struct{}, len(values))
	result := values[:0]
	for _, v := range values {
		addr := v.Addr().Pointer()
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		result = append(result, v)
	}
	return result
}
