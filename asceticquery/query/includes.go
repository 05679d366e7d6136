package query

import (
	"reflect"
	"strings"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/compiler"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/failure"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/syntax"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/tokens"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/typeinfo"
)

// ApplyIncludes adds the navigations named by paths. A path is a chain of
// member names, "Enrollments.Student"; a comma starts a new chain from the
// root; a collection step may carry a filter, "Enrollments(Grade eq 'A')".
// opts configure the compilation of those filters.
func ApplyIncludes(q *Query, paths []string, opts ...filter.Option) (*Query, error) {
	if len(paths) == 0 {
		return q, nil
	}
	c := q.clone()
	for _, path := range paths {
		if strings.TrimSpace(path) == "" {
			continue
		}
		if err := c.include(path, opts); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (q *Query) include(text string, opts []filter.Option) error {
	s, err := tokens.Tokenize(text)
	if err != nil {
		return err
	}
	var (
		owner = typeinfo.Core(q.recordType)
		path  []string
	)
	for !s.Empty() {
		tok, err := s.Expect(tokens.KindIdentifier)
		if err != nil {
			return err
		}
		d, err := navigate(owner, path, tok.Value)
		if err != nil {
			return err
		}
		if _, ok := s.Match(tokens.KindLParen); ok {
			if d.Filter, err = includeFilter(s, d, opts); err != nil {
				return err
			}
		}
		if err := q.addDirective(d); err != nil {
			return err
		}
		owner, path = d.Target, d.Path

		if s.Empty() {
			continue
		}
		if _, ok := s.Match(tokens.KindComma); ok {
			owner, path = typeinfo.Core(q.recordType), nil
		} else if _, err := s.Expect(tokens.KindDot); err != nil {
			return err
		}
		if s.Empty() {
			return failure.Syntacticf("Unexpected end of expression").At(len([]rune(text)))
		}
	}
	return nil
}

func navigate(owner reflect.Type, parent []string, name string) (*Directive, error) {
	if !typeinfo.IsRecord(owner) {
		return nil, failure.Bindingf("Unable to bind identifier '%s' on value of type %s", name, typeinfo.Name(owner))
	}
	field, err := compiler.LookupField(owner, name)
	if err != nil {
		return nil, err
	}
	d := &Directive{
		Path:  append(append([]string(nil), parent...), field.Name),
		Field: field,
		Owner: owner,
	}
	if typeinfo.IsCollection(field.Type) {
		d.Collection = true
		d.Target = typeinfo.Core(typeinfo.ElemType(field.Type))
	} else {
		d.Target = typeinfo.Core(field.Type)
	}
	if !typeinfo.IsRecord(d.Target) {
		return nil, failure.Bindingf("'%s' is not a navigation property of %s", field.Name, owner.Name())
	}
	return d, nil
}

func includeFilter(s *tokens.Stream, d *Directive, opts []filter.Option) (*filter.Filter, error) {
	if !d.Collection {
		return nil, failure.Bindingf("Filtering is only supported for collections, but '%s' is not a collection", strings.Join(d.Path, "."))
	}
	node, err := syntax.Parse(s)
	if err != nil {
		return nil, err
	}
	if _, ok := node.(*syntax.Lambda); ok {
		return nil, failure.Syntacticf("Do not use lambda expressions for filtered includes, use a simple expression instead")
	}
	if _, err := s.Expect(tokens.KindRParen); err != nil {
		return nil, err
	}
	return filter.CompileSyntax(node, d.Target, opts...)
}

// addDirective merges d into an existing directive on the same path. A
// navigation carries at most one filter.
func (q *Query) addDirective(d *Directive) error {
	for i, existing := range q.directives {
		if existing.String() != d.String() {
			continue
		}
		switch {
		case d.Filter == nil:
		case existing.Filter == nil:
			merged := *existing
			merged.Filter = d.Filter
			q.directives[i] = &merged
		case existing.Filter.String() != d.Filter.String():
			return failure.Bindingf("Different filters '%s' and '%s' have been applied on the same included navigation '%s'",
				existing.Filter, d.Filter, strings.Join(d.Path, "."))
		}
		return nil
	}
	q.directives = append(q.directives, d)
	return nil
}
