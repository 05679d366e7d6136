// Package filter compiles textual filter expressions into predicates over
// Go record types.
package filter

import (
	"log/slog"
	"reflect"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/compiler"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/expression"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/failure"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/syntax"
)

// Filter is a compiled filter bound to a record type. A Filter is
// immutable and safe for concurrent use.
type Filter struct {
	recordType reflect.Type
	node       syntax.Node
	lambda     *expression.LambdaNode
	ambient    any
	hasAmbient bool
	logger     *slog.Logger
}

// ParseType compiles text against recordType. Blank text yields a filter
// that matches every record.
func ParseType(text string, recordType reflect.Type, opts ...Option) (*Filter, error) {
	node, err := syntax.ParseText(text)
	if err != nil {
		return nil, err
	}
	return CompileSyntax(node, recordType, opts...)
}

// CompileSyntax compiles an already parsed tree; a nil node matches all.
func CompileSyntax(node syntax.Node, recordType reflect.Type, opts ...Option) (*Filter, error) {
	o := newOptions(opts)
	f := &Filter{
		recordType: recordType,
		ambient:    o.ambient,
		hasAmbient: o.hasAmbient,
		logger:     o.logger,
	}
	if node == nil {
		o.logger.Debug("match-all filter", "type", recordType.String())
		return f, nil
	}
	lambda, err := compiler.New(recordType, o.compilerOptions()...).CompilePredicate(node)
	if err != nil {
		return nil, err
	}
	f.node = node
	f.lambda = &lambda
	o.logger.Debug("compiled filter", "type", recordType.String(), "filter", node.String())
	return f, nil
}

func (f *Filter) IsMatchAll() bool {
	return f.lambda == nil
}

// Lambda returns the compiled predicate, or nil for match-all.
func (f *Filter) Lambda() *expression.LambdaNode {
	return f.lambda
}

// Syntax returns the parsed tree, or nil for match-all.
func (f *Filter) Syntax() syntax.Node {
	return f.node
}

func (f *Filter) RecordType() reflect.Type {
	return f.recordType
}

// Ambient returns the value bound to `$`, if one was supplied.
func (f *Filter) Ambient() (any, bool) {
	return f.ambient, f.hasAmbient
}

// String renders the canonical filter text.
func (f *Filter) String() string {
	if f.node == nil {
		return ""
	}
	return f.node.String()
}

func (f *Filter) Match(record any) (bool, error) {
	if f.lambda == nil {
		return true, nil
	}
	v := expression.NewEvaluateVisitor(expression.DefaultRegistry(), expression.WithAmbient(f.ambient))
	release := v.Bind(f.lambda.Parameter().Name(), record)
	defer release()
	if err := f.lambda.Body().Accept(v); err != nil {
		return false, failure.Cause(err)
	}
	return v.Result()
}

// Predicate is a Filter typed by its record.
type Predicate[T any] struct {
	filter *Filter
}

func Parse[T any](text string, opts ...Option) (*Predicate[T], error) {
	f, err := ParseType(text, reflect.TypeOf((*T)(nil)).Elem(), opts...)
	if err != nil {
		return nil, err
	}
	return &Predicate[T]{filter: f}, nil
}

func (p *Predicate[T]) Match(record T) (bool, error) {
	return p.filter.Match(record)
}

// Select returns the records that match, in order.
func (p *Predicate[T]) Select(records []T) ([]T, error) {
	if p.filter.IsMatchAll() {
		return records, nil
	}
	result := make([]T, 0, len(records))
	for i := range records {
		ok, err := p.filter.Match(records[i])
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, records[i])
		}
	}
	p.filter.logger.Debug("filter applied", "filter", p.filter.String(), "matched", len(result), "total", len(records))
	return result, nil
}

func (p *Predicate[T]) Filter() *Filter {
	return p.filter
}
