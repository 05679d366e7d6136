// Package functions is the dispatch table of built-in filter functions.
// A table is immutable once built; Default is built once per process and
// shared by every compilation.
package functions

import (
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/pkg/errors"
	"golang.org/x/text/cases"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/expression"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/failure"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/syntax"
)

// ArgKind restricts which syntax nodes an overload parameter accepts.
type ArgKind int

const (
	// AnyNode accepts every node except a lambda.
	AnyNode ArgKind = iota
	// LambdaNode accepts a lambda, or any other node as the body of an
	// unnamed lambda over the collection element.
	LambdaNode
	// ConstNode accepts a literal only.
	ConstNode
)

func (k ArgKind) accepts(n syntax.Node) bool {
	switch k {
	case LambdaNode:
		return true
	case ConstNode:
		_, ok := n.(*syntax.Constant)
		return ok
	}
	_, isLambda := n.(*syntax.Lambda)
	return !isLambda
}

// Binder compiles the arguments of a call in the caller's scope.
type Binder interface {
	Compile(n syntax.Node) (expression.Expression, error)
	// CompileLambda compiles n as a function of one parameter of type
	// param. A node that is not a lambda becomes the body of an unnamed
	// lambda whose parameter is the implicit record.
	CompileLambda(n syntax.Node, param reflect.Type) (expression.LambdaNode, error)
	Clock() func() time.Time
}

type BindFunc func(b Binder, args []syntax.Node) (expression.Expression, error)

type Overload struct {
	Params []ArgKind
	Bind   BindFunc
}

func (o Overload) matches(args []syntax.Node) bool {
	if len(o.Params) != len(args) {
		return false
	}
	for i, kind := range o.Params {
		if !kind.accepts(args[i]) {
			return false
		}
	}
	return true
}

type Function struct {
	Name      string
	Overloads []Overload
}

// Table groups overloads by case-insensitive function name.
type Table struct {
	functions map[string]Function
	names     []string
}

// key folds name; a Caser is stateful, so each call gets its own.
func key(name string) string {
	return cases.Fold().String(name)
}

func NewTable(fns ...Function) *Table {
	t := &Table{functions: make(map[string]Function)}
	t.add(fns...)
	return t
}

func (t *Table) add(fns ...Function) {
	for _, fn := range fns {
		k := key(fn.Name)
		existing, ok := t.functions[k]
		if !ok {
			existing = Function{Name: fn.Name}
			t.names = append(t.names, fn.Name)
		}
		existing.Overloads = append(append([]Overload(nil), existing.Overloads...), fn.Overloads...)
		t.functions[k] = existing
	}
}

// With returns a new table extending t; t itself is unchanged.
func (t *Table) With(fns ...Function) *Table {
	c := &Table{
		functions: make(map[string]Function, len(t.functions)),
		names:     append([]string(nil), t.names...),
	}
	for k, fn := range t.functions {
		c.functions[k] = fn
	}
	c.add(fns...)
	return c
}

func (t *Table) Names() []string {
	return append([]string(nil), t.names...)
}

func (t *Table) Lookup(name string) (Function, bool) {
	fn, ok := t.functions[key(name)]
	return fn, ok
}

// Resolve selects the first overload of name accepting args.
func (t *Table) Resolve(name string, args []syntax.Node) (Overload, error) {
	fn, ok := t.Lookup(name)
	if !ok {
		err := failure.Dispatchf("Unknown method '%s'", name)
		if closest := Closest(name, t.names); closest != "" {
			err = err.WithHint("Did you mean '" + closest + "'?")
		}
		return Overload{}, err
	}
	for _, o := range fn.Overloads {
		if o.matches(args) {
			return o, nil
		}
	}
	kinds := make([]string, len(args))
	for i, a := range args {
		kinds[i] = syntax.KindName(a)
	}
	return Overload{}, failure.Dispatchf("No matching overload for %s(%s)", name, strings.Join(kinds, ", "))
}

// Bind resolves name and compiles the call.
func (t *Table) Bind(b Binder, name string, args []syntax.Node) (expression.Expression, error) {
	o, err := t.Resolve(name, args)
	if err != nil {
		return nil, err
	}
	return o.Bind(b, args)
}

// Closest suggests the candidate nearest to target, or "".
func Closest(target string, candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	ranks := fuzzy.RankFindFold(target, candidates)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}
	best, distance := "", 3
	for _, c := range candidates {
		if d := fuzzy.LevenshteinDistance(strings.ToLower(target), strings.ToLower(c)); d < distance {
			best, distance = c, d
		}
	}
	return best
}

var (
	defaultTable *Table
	defaultOnce  sync.Once
)

// Default is the built-in catalogue.
func Default() *Table {
	defaultOnce.Do(func() {
		defaultTable = NewTable(builtins()...)
	})
	return defaultTable
}

// invoke wraps runtime failures of a built-in so the caller can recover
// the underlying cause with failure.Cause.
func invoke(name string, fn expression.Impl) expression.Impl {
	return func(args []any) (any, error) {
		result, err := fn(args)
		if err != nil {
			return nil, errors.Wrapf(err, "%s()", name)
		}
		return result, nil
	}
}
