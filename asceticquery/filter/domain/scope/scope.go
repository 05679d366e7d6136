// Package scope tracks the parameters visible while a filter compiles: the
// record under test, the ambient context and the lambda parameters of the
// enclosing calls.
package scope

import (
	"fmt"
	"reflect"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/expression"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/failure"
)

type Option func(*Scope)

// WithContext makes `$` resolvable with static type t.
func WithContext(t reflect.Type) Option {
	return func(s *Scope) {
		s.context = &t
	}
}

// Scope is a stack of parameter bindings rooted in the global parameter.
// Names are unique among the active bindings.
type Scope struct {
	global   expression.ParameterNode
	context  *reflect.Type
	params   []expression.ParameterNode
	implicit []expression.ParameterNode
}

func New(recordType reflect.Type, opts ...Option) *Scope {
	s := &Scope{
		global: expression.Parameter(expression.GlobalParameterName, recordType),
	}
	for i := range opts {
		opts[i](s)
	}
	return s
}

func (s *Scope) Global() expression.ParameterNode {
	return s.global
}

// Current is the parameter bare member names resolve against: the innermost
// unnamed lambda parameter, or the global parameter.
func (s *Scope) Current() expression.ParameterNode {
	if n := len(s.implicit); n > 0 {
		return s.implicit[n-1]
	}
	return s.global
}

func (s *Scope) HasContext() bool {
	return s.context != nil
}

func (s *Scope) Context() (expression.ContextNode, error) {
	if s.context == nil {
		return expression.ContextNode{}, failure.Bindingf("Cannot use context reference without a source")
	}
	return expression.Context(*s.context), nil
}

// Lookup finds an active named parameter.
func (s *Scope) Lookup(name string) (expression.ParameterNode, bool) {
	for i := len(s.params) - 1; i >= 0; i-- {
		if s.params[i].Name() == name {
			return s.params[i], true
		}
	}
	return expression.ParameterNode{}, false
}

// Enter binds a lambda parameter of type t. An empty name binds an unnamed
// parameter that becomes Current. The binding stays active until release
// is called; callers defer it so an error path cannot leak the binding.
func (s *Scope) Enter(name string, t reflect.Type) (param expression.ParameterNode, release func(), err error) {
	if name == "" {
		param = expression.Parameter(fmt.Sprintf("%s%d", expression.GlobalParameterName, len(s.implicit)+1), t)
		s.implicit = append(s.implicit, param)
		depth := len(s.implicit)
		return param, func() { s.implicit = s.implicit[:depth-1] }, nil
	}
	if _, exists := s.Lookup(name); exists || name == expression.GlobalParameterName {
		return expression.ParameterNode{}, nil, failure.Bindingf("Scope already contains a parameter with name '%s'", name)
	}
	param = expression.Parameter(name, t)
	s.params = append(s.params, param)
	depth := len(s.params)
	return param, func() { s.params = s.params[:depth-1] }, nil
}

// Depth counts the active lambda parameters, named or not.
func (s *Scope) Depth() int {
	return len(s.params) + len(s.implicit)
}
