package expression

import (
	"fmt"
	"reflect"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/expression/operators"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/failure"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/typeinfo"
)

type EvaluateVisitorOption func(*EvaluateVisitor)

// WithAmbient supplies the value the context node evaluates to.
func WithAmbient(value any) EvaluateVisitorOption {
	return func(v *EvaluateVisitor) {
		v.ambient = value
	}
}

func NewEvaluateVisitor(registry *operators.OperatorRegistry, opts ...EvaluateVisitorOption) *EvaluateVisitor {
	v := &EvaluateVisitor{
		registry: registry,
		bindings: make(map[string][]any),
	}
	for i := range opts {
		opts[i](v)
	}
	return v
}

// EvaluateVisitor computes the value of a compiled tree. Parameters are
// bound by name; nested lambdas push onto the same binding stack.
type EvaluateVisitor struct {
	currentValue any
	ambient      any
	bindings     map[string][]any
	registry     *operators.OperatorRegistry
}

func (v *EvaluateVisitor) push(name string, value any) {
	v.bindings[name] = append(v.bindings[name], value)
}

func (v *EvaluateVisitor) pop(name string) {
	stack := v.bindings[name]
	v.bindings[name] = stack[:len(stack)-1]
}

// Bind makes value visible under name until release is called.
func (v *EvaluateVisitor) Bind(name string, value any) (release func()) {
	v.push(name, value)
	return func() { v.pop(name) }
}

func (v EvaluateVisitor) CurrentValue() any {
	return v.currentValue
}

func (v *EvaluateVisitor) SetCurrentValue(val any) {
	v.currentValue = val
}

func (v *EvaluateVisitor) VisitConstant(n ConstantNode) error {
	v.SetCurrentValue(n.Value())
	return nil
}

func (v *EvaluateVisitor) VisitParameter(n ParameterNode) error {
	stack := v.bindings[n.Name()]
	if len(stack) == 0 {
		return fmt.Errorf("parameter %q is not bound", n.Name())
	}
	v.SetCurrentValue(stack[len(stack)-1])
	return nil
}

func (v *EvaluateVisitor) VisitContext(_ ContextNode) error {
	v.SetCurrentValue(v.ambient)
	return nil
}

func (v *EvaluateVisitor) VisitMember(n MemberNode) error {
	err := n.Target().Accept(v)
	if err != nil {
		return err
	}
	target := v.CurrentValue()
	if target == nil {
		return nil
	}
	rv := reflect.ValueOf(target)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			v.SetCurrentValue(nil)
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return fmt.Errorf("cannot access member %s of %s", n.Name(), rv.Type())
	}
	field, err := rv.FieldByIndexErr(n.Field().Index)
	if err != nil {
		// nil embedded pointer
		v.SetCurrentValue(nil)
		return nil
	}
	v.SetCurrentValue(Normalize(field))
	return nil
}

// Normalize unwraps nullable scalars so operators see plain values; record
// pointers stay pointers.
func Normalize(rv reflect.Value) any {
	if !rv.IsValid() {
		return nil
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		if rv.Kind() == reflect.Interface || typeinfo.IsScalar(rv.Type().Elem()) {
			return Normalize(rv.Elem())
		}
	case reflect.Slice, reflect.Map:
		if rv.IsNil() && rv.Type() != typeinfo.TypeBytes {
			return nil
		}
	}
	return rv.Interface()
}

func (v *EvaluateVisitor) VisitConvert(n ConvertNode) error {
	err := n.Operand().Accept(v)
	if err != nil {
		return err
	}
	value, err := typeinfo.ChangeType(v.CurrentValue(), typeinfo.Core(n.Type()))
	if err != nil {
		return err
	}
	v.SetCurrentValue(value)
	return nil
}

func (v *EvaluateVisitor) VisitPrefix(n PrefixNode) error {
	err := n.Operand().Accept(v)
	if err != nil {
		return err
	}
	result, err := v.registry.ExecUnary(n.Operator(), v.CurrentValue())
	if err != nil {
		return err
	}
	v.SetCurrentValue(result)
	return nil
}

func (v *EvaluateVisitor) VisitInfix(n InfixNode) error {
	err := n.Left().Accept(v)
	if err != nil {
		return err
	}
	left := v.CurrentValue()
	if b, ok := left.(bool); ok {
		// and/or skip the right operand once the left decides the result
		switch {
		case n.Operator() == operators.OperatorAnd && !b,
			n.Operator() == operators.OperatorOr && b:
			v.SetCurrentValue(b)
			return nil
		}
	}
	err = n.Right().Accept(v)
	if err != nil {
		return err
	}
	right := v.CurrentValue()
	result, err := v.registry.ExecBinary(left, n.Operator(), right)
	if err != nil {
		return err
	}
	v.SetCurrentValue(result)
	return nil
}

func (v *EvaluateVisitor) VisitLambda(n LambdaNode) error {
	name := n.Parameter().Name()
	body := n.Body()
	v.SetCurrentValue(Func(func(arg any) (any, error) {
		release := v.Bind(name, arg)
		defer release()
		if err := body.Accept(v); err != nil {
			return nil, err
		}
		return v.CurrentValue(), nil
	}))
	return nil
}

func (v *EvaluateVisitor) VisitCall(n CallNode) error {
	args := make([]any, len(n.Args()))
	for i, arg := range n.Args() {
		if err := arg.Accept(v); err != nil {
			return err
		}
		args[i] = v.CurrentValue()
	}
	result, err := n.Impl()(args)
	if err != nil {
		return err
	}
	v.SetCurrentValue(result)
	return nil
}

// Result reports the predicate outcome; null counts as false.
func (v EvaluateVisitor) Result() (bool, error) {
	switch result := v.CurrentValue().(type) {
	case nil:
		return false, nil
	case bool:
		return result, nil
	}
	return false, failure.Coercionf("The result of type %T is not a bool", v.CurrentValue())
}

// Evaluate runs e with record bound to the global parameter.
func Evaluate(e Expression, record any, opts ...EvaluateVisitorOption) (any, error) {
	v := NewEvaluateVisitor(defaultRegistry, opts...)
	release := v.Bind(GlobalParameterName, record)
	defer release()
	if err := e.Accept(v); err != nil {
		return nil, err
	}
	return v.CurrentValue(), nil
}

var defaultRegistry = operators.NewDefaultRegistry()

// DefaultRegistry is the operator registry used by Evaluate.
func DefaultRegistry() *operators.OperatorRegistry {
	return defaultRegistry
}
