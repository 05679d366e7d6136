package functions

import (
	"reflect"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/expression"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/expression/operators"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/failure"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/syntax"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/typeinfo"
)

func builtins() []Function {
	fns := []Function{
		{Name: "any", Overloads: []Overload{
			{Params: []ArgKind{AnyNode}, Bind: bindAny},
			{Params: []ArgKind{AnyNode, LambdaNode}, Bind: bindAnyWhere},
		}},
		{Name: "all", Overloads: []Overload{
			{Params: []ArgKind{AnyNode, LambdaNode}, Bind: bindAll},
		}},
		{Name: "count", Overloads: []Overload{
			{Params: []ArgKind{AnyNode}, Bind: bindCount},
			{Params: []ArgKind{AnyNode, LambdaNode}, Bind: bindCountWhere},
		}},
		{Name: "sum", Overloads: []Overload{
			{Params: []ArgKind{AnyNode, LambdaNode}, Bind: bindSum},
		}},
		{Name: "max", Overloads: []Overload{
			{Params: []ArgKind{AnyNode, LambdaNode}, Bind: bindExtreme("max", operators.OperatorGt)},
		}},
		{Name: "min", Overloads: []Overload{
			{Params: []ArgKind{AnyNode, LambdaNode}, Bind: bindExtreme("min", operators.OperatorLt)},
		}},
	}
	fns = append(fns, stringFunctions()...)
	fns = append(fns, temporalFunctions()...)
	fns = append(fns, nullFunctions()...)
	fns = append(fns, conversionFunctions()...)
	return fns
}

func collection(b Binder, n syntax.Node) (expression.Expression, reflect.Type, error) {
	e, err := b.Compile(n)
	if err != nil {
		return nil, nil, err
	}
	t := typeinfo.Core(e.Type())
	if !typeinfo.IsCollection(t) {
		return nil, nil, failure.Argumentf("Property %s is not a collection", n)
	}
	return e, t.Elem(), nil
}

func predicate(b Binder, n syntax.Node, elem reflect.Type) (expression.LambdaNode, error) {
	l, err := b.CompileLambda(n, elem)
	if err != nil {
		return l, err
	}
	t := l.Body().Type()
	if typeinfo.Core(t).Kind() != reflect.Bool && !typeinfo.IsNull(t) {
		return l, failure.Argumentf("Lambda expression %s must return bool, not %s", n, typeinfo.Name(t))
	}
	return l, nil
}

func elements(v any) []any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = expression.Normalize(rv.Index(i))
	}
	return items
}

func truthy(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

func bindAny(b Binder, args []syntax.Node) (expression.Expression, error) {
	items, _, err := collection(b, args[0])
	if err != nil {
		return nil, err
	}
	return expression.Call("any", []expression.Expression{items}, typeinfo.TypeBool, invoke("any", func(args []any) (any, error) {
		return len(elements(args[0])) > 0, nil
	})), nil
}

func bindAnyWhere(b Binder, args []syntax.Node) (expression.Expression, error) {
	items, elem, err := collection(b, args[0])
	if err != nil {
		return nil, err
	}
	where, err := predicate(b, args[1], elem)
	if err != nil {
		return nil, err
	}
	return expression.Call("any", []expression.Expression{items, where}, typeinfo.TypeBool, invoke("any", func(args []any) (any, error) {
		fn := args[1].(expression.Func)
		for _, item := range elements(args[0]) {
			r, err := fn(item)
			if err != nil {
				return nil, err
			}
			if truthy(r) {
				return true, nil
			}
		}
		return false, nil
	})), nil
}

func bindAll(b Binder, args []syntax.Node) (expression.Expression, error) {
	items, elem, err := collection(b, args[0])
	if err != nil {
		return nil, err
	}
	where, err := predicate(b, args[1], elem)
	if err != nil {
		return nil, err
	}
	return expression.Call("all", []expression.Expression{items, where}, typeinfo.TypeBool, invoke("all", func(args []any) (any, error) {
		fn := args[1].(expression.Func)
		for _, item := range elements(args[0]) {
			r, err := fn(item)
			if err != nil {
				return nil, err
			}
			if !truthy(r) {
				return false, nil
			}
		}
		return true, nil
	})), nil
}

func bindCount(b Binder, args []syntax.Node) (expression.Expression, error) {
	items, _, err := collection(b, args[0])
	if err != nil {
		return nil, err
	}
	return expression.Call("count", []expression.Expression{items}, typeinfo.TypeInt, invoke("count", func(args []any) (any, error) {
		return len(elements(args[0])), nil
	})), nil
}

func bindCountWhere(b Binder, args []syntax.Node) (expression.Expression, error) {
	items, elem, err := collection(b, args[0])
	if err != nil {
		return nil, err
	}
	where, err := predicate(b, args[1], elem)
	if err != nil {
		return nil, err
	}
	return expression.Call("count", []expression.Expression{items, where}, typeinfo.TypeInt, invoke("count", func(args []any) (any, error) {
		fn := args[1].(expression.Func)
		n := 0
		for _, item := range elements(args[0]) {
			r, err := fn(item)
			if err != nil {
				return nil, err
			}
			if truthy(r) {
				n++
			}
		}
		return n, nil
	})), nil
}

func selector(b Binder, n syntax.Node, elem reflect.Type) (expression.LambdaNode, reflect.Type, error) {
	l, err := b.CompileLambda(n, elem)
	if err != nil {
		return l, nil, err
	}
	return l, typeinfo.Core(l.Body().Type()), nil
}

func bindSum(b Binder, args []syntax.Node) (expression.Expression, error) {
	items, elem, err := collection(b, args[0])
	if err != nil {
		return nil, err
	}
	sel, result, err := selector(b, args[1], elem)
	if err != nil {
		return nil, err
	}
	if !typeinfo.IsNumeric(result) && result != typeinfo.TypeDuration {
		return nil, failure.Argumentf("Cannot sum values of type %s", typeinfo.Name(result))
	}
	registry := expression.DefaultRegistry()
	return expression.Call("sum", []expression.Expression{items, sel}, result, invoke("sum", func(args []any) (any, error) {
		fn := args[1].(expression.Func)
		total := typeinfo.Zero(result)
		for _, item := range elements(args[0]) {
			v, err := fn(item)
			if err != nil {
				return nil, err
			}
			if v == nil {
				continue
			}
			if total, err = registry.ExecBinary(total, operators.OperatorAdd, v); err != nil {
				return nil, err
			}
		}
		return total, nil
	})), nil
}

func bindExtreme(name string, better operators.Operator) BindFunc {
	return func(b Binder, args []syntax.Node) (expression.Expression, error) {
		items, elem, err := collection(b, args[0])
		if err != nil {
			return nil, err
		}
		sel, result, err := selector(b, args[1], elem)
		if err != nil {
			return nil, err
		}
		if typeinfo.IsCollection(result) || typeinfo.IsRecord(result) || result.Kind() == reflect.Bool {
			return nil, failure.Argumentf("Cannot compute %s of values of type %s", name, typeinfo.Name(result))
		}
		registry := expression.DefaultRegistry()
		// empty collections have no extreme: the result is nullable
		return expression.Call(name, []expression.Expression{items, sel}, reflect.PointerTo(result), invoke(name, func(args []any) (any, error) {
			fn := args[1].(expression.Func)
			var best any
			for _, item := range elements(args[0]) {
				v, err := fn(item)
				if err != nil {
					return nil, err
				}
				if v == nil {
					continue
				}
				if best == nil {
					best = v
					continue
				}
				r, err := registry.ExecBinary(v, better, best)
				if err != nil {
					return nil, err
				}
				if truthy(r) {
					best = v
				}
			}
			return best, nil
		})), nil
	}
}
