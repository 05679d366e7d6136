package functions

import (
	"reflect"

	"github.com/cockroachdb/apd/v3"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/coercion"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/expression"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/failure"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/syntax"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/typeinfo"
)

func nullFunctions() []Function {
	return []Function{
		{Name: "coalesce", Overloads: []Overload{
			{Params: []ArgKind{AnyNode, AnyNode}, Bind: bindCoalesce},
		}},
		{Name: "empty", Overloads: []Overload{
			{Params: []ArgKind{AnyNode}, Bind: bindEmpty},
		}},
		{Name: "isnull", Overloads: []Overload{
			{Params: []ArgKind{AnyNode}, Bind: bindIsNull},
		}},
	}
}

func nullable(b Binder, n syntax.Node) (expression.Expression, error) {
	e, err := b.Compile(n)
	if err != nil {
		return nil, err
	}
	if t := e.Type(); !typeinfo.IsNullable(t) && !typeinfo.IsNull(t) {
		return nil, failure.Argumentf("Property %s is not nullable", n)
	}
	return e, nil
}

func bindCoalesce(b Binder, args []syntax.Node) (expression.Expression, error) {
	e, err := nullable(b, args[0])
	if err != nil {
		return nil, err
	}
	result := e.Type()
	if result.Kind() == reflect.Pointer && typeinfo.IsScalar(result) {
		result = typeinfo.Core(result)
		e = expression.Convert(e, result)
	}
	alt, err := b.Compile(args[1])
	if err != nil {
		return nil, err
	}
	if typeinfo.IsNull(result) {
		result = alt.Type()
	} else if alt, err = coercion.To(alt, result); err != nil {
		return nil, err
	}
	return expression.Call("coalesce", []expression.Expression{e, alt}, result, invoke("coalesce", func(args []any) (any, error) {
		if args[0] != nil {
			return args[0], nil
		}
		return args[1], nil
	})), nil
}

func bindEmpty(b Binder, args []syntax.Node) (expression.Expression, error) {
	e, err := b.Compile(args[0])
	if err != nil {
		return nil, err
	}
	if typeinfo.IsCollection(typeinfo.Core(e.Type())) {
		return expression.Call("empty", []expression.Expression{e}, typeinfo.TypeBool, invoke("empty", func(args []any) (any, error) {
			return len(elements(args[0])) == 0, nil
		})), nil
	}
	target, err := stringTarget(b, args[0])
	if err != nil {
		return nil, err
	}
	return expression.Call("empty", []expression.Expression{target}, typeinfo.TypeBool, invoke("empty", func(args []any) (any, error) {
		s, _ := args[0].(string)
		return s == "", nil
	})), nil
}

func bindIsNull(b Binder, args []syntax.Node) (expression.Expression, error) {
	e, err := nullable(b, args[0])
	if err != nil {
		return nil, err
	}
	return expression.Call("isnull", []expression.Expression{e}, typeinfo.TypeBool, invoke("isnull", func(args []any) (any, error) {
		return args[0] == nil, nil
	})), nil
}

var conversions = []struct {
	name string
	typ  reflect.Type
}{
	{"int", typeinfo.TypeInt32},
	{"uint", typeinfo.TypeUint32},
	{"short", typeinfo.TypeInt16},
	{"ushort", typeinfo.TypeUint16},
	{"byte", typeinfo.TypeUint8},
	{"sbyte", typeinfo.TypeInt8},
	{"long", typeinfo.TypeInt64},
	{"ulong", typeinfo.TypeUint64},
	{"decimal", typeinfo.TypeDecimal},
	{"double", typeinfo.TypeFloat64},
	{"float", typeinfo.TypeFloat32},
}

func conversionFunctions() []Function {
	fns := make([]Function, 0, len(conversions)+1)
	for _, c := range conversions {
		fns = append(fns, Function{Name: c.name, Overloads: []Overload{
			{Params: []ArgKind{AnyNode}, Bind: bindConversion(c.name, c.typ)},
		}})
	}
	fns = append(fns, Function{Name: "bool", Overloads: []Overload{
		{Params: []ArgKind{AnyNode}, Bind: bindBool},
	}})
	return fns
}

func bindConversion(name string, target reflect.Type) BindFunc {
	return func(b Binder, args []syntax.Node) (expression.Expression, error) {
		e, err := b.Compile(args[0])
		if err != nil {
			return nil, err
		}
		t := e.Type()
		if typeinfo.IsNull(t) {
			return expression.Constant(nil, reflect.PointerTo(target)), nil
		}
		core := typeinfo.Core(t)
		if !typeinfo.IsNumeric(core) && !typeinfo.IsEnum(core) && !typeinfo.IsString(core) {
			return nil, failure.Argumentf("Unable to convert %s to %s", typeinfo.Name(t), typeinfo.Name(target))
		}
		if c, ok := e.(expression.ConstantNode); ok {
			return coercion.To(c, target)
		}
		return expression.Call(name, []expression.Expression{e}, target, invoke(name, func(args []any) (any, error) {
			return typeinfo.ChangeType(args[0], target)
		})), nil
	}
}

func bindBool(b Binder, args []syntax.Node) (expression.Expression, error) {
	e, err := b.Compile(args[0])
	if err != nil {
		return nil, err
	}
	t := typeinfo.Core(e.Type())
	if !typeinfo.IsNull(t) && t.Kind() != reflect.Bool && !typeinfo.IsNumeric(t) && !typeinfo.IsTemporal(t) && !typeinfo.IsIdentifier(t) {
		return nil, failure.Argumentf("Unable to convert %s to bool", typeinfo.Name(t))
	}
	return expression.Call("bool", []expression.Expression{e}, typeinfo.TypeBool, invoke("bool", func(args []any) (any, error) {
		return nonZero(args[0]), nil
	})), nil
}

// nonZero compares v with the default value of its type; null is false.
func nonZero(v any) bool {
	v, ok := typeinfo.Deref(v)
	if !ok {
		return false
	}
	if d, ok := v.(apd.Decimal); ok {
		return !d.IsZero()
	}
	return !reflect.ValueOf(v).IsZero()
}
