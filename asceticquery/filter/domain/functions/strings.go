package functions

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/coercion"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/expression"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/expression/operators"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/failure"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/syntax"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/typeinfo"
)

func stringFunctions() []Function {
	return []Function{
		{Name: "startsWith", Overloads: []Overload{
			{Params: []ArgKind{AnyNode, AnyNode}, Bind: bindStringTest("startswith", strings.HasPrefix)},
		}},
		{Name: "endsWith", Overloads: []Overload{
			{Params: []ArgKind{AnyNode, AnyNode}, Bind: bindStringTest("endswith", strings.HasSuffix)},
		}},
		{Name: "contains", Overloads: []Overload{
			{Params: []ArgKind{AnyNode, AnyNode}, Bind: bindContains},
		}},
		{Name: "substring", Overloads: []Overload{
			{Params: []ArgKind{AnyNode, AnyNode}, Bind: bindSubstring},
			{Params: []ArgKind{AnyNode, AnyNode, AnyNode}, Bind: bindSubstring},
		}},
		{Name: "trim", Overloads: []Overload{
			{Params: []ArgKind{AnyNode}, Bind: bindStringMap("trim", strings.TrimSpace)},
		}},
		{Name: "lower", Overloads: []Overload{
			{Params: []ArgKind{AnyNode}, Bind: bindStringMap("lower", func(s string) string {
				return cases.Lower(language.Und).String(s)
			})},
		}},
		{Name: "upper", Overloads: []Overload{
			{Params: []ArgKind{AnyNode}, Bind: bindStringMap("upper", func(s string) string {
				return cases.Upper(language.Und).String(s)
			})},
		}},
		{Name: "length", Overloads: []Overload{
			{Params: []ArgKind{AnyNode}, Bind: bindLength},
		}},
		{Name: "toString", Overloads: []Overload{
			{Params: []ArgKind{AnyNode}, Bind: bindToString},
		}},
	}
}

// stringTarget compiles the receiver of a string function.
func stringTarget(b Binder, n syntax.Node) (expression.Expression, error) {
	e, err := b.Compile(n)
	if err != nil {
		return nil, err
	}
	t := e.Type()
	if typeinfo.IsNull(t) {
		return coercion.Null(typeinfo.TypeString), nil
	}
	if !typeinfo.IsString(typeinfo.Core(t)) {
		return nil, failure.Argumentf("Property %s is not a string", n)
	}
	return coercion.To(e, typeinfo.TypeString)
}

func stringArgument(b Binder, n syntax.Node) (expression.Expression, error) {
	e, err := b.Compile(n)
	if err != nil {
		return nil, err
	}
	if typeinfo.IsNull(e.Type()) {
		return coercion.Null(typeinfo.TypeString), nil
	}
	return coercion.To(e, typeinfo.TypeString)
}

func intArgument(b Binder, n syntax.Node) (expression.Expression, error) {
	e, err := b.Compile(n)
	if err != nil {
		return nil, err
	}
	if t := typeinfo.Core(e.Type()); !typeinfo.IsInteger(t) {
		return nil, failure.Argumentf("Argument %s must be an integer, not %s", n, typeinfo.Name(t))
	}
	return coercion.To(e, typeinfo.TypeInt)
}

func bindStringTest(name string, test func(s, sub string) bool) BindFunc {
	return func(b Binder, args []syntax.Node) (expression.Expression, error) {
		target, err := stringTarget(b, args[0])
		if err != nil {
			return nil, err
		}
		arg, err := stringArgument(b, args[1])
		if err != nil {
			return nil, err
		}
		return expression.Call(name, []expression.Expression{target, arg}, typeinfo.TypeBool, invoke(name, func(args []any) (any, error) {
			s, ok1 := args[0].(string)
			sub, ok2 := args[1].(string)
			if !ok1 || !ok2 {
				return nil, nil
			}
			return test(s, sub), nil
		})), nil
	}
}

// bindContains tests substrings of a string or membership in a collection
// of scalars.
func bindContains(b Binder, args []syntax.Node) (expression.Expression, error) {
	e, err := b.Compile(args[0])
	if err != nil {
		return nil, err
	}
	t := typeinfo.Core(e.Type())
	if !typeinfo.IsCollection(t) {
		return bindStringTest("contains", strings.Contains)(b, args)
	}
	elem := t.Elem()
	if !typeinfo.IsScalar(elem) {
		return nil, failure.Argumentf("Property %s is not a string or a collection of values", args[0])
	}
	needle, err := b.Compile(args[1])
	if err != nil {
		return nil, err
	}
	if typeinfo.IsNull(needle.Type()) {
		needle = coercion.Null(elem)
	} else if needle, err = coercion.To(needle, typeinfo.Core(elem)); err != nil {
		return nil, err
	}
	registry := expression.DefaultRegistry()
	return expression.Call("contains", []expression.Expression{e, needle}, typeinfo.TypeBool, invoke("contains", func(args []any) (any, error) {
		for _, item := range elements(args[0]) {
			r, err := registry.ExecBinary(item, operators.OperatorEq, args[1])
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

func bindSubstring(b Binder, args []syntax.Node) (expression.Expression, error) {
	target, err := stringTarget(b, args[0])
	if err != nil {
		return nil, err
	}
	compiled := []expression.Expression{target}
	for _, a := range args[1:] {
		e, err := intArgument(b, a)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, e)
	}
	return expression.Call("substring", compiled, typeinfo.TypeString, invoke("substring", func(args []any) (any, error) {
		s, ok := args[0].(string)
		if !ok {
			return nil, nil
		}
		runes := []rune(s)
		start, ok := args[1].(int)
		if !ok {
			return nil, nil
		}
		if start < 0 || start > len(runes) {
			return nil, failure.Argumentf("startIndex %d cannot be larger than length of string", start)
		}
		end := len(runes)
		if len(args) == 3 {
			length, ok := args[2].(int)
			if !ok {
				return nil, nil
			}
			if length < 0 || start+length > len(runes) {
				return nil, failure.Argumentf("Index and length must refer to a location within the string")
			}
			end = start + length
		}
		return string(runes[start:end]), nil
	})), nil
}

func bindStringMap(name string, fn func(string) string) BindFunc {
	return func(b Binder, args []syntax.Node) (expression.Expression, error) {
		target, err := stringTarget(b, args[0])
		if err != nil {
			return nil, err
		}
		return expression.Call(name, []expression.Expression{target}, typeinfo.TypeString, invoke(name, func(args []any) (any, error) {
			s, ok := args[0].(string)
			if !ok {
				return nil, nil
			}
			return fn(s), nil
		})), nil
	}
}

func bindLength(b Binder, args []syntax.Node) (expression.Expression, error) {
	e, err := b.Compile(args[0])
	if err != nil {
		return nil, err
	}
	if typeinfo.IsCollection(typeinfo.Core(e.Type())) {
		return expression.Call("length", []expression.Expression{e}, typeinfo.TypeInt, invoke("length", func(args []any) (any, error) {
			return len(elements(args[0])), nil
		})), nil
	}
	target, err := stringTarget(b, args[0])
	if err != nil {
		return nil, err
	}
	return expression.Call("length", []expression.Expression{target}, typeinfo.TypeInt, invoke("length", func(args []any) (any, error) {
		s, ok := args[0].(string)
		if !ok {
			return nil, nil
		}
		return utf8.RuneCountInString(s), nil
	})), nil
}

func bindToString(b Binder, args []syntax.Node) (expression.Expression, error) {
	e, err := b.Compile(args[0])
	if err != nil {
		return nil, err
	}
	if !typeinfo.IsScalar(e.Type()) && !typeinfo.IsNull(e.Type()) {
		return nil, failure.Argumentf("Unable to convert %s to string", typeinfo.Name(e.Type()))
	}
	if c, ok := e.(expression.ConstantNode); ok {
		return coercion.To(c, typeinfo.TypeString)
	}
	return expression.Call("tostring", []expression.Expression{e}, typeinfo.TypeString, invoke("tostring", func(args []any) (any, error) {
		return typeinfo.ChangeType(args[0], typeinfo.TypeString)
	})), nil
}
