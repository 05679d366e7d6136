package functions

import (
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/coercion"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/expression"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/failure"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/syntax"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/typeinfo"
)

type datePart struct {
	typ reflect.Type
	fn  func(any) any
}

var timeParts = map[string]datePart{
	"year":        {typeinfo.TypeInt, func(v any) any { return v.(time.Time).Year() }},
	"month":       {typeinfo.TypeInt, func(v any) any { return int(v.(time.Time).Month()) }},
	"day":         {typeinfo.TypeInt, func(v any) any { return v.(time.Time).Day() }},
	"hour":        {typeinfo.TypeInt, func(v any) any { return v.(time.Time).Hour() }},
	"minute":      {typeinfo.TypeInt, func(v any) any { return v.(time.Time).Minute() }},
	"second":      {typeinfo.TypeInt, func(v any) any { return v.(time.Time).Second() }},
	"millisecond": {typeinfo.TypeInt, func(v any) any { return v.(time.Time).Nanosecond() / int(time.Millisecond) }},
	"dayofweek":   {typeinfo.TypeInt, func(v any) any { return int(v.(time.Time).Weekday()) }},
	"dayofyear":   {typeinfo.TypeInt, func(v any) any { return v.(time.Time).YearDay() }},
}

var durationParts = map[string]datePart{
	"days":              {typeinfo.TypeInt, func(v any) any { return int(v.(time.Duration) / (24 * time.Hour)) }},
	"hours":             {typeinfo.TypeInt, func(v any) any { return int(v.(time.Duration)/time.Hour) % 24 }},
	"minutes":           {typeinfo.TypeInt, func(v any) any { return int(v.(time.Duration)/time.Minute) % 60 }},
	"seconds":           {typeinfo.TypeInt, func(v any) any { return int(v.(time.Duration)/time.Second) % 60 }},
	"milliseconds":      {typeinfo.TypeInt, func(v any) any { return int(v.(time.Duration)/time.Millisecond) % 1000 }},
	"totaldays":         {typeinfo.TypeFloat64, func(v any) any { return v.(time.Duration).Hours() / 24 }},
	"totalhours":        {typeinfo.TypeFloat64, func(v any) any { return v.(time.Duration).Hours() }},
	"totalminutes":      {typeinfo.TypeFloat64, func(v any) any { return v.(time.Duration).Minutes() }},
	"totalseconds":      {typeinfo.TypeFloat64, func(v any) any { return v.(time.Duration).Seconds() }},
	"totalmilliseconds": {typeinfo.TypeFloat64, func(v any) any { return float64(v.(time.Duration)) / float64(time.Millisecond) }},
}

var timeAdders = map[string]func(t time.Time, n int) time.Time{
	"years":        func(t time.Time, n int) time.Time { return t.AddDate(n, 0, 0) },
	"months":       func(t time.Time, n int) time.Time { return t.AddDate(0, n, 0) },
	"days":         func(t time.Time, n int) time.Time { return t.AddDate(0, 0, n) },
	"hours":        func(t time.Time, n int) time.Time { return t.Add(time.Duration(n) * time.Hour) },
	"minutes":      func(t time.Time, n int) time.Time { return t.Add(time.Duration(n) * time.Minute) },
	"seconds":      func(t time.Time, n int) time.Time { return t.Add(time.Duration(n) * time.Second) },
	"milliseconds": func(t time.Time, n int) time.Time { return t.Add(time.Duration(n) * time.Millisecond) },
}

func temporalFunctions() []Function {
	return []Function{
		{Name: "datepart", Overloads: []Overload{
			{Params: []ArgKind{AnyNode, ConstNode}, Bind: bindDatePart},
		}},
		{Name: "dateadd", Overloads: []Overload{
			{Params: []ArgKind{AnyNode, ConstNode, AnyNode}, Bind: bindDateAdd},
		}},
		{Name: "now", Overloads: []Overload{
			{Params: nil, Bind: bindNow("now", func(t time.Time) time.Time { return t.Local() })},
		}},
		{Name: "utcNow", Overloads: []Overload{
			{Params: nil, Bind: bindNow("utcnow", time.Time.UTC)},
		}},
	}
}

func partName(n syntax.Node) (string, error) {
	s, ok := n.(*syntax.Constant).Value.(string)
	if !ok {
		return "", failure.Argumentf("Date part %s must be a string", n)
	}
	return strings.ToLower(s), nil
}

func keys[V any](m map[string]V) string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func bindDatePart(b Binder, args []syntax.Node) (expression.Expression, error) {
	e, err := b.Compile(args[0])
	if err != nil {
		return nil, err
	}
	t := typeinfo.Core(e.Type())
	var parts map[string]datePart
	switch t {
	case typeinfo.TypeTime:
		parts = timeParts
	case typeinfo.TypeDuration:
		parts = durationParts
	default:
		return nil, failure.Argumentf("Property %s is not a date or a duration", args[0])
	}
	name, err := partName(args[1])
	if err != nil {
		return nil, err
	}
	part, ok := parts[name]
	if !ok {
		return nil, failure.Argumentf("'%s' is not a valid date part of %s", name, typeinfo.Name(t)).
			WithHint("Valid parts are: " + keys(parts))
	}
	if e, err = coercion.To(e, t); err != nil {
		return nil, err
	}
	return expression.Call("datepart", []expression.Expression{e, expression.Constant(name, typeinfo.TypeString)}, part.typ,
		invoke("datepart", func(args []any) (any, error) {
			if args[0] == nil {
				return nil, nil
			}
			return part.fn(args[0]), nil
		})), nil
}

func bindDateAdd(b Binder, args []syntax.Node) (expression.Expression, error) {
	e, err := b.Compile(args[0])
	if err != nil {
		return nil, err
	}
	if typeinfo.Core(e.Type()) != typeinfo.TypeTime {
		return nil, failure.Argumentf("Property %s is not a date", args[0])
	}
	name, err := partName(args[1])
	if err != nil {
		return nil, err
	}
	add, ok := timeAdders[name]
	if !ok {
		return nil, failure.Argumentf("'%s' is not a valid date part of %s", name, typeinfo.Name(typeinfo.TypeTime)).
			WithHint("Valid parts are: " + keys(timeAdders))
	}
	n, err := intArgument(b, args[2])
	if err != nil {
		return nil, err
	}
	if e, err = coercion.To(e, typeinfo.TypeTime); err != nil {
		return nil, err
	}
	return expression.Call("dateadd", []expression.Expression{e, expression.Constant(name, typeinfo.TypeString), n}, typeinfo.TypeTime,
		invoke("dateadd", func(args []any) (any, error) {
			t, ok1 := args[0].(time.Time)
			amount, ok2 := args[2].(int)
			if !ok1 || !ok2 {
				return nil, nil
			}
			return add(t, amount), nil
		})), nil
}

func bindNow(name string, adjust func(time.Time) time.Time) BindFunc {
	return func(b Binder, _ []syntax.Node) (expression.Expression, error) {
		clock := b.Clock()
		return expression.Call(name, nil, typeinfo.TypeTime, invoke(name, func([]any) (any, error) {
			return adjust(clock()), nil
		})), nil
	}
}
