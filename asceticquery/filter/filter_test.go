package filter_test

import (
	"bytes"
	"errors"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/expression"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/failure"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/functions"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/syntax"
)

type Person struct {
	Name string
	Age  int
}

type Enrollment struct {
	Grade string
}

type Course struct {
	Title       string
	Credits     int
	Enrollments []Enrollment
}

type Threshold struct {
	Credits int
}

func courses() []*Course {
	return []*Course{
		{Title: "Intro to Go", Credits: 4, Enrollments: []Enrollment{{Grade: "B"}, {Grade: "A"}}},
		{Title: "Intro to SQL", Credits: 2, Enrollments: []Enrollment{{Grade: "A"}}},
		{Title: "Compilers", Credits: 5, Enrollments: []Enrollment{{Grade: "C"}}},
		{Title: "Databases", Credits: 3},
	}
}

func titles(cs []*Course) []string {
	result := make([]string, len(cs))
	for i := range cs {
		result[i] = cs[i].Title
	}
	return result
}

func TestParse_SelectsByStringEquality(t *testing.T) {
	p, err := filter.Parse[Person](`Name eq "Foo"`)
	require.NoError(t, err)

	people := []Person{{Name: "Foo", Age: 1}, {Name: "Bar", Age: 2}, {Name: "Foo", Age: 3}}
	selected, err := p.Select(people)
	require.NoError(t, err)
	assert.Equal(t, []Person{{Name: "Foo", Age: 1}, {Name: "Foo", Age: 3}}, selected)
}

func TestParse_CollectionAny(t *testing.T) {
	p, err := filter.Parse[*Course](`Enrollments.any(e: e.Grade eq "A")`)
	require.NoError(t, err)

	selected, err := p.Select(courses())
	require.NoError(t, err)
	assert.Equal(t, []string{"Intro to Go", "Intro to SQL"}, titles(selected))
}

func TestParse_NumericAndStringPredicates(t *testing.T) {
	p, err := filter.Parse[*Course](`Credits gt 3 and Title.startsWith("Intro")`)
	require.NoError(t, err)

	selected, err := p.Select(courses())
	require.NoError(t, err)
	assert.Equal(t, []string{"Intro to Go"}, titles(selected))
}

func TestParse_IncompatibleArithmetic(t *testing.T) {
	_, err := filter.Parse[Person](`1 + "x"`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, failure.ErrCoercion))
	assert.Contains(t, err.Error(), "int")
	assert.Contains(t, err.Error(), "string")
}

func TestParse_SymbolicOperatorHint(t *testing.T) {
	_, err := filter.Parse[Person](`Age > 5`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, failure.ErrLexical))
	assert.Equal(t, "Invalid identifier: '>'. Did you intend to use 'gt'?", err.Error())
}

func TestParse_BlankIsMatchAll(t *testing.T) {
	for _, text := range []string{"", "   ", "\t\n"} {
		p, err := filter.Parse[Person](text)
		require.NoError(t, err)
		assert.True(t, p.Filter().IsMatchAll())
		assert.Nil(t, p.Filter().Lambda())
		assert.Equal(t, "", p.Filter().String())

		ok, err := p.Match(Person{})
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestParse_NumericLiteralsCompareAfterCoercion(t *testing.T) {
	cases := map[string]bool{
		"1 eq 1.0":    true,
		"1 neq 1.0":   false,
		"2 gt 1.5":    true,
		"2 lt 1.5":    false,
		"3 gte 3":     true,
		"2.5 lte 2":   false,
		"0.1 lt 1":    true,
		"10 eq 10.00": true,
	}
	for text, expected := range cases {
		t.Run(text, func(t *testing.T) {
			p, err := filter.Parse[Person](text)
			require.NoError(t, err)
			ok, err := p.Match(Person{})
			require.NoError(t, err)
			assert.Equal(t, expected, ok)
		})
	}
}

func TestFilter_String(t *testing.T) {
	f, err := filter.ParseType(`Credits gt 3 and not Title.startsWith("Intro")`, reflect.TypeOf(Course{}))
	require.NoError(t, err)
	assert.Equal(t, `((Credits gt 3) and (not Title.startsWith("Intro")))`, f.String())

	again, err := filter.ParseType(f.String(), reflect.TypeOf(Course{}))
	require.NoError(t, err)
	assert.Equal(t, f.String(), again.String())
}

func TestFilter_Lambda(t *testing.T) {
	f, err := filter.ParseType(`Credits gt 3`, reflect.TypeOf(Course{}))
	require.NoError(t, err)
	require.NotNil(t, f.Lambda())
	assert.Equal(t, expression.GlobalParameterName, f.Lambda().Parameter().Name())
	assert.Equal(t, reflect.TypeOf(true), f.Lambda().Body().Type())
	assert.Equal(t, reflect.TypeOf(Course{}), f.RecordType())
	_, ok := f.Syntax().(*syntax.Binary)
	assert.True(t, ok)
}

func TestFilter_MatchAcceptsValuesAndPointers(t *testing.T) {
	f, err := filter.ParseType(`Credits gt 3`, reflect.TypeOf(Course{}))
	require.NoError(t, err)

	ok, err := f.Match(Course{Credits: 4})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.Match(&Course{Credits: 2})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWithContext(t *testing.T) {
	p, err := filter.Parse[*Course](`Credits gte $.Credits`, filter.WithContext(Threshold{Credits: 4}))
	require.NoError(t, err)
	selected, err := p.Select(courses())
	require.NoError(t, err)
	assert.Equal(t, []string{"Intro to Go", "Compilers"}, titles(selected))
}

func TestWithContext_Missing(t *testing.T) {
	_, err := filter.Parse[*Course](`Credits gte $.Credits`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, failure.ErrBinding))
	assert.Equal(t, "Cannot use context reference without a source", err.Error())
}

func TestWithContext_NotReferenced(t *testing.T) {
	p, err := filter.Parse[*Course](`Credits gt 4`, filter.WithContext(Threshold{Credits: 1}))
	require.NoError(t, err)
	selected, err := p.Select(courses())
	require.NoError(t, err)
	assert.Equal(t, []string{"Compilers"}, titles(selected))
}

func TestWithClock(t *testing.T) {
	clock := func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	p, err := filter.Parse[Person](`datepart(utcNow(), 'year') eq 2025`, filter.WithClock(clock))
	require.NoError(t, err)
	ok, err := p.Match(Person{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWithFunctions(t *testing.T) {
	table := functions.Default().With(functions.Function{
		Name: "adult",
		Overloads: []functions.Overload{{
			Params: []functions.ArgKind{functions.AnyNode},
			Bind: func(b functions.Binder, args []syntax.Node) (expression.Expression, error) {
				age, err := b.Compile(args[0])
				if err != nil {
					return nil, err
				}
				return expression.Call("adult", []expression.Expression{age}, reflect.TypeOf(true), func(values []any) (any, error) {
					return values[0].(int) >= 18, nil
				}), nil
			},
		}},
	})
	p, err := filter.Parse[Person](`Age.adult()`, filter.WithFunctions(table))
	require.NoError(t, err)

	selected, err := p.Select([]Person{{Name: "a", Age: 17}, {Name: "b", Age: 18}})
	require.NoError(t, err)
	assert.Equal(t, []Person{{Name: "b", Age: 18}}, selected)

	_, err = filter.Parse[Person](`Age.adult()`)
	assert.True(t, errors.Is(err, failure.ErrDispatch))
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	_, err := filter.Parse[Person](`Age gt 1`, filter.WithLogger(logger))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "compiled filter")
	assert.Contains(t, buf.String(), "(Age gt 1)")
}

func TestMatch_RuntimeFailureIsUnwrapped(t *testing.T) {
	p, err := filter.Parse[Person](`Name.substring(10) eq ""`)
	require.NoError(t, err)
	_, err = p.Match(Person{Name: "short"})
	require.Error(t, err)
	var fe *failure.Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, failure.Argument, fe.Kind)
	assert.Same(t, fe, err)
}

func TestParse_NonBooleanFilter(t *testing.T) {
	_, err := filter.Parse[Person](`Age + 1`)
	require.Error(t, err)
	assert.Equal(t, "Filter expression (Age + 1) must be of type bool, not int", err.Error())
}
