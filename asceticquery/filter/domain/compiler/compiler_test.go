package compiler

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/expression"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/failure"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/syntax"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/typeinfo"
)

type Grade int

const (
	GradeA Grade = iota
	GradeB
	GradeC
)

func (g Grade) String() string {
	return [...]string{"A", "B", "C"}[g]
}

func (Grade) EnumValues() []typeinfo.Enum {
	return []typeinfo.Enum{GradeA, GradeB, GradeC}
}

type Student struct {
	Id       int
	LastName string
}

type Enrollment struct {
	Id      int
	Grade   *Grade
	Student *Student
}

type Course struct {
	Id          int
	Title       string `filter:"Course Title"`
	Credits     int
	Tags        []string
	Created     time.Time
	Started     *time.Time
	Rating      *float64
	Enrollments []*Enrollment
}

type Limits struct {
	MinCredits int
}

func grade(g Grade) *Grade {
	return &g
}

func sampleCourse() *Course {
	return &Course{
		Id:      1,
		Title:   "Intro to Go",
		Credits: 4,
		Tags:    []string{"go", "intro"},
		Created: time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC),
		Enrollments: []*Enrollment{
			{Id: 1, Grade: grade(GradeA), Student: &Student{Id: 7, LastName: "Alexander"}},
			{Id: 2},
		},
	}
}

var clock = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }

func evaluate(text string, record any, ambient any) (bool, error) {
	node, err := syntax.ParseText(text)
	if err != nil {
		return false, err
	}
	opts := []Option{WithClock(clock)}
	if ambient != nil {
		opts = append(opts, WithContextType(reflect.TypeOf(ambient)))
	}
	predicate, err := New(reflect.TypeOf(record), opts...).CompilePredicate(node)
	if err != nil {
		return false, err
	}
	v := expression.NewEvaluateVisitor(expression.DefaultRegistry(), expression.WithAmbient(ambient))
	release := v.Bind(predicate.Parameter().Name(), record)
	defer release()
	if err := predicate.Body().Accept(v); err != nil {
		return false, err
	}
	return v.Result()
}

func TestCompile_Evaluates(t *testing.T) {
	tests := []struct {
		filter   string
		expected bool
	}{
		{`Title eq "Intro to Go"`, true},
		{`Title neq "Intro to Go"`, false},
		{`Credits gt 3 and Title.startsWith("Intro")`, true},
		{`Credits gt 4 or Title.endsWith("Go")`, true},
		{`Enrollments.any(e: e.Grade eq "A")`, true},
		{`Enrollments.all(e: e.Grade eq "A")`, false},
		{`Enrollments.any(Grade eq "b")`, false},
		{`Enrollments.any()`, true},
		{`Enrollments.count() eq 2`, true},
		{`count(Enrollments, e: e.Grade eq null) eq 1`, true},
		{`Enrollments.any(e: e.Student.LastName eq "Alexander")`, true},
		{`Enrollments.sum(e: e.Id) eq 3`, true},
		{`Enrollments.max(e: e.Id) eq 2`, true},
		{`Enrollments.min(e: e.Id) eq 1`, true},
		{`Tags.contains("go")`, true},
		{`Tags.any(t: t eq "intro")`, true},
		{`1 eq 1.0`, true},
		{`2.5 gt 2`, true},
		{`Credits + 1 eq 5`, true},
		{`Credits % 3 eq 1`, true},
		{`Credits / 2.0 eq 2`, true},
		{`-Credits lt 0`, true},
		{`not (Credits lt 3)`, true},
		{`Title.length() eq 11`, true},
		{`Title.lower() eq "intro to go"`, true},
		{`Title.upper().endsWith("GO")`, true},
		{`Title.substring(0, 5) eq "Intro"`, true},
		{`substring(Title, 9) eq "Go"`, true},
		{`Title.contains("to")`, true},
		{`trim("  x ") eq "x"`, true},
		{`Title.toString() eq Title`, true},
		{`Credits.toString() eq "4"`, true},
		{`Credits eq "4"`, true},
		{`STARTSWITH(title, "intro")`, false},
		{`[Course Title] eq "Intro to Go"`, true},
		{`Started eq null`, true},
		{`Rating neq null`, false},
		{`isnull(Started)`, true},
		{`coalesce(Rating, 2.5) eq 2.5`, true},
		{`not empty(Title)`, true},
		{`empty(Tags)`, false},
		{`long(Credits) eq 4`, true},
		{`int(Credits) eq 4`, true},
		{`ulong(Credits) gt ulong(3)`, true},
		{`bool(Credits)`, true},
		{`bool(0)`, false},
		{`bool(Rating)`, false},
		{`datepart(Created, 'year') eq 2024`, true},
		{`datepart(Created, 'Month') eq 9`, true},
		{`dateadd(Created, 'days', 1) gt Created`, true},
		{`Created gt "2024-01-01"`, true},
		{`Created lt "2024-01-01T00:00:00Z"`, false},
		{`now() gt Created`, true},
		{`datepart(utcNow() - Created, 'days') eq 121`, true},
		{`Credits gt null`, true},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			result, err := evaluate(tt.filter, sampleCourse(), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestCompile_Context(t *testing.T) {
	result, err := evaluate(`$.MinCredits lte Credits`, sampleCourse(), Limits{MinCredits: 3})
	require.NoError(t, err)
	assert.True(t, result)

	result, err = evaluate(`$ eq Title`, sampleCourse(), "Intro to Go")
	require.NoError(t, err)
	assert.True(t, result)
}

func TestCompile_Failures(t *testing.T) {
	tests := []struct {
		filter  string
		kind    error
		message string
	}{
		{`Name eq "x"`, failure.ErrBinding, "Unable to bind identifier 'Name'"},
		{`Titel eq "x"`, failure.ErrBinding, "Unable to bind identifier 'Titel'. Did you mean 'Title'?"},
		{`$ eq 1`, failure.ErrBinding, "Cannot use context reference without a source"},
		{`x: x`, failure.ErrBinding, "Lambda expression (x: x) is only allowed as a function argument"},
		{`Enrollments.any(e: Enrollments.any(e: true))`, failure.ErrBinding, "Scope already contains a parameter with name 'e'"},
		{`foo(1)`, failure.ErrDispatch, ""},
		{`Title.startsWith()`, failure.ErrDispatch, "No matching overload for startsWith(Identifier)"},
		{`Credits.startsWith("x")`, failure.ErrArgument, "Property Credits is not a string"},
		{`Title.any()`, failure.ErrArgument, "Property Title is not a collection"},
		{`datepart(Created, 'week') eq 1`, failure.ErrArgument, ""},
		{`isnull(Credits)`, failure.ErrArgument, "Property Credits is not nullable"},
		{`1 + "x"`, failure.ErrCoercion, "Operator '+' cannot be applied to operands of type int and string"},
		{`Credits`, failure.ErrCoercion, "Filter expression Credits must be of type bool, not int"},
		{`Credits and true`, failure.ErrCoercion, ""},
		{`Enrollments.any(e: e.Grade eq "Z")`, failure.ErrCoercion, "'Z' is not a valid value of compiler.Grade"},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			_, err := evaluate(tt.filter, sampleCourse(), nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "unexpected failure kind: %v", err)
			if tt.message != "" {
				assert.Equal(t, tt.message, err.Error())
			}
		})
	}
}

func TestCompile_RuntimeFailures(t *testing.T) {
	_, err := evaluate(`Credits / 0 eq 1`, sampleCourse(), nil)
	assert.True(t, errors.Is(err, failure.ErrArgument))

	_, err = evaluate(`Title.substring(50) eq ""`, sampleCourse(), nil)
	assert.True(t, errors.Is(err, failure.ErrArgument))
	assert.Equal(t, failure.Argument, failure.KindOf(failure.Cause(err)))
}

func TestCompile_UnknownFunctionHint(t *testing.T) {
	_, err := evaluate(`Title.startWith("x")`, sampleCourse(), nil)
	require.Error(t, err)
	assert.Equal(t, "Unknown method 'startWith'. Did you mean 'startsWith'?", err.Error())
}

func TestCompile_FoldsNegativeConstant(t *testing.T) {
	node, err := syntax.ParseText(`-5`)
	require.NoError(t, err)
	e, err := New(reflect.TypeOf(Course{})).Compile(node)
	require.NoError(t, err)
	c, ok := e.(expression.ConstantNode)
	require.True(t, ok)
	assert.Equal(t, -5, c.Value())
}

type Counter struct {
	U64   uint64
	U     uint
	Items []int
}

func TestCompile_UnsignedFields(t *testing.T) {
	tests := []struct {
		filter   string
		expected bool
	}{
		{`U64 eq 5`, true},
		{`U eq 5`, true},
		{`U64 gt 0`, true},
		{`U64 + 1 eq 6`, true},
		{`7 gt U`, true},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			result, err := evaluate(tt.filter, &Counter{U64: 5, U: 5}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestCompile_ShortCircuit(t *testing.T) {
	result, err := evaluate(`Items.count() eq 0 or 10 / Items.count() gt 1`, &Counter{}, nil)
	require.NoError(t, err)
	assert.True(t, result)

	result, err = evaluate(`Items.count() gt 0 and 10 / Items.count() gt 1`, &Counter{}, nil)
	require.NoError(t, err)
	assert.False(t, result)

	_, err = evaluate(`Items.count() gt 0 or 10 / Items.count() gt 1`, &Counter{}, nil)
	assert.True(t, errors.Is(err, failure.ErrArgument))
}
