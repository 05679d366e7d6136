package query_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/domain/failure"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/query"
)

type Instructor struct {
	Name    string
	Courses []*Course
}

type Student struct {
	Name        string
	Enrollments []*Enrollment
}

type Enrollment struct {
	Grade   string
	Course  *Course
	Student *Student
}

type Course struct {
	Title       string
	Credits     int
	Enrollments []*Enrollment
	Instructor  *Instructor
}

func TestApplyIncludes_Paths(t *testing.T) {
	cases := []struct {
		includes []string
		expected []string
	}{
		{[]string{"Enrollments"}, []string{".Enrollments"}},
		{[]string{"Enrollments.Student"}, []string{".Enrollments", ".Enrollments.Student"}},
		{[]string{"Enrollments.Student", "Enrollments.Course"}, []string{".Enrollments", ".Enrollments.Student", ".Enrollments.Course"}},
		{[]string{"Enrollments, Instructor.Courses"}, []string{".Enrollments", ".Instructor", ".Instructor.Courses"}},
		{[]string{"enrollments.student"}, []string{".Enrollments", ".Enrollments.Student"}},
		{[]string{"", "  ", "Instructor"}, []string{".Instructor"}},
	}
	for _, c := range cases {
		q, err := query.ApplyIncludes(query.New[Course](), c.includes)
		require.NoError(t, err, c.includes)
		assert.Equal(t, c.expected, q.IncludedPaths(), c.includes)
	}
}

func TestApplyIncludes_NoOp(t *testing.T) {
	q := query.New[Course]()
	same, err := query.ApplyIncludes(q, nil)
	require.NoError(t, err)
	assert.Same(t, q, same)
	assert.Empty(t, same.IncludedPaths())
}

func TestApplyIncludes_Directives(t *testing.T) {
	q, err := query.ApplyIncludes(query.New[*Course](), []string{"Enrollments.Student"})
	require.NoError(t, err)

	directives := q.Directives()
	require.Len(t, directives, 2)

	assert.False(t, directives[0].Chained())
	assert.True(t, directives[0].Collection)
	assert.Equal(t, reflect.TypeOf(Course{}), directives[0].Owner)
	assert.Equal(t, reflect.TypeOf(Enrollment{}), directives[0].Target)

	assert.True(t, directives[1].Chained())
	assert.False(t, directives[1].Collection)
	assert.Equal(t, "Student", directives[1].Field.Name)
	assert.Equal(t, reflect.TypeOf(Student{}), directives[1].Target)
	assert.Equal(t, ".Enrollments.Student", directives[1].String())
}

func TestApplyIncludes_FilteredCollection(t *testing.T) {
	q, err := query.ApplyIncludes(query.New[Course](), []string{`Enrollments(Grade eq "A" or Grade eq "B").Student`})
	require.NoError(t, err)
	assert.Equal(t, []string{".Enrollments", ".Enrollments.Student"}, q.IncludedPaths())

	f := q.Directives()[0].Filter
	require.NotNil(t, f)
	assert.Equal(t, `((Grade eq "A") or (Grade eq "B"))`, f.String())

	ok, err := f.Match(&Enrollment{Grade: "B"})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.Match(&Enrollment{Grade: "C"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestApplyIncludes_FilterOptions(t *testing.T) {
	type minimum struct{ Grade string }
	q, err := query.ApplyIncludes(query.New[Course](), []string{`Enrollments(Grade eq $.Grade)`}, filter.WithContext(minimum{Grade: "A"}))
	require.NoError(t, err)

	ok, err := q.Directives()[0].Filter.Match(Enrollment{Grade: "A"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestApplyIncludes_MergesSamePath(t *testing.T) {
	q, err := query.ApplyIncludes(query.New[Course](), []string{"Enrollments.Student", `Enrollments(Grade eq "A")`, "Enrollments.Course"})
	require.NoError(t, err)
	assert.Equal(t, []string{".Enrollments", ".Enrollments.Student", ".Enrollments.Course"}, q.IncludedPaths())
	require.NotNil(t, q.Directives()[0].Filter)

	_, err = query.ApplyIncludes(q, []string{`Enrollments(Grade eq "B")`})
	require.Error(t, err)
	assert.True(t, errors.Is(err, failure.ErrBinding))
}

func TestApplyIncludes_Failures(t *testing.T) {
	cases := []struct {
		include string
		kind    error
		message string
	}{
		{`Instructor(Name eq "x")`, failure.ErrBinding, "Filtering is only supported for collections, but 'Instructor' is not a collection"},
		{`Enrollments(e: e.Grade eq "A")`, failure.ErrSyntactic, "Do not use lambda expressions for filtered includes, use a simple expression instead"},
		{`Enrollments,`, failure.ErrSyntactic, "Unexpected end of expression"},
		{`Enrollments.`, failure.ErrSyntactic, "Unexpected end of expression"},
		{`Title`, failure.ErrBinding, "'Title' is not a navigation property of Course"},
		{`Enrollments(Grade eq "A"`, failure.ErrSyntactic, "Unexpected end of filter expression"},
		{`Enrollments(Grade + 1 eq "A")`, failure.ErrCoercion, ""},
		{`Enrollments Student`, failure.ErrSyntactic, ""},
		{`Nothing`, failure.ErrBinding, ""},
	}
	for _, c := range cases {
		t.Run(c.include, func(t *testing.T) {
			_, err := query.ApplyIncludes(query.New[Course](), []string{c.include})
			require.Error(t, err)
			assert.True(t, errors.Is(err, c.kind), err.Error())
			if c.message != "" {
				assert.Equal(t, c.message, err.Error())
			}
		})
	}
}

func TestApplyIncludes_DoesNotMutateSource(t *testing.T) {
	base, err := query.ApplyIncludes(query.New[Course](), []string{"Enrollments"})
	require.NoError(t, err)
	_, err = query.ApplyIncludes(base, []string{`Enrollments(Grade eq "A").Student`})
	require.NoError(t, err)

	assert.Equal(t, []string{".Enrollments"}, base.IncludedPaths())
	assert.Nil(t, base.Directives()[0].Filter)
}

func TestWhere(t *testing.T) {
	credits, err := filter.ParseType("Credits gt 2", reflect.TypeOf(Course{}))
	require.NoError(t, err)
	title, err := filter.ParseType(`Title.startsWith("C")`, reflect.TypeOf(&Course{}))
	require.NoError(t, err)

	q, err := query.New[*Course]().Where(credits)
	require.NoError(t, err)
	q, err = q.Where(title)
	require.NoError(t, err)
	assert.Len(t, q.Filters(), 2)

	ok, err := q.Match(&Course{Title: "Compilers", Credits: 3})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = q.Match(&Course{Title: "Compilers", Credits: 1})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWhere_MatchAllAndMismatch(t *testing.T) {
	q := query.New[Course]()
	all, err := filter.ParseType("", reflect.TypeOf(Course{}))
	require.NoError(t, err)
	same, err := q.Where(all)
	require.NoError(t, err)
	assert.Same(t, q, same)

	other, err := filter.ParseType(`Name eq "x"`, reflect.TypeOf(Student{}))
	require.NoError(t, err)
	_, err = q.Where(other)
	assert.Error(t, err)
}

func TestQuery_RemoveCycles(t *testing.T) {
	course := &Course{Title: "Compilers"}
	student := &Student{Name: "Ada"}
	enrollment := &Enrollment{Grade: "A", Course: course, Student: student}
	student.Enrollments = []*Enrollment{enrollment}
	course.Enrollments = []*Enrollment{enrollment}
	course.Instructor = &Instructor{Name: "Grace", Courses: []*Course{course}}

	q, err := query.ApplyIncludes(query.New[*Course](), []string{"Enrollments.Student"})
	require.NoError(t, err)
	require.NoError(t, q.RemoveCycles([]*Course{course}))

	assert.Nil(t, course.Instructor)
	require.Len(t, course.Enrollments, 1)
	assert.Nil(t, course.Enrollments[0].Course)
	assert.Same(t, student, course.Enrollments[0].Student)
	assert.Nil(t, student.Enrollments)
}

func TestPrepare(t *testing.T) {
	q, err := query.Prepare(reflect.TypeOf(&Course{}), []string{"Enrollments"}, "Credits gt 2")
	require.NoError(t, err)
	assert.Equal(t, []string{".Enrollments"}, q.IncludedPaths())
	require.Len(t, q.Filters(), 1)

	_, err = query.Prepare(reflect.TypeOf(&Course{}), []string{"Title"}, "")
	assert.True(t, errors.Is(err, failure.ErrBinding))
	_, err = query.Prepare(reflect.TypeOf(&Course{}), nil, "Credits >")
	assert.True(t, errors.Is(err, failure.ErrLexical), err)
}
