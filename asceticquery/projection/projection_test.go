package projection_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/projection"
)

type Instructor struct {
	Name    string
	Courses []*Course
}

type Student struct {
	Id          int
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
	Tags        []string
	Enrollments []*Enrollment
	Instructor  *Instructor
}

func graph() *Course {
	course := &Course{Title: "Compilers", Tags: []string{"cs"}}
	ada := &Student{Id: 1, Name: "Ada"}
	alan := &Student{Id: 2, Name: "Alan"}
	first := &Enrollment{Grade: "A", Course: course, Student: ada}
	second := &Enrollment{Grade: "B", Course: course, Student: alan}
	ada.Enrollments = []*Enrollment{first}
	alan.Enrollments = []*Enrollment{second}
	course.Enrollments = []*Enrollment{first, second}
	course.Instructor = &Instructor{Name: "Grace", Courses: []*Course{course}}
	return course
}

func TestRemoveCycles_KeepsRequestedPaths(t *testing.T) {
	course := graph()
	err := projection.RemoveCycles([]*Course{course}, []string{".Enrollments", ".Enrollments.Student"})
	require.NoError(t, err)

	assert.Nil(t, course.Instructor)
	assert.Equal(t, []string{"cs"}, course.Tags)
	require.Len(t, course.Enrollments, 2)
	for _, e := range course.Enrollments {
		assert.Nil(t, e.Course)
		require.NotNil(t, e.Student)
		assert.Nil(t, e.Student.Enrollments)
	}
	assert.Equal(t, "Ada", course.Enrollments[0].Student.Name)
}

func TestRemoveCycles_Idempotent(t *testing.T) {
	course := graph()
	paths := []string{".Enrollments", ".Enrollments.Student"}
	require.NoError(t, projection.RemoveCycles([]*Course{course}, paths))
	first := *course.Enrollments[0]
	student := *first.Student

	require.NoError(t, projection.RemoveCycles([]*Course{course}, paths))
	assert.Equal(t, first, *course.Enrollments[0])
	assert.Equal(t, student, *course.Enrollments[0].Student)
	assert.Nil(t, course.Instructor)
}

func TestRemoveCycles_RequestedCycleTerminates(t *testing.T) {
	course := graph()
	err := projection.RemoveCycles(course, []string{".Instructor", ".Instructor.Courses", ".Instructor.Courses.Instructor"})
	require.NoError(t, err)

	require.NotNil(t, course.Instructor)
	assert.Same(t, course, course.Instructor.Courses[0])
	assert.Nil(t, course.Enrollments)
}

func TestRemoveCycles_NoPaths(t *testing.T) {
	course := graph()
	require.NoError(t, projection.RemoveCycles(course, nil))
	assert.Nil(t, course.Enrollments)
	assert.Nil(t, course.Instructor)
	assert.Equal(t, "Compilers", course.Title)
}

func TestRemoveCycles_DistinctEqualRecordsAreEachPruned(t *testing.T) {
	a := &Student{Id: 1, Name: "Twin", Enrollments: []*Enrollment{{Grade: "A"}}}
	b := &Student{Id: 1, Name: "Twin", Enrollments: []*Enrollment{{Grade: "A"}}}
	require.NoError(t, projection.RemoveCycles([]*Student{a, b}, nil))
	assert.Nil(t, a.Enrollments)
	assert.Nil(t, b.Enrollments)
}

func TestRemoveCycles_ValueSlice(t *testing.T) {
	courses := []Course{*graph(), *graph()}
	require.NoError(t, projection.RemoveCycles(courses, []string{".Enrollments"}))
	for _, c := range courses {
		assert.Nil(t, c.Instructor)
		require.Len(t, c.Enrollments, 2)
		assert.Nil(t, c.Enrollments[0].Student)
	}
}

func TestRemoveCycles_PointerToSlice(t *testing.T) {
	courses := []*Course{graph()}
	require.NoError(t, projection.RemoveCycles(&courses, nil))
	assert.Nil(t, courses[0].Enrollments)
}

func TestRemoveCycles_Unsupported(t *testing.T) {
	err := projection.RemoveCycles(Course{}, nil)
	assert.True(t, errors.Is(err, projection.ErrUnsupportedResult))

	var nothing *Course
	assert.NoError(t, projection.RemoveCycles(nothing, nil))
	assert.NoError(t, projection.RemoveCycles(nil, nil))
}

func TestIsNavigation(t *testing.T) {
	assert.True(t, projection.IsNavigation(typeOf[*Course]()))
	assert.True(t, projection.IsNavigation(typeOf[[]*Enrollment]()))
	assert.True(t, projection.IsNavigation(typeOf[[]Enrollment]()))
	assert.True(t, projection.IsNavigation(typeOf[map[string]*Student]()))
	assert.False(t, projection.IsNavigation(typeOf[[]string]()))
	assert.False(t, projection.IsNavigation(typeOf[Course]()))
	assert.False(t, projection.IsNavigation(typeOf[*int]()))
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
