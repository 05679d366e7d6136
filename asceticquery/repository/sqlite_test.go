package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/filter/infrastructure"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/repository"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/session"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/utils/testutils"
)

var sqliteFixture = []string{
	`CREATE TABLE courses (id INTEGER PRIMARY KEY, title TEXT NOT NULL, credits INTEGER NOT NULL)`,
	`CREATE TABLE students (id INTEGER PRIMARY KEY, last_name TEXT NOT NULL)`,
	`CREATE TABLE enrollments (
		id INTEGER PRIMARY KEY,
		course_id INTEGER NOT NULL REFERENCES courses (id),
		student_id INTEGER NOT NULL REFERENCES students (id),
		grade TEXT
	)`,
	`INSERT INTO courses VALUES (1050, 'Chemistry', 3), (4022, 'Microeconomics', 3), (1045, 'Calculus', 4)`,
	`INSERT INTO students VALUES (1, 'Alexander'), (2, 'Alonso'), (3, 'Anand')`,
	`INSERT INTO enrollments VALUES (1, 1050, 1, 'A'), (2, 4022, 1, 'C'), (3, 1045, 2, 'B'), (4, 1050, 3, NULL)`,
}

func withSqlite(t *testing.T, callback func(s session.DbSession)) {
	t.Helper()
	pool, err := testutils.NewSqliteSessionPool()
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	err = pool.Session(context.Background(), func(s session.Session) error {
		db := s.(session.DbSession)
		for _, statement := range sqliteFixture {
			if _, err := db.Connection().Exec(statement); err != nil {
				return err
			}
		}
		callback(db)
		return nil
	})
	require.NoError(t, err)
}

func TestSqlite_ListWithIncludes(t *testing.T) {
	withSqlite(t, func(s session.DbSession) {
		repo := repository.NewRepository[*Course](infrastructure.NewSchema(), infrastructure.SQLite)
		courses, err := repo.List(context.Background(), s, []string{"Enrollments.Student"}, `Enrollments.any(e: e.Grade eq "A")`)
		require.NoError(t, err)

		require.Len(t, courses, 1)
		chemistry := courses[0]
		assert.Equal(t, "Chemistry", chemistry.Title)
		require.Len(t, chemistry.Enrollments, 2)
		assert.Equal(t, "Alexander", chemistry.Enrollments[0].Student.LastName)
		assert.Equal(t, "Anand", chemistry.Enrollments[1].Student.LastName)
		assert.Nil(t, chemistry.Enrollments[1].Grade)
		assert.Nil(t, chemistry.Enrollments[0].Student.Enrollments)
	})
}

func TestSqlite_Aggregates(t *testing.T) {
	withSqlite(t, func(s session.DbSession) {
		repo := repository.NewRepository[Student](infrastructure.NewSchema(), infrastructure.SQLite)
		students, err := repo.List(context.Background(), s, nil, `Enrollments.count() gt 1`)
		require.NoError(t, err)
		require.Len(t, students, 1)
		assert.Equal(t, "Alexander", students[0].LastName)

		students, err = repo.List(context.Background(), s, []string{`Enrollments(Grade neq null).Course`}, `LastName.startsWith("Al")`)
		require.NoError(t, err)
		require.Len(t, students, 2)
		require.Len(t, students[0].Enrollments, 2)
		assert.Equal(t, "Microeconomics", students[0].Enrollments[1].Course.Title)
		require.Len(t, students[1].Enrollments, 1)
		assert.Equal(t, "Calculus", students[1].Enrollments[0].Course.Title)
	})
}

func TestSqlite_Get(t *testing.T) {
	withSqlite(t, func(s session.DbSession) {
		repo := repository.NewRepository[*Enrollment](infrastructure.NewSchema(), infrastructure.SQLite)
		enrollment, err := repo.Get(context.Background(), s, 3, []string{"Course", "Student"})
		require.NoError(t, err)
		assert.Equal(t, "B", *enrollment.Grade)
		assert.Equal(t, "Calculus", enrollment.Course.Title)
		assert.Equal(t, "Alonso", enrollment.Student.LastName)

		_, err = repo.Get(context.Background(), s, 99, nil)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}
