package testutils

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/session"
)

type grade int

func TestRowsStubScan(t *testing.T) {
	id := uuid.New()
	enrolled := time.Date(2005, 9, 1, 0, 0, 0, 0, time.UTC)
	rows := NewRowsStub([]any{int64(1), "Alexander", int64(2), nil, enrolled, id.String()})
	require.True(t, rows.Next())

	var (
		n       int
		name    string
		g       *grade
		missing *grade
		date    time.Time
		key     uuid.UUID
	)
	missing = new(grade)
	require.NoError(t, rows.Scan(&n, &name, &g, &missing, &date, &key))
	assert.Equal(t, 1, n)
	assert.Equal(t, "Alexander", name)
	require.NotNil(t, g)
	assert.Equal(t, grade(2), *g)
	assert.Nil(t, missing)
	assert.Equal(t, enrolled, date)
	assert.Equal(t, id, key)

	assert.False(t, rows.Next())
	assert.Error(t, rows.Scan(&n))
}

func TestRowsStubScanRejectsMismatch(t *testing.T) {
	rows := NewRowsStub([]any{int64(65)})
	require.True(t, rows.Next())
	var s string
	assert.Error(t, rows.Scan(&s))
	assert.Error(t, rows.Scan(&s, &s))
}

func TestDbSessionStubQueue(t *testing.T) {
	first := NewRowsStub([]any{1})
	s := NewDbSessionStub(first)
	var events []string
	s.OnQueryStarted().Attach(func(e session.QueryStartedEvent) {
		events = append(events, e.Query)
	})

	r, err := s.Connection().Query("SELECT 1", 7)
	require.NoError(t, err)
	assert.Same(t, first, r)

	var n int
	err = s.Connection().QueryRow("SELECT 2").Scan(&n)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	assert.Equal(t, []Query{{Sql: "SELECT 1", Params: []any{7}}, {Sql: "SELECT 2"}}, s.Queries)
	assert.Equal(t, []string{"SELECT 1", "SELECT 2"}, events)
}

func TestGetEnv(t *testing.T) {
	t.Setenv("ASCETIC_QUERY_TEST_ENV", "set")
	assert.Equal(t, "set", getEnv("ASCETIC_QUERY_TEST_ENV", "fallback"))
	assert.Equal(t, "fallback", getEnv("ASCETIC_QUERY_TEST_ENV_MISSING", "fallback"))
}
