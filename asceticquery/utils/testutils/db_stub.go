package testutils

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/session"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/session/identitymap"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/session/result"
)

type Query struct {
	Sql    string
	Params []any
}

// NewDbSessionStub answers the n-th query with the n-th rows; queries
// beyond them get no rows.
func NewDbSessionStub(rows ...*RowsStub) *DbSessionStub {
	stub := &DbSessionStub{
		Observed: session.NewObserved(identitymap.New(100, identitymap.RepeatableReads)),
		rows:     rows,
	}
	stub.conn = &connectionStub{session: stub}
	return stub
}

type DbSessionStub struct {
	session.Observed
	Queries []Query
	rows    []*RowsStub
	conn    *connectionStub
}

func (s *DbSessionStub) Context() context.Context {
	return context.Background()
}

func (s *DbSessionStub) Atomic(callback session.SessionCallback) error {
	return callback(s)
}

func (s *DbSessionStub) Connection() session.DbConnection {
	return s.conn
}

func (s *DbSessionStub) next(query string, args []any) *RowsStub {
	s.Queries = append(s.Queries, Query{Sql: query, Params: args})
	if len(s.rows) == 0 {
		return NewRowsStub()
	}
	r := s.rows[0]
	s.rows = s.rows[1:]
	return r
}

type connectionStub struct {
	session *DbSessionStub
}

func (c *connectionStub) Exec(query string, args ...any) (session.Result, error) {
	end := session.Track(c.session, query, args)
	c.session.next(query, args)
	end(nil)
	return result.NewResult(0, 0), nil
}

func (c *connectionStub) Query(query string, args ...any) (session.Rows, error) {
	end := session.Track(c.session, query, args)
	r := c.session.next(query, args)
	end(nil)
	return r, nil
}

func (c *connectionStub) QueryRow(query string, args ...any) session.Row {
	end := session.Track(c.session, query, args)
	r := c.session.next(query, args)
	end(nil)
	return &RowStub{rows: r}
}

func NewRowsStub(rows ...[]any) *RowsStub {
	return &RowsStub{
		rows:   rows,
		idx:    -1,
		Closed: false,
	}
}

type RowsStub struct {
	rows   [][]any
	idx    int
	Closed bool
}

func (r *RowsStub) Close() error {
	r.Closed = true
	return nil
}

func (r *RowsStub) Err() error {
	return nil
}

func (r *RowsStub) Next() bool {
	r.idx++
	return r.idx < len(r.rows)
}

// Scan assigns by reflection: nil clears the destination, pointer
// destinations are allocated, convertible kinds are converted.
func (r *RowsStub) Scan(dest ...any) error {
	if r.idx < 0 || r.idx >= len(r.rows) {
		return errors.New("no current row")
	}

	row := r.rows[r.idx]
	if len(row) != len(dest) {
		return fmt.Errorf("expected %d destination arguments in Scan, not %d", len(row), len(dest))
	}
	for i, val := range row {
		if s, ok := dest[i].(sql.Scanner); ok {
			if err := s.Scan(val); err != nil {
				return err
			}
			continue
		}
		d := reflect.ValueOf(dest[i])
		if d.Kind() != reflect.Pointer || d.IsNil() {
			return fmt.Errorf("destination %d is not a pointer", i)
		}
		if err := assign(d.Elem(), val); err != nil {
			return fmt.Errorf("column %d: %w", i, err)
		}
	}
	return nil
}

func assign(d reflect.Value, val any) error {
	if val == nil {
		d.Set(reflect.Zero(d.Type()))
		return nil
	}
	v := reflect.ValueOf(val)
	switch {
	case v.Type().AssignableTo(d.Type()):
		d.Set(v)
	case d.Kind() == reflect.Pointer:
		p := reflect.New(d.Type().Elem())
		if err := assign(p.Elem(), val); err != nil {
			return err
		}
		d.Set(p)
	case v.Type().ConvertibleTo(d.Type()) && (v.Kind() == d.Kind() || isNumeric(v.Kind()) && isNumeric(d.Kind())):
		d.Set(v.Convert(d.Type()))
	default:
		return fmt.Errorf("cannot assign %T to %s", val, d.Type())
	}
	return nil
}

func isNumeric(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Float64
}

type RowStub struct {
	rows *RowsStub
}

func (r *RowStub) Err() error {
	return r.rows.Err()
}

func (r *RowStub) Scan(dest ...any) error {
	if !r.rows.Next() {
		return sql.ErrNoRows
	}
	return r.rows.Scan(dest...)
}
