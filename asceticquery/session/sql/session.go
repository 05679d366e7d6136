// Package sql adapts database/sql to session.DbSession. It serves any
// registered driver; the repository tests run it over go-sqlite3.
package sql

import (
	"context"
	"database/sql"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/session"
)

var ErrSavepointUnsupported = errors.New("sql: savepoints are not supported")

func NewSession(ctx context.Context, db *sql.DB, observed session.Observed) *Session {
	return &Session{
		Observed:   observed,
		ctx:        ctx,
		db:         db,
		dbExecutor: db,
	}
}

type Session struct {
	session.Observed
	ctx        context.Context
	db         *sql.DB
	dbExecutor DbExecutor
}

func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) Connection() session.DbConnection {
	return s
}

// Atomic runs callback in a transaction. database/sql has no savepoint
// API, so a nested Atomic fails.
func (s *Session) Atomic(callback session.SessionCallback) error {
	if s.db == nil {
		return ErrSavepointUnsupported
	}
	tx, err := s.db.BeginTx(s.ctx, nil)
	if err != nil {
		return errors.Wrap(err, "unable to start transaction")
	}
	txSession := &Session{
		Observed:   s.Observed,
		ctx:        s.ctx,
		dbExecutor: tx,
	}
	err = callback(txSession)
	if err != nil {
		if txErr := tx.Rollback(); txErr != nil {
			return multierror.Append(err, txErr)
		}
		return err
	}
	if txErr := tx.Commit(); txErr != nil {
		return errors.Wrap(txErr, "failed to commit tx")
	}
	return nil
}

func (s *Session) Exec(query string, args ...any) (session.Result, error) {
	end := session.Track(s, query, args)
	r, err := s.dbExecutor.ExecContext(s.ctx, query, args...)
	end(err)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Session) Query(query string, args ...any) (session.Rows, error) {
	end := session.Track(s, query, args)
	r, err := s.dbExecutor.QueryContext(s.ctx, query, args...)
	end(err)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Session) QueryRow(query string, args ...any) session.Row {
	end := session.Track(s, query, args)
	defer end(nil)
	return s.dbExecutor.QueryRowContext(s.ctx, query, args...)
}

// DbExecutor is satisfied by *sql.DB and *sql.Tx.
type DbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
