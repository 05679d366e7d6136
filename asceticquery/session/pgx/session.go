// Package pgx adapts pgx/v5 connections and transactions to session.DbSession.
package pgx

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/session"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/session/result"
)

// Session represents a database session without transaction
type Session struct {
	session.Observed
	ctx  context.Context
	conn *pgxpool.Conn
}

func NewSession(ctx context.Context, conn *pgxpool.Conn, observed session.Observed) *Session {
	return &Session{Observed: observed, ctx: ctx, conn: conn}
}

func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) Connection() session.DbConnection {
	return &connection{ctx: s.ctx, exec: s.conn, session: s}
}

func (s *Session) Atomic(callback session.SessionCallback) error {
	tx, err := s.conn.Begin(s.ctx)
	if err != nil {
		return errors.Wrap(err, "unable to start transaction")
	}
	return atomic(s.ctx, tx, NewTransactionSession(s.ctx, tx, s.Observed), callback, "failed to commit transaction")
}

// TransactionSession represents a session inside a transaction or a
// savepoint; its Atomic opens a nested savepoint.
type TransactionSession struct {
	session.Observed
	ctx context.Context
	tx  pgx.Tx
}

func NewTransactionSession(ctx context.Context, tx pgx.Tx, observed session.Observed) *TransactionSession {
	return &TransactionSession{Observed: observed, ctx: ctx, tx: tx}
}

func (s *TransactionSession) Context() context.Context {
	return s.ctx
}

func (s *TransactionSession) Connection() session.DbConnection {
	return &connection{ctx: s.ctx, exec: s.tx, session: s}
}

func (s *TransactionSession) Atomic(callback session.SessionCallback) error {
	nestedTx, err := s.tx.Begin(s.ctx)
	if err != nil {
		return errors.Wrap(err, "unable to start savepoint")
	}
	return atomic(s.ctx, nestedTx, NewTransactionSession(s.ctx, nestedTx, s.Observed), callback, "failed to commit savepoint")
}

func atomic(ctx context.Context, tx pgx.Tx, s session.Session, callback session.SessionCallback, commitFailure string) error {
	err := callback(s)
	if err != nil {
		if txErr := tx.Rollback(ctx); txErr != nil {
			return multierror.Append(err, txErr)
		}
		return err
	}
	if txErr := tx.Commit(ctx); txErr != nil {
		return errors.Wrap(txErr, commitFailure)
	}
	return nil
}

// executor interface for both *pgxpool.Conn and pgx.Tx
type executor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
}

// connection implements session.DbConnection
type connection struct {
	ctx     context.Context
	exec    executor
	session session.DbSession
}

func (c *connection) Exec(query string, args ...any) (session.Result, error) {
	end := session.Track(c.session, query, args)
	tag, err := c.exec.Exec(c.ctx, query, args...)
	end(err)
	if err != nil {
		return nil, err
	}
	return result.NewResult(0, tag.RowsAffected()), nil
}

func (c *connection) Query(query string, args ...any) (session.Rows, error) {
	end := session.Track(c.session, query, args)
	r, err := c.exec.Query(c.ctx, query, args...)
	end(err)
	if err != nil {
		return nil, err
	}
	return rows{r}, nil
}

func (c *connection) QueryRow(query string, args ...any) session.Row {
	end := session.Track(c.session, query, args)
	defer end(nil)
	return c.exec.QueryRow(c.ctx, query, args...)
}

// rows reports the deferred query error on Close.
type rows struct {
	pgx.Rows
}

func (r rows) Close() error {
	r.Rows.Close()
	return r.Rows.Err()
}
