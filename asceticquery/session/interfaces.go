// Package session abstracts the database connections the relational
// repository reads through.
package session

import (
	"context"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/session/identitymap"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/signals"
)

type SessionCallback func(Session) error

type Session interface {
	Context() context.Context
	Atomic(SessionCallback) error
}

type SessionPoolCallback func(Session) error

type SessionPool interface {
	Session(context.Context, SessionPoolCallback) error
}

// Db

type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}

type Rows interface {
	Close() error
	Err() error
	Next() bool
	Scan(dest ...any) error
}

type Row interface {
	Scan(dest ...any) error
}

type DbExecutor interface {
	Exec(query string, args ...any) (Result, error)
}

type DbQuerier interface {
	Query(query string, args ...any) (Rows, error)
}

type DbSingleQuerier interface {
	QueryRow(query string, args ...any) Row
}

type DbConnection interface {
	DbExecutor
	DbQuerier
	DbSingleQuerier
}

// DbSession is a Session over a database connection. Records loaded through
// the session are tracked by its identity map; every statement is announced
// on the query signals.
type DbSession interface {
	Session
	Connection() DbConnection
	IdentityMap() *identitymap.IdentityMap
	OnQueryStarted() signals.Signal[QueryStartedEvent]
	OnQueryEnded() signals.Signal[QueryEndedEvent]
}
