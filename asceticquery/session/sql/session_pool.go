package sql

import (
	"context"
	"database/sql"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/session"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/session/identitymap"
)

type SessionPool struct {
	db             *sql.DB
	cacheSize      int
	isolationLevel identitymap.IsolationLevel
}

func NewSessionPool(db *sql.DB, cacheSize int, level identitymap.IsolationLevel) *SessionPool {
	return &SessionPool{db: db, cacheSize: cacheSize, isolationLevel: level}
}

func (p *SessionPool) Session(ctx context.Context, callback session.SessionPoolCallback) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	observed := session.NewObserved(identitymap.New(p.cacheSize, p.isolationLevel))
	return callback(NewSession(ctx, p.db, observed))
}

func (p *SessionPool) Close() error {
	return p.db.Close()
}
