package pgx

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/session"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/session/identitymap"
)

type SessionPool struct {
	pool           *pgxpool.Pool
	cacheSize      int
	isolationLevel identitymap.IsolationLevel
}

// NewSessionPool gives every session its own identity map of cacheSize
// records.
func NewSessionPool(pool *pgxpool.Pool, cacheSize int, level identitymap.IsolationLevel) *SessionPool {
	return &SessionPool{pool: pool, cacheSize: cacheSize, isolationLevel: level}
}

func (p *SessionPool) Session(ctx context.Context, callback session.SessionPoolCallback) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	observed := session.NewObserved(identitymap.New(p.cacheSize, p.isolationLevel))
	return callback(NewSession(ctx, conn, observed))
}

func (p *SessionPool) Close() {
	p.pool.Close()
}
