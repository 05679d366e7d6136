package testutils

import (
	"context"
	"database/sql"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/mattn/go-sqlite3"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/session/identitymap"
	pgxsession "github.com/krew-solutions/ascetic-query-go/asceticquery/session/pgx"
	sqlsession "github.com/krew-solutions/ascetic-query-go/asceticquery/session/sql"
)

const identityMapSize = 1000

// NewPgSessionPool connects to the PostgreSQL database named by the DB_*
// environment variables.
func NewPgSessionPool(ctx context.Context) (*pgxsession.SessionPool, error) {
	var db_username string = getEnv("DB_USERNAME", "devel")
	var db_password string = getEnv("DB_PASSWORD", "devel")
	var db_host string = getEnv("DB_HOST", "localhost")
	var db_port string = getEnv("DB_PORT", "5432")
	var db_basename string = getEnv("DB_DATABASE", "devel_query")

	connString := "postgres://" + db_username + ":" + db_password + "@" + db_host + ":" + db_port + "/" + db_basename

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return pgxsession.NewSessionPool(pool, identityMapSize, identitymap.RepeatableReads), nil
}

// NewSqliteSessionPool opens a private in-memory SQLite database. The pool
// holds a single connection, each new one would see an empty database.
func NewSqliteSessionPool() (*sqlsession.SessionPool, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return sqlsession.NewSessionPool(db, identityMapSize, identitymap.RepeatableReads), nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return fallback
}
