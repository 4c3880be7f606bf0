package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// PoolSettings sizes a connection pool.
type PoolSettings struct {
	MaxConns    int32
	MinConns    int32
	MaxIdleTime time.Duration
}

// CreatePostgresPool creates a pgx pool and exposes it through database/sql.
func CreatePostgresPool(ctx context.Context, connString string, settings PoolSettings) (PoolConnector, error) {
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	if settings.MaxConns > 0 {
		poolConfig.MaxConns = settings.MaxConns
	}
	if settings.MinConns > 0 {
		poolConfig.MinConns = settings.MinConns
	}
	if settings.MaxIdleTime > 0 {
		poolConfig.MaxConnIdleTime = settings.MaxIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	return NewPostgresPoolWrapper(pool, stdlib.OpenDBFromPool(pool)), nil
}

// CreateSQLPool opens a database/sql pool for driverName and applies settings.
// The pool is pinged once so bad credentials fail here rather than on first use.
func CreateSQLPool(ctx context.Context, driverName, dsn string, dialect Dialect, settings PoolSettings) (PoolConnector, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}

	if settings.MaxConns > 0 {
		db.SetMaxOpenConns(int(settings.MaxConns))
	}
	if settings.MinConns > 0 {
		db.SetMaxIdleConns(int(settings.MinConns))
	}
	if settings.MaxIdleTime > 0 {
		db.SetConnMaxIdleTime(settings.MaxIdleTime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connection test failed: %w", err)
	}

	return NewSQLPoolWrapper(db, dialect), nil
}
