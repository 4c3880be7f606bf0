package datasource

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPoolWrapper exposes a *pgxpool.Pool through database/sql.
type PostgresPoolWrapper struct {
	pool *pgxpool.Pool
	db   *sql.DB
}

// NewPostgresPoolWrapper wraps pool; db must be built from the same pool.
func NewPostgresPoolWrapper(pool *pgxpool.Pool, db *sql.DB) *PostgresPoolWrapper {
	return &PostgresPoolWrapper{pool: pool, db: db}
}

// Ping verifies the PostgreSQL connection is alive
func (w *PostgresPoolWrapper) Ping(ctx context.Context) error {
	return w.pool.Ping(ctx)
}

// Close closes the sql.DB handle and then the underlying pool.
func (w *PostgresPoolWrapper) Close() error {
	err := w.db.Close()
	w.pool.Close()
	return err
}

func (w *PostgresPoolWrapper) Dialect() Dialect {
	return Postgres
}

func (w *PostgresPoolWrapper) DB() *sql.DB {
	return w.db
}

// Pool returns the underlying *pgxpool.Pool
func (w *PostgresPoolWrapper) Pool() *pgxpool.Pool {
	return w.pool
}

// SQLPoolWrapper wraps a database/sql pool for drivers without a native pool.
type SQLPoolWrapper struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLPoolWrapper(db *sql.DB, dialect Dialect) *SQLPoolWrapper {
	return &SQLPoolWrapper{db: db, dialect: dialect}
}

func (w *SQLPoolWrapper) Ping(ctx context.Context) error {
	return w.db.PingContext(ctx)
}

func (w *SQLPoolWrapper) Close() error {
	return w.db.Close()
}

func (w *SQLPoolWrapper) Dialect() Dialect {
	return w.dialect
}

func (w *SQLPoolWrapper) DB() *sql.DB {
	return w.db
}
