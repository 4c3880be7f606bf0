package datasource

import (
	"context"
	"database/sql"
)

// PoolConnector abstracts connection pool operations across dialects.
type PoolConnector interface {
	// Ping verifies the connection is alive
	Ping(ctx context.Context) error

	// Close closes all connections in the pool
	Close() error

	// Dialect returns the database dialect for logging/stats
	Dialect() Dialect

	// DB returns the pool as a *sql.DB
	DB() *sql.DB
}
