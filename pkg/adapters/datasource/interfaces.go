package datasource

import (
	"context"
	"database/sql"
)

// Querier is the read-only subset of database/sql used for introspection.
// *sql.DB, *sql.Conn and *sql.Tx all satisfy it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SchemaIntrospector reflects table structure for one dialect. An introspector
// is bound to a schema at construction; every method runs on the Querier it is
// handed, so a caller can pin a whole pass to a single connection.
type SchemaIntrospector interface {
	// Dialect returns the engine this introspector targets.
	Dialect() Dialect

	// Schema returns the bound schema. Empty means the connection default.
	Schema() string

	// QuoteIdentifier quotes a single identifier for this dialect.
	QuoteIdentifier(name string) string

	// ListTables returns base tables in the bound schema, sorted by name.
	ListTables(ctx context.Context, q Querier) ([]string, error)

	// GetColumns returns columns in ordinal order.
	GetColumns(ctx context.Context, q Querier, table string) ([]Column, error)

	// GetPrimaryKey returns primary key columns in key order; nil when absent.
	GetPrimaryKey(ctx context.Context, q Querier, table string) ([]string, error)

	// GetForeignKeys returns foreign keys ordered by constraint name.
	GetForeignKeys(ctx context.Context, q Querier, table string) ([]ForeignKey, error)

	// GetTableComment returns the table comment or "" when none is set.
	// A table that does not exist yields apperrors.ErrTableNotFound.
	GetTableComment(ctx context.Context, q Querier, table string) (string, error)

	// GetColumnComments returns column name to comment for commented columns.
	GetColumnComments(ctx context.Context, q Querier, table string) (map[string]string, error)

	// SampleRows returns up to limit rows in random order using the
	// dialect's native random function.
	SampleRows(ctx context.Context, q Querier, table string, limit int) (*RowSet, error)
}
