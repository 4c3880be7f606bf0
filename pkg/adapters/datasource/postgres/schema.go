package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/apperrors"
)

// DefaultSchema is used when no schema is configured.
const DefaultSchema = "public"

// listSeparator joins multi-column constraint members in catalog queries.
const listSeparator = "\x1f"

// qualifiedTableName returns a properly quoted table reference.
// If schemaName is empty, returns just the quoted table name.
// Otherwise returns "schema"."table".
func qualifiedTableName(schemaName, tableName string) string {
	quotedTable := pgx.Identifier{tableName}.Sanitize()
	if schemaName == "" {
		return quotedTable
	}
	return pgx.Identifier{schemaName, tableName}.Sanitize()
}

// Introspector reflects PostgreSQL tables through the system catalogs.
type Introspector struct {
	schema string
}

// NewIntrospector binds an introspector to schema, defaulting to "public".
func NewIntrospector(schema string) *Introspector {
	if schema == "" {
		schema = DefaultSchema
	}
	return &Introspector{schema: schema}
}

func (i *Introspector) Dialect() datasource.Dialect { return datasource.Postgres }

func (i *Introspector) Schema() string { return i.schema }

// QuoteIdentifier quotes name with double quotes, doubling embedded quotes.
func (i *Introspector) QuoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// ListTables returns all base tables in the schema.
func (i *Introspector) ListTables(ctx context.Context, q datasource.Querier) ([]string, error) {
	const query = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	tables, err := datasource.ScanStrings(ctx, q, query, i.schema)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	return tables, nil
}

// GetColumns returns columns in attribute order. Types come from
// format_type so modifiers such as varchar length are preserved.
func (i *Introspector) GetColumns(ctx context.Context, q datasource.Querier, table string) ([]datasource.Column, error) {
	const query = `
		SELECT
			a.attname,
			format_type(a.atttypid, a.atttypmod),
			NOT a.attnotnull,
			pg_get_expr(d.adbin, d.adrelid)
		FROM pg_attribute a
		JOIN pg_class c ON c.oid = a.attrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		LEFT JOIN pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
		WHERE n.nspname = $1
		  AND c.relname = $2
		  AND a.attnum > 0
		  AND NOT a.attisdropped
		ORDER BY a.attnum`

	rows, err := q.QueryContext(ctx, query, i.schema, table)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []datasource.Column
	for rows.Next() {
		var (
			c     datasource.Column
			def   sql.NullString
			dtype string
		)
		if err := rows.Scan(&c.Name, &dtype, &c.Nullable, &def); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		c.Type = normalizeType(dtype)
		c.Default = datasource.NullableString(def)
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

// GetPrimaryKey returns the primary key columns in index key order.
func (i *Introspector) GetPrimaryKey(ctx context.Context, q datasource.Querier, table string) ([]string, error) {
	const query = `
		SELECT a.attname
		FROM pg_index ix
		JOIN pg_class c ON c.oid = ix.indrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		CROSS JOIN LATERAL unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord)
		JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = k.attnum
		WHERE ix.indisprimary
		  AND n.nspname = $1
		  AND c.relname = $2
		ORDER BY k.ord`

	cols, err := datasource.ScanStrings(ctx, q, query, i.schema, table)
	if err != nil {
		return nil, fmt.Errorf("query primary key: %w", err)
	}
	return cols, nil
}

// GetForeignKeys returns foreign keys ordered by constraint name. The
// referenced table is schema-qualified only when it lives in another schema.
func (i *Introspector) GetForeignKeys(ctx context.Context, q datasource.Querier, table string) ([]datasource.ForeignKey, error) {
	const query = `
		SELECT
			con.conname,
			(SELECT string_agg(a.attname, chr(31) ORDER BY k.ord)
			   FROM unnest(con.conkey) WITH ORDINALITY AS k(attnum, ord)
			   JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum),
			rn.nspname,
			rc.relname,
			(SELECT string_agg(a.attname, chr(31) ORDER BY k.ord)
			   FROM unnest(con.confkey) WITH ORDINALITY AS k(attnum, ord)
			   JOIN pg_attribute a ON a.attrelid = con.confrelid AND a.attnum = k.attnum)
		FROM pg_constraint con
		JOIN pg_class c ON c.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_class rc ON rc.oid = con.confrelid
		JOIN pg_namespace rn ON rn.oid = rc.relnamespace
		WHERE con.contype = 'f'
		  AND n.nspname = $1
		  AND c.relname = $2
		ORDER BY con.conname`

	rows, err := q.QueryContext(ctx, query, i.schema, table)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	var fks []datasource.ForeignKey
	for rows.Next() {
		var name, cols, refSchema, refTable, refCols string
		if err := rows.Scan(&name, &cols, &refSchema, &refTable, &refCols); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		if refSchema != i.schema {
			refTable = refSchema + "." + refTable
		}
		fks = append(fks, datasource.ForeignKey{
			Name:       name,
			Columns:    strings.Split(cols, listSeparator),
			RefTable:   refTable,
			RefColumns: strings.Split(refCols, listSeparator),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign keys: %w", err)
	}
	return fks, nil
}

// GetTableComment returns the pg_class comment for table.
func (i *Introspector) GetTableComment(ctx context.Context, q datasource.Querier, table string) (string, error) {
	const query = `
		SELECT COALESCE(obj_description(c.oid, 'pg_class'), '')
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1
		  AND c.relname = $2
		  AND c.relkind IN ('r', 'p', 'v', 'm', 'f')`

	var comment string
	err := q.QueryRowContext(ctx, query, i.schema, table).Scan(&comment)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s.%s", apperrors.ErrTableNotFound, i.schema, table)
	}
	if err != nil {
		return "", fmt.Errorf("query table comment: %w", err)
	}
	return comment, nil
}

// GetColumnComments returns comments keyed by column name for the columns
// that have one.
func (i *Introspector) GetColumnComments(ctx context.Context, q datasource.Querier, table string) (map[string]string, error) {
	const query = `
		SELECT a.attname, col_description(a.attrelid, a.attnum)
		FROM pg_attribute a
		JOIN pg_class c ON c.oid = a.attrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1
		  AND c.relname = $2
		  AND a.attnum > 0
		  AND NOT a.attisdropped
		  AND col_description(a.attrelid, a.attnum) IS NOT NULL
		ORDER BY a.attnum`

	rows, err := q.QueryContext(ctx, query, i.schema, table)
	if err != nil {
		return nil, fmt.Errorf("query column comments: %w", err)
	}
	defer rows.Close()

	comments := make(map[string]string)
	for rows.Next() {
		var name, comment string
		if err := rows.Scan(&name, &comment); err != nil {
			return nil, fmt.Errorf("scan column comment: %w", err)
		}
		comments[name] = comment
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column comments: %w", err)
	}
	return comments, nil
}

// SampleRows selects up to limit random rows with ORDER BY random().
func (i *Introspector) SampleRows(ctx context.Context, q datasource.Querier, table string, limit int) (*datasource.RowSet, error) {
	if limit <= 0 {
		return &datasource.RowSet{}, nil
	}
	query := fmt.Sprintf("SELECT * FROM %s ORDER BY random() LIMIT $1", qualifiedTableName(i.schema, table))

	rs, err := datasource.QueryRowSet(ctx, q, query, limit)
	if err != nil {
		return nil, fmt.Errorf("sample rows: %w", err)
	}
	return rs, nil
}

var typeAliases = []struct {
	prefix, short string
}{
	{"character varying", "VARCHAR"},
	{"character", "CHAR"},
	{"timestamp without time zone", "TIMESTAMP"},
	{"timestamp with time zone", "TIMESTAMPTZ"},
	{"time without time zone", "TIME"},
	{"time with time zone", "TIMETZ"},
	{"bit varying", "VARBIT"},
}

// normalizeType upper-cases a format_type result and shortens the verbose
// SQL-standard spellings, keeping any modifier or array suffix.
func normalizeType(t string) string {
	lower := strings.ToLower(strings.TrimSpace(t))
	for _, a := range typeAliases {
		if rest, ok := strings.CutPrefix(lower, a.prefix); ok {
			if rest == "" || rest[0] == '(' || rest[0] == '[' {
				return a.short + strings.ToUpper(rest)
			}
		}
	}
	return strings.ToUpper(lower)
}

var _ datasource.SchemaIntrospector = (*Introspector)(nil)
