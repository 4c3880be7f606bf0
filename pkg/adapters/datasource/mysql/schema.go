package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/apperrors"
)

// schemaPredicate matches the bound schema, or the connection's current
// database when the bound schema is empty.
const schemaPredicate = "TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE())"

// Introspector reflects MySQL tables through information_schema.
type Introspector struct {
	schema string
}

// NewIntrospector binds an introspector to schema. Empty means the
// database named in the DSN.
func NewIntrospector(schema string) *Introspector {
	return &Introspector{schema: schema}
}

func (i *Introspector) Dialect() datasource.Dialect { return datasource.MySQL }

func (i *Introspector) Schema() string { return i.schema }

// QuoteIdentifier wraps name in backticks, doubling embedded backticks.
func (i *Introspector) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (i *Introspector) qualifiedTableName(table string) string {
	if i.schema == "" {
		return i.QuoteIdentifier(table)
	}
	return i.QuoteIdentifier(i.schema) + "." + i.QuoteIdentifier(table)
}

// ListTables returns all base tables in the schema.
func (i *Introspector) ListTables(ctx context.Context, q datasource.Querier) ([]string, error) {
	query := `
		SELECT TABLE_NAME
		FROM information_schema.TABLES
		WHERE ` + schemaPredicate + `
		  AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`

	tables, err := datasource.ScanStrings(ctx, q, query, i.schema)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	return tables, nil
}

// GetColumns returns columns in ordinal order using COLUMN_TYPE, which keeps
// lengths and the unsigned attribute.
func (i *Introspector) GetColumns(ctx context.Context, q datasource.Querier, table string) ([]datasource.Column, error) {
	query := `
		SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE = 'YES', COLUMN_DEFAULT
		FROM information_schema.COLUMNS
		WHERE ` + schemaPredicate + `
		  AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`

	rows, err := q.QueryContext(ctx, query, i.schema, table)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []datasource.Column
	for rows.Next() {
		var (
			c     datasource.Column
			dtype string
			def   sql.NullString
		)
		if err := rows.Scan(&c.Name, &dtype, &c.Nullable, &def); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		c.Type = normalizeType(dtype)
		if def.Valid {
			d := formatDefault(def.String)
			c.Default = &d
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

// GetPrimaryKey returns the PRIMARY constraint columns in key order.
func (i *Introspector) GetPrimaryKey(ctx context.Context, q datasource.Querier, table string) ([]string, error) {
	query := `
		SELECT COLUMN_NAME
		FROM information_schema.KEY_COLUMN_USAGE
		WHERE ` + schemaPredicate + `
		  AND TABLE_NAME = ?
		  AND CONSTRAINT_NAME = 'PRIMARY'
		ORDER BY ORDINAL_POSITION`

	cols, err := datasource.ScanStrings(ctx, q, query, i.schema, table)
	if err != nil {
		return nil, fmt.Errorf("query primary key: %w", err)
	}
	return cols, nil
}

// GetForeignKeys groups KEY_COLUMN_USAGE rows by constraint name. The
// referenced table is schema-qualified only when it lives in another schema.
func (i *Introspector) GetForeignKeys(ctx context.Context, q datasource.Querier, table string) ([]datasource.ForeignKey, error) {
	query := `
		SELECT CONSTRAINT_NAME, COLUMN_NAME, TABLE_SCHEMA,
		       REFERENCED_TABLE_SCHEMA, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
		FROM information_schema.KEY_COLUMN_USAGE
		WHERE ` + schemaPredicate + `
		  AND TABLE_NAME = ?
		  AND REFERENCED_TABLE_NAME IS NOT NULL
		ORDER BY CONSTRAINT_NAME, ORDINAL_POSITION`

	rows, err := q.QueryContext(ctx, query, i.schema, table)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	var fks []datasource.ForeignKey
	for rows.Next() {
		var name, col, tableSchema, refSchema, refTable, refCol string
		if err := rows.Scan(&name, &col, &tableSchema, &refSchema, &refTable, &refCol); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		if refSchema != tableSchema {
			refTable = refSchema + "." + refTable
		}

		if n := len(fks); n > 0 && fks[n-1].Name == name {
			fks[n-1].Columns = append(fks[n-1].Columns, col)
			fks[n-1].RefColumns = append(fks[n-1].RefColumns, refCol)
			continue
		}
		fks = append(fks, datasource.ForeignKey{
			Name:       name,
			Columns:    []string{col},
			RefTable:   refTable,
			RefColumns: []string{refCol},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign keys: %w", err)
	}
	return fks, nil
}

// GetTableComment returns TABLES.TABLE_COMMENT.
func (i *Introspector) GetTableComment(ctx context.Context, q datasource.Querier, table string) (string, error) {
	query := `
		SELECT COALESCE(TABLE_COMMENT, '')
		FROM information_schema.TABLES
		WHERE ` + schemaPredicate + `
		  AND TABLE_NAME = ?`

	var comment string
	err := q.QueryRowContext(ctx, query, i.schema, table).Scan(&comment)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", apperrors.ErrTableNotFound, table)
	}
	if err != nil {
		return "", fmt.Errorf("query table comment: %w", err)
	}
	return comment, nil
}

// GetColumnComments returns COLUMNS.COLUMN_COMMENT for commented columns.
func (i *Introspector) GetColumnComments(ctx context.Context, q datasource.Querier, table string) (map[string]string, error) {
	query := `
		SELECT COLUMN_NAME, COLUMN_COMMENT
		FROM information_schema.COLUMNS
		WHERE ` + schemaPredicate + `
		  AND TABLE_NAME = ?
		  AND COLUMN_COMMENT <> ''
		ORDER BY ORDINAL_POSITION`

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

// SampleRows selects up to limit random rows with ORDER BY rand().
func (i *Introspector) SampleRows(ctx context.Context, q datasource.Querier, table string, limit int) (*datasource.RowSet, error) {
	if limit <= 0 {
		return &datasource.RowSet{}, nil
	}
	query := fmt.Sprintf("SELECT * FROM %s ORDER BY rand() LIMIT ?", i.qualifiedTableName(table))

	rs, err := datasource.QueryRowSet(ctx, q, query, limit)
	if err != nil {
		return nil, fmt.Errorf("sample rows: %w", err)
	}
	return rs, nil
}

// normalizeType upper-cases the type keyword and attributes of a COLUMN_TYPE
// while leaving parenthesised members (enum labels, lengths) untouched.
func normalizeType(t string) string {
	t = strings.TrimSpace(t)
	open := strings.IndexByte(t, '(')
	closing := strings.LastIndexByte(t, ')')
	if open < 0 || closing < open {
		return strings.ToUpper(t)
	}
	return strings.ToUpper(t[:open]) + t[open:closing+1] + strings.ToUpper(t[closing+1:])
}

// formatDefault renders a COLUMN_DEFAULT as a SQL literal. information_schema
// reports string defaults unquoted; numbers and CURRENT_TIMESTAMP-style
// expressions are kept verbatim.
func formatDefault(v string) string {
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return v
	}
	upper := strings.ToUpper(v)
	if strings.HasPrefix(upper, "CURRENT_TIMESTAMP") || upper == "NULL" || strings.HasPrefix(v, "(") {
		return v
	}
	if strings.HasPrefix(v, "'") && strings.HasSuffix(v, "'") && len(v) >= 2 {
		return v
	}
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

var _ datasource.SchemaIntrospector = (*Introspector)(nil)
