package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/apperrors"
)

// DDLReconstructor rebuilds CREATE TABLE statements from catalog queries.
type DDLReconstructor struct{}

// Reconstruct dispatches on dialect and returns the annotated DDL for table.
// Dialects without an introspector fail with apperrors.ErrUnsupportedDialect;
// catalog failures come back as *apperrors.IntrospectionError.
func (r DDLReconstructor) Reconstruct(ctx context.Context, q datasource.Querier, dialect datasource.Dialect, table, schema string) (string, error) {
	in, err := datasource.IntrospectorFor(dialect, schema)
	if err != nil {
		return "", err
	}
	return r.reconstruct(ctx, q, in, table)
}

func (r DDLReconstructor) reconstruct(ctx context.Context, q datasource.Querier, in datasource.SchemaIntrospector, table string) (string, error) {
	columns, err := in.GetColumns(ctx, q, table)
	if err != nil {
		return "", apperrors.NewIntrospectionError(table, "columns", err)
	}
	if len(columns) == 0 {
		return "", apperrors.NewIntrospectionError(table, "columns", apperrors.ErrTableNotFound)
	}

	pk, err := in.GetPrimaryKey(ctx, q, table)
	if err != nil {
		return "", apperrors.NewIntrospectionError(table, "primary key", err)
	}

	fks, err := in.GetForeignKeys(ctx, q, table)
	if err != nil {
		return "", apperrors.NewIntrospectionError(table, "foreign keys", err)
	}

	comments, err := in.GetColumnComments(ctx, q, table)
	if err != nil {
		return "", apperrors.NewIntrospectionError(table, "column comments", err)
	}

	return BuildDDL(table, columns, pk, fks, comments), nil
}

// BuildDDL assembles a CREATE TABLE statement. Column and constraint order
// follow the input slices so output is reproducible.
func BuildDDL(table string, columns []datasource.Column, pk []string, fks []datasource.ForeignKey, comments map[string]string) string {
	lines := make([]string, 0, len(columns)+len(fks)+3)
	lines = append(lines, fmt.Sprintf("CREATE TABLE %s (", table))

	for _, col := range columns {
		var b strings.Builder
		fmt.Fprintf(&b, "    %s %s", col.Name, col.Type)
		if col.Default != nil {
			fmt.Fprintf(&b, " DEFAULT %s", *col.Default)
		}
		if !col.Nullable {
			b.WriteString(" NOT NULL")
		}
		b.WriteString(",")
		if comment := comments[col.Name]; comment != "" {
			fmt.Fprintf(&b, " -- %s", oneLine(comment))
		}
		lines = append(lines, b.String())
	}

	if len(pk) > 0 {
		lines = append(lines, fmt.Sprintf("    PRIMARY KEY (%s),", strings.Join(pk, ", ")))
	}

	for _, fk := range fks {
		lines = append(lines, fmt.Sprintf("    FOREIGN KEY (%s) REFERENCES %s(%s),",
			strings.Join(fk.Columns, ", "), fk.RefTable, strings.Join(fk.RefColumns, ", ")))
	}

	// A commented final column keeps its comma; the comment sits after it.
	last := len(lines) - 1
	lines[last] = strings.TrimSuffix(lines[last], ",")

	lines = append(lines, ");")
	return strings.Join(lines, "\n")
}

// oneLine keeps a multi-line comment inside its "--" line comment.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
