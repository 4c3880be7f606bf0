package schema

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/apperrors"
)

func strPtr(s string) *string { return &s }

func TestBuildDDL(t *testing.T) {
	tests := []struct {
		name     string
		table    string
		columns  []datasource.Column
		pk       []string
		fks      []datasource.ForeignKey
		comments map[string]string
		want     string
	}{
		{
			name:  "users",
			table: "users",
			columns: []datasource.Column{
				{Name: "id", Type: "INTEGER"},
				{Name: "email", Type: "VARCHAR", Nullable: true},
			},
			pk:       []string{"id"},
			comments: map[string]string{"email": "contact address"},
			want:     usersDDL,
		},
		{
			name:  "defaults and foreign keys",
			table: "order_items",
			columns: []datasource.Column{
				{Name: "order_id", Type: "INTEGER"},
				{Name: "line_no", Type: "INTEGER"},
				{Name: "status", Type: "VARCHAR(16)", Default: strPtr("'new'::character varying")},
				{Name: "sku", Type: "TEXT", Nullable: true},
			},
			pk: []string{"order_id", "line_no"},
			fks: []datasource.ForeignKey{
				{Name: "fk_order", Columns: []string{"order_id"}, RefTable: "orders", RefColumns: []string{"id"}},
				{Name: "fk_sku", Columns: []string{"sku"}, RefTable: "catalog.products", RefColumns: []string{"sku"}},
			},
			want: `CREATE TABLE order_items (
    order_id INTEGER NOT NULL,
    line_no INTEGER NOT NULL,
    status VARCHAR(16) DEFAULT 'new'::character varying NOT NULL,
    sku TEXT,
    PRIMARY KEY (order_id, line_no),
    FOREIGN KEY (order_id) REFERENCES orders(id),
    FOREIGN KEY (sku) REFERENCES catalog.products(sku)
);`,
		},
		{
			name:    "no constraints",
			table:   "notes",
			columns: []datasource.Column{{Name: "note", Type: "TEXT", Nullable: true}},
			want:    "CREATE TABLE notes (\n    note TEXT\n);",
		},
		{
			name:     "commented last column keeps comma",
			table:    "notes",
			columns:  []datasource.Column{{Name: "note", Type: "TEXT", Nullable: true}},
			comments: map[string]string{"note": "free\n text"},
			want:     "CREATE TABLE notes (\n    note TEXT, -- free text\n);",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildDDL(tt.table, tt.columns, tt.pk, tt.fks, tt.comments))
		})
	}
}

func TestDDLReconstructor_Postgres(t *testing.T) {
	db, mock := newSQLMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM pg_attribute a")).
		WithArgs("public", "users").
		WillReturnRows(sqlmock.NewRows([]string{"attname", "format_type", "nullable", "default"}).
			AddRow("id", "integer", false, nil).
			AddRow("email", "character varying", true, nil))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE ix.indisprimary")).
		WithArgs("public", "users").
		WillReturnRows(sqlmock.NewRows([]string{"attname"}).AddRow("id"))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE con.contype = 'f'")).
		WithArgs("public", "users").
		WillReturnRows(sqlmock.NewRows([]string{"conname", "cols", "nspname", "relname", "refcols"}))
	mock.ExpectQuery(regexp.QuoteMeta("col_description(a.attrelid, a.attnum) IS NOT NULL")).
		WithArgs("public", "users").
		WillReturnRows(sqlmock.NewRows([]string{"attname", "comment"}).AddRow("email", "contact address"))

	ddl, err := DDLReconstructor{}.Reconstruct(context.Background(), db, datasource.Postgres, "users", "")
	require.NoError(t, err)
	assert.Equal(t, usersDDL, ddl)
	assertSQLMock(t, mock)
}

func TestDDLReconstructor_WrapsQueryFailure(t *testing.T) {
	db, mock := newSQLMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM pg_attribute a")).
		WithArgs("public", "users").
		WillReturnRows(sqlmock.NewRows([]string{"attname", "format_type", "nullable", "default"}).
			AddRow("id", "integer", false, nil))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE ix.indisprimary")).
		WithArgs("public", "users").
		WillReturnError(errors.New("permission denied for pg_index"))

	_, err := DDLReconstructor{}.Reconstruct(context.Background(), db, datasource.Postgres, "users", "")
	require.Error(t, err)

	var ie *apperrors.IntrospectionError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "users", ie.Table)
	assert.Equal(t, "primary key", ie.Op)
	assert.Contains(t, err.Error(), "permission denied")
	assertSQLMock(t, mock)
}

func TestDDLReconstructor_NoColumns(t *testing.T) {
	db, mock := newSQLMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM pg_attribute a")).
		WithArgs("public", "ghost").
		WillReturnRows(sqlmock.NewRows([]string{"attname", "format_type", "nullable", "default"}))

	_, err := DDLReconstructor{}.Reconstruct(context.Background(), db, datasource.Postgres, "ghost", "")
	require.ErrorIs(t, err, apperrors.ErrTableNotFound)
	assertSQLMock(t, mock)
}

func TestDDLReconstructor_UnsupportedDialect(t *testing.T) {
	db, mock := newSQLMock(t)

	for _, d := range []datasource.Dialect{registerConnectionOnly(t), "oracle"} {
		_, err := DDLReconstructor{}.Reconstruct(context.Background(), db, d, "users", "")
		require.ErrorIs(t, err, apperrors.ErrUnsupportedDialect, d)
	}
	assertSQLMock(t, mock)
}

func TestDDLReconstructor_Deterministic(t *testing.T) {
	f := &fakeIntrospector{tables: map[string]fakeTable{
		"t": {columns: []datasource.Column{intColumn("a"), intColumn("b"), intColumn("c")}},
	}}
	d := registerFake(t, f)
	db, _ := newSQLMock(t)

	first, err := DDLReconstructor{}.Reconstruct(context.Background(), db, d, "t", "")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := DDLReconstructor{}.Reconstruct(context.Background(), db, d, "t", "")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
