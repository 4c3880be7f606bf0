package schema

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-text2sql/pkg/adapters/datasource/postgres"
)

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	require.NoError(t, mock.ExpectationsWereMet())
}

// expectPostgresUsers queues the catalog queries a Postgres pass issues for
// the users table, in call order.
func expectPostgresUsers(mock sqlmock.Sqlmock, samples int) {
	mock.ExpectQuery(regexp.QuoteMeta("obj_description(c.oid, 'pg_class')")).
		WithArgs("public", "users").
		WillReturnRows(sqlmock.NewRows([]string{"comment"}).AddRow("registered accounts"))
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
	if samples > 0 {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "public"."users" ORDER BY random() LIMIT $1`)).
			WithArgs(samples).
			WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).
				AddRow(int64(1), "a@b.com").
				AddRow(int64(2), nil))
	}
}

const usersDDL = `CREATE TABLE users (
    id INTEGER NOT NULL,
    email VARCHAR, -- contact address
    PRIMARY KEY (id)
);`

// fakeTable scripts the catalog answers for one table of fakeIntrospector.
type fakeTable struct {
	columns []datasource.Column
	err     error
	delay   time.Duration
}

// fakeIntrospector serves scripted tables without SQL, so tests can shape
// timing and failures independently of a dialect.
type fakeIntrospector struct {
	dialect datasource.Dialect
	tables  map[string]fakeTable
	list    []string
	listErr error

	mu      sync.Mutex
	queried []datasource.Querier
}

func (f *fakeIntrospector) Dialect() datasource.Dialect     { return f.dialect }
func (f *fakeIntrospector) Schema() string                  { return "" }
func (f *fakeIntrospector) QuoteIdentifier(n string) string { return n }

func (f *fakeIntrospector) ListTables(context.Context, datasource.Querier) ([]string, error) {
	return f.list, f.listErr
}

func (f *fakeIntrospector) table(ctx context.Context, q datasource.Querier, name string) (fakeTable, error) {
	f.mu.Lock()
	f.queried = append(f.queried, q)
	f.mu.Unlock()

	t, ok := f.tables[name]
	if !ok {
		return t, errors.New("relation does not exist")
	}
	if t.delay > 0 {
		select {
		case <-time.After(t.delay):
		case <-ctx.Done():
			return t, ctx.Err()
		}
	}
	return t, t.err
}

func (f *fakeIntrospector) GetColumns(ctx context.Context, q datasource.Querier, name string) ([]datasource.Column, error) {
	t, err := f.table(ctx, q, name)
	return t.columns, err
}

func (f *fakeIntrospector) GetPrimaryKey(context.Context, datasource.Querier, string) ([]string, error) {
	return nil, nil
}

func (f *fakeIntrospector) GetForeignKeys(context.Context, datasource.Querier, string) ([]datasource.ForeignKey, error) {
	return nil, nil
}

func (f *fakeIntrospector) GetTableComment(ctx context.Context, q datasource.Querier, name string) (string, error) {
	_, err := f.table(ctx, q, name)
	return "table " + name, err
}

func (f *fakeIntrospector) GetColumnComments(context.Context, datasource.Querier, string) (map[string]string, error) {
	return nil, nil
}

func (f *fakeIntrospector) SampleRows(context.Context, datasource.Querier, string, int) (*datasource.RowSet, error) {
	return &datasource.RowSet{}, nil
}

// registerFake registers f under a dialect unique to the test.
func registerFake(t *testing.T, f *fakeIntrospector) datasource.Dialect {
	t.Helper()
	f.dialect = datasource.Dialect("fake_" + t.Name())
	datasource.Register(datasource.AdapterRegistration{
		Info:            datasource.AdapterInfo{Dialect: f.dialect, DisplayName: "Fake"},
		NewIntrospector: func(string) datasource.SchemaIntrospector { return f },
	})
	return f.dialect
}

// registerConnectionOnly registers a dialect that can be opened but not introspected.
func registerConnectionOnly(t *testing.T) datasource.Dialect {
	t.Helper()
	d := datasource.Dialect("conn_only_" + t.Name())
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{Dialect: d, DisplayName: "Connection only"},
	})
	return d
}

func intColumn(name string) datasource.Column {
	return datasource.Column{Name: name, Type: "INTEGER"}
}
