package datasource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/apperrors"
)

const testDialect Dialect = "testdb"

func registerForTest(t *testing.T, reg AdapterRegistration) {
	t.Helper()
	Register(reg)
	t.Cleanup(func() {
		registryMu.Lock()
		delete(registry, reg.Info.Dialect)
		registryMu.Unlock()
	})
}

type stubIntrospector struct {
	SchemaIntrospector
	schema string
}

func (s stubIntrospector) Dialect() Dialect { return testDialect }
func (s stubIntrospector) Schema() string   { return s.schema }

func TestIntrospectorFor(t *testing.T) {
	registerForTest(t, AdapterRegistration{
		Info: AdapterInfo{Dialect: testDialect, DisplayName: "Test"},
		NewIntrospector: func(schema string) SchemaIntrospector {
			return stubIntrospector{schema: schema}
		},
	})

	in, err := IntrospectorFor(testDialect, "sales")
	require.NoError(t, err)
	assert.Equal(t, "sales", in.Schema())
	assert.Contains(t, RegisteredAdapters(), AdapterInfo{Dialect: testDialect, DisplayName: "Test", Introspection: true})
}

func TestIntrospectorFor_ConnectionOnlyDialect(t *testing.T) {
	registerForTest(t, AdapterRegistration{
		Info: AdapterInfo{Dialect: testDialect},
	})

	_, err := IntrospectorFor(testDialect, "")
	require.ErrorIs(t, err, apperrors.ErrUnsupportedDialect)

	for _, info := range RegisteredAdapters() {
		if info.Dialect == testDialect {
			assert.False(t, info.Introspection)
		}
	}
}

func TestIntrospectorFor_Unregistered(t *testing.T) {
	_, err := IntrospectorFor("oracle", "")
	require.ErrorIs(t, err, apperrors.ErrUnsupportedDialect)

	_, err = Open(context.Background(), "oracle", nil, PoolSettings{})
	require.ErrorIs(t, err, apperrors.ErrUnsupportedDialect)
}

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in   string
		want Dialect
	}{
		{"postgres", Postgres},
		{"PostgreSQL", Postgres},
		{" mysql ", MySQL},
		{"mariadb", MySQL},
		{"sqlserver", MSSQL},
	}
	for _, tt := range tests {
		got, err := ParseDialect(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseDialect("sqlite")
	require.ErrorIs(t, err, apperrors.ErrUnsupportedDialect)
	assert.Equal(t, "PostgreSQL", Postgres.DisplayName())
}
