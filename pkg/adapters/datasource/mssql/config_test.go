package mssql

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/apperrors"
)

func TestFromMap_SQLAuth(t *testing.T) {
	cfg, err := FromMap(map[string]any{
		"host": "sql.example.com", "user": "sa", "password": "p@ss", "database": "sales", "ssl_mode": "disable",
	})
	require.NoError(t, err)
	assert.Equal(t, "sql", cfg.AuthMethod)
	assert.False(t, cfg.Encrypt)

	driverName, dsn := connectionURL(cfg)
	assert.Equal(t, "sqlserver", driverName)

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "sql.example.com:1433", u.Host)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss", pw)
	assert.Equal(t, "sales", u.Query().Get("database"))
	assert.Equal(t, "false", u.Query().Get("encrypt"))
}

func TestFromMap_ServicePrincipal(t *testing.T) {
	cfg, err := FromMap(map[string]any{
		"host": "x.database.windows.net", "database": "sales",
		"client_id": "cid", "tenant_id": "tid", "client_secret": "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "service_principal", cfg.AuthMethod)

	driverName, dsn := connectionURL(cfg)
	assert.Equal(t, "azuresql", driverName)
	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "ActiveDirectoryServicePrincipal", u.Query().Get("fedauth"))
}

func TestFromMap_Errors(t *testing.T) {
	_, err := FromMap(map[string]any{"database": "d", "user": "u"})
	require.ErrorContains(t, err, "host is required")

	_, err = FromMap(map[string]any{"host": "h", "database": "d"})
	require.ErrorContains(t, err, "could not auto-detect auth method")

	_, err = FromMap(map[string]any{"host": "h", "database": "d", "client_id": "c"})
	require.ErrorContains(t, err, "required for service principal")
}

func TestRegistration_ConnectionOnly(t *testing.T) {
	var info *datasource.AdapterInfo
	for _, a := range datasource.RegisteredAdapters() {
		if a.Dialect == datasource.MSSQL {
			info = &a
		}
	}
	require.NotNil(t, info, "mssql adapter not registered")
	assert.Equal(t, "Microsoft SQL Server", info.DisplayName)
	assert.False(t, info.Introspection)

	_, err := datasource.IntrospectorFor(datasource.MSSQL, "dbo")
	require.ErrorIs(t, err, apperrors.ErrUnsupportedDialect)
}
