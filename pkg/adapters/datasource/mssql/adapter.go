package mssql

import (
	"context"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"         // SQL Server driver
	_ "github.com/microsoft/go-mssqldb/azuread" // Azure AD support

	"github.com/ekaya-inc/ekaya-text2sql/pkg/adapters/datasource"
)

// Open creates a database/sql pool for the SQL Server datasource described by options.
func Open(ctx context.Context, options map[string]any, settings datasource.PoolSettings) (datasource.PoolConnector, error) {
	cfg, err := FromMap(options)
	if err != nil {
		return nil, fmt.Errorf("mssql config: %w", err)
	}

	driverName, dsn := connectionURL(cfg)
	connector, err := datasource.CreateSQLPool(ctx, driverName, dsn, datasource.MSSQL, settings)
	if err != nil {
		return nil, fmt.Errorf("connect to mssql: %w", err)
	}
	return connector, nil
}
