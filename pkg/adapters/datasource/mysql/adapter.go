package mysql

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/adapters/datasource"
)

// Open creates a database/sql pool for the MySQL datasource described by options.
func Open(ctx context.Context, options map[string]any, settings datasource.PoolSettings) (datasource.PoolConnector, error) {
	cfg, err := FromMap(options)
	if err != nil {
		return nil, fmt.Errorf("mysql config: %w", err)
	}

	connector, err := datasource.CreateSQLPool(ctx, "mysql", buildDSN(cfg), datasource.MySQL, settings)
	if err != nil {
		return nil, fmt.Errorf("connect to mysql: %w", err)
	}
	return connector, nil
}
