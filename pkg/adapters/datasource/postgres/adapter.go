package postgres

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/adapters/datasource"
)

// Open creates a pgx pool for the datasource described by options and exposes
// it through database/sql.
func Open(ctx context.Context, options map[string]any, settings datasource.PoolSettings) (datasource.PoolConnector, error) {
	cfg, err := FromMap(options)
	if err != nil {
		return nil, fmt.Errorf("postgres config: %w", err)
	}

	connector, err := datasource.CreatePostgresPool(ctx, buildConnectionString(cfg), settings)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return connector, nil
}
