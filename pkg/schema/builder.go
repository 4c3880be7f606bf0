package schema

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/logging"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/metrics"
)

// DefaultConcurrency is the number of tables described in parallel.
const DefaultConcurrency = 4

// BuilderConfig tunes a metadata pass.
type BuilderConfig struct {
	Concurrency       int
	SampleValueMaxLen int
}

// Builder turns tables into TableMetadata documents for one database.
type Builder struct {
	db      *sql.DB
	dialect datasource.Dialect
	cfg     BuilderConfig
	sampler Sampler
	ddl     DDLReconstructor
	logger  *zap.Logger
}

// NewBuilder creates a builder over db. db is borrowed; the caller owns its lifecycle.
func NewBuilder(db *sql.DB, dialect datasource.Dialect, cfg BuilderConfig, logger *zap.Logger) *Builder {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		db:      db,
		dialect: dialect,
		cfg:     cfg,
		sampler: Sampler{MaxValueLen: cfg.SampleValueMaxLen},
		logger:  logger.Named("schema"),
	}
}

// Dialect returns the dialect of the underlying database.
func (b *Builder) Dialect() datasource.Dialect {
	return b.dialect
}

// ListTables lists base tables in schema.
func (b *Builder) ListTables(ctx context.Context, schema string) ([]string, error) {
	in, err := datasource.IntrospectorFor(b.dialect, schema)
	if err != nil {
		return nil, err
	}
	tables, err := in.ListTables(ctx, b.db)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

// Describe builds the document for one table. Failures never escape: they
// are folded into a placeholder document naming the cause.
func (b *Builder) Describe(ctx context.Context, q datasource.Querier, table, schema string, sampleLimit int) TableMetadata {
	in, err := datasource.IntrospectorFor(b.dialect, schema)
	if err != nil {
		return b.placeholder(table, err)
	}
	return b.describeOrPlaceholder(ctx, q, in, table, sampleLimit)
}

func (b *Builder) describeOrPlaceholder(ctx context.Context, q datasource.Querier, in datasource.SchemaIntrospector, table string, sampleLimit int) TableMetadata {
	md, err := b.describe(ctx, q, in, table, sampleLimit)
	if err != nil {
		return b.placeholder(table, err)
	}
	metrics.ObserveTableDescription(false)
	return md
}

func (b *Builder) describe(ctx context.Context, q datasource.Querier, in datasource.SchemaIntrospector, table string, sampleLimit int) (TableMetadata, error) {
	description, err := in.GetTableComment(ctx, q, table)
	if err != nil {
		return TableMetadata{}, apperrors.NewIntrospectionError(table, "table comment", err)
	}

	ddl, err := b.ddl.reconstruct(ctx, q, in, table)
	if err != nil {
		return TableMetadata{}, err
	}

	samples, err := b.sampler.sample(ctx, q, in, table, sampleLimit)
	if err != nil {
		return TableMetadata{}, err
	}

	return NewTableMetadata(table, description, ddl, samples), nil
}

func (b *Builder) placeholder(table string, err error) TableMetadata {
	b.logger.Warn("table description degraded",
		zap.String("table", table),
		zap.String("error", logging.SanitizeError(err)),
	)
	metrics.ObserveTableDescription(true)
	return Placeholder(table, err)
}

// DescribeAll describes tables in input order. An empty list means every
// table in schema. Only listing failures, a dialect without an introspector
// and context cancellation are returned as errors; per-table failures
// become placeholders.
//
// Each worker holds one connection for the whole pass so catalog reads for
// a table see a single session.
func (b *Builder) DescribeAll(ctx context.Context, tables []string, schema string, sampleLimit int) ([]TableMetadata, error) {
	in, err := datasource.IntrospectorFor(b.dialect, schema)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { metrics.ObserveMetadataPass(time.Since(start)) }()

	if len(tables) == 0 {
		tables, err = in.ListTables(ctx, b.db)
		if err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
	}

	results := make([]TableMetadata, len(tables))
	if len(tables) == 0 {
		return results, nil
	}

	workers := min(b.cfg.Concurrency, len(tables))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			conn, err := b.db.Conn(ctx)
			if err != nil {
				for i := range jobs {
					results[i] = b.placeholder(tables[i], fmt.Errorf("acquire connection: %w", err))
				}
				return
			}
			defer conn.Close()

			for i := range jobs {
				results[i] = b.describeOrPlaceholder(ctx, conn, in, tables[i], sampleLimit)
			}
		}()
	}

dispatch:
	for i := range tables {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.logger.Debug("metadata pass complete",
		zap.Int("tables", len(tables)),
		zap.Int("workers", workers),
		zap.Duration("elapsed", time.Since(start)),
	)
	return results, nil
}
