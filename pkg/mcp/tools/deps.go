package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/retrieval"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/services"
)

// ReferenceSearcher finds stored question/SQL pairs.
type ReferenceSearcher interface {
	Enabled() bool
	Search(ctx context.Context, question string, limit int, tags []string) (retrieval.References, error)
}

// ReferenceAdder stores new question/SQL pairs.
type ReferenceAdder interface {
	Enabled() bool
	Add(ctx context.Context, entries []retrieval.SeedEntry) (int, error)
}

// ToolDeps contains dependencies for the text-to-SQL tools.
type ToolDeps struct {
	Generator services.GenerationService
	Searcher  ReferenceSearcher
	Indexer   ReferenceAdder
	Dialect   datasource.Dialect
	Version   string
	// DefaultRefLimit is used by search_sql_references when no limit is given.
	DefaultRefLimit int
	Logger          *zap.Logger
}

func (d *ToolDeps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

func (d *ToolDeps) retrievalEnabled() bool {
	return d.Searcher != nil && d.Searcher.Enabled()
}

// RegisterAll registers every text-to-SQL tool.
func RegisterAll(s *server.MCPServer, deps *ToolDeps) {
	RegisterHealthTool(s, deps)
	RegisterGenerationTools(s, deps)
	RegisterSchemaTools(s, deps)
	RegisterReferenceTools(s, deps)
}
