package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/logging"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/schema"
)

// RegisterSchemaTools registers describe_tables.
func RegisterSchemaTools(s *server.MCPServer, deps *ToolDeps) {
	registerDescribeTablesTool(s, deps)
}

type describeTablesResponse struct {
	Dialect  string                 `json:"dialect"`
	Tables   []schema.TableMetadata `json:"tables"`
	Document string                 `json:"document"`
}

// registerDescribeTablesTool exposes the table documents that generation
// would put in front of the model.
func registerDescribeTablesTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"describe_tables",
		mcp.WithDescription(
			"Describe database tables the way generate_sql sees them: reconstructed CREATE TABLE DDL, "+
				"the table comment and sample values. Tables that cannot be read are returned as degraded placeholders.",
		),
		mcp.WithArray(
			"tables",
			mcp.Description("Tables to describe. Omit to describe every table in the schema."),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString(
			"schema",
			mcp.Description("Database schema to read tables from (default: configured schema)"),
		),
		mcp.WithNumber(
			"sample_limit",
			mcp.Description("Sample rows per table (default: configured value, negative disables samples)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tables, err := getTableNames(req, "tables")
		if err != nil {
			return NewErrorResult(CodeInvalidParameters, err.Error()), nil
		}
		sampleLimit, _, err := getOptionalInt(req, "sample_limit")
		if err != nil {
			return NewErrorResult(CodeInvalidParameters, err.Error()), nil
		}

		docs, err := deps.Generator.DescribeTables(ctx, tables, getOptionalString(req, "schema"), sampleLimit)
		if err != nil {
			if errResult := errorResultFor(err); errResult != nil {
				return errResult, nil
			}
			deps.logger().Error("describe_tables failed",
				zap.String("error", logging.SanitizeError(err)))
			return nil, fmt.Errorf("describe tables: %w", err)
		}

		rendered := make([]string, len(docs))
		for i, d := range docs {
			rendered[i] = strings.TrimRight(d.Document(), "\n")
		}
		return jsonResult(describeTablesResponse{
			Dialect:  string(deps.Dialect),
			Tables:   docs,
			Document: strings.Join(rendered, "\n\n"),
		})
	})
}
