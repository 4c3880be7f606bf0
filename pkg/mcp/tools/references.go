package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/logging"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/retrieval"
)

const defaultSearchLimit = 3

// RegisterReferenceTools registers search_sql_references and add_sql_reference.
func RegisterReferenceTools(s *server.MCPServer, deps *ToolDeps) {
	registerSearchReferencesTool(s, deps)
	registerAddReferenceTool(s, deps)
}

type searchReferencesResponse struct {
	Question   string                    `json:"question"`
	References []retrieval.ReferencePair `json:"references"`
}

func registerSearchReferencesTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"search_sql_references",
		mcp.WithDescription(
			"Find previously answered questions similar to this one, with the SQL that answered them. "+
				"Results are ordered most similar first.",
		),
		mcp.WithString(
			"question",
			mcp.Required(),
			mcp.Description("The question to search for"),
		),
		mcp.WithNumber(
			"limit",
			mcp.Description(fmt.Sprintf("Maximum references to return (default: %d)", defaultSearchLimit)),
		),
		mcp.WithArray(
			"tags",
			mcp.Description("Only return references carrying one of these tags"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Searcher == nil {
			return errorResultFor(apperrors.ErrRetrievalUnavailable), nil
		}
		question, err := req.RequireString("question")
		if err != nil || trimString(question) == "" {
			return NewErrorResult(CodeInvalidParameters, "question is required"), nil
		}
		limit, ok, err := getOptionalInt(req, "limit")
		if err != nil {
			return NewErrorResult(CodeInvalidParameters, err.Error()), nil
		}
		if !ok || limit == 0 {
			limit = deps.DefaultRefLimit
			if limit <= 0 {
				limit = defaultSearchLimit
			}
		}
		if limit < 0 {
			return NewErrorResult(CodeInvalidParameters, "limit must be positive"), nil
		}
		tags, err := getStringSlice(req, "tags")
		if err != nil {
			return NewErrorResult(CodeInvalidParameters, err.Error()), nil
		}

		refs, err := deps.Searcher.Search(ctx, trimString(question), limit, tags)
		if err != nil {
			if errResult := errorResultFor(err); errResult != nil {
				return errResult, nil
			}
			deps.logger().Error("search_sql_references failed",
				zap.String("error", logging.SanitizeError(err)))
			return nil, fmt.Errorf("search references: %w", err)
		}
		if refs == nil {
			refs = retrieval.References{}
		}
		return jsonResult(searchReferencesResponse{Question: trimString(question), References: refs})
	})
}

type addReferenceResponse struct {
	Added int `json:"added"`
}

func registerAddReferenceTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"add_sql_reference",
		mcp.WithDescription(
			"Store a question together with SQL that correctly answers it. "+
				"Stored references are retrieved as examples for similar future questions.",
		),
		mcp.WithString(
			"question",
			mcp.Required(),
			mcp.Description("The natural-language question"),
		),
		mcp.WithString(
			"sql",
			mcp.Required(),
			mcp.Description("SQL that answers the question"),
		),
		mcp.WithArray(
			"tags",
			mcp.Description("Tags used to filter references at search time"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Indexer == nil {
			return errorResultFor(apperrors.ErrRetrievalUnavailable), nil
		}
		question, err := req.RequireString("question")
		if err != nil || trimString(question) == "" {
			return NewErrorResult(CodeInvalidParameters, "question is required"), nil
		}
		sqlText, err := req.RequireString("sql")
		if err != nil || trimString(sqlText) == "" {
			return NewErrorResult(CodeInvalidParameters, "sql is required"), nil
		}
		tags, err := getStringSlice(req, "tags")
		if err != nil {
			return NewErrorResult(CodeInvalidParameters, err.Error()), nil
		}

		added, err := deps.Indexer.Add(ctx, []retrieval.SeedEntry{{
			Question: trimString(question),
			SQL:      trimString(sqlText),
			Tags:     retrieval.SafeTags(tags, deps.logger()),
		}})
		if err != nil {
			if errResult := errorResultFor(err); errResult != nil {
				return errResult, nil
			}
			deps.logger().Error("add_sql_reference failed",
				zap.String("error", logging.SanitizeError(err)))
			return nil, fmt.Errorf("add reference: %w", err)
		}

		deps.logger().Info("Reference added",
			zap.String("question", logging.TruncateString(trimString(question), 200)))
		return jsonResult(addReferenceResponse{Added: added})
	})
}
