package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/logging"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/services"
)

const (
	modeDirect = "direct"
	modeAgent  = "agent"
)

// RegisterGenerationTools registers generate_sql and optimize_sql.
func RegisterGenerationTools(s *server.MCPServer, deps *ToolDeps) {
	registerGenerateSQLTool(s, deps)
	registerOptimizeSQLTool(s, deps)
}

// contextOptions are the parameters shared by every tool that assembles a
// prompt.
func contextOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithArray(
			"tables",
			mcp.Description("Tables to describe in the prompt. Omit to use every table in the schema. "+
				"Names are matched case-insensitively and by singular/plural form."),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithArray(
			"columns",
			mcp.Description("Columns the answer must return"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithArray(
			"predicates",
			mcp.Description("Filters or expressions the answer should use, e.g. \"status = 'active'\""),
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
		mcp.WithNumber(
			"ref_limit",
			mcp.Description("Similar question/SQL references to include (default: configured value, negative disables)"),
		),
		mcp.WithArray(
			"tags",
			mcp.Description("Only use references carrying one of these tags"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithBoolean(
			"include_prompt",
			mcp.Description("Include the assembled prompt in the response (default: false)"),
		),
	}
}

// parseGenerateRequest reads the shared prompt parameters. question must
// already be validated.
func parseGenerateRequest(req mcp.CallToolRequest, question string) (services.GenerateRequest, error) {
	out := services.GenerateRequest{
		Question: question,
		Schema:   getOptionalString(req, "schema"),
	}

	var err error
	if out.Tables, err = getTableNames(req, "tables"); err != nil {
		return out, err
	}
	if out.Columns, err = getStringSlice(req, "columns"); err != nil {
		return out, err
	}
	if out.Predicates, err = getStringSlice(req, "predicates"); err != nil {
		return out, err
	}
	if out.Tags, err = getStringSlice(req, "tags"); err != nil {
		return out, err
	}
	if out.SampleLimit, _, err = getOptionalInt(req, "sample_limit"); err != nil {
		return out, err
	}
	if out.RefLimit, _, err = getOptionalInt(req, "ref_limit"); err != nil {
		return out, err
	}
	return out, nil
}

// generationResponse is the JSON body of generate_sql and optimize_sql.
type generationResponse struct {
	*services.GenerationResult
	Summary string `json:"summary"`
}

func respondWithResult(req mcp.CallToolRequest, result *services.GenerationResult) (*mcp.CallToolResult, error) {
	resp := generationResponse{GenerationResult: result, Summary: result.String()}
	if include, _ := getOptionalBool(req, "include_prompt"); !include {
		copied := *result
		copied.Prompt = ""
		resp.GenerationResult = &copied
	}
	return jsonResult(resp)
}

func registerGenerateSQLTool(s *server.MCPServer, deps *ToolDeps) {
	opts := []mcp.ToolOption{
		mcp.WithDescription(
			"Translate a natural-language question into a SQL query for the connected database. " +
				"The prompt is built from the table definitions, sample values and similar prior questions. " +
				"In agent mode the model may instead ask for more information or explain why it cannot answer.",
		),
		mcp.WithString(
			"question",
			mcp.Required(),
			mcp.Description("The question to answer with SQL"),
		),
		mcp.WithString(
			"mode",
			mcp.Description("\"direct\" returns SQL only; \"agent\" allows request_more_info and fail_reason answers (default: direct)"),
			mcp.Enum(modeDirect, modeAgent),
		),
	}
	opts = append(opts, contextOptions()...)
	opts = append(opts,
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
	)
	tool := mcp.NewTool("generate_sql", opts...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil || trimString(question) == "" {
			return NewErrorResult(CodeInvalidParameters, "question is required"), nil
		}
		mode := getOptionalString(req, "mode")
		if mode == "" {
			mode = modeDirect
		}
		if mode != modeDirect && mode != modeAgent {
			return NewErrorResult(CodeInvalidParameters,
				fmt.Sprintf("mode must be %q or %q, got %q", modeDirect, modeAgent, mode)), nil
		}

		genReq, err := parseGenerateRequest(req, trimString(question))
		if err != nil {
			return NewErrorResult(CodeInvalidParameters, err.Error()), nil
		}

		var result *services.GenerationResult
		if mode == modeAgent {
			result, err = deps.Generator.GenerateAgentic(ctx, genReq)
		} else {
			result, err = deps.Generator.Generate(ctx, genReq)
		}
		if err != nil {
			if errResult := errorResultFor(err); errResult != nil {
				return errResult, nil
			}
			deps.logger().Error("generate_sql failed",
				zap.String("mode", mode),
				zap.String("error", logging.SanitizeError(err)))
			return nil, fmt.Errorf("generate sql: %w", err)
		}
		return respondWithResult(req, result)
	})
}

func registerOptimizeSQLTool(s *server.MCPServer, deps *ToolDeps) {
	opts := []mcp.ToolOption{
		mcp.WithDescription(
			"Rewrite a SQL query so it correctly answers its question. " +
				"Describe what is wrong in problem, for example an error message or an unexpected result.",
		),
		mcp.WithString(
			"question",
			mcp.Required(),
			mcp.Description("The question the SQL is meant to answer"),
		),
		mcp.WithString(
			"sql",
			mcp.Required(),
			mcp.Description("The SQL to fix or optimize"),
		),
		mcp.WithString(
			"problem",
			mcp.Description("What is wrong with the SQL (default: it does not answer the question correctly)"),
		),
	}
	opts = append(opts, contextOptions()...)
	opts = append(opts,
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
	)
	tool := mcp.NewTool("optimize_sql", opts...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil || trimString(question) == "" {
			return NewErrorResult(CodeInvalidParameters, "question is required"), nil
		}
		sqlText, err := req.RequireString("sql")
		if err != nil || trimString(sqlText) == "" {
			return NewErrorResult(CodeInvalidParameters, "sql is required"), nil
		}

		genReq, err := parseGenerateRequest(req, trimString(question))
		if err != nil {
			return NewErrorResult(CodeInvalidParameters, err.Error()), nil
		}

		result, err := deps.Generator.Optimize(ctx, services.OptimizeRequest{
			GenerateRequest: genReq,
			SQL:             trimString(sqlText),
			Problem:         getOptionalString(req, "problem"),
		})
		if err != nil {
			if errResult := errorResultFor(err); errResult != nil {
				return errResult, nil
			}
			deps.logger().Error("optimize_sql failed",
				zap.String("error", logging.SanitizeError(err)))
			return nil, fmt.Errorf("optimize sql: %w", err)
		}
		return respondWithResult(req, result)
	})
}
