package mcp

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/auth"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/logging"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/metrics"
)

// maxParamLen bounds logged string parameters.
const maxParamLen = 500

// sqlStringLiteralPattern matches single-quoted SQL string literals.
var sqlStringLiteralPattern = regexp.MustCompile(`'(?:[^']|'')*'`)

// AuditLogger logs MCP tool calls and counts them by outcome.
type AuditLogger struct {
	logger *zap.Logger

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

// NewAuditLogger creates an AuditLogger.
func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditLogger{logger: logger.Named("mcp-audit")}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (a *AuditLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(a.beforeCallTool)
	hooks.AddAfterCallTool(a.afterCallTool)
	hooks.AddOnError(a.onError)
	return hooks
}

func (a *AuditLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	a.startTimes.Store(id, time.Now())
}

func (a *AuditLogger) afterCallTool(ctx context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	outcome := "ok"
	if result != nil && result.IsError {
		outcome = "tool_error"
	}
	metrics.ObserveToolCall(req.Params.Name, outcome)

	a.logger.Info("MCP tool call",
		append(a.fields(ctx, id, req), zap.String("outcome", outcome))...)
}

func (a *AuditLogger) onError(ctx context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}
	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}
	metrics.ObserveToolCall(req.Params.Name, "error")

	a.logger.Warn("MCP tool call failed",
		append(a.fields(ctx, id, req), zap.String("error", logging.SanitizeError(err)))...)
}

func (a *AuditLogger) fields(ctx context.Context, id any, req *mcplib.CallToolRequest) []zap.Field {
	start, ok := a.startTimes.LoadAndDelete(id)
	elapsed := time.Duration(0)
	if ok {
		elapsed = time.Since(start.(time.Time))
	}
	return []zap.Field{
		zap.String("tool", req.Params.Name),
		zap.String("subject", auth.SubjectFromContext(ctx)),
		zap.Duration("elapsed", elapsed),
		zap.Any("params", sanitizeParams(req.Params.Arguments)),
	}
}

// sanitizeParams truncates long strings and redacts string literals in
// SQL-bearing parameters before they are logged.
func sanitizeParams(args any) map[string]any {
	params, ok := args.(map[string]any)
	if !ok || len(params) == 0 {
		return nil
	}

	sanitized := make(map[string]any, len(params))
	for k, v := range params {
		if s, ok := v.(string); ok {
			if isSQLParam(k) {
				s = sqlStringLiteralPattern.ReplaceAllString(s, "'***'")
			}
			v = logging.TruncateString(s, maxParamLen)
		}
		sanitized[k] = v
	}
	return sanitized
}

// isSQLParam returns true if a parameter key likely contains SQL.
func isSQLParam(key string) bool {
	lower := strings.ToLower(key)
	return lower == "sql" || strings.HasSuffix(lower, "_sql")
}
