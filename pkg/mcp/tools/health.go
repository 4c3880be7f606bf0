package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type healthResult struct {
	Status           string `json:"status"`
	Version          string `json:"version"`
	Dialect          string `json:"dialect"`
	RetrievalEnabled bool   `json:"retrieval_enabled"`
}

// RegisterHealthTool adds a health check tool to the MCP server.
// The tool returns the server status, version and what is configured.
func RegisterHealthTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status and version"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(healthResult{
			Status:           "ok",
			Version:          deps.Version,
			Dialect:          string(deps.Dialect),
			RetrievalEnabled: deps.retrievalEnabled(),
		})
	})
}
